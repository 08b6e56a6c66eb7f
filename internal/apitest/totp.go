package apitest

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpIssuer = "bezrook"
	totpPeriod = 30 * time.Second
	qrSize     = 256
)

// codeOpts: 6 digits, SHA-1, 30 s steps, one step of skew either way.
var codeOpts = totp.ValidateOpts{
	Period:    uint(totpPeriod / time.Second),
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// newTOTPKey generates a 160-bit secret and the otpauth:// key for login.
func newTOTPKey(login string) (*otp.Key, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: login,
		Period:      codeOpts.Period,
		SecretSize:  20,
		Digits:      codeOpts.Digits,
		Algorithm:   codeOpts.Algorithm,
	})
	if err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}
	return key, nil
}

// NewSecret returns a random base32 TOTP secret.
func NewSecret() (string, error) {
	key, err := newTOTPKey(totpIssuer)
	if err != nil {
		return "", err
	}
	return key.Secret(), nil
}

// Code computes the RFC 6238 code for secret at t.
func Code(secret string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, t, codeOpts)
}

// verifyCode accepts codes from one step before or after t.
func verifyCode(secret, code string, t time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, t, codeOpts)
	return err == nil && ok
}

// qrDataURI renders the key's otpauth:// URL as a QR code PNG data URI.
func qrDataURI(key *otp.Key) (string, error) {
	img, err := key.Image(qrSize, qrSize)
	if err != nil {
		return "", fmt.Errorf("render qr code: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
