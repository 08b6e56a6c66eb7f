package models

import (
	"encoding/base64"
	"errors"
	"strings"
)

var ErrNotDataURI = errors.New("qr code is not a base64 data URI")

// TOTPEnrollment lives between the start of enrollment and either its
// confirmation or cancellation. It is never persisted.
type TOTPEnrollment struct {
	Secret string `json:"secret"`
	QRCode string `json:"qr_code"`
}

// QRImage decodes the "data:image/png;base64,..." URI sent by the server.
func (e TOTPEnrollment) QRImage() ([]byte, error) {
	header, payload, ok := strings.Cut(e.QRCode, ",")
	if !ok || !strings.HasPrefix(header, "data:") || !strings.HasSuffix(header, ";base64") {
		return nil, ErrNotDataURI
	}
	return base64.StdEncoding.DecodeString(payload)
}
