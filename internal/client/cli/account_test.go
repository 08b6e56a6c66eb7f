package cli

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/bezrook/internal/client/client"
	"github.com/dmitrijs2005/bezrook/internal/client/models"
	"github.com/dmitrijs2005/bezrook/internal/client/services"
)

func TestCommands_RequireLogin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	assert.ErrorIs(t, h.app.Whoami(ctx), client.ErrUnauthenticated)
	assert.ErrorIs(t, h.app.Sessions(ctx), client.ErrUnauthenticated)
	assert.ErrorIs(t, h.app.Revoke(ctx, "1"), client.ErrUnauthenticated)
	assert.ErrorIs(t, h.app.EnableTOTP(ctx), client.ErrUnauthenticated)
	assert.Equal(t, 0, h.backend.TotalCalls())
}

func TestWhoami(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.backend.AddUser(testLogin, testPassword))
	h.login(t)
	h.out.Reset()

	require.NoError(t, h.app.Whoami(context.Background()))

	out := h.out.String()
	assert.Contains(t, out, "Login:        alice")
	assert.Contains(t, out, "Two-factor:   disabled")
}

func TestSessionsAndRevoke(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.backend.AddUser(testLogin, testPassword))
	other, err := h.backend.NewSession(testLogin, "PHONE-1")
	require.NoError(t, err)
	h.login(t)
	h.out.Reset()

	require.NoError(t, h.app.Sessions(ctx))
	out := h.out.String()
	assert.Contains(t, out, "PHONE-1")
	assert.Contains(t, out, "(this device)")
	assert.Equal(t, 3, strings.Count(out, "\n"), "header and two sessions")

	var current models.SessionID
	for _, s := range h.app.sessions.Sessions() {
		if s.IsCurrent {
			current = s.ID
		}
	}
	require.NotEmpty(t, current)

	err = h.app.Revoke(ctx, current.String())
	require.ErrorIs(t, err, client.ErrInvalidOperation)
	assert.Equal(t, 0, h.backend.Calls(http.MethodDelete, "/api/sessions/"+current.String()))

	h.out.Reset()
	require.NoError(t, h.app.Revoke(ctx, strconv.Itoa(other)))
	assert.Contains(t, h.out.String(), "Session "+strconv.Itoa(other)+" terminated")
	assert.NotContains(t, h.out.String(), "PHONE-1")
	assert.Equal(t, 1, h.backend.SessionCount(testLogin))

	err = h.app.Revoke(ctx, "999")
	var rej *client.RejectedError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "Session not found", rej.Detail)
}

func TestSessions_ExpiryClearsUserData(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.backend.AddUser(testLogin, testPassword))
	h.login(t)
	h.backend.RotateKey()

	err := h.app.Sessions(context.Background())
	require.ErrorIs(t, err, client.ErrSessionExpired)

	assert.Equal(t, services.StateLoggedOut, h.app.flow.State())
	_, ok := h.app.account.Profile()
	assert.False(t, ok)
	assert.Empty(t, h.app.sessions.Sessions())
}

func TestEnableTOTP(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.backend.AddUser(testLogin, testPassword))
	h.login(t)

	qr := filepath.Join(t.TempDir(), "qr.png")
	stubPrompts(t, func(prompt string) (string, error) {
		if strings.HasPrefix(prompt, "Save the QR code") {
			return qr, nil
		}
		return h.backend.CurrentCode(testLogin)
	})

	require.NoError(t, h.app.EnableTOTP(ctx))

	assert.True(t, h.backend.TOTPEnabled(testLogin))
	assert.Equal(t, services.EnrollmentEnrolled, h.app.enrollment.State())
	p, ok := h.app.account.Profile()
	require.True(t, ok)
	assert.True(t, p.TOTPEnabled)

	out := h.out.String()
	assert.Contains(t, out, "Add this secret to your authenticator app")
	assert.Contains(t, out, "QR code saved to "+qr)
	assert.Contains(t, out, "TOTP enabled")

	img, err := os.ReadFile(qr)
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG", string(img[:4]))

	err = h.app.EnableTOTP(ctx)
	require.ErrorIs(t, err, client.ErrInvalidOperation)
	assert.EqualError(t, err, "invalid operation: TOTP is already enabled")
}

func TestEnableTOTP_WrongCodeThenRight(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.backend.AddUser(testLogin, testPassword))
	h.login(t)

	attempts := 0
	var wrong string
	stubPrompts(t, func(prompt string) (string, error) {
		if strings.HasPrefix(prompt, "Save the QR code") {
			return "", nil
		}
		code, err := h.backend.CurrentCode(testLogin)
		if err != nil {
			return "", err
		}
		attempts++
		switch attempts {
		case 1:
			wrong = shifted(code)
			// a paste with a hole does not submit
			return wrong[:2] + "x" + wrong[3:], nil
		case 2:
			return wrong[2:3], nil
		default:
			return code, nil
		}
	})

	require.NoError(t, h.app.EnableTOTP(context.Background()))
	assert.True(t, h.backend.TOTPEnabled(testLogin))
	assert.Contains(t, h.out.String(), "! Invalid TOTP code")
	assert.Equal(t, 2, h.backend.Calls(http.MethodPost, "/api/totp/setup/verify"))
}

func TestEnableTOTP_Cancel(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.backend.AddUser(testLogin, testPassword))
	h.login(t)

	stubLines(t, "cancel")
	require.NoError(t, h.app.EnableTOTP(context.Background()))

	assert.False(t, h.backend.TOTPEnabled(testLogin))
	assert.Equal(t, services.EnrollmentIdle, h.app.enrollment.State())
	_, ok := h.app.enrollment.Enrollment()
	assert.False(t, ok)
	assert.Contains(t, h.out.String(), "TOTP setup cancelled")

	// a new attempt starts from scratch
	stubLines(t, "", "cancel")
	require.NoError(t, h.app.EnableTOTP(context.Background()))
	assert.Equal(t, 2, h.backend.Calls(http.MethodPost, "/api/totp/setup"))
	assert.Equal(t, 0, h.backend.Calls(http.MethodPost, "/api/totp/setup/verify"))
}

func TestSaveQR_NotDataURI(t *testing.T) {
	err := saveQR(models.TOTPEnrollment{QRCode: "https://example.com/qr.png"}, filepath.Join(t.TempDir(), "x.png"))
	require.ErrorIs(t, err, models.ErrNotDataURI)
}

// shifted returns a code that differs from code in every digit.
func shifted(code string) string {
	b := []byte(code)
	for i := range b {
		b[i] = '0' + (b[i]-'0'+5)%10
	}
	return string(b)
}
