package cli

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/bezrook/internal/apitest"
	"github.com/dmitrijs2005/bezrook/internal/client/banner"
	"github.com/dmitrijs2005/bezrook/internal/client/client"
	"github.com/dmitrijs2005/bezrook/internal/client/services"
	"github.com/dmitrijs2005/bezrook/internal/client/tokenstore"
	"github.com/dmitrijs2005/bezrook/internal/logging"
)

const (
	testLogin    = "alice"
	testPassword = "Abcdefghi1!"
)

type harness struct {
	backend *apitest.Backend
	srv     *httptest.Server
	tokens  *tokenstore.Memory
	app     *App
	out     *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	backend := apitest.New()
	srv := httptest.NewServer(backend.Handler())
	t.Cleanup(srv.Close)

	h := &harness{backend: backend, srv: srv, tokens: tokenstore.NewMemory()}
	h.app, h.out = h.newApp(t, "")
	return h
}

// newApp builds another App on the same backend and token store, reading
// REPL input from in.
func (h *harness) newApp(t *testing.T, in string) (*App, *bytes.Buffer) {
	t.Helper()
	api, err := client.NewHTTPClient(h.srv.URL, h.tokens, client.WithHTTPClient(h.srv.Client()))
	require.NoError(t, err)

	out := &bytes.Buffer{}
	return newApp(api, h.tokens, banner.New(time.Hour), logging.NewDiscard(), strings.NewReader(in), out), out
}

// stubPrompts answers every getSimpleText call with answer(prompt).
func stubPrompts(t *testing.T, answer func(prompt string) (string, error)) {
	t.Helper()
	orig := getSimpleText
	getSimpleText = func(_ *bufio.Reader, prompt string, _ io.Writer) (string, error) { return answer(prompt) }
	t.Cleanup(func() { getSimpleText = orig })
}

// stubLines answers prompts with lines in order, then io.EOF.
func stubLines(t *testing.T, lines ...string) {
	t.Helper()
	stubPrompts(t, func(string) (string, error) {
		if len(lines) == 0 {
			return "", io.EOF
		}
		line := lines[0]
		lines = lines[1:]
		return line, nil
	})
}

// stubPasswords returns a fresh copy every time, callers wipe what they get.
func stubPasswords(t *testing.T, pws ...string) {
	t.Helper()
	orig := getPassword
	getPassword = func(string, io.Writer) ([]byte, error) {
		if len(pws) == 0 {
			return nil, io.EOF
		}
		pw := pws[0]
		pws = pws[1:]
		return []byte(pw), nil
	}
	t.Cleanup(func() { getPassword = orig })
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	stubLines(t, testLogin)
	stubPasswords(t, testPassword)
	require.NoError(t, h.app.Login(context.Background()))
	require.True(t, h.app.isLoggedIn())
}

func TestRegister_Success(t *testing.T) {
	h := newHarness(t)
	stubLines(t, testLogin)
	stubPasswords(t, testPassword, testPassword)

	require.NoError(t, h.app.Register(context.Background()))
	assert.Contains(t, h.out.String(), "Account created")
	assert.False(t, h.app.isLoggedIn())

	h.login(t)
}

func TestRegister_PasswordsDoNotMatch(t *testing.T) {
	h := newHarness(t)
	stubLines(t, testLogin)
	stubPasswords(t, testPassword, "Abcdefghi1?")

	err := h.app.Register(context.Background())
	require.ErrorIs(t, err, client.ErrValidation)
	assert.EqualError(t, err, "passwords do not match")
	assert.Equal(t, 0, h.backend.Calls(http.MethodPost, "/api/register"))
}

func TestLogin_WithoutTOTP(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.backend.AddUser(testLogin, testPassword))

	h.login(t)

	assert.Contains(t, h.out.String(), "Logged in as alice")
	assert.Len(t, h.app.sessions.Sessions(), 1)
	p, ok := h.app.account.Profile()
	require.True(t, ok)
	assert.Equal(t, testLogin, p.Username)
	assert.Equal(t, "(alice authenticated)", h.app.getStatus())

	stubLines(t)
	err := h.app.Login(context.Background())
	require.ErrorIs(t, err, client.ErrInvalidOperation)
}

func TestLogin_WrongPassword(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.backend.AddUser(testLogin, testPassword))
	stubLines(t, testLogin)
	stubPasswords(t, "Wrongpass1!")

	err := h.app.Login(context.Background())
	var rej *client.RejectedError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "Invalid login or password", rej.Detail)
	assert.False(t, h.app.isLoggedIn())
}

func TestLogin_TOTPChallenge(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.backend.AddUser(testLogin, testPassword))
	_, err := h.backend.EnableTOTP(testLogin)
	require.NoError(t, err)
	code, err := h.backend.CurrentCode(testLogin)
	require.NoError(t, err)

	// a digit, a typo erased with "<", then the rest one by one
	stubLines(t, testLogin, code[0:1], "7", "<", code[1:2], code[2:3], code[3:4], code[4:5], code[5:6])
	stubPasswords(t, testPassword)

	require.NoError(t, h.app.Login(context.Background()))
	assert.True(t, h.app.isLoggedIn())
	assert.Equal(t, 1, h.backend.Calls(http.MethodPost, "/api/totp/verify"))
	assert.Contains(t, h.out.String(), "Logged in as alice")
}

func TestLogin_TOTPChallengePasted(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.backend.AddUser(testLogin, testPassword))
	_, err := h.backend.EnableTOTP(testLogin)
	require.NoError(t, err)

	stubPrompts(t, func(prompt string) (string, error) {
		if prompt == "Enter login" {
			return testLogin, nil
		}
		return h.backend.CurrentCode(testLogin)
	})
	stubPasswords(t, testPassword)

	require.NoError(t, h.app.Login(context.Background()))
	assert.True(t, h.app.isLoggedIn())
}

func TestLogin_ChallengeWrongCodeThenRight(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.backend.AddUser(testLogin, testPassword))
	_, err := h.backend.EnableTOTP(testLogin)
	require.NoError(t, err)
	code, err := h.backend.CurrentCode(testLogin)
	require.NoError(t, err)

	stubLines(t, testLogin, shifted(code), code)
	stubPasswords(t, testPassword)

	require.NoError(t, h.app.Login(context.Background()))
	assert.True(t, h.app.isLoggedIn())
	assert.True(t, tokenstore.Present(context.Background(), h.tokens))
	assert.Equal(t, 2, h.backend.Calls(http.MethodPost, "/api/totp/verify"))

	out := h.out.String()
	assert.Contains(t, out, "! Invalid TOTP code")
	assert.NotContains(t, out, "Session expired")
	assert.Contains(t, out, "Logged in as alice")
}

func TestLogin_ChallengeCancelled(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.backend.AddUser(testLogin, testPassword))
	_, err := h.backend.EnableTOTP(testLogin)
	require.NoError(t, err)

	stubLines(t, testLogin, "1", "cancel")
	stubPasswords(t, testPassword)

	require.NoError(t, h.app.Login(context.Background()))
	assert.Equal(t, services.StateLoggedOut, h.app.flow.State())
	assert.False(t, tokenstore.Present(context.Background(), h.tokens))
	assert.Contains(t, h.out.String(), "Login cancelled")
	assert.Equal(t, 0, h.backend.Calls(http.MethodPost, "/api/totp/verify"))
}

func TestLogin_ChallengeInputEnds(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.backend.AddUser(testLogin, testPassword))
	_, err := h.backend.EnableTOTP(testLogin)
	require.NoError(t, err)

	stubLines(t, testLogin)
	stubPasswords(t, testPassword)

	err = h.app.Login(context.Background())
	require.ErrorIs(t, err, io.EOF)
	assert.Equal(t, services.StateLoggedOut, h.app.flow.State())
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.backend.AddUser(testLogin, testPassword))
	h.login(t)

	require.NoError(t, h.app.Logout(context.Background()))

	assert.False(t, h.app.isLoggedIn())
	assert.False(t, tokenstore.Present(context.Background(), h.tokens))
	_, ok := h.app.account.Profile()
	assert.False(t, ok)
	assert.Empty(t, h.app.sessions.Sessions())
	assert.Equal(t, "(logged_out)", h.app.getStatus())
}

func TestRoot_ResumesStoredSession(t *testing.T) {
	h := newHarness(t)
	capturePrintln(t)
	require.NoError(t, h.backend.AddUser(testLogin, testPassword))
	h.login(t)

	app, out := h.newApp(t, "exit\n")
	app.Root(context.Background())

	assert.True(t, app.isLoggedIn())
	assert.Contains(t, out.String(), "Logged in as alice")
}

func TestRoot_WithoutToken(t *testing.T) {
	h := newHarness(t)
	capturePrintln(t)

	app, _ := h.newApp(t, "exit\n")
	app.Root(context.Background())

	assert.False(t, app.isLoggedIn())
	assert.Equal(t, 0, h.backend.TotalCalls())
}

func TestRoot_ExpiredStoredToken(t *testing.T) {
	h := newHarness(t)
	lines := capturePrintln(t)
	require.NoError(t, h.backend.AddUser(testLogin, testPassword))
	h.login(t)
	h.backend.RotateKey()

	app, _ := h.newApp(t, "whoami\nexit\n")
	app.Root(context.Background())

	assert.False(t, app.isLoggedIn())
	assert.False(t, tokenstore.Present(context.Background(), h.tokens))
	assert.Contains(t, *lines, "! Session expired, please log in again")
}
