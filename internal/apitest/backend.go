// Package apitest is an in-memory implementation of the bezrook REST API.
// It backs the client tests and cmd/devserver. It is not a production
// server: users, sessions and secrets live in maps and vanish on exit.
package apitest

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/bezrook/internal/logging"
)

const (
	// PendingSecretTTL bounds how long an unconfirmed enrollment secret stays usable.
	PendingSecretTTL = 10 * time.Minute
	tokenTTL         = time.Hour
	signupLayout     = "02-01-2006"
	sessionLayout    = "15:04 02-01-2006"
)

type user struct {
	id         int
	login      string
	hash       []byte
	signup     time.Time
	totpSecret string
}

type session struct {
	id      int
	userID  int
	device  string
	started time.Time
}

type pendingSecret struct {
	secret  string
	created time.Time
}

type forced struct {
	status int
	body   any
}

// Backend holds the fake server state. All methods are safe for
// concurrent use.
type Backend struct {
	mu sync.Mutex

	users    map[string]*user
	byID     map[int]*user
	sessions map[int]*session
	pending  map[int]pendingSecret

	nextUserID    int
	nextSessionID int

	key   []byte
	now   func() time.Time
	log   logging.Logger
	calls map[string]int
	force map[string]forced
	hook  func(r *http.Request)
}

type Option func(*Backend)

// WithClock replaces time.Now, used for TOTP windows and expiries.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

func WithLogger(l logging.Logger) Option {
	return func(b *Backend) { b.log = l }
}

func New(opts ...Option) *Backend {
	b := &Backend{
		users:         make(map[string]*user),
		byID:          make(map[int]*user),
		sessions:      make(map[int]*session),
		pending:       make(map[int]pendingSecret),
		nextUserID:    1,
		nextSessionID: 1,
		key:           newKey(),
		now:           time.Now,
		log:           logging.NewDiscard(),
		calls:         make(map[string]int),
		force:         make(map[string]forced),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func newKey() []byte {
	k := make([]byte, 32)
	if _, err := rand.Read(k); err != nil {
		panic(fmt.Sprintf("apitest: generate signing key: %v", err))
	}
	return k
}

// AddUser creates an account directly, skipping the register endpoint's
// checks.
func (b *Backend) AddUser(login, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.users[login]; ok {
		return fmt.Errorf("user %q already exists", login)
	}
	b.addUserLocked(login, hash)
	return nil
}

func (b *Backend) addUserLocked(login string, hash []byte) *user {
	u := &user{id: b.nextUserID, login: login, hash: hash, signup: b.now()}
	b.nextUserID++
	b.users[login] = u
	b.byID[u.id] = u
	return u
}

// EnableTOTP turns on the second factor for login and returns the secret.
func (b *Backend) EnableTOTP(login string) (string, error) {
	secret, err := NewSecret()
	if err != nil {
		return "", err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	u, ok := b.users[login]
	if !ok {
		return "", fmt.Errorf("unknown user %q", login)
	}
	u.totpSecret = secret
	return secret, nil
}

// TOTPEnabled reports whether login has a confirmed second factor.
func (b *Backend) TOTPEnabled(login string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	u, ok := b.users[login]
	return ok && u.totpSecret != ""
}

// CurrentCode returns a code the backend accepts right now for login's
// confirmed or pending secret.
func (b *Backend) CurrentCode(login string) (string, error) {
	b.mu.Lock()
	u, ok := b.users[login]
	var secret string
	if ok {
		secret = u.totpSecret
		if p, pending := b.pending[u.id]; pending {
			secret = p.secret
		}
	}
	now := b.now()
	b.mu.Unlock()

	if !ok {
		return "", fmt.Errorf("unknown user %q", login)
	}
	if secret == "" {
		return "", fmt.Errorf("user %q has no totp secret", login)
	}
	return Code(secret, now)
}

// NewSession opens a session for login as if it had logged in from
// another device.
func (b *Backend) NewSession(login, device string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	u, ok := b.users[login]
	if !ok {
		return 0, fmt.Errorf("unknown user %q", login)
	}
	return b.openSessionLocked(u.id, device).id, nil
}

func (b *Backend) openSessionLocked(userID int, device string) *session {
	if device == "" {
		device = "DESKTOP-" + strings.ToUpper(uuid.NewString()[:8])
	}
	s := &session{id: b.nextSessionID, userID: userID, device: device, started: b.now()}
	b.nextSessionID++
	b.sessions[s.id] = s
	return s
}

// SessionCount returns the number of open sessions of login.
func (b *Backend) SessionCount(login string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	u, ok := b.users[login]
	if !ok {
		return 0
	}
	n := 0
	for _, s := range b.sessions {
		if s.userID == u.id {
			n++
		}
	}
	return n
}

// RotateKey invalidates every issued token.
func (b *Backend) RotateKey() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.key = newKey()
}

// Calls returns how many requests hit method and path (path without the
// query string, e.g. "/api/sessions/3").
func (b *Backend) Calls(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[method+" "+path]
}

// TotalCalls returns the number of requests served so far.
func (b *Backend) TotalCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, c := range b.calls {
		n += c
	}
	return n
}

// Force makes every later request to method and path answer status with
// body encoded as JSON, until Unforce.
func (b *Backend) Force(method, path string, status int, body any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.force[method+" "+path] = forced{status: status, body: body}
}

func (b *Backend) Unforce(method, path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.force, method+" "+path)
}

// SetHook installs fn to run at the start of every request, before any
// state is read. Tests use it to hold requests in flight.
func (b *Backend) SetHook(fn func(r *http.Request)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hook = fn
}

func (b *Backend) userSessionsLocked(userID int) []*session {
	var out []*session
	for _, s := range b.sessions {
		if s.userID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}
