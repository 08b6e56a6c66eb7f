package apitest

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/bezrook/internal/common"
)

type ctxKey int

const (
	userKey ctxKey = iota
	sessionKey
)

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type codeRequest struct {
	Code string `json:"code"`
}

type sessionJSON struct {
	ID        int    `json:"id"`
	Device    string `json:"device"`
	StartTime string `json:"start_time"`
	IsCurrent bool   `json:"is_current"`
}

// Handler returns the router serving the whole /api tree.
func (b *Backend) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(b.record)

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", b.register)
		r.Post("/login", b.login)

		r.Group(func(r chi.Router) {
			r.Use(b.requireAuth)

			r.Get("/user", b.profile)
			r.Post("/totp/setup", b.totpSetup)
			r.Post("/totp/setup/verify", b.totpSetupVerify)
			r.Post("/totp/verify", b.totpVerify)
			r.Get("/sessions", b.listSessions)
			r.Delete("/sessions/{id}", b.deleteSession)
		})
	})

	return r
}

// record counts the request, runs the hook and answers forced responses.
func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path

		b.mu.Lock()
		b.calls[key]++
		hook := b.hook
		b.mu.Unlock()

		if hook != nil {
			hook(r)
		}

		b.mu.Lock()
		f, ok := b.force[key]
		b.mu.Unlock()

		b.log.Debug(r.Context(), "request", "method", r.Method, "path", r.URL.Path, "request_id", r.Header.Get(common.RequestIDHeaderName))

		if ok {
			writeJSON(w, f.status, f.body)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get(common.AuthorizationHeaderName), common.BearerPrefix)
		if !ok || raw == "" {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}

		b.mu.Lock()
		key, now := b.key, b.now()
		b.mu.Unlock()

		c, err := parseToken(raw, key, now)
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Invalid authentication credentials")
			return
		}

		b.mu.Lock()
		u, userOK := b.byID[c.UserID]
		_, sessionOK := b.sessions[c.SessionID]
		b.mu.Unlock()

		if !userOK {
			writeDetail(w, http.StatusUnauthorized, "User not found")
			return
		}
		if !sessionOK {
			writeDetail(w, http.StatusUnauthorized, "Session terminated")
			return
		}

		ctx := context.WithValue(r.Context(), userKey, u)
		ctx = context.WithValue(ctx, sessionKey, c.SessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func currentUser(r *http.Request) *user {
	return r.Context().Value(userKey).(*user)
}

func currentSession(r *http.Request) int {
	return r.Context().Value(sessionKey).(int)
}

func (b *Backend) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Login == "" || req.Password == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "login and password are required")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.MinCost)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "internal error")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.users[req.Login]; exists {
		writeDetail(w, http.StatusBadRequest, "User with this login already exists")
		return
	}
	b.addUserLocked(req.Login, hash)

	writeJSON(w, http.StatusOK, map[string]string{"message": "User created"})
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}

	b.mu.Lock()
	u, ok := b.users[req.Login]
	b.mu.Unlock()

	if !ok || bcrypt.CompareHashAndPassword(u.hash, []byte(req.Password)) != nil {
		writeDetail(w, http.StatusUnauthorized, "Invalid login or password")
		return
	}

	b.mu.Lock()
	s := b.openSessionLocked(u.id, "")
	key, now, totp := b.key, b.now(), u.totpSecret != ""
	b.mu.Unlock()

	token, err := generateToken(u.id, s.id, key, tokenTTL, now)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "internal error")
		return
	}

	b.log.Info(r.Context(), "login", "login", u.login, "session", s.id, "totp", totp)

	msg := "Login successful"
	if totp {
		msg = "TOTP required"
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token, "message": msg})
}

func (b *Backend) profile(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)

	b.mu.Lock()
	resp := map[string]any{
		"username":     u.login,
		"signup_date":  u.signup.Format(signupLayout),
		"totp_enabled": u.totpSecret != "",
	}
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

func (b *Backend) totpSetup(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)

	b.mu.Lock()
	enabled := u.totpSecret != ""
	b.mu.Unlock()
	if enabled {
		writeDetail(w, http.StatusBadRequest, "TOTP already enabled")
		return
	}

	key, err := newTOTPKey(u.login)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "internal error")
		return
	}
	secret := key.Secret()
	qr, err := qrDataURI(key)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "internal error")
		return
	}

	b.mu.Lock()
	b.pending[u.id] = pendingSecret{secret: secret, created: b.now()}
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"secret": secret, "qr_code": qr})
}

func (b *Backend) totpSetupVerify(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}

	u := currentUser(r)

	b.mu.Lock()
	defer b.mu.Unlock()

	if u.totpSecret != "" {
		writeDetail(w, http.StatusBadRequest, "TOTP already enabled")
		return
	}

	p, ok := b.pending[u.id]
	if !ok {
		writeDetail(w, http.StatusBadRequest, "No active TOTP setup. Start again.")
		return
	}

	now := b.now()
	if now.Sub(p.created) > PendingSecretTTL {
		delete(b.pending, u.id)
		writeDetail(w, http.StatusBadRequest, "TOTP setup expired. Start again.")
		return
	}

	if !verifyCode(p.secret, req.Code, now) {
		writeDetail(w, http.StatusBadRequest, "Invalid TOTP code")
		return
	}

	u.totpSecret = p.secret
	delete(b.pending, u.id)

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "TOTP enabled"})
}

func (b *Backend) totpVerify(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}

	u := currentUser(r)

	b.mu.Lock()
	secret, now := u.totpSecret, b.now()
	b.mu.Unlock()

	if secret == "" {
		writeDetail(w, http.StatusBadRequest, "TOTP not set up for this user")
		return
	}
	if !verifyCode(secret, req.Code, now) {
		writeDetail(w, http.StatusUnauthorized, "Invalid TOTP code")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "TOTP code verified"})
}

func (b *Backend) listSessions(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	current := currentSession(r)

	b.mu.Lock()
	list := b.userSessionsLocked(u.id)
	out := make([]sessionJSON, 0, len(list))
	for _, s := range list {
		out = append(out, sessionJSON{
			ID:        s.id,
			Device:    s.device,
			StartTime: s.started.Format(sessionLayout),
			IsCurrent: s.id == current,
		})
	}
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

func (b *Backend) deleteSession(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Session not found")
		return
	}

	u := currentUser(r)

	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.sessions[id]
	if !ok || s.userID != u.id {
		writeDetail(w, http.StatusNotFound, "Session not found")
		return
	}
	delete(b.sessions, id)

	writeJSON(w, http.StatusOK, map[string]string{"message": "Session terminated"})
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}
