package services

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/bezrook/internal/client/models"
	"github.com/dmitrijs2005/bezrook/internal/client/tokenstore"
)

// fakeAPI implements every narrow API interface of this package. Results
// are configured per field; calls are counted for assertions.
type fakeAPI struct {
	mu sync.Mutex

	tokens tokenstore.Store

	LoginRes    *models.LoginResult
	LoginErr    error
	RegisterErr error
	VerifyErr   error

	ProfileRes *models.UserProfile
	ProfileErr error

	Enrollments []models.TOTPEnrollment
	StartErr    error
	ConfirmErr  error
	StartGate   chan struct{}

	SessionsRes []models.SessionRecord
	ListErr     error
	RevokeErr   error

	LoginCalls    int
	RegisterCalls int
	VerifyCodes   []string
	StartCalls    int
	ConfirmCodes  []string
	ListCalls     int
	Revoked       []models.SessionID

	expired []func(ctx context.Context)
}

func (f *fakeAPI) Login(ctx context.Context, creds models.Credentials) (*models.LoginResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LoginCalls++
	if f.LoginErr != nil {
		return nil, f.LoginErr
	}
	if f.LoginRes.Token != "" && f.tokens != nil {
		_ = f.tokens.Set(ctx, f.LoginRes.Token)
	}
	res := *f.LoginRes
	return &res, nil
}

func (f *fakeAPI) Register(ctx context.Context, creds models.Credentials) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RegisterCalls++
	return f.RegisterErr
}

// VerifyTOTP never fires the expiry hooks, like the HTTP client, which
// reads a 401 here as a wrong code.
func (f *fakeAPI) VerifyTOTP(_ context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.VerifyCodes = append(f.VerifyCodes, code)
	return f.VerifyErr
}

func (f *fakeAPI) OnSessionExpired(fn func(ctx context.Context)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expired = append(f.expired, fn)
}

// expire simulates a 401 seen by the client.
func (f *fakeAPI) expire(ctx context.Context) {
	f.mu.Lock()
	hooks := append([]func(context.Context){}, f.expired...)
	f.mu.Unlock()

	if f.tokens != nil {
		_ = f.tokens.Clear(ctx)
	}
	for _, fn := range hooks {
		fn(ctx)
	}
}

func (f *fakeAPI) Profile(ctx context.Context) (*models.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ProfileErr != nil {
		return nil, f.ProfileErr
	}
	p := *f.ProfileRes
	return &p, nil
}

func (f *fakeAPI) StartTOTPSetup(ctx context.Context) (*models.TOTPEnrollment, error) {
	f.mu.Lock()
	gate := f.StartGate
	f.StartCalls++
	n := f.StartCalls
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StartErr != nil {
		return nil, f.StartErr
	}
	e := f.Enrollments[(n-1)%len(f.Enrollments)]
	return &e, nil
}

func (f *fakeAPI) ConfirmTOTPSetup(ctx context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ConfirmCodes = append(f.ConfirmCodes, code)
	return f.ConfirmErr
}

func (f *fakeAPI) ListSessions(ctx context.Context) ([]models.SessionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ListCalls++
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return append([]models.SessionRecord{}, f.SessionsRes...), nil
}

func (f *fakeAPI) RevokeSession(ctx context.Context, id models.SessionID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Revoked = append(f.Revoked, id)
	if f.RevokeErr != nil {
		return f.RevokeErr
	}
	kept := f.SessionsRes[:0:0]
	for _, s := range f.SessionsRes {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	f.SessionsRes = kept
	return nil
}

func (f *fakeAPI) set(fn func(f *fakeAPI)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}
