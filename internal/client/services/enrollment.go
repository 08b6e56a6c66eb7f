package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/bezrook/internal/client/client"
	"github.com/dmitrijs2005/bezrook/internal/client/codeentry"
	"github.com/dmitrijs2005/bezrook/internal/client/models"
)

type EnrollmentState int

const (
	EnrollmentIdle EnrollmentState = iota
	EnrollmentAwaitingSecret
	EnrollmentShowingSecret
	EnrollmentAwaitingVerification
	EnrollmentEnrolled
)

func (s EnrollmentState) String() string {
	switch s {
	case EnrollmentIdle:
		return "idle"
	case EnrollmentAwaitingSecret:
		return "awaiting_secret"
	case EnrollmentShowingSecret:
		return "showing_secret"
	case EnrollmentAwaitingVerification:
		return "awaiting_verification"
	case EnrollmentEnrolled:
		return "enrolled"
	default:
		return fmt.Sprintf("enrollment(%d)", int(s))
	}
}

// EnrollmentAPI is the part of client.Client the EnrollmentFlow needs.
type EnrollmentAPI interface {
	StartTOTPSetup(ctx context.Context) (*models.TOTPEnrollment, error)
	ConfirmTOTPSetup(ctx context.Context, code string) error
}

// EnrollmentFlow walks the user through turning on TOTP. The secret is
// kept only while it is displayed and is never sent back to the server.
type EnrollmentFlow struct {
	api     EnrollmentAPI
	account *Account

	mu         sync.Mutex
	state      EnrollmentState
	enrollment *models.TOTPEnrollment
	gen        uint64
}

func NewEnrollmentFlow(api EnrollmentAPI, account *Account) *EnrollmentFlow {
	return &EnrollmentFlow{api: api, account: account}
}

func (f *EnrollmentFlow) State() EnrollmentState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Enrollment returns the secret and QR code while they are on screen.
func (f *EnrollmentFlow) Enrollment() (models.TOTPEnrollment, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enrollment == nil {
		return models.TOTPEnrollment{}, false
	}
	return *f.enrollment, true
}

// Start requests a new secret. Only valid from EnrollmentIdle; a failure
// returns the flow there.
func (f *EnrollmentFlow) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.state != EnrollmentIdle {
		state := f.state
		f.mu.Unlock()
		return client.InvalidOperation(fmt.Sprintf("cannot start enrollment in state %s", state))
	}
	f.state = EnrollmentAwaitingSecret
	f.gen++
	gen := f.gen
	f.mu.Unlock()

	e, err := f.api.StartTOTPSetup(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.gen != gen {
		return client.InvalidOperation("enrollment was cancelled")
	}
	if err != nil {
		f.state = EnrollmentIdle
		return err
	}
	f.enrollment = e
	f.state = EnrollmentShowingSecret
	return nil
}

// ProceedToVerify moves from showing the secret to code entry and returns
// a fresh collector bound to SubmitCode.
func (f *EnrollmentFlow) ProceedToVerify() (*codeentry.Controller, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != EnrollmentShowingSecret {
		return nil, client.InvalidOperation(fmt.Sprintf("cannot verify in state %s", f.state))
	}
	f.state = EnrollmentAwaitingVerification
	return codeentry.New(f.SubmitCode), nil
}

// SubmitCode confirms the enrollment with a 6-digit code. A rejected code
// keeps the flow in EnrollmentAwaitingVerification.
func (f *EnrollmentFlow) SubmitCode(ctx context.Context, code string) error {
	f.mu.Lock()
	if f.state != EnrollmentAwaitingVerification {
		state := f.state
		f.mu.Unlock()
		return client.InvalidOperation(fmt.Sprintf("cannot submit a code in state %s", state))
	}
	gen := f.gen
	f.mu.Unlock()

	if err := f.api.ConfirmTOTPSetup(ctx, code); err != nil {
		return err
	}

	f.mu.Lock()
	if f.gen != gen || f.state != EnrollmentAwaitingVerification {
		f.mu.Unlock()
		return client.InvalidOperation("enrollment was cancelled")
	}
	f.state = EnrollmentEnrolled
	f.enrollment = nil
	f.mu.Unlock()

	f.account.SetTOTPEnabled(true)
	return nil
}

// Cancel discards the secret and returns to EnrollmentIdle. It is a no-op
// in EnrollmentIdle and EnrollmentEnrolled. A response that arrives after
// Cancel is ignored.
func (f *EnrollmentFlow) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.state {
	case EnrollmentAwaitingSecret, EnrollmentShowingSecret, EnrollmentAwaitingVerification:
		f.state = EnrollmentIdle
		f.enrollment = nil
		f.gen++
	}
}
