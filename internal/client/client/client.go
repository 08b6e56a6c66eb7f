package client

import (
	"context"

	"github.com/dmitrijs2005/bezrook/internal/client/models"
)

// Client is the full REST contract of the bezrook backend as seen by the
// client. HTTPClient is the only production implementation; services
// depend on narrower interfaces.
type Client interface {
	Login(ctx context.Context, creds models.Credentials) (*models.LoginResult, error)
	Register(ctx context.Context, creds models.Credentials) error
	AuthorizedRequest(ctx context.Context, method, path string, body, out any) error

	Profile(ctx context.Context) (*models.UserProfile, error)
	StartTOTPSetup(ctx context.Context) (*models.TOTPEnrollment, error)
	ConfirmTOTPSetup(ctx context.Context, code string) error
	VerifyTOTP(ctx context.Context, code string) error
	ListSessions(ctx context.Context) ([]models.SessionRecord, error)
	RevokeSession(ctx context.Context, id models.SessionID) error

	OnSessionExpired(fn func(ctx context.Context))
}

var _ Client = (*HTTPClient)(nil)
