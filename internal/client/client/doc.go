// Package client contains the transport side of the bezrook client.
//
// # Overview
//
// The package provides:
//  1. The REST contract of the backend (see the Client interface): login,
//     register, profile, TOTP setup/verify and session management.
//  2. A concrete HTTP/JSON implementation (see HTTPClient) that attaches the
//     bearer token from a tokenstore.Store, turns a 401 into a forced logout
//     (except on the login challenge, where it means a wrong code)
//     and decodes every endpoint into a typed response.
//  3. Local form validation (ValidateCredentials, ValidateRegistration,
//     ValidateCode) that runs before any network call.
//  4. Local persistence bootstrap (InitDatabase, RunMigrations) for the
//     SQLite file that keeps the token across restarts.
//
// # Error Handling
//
// Failures are classified with sentinel errors matched by errors.Is:
// ErrValidation, ErrUnauthenticated, ErrSessionExpired, ErrServerRejected,
// ErrNetwork (ErrMalformedResponse is a kind of it) and ErrInvalidOperation.
// *ValidationError and *RejectedError carry the message shown to the user.
//
// Nothing is retried automatically and no request timeout applies unless
// WithTimeout is given.
package client
