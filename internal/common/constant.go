// Package common contains wire-level constants shared by the bezrook client
// and the in-process fake backend.
package common

const (
	// AuthorizationHeaderName carries the bearer token on authorized calls.
	AuthorizationHeaderName = "Authorization"

	// BearerPrefix precedes the token inside the Authorization header.
	BearerPrefix = "Bearer "

	// RequestIDHeaderName correlates a client request with server logs.
	RequestIDHeaderName = "X-Request-ID"

	// TOTPRequiredMessage is the login response marker that selects the
	// second-factor challenge. The HTTP status is 200 either way.
	TOTPRequiredMessage = "TOTP required"

	// CodeLength is the number of digits in a TOTP code.
	CodeLength = 6
)
