// Package models holds the client-side data model: credentials, the
// profile, TOTP enrollment material and session records.
package models

// Credentials is what the login and register forms submit.
type Credentials struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// LoginResult is the outcome of a successful POST /api/login. Token may be
// empty; TOTPRequired selects the second-factor challenge.
type LoginResult struct {
	Token        string
	TOTPRequired bool
	Message      string
}

// UserProfile is refreshed every time the account view is entered.
// TOTPEnabled hides the enrollment entry point.
type UserProfile struct {
	Username    string `json:"username"`
	SignupDate  string `json:"signup_date"`
	TOTPEnabled bool   `json:"totp_enabled"`
}
