// Package cli provides the interactive bezrook command-line client.
//
// It wires configuration, the local token database, the REST client and
// the authentication services behind a read-eval-print loop. Every screen
// of the client is a command whose output depends only on the current
// state of the auth, enrollment and session services.
//
// Commands:
//   - register / login / logout
//   - whoami: profile, refreshed on every call
//   - sessions / revoke <id>
//   - totp: enable the second factor, optionally exporting the QR code
//
// Six-digit codes are typed one digit per line ("<" erases, a longer
// line is pasted) and submitted as soon as all six are present.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
