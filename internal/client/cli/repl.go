package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Whoami(ctx context.Context) error
	Sessions(ctx context.Context) error
	Revoke(ctx context.Context, id string) error
	EnableTOTP(ctx context.Context) error
	Logout(ctx context.Context) error
	report(ctx context.Context, err error)
	notice() (string, bool)
}

// runREPL starts a simple read–eval–print loop for the bezrook CLI.
//
// It reads a line from reader, parses the first token as the command, and
// dispatches to methods on 'a'. Unknown commands are reported back to the
// user. The loop exits on EOF or when the user types "exit" or "quit".
//
// Prompt & Commands
//
// Before every prompt the current banner, if any, is printed. The prompt
// shows the current status (from statusFn) and accepts commands:
//
//	Not logged in:
//	  - help           show available commands
//	  - register       create an account
//	  - login          authenticate, answering the TOTP challenge if asked
//	  - exit | quit    leave the program
//
//	Logged in:
//	  - help           show available commands
//	  - whoami         show the profile
//	  - sessions       list active sessions
//	  - revoke <id>    terminate another session
//	  - totp           enable two-factor authentication
//	  - logout         log out
//	  - exit | quit    leave the program
//
// Errors returned by command handlers go to the banner via a.report, so
// the loop itself never stops on a failed command.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		if text, ok := a.notice(); ok {
			printlnFn("!", text)
		}
		printlnFn(fmt.Sprintf("bz %s > ", statusFn()))

		line, err := reader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: whoami, sessions, revoke <id>, totp, logout, exit")
			} else {
				printlnFn("Available commands: register, login, exit")
			}

		case "register":
			a.report(ctx, a.Register(ctx))

		case "login":
			a.report(ctx, a.Login(ctx))

		case "whoami":
			a.report(ctx, a.Whoami(ctx))

		case "sessions":
			a.report(ctx, a.Sessions(ctx))

		case "revoke":
			if len(args) == 0 {
				printlnFn("Usage: revoke <id>")
				continue
			}
			a.report(ctx, a.Revoke(ctx, args[0]))

		case "totp":
			a.report(ctx, a.EnableTOTP(ctx))

		case "logout":
			a.report(ctx, a.Logout(ctx))

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
