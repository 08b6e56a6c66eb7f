package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/bezrook/internal/client/client"
	"github.com/dmitrijs2005/bezrook/internal/client/codeentry"
)

var errCancelled = errors.New("cancelled by user")

// renderCode draws the six slots, the focused one in brackets.
func renderCode(digits [codeentry.Size]string, focus int) string {
	var b strings.Builder
	for i, d := range digits {
		if d == "" {
			d = "_"
		}
		if i == focus {
			b.WriteString("[" + d + "]")
		} else {
			b.WriteString(" " + d + " ")
		}
	}
	return b.String()
}

// promptCode feeds user input into ctrl until it has submitted a code
// successfully. A single character goes to the focused slot, "<" erases,
// anything longer is pasted. Rejected codes are shown and the user may try
// again; errors that end the flow are returned.
func (a *App) promptCode(ctx context.Context, ctrl *codeentry.Controller, title string) error {
	fmt.Fprintln(a.out, title+` (one digit per line, "<" erases, paste all six at once, "cancel" to stop)`)

	for !ctrl.Done() {
		line, err := getSimpleText(a.reader, renderCode(ctrl.Digits(), ctrl.Focus()), a.out)
		if err != nil {
			return err
		}

		switch {
		case line == "cancel":
			return errCancelled
		case line == "":
			continue
		case line == "<":
			_, err = ctrl.Backspace(ctx, ctrl.Focus())
		case utf8.RuneCountInString(line) == 1:
			_, err = ctrl.SetDigit(ctx, ctrl.Focus(), line)
		default:
			_, err = ctrl.Paste(ctx, line)
		}

		if err == nil {
			continue
		}
		if !retryable(err) {
			return err
		}
		a.report(ctx, err)
		if text, ok := a.notice(); ok {
			fmt.Fprintln(a.out, "!", text)
		}
	}
	return nil
}

// retryable errors leave the flow where it was, with a cleared buffer.
func retryable(err error) bool {
	return errors.Is(err, client.ErrServerRejected) ||
		errors.Is(err, client.ErrNetwork) ||
		errors.Is(err, client.ErrValidation)
}
