// Package banner keeps the single dismissible error message shown to the
// user, with automatic dismissal after a fixed display window.
package banner

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/bezrook/internal/client/client"
)

// DefaultTTL is how long a banner stays up unless closed earlier.
const DefaultTTL = 5 * time.Second

// Banner holds at most one message. Showing a new one replaces the old
// one and restarts the timer.
type Banner struct {
	ttl time.Duration

	mu    sync.Mutex
	text  string
	gen   uint64
	timer *time.Timer
}

// New returns a Banner whose messages expire after ttl. A non-positive
// ttl falls back to DefaultTTL.
func New(ttl time.Duration) *Banner {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Banner{ttl: ttl}
}

// Show displays text. An empty text is the same as Dismiss.
func (b *Banner) Show(text string) {
	if text == "" {
		b.Dismiss()
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopLocked()
	b.text = text
	b.gen++
	gen := b.gen
	b.timer = time.AfterFunc(b.ttl, func() { b.expire(gen) })
}

// ShowError displays Message(err). A nil error is ignored.
func (b *Banner) ShowError(err error) {
	if err == nil {
		return
	}
	b.Show(Message(err))
}

// Current returns the message on display, if any.
func (b *Banner) Current() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text, b.text != ""
}

// Dismiss closes the banner before its timer fires.
func (b *Banner) Dismiss() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopLocked()
	b.text = ""
	b.gen++
}

func (b *Banner) stopLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

// expire runs on the timer goroutine; a banner replaced since is kept.
func (b *Banner) expire(gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.gen != gen {
		return
	}
	b.text = ""
	b.timer = nil
}

// Message turns an error from the client or the services into the text
// shown to the user.
func Message(err error) string {
	var (
		rej *client.RejectedError
		val *client.ValidationError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &val):
		return val.Reason
	case errors.Is(err, client.ErrSessionExpired):
		return "Session expired, please log in again"
	case errors.Is(err, client.ErrUnauthenticated):
		return "Please log in"
	case errors.As(err, &rej):
		return rej.Error()
	case errors.Is(err, client.ErrInvalidOperation):
		return invalidOperationReason(err)
	case errors.Is(err, client.ErrNetwork):
		return "Network error, please try again"
	default:
		return "Something went wrong, please try again"
	}
}

// invalidOperationReason strips the sentinel prefix added by
// client.InvalidOperation.
func invalidOperationReason(err error) string {
	msg := err.Error()
	prefix := client.ErrInvalidOperation.Error() + ": "
	if _, reason, ok := strings.Cut(msg, prefix); ok {
		return reason
	}
	return msg
}
