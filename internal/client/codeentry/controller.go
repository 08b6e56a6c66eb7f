// Package codeentry collects a fixed-length numeric code one slot at a
// time and submits it exactly once when the last slot is filled.
package codeentry

import (
	"context"
	"strings"
	"sync"

	"github.com/dmitrijs2005/bezrook/internal/common"
)

// Size is the number of slots in the buffer.
const Size = common.CodeLength

// SubmitFunc receives the completed code. A nil error marks the
// controller done; an error resets the buffer for full re-entry.
type SubmitFunc func(ctx context.Context, code string) error

// Controller owns one code buffer. It is safe for concurrent use; the
// armed flag guarantees that at most one submit is in flight and that a
// completed buffer is submitted once.
type Controller struct {
	mu     sync.Mutex
	buf    [Size]string
	focus  int
	armed  bool
	done   bool
	submit SubmitFunc
}

// New returns an empty, unarmed controller that hands complete codes to
// submit.
func New(submit SubmitFunc) *Controller {
	return &Controller{submit: submit}
}

func isDigit(s string) bool {
	return len(s) == 1 && s[0] >= '0' && s[0] <= '9'
}

// SetDigit puts s into slot index. Only "" or a single decimal digit is
// accepted; anything else, and any index outside the buffer, is ignored.
func (c *Controller) SetDigit(ctx context.Context, index int, s string) (bool, error) {
	if index < 0 || index >= Size || (s != "" && !isDigit(s)) {
		return false, nil
	}

	return c.mutate(ctx, func(buf *[Size]string) int {
		buf[index] = s
		if s != "" && index < Size-1 {
			return index + 1
		}
		return index
	})
}

// Backspace on an empty slot clears the previous one and moves focus
// there. On a filled slot it clears that slot and keeps focus.
func (c *Controller) Backspace(ctx context.Context, index int) (bool, error) {
	if index < 0 || index >= Size {
		return false, nil
	}

	return c.mutate(ctx, func(buf *[Size]string) int {
		if buf[index] != "" {
			buf[index] = ""
			return index
		}
		if index > 0 {
			buf[index-1] = ""
			return index - 1
		}
		return index
	})
}

// Paste replaces the whole buffer with the first Size characters of text.
// Non-digits become empty slots. Focus moves to the first empty slot, or
// the last one when the buffer is full.
func (c *Controller) Paste(ctx context.Context, text string) (bool, error) {
	runes := []rune(text)

	return c.mutate(ctx, func(buf *[Size]string) int {
		for i := range buf {
			buf[i] = ""
			if i < len(runes) && isDigit(string(runes[i])) {
				buf[i] = string(runes[i])
			}
		}
		for i, d := range buf {
			if d == "" {
				return i
			}
		}
		return Size - 1
	})
}

// mutate applies fn under the lock. When fn changed the buffer and left it
// complete, the code is submitted outside the lock.
func (c *Controller) mutate(ctx context.Context, fn func(buf *[Size]string) int) (bool, error) {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return false, nil
	}

	before := c.buf
	c.focus = fn(&c.buf)

	if c.armed || c.buf == before || !complete(c.buf) {
		c.mu.Unlock()
		return false, nil
	}

	c.armed = true
	code := strings.Join(c.buf[:], "")
	c.mu.Unlock()

	err := c.submit(ctx, code)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.armed = false
	if err != nil {
		c.buf = [Size]string{}
		c.focus = 0
		return true, err
	}
	c.done = true
	return true, nil
}

func complete(buf [Size]string) bool {
	for _, d := range buf {
		if d == "" {
			return false
		}
	}
	return true
}

// Reset empties the buffer and focuses the first slot. A done controller
// stays done.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf = [Size]string{}
	c.focus = 0
}

// Digits returns a copy of the slots.
func (c *Controller) Digits() [Size]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf
}

// Focus is the index of the slot that receives the next digit.
func (c *Controller) Focus() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.focus
}

// Code joins the current slots; empty slots contribute nothing.
func (c *Controller) Code() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.Join(c.buf[:], "")
}

// Armed reports whether a submission is in flight. Edits made meanwhile
// change the buffer but never start a second submission.
func (c *Controller) Armed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.armed
}

// Done reports whether a code was accepted. A done controller ignores
// further edits.
func (c *Controller) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}
