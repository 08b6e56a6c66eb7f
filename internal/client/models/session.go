package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ServerTimeLayout is the start_time format of GET /api/sessions.
const ServerTimeLayout = "15:04 02-01-2006"

// SessionID is opaque to the client. The server sends integers; strings are
// accepted too.
type SessionID string

func (id *SessionID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = SessionID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("session id: %w", err)
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return fmt.Errorf("session id %q: %w", n, err)
	}
	*id = SessionID(n.String())
	return nil
}

func (id SessionID) String() string { return string(id) }

// SessionRecord is one active login of the user.
type SessionRecord struct {
	ID        SessionID
	Device    string
	StartTime time.Time
	IsCurrent bool
}

type sessionWire struct {
	ID        SessionID `json:"id"`
	Device    string    `json:"device"`
	StartTime string    `json:"start_time"`
	IsCurrent bool      `json:"is_current"`
}

func (r *SessionRecord) UnmarshalJSON(b []byte) error {
	var w sessionWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if w.ID == "" {
		return fmt.Errorf("session record without id")
	}
	start, err := parseStartTime(w.StartTime)
	if err != nil {
		return fmt.Errorf("session %s: %w", w.ID, err)
	}
	*r = SessionRecord{ID: w.ID, Device: w.Device, StartTime: start, IsCurrent: w.IsCurrent}
	return nil
}

func parseStartTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(ServerTimeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
