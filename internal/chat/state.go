package chat

import (
	"fmt"
	"time"

	"github.com/oggyb/arena-signals/internal/db"
)

// Window is how long a fresh match may chat before both sides must extend.
const Window = 10 * time.Minute

type State int

const (
	StateOpen State = iota
	StateExpiredPendingExtension
	StateExtendedOpen
	StateUnmatched
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateExpiredPendingExtension:
		return "expired_pending_extension"
	case StateExtendedOpen:
		return "extended_open"
	case StateUnmatched:
		return "unmatched"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// CanSend reports whether messages are accepted in s.
func (s State) CanSend() bool {
	return s == StateOpen || s == StateExtendedOpen
}

// StateOf evaluates the chat state of m at now. Expiry is observed lazily.
func StateOf(m *db.Match, now time.Time) State {
	switch {
	case m.Unmatched:
		return StateUnmatched
	case bothExtended(m):
		return StateExtendedOpen
	case now.After(m.CreatedAt.Add(Window)):
		return StateExpiredPendingExtension
	default:
		return StateOpen
	}
}

func bothExtended(m *db.Match) bool {
	return m.ExtendedBy.Has(m.UserA) && m.ExtendedBy.Has(m.UserB)
}

// ExpiresAt is the end of the initial window, or nil once the chat no
// longer expires.
func ExpiresAt(m *db.Match) *time.Time {
	if m.Unmatched || bothExtended(m) {
		return nil
	}
	t := m.CreatedAt.Add(Window)
	return &t
}

// Unread reports whether the last message is from the other side and newer
// than viewer's last read.
func Unread(m *db.Match, viewer string) bool {
	if m.LastMessageAt == nil || m.LastMessageSenderID == "" || m.LastMessageSenderID == viewer {
		return false
	}
	read, ok := m.LastReadBy[viewer]
	return !ok || m.LastMessageAt.After(read)
}
