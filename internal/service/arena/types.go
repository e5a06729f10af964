package arena

import (
	"time"

	"github.com/oggyb/arena-signals/internal/chat"
	"github.com/oggyb/arena-signals/internal/db"
	"github.com/oggyb/arena-signals/internal/geo"
	"github.com/oggyb/arena-signals/internal/matching"
)

// Wire messages. Timestamps are unix milliseconds.

type User struct {
	ID               string `cbor:"id"`
	Name             string `cbor:"name"`
	Gender           string `cbor:"gender"`
	Sexuality        string `cbor:"sexuality"`
	DateOfBirth      string `cbor:"date_of_birth,omitempty"`
	PhotoURL         string `cbor:"photo_url,omitempty"`
	PromptAnswer     string `cbor:"prompt_answer,omitempty"`
	BraveryPoints    int    `cbor:"bravery_points"`
	Level            int    `cbor:"level"`
	SignalsRemaining int    `cbor:"signals_remaining"`
	IsActiveInZone   bool   `cbor:"is_active_in_zone"`
	ActiveArenaID    string `cbor:"active_arena_id,omitempty"`
}

type RegisterRequest struct {
	UserID       string `cbor:"user_id"`
	Name         string `cbor:"name"`
	Email        string `cbor:"email"`
	Gender       string `cbor:"gender"`
	Sexuality    string `cbor:"sexuality,omitempty"`
	DateOfBirth  string `cbor:"date_of_birth,omitempty"`
	PhotoURL     string `cbor:"photo_url,omitempty"`
	PromptAnswer string `cbor:"prompt_answer,omitempty"`
}

type RegisterResponse struct {
	User User `cbor:"user"`
}

type UpdatePushTokenRequest struct {
	UserID    string `cbor:"user_id"`
	PushToken string `cbor:"push_token"`
}

type Empty struct{}

// Arena is the read-only view end users get. Open reports whether the
// activation window contains the server's current time.
type Arena struct {
	ID            string  `cbor:"id"`
	Name          string  `cbor:"name"`
	Latitude      float64 `cbor:"latitude"`
	Longitude     float64 `cbor:"longitude"`
	Radius        float64 `cbor:"radius"`
	StartTimeUnix int64   `cbor:"start_time"`
	EndTimeUnix   int64   `cbor:"end_time"`
	IsActive      bool    `cbor:"is_active"`
	Open          bool    `cbor:"open"`
}

type ListArenasRequest struct{}

type ListArenasResponse struct {
	Arenas []Arena `cbor:"arenas"`
}

type GetArenaRequest struct {
	ArenaID string `cbor:"arena_id"`
}

type GetArenaResponse struct {
	Arena Arena `cbor:"arena"`
}

type Position struct {
	Latitude  float64 `cbor:"latitude"`
	Longitude float64 `cbor:"longitude"`
}

type EnterRequest struct {
	UserID  string `cbor:"user_id"`
	ArenaID string `cbor:"arena_id"`
	// Position is nil when the device denied location access.
	Position *Position `cbor:"position,omitempty"`
}

type EnterResponse struct {
	ArenaID          string `cbor:"arena_id"`
	SignalsRemaining int    `cbor:"signals_remaining"`
	BraveryPoints    int    `cbor:"bravery_points"`
	Level            int    `cbor:"level"`
	Reactivated      bool   `cbor:"reactivated"`
}

type DeactivateRequest struct {
	UserID  string `cbor:"user_id"`
	ArenaID string `cbor:"arena_id"`
}

type SendSignalRequest struct {
	ArenaID    string `cbor:"arena_id"`
	SenderID   string `cbor:"sender_id"`
	ReceiverID string `cbor:"receiver_id"`
}

type SendSignalResponse struct {
	Outcome          string `cbor:"outcome"`
	MatchID          string `cbor:"match_id,omitempty"`
	SignalsRemaining int    `cbor:"signals_remaining"`
}

type ListActiveUsersRequest struct {
	ArenaID  string `cbor:"arena_id"`
	ViewerID string `cbor:"viewer_id"`
}

type RosterEntry struct {
	User            User  `cbor:"user"`
	ActivatedAtUnix int64 `cbor:"activated_at"`
}

type ListActiveUsersResponse struct {
	Users []RosterEntry `cbor:"users"`
}

type ListIncomingSignalsRequest struct {
	UserID          string  `cbor:"user_id"`
	ArenaID         string  `cbor:"arena_id"`
	PaginationToken *string `cbor:"pagination_token,omitempty"`
	Limit           int     `cbor:"limit,omitempty"`
}

type Signal struct {
	ID            string `cbor:"id"`
	SenderID      string `cbor:"sender_id"`
	CreatedAtUnix int64  `cbor:"created_at"`
}

type ListIncomingSignalsResponse struct {
	Signals             []Signal `cbor:"signals"`
	NextPaginationToken *string  `cbor:"next_pagination_token,omitempty"`
}

type CountIncomingSignalsRequest struct {
	UserID  string `cbor:"user_id"`
	ArenaID string `cbor:"arena_id"`
}

type CountIncomingSignalsResponse struct {
	Count uint64 `cbor:"count"`
}

type ListMatchesRequest struct {
	UserID  string `cbor:"user_id"`
	ArenaID string `cbor:"arena_id,omitempty"`
}

type Match struct {
	ID                  string   `cbor:"id"`
	ArenaID             string   `cbor:"arena_id"`
	OtherUserID         string   `cbor:"other_user_id"`
	State               string   `cbor:"state"`
	Unread              bool     `cbor:"unread"`
	CreatedAtUnix       int64    `cbor:"created_at"`
	ExpiresAtUnix       int64    `cbor:"expires_at,omitempty"`
	ExtendedBy          []string `cbor:"extended_by"`
	MetIRL              bool     `cbor:"met_irl"`
	MetIRLBy            []string `cbor:"met_irl_by"`
	LastMessage         string   `cbor:"last_message,omitempty"`
	LastMessageAtUnix   int64    `cbor:"last_message_at,omitempty"`
	LastMessageSenderID string   `cbor:"last_message_sender_id,omitempty"`
}

type ListMatchesResponse struct {
	Matches []Match `cbor:"matches"`
}

type ListMessagesRequest struct {
	MatchID         string  `cbor:"match_id"`
	UserID          string  `cbor:"user_id"`
	PaginationToken *string `cbor:"pagination_token,omitempty"`
	Limit           int     `cbor:"limit,omitempty"`
}

type Message struct {
	ID            string `cbor:"id"`
	SenderID      string `cbor:"sender_id"`
	Text          string `cbor:"text"`
	CreatedAtUnix int64  `cbor:"created_at"`
}

type ListMessagesResponse struct {
	Messages            []Message `cbor:"messages"`
	NextPaginationToken *string   `cbor:"next_pagination_token,omitempty"`
}

type SendMessageRequest struct {
	MatchID  string `cbor:"match_id"`
	SenderID string `cbor:"sender_id"`
	Text     string `cbor:"text"`
}

type SendMessageResponse struct {
	Message Message `cbor:"message"`
}

// MatchActionRequest is shared by the one-field match mutations.
type MatchActionRequest struct {
	MatchID string `cbor:"match_id"`
	UserID  string `cbor:"user_id"`
}

type MatchActionResponse struct {
	Match Match `cbor:"match"`
}

type MarkMetIRLResponse struct {
	Match   Match `cbor:"match"`
	Awarded bool  `cbor:"awarded"`
}

type BlockRequest struct {
	UserID        string `cbor:"user_id"`
	BlockedUserID string `cbor:"blocked_user_id"`
}

type ReportRequest struct {
	ReporterID string `cbor:"reporter_id"`
	TargetID   string `cbor:"target_id"`
	Reason     string `cbor:"reason"`
}

type ReportResponse struct {
	ReportID    string `cbor:"report_id"`
	ReportCount int    `cbor:"report_count"`
	Flagged     bool   `cbor:"flagged"`
}

// Watch views.
const (
	ViewMatches = "matches"
	ViewSignals = "signals"
	ViewRoster  = "roster"
)

type WatchRequest struct {
	View    string `cbor:"view"`
	UserID  string `cbor:"user_id"`
	ArenaID string `cbor:"arena_id,omitempty"`
}

// Snapshot is one full state of the watched view; only the field named by
// View is set.
type Snapshot struct {
	View    string        `cbor:"view"`
	Matches []Match       `cbor:"matches,omitempty"`
	Signals []Signal      `cbor:"signals,omitempty"`
	Roster  []RosterEntry `cbor:"roster,omitempty"`
	Count   uint64        `cbor:"count"`
}

func toUser(u *db.User) User {
	out := User{
		ID:               u.ID,
		Name:             u.Name,
		Gender:           u.Gender,
		Sexuality:        u.Sexuality,
		DateOfBirth:      u.DateOfBirth,
		PhotoURL:         u.PhotoURL,
		PromptAnswer:     u.PromptAnswer,
		BraveryPoints:    u.BraveryPoints,
		Level:            u.Level,
		SignalsRemaining: u.SignalsRemaining,
		IsActiveInZone:   u.IsActiveInZone,
	}
	if u.ActiveArenaID != nil {
		out.ActiveArenaID = *u.ActiveArenaID
	}
	return out
}

func toArena(a *db.Arena, now time.Time) Arena {
	return Arena{
		ID:            a.ID,
		Name:          a.Name,
		Latitude:      a.Latitude,
		Longitude:     a.Longitude,
		Radius:        a.Radius,
		StartTimeUnix: a.StartTime.UnixMilli(),
		EndTimeUnix:   a.EndTime.UnixMilli(),
		IsActive:      a.IsActive,
		Open:          geo.ArenaOpen(now, a),
	}
}

func toRoster(entries []matching.RosterEntry) []RosterEntry {
	out := make([]RosterEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, RosterEntry{User: toUser(e.User), ActivatedAtUnix: e.ActivatedAt.UnixMilli()})
	}
	return out
}

func toSignals(signals []db.Signal) []Signal {
	out := make([]Signal, 0, len(signals))
	for _, s := range signals {
		out = append(out, Signal{ID: s.ID, SenderID: s.SenderID, CreatedAtUnix: s.CreatedAt.UnixMilli()})
	}
	return out
}

func toMessage(m *db.Message) Message {
	return Message{ID: m.ID, SenderID: m.SenderID, Text: m.Text, CreatedAtUnix: m.CreatedAt.UnixMilli()}
}

func toMatch(v chat.MatchView) Match {
	m := v.Match
	out := Match{
		ID:                  m.ID,
		ArenaID:             m.ArenaID,
		OtherUserID:         v.OtherID,
		State:               v.State.String(),
		Unread:              v.Unread,
		CreatedAtUnix:       m.CreatedAt.UnixMilli(),
		ExtendedBy:          nonNil(m.ExtendedBy),
		MetIRL:              m.MetIRL,
		MetIRLBy:            nonNil(m.MetIRLBy),
		LastMessage:         m.LastMessage,
		LastMessageSenderID: m.LastMessageSenderID,
	}
	if v.ExpiresAt != nil {
		out.ExpiresAtUnix = v.ExpiresAt.UnixMilli()
	}
	if m.LastMessageAt != nil {
		out.LastMessageAtUnix = m.LastMessageAt.UnixMilli()
	}
	return out
}

func nonNil(s db.StringSet) []string {
	if s == nil {
		return []string{}
	}
	return []string(s)
}
