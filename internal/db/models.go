package db

import (
	"slices"
	"time"
)

// Doc is the versioned document header shared by every table.
//
// ID is the deterministic document key (see keys.go) and Version is bumped
// by the store on every committed write. A row that does not exist is
// treated as version 0.
type Doc struct {
	ID      string `gorm:"primaryKey;size:191"`
	Version int64  `gorm:"not null"`
}

func (d *Doc) DocID() string { return d.ID }
func (d *Doc) DocVersion() int64 { return d.Version }
func (d *Doc) SetDocVersion(v int64) { d.Version = v }

// StringSet is an ordered set of ids stored as a JSON array.
type StringSet []string

func (s StringSet) Has(v string) bool { return slices.Contains(s, v) }

// Add appends v unless present and reports whether the set changed.
func (s *StringSet) Add(v string) bool {
	if s.Has(v) {
		return false
	}
	*s = append(*s, v)
	return true
}

// Sexuality values. Empty is treated as Straight.
const (
	SexualityStraight = "Straight"
	SexualityGay      = "Gay"
	SexualityLesbian  = "Lesbian"
	SexualityBisexual = "Bisexual"
)

// User is the profile document at users/{uid}.
//
// SignalsRemaining and ActiveArenaID are a cache of the ActiveUser record;
// the ActiveUser row is the authority and both are changed in the same
// transaction.
type User struct {
	Doc
	Name             string  `gorm:"size:128"`
	Email            string  `gorm:"size:128;index"`
	Gender           string  `gorm:"size:16"`
	Sexuality        string  `gorm:"size:16"`
	DateOfBirth      string  `gorm:"size:32"`
	PhotoURL         string  `gorm:"size:512"`
	PromptAnswer     string  `gorm:"size:512"`
	BraveryPoints    int     `gorm:"not null"`
	Level            int     `gorm:"not null"`
	SignalsRemaining int     `gorm:"not null"`
	IsActiveInZone   bool    `gorm:"not null"`
	ActiveArenaID    *string `gorm:"size:191"`
	LastActivationAt *time.Time
	PushToken        string    `gorm:"size:255"`
	BlockedUserIDs   StringSet `gorm:"serializer:json"`
	ReportCount      int       `gorm:"not null"`
	Flagged          bool      `gorm:"not null"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (User) TableName() string { return "users" }

// Blocks reports whether either user has blocked the other.
func (u *User) Blocks(other *User) bool {
	return u.BlockedUserIDs.Has(other.ID) || other.BlockedUserIDs.Has(u.ID)
}

// Arena is an operator-defined geofenced, time-windowed matching context.
// Radius is in meters; StartTime/EndTime bound the activation window (inclusive).
type Arena struct {
	Doc
	Name      string  `gorm:"size:128;not null"`
	Latitude  float64 `gorm:"not null"`
	Longitude float64 `gorm:"not null"`
	Radius    float64 `gorm:"not null"`
	StartTime time.Time
	EndTime   time.Time
	IsActive  bool `gorm:"not null;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Arena) TableName() string { return "arenas" }

// ActiveUser is arenas/{arenaId}/activeUsers/{uid}.
// Its existence is the proof that the user is active in the arena.
type ActiveUser struct {
	Doc
	ArenaID          string `gorm:"size:191;not null;index:idx_active_arena_user,priority:1"`
	UserID           string `gorm:"size:191;not null;index:idx_active_arena_user,priority:2"`
	SignalsRemaining int    `gorm:"not null"`
	ActivatedAt      time.Time
}

func (ActiveUser) TableName() string { return "active_users" }

// Signal is a one-way "sender wants receiver" within an arena.
//
// Indexes:
//   - idx_signal_receiver(arena_id, receiver_id, created_at)
//     Optimizes the incoming-signals view.
type Signal struct {
	Doc
	ArenaID    string    `gorm:"size:191;not null;index:idx_signal_receiver,priority:1"`
	SenderID   string    `gorm:"size:191;not null"`
	ReceiverID string    `gorm:"size:191;not null;index:idx_signal_receiver,priority:2"`
	CreatedAt  time.Time `gorm:"index:idx_signal_receiver,priority:3"`
}

func (Signal) TableName() string { return "signals" }

// Match is the durable record for a reciprocal pair. UserA < UserB always.
type Match struct {
	Doc
	ArenaID             string    `gorm:"size:191;not null;index"`
	UserA               string    `gorm:"size:191;not null;index"`
	UserB               string    `gorm:"size:191;not null;index"`
	Participants        StringSet `gorm:"serializer:json"`
	CreatedAt           time.Time
	MetIRL              bool      `gorm:"not null"`
	MetIRLBy            StringSet `gorm:"serializer:json"`
	MetIRLAwarded       bool      `gorm:"not null"`
	ExtendedBy          StringSet `gorm:"serializer:json"`
	LastMessage         string    `gorm:"size:1024"`
	LastMessageAt       *time.Time
	LastMessageSenderID string               `gorm:"size:191"`
	LastReadBy          map[string]time.Time `gorm:"serializer:json"`
	ArchivedBy          StringSet            `gorm:"serializer:json"`
	Unmatched           bool                 `gorm:"not null"`
	UnmatchedBy         StringSet            `gorm:"serializer:json"`
	UnmatchedAt         *time.Time
	UpdatedAt           time.Time
}

func (Match) TableName() string { return "matches" }

// HasParticipant reports whether uid is one of the two matched users.
func (m *Match) HasParticipant(uid string) bool {
	return m.UserA == uid || m.UserB == uid
}

// Other returns the participant that is not uid.
func (m *Match) Other(uid string) string {
	if m.UserA == uid {
		return m.UserB
	}
	return m.UserA
}

// Message belongs to matches/{matchId}/messages. Append-only.
type Message struct {
	Doc
	MatchID   string    `gorm:"size:191;not null;index:idx_message_match_created,priority:1"`
	SenderID  string    `gorm:"size:191;not null"`
	Text      string    `gorm:"size:2048;not null"`
	CreatedAt time.Time `gorm:"index:idx_message_match_created,priority:2"`
}

func (Message) TableName() string { return "messages" }

// Report is a moderation report filed against a user.
type Report struct {
	Doc
	ReporterID string `gorm:"size:191;not null"`
	TargetID   string `gorm:"size:191;not null;index"`
	Reason     string `gorm:"size:512"`
	CreatedAt  time.Time
}

func (Report) TableName() string { return "reports" }

// Models lists every table for AutoMigrate.
func Models() []any {
	return []any{
		&User{}, &Arena{}, &ActiveUser{}, &Signal{}, &Match{}, &Message{}, &Report{},
	}
}
