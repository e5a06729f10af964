// Package chat implements the per-match chat lifecycle: the ten minute
// window, mutual extension, archiving, unmatching, read markers and the
// met in person declaration.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/oggyb/arena-signals/internal/bravery"
	"github.com/oggyb/arena-signals/internal/db"
	"github.com/oggyb/arena-signals/internal/repository"
	"github.com/oggyb/arena-signals/internal/store"
)

// MaxMessageLength is counted in runes.
const MaxMessageLength = 2048

var (
	ErrMatchNotFound  = errors.New("match not found")
	ErrNotParticipant = errors.New("not a participant of this match")
	ErrChatExpired    = errors.New("chat expired, both participants must extend")
	ErrUnmatched      = errors.New("match was unmatched")
	ErrEmptyMessage   = errors.New("message is empty")
	ErrMessageTooLong = errors.New("message is too long")
)

type Service struct {
	store   *store.Store
	matches *repository.MatchRepository
	log     *slog.Logger
}

func New(st *store.Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:   st,
		matches: repository.NewMatchRepository(st.DB()),
		log:     log,
	}
}

// MatchView is a match as seen by one participant.
type MatchView struct {
	Match     db.Match
	OtherID   string
	State     State
	Unread    bool
	ExpiresAt *time.Time
}

// ViewOf evaluates m for viewer at now.
func ViewOf(m *db.Match, viewer string, now time.Time) MatchView {
	return MatchView{
		Match:     *m,
		OtherID:   m.Other(viewer),
		State:     StateOf(m, now),
		Unread:    Unread(m, viewer),
		ExpiresAt: ExpiresAt(m),
	}
}

// Now is the clock used for chat state.
func (s *Service) Now() time.Time { return s.store.Now() }

// mutate loads the match through a store transaction, checks that uid takes
// part in it and hands it to fn. The returned match is the committed state.
func (s *Service) mutate(
	ctx context.Context,
	matchID, uid string,
	fn func(ctx context.Context, tx *store.Tx, m *db.Match) error,
) (*db.Match, error) {
	var out db.Match
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx *store.Tx) error {
		m := &db.Match{Doc: db.Doc{ID: matchID}}
		found, err := tx.Get(ctx, m)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %s", ErrMatchNotFound, matchID)
		}
		if !m.HasParticipant(uid) {
			return ErrNotParticipant
		}
		if m.LastReadBy == nil {
			m.LastReadBy = map[string]time.Time{}
		}
		if err := fn(ctx, tx, m); err != nil {
			return err
		}
		out = *m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SendMessage appends a message and updates the match preview. It is
// rejected once the chat expired without a mutual extension, or after an
// unmatch.
func (s *Service) SendMessage(ctx context.Context, matchID, senderID, text string) (*db.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return nil, ErrMessageTooLong
	}

	id := uuid.NewString()
	var msg db.Message
	_, err := s.mutate(ctx, matchID, senderID, func(ctx context.Context, tx *store.Tx, m *db.Match) error {
		now := tx.Now()
		switch StateOf(m, now) {
		case StateUnmatched:
			return ErrUnmatched
		case StateExpiredPendingExtension:
			return ErrChatExpired
		}

		msg = db.Message{
			Doc:       db.Doc{ID: id},
			MatchID:   matchID,
			SenderID:  senderID,
			Text:      text,
			CreatedAt: now,
		}
		if err := tx.Set(&msg); err != nil {
			return err
		}

		m.LastMessage = text
		m.LastMessageAt = &now
		m.LastMessageSenderID = senderID
		m.LastReadBy[senderID] = now
		m.UpdatedAt = now
		return tx.Set(m)
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("message sent", "match", matchID, "sender", senderID)
	return &msg, nil
}

// Extend records uid's wish to keep chatting. Once both participants
// extended the chat never expires.
func (s *Service) Extend(ctx context.Context, matchID, uid string) (*db.Match, error) {
	return s.mutate(ctx, matchID, uid, func(ctx context.Context, tx *store.Tx, m *db.Match) error {
		if m.Unmatched {
			return ErrUnmatched
		}
		if !m.ExtendedBy.Add(uid) {
			return nil
		}
		m.UpdatedAt = tx.Now()
		return tx.Set(m)
	})
}

// Archive hides the match from uid only.
func (s *Service) Archive(ctx context.Context, matchID, uid string) (*db.Match, error) {
	return s.mutate(ctx, matchID, uid, func(ctx context.Context, tx *store.Tx, m *db.Match) error {
		if !m.ArchivedBy.Add(uid) {
			return nil
		}
		m.UpdatedAt = tx.Now()
		return tx.Set(m)
	})
}

// Unmatch ends the match for both sides. It is terminal; repeating it is a no-op.
func (s *Service) Unmatch(ctx context.Context, matchID, uid string) (*db.Match, error) {
	return s.mutate(ctx, matchID, uid, func(ctx context.Context, tx *store.Tx, m *db.Match) error {
		if m.Unmatched {
			return nil
		}
		now := tx.Now()
		m.Unmatched = true
		m.UnmatchedBy.Add(uid)
		m.UnmatchedAt = &now
		m.UpdatedAt = now
		return tx.Set(m)
	})
}

// MarkRead stamps uid's read marker with the current time.
func (s *Service) MarkRead(ctx context.Context, matchID, uid string) (*db.Match, error) {
	return s.mutate(ctx, matchID, uid, func(ctx context.Context, tx *store.Tx, m *db.Match) error {
		now := tx.Now()
		m.LastReadBy[uid] = now
		m.UpdatedAt = now
		return tx.Set(m)
	})
}

// MarkMetIRL declares that uid met the other participant in person. It
// reports whether this call completed the pair and paid the bravery bonus.
func (s *Service) MarkMetIRL(ctx context.Context, matchID, uid string) (*db.Match, bool, error) {
	var awarded bool
	m, err := s.mutate(ctx, matchID, uid, func(ctx context.Context, tx *store.Tx, m *db.Match) error {
		if m.Unmatched {
			return ErrUnmatched
		}
		m.UpdatedAt = tx.Now()
		var err error
		awarded, err = bravery.AwardMetIRL(ctx, tx, m, uid)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if awarded {
		s.log.Info("met in person bonus awarded", "match", matchID)
	}
	return m, awarded, nil
}

// ListMatches returns the matches uid sees: unmatched and self-archived
// ones are left out. An empty arenaID lists every arena.
func (s *Service) ListMatches(ctx context.Context, uid, arenaID string) ([]MatchView, error) {
	matches, err := s.matches.ListForUser(ctx, uid, arenaID)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}

	now := s.store.Now()
	out := make([]MatchView, 0, len(matches))
	for i := range matches {
		m := &matches[i]
		if m.ArchivedBy.Has(uid) {
			continue
		}
		out = append(out, ViewOf(m, uid, now))
	}
	return out, nil
}

// ListMessages pages the conversation in ascending order. Only participants
// may read it.
func (s *Service) ListMessages(ctx context.Context, matchID, uid string, pageToken *string, limit int) ([]db.Message, *string, error) {
	var m db.Match
	if err := s.store.DB().WithContext(ctx).Limit(1).Find(&m, "id = ?", matchID).Error; err != nil {
		return nil, nil, err
	}
	if m.ID == "" {
		return nil, nil, fmt.Errorf("%w: %s", ErrMatchNotFound, matchID)
	}
	if !m.HasParticipant(uid) {
		return nil, nil, ErrNotParticipant
	}
	if limit <= 0 {
		limit = 50
	}
	return s.matches.ListMessages(ctx, matchID, pageToken, limit)
}
