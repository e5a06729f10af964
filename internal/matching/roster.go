package matching

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oggyb/arena-signals/internal/arenas"
	"github.com/oggyb/arena-signals/internal/db"
	"github.com/oggyb/arena-signals/internal/geo"
)

const (
	genderMale   = "male"
	genderFemale = "female"
)

// interestedIn reports whether u's stated sexuality admits other's gender.
func interestedIn(u, other *db.User) bool {
	mine := strings.ToLower(u.Gender)
	theirs := strings.ToLower(other.Gender)
	if theirs != genderMale && theirs != genderFemale {
		return false
	}

	switch u.Sexuality {
	case db.SexualityGay:
		return theirs == genderMale
	case db.SexualityLesbian:
		return theirs == genderFemale
	case db.SexualityBisexual:
		return true
	default:
		return (mine == genderMale && theirs == genderFemale) || (mine == genderFemale && theirs == genderMale)
	}
}

// Compatible reports mutual interest between two profiles.
func Compatible(a, b *db.User) bool {
	return interestedIn(a, b) && interestedIn(b, a)
}

type RosterEntry struct {
	User        *db.User
	ActivatedAt time.Time
}

// ListActiveUsers returns the arena roster as seen by viewerID: without the
// viewer, without blocked users on either side, and only compatible profiles.
func (s *Service) ListActiveUsers(ctx context.Context, arenaID, viewerID string) ([]RosterEntry, error) {
	active, err := s.roster.ListActive(ctx, arenaID)
	if err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}

	ids := make([]string, 0, len(active)+1)
	ids = append(ids, viewerID)
	for _, au := range active {
		ids = append(ids, au.UserID)
	}
	users, err := s.roster.UsersByID(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load roster profiles: %w", err)
	}
	viewer, ok := users[viewerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, viewerID)
	}

	out := make([]RosterEntry, 0, len(active))
	for _, au := range active {
		u, ok := users[au.UserID]
		if !ok || u.ID == viewerID {
			continue
		}
		if viewer.Blocks(u) || !Compatible(viewer, u) {
			continue
		}
		out = append(out, RosterEntry{User: u, ActivatedAt: au.ActivatedAt})
	}
	return out, nil
}

// currentWindow loads the arena and reports whether its window is current.
func (s *Service) currentWindow(ctx context.Context, arenaID string) (*db.Arena, bool, error) {
	var arena db.Arena
	err := s.store.DB().WithContext(ctx).Limit(1).Find(&arena, "id = ?", arenaID).Error
	if err != nil {
		return nil, false, err
	}
	if arena.ID == "" {
		return nil, false, fmt.Errorf("%w: %s", arenas.ErrNotFound, arenaID)
	}
	return &arena, geo.IsWithinWindow(s.store.Now(), arena.StartTime, arena.EndTime), nil
}

// ListIncomingSignals returns signals waiting for uid in the arena, newest
// first. Outside the arena window the list is empty.
func (s *Service) ListIncomingSignals(ctx context.Context, uid, arenaID string, pageToken *string, limit int) ([]db.Signal, *string, error) {
	arena, open, err := s.currentWindow(ctx, arenaID)
	if err != nil {
		return nil, nil, err
	}
	if !open {
		return []db.Signal{}, nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	return s.signals.ListIncoming(ctx, arenaID, uid, arena.StartTime, arena.EndTime, pageToken, limit)
}

// CountIncomingSignals is cache-first; a miss falls back to the database and
// refills the cache.
func (s *Service) CountIncomingSignals(ctx context.Context, uid, arenaID string) (int64, error) {
	arena, open, err := s.currentWindow(ctx, arenaID)
	if err != nil {
		return 0, err
	}
	if !open {
		return 0, nil
	}

	if s.counts != nil {
		n, ok, err := s.counts.GetIncomingCount(ctx, arenaID, uid)
		if err != nil {
			s.log.Warn("incoming count cache read failed", "arena", arenaID, "user", uid, "err", err)
		} else if ok {
			return n, nil
		}
	}

	n, err := s.signals.CountIncoming(ctx, arenaID, uid, arena.StartTime, arena.EndTime)
	if err != nil {
		return 0, err
	}

	if s.counts != nil {
		if err := s.counts.SetIncomingCount(ctx, arenaID, uid, n); err != nil {
			s.log.Warn("incoming count cache write failed", "arena", arenaID, "user", uid, "err", err)
		}
	}
	return n, nil
}
