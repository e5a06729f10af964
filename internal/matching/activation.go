package matching

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/oggyb/arena-signals/internal/arenas"
	"github.com/oggyb/arena-signals/internal/bravery"
	"github.com/oggyb/arena-signals/internal/db"
	"github.com/oggyb/arena-signals/internal/geo"
	"github.com/oggyb/arena-signals/internal/store"
)

// Activation is the state after a successful activate.
type Activation struct {
	ArenaID          string
	SignalsRemaining int
	BraveryPoints    int
	Level            int
	// Reactivated is true when the user was already active in this arena;
	// the budget was reset but no points were credited.
	Reactivated bool
}

// Activate puts uid on the arena roster with a fresh signal budget.
//
// A first activation credits ActivationPoints. Activating again into the
// same arena only resets the budget. The ActiveUser row decides whether
// the user is active elsewhere; a stale activeArenaId on the profile whose
// row is gone does not block.
func (s *Service) Activate(ctx context.Context, uid, arenaID string) (*Activation, error) {
	var out Activation
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx *store.Tx) error {
		u, found, err := loadUser(ctx, tx, uid)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %s", ErrUserNotFound, uid)
		}

		arena := &db.Arena{Doc: db.Doc{ID: arenaID}}
		if found, err := tx.Get(ctx, arena); err != nil {
			return err
		} else if !found {
			return fmt.Errorf("%w: %s", arenas.ErrNotFound, arenaID)
		}

		if u.ActiveArenaID != nil && *u.ActiveArenaID != arenaID {
			other := &db.ActiveUser{Doc: db.Doc{ID: db.ActiveUserID(*u.ActiveArenaID, uid)}}
			stillActive, err := tx.Get(ctx, other)
			if err != nil {
				return err
			}
			if stillActive {
				return fmt.Errorf("%w: %s", ErrAlreadyActiveElsewhere, *u.ActiveArenaID)
			}
		}

		now := tx.Now()
		au := &db.ActiveUser{Doc: db.Doc{ID: db.ActiveUserID(arenaID, uid)}}
		existed, err := tx.Get(ctx, au)
		if err != nil {
			return err
		}
		au.ArenaID = arenaID
		au.UserID = uid
		au.SignalsRemaining = SignalBudget
		// Re-entering the same arena only refills the budget; the
		// activation points are paid on the first entry alone.
		if !existed {
			au.ActivatedAt = now
			bravery.Apply(u, bravery.ActivationPoints)
		}

		u.IsActiveInZone = true
		u.ActiveArenaID = &arenaID
		u.SignalsRemaining = SignalBudget
		u.LastActivationAt = &now
		u.UpdatedAt = now

		if err := tx.Set(au); err != nil {
			return err
		}
		if err := tx.Set(u); err != nil {
			return err
		}

		out = Activation{
			ArenaID:          arenaID,
			SignalsRemaining: SignalBudget,
			BraveryPoints:    u.BraveryPoints,
			Level:            u.Level,
			Reactivated:      existed,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("user activated", "user", uid, "arena", arenaID, "reactivated", out.Reactivated)
	return &out, nil
}

// Deactivate removes uid from the arena roster. No-op if not active there.
func (s *Service) Deactivate(ctx context.Context, uid, arenaID string) error {
	return s.store.RunTransaction(ctx, func(ctx context.Context, tx *store.Tx) error {
		au := &db.ActiveUser{Doc: db.Doc{ID: db.ActiveUserID(arenaID, uid)}}
		active, err := tx.Get(ctx, au)
		if err != nil {
			return err
		}
		if active {
			if err := tx.Delete(au); err != nil {
				return err
			}
		}

		u, found, err := loadUser(ctx, tx, uid)
		if err != nil {
			return err
		}
		if !found {
			return nil
		}
		// only clear the profile cache when it points at this arena
		if u.ActiveArenaID == nil || *u.ActiveArenaID != arenaID {
			return nil
		}
		u.IsActiveInZone = false
		u.ActiveArenaID = nil
		u.SignalsRemaining = 0
		u.UpdatedAt = tx.Now()
		return tx.Set(u)
	})
}

// Enter checks arena eligibility for the reported position and activates.
func (s *Service) Enter(ctx context.Context, uid, arenaID string, pos geo.PositionProvider) (*Activation, error) {
	p, err := pos.CurrentPosition(ctx)
	if err != nil {
		return nil, err
	}

	var arena db.Arena
	err = s.store.DB().WithContext(ctx).Take(&arena, "id = ?", arenaID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", arenas.ErrNotFound, arenaID)
	}
	if err != nil {
		return nil, err
	}

	if !geo.ArenaOpen(s.store.Now(), &arena) {
		return nil, fmt.Errorf("%w: %s", ErrArenaClosed, arenaID)
	}
	if inside, d := geo.IsInsideArena(p, &arena); !inside {
		return nil, &OutsideArenaError{Distance: d, Radius: arena.Radius}
	}

	return s.Activate(ctx, uid, arenaID)
}
