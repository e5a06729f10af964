// Package bravery keeps the bravery point ledger and derives levels.
//
// Credits are always applied inside the transaction of the event that
// earns them, so two concurrent credits to one user are serialized by the
// store instead of overwriting each other.
package bravery

import (
	"context"
	"errors"
	"fmt"

	"github.com/oggyb/arena-signals/internal/db"
	"github.com/oggyb/arena-signals/internal/store"
)

const (
	ActivationPoints = 10
	MatchPoints      = 20
	MetIRLPoints     = 30
)

var ErrUserNotFound = errors.New("user not found")

// LevelOf maps points to the four-tier rank.
func LevelOf(points int) int {
	switch {
	case points >= 300:
		return 4
	case points >= 150:
		return 3
	case points >= 50:
		return 2
	default:
		return 1
	}
}

// Apply adds delta to u and recomputes its level. Points never go below zero.
func Apply(u *db.User, delta int) {
	u.BraveryPoints += delta
	if u.BraveryPoints < 0 {
		u.BraveryPoints = 0
	}
	u.Level = LevelOf(u.BraveryPoints)
}

// Credit reads the user through tx, applies delta and buffers the write.
func Credit(ctx context.Context, tx *store.Tx, userID string, delta int) (*db.User, error) {
	u := &db.User{Doc: db.Doc{ID: userID}}
	found, err := tx.Get(ctx, u)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("credit %s: %w", userID, ErrUserNotFound)
	}
	Apply(u, delta)
	if err := tx.Set(u); err != nil {
		return nil, err
	}
	return u, nil
}

// AwardMetIRL records that userID met the other participant in person.
//
// Once both participants have declared it, each is credited MetIRLPoints
// and MetIRLAwarded is set; the flag keeps later declarations from paying
// out again. The caller must have loaded m through tx and checked that
// userID participates. It reports whether this call paid out.
func AwardMetIRL(ctx context.Context, tx *store.Tx, m *db.Match, userID string) (bool, error) {
	m.MetIRL = true
	m.MetIRLBy.Add(userID)

	awarded := false
	if len(m.MetIRLBy) >= 2 && !m.MetIRLAwarded {
		for _, uid := range m.MetIRLBy {
			if _, err := Credit(ctx, tx, uid, MetIRLPoints); err != nil {
				return false, err
			}
		}
		m.MetIRLAwarded = true
		awarded = true
	}

	if err := tx.Set(m); err != nil {
		return false, err
	}
	return awarded, nil
}
