package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/oggyb/arena-signals/internal/db"
)

// RosterRepository reads arena activations and the profiles behind them.
type RosterRepository struct {
	db *gorm.DB
}

func NewRosterRepository(database *gorm.DB) *RosterRepository {
	return &RosterRepository{db: database}
}

// ListActive returns every activation in the arena, oldest first.
func (r *RosterRepository) ListActive(ctx context.Context, arenaID string) ([]db.ActiveUser, error) {
	var out []db.ActiveUser
	err := r.db.WithContext(ctx).
		Where("arena_id = ?", arenaID).
		Order("activated_at ASC, user_id ASC").
		Find(&out).Error
	return out, err
}

// UsersByID loads profiles keyed by id. Unknown ids are absent from the map.
func (r *RosterRepository) UsersByID(ctx context.Context, ids []string) (map[string]*db.User, error) {
	out := make(map[string]*db.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var users []db.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for i := range users {
		out[users[i].ID] = &users[i]
	}
	return out, nil
}
