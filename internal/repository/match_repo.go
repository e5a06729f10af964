package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/oggyb/arena-signals/internal/db"
	"github.com/oggyb/arena-signals/internal/utils/pagination"
)

// MatchRepository provides read-side queries for matches and their messages.
type MatchRepository struct {
	db *gorm.DB
}

func NewMatchRepository(database *gorm.DB) *MatchRepository {
	return &MatchRepository{db: database}
}

// ListForUser returns the live matches uid takes part in, most recently
// active first. An empty arenaID lists every arena.
func (r *MatchRepository) ListForUser(ctx context.Context, uid, arenaID string) ([]db.Match, error) {
	var out []db.Match
	query := r.db.WithContext(ctx).
		Where("(user_a = ? OR user_b = ?) AND unmatched = ?", uid, uid, false).
		Order("COALESCE(last_message_at, created_at) DESC, id ASC")
	if arenaID != "" {
		query = query.Where("arena_id = ?", arenaID)
	}
	err := query.Find(&out).Error
	return out, err
}

// ListMessages pages the messages of a match in ascending creation order.
//
// Example:
//
//	msgs, next, err := repo.ListMessages(ctx, "quad_a_b", nil, 50)
func (r *MatchRepository) ListMessages(
	ctx context.Context,
	matchID string,
	paginationToken *string,
	limit int,
) ([]db.Message, *string, error) {
	var msgs []db.Message

	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Order("created_at ASC, id ASC").
		Limit(limit + 1)

	if !cursor.IsZero() {
		ts := cursor.Time()
		query = query.Where(
			"(created_at > ? OR (created_at = ? AND id > ?))",
			ts, ts, cursor.ID,
		)
	}

	if err := query.Find(&msgs).Error; err != nil {
		return nil, nil, err
	}

	var nextToken *string
	if len(msgs) > limit {
		last := msgs[limit-1]
		token, _ := pagination.Encode(pagination.After(last.ID, last.CreatedAt))
		nextToken = &token
		msgs = msgs[:limit]
	}

	return msgs, nextToken, nil
}
