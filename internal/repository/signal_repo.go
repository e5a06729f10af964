package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/arena-signals/internal/db"
	"github.com/oggyb/arena-signals/internal/utils/pagination"
)

// SignalRepository provides read-side queries over the signals table.
// Writes go through the store so they take part in conflict detection.
type SignalRepository struct {
	db *gorm.DB
}

// NewSignalRepository creates a new repository bound to the given DB connection.
func NewSignalRepository(database *gorm.DB) *SignalRepository {
	return &SignalRepository{db: database}
}

// ListIncoming returns signals addressed to receiverID in arenaID created
// inside [from, to].
//
// Behavior:
//   - Ordered by created_at DESC, id DESC.
//   - Supports cursor-based pagination via paginationToken.
//
// Example:
//
//	repo.ListIncoming(ctx, "quad", "u1", start, end, nil, 20)
func (r *SignalRepository) ListIncoming(
	ctx context.Context,
	arenaID, receiverID string,
	from, to time.Time,
	paginationToken *string,
	limit int,
) ([]db.Signal, *string, error) {
	var signals []db.Signal

	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).
		Where("arena_id = ? AND receiver_id = ?", arenaID, receiverID).
		Where("created_at >= ? AND created_at <= ?", from, to).
		Order("created_at DESC, id DESC").
		Limit(limit + 1)

	// apply cursor
	if !cursor.IsZero() {
		ts := cursor.Time()
		query = query.Where(
			"(created_at < ? OR (created_at = ? AND id < ?))",
			ts, ts, cursor.ID,
		)
	}

	if err := query.Find(&signals).Error; err != nil {
		return nil, nil, err
	}

	var nextToken *string
	if len(signals) > limit {
		last := signals[limit-1]
		token, _ := pagination.Encode(pagination.After(last.ID, last.CreatedAt))
		nextToken = &token
		signals = signals[:limit]
	}

	return signals, nextToken, nil
}

// CountIncoming counts what ListIncoming would return across all pages.
// Used in conjunction with Redis cache (DB is fallback).
func (r *SignalRepository) CountIncoming(
	ctx context.Context,
	arenaID, receiverID string,
	from, to time.Time,
) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Signal{}).
		Where("arena_id = ? AND receiver_id = ?", arenaID, receiverID).
		Where("created_at >= ? AND created_at <= ?", from, to).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ListStale returns up to limit signals that can no longer be matched:
// their arena is gone, they were created outside the arena's current
// window, or that window has already ended at now.
func (r *SignalRepository) ListStale(ctx context.Context, now time.Time, limit int) ([]db.Signal, error) {
	var signals []db.Signal
	err := r.db.WithContext(ctx).
		Table("signals s").
		Select("s.*").
		Joins("LEFT JOIN arenas a ON a.id = s.arena_id").
		Where("a.id IS NULL OR s.created_at < a.start_time OR s.created_at > a.end_time OR a.end_time < ?", now).
		Order("s.created_at ASC, s.id ASC").
		Limit(limit).
		Find(&signals).Error
	return signals, err
}

// getString safely dereferences a string pointer for pagination tokens.
func getString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
