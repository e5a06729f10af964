// Package cleanup purges one-way signals that can no longer become a match.
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oggyb/arena-signals/internal/db"
	"github.com/oggyb/arena-signals/internal/matching"
	"github.com/oggyb/arena-signals/internal/repository"
	"github.com/oggyb/arena-signals/internal/store"
)

const defaultBatch = 200

type countInvalidator interface {
	InvalidateIncomingCount(ctx context.Context, arenaID string, receiverIDs ...string) error
}

type Job struct {
	store   *store.Store
	signals *repository.SignalRepository
	counts  countInvalidator
	batch   int
	now     func() time.Time
	logger  *slog.Logger
}

// New builds the job. counts may be nil.
func New(st *store.Store, counts countInvalidator, logger *slog.Logger) *Job {
	if logger == nil {
		logger = slog.Default()
	}
	return &Job{
		store:   st,
		signals: repository.NewSignalRepository(st.DB()),
		counts:  counts,
		batch:   defaultBatch,
		now:     st.Now,
		logger:  logger,
	}
}

// Run deletes every stale signal and returns how many were removed.
//
// Candidates come from a plain query; each deletion then re-reads the
// signal and its arena inside its own store transaction, so a signal that
// a concurrent resolver consumed or that became valid again is left alone.
func (j *Job) Run(ctx context.Context) (int, error) {
	now := j.now()
	total := 0
	for {
		candidates, err := j.signals.ListStale(ctx, now, j.batch)
		if err != nil {
			return total, fmt.Errorf("list stale signals: %w", err)
		}

		deleted := 0
		for i := range candidates {
			ok, err := j.purge(ctx, candidates[i].ID)
			if err != nil {
				return total, fmt.Errorf("purge signal %s: %w", candidates[i].ID, err)
			}
			if ok {
				deleted++
				j.invalidate(ctx, &candidates[i])
			}
		}
		total += deleted

		if len(candidates) < j.batch || deleted == 0 {
			break
		}
	}

	if total > 0 {
		j.logger.Info("cleanup stale signals completed", "deleted", total)
	}
	return total, nil
}

func (j *Job) purge(ctx context.Context, signalID string) (bool, error) {
	deleted := false
	err := j.store.RunTransaction(ctx, func(ctx context.Context, tx *store.Tx) error {
		deleted = false

		sig := &db.Signal{Doc: db.Doc{ID: signalID}}
		found, err := tx.Get(ctx, sig)
		if err != nil || !found {
			return err
		}

		arena := &db.Arena{Doc: db.Doc{ID: sig.ArenaID}}
		arenaFound, err := tx.Get(ctx, arena)
		if err != nil {
			return err
		}
		if arenaFound && !matching.SignalStale(sig, arena) && !tx.Now().After(arena.EndTime) {
			return nil
		}

		deleted = true
		return tx.Delete(sig)
	})
	return deleted, err
}

func (j *Job) invalidate(ctx context.Context, sig *db.Signal) {
	if j.counts == nil {
		return
	}
	if err := j.counts.InvalidateIncomingCount(ctx, sig.ArenaID, sig.ReceiverID); err != nil {
		j.logger.Warn("failed to invalidate incoming count", "arena", sig.ArenaID, "err", err)
	}
}

// Loop runs the job every interval until ctx is done. Failed runs are
// logged and retried on the next tick.
func (j *Job) Loop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := j.Run(ctx); err != nil {
				j.logger.Error("cleanup stale signals failed", "err", err)
			}
		}
	}
}
