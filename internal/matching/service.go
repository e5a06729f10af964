// Package matching implements arena activation, the signal budget and the
// reciprocal signal to match protocol.
//
// Both the client send path (TrySend) and the server-side reaction to a
// newly written signal (Reconcile) run the same resolver inside a store
// transaction. Because the match id depends only on the arena and the
// sorted pair, the two paths contend on one document and whichever commits
// second finds the match already present.
package matching

import (
	"context"
	"log/slog"

	"github.com/oggyb/arena-signals/internal/notify"
	"github.com/oggyb/arena-signals/internal/repository"
	"github.com/oggyb/arena-signals/internal/store"
)

// SignalBudget is granted on every activation.
const SignalBudget = 3

// CountCache is the cache in front of incoming signal counts.
type CountCache interface {
	GetIncomingCount(ctx context.Context, arenaID, receiverID string) (int64, bool, error)
	SetIncomingCount(ctx context.Context, arenaID, receiverID string, n int64) error
	InvalidateIncomingCount(ctx context.Context, arenaID string, receiverIDs ...string) error
}

type Deps struct {
	Store    *store.Store
	Notifier notify.Dispatcher
	// Counts is optional.
	Counts CountCache
	Logger *slog.Logger
}

type Service struct {
	store    *store.Store
	signals  *repository.SignalRepository
	roster   *repository.RosterRepository
	notifier notify.Dispatcher
	counts   CountCache
	log      *slog.Logger
}

func New(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Notifier == nil {
		d.Notifier = notify.Noop{Log: d.Logger}
	}
	return &Service{
		store:    d.Store,
		signals:  repository.NewSignalRepository(d.Store.DB()),
		roster:   repository.NewRosterRepository(d.Store.DB()),
		notifier: d.Notifier,
		counts:   d.Counts,
		log:      d.Logger,
	}
}

func (s *Service) invalidateCounts(ctx context.Context, arenaID string, receiverIDs ...string) {
	if s.counts == nil {
		return
	}
	if err := s.counts.InvalidateIncomingCount(ctx, arenaID, receiverIDs...); err != nil {
		s.log.Warn("failed to invalidate incoming count", "arena", arenaID, "err", err)
	}
}
