package matching

import (
	"context"
	"fmt"

	"github.com/oggyb/arena-signals/internal/db"
	"github.com/oggyb/arena-signals/internal/feed"
	"github.com/oggyb/arena-signals/internal/store"
)

// HandleEvent reconciles a signal written by any path. Other events are
// ignored and return a nil result.
func (s *Service) HandleEvent(ctx context.Context, ev feed.Event) (*Result, error) {
	if ev.Collection != (db.Signal{}).TableName() {
		return nil, nil
	}
	if ev.Op != store.OpCreated && ev.Op != store.OpUpdated {
		return nil, nil
	}

	var sig db.Signal
	if err := ev.Decode(&sig); err != nil {
		return nil, fmt.Errorf("decode signal %s: %w", ev.ID, err)
	}
	return s.Reconcile(ctx, sig.ArenaID, sig.SenderID, sig.ReceiverID)
}

// RunTrigger consumes events until ctx is done or the channel closes.
// Failures are logged; the next write to the pair re-triggers the check.
func (s *Service) RunTrigger(ctx context.Context, events <-chan feed.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			res, err := s.HandleEvent(ctx, ev)
			if err != nil {
				s.log.Error("signal trigger failed", "signal", ev.ID, "err", err)
				continue
			}
			if res != nil && res.Outcome == OutcomeMatched {
				s.log.Info("match created by trigger", "match", res.MatchID)
			}
		}
	}
}
