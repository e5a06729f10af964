package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oggyb/arena-signals/internal/arenas"
	"github.com/oggyb/arena-signals/internal/bravery"
	"github.com/oggyb/arena-signals/internal/db"
	"github.com/oggyb/arena-signals/internal/geo"
	"github.com/oggyb/arena-signals/internal/notify"
	"github.com/oggyb/arena-signals/internal/store"
)

type Outcome int

const (
	// OutcomePending means the signal is stored and waits for its mirror.
	OutcomePending Outcome = iota
	// OutcomeMatched means this call created the match.
	OutcomeMatched
	// OutcomeAlreadyMatched means the pair was matched before; any lingering
	// signal was removed.
	OutcomeAlreadyMatched
	// OutcomeNoop means there was nothing to reconcile.
	OutcomeNoop
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeMatched:
		return "matched"
	case OutcomeAlreadyMatched:
		return "already_matched"
	case OutcomeNoop:
		return "noop"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

type Result struct {
	Outcome          Outcome
	MatchID          string
	SignalsRemaining int
}

type resolution struct {
	Result
	// tokens are the push addresses of both participants when a match was created.
	tokens []string
}

// SignalStale reports whether sig was sent outside the arena's current window.
func SignalStale(sig *db.Signal, arena *db.Arena) bool {
	return !geo.IsWithinWindow(sig.CreatedAt, arena.StartTime, arena.EndTime)
}

// TrySend spends one signal from sender towards receiver and, when the
// receiver already signalled back in this arena, creates the match in the
// same transaction.
func (s *Service) TrySend(ctx context.Context, arenaID, senderID, receiverID string) (*Result, error) {
	if senderID == receiverID {
		return nil, ErrSelfSignal
	}
	return s.run(ctx, arenaID, senderID, receiverID, true)
}

// Reconcile is the server-side reaction to a written signal. It never
// spends budget; it only converts an existing reciprocal pair into a match
// or removes a signal made redundant by one.
func (s *Service) Reconcile(ctx context.Context, arenaID, senderID, receiverID string) (*Result, error) {
	if senderID == receiverID {
		return &Result{Outcome: OutcomeNoop}, nil
	}
	return s.run(ctx, arenaID, senderID, receiverID, false)
}

func (s *Service) run(ctx context.Context, arenaID, senderID, receiverID string, spend bool) (*Result, error) {
	var res resolution
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx *store.Tx) error {
		var err error
		res, err = s.resolve(ctx, tx, arenaID, senderID, receiverID, spend)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("signal resolved",
		"arena", arenaID, "sender", senderID, "receiver", receiverID,
		"outcome", res.Outcome.String(), "spend", spend,
	)

	if res.Outcome != OutcomeNoop {
		s.invalidateCounts(ctx, arenaID, receiverID, senderID)
	}
	if res.Outcome == OutcomeMatched {
		s.notifyMatch(ctx, res.MatchID, res.tokens)
	}
	return &res.Result, nil
}

// resolve is the transaction body shared by TrySend and Reconcile. It must
// only depend on reads made through tx.
func (s *Service) resolve(ctx context.Context, tx *store.Tx, arenaID, senderID, receiverID string, spend bool) (resolution, error) {
	now := tx.Now()
	matchID := db.MatchID(arenaID, senderID, receiverID)

	arena := &db.Arena{Doc: db.Doc{ID: arenaID}}
	found, err := tx.Get(ctx, arena)
	if err != nil {
		return resolution{}, err
	}
	if !found {
		if spend {
			return resolution{}, fmt.Errorf("%w: %s", arenas.ErrNotFound, arenaID)
		}
		return resolution{Result: Result{Outcome: OutcomeNoop}}, nil
	}

	var sender, receiver *db.User
	var active *db.ActiveUser
	activeFound := false
	if spend {
		var sFound, rFound bool
		if sender, sFound, err = loadUser(ctx, tx, senderID); err != nil {
			return resolution{}, err
		}
		if receiver, rFound, err = loadUser(ctx, tx, receiverID); err != nil {
			return resolution{}, err
		}
		if !sFound || !rFound {
			return resolution{}, ErrSenderOrReceiverMissing
		}
		active = &db.ActiveUser{Doc: db.Doc{ID: db.ActiveUserID(arenaID, senderID)}}
		if activeFound, err = tx.Get(ctx, active); err != nil {
			return resolution{}, err
		}
	}

	sig := &db.Signal{Doc: db.Doc{ID: db.SignalID(arenaID, senderID, receiverID)}}
	sigFound, err := tx.Get(ctx, sig)
	if err != nil {
		return resolution{}, err
	}

	match := &db.Match{Doc: db.Doc{ID: matchID}}
	matched, err := tx.Get(ctx, match)
	if err != nil {
		return resolution{}, err
	}
	if matched {
		if sigFound {
			if err := tx.Delete(sig); err != nil {
				return resolution{}, err
			}
		}
		return resolution{Result: Result{Outcome: OutcomeAlreadyMatched, MatchID: matchID, SignalsRemaining: budgetOf(active)}}, nil
	}

	remaining := 0
	if spend {
		if !geo.ArenaOpen(now, arena) {
			return resolution{}, fmt.Errorf("%w: %s", ErrArenaClosed, arenaID)
		}
		if !activeFound {
			return resolution{}, fmt.Errorf("%w: %s", ErrNotActive, arenaID)
		}
		if sender.Blocks(receiver) {
			return resolution{}, ErrBlocked
		}
		if sigFound && !SignalStale(sig, arena) {
			// one outstanding signal per ordered pair; resending costs nothing
			return resolution{Result: Result{Outcome: OutcomePending, SignalsRemaining: active.SignalsRemaining}}, nil
		}
		if active.SignalsRemaining <= 0 {
			return resolution{}, ErrOutOfSignals
		}

		active.SignalsRemaining--
		sender.SignalsRemaining = active.SignalsRemaining
		sender.UpdatedAt = now
		remaining = active.SignalsRemaining
		if err := tx.Set(active); err != nil {
			return resolution{}, err
		}
		if err := tx.Set(sender); err != nil {
			return resolution{}, err
		}

		sig.ArenaID = arenaID
		sig.SenderID = senderID
		sig.ReceiverID = receiverID
		sig.CreatedAt = now
		if err := tx.Set(sig); err != nil {
			return resolution{}, err
		}
	} else {
		if !sigFound {
			return resolution{Result: Result{Outcome: OutcomeNoop}}, nil
		}
		if SignalStale(sig, arena) {
			return resolution{Result: Result{Outcome: OutcomeNoop}}, tx.Delete(sig)
		}
	}

	rev := &db.Signal{Doc: db.Doc{ID: db.SignalID(arenaID, receiverID, senderID)}}
	revFound, err := tx.Get(ctx, rev)
	if err != nil {
		return resolution{}, err
	}
	if revFound && SignalStale(rev, arena) {
		if err := tx.Delete(rev); err != nil {
			return resolution{}, err
		}
		revFound = false
	}
	if !revFound {
		return resolution{Result: Result{Outcome: OutcomePending, SignalsRemaining: remaining}}, nil
	}

	userA, userB := db.SortPair(senderID, receiverID)
	*match = db.Match{
		Doc:          db.Doc{ID: matchID},
		ArenaID:      arenaID,
		UserA:        userA,
		UserB:        userB,
		Participants: db.StringSet{userA, userB},
		CreatedAt:    now,
		MetIRLBy:     db.StringSet{},
		ExtendedBy:   db.StringSet{},
		LastReadBy:   map[string]time.Time{},
		ArchivedBy:   db.StringSet{},
		UnmatchedBy:  db.StringSet{},
		UpdatedAt:    now,
	}
	if err := tx.Set(match); err != nil {
		return resolution{}, err
	}
	if err := tx.Delete(sig); err != nil {
		return resolution{}, err
	}
	if err := tx.Delete(rev); err != nil {
		return resolution{}, err
	}

	var tokens []string
	for _, uid := range []string{senderID, receiverID} {
		u, err := bravery.Credit(ctx, tx, uid, bravery.MatchPoints)
		if errors.Is(err, bravery.ErrUserNotFound) {
			return resolution{}, ErrSenderOrReceiverMissing
		}
		if err != nil {
			return resolution{}, err
		}
		if u.PushToken != "" {
			tokens = append(tokens, u.PushToken)
		}
	}

	return resolution{
		Result: Result{Outcome: OutcomeMatched, MatchID: matchID, SignalsRemaining: remaining},
		tokens: tokens,
	}, nil
}

func budgetOf(au *db.ActiveUser) int {
	if au == nil {
		return 0
	}
	return au.SignalsRemaining
}

// notifyMatch is best-effort and runs after commit.
func (s *Service) notifyMatch(ctx context.Context, matchID string, tokens []string) {
	if len(tokens) == 0 {
		return
	}
	if err := s.notifier.Send(context.WithoutCancel(ctx), tokens, notify.MatchTitle, notify.MatchBody); err != nil {
		s.log.Warn("match notification failed", "match", matchID, "err", err)
	}
}
