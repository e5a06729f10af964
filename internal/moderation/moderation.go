// Package moderation handles user blocks and abuse reports.
//
// Flagging is informational only: once a user collects FlagThreshold
// reports the profile is marked flagged and enforcement is left to
// operators.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/oggyb/arena-signals/internal/db"
	"github.com/oggyb/arena-signals/internal/store"
)

// FlagThreshold is the report count at which a profile is flagged.
const FlagThreshold = 3

var (
	ErrUserNotFound = errors.New("user not found")
	ErrSelfAction   = errors.New("cannot block or report yourself")
)

type Service struct {
	store *store.Store
	log   *slog.Logger
}

func New(st *store.Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: st, log: log}
}

// Block adds blockedID to uid's block list. Blocking twice is a no-op.
func (s *Service) Block(ctx context.Context, uid, blockedID string) error {
	if uid == blockedID {
		return ErrSelfAction
	}
	return s.store.RunTransaction(ctx, func(ctx context.Context, tx *store.Tx) error {
		u := &db.User{Doc: db.Doc{ID: uid}}
		found, err := tx.Get(ctx, u)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %s", ErrUserNotFound, uid)
		}
		if !u.BlockedUserIDs.Add(blockedID) {
			return nil
		}
		u.UpdatedAt = tx.Now()
		return tx.Set(u)
	})
}

// ReportResult is the target's moderation state after a report.
type ReportResult struct {
	ReportID    string
	ReportCount int
	Flagged     bool
}

// Report files a report against targetID and bumps its report counter in
// the same transaction.
func (s *Service) Report(ctx context.Context, reporterID, targetID, reason string) (*ReportResult, error) {
	if reporterID == targetID {
		return nil, ErrSelfAction
	}

	id := uuid.NewString()
	var res ReportResult
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx *store.Tx) error {
		target := &db.User{Doc: db.Doc{ID: targetID}}
		found, err := tx.Get(ctx, target)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %s", ErrUserNotFound, targetID)
		}

		now := tx.Now()
		if err := tx.Set(&db.Report{
			Doc:        db.Doc{ID: id},
			ReporterID: reporterID,
			TargetID:   targetID,
			Reason:     strings.TrimSpace(reason),
			CreatedAt:  now,
		}); err != nil {
			return err
		}

		target.ReportCount++
		if target.ReportCount >= FlagThreshold {
			target.Flagged = true
		}
		target.UpdatedAt = now
		res = ReportResult{ReportID: id, ReportCount: target.ReportCount, Flagged: target.Flagged}
		return tx.Set(target)
	})
	if err != nil {
		return nil, err
	}

	if res.Flagged && res.ReportCount == FlagThreshold {
		s.log.Warn("user flagged", "user", targetID, "reports", res.ReportCount)
	}
	return &res, nil
}
