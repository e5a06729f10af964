package arena

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/oggyb/arena-signals/internal/db"
	svcErr "github.com/oggyb/arena-signals/internal/errors"
	"github.com/oggyb/arena-signals/internal/feed"
)

// collectionsFor lists the feed collections whose changes can alter view.
func collectionsFor(view string) []string {
	switch view {
	case ViewMatches:
		return []string{(db.Match{}).TableName()}
	case ViewSignals:
		return []string{(db.Signal{}).TableName()}
	case ViewRoster:
		// blocks and profile edits change the roster as much as activations
		return []string{(db.ActiveUser{}).TableName(), (db.User{}).TableName()}
	}
	return nil
}

// relevant reports whether ev can change the view watched by req.
// Undecodable events are treated as relevant.
func relevant(req *WatchRequest, ev feed.Event) bool {
	switch ev.Collection {
	case (db.Match{}).TableName():
		var m db.Match
		if err := ev.Decode(&m); err != nil {
			return true
		}
		return m.HasParticipant(req.UserID) && (req.ArenaID == "" || m.ArenaID == req.ArenaID)
	case (db.Signal{}).TableName():
		var s db.Signal
		if err := ev.Decode(&s); err != nil {
			return true
		}
		return s.ReceiverID == req.UserID && s.ArenaID == req.ArenaID
	case (db.ActiveUser{}).TableName():
		var au db.ActiveUser
		if err := ev.Decode(&au); err != nil {
			return true
		}
		return au.ArenaID == req.ArenaID
	}
	return true
}

// Watch streams a snapshot of the requested view on subscribe and again
// after every change that can affect it, until the client goes away.
func (s *Service) Watch(req *WatchRequest, stream grpc.ServerStreamingServer[Snapshot]) error {
	ctx := stream.Context()
	s.appCtx.Logger.Debug("Watch called", "view", req.View, "user", req.UserID, "arena", req.ArenaID)

	collections := collectionsFor(req.View)
	if collections == nil {
		return svcErr.InvalidArgument("view must be one of matches, signals, roster")
	}
	if err := required("user_id", req.UserID); err != nil {
		return err
	}
	if req.View != ViewMatches {
		if err := required("arena_id", req.ArenaID); err != nil {
			return err
		}
	}
	if s.appCtx.Feed == nil {
		return status.Error(codes.Unavailable, "live views are not enabled")
	}

	// subscribe first so no change between snapshot and subscription is lost
	sub, err := s.appCtx.Feed.Subscribe(ctx, collections...)
	if err != nil {
		return svcErr.Map(err)
	}
	defer sub.Close()

	if err := s.sendSnapshot(ctx, req, stream); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.Events():
			if !ok {
				return status.Error(codes.Unavailable, "change feed closed")
			}
			if !relevant(req, ev) {
				continue
			}
			if err := s.sendSnapshot(ctx, req, stream); err != nil {
				return err
			}
		}
	}
}

func (s *Service) sendSnapshot(ctx context.Context, req *WatchRequest, stream grpc.ServerStreamingServer[Snapshot]) error {
	snap, err := s.snapshot(ctx, req)
	if err != nil {
		return svcErr.Map(err)
	}
	return stream.Send(snap)
}

func (s *Service) snapshot(ctx context.Context, req *WatchRequest) (*Snapshot, error) {
	snap := &Snapshot{View: req.View}
	switch req.View {
	case ViewMatches:
		views, err := s.appCtx.Chat.ListMatches(ctx, req.UserID, req.ArenaID)
		if err != nil {
			return nil, err
		}
		snap.Matches = toMatches(views)
		snap.Count = uint64(len(snap.Matches))
	case ViewSignals:
		signals, _, err := s.appCtx.Matching.ListIncomingSignals(ctx, req.UserID, req.ArenaID, nil, maxPageSize)
		if err != nil {
			return nil, err
		}
		snap.Signals = toSignals(signals)
		snap.Count = uint64(len(snap.Signals))
	case ViewRoster:
		entries, err := s.appCtx.Matching.ListActiveUsers(ctx, req.ArenaID, req.UserID)
		if err != nil {
			return nil, err
		}
		snap.Roster = toRoster(entries)
		snap.Count = uint64(len(snap.Roster))
	}
	return snap, nil
}
