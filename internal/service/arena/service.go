package arena

import (
	"context"
	"strings"

	"github.com/oggyb/arena-signals/internal/app"
	"github.com/oggyb/arena-signals/internal/chat"
	"github.com/oggyb/arena-signals/internal/db"
	svcErr "github.com/oggyb/arena-signals/internal/errors"
	"github.com/oggyb/arena-signals/internal/geo"
	"github.com/oggyb/arena-signals/internal/matching"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Service implements the Arena gRPC API.
// It validates requests, delegates to the domain services in AppContext
// and maps their errors to status codes.
type Service struct {
	appCtx *app.AppContext
}

// NewArenaService creates a new Arena service with dependencies from AppContext.
func NewArenaService(appCtx *app.AppContext) *Service {
	return &Service{appCtx: appCtx}
}

// required returns InvalidArgument for the first empty name/value pair.
func required(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return svcErr.InvalidArgument(pairs[i] + " is required")
		}
	}
	return nil
}

func pageSize(n int) int {
	switch {
	case n <= 0:
		return defaultPageSize
	case n > maxPageSize:
		return maxPageSize
	default:
		return n
	}
}

// Register creates a user profile with zeroed counters.
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error) {
	s.appCtx.Logger.Debug("Register called", "user", req.UserID)

	if err := required("user_id", req.UserID, "name", req.Name); err != nil {
		return nil, err
	}

	u, err := s.appCtx.Matching.Register(ctx, matching.Profile{
		ID:           req.UserID,
		Name:         req.Name,
		Email:        req.Email,
		Gender:       req.Gender,
		Sexuality:    req.Sexuality,
		DateOfBirth:  req.DateOfBirth,
		PhotoURL:     req.PhotoURL,
		PromptAnswer: req.PromptAnswer,
	})
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &RegisterResponse{User: toUser(u)}, nil
}

func (s *Service) UpdatePushToken(ctx context.Context, req *UpdatePushTokenRequest) (*Empty, error) {
	if err := required("user_id", req.UserID); err != nil {
		return nil, err
	}
	if err := s.appCtx.Matching.UpdatePushToken(ctx, req.UserID, req.PushToken); err != nil {
		return nil, svcErr.Map(err)
	}
	return &Empty{}, nil
}

// Enter checks the window and geofence, then activates the user.
//
// Behavior:
//   - A missing position is treated as a location permission denial.
//   - Outside the radius fails with FailedPrecondition/OUTSIDE_ARENA and
//     the distance in the error metadata.
//   - Entering again resets the budget without re-crediting points.
func (s *Service) Enter(ctx context.Context, req *EnterRequest) (*EnterResponse, error) {
	s.appCtx.Logger.Debug("Enter called", "user", req.UserID, "arena", req.ArenaID)

	if err := required("user_id", req.UserID, "arena_id", req.ArenaID); err != nil {
		return nil, err
	}

	var pos geo.Reported
	if req.Position != nil {
		pos.Point = &geo.Point{Latitude: req.Position.Latitude, Longitude: req.Position.Longitude}
	}

	act, err := s.appCtx.Matching.Enter(ctx, req.UserID, req.ArenaID, pos)
	if err != nil {
		s.appCtx.Logger.Debug("Enter rejected", "user", req.UserID, "arena", req.ArenaID, "err", err)
		return nil, svcErr.Map(err)
	}
	return &EnterResponse{
		ArenaID:          act.ArenaID,
		SignalsRemaining: act.SignalsRemaining,
		BraveryPoints:    act.BraveryPoints,
		Level:            act.Level,
		Reactivated:      act.Reactivated,
	}, nil
}

// ListArenas lists every arena, flagging the ones open right now.
func (s *Service) ListArenas(ctx context.Context, _ *ListArenasRequest) (*ListArenasResponse, error) {
	list, err := s.appCtx.Arenas.List(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	now := s.appCtx.Store.Now()
	resp := &ListArenasResponse{Arenas: make([]Arena, 0, len(list))}
	for i := range list {
		resp.Arenas = append(resp.Arenas, toArena(&list[i], now))
	}
	return resp, nil
}

func (s *Service) GetArena(ctx context.Context, req *GetArenaRequest) (*GetArenaResponse, error) {
	if err := required("arena_id", req.ArenaID); err != nil {
		return nil, err
	}
	a, err := s.appCtx.Arenas.Get(ctx, req.ArenaID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &GetArenaResponse{Arena: toArena(a, s.appCtx.Store.Now())}, nil
}

func (s *Service) Deactivate(ctx context.Context, req *DeactivateRequest) (*Empty, error) {
	if err := required("user_id", req.UserID, "arena_id", req.ArenaID); err != nil {
		return nil, err
	}
	if err := s.appCtx.Matching.Deactivate(ctx, req.UserID, req.ArenaID); err != nil {
		return nil, svcErr.Map(err)
	}
	return &Empty{}, nil
}

// SendSignal spends one signal and reports whether it completed a match.
func (s *Service) SendSignal(ctx context.Context, req *SendSignalRequest) (*SendSignalResponse, error) {
	s.appCtx.Logger.Debug("SendSignal called", "arena", req.ArenaID, "sender", req.SenderID, "receiver", req.ReceiverID)

	if err := required("arena_id", req.ArenaID, "sender_id", req.SenderID, "receiver_id", req.ReceiverID); err != nil {
		return nil, err
	}

	res, err := s.appCtx.Matching.TrySend(ctx, req.ArenaID, req.SenderID, req.ReceiverID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &SendSignalResponse{
		Outcome:          res.Outcome.String(),
		MatchID:          res.MatchID,
		SignalsRemaining: res.SignalsRemaining,
	}, nil
}

func (s *Service) ListActiveUsers(ctx context.Context, req *ListActiveUsersRequest) (*ListActiveUsersResponse, error) {
	if err := required("arena_id", req.ArenaID, "viewer_id", req.ViewerID); err != nil {
		return nil, err
	}
	entries, err := s.appCtx.Matching.ListActiveUsers(ctx, req.ArenaID, req.ViewerID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &ListActiveUsersResponse{Users: toRoster(entries)}, nil
}

// ListIncomingSignals returns signals waiting for the user, newest first.
// Supports cursor-based pagination with pagination_token.
func (s *Service) ListIncomingSignals(ctx context.Context, req *ListIncomingSignalsRequest) (*ListIncomingSignalsResponse, error) {
	if err := required("user_id", req.UserID, "arena_id", req.ArenaID); err != nil {
		return nil, err
	}
	signals, next, err := s.appCtx.Matching.ListIncomingSignals(ctx, req.UserID, req.ArenaID, req.PaginationToken, pageSize(req.Limit))
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &ListIncomingSignalsResponse{Signals: toSignals(signals), NextPaginationToken: next}, nil
}

func (s *Service) CountIncomingSignals(ctx context.Context, req *CountIncomingSignalsRequest) (*CountIncomingSignalsResponse, error) {
	if err := required("user_id", req.UserID, "arena_id", req.ArenaID); err != nil {
		return nil, err
	}
	n, err := s.appCtx.Matching.CountIncomingSignals(ctx, req.UserID, req.ArenaID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &CountIncomingSignalsResponse{Count: uint64(n)}, nil
}

func (s *Service) ListMatches(ctx context.Context, req *ListMatchesRequest) (*ListMatchesResponse, error) {
	if err := required("user_id", req.UserID); err != nil {
		return nil, err
	}
	views, err := s.appCtx.Chat.ListMatches(ctx, req.UserID, req.ArenaID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &ListMatchesResponse{Matches: toMatches(views)}, nil
}

func toMatches(views []chat.MatchView) []Match {
	out := make([]Match, 0, len(views))
	for _, v := range views {
		out = append(out, toMatch(v))
	}
	return out
}

func (s *Service) ListMessages(ctx context.Context, req *ListMessagesRequest) (*ListMessagesResponse, error) {
	if err := required("match_id", req.MatchID, "user_id", req.UserID); err != nil {
		return nil, err
	}
	msgs, next, err := s.appCtx.Chat.ListMessages(ctx, req.MatchID, req.UserID, req.PaginationToken, pageSize(req.Limit))
	if err != nil {
		return nil, svcErr.Map(err)
	}
	resp := &ListMessagesResponse{Messages: make([]Message, 0, len(msgs)), NextPaginationToken: next}
	for i := range msgs {
		resp.Messages = append(resp.Messages, toMessage(&msgs[i]))
	}
	return resp, nil
}

func (s *Service) SendMessage(ctx context.Context, req *SendMessageRequest) (*SendMessageResponse, error) {
	s.appCtx.Logger.Debug("SendMessage called", "match", req.MatchID, "sender", req.SenderID)

	if err := required("match_id", req.MatchID, "sender_id", req.SenderID); err != nil {
		return nil, err
	}
	msg, err := s.appCtx.Chat.SendMessage(ctx, req.MatchID, req.SenderID, req.Text)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &SendMessageResponse{Message: toMessage(msg)}, nil
}

// matchAction runs a one-sided match mutation and returns the match as
// the caller now sees it.
func (s *Service) matchAction(
	ctx context.Context,
	req *MatchActionRequest,
	apply func(ctx context.Context, matchID, uid string) (*db.Match, error),
) (*MatchActionResponse, error) {
	if err := required("match_id", req.MatchID, "user_id", req.UserID); err != nil {
		return nil, err
	}
	m, err := apply(ctx, req.MatchID, req.UserID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &MatchActionResponse{Match: toMatch(chat.ViewOf(m, req.UserID, s.appCtx.Chat.Now()))}, nil
}

// ExtendChat opts the caller into keeping the chat open past its window.
func (s *Service) ExtendChat(ctx context.Context, req *MatchActionRequest) (*MatchActionResponse, error) {
	return s.matchAction(ctx, req, s.appCtx.Chat.Extend)
}

// ArchiveMatch hides the match for the caller only.
func (s *Service) ArchiveMatch(ctx context.Context, req *MatchActionRequest) (*MatchActionResponse, error) {
	return s.matchAction(ctx, req, s.appCtx.Chat.Archive)
}

// Unmatch ends the match for both participants.
func (s *Service) Unmatch(ctx context.Context, req *MatchActionRequest) (*MatchActionResponse, error) {
	return s.matchAction(ctx, req, s.appCtx.Chat.Unmatch)
}

func (s *Service) MarkRead(ctx context.Context, req *MatchActionRequest) (*MatchActionResponse, error) {
	return s.matchAction(ctx, req, s.appCtx.Chat.MarkRead)
}

// MarkMetIRL pays the bravery bonus once both participants declared it.
func (s *Service) MarkMetIRL(ctx context.Context, req *MatchActionRequest) (*MarkMetIRLResponse, error) {
	if err := required("match_id", req.MatchID, "user_id", req.UserID); err != nil {
		return nil, err
	}
	m, awarded, err := s.appCtx.Chat.MarkMetIRL(ctx, req.MatchID, req.UserID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &MarkMetIRLResponse{
		Match:   toMatch(chat.ViewOf(m, req.UserID, s.appCtx.Chat.Now())),
		Awarded: awarded,
	}, nil
}

func (s *Service) Block(ctx context.Context, req *BlockRequest) (*Empty, error) {
	if err := required("user_id", req.UserID, "blocked_user_id", req.BlockedUserID); err != nil {
		return nil, err
	}
	if err := s.appCtx.Moderation.Block(ctx, req.UserID, req.BlockedUserID); err != nil {
		return nil, svcErr.Map(err)
	}
	return &Empty{}, nil
}

func (s *Service) Report(ctx context.Context, req *ReportRequest) (*ReportResponse, error) {
	if err := required("reporter_id", req.ReporterID, "target_id", req.TargetID); err != nil {
		return nil, err
	}
	res, err := s.appCtx.Moderation.Report(ctx, req.ReporterID, req.TargetID, req.Reason)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &ReportResponse{ReportID: res.ReportID, ReportCount: res.ReportCount, Flagged: res.Flagged}, nil
}
