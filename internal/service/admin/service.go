package admin

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/oggyb/arena-signals/internal/app"
	"github.com/oggyb/arena-signals/internal/db"
	svcErr "github.com/oggyb/arena-signals/internal/errors"
	"github.com/oggyb/arena-signals/internal/logger"
)

// Service implements the operator API for arenas. Every call is
// authorized before it touches the store.
type Service struct {
	appCtx *app.AppContext
	auth   *Authenticator
}

func NewAdminService(appCtx *app.AppContext, auth *Authenticator) *Service {
	return &Service{appCtx: appCtx, auth: auth}
}

func (s *Service) authorize(ctx context.Context, method string) error {
	log := logger.FromContext(ctx, s.appCtx.Logger)
	email, err := s.auth.Authorize(ctx)
	if err != nil {
		log.Warn("operator call rejected", "err", err)
		return err
	}
	log.Debug(method+" called", "operator", email)
	return nil
}

func (s *Service) CreateArena(ctx context.Context, req *CreateArenaRequest) (*ArenaResponse, error) {
	if err := s.authorize(ctx, "CreateArena"); err != nil {
		return nil, err
	}

	a, err := s.appCtx.Arenas.Create(ctx, strings.TrimSpace(req.ArenaID), req.Arena.domain())
	if err != nil {
		return nil, svcErr.Map(err)
	}
	s.appCtx.Logger.Info("arena created", "arena", a.ID, "start", a.StartTime, "end", a.EndTime)
	return &ArenaResponse{Arena: toArena(a)}, nil
}

func (s *Service) UpdateArena(ctx context.Context, req *UpdateArenaRequest) (*ArenaResponse, error) {
	if err := s.authorize(ctx, "UpdateArena"); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.ArenaID) == "" {
		return nil, svcErr.InvalidArgument("arena_id is required")
	}

	a, err := s.appCtx.Arenas.Update(ctx, req.ArenaID, req.Arena.domain())
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &ArenaResponse{Arena: toArena(a)}, nil
}

func (s *Service) DeleteArena(ctx context.Context, req *ArenaIDRequest) (*Empty, error) {
	if err := s.authorize(ctx, "DeleteArena"); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.ArenaID) == "" {
		return nil, svcErr.InvalidArgument("arena_id is required")
	}

	if err := s.appCtx.Arenas.Delete(ctx, req.ArenaID); err != nil {
		return nil, svcErr.Map(err)
	}
	s.appCtx.Logger.Info("arena deleted", "arena", req.ArenaID)
	return &Empty{}, nil
}

func (s *Service) GetArena(ctx context.Context, req *ArenaIDRequest) (*ArenaResponse, error) {
	if err := s.authorize(ctx, "GetArena"); err != nil {
		return nil, err
	}

	a, err := s.appCtx.Arenas.Get(ctx, req.ArenaID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &ArenaResponse{Arena: toArena(a)}, nil
}

func (s *Service) ListArenas(ctx context.Context, _ *ListArenasRequest) (*ListArenasResponse, error) {
	if err := s.authorize(ctx, "ListArenas"); err != nil {
		return nil, err
	}

	list, err := s.appCtx.Arenas.List(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &ListArenasResponse{Arenas: toArenas(list)}, nil
}

// WatchArenas sends the full arena list on subscribe and after every
// arena change.
func (s *Service) WatchArenas(_ *ListArenasRequest, stream grpc.ServerStreamingServer[ListArenasResponse]) error {
	ctx := stream.Context()
	if err := s.authorize(ctx, "WatchArenas"); err != nil {
		return err
	}
	if s.appCtx.Feed == nil {
		return status.Error(codes.Unavailable, "live views are not enabled")
	}

	sub, err := s.appCtx.Feed.Subscribe(ctx, (db.Arena{}).TableName())
	if err != nil {
		return svcErr.Map(err)
	}
	defer sub.Close()

	send := func() error {
		list, err := s.appCtx.Arenas.List(ctx)
		if err != nil {
			return svcErr.Map(err)
		}
		return stream.Send(&ListArenasResponse{Arenas: toArenas(list)})
	}

	if err := send(); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-sub.Events():
			if !ok {
				return status.Error(codes.Unavailable, "change feed closed")
			}
			if err := send(); err != nil {
				return err
			}
		}
	}
}
