package admin

import (
	"google.golang.org/grpc"

	"github.com/oggyb/arena-signals/internal/app"
	"github.com/oggyb/arena-signals/internal/server"
)

const ServiceName = "arena.v1.AdminService"

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		server.Unary(ServiceName, "CreateArena", (*Service).CreateArena),
		server.Unary(ServiceName, "UpdateArena", (*Service).UpdateArena),
		server.Unary(ServiceName, "DeleteArena", (*Service).DeleteArena),
		server.Unary(ServiceName, "GetArena", (*Service).GetArena),
		server.Unary(ServiceName, "ListArenas", (*Service).ListArenas),
	},
	Streams: []grpc.StreamDesc{
		server.ServerStream("WatchArenas", (*Service).WatchArenas),
	},
}

// Registrar ties the Admin service into the gRPC server
type Registrar struct {
	appCtx *app.AppContext
	auth   *Authenticator
}

// NewRegistrar builds the operator allow-list from the admin config.
func NewRegistrar(appCtx *app.AppContext) *Registrar {
	cfg := appCtx.Config.Admin
	return &Registrar{appCtx: appCtx, auth: NewAuthenticator(cfg.Emails, cfg.KeyHash)}
}

func (r *Registrar) Register(s grpc.ServiceRegistrar) {
	s.RegisterService(&ServiceDesc, NewAdminService(r.appCtx, r.auth))
}
