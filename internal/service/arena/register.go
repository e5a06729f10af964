package arena

import (
	"google.golang.org/grpc"

	"github.com/oggyb/arena-signals/internal/app"
	"github.com/oggyb/arena-signals/internal/server"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "arena.v1.ArenaService"

// ServiceDesc describes the user-facing API. Messages travel as CBOR.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		server.Unary(ServiceName, "Register", (*Service).Register),
		server.Unary(ServiceName, "UpdatePushToken", (*Service).UpdatePushToken),
		server.Unary(ServiceName, "ListArenas", (*Service).ListArenas),
		server.Unary(ServiceName, "GetArena", (*Service).GetArena),
		server.Unary(ServiceName, "Enter", (*Service).Enter),
		server.Unary(ServiceName, "Deactivate", (*Service).Deactivate),
		server.Unary(ServiceName, "SendSignal", (*Service).SendSignal),
		server.Unary(ServiceName, "ListActiveUsers", (*Service).ListActiveUsers),
		server.Unary(ServiceName, "ListIncomingSignals", (*Service).ListIncomingSignals),
		server.Unary(ServiceName, "CountIncomingSignals", (*Service).CountIncomingSignals),
		server.Unary(ServiceName, "ListMatches", (*Service).ListMatches),
		server.Unary(ServiceName, "ListMessages", (*Service).ListMessages),
		server.Unary(ServiceName, "SendMessage", (*Service).SendMessage),
		server.Unary(ServiceName, "ExtendChat", (*Service).ExtendChat),
		server.Unary(ServiceName, "ArchiveMatch", (*Service).ArchiveMatch),
		server.Unary(ServiceName, "Unmatch", (*Service).Unmatch),
		server.Unary(ServiceName, "MarkRead", (*Service).MarkRead),
		server.Unary(ServiceName, "MarkMetIRL", (*Service).MarkMetIRL),
		server.Unary(ServiceName, "Block", (*Service).Block),
		server.Unary(ServiceName, "Report", (*Service).Report),
	},
	Streams: []grpc.StreamDesc{
		server.ServerStream("Watch", (*Service).Watch),
	},
}

// Registrar ties the Arena service into the gRPC server
type Registrar struct {
	appCtx *app.AppContext
}

// NewRegistrar creates a new Registrar for the Arena service
func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

// Register attaches the Arena service implementation to the gRPC server
func (r *Registrar) Register(s grpc.ServiceRegistrar) {
	s.RegisterService(&ServiceDesc, NewArenaService(r.appCtx))
}
