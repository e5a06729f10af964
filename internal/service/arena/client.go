package arena

import (
	"context"

	"google.golang.org/grpc"

	"github.com/oggyb/arena-signals/internal/server"
)

// Client is a typed client for the Arena service.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func call[Req, Resp any](ctx context.Context, c *Client, method string, in *Req, opts []grpc.CallOption) (*Resp, error) {
	return server.Invoke[Req, Resp](ctx, c.cc, "/"+ServiceName+"/"+method, in, opts...)
}

func (c *Client) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error) {
	return call[RegisterRequest, RegisterResponse](ctx, c, "Register", in, opts)
}

func (c *Client) UpdatePushToken(ctx context.Context, in *UpdatePushTokenRequest, opts ...grpc.CallOption) (*Empty, error) {
	return call[UpdatePushTokenRequest, Empty](ctx, c, "UpdatePushToken", in, opts)
}

func (c *Client) ListArenas(ctx context.Context, in *ListArenasRequest, opts ...grpc.CallOption) (*ListArenasResponse, error) {
	return call[ListArenasRequest, ListArenasResponse](ctx, c, "ListArenas", in, opts)
}

func (c *Client) GetArena(ctx context.Context, in *GetArenaRequest, opts ...grpc.CallOption) (*GetArenaResponse, error) {
	return call[GetArenaRequest, GetArenaResponse](ctx, c, "GetArena", in, opts)
}

func (c *Client) Enter(ctx context.Context, in *EnterRequest, opts ...grpc.CallOption) (*EnterResponse, error) {
	return call[EnterRequest, EnterResponse](ctx, c, "Enter", in, opts)
}

func (c *Client) Deactivate(ctx context.Context, in *DeactivateRequest, opts ...grpc.CallOption) (*Empty, error) {
	return call[DeactivateRequest, Empty](ctx, c, "Deactivate", in, opts)
}

func (c *Client) SendSignal(ctx context.Context, in *SendSignalRequest, opts ...grpc.CallOption) (*SendSignalResponse, error) {
	return call[SendSignalRequest, SendSignalResponse](ctx, c, "SendSignal", in, opts)
}

func (c *Client) ListActiveUsers(ctx context.Context, in *ListActiveUsersRequest, opts ...grpc.CallOption) (*ListActiveUsersResponse, error) {
	return call[ListActiveUsersRequest, ListActiveUsersResponse](ctx, c, "ListActiveUsers", in, opts)
}

func (c *Client) ListIncomingSignals(ctx context.Context, in *ListIncomingSignalsRequest, opts ...grpc.CallOption) (*ListIncomingSignalsResponse, error) {
	return call[ListIncomingSignalsRequest, ListIncomingSignalsResponse](ctx, c, "ListIncomingSignals", in, opts)
}

func (c *Client) CountIncomingSignals(ctx context.Context, in *CountIncomingSignalsRequest, opts ...grpc.CallOption) (*CountIncomingSignalsResponse, error) {
	return call[CountIncomingSignalsRequest, CountIncomingSignalsResponse](ctx, c, "CountIncomingSignals", in, opts)
}

func (c *Client) ListMatches(ctx context.Context, in *ListMatchesRequest, opts ...grpc.CallOption) (*ListMatchesResponse, error) {
	return call[ListMatchesRequest, ListMatchesResponse](ctx, c, "ListMatches", in, opts)
}

func (c *Client) ListMessages(ctx context.Context, in *ListMessagesRequest, opts ...grpc.CallOption) (*ListMessagesResponse, error) {
	return call[ListMessagesRequest, ListMessagesResponse](ctx, c, "ListMessages", in, opts)
}

func (c *Client) SendMessage(ctx context.Context, in *SendMessageRequest, opts ...grpc.CallOption) (*SendMessageResponse, error) {
	return call[SendMessageRequest, SendMessageResponse](ctx, c, "SendMessage", in, opts)
}

func (c *Client) ExtendChat(ctx context.Context, in *MatchActionRequest, opts ...grpc.CallOption) (*MatchActionResponse, error) {
	return call[MatchActionRequest, MatchActionResponse](ctx, c, "ExtendChat", in, opts)
}

func (c *Client) ArchiveMatch(ctx context.Context, in *MatchActionRequest, opts ...grpc.CallOption) (*MatchActionResponse, error) {
	return call[MatchActionRequest, MatchActionResponse](ctx, c, "ArchiveMatch", in, opts)
}

func (c *Client) Unmatch(ctx context.Context, in *MatchActionRequest, opts ...grpc.CallOption) (*MatchActionResponse, error) {
	return call[MatchActionRequest, MatchActionResponse](ctx, c, "Unmatch", in, opts)
}

func (c *Client) MarkRead(ctx context.Context, in *MatchActionRequest, opts ...grpc.CallOption) (*MatchActionResponse, error) {
	return call[MatchActionRequest, MatchActionResponse](ctx, c, "MarkRead", in, opts)
}

func (c *Client) MarkMetIRL(ctx context.Context, in *MatchActionRequest, opts ...grpc.CallOption) (*MarkMetIRLResponse, error) {
	return call[MatchActionRequest, MarkMetIRLResponse](ctx, c, "MarkMetIRL", in, opts)
}

func (c *Client) Block(ctx context.Context, in *BlockRequest, opts ...grpc.CallOption) (*Empty, error) {
	return call[BlockRequest, Empty](ctx, c, "Block", in, opts)
}

func (c *Client) Report(ctx context.Context, in *ReportRequest, opts ...grpc.CallOption) (*ReportResponse, error) {
	return call[ReportRequest, ReportResponse](ctx, c, "Report", in, opts)
}

// Watch opens the live view stream; each message is a full snapshot.
func (c *Client) Watch(ctx context.Context, in *WatchRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[Snapshot], error) {
	return server.OpenServerStream[WatchRequest, Snapshot](ctx, c.cc, &ServiceDesc.Streams[0], "/"+ServiceName+"/Watch", in, opts...)
}
