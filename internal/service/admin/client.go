package admin

import (
	"context"

	"google.golang.org/grpc"

	"github.com/oggyb/arena-signals/internal/server"
)

// Client calls the Admin service. Attach credentials with WithOperator.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func method(name string) string { return "/" + ServiceName + "/" + name }

func (c *Client) CreateArena(ctx context.Context, in *CreateArenaRequest, opts ...grpc.CallOption) (*ArenaResponse, error) {
	return server.Invoke[CreateArenaRequest, ArenaResponse](ctx, c.cc, method("CreateArena"), in, opts...)
}

func (c *Client) UpdateArena(ctx context.Context, in *UpdateArenaRequest, opts ...grpc.CallOption) (*ArenaResponse, error) {
	return server.Invoke[UpdateArenaRequest, ArenaResponse](ctx, c.cc, method("UpdateArena"), in, opts...)
}

func (c *Client) DeleteArena(ctx context.Context, in *ArenaIDRequest, opts ...grpc.CallOption) (*Empty, error) {
	return server.Invoke[ArenaIDRequest, Empty](ctx, c.cc, method("DeleteArena"), in, opts...)
}

func (c *Client) GetArena(ctx context.Context, in *ArenaIDRequest, opts ...grpc.CallOption) (*ArenaResponse, error) {
	return server.Invoke[ArenaIDRequest, ArenaResponse](ctx, c.cc, method("GetArena"), in, opts...)
}

func (c *Client) ListArenas(ctx context.Context, in *ListArenasRequest, opts ...grpc.CallOption) (*ListArenasResponse, error) {
	return server.Invoke[ListArenasRequest, ListArenasResponse](ctx, c.cc, method("ListArenas"), in, opts...)
}

func (c *Client) WatchArenas(ctx context.Context, in *ListArenasRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[ListArenasResponse], error) {
	return server.OpenServerStream[ListArenasRequest, ListArenasResponse](ctx, c.cc, &ServiceDesc.Streams[0], method("WatchArenas"), in, opts...)
}
