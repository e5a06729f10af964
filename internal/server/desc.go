package server

import (
	"context"

	"google.golang.org/grpc"
)

// Unary adapts a typed method to a grpc.MethodDesc. S is the concrete
// service type registered with the descriptor.
//
// Example:
//
//	server.Unary("arena.v1.ArenaService", "Register", (*Service).Register)
func Unary[S any, Req any, Resp any](
	service, method string,
	h func(S, context.Context, *Req) (*Resp, error),
) grpc.MethodDesc {
	fullMethod := "/" + service + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return h(srv.(S), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return h(srv.(S), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServerStream adapts a typed server-streaming method to a grpc.StreamDesc.
func ServerStream[S any, Req any, Resp any](
	method string,
	h func(S, *Req, grpc.ServerStreamingServer[Resp]) error,
) grpc.StreamDesc {
	return grpc.StreamDesc{
		StreamName:    method,
		ServerStreams: true,
		Handler: func(srv any, stream grpc.ServerStream) error {
			in := new(Req)
			if err := stream.RecvMsg(in); err != nil {
				return err
			}
			return h(srv.(S), in, &grpc.GenericServerStream[Req, Resp]{ServerStream: stream})
		},
	}
}

// Invoke calls a unary method using the CBOR codec.
func Invoke[Req any, Resp any](
	ctx context.Context,
	cc grpc.ClientConnInterface,
	fullMethod string,
	in *Req,
	opts ...grpc.CallOption,
) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, fullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// OpenServerStream starts a server-streaming call using the CBOR codec.
func OpenServerStream[Req any, Resp any](
	ctx context.Context,
	cc grpc.ClientConnInterface,
	desc *grpc.StreamDesc,
	fullMethod string,
	in *Req,
	opts ...grpc.CallOption,
) (grpc.ServerStreamingClient[Resp], error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	stream, err := cc.NewStream(ctx, desc, fullMethod, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[Req, Resp]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
