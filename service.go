package basicauth

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Full method names of AuthService. These are shared with every client and
// changing them breaks the wire contract.
const (
	ServiceName     = "basicauth.AuthService"
	HandshakeMethod = "/" + ServiceName + "/Handshake"
	WhoamiMethod    = "/" + ServiceName + "/Whoami"
)

// AuthServiceServer is the server API for AuthService.
type AuthServiceServer interface {
	// Handshake exchanges Basic credentials for a bearer token. The request
	// carries the client's protocol version.
	Handshake(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	// Whoami returns the user the bearer token was issued to.
	Whoami(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
}

// AuthServiceClient is the client API for AuthService.
type AuthServiceClient interface {
	Handshake(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
	Whoami(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
}

type authServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewAuthServiceClient returns an AuthServiceClient over cc.
func NewAuthServiceClient(cc grpc.ClientConnInterface) AuthServiceClient {
	return &authServiceClient{cc}
}

func (c *authServiceClient) Handshake(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, HandshakeMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *authServiceClient) Whoami(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, WhoamiMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// RegisterAuthServiceServer registers srv on s.
func RegisterAuthServiceServer(s grpc.ServiceRegistrar, srv AuthServiceServer) {
	s.RegisterService(&authServiceDesc, srv)
}

func handshakeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AuthServiceServer).Handshake(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: HandshakeMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AuthServiceServer).Handshake(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func whoamiHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AuthServiceServer).Whoami(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: WhoamiMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AuthServiceServer).Whoami(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

var authServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Handshake", Handler: handshakeHandler},
		{MethodName: "Whoami", Handler: whoamiHandler},
	},
	Streams: []grpc.StreamDesc{},
}
