package rpcfixture

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	healthgrpc "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	// ServiceName is the fully qualified name of the person service.
	ServiceName = "rpcfixture.v1.PersonService"

	// TransformMethod is the full method path of the transform operation.
	TransformMethod = "/" + ServiceName + "/Transform"
)

// PersonServiceServer is the server API for the person service.
type PersonServiceServer interface {
	Transform(ctx context.Context, input string) (Person, error)
}

// RegisterPersonServiceServer registers srv with s. The request is a
// google.protobuf.StringValue and the response a google.protobuf.Struct.
func RegisterPersonServiceServer(s grpc.ServiceRegistrar, srv PersonServiceServer) {
	s.RegisterService(&personServiceDesc, srv)
}

var personServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PersonServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Transform",
			Handler:    transformHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rpcfixture/v1/person.proto",
}

func transformHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return transform(ctx, srv.(PersonServiceServer), in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: TransformMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return transform(ctx, srv.(PersonServiceServer), req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func transform(ctx context.Context, srv PersonServiceServer, in *wrapperspb.StringValue) (any, error) {
	p, err := srv.Transform(ctx, in.GetValue())
	if err != nil {
		return nil, err
	}
	return p.Struct(), nil
}

// Client calls the person service over a gRPC connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient returns a client that issues calls on cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Transform calls the transform operation. A parse failure on the server is
// returned as a *ParseError.
func (c *Client) Transform(ctx context.Context, input string, opts ...grpc.CallOption) (Person, error) {
	return c.Call(ctx, TransformMethod, input, opts...)
}

// Call invokes transform through an arbitrary method path. The fixture
// answers every path it has no other service for.
func (c *Client) Call(ctx context.Context, method, input string, opts ...grpc.CallOption) (Person, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, wrapperspb.String(input), out, opts...); err != nil {
		if st, ok := status.FromError(err); ok {
			if perr := parseErrorFromStatus(input, st); perr != nil {
				return Person{}, perr
			}
		}
		return Person{}, err
	}
	return PersonFromStruct(out)
}

// ErrNotServing is returned by [Client.Healthy] once the fixture has begun
// shutting down.
var ErrNotServing = errors.New("rpcfixture: not serving")

// Healthy reports whether the person service is serving, using the standard
// gRPC health service.
func (c *Client) Healthy(ctx context.Context, opts ...grpc.CallOption) error {
	resp, err := healthgrpc.NewHealthClient(c.cc).Check(ctx, &healthgrpc.HealthCheckRequest{
		Service: ServiceName,
	}, opts...)
	if err != nil {
		return err
	}
	if s := resp.GetStatus(); s != healthgrpc.HealthCheckResponse_SERVING {
		return fmt.Errorf("%w: %s", ErrNotServing, s)
	}
	return nil
}
