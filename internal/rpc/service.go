// Package rpc exposes verdicts and subject control to local processes over
// gRPC on a Unix domain socket. Messages are well-known protobuf types
// (structpb.Struct, emptypb.Empty) so no generated code is required.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "terminal.v1.VerdictService"

const (
	methodGetVerdicts   = "/" + ServiceName + "/GetVerdicts"
	methodGetState      = "/" + ServiceName + "/GetState"
	methodChangeSubject = "/" + ServiceName + "/ChangeSubject"
	methodWatchVerdicts = "/" + ServiceName + "/WatchVerdicts"
)

// VerdictServiceServer is the server API for VerdictService.
type VerdictServiceServer interface {
	GetVerdicts(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetState(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ChangeSubject(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WatchVerdicts(*emptypb.Empty, VerdictService_WatchVerdictsServer) error
}

// VerdictService_WatchVerdictsServer is the server side of the stream.
type VerdictService_WatchVerdictsServer interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

type watchVerdictsServer struct {
	grpc.ServerStream
}

func (x *watchVerdictsServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

// RegisterVerdictServiceServer registers srv on s.
func RegisterVerdictServiceServer(s grpc.ServiceRegistrar, srv VerdictServiceServer) {
	s.RegisterService(&VerdictService_ServiceDesc, srv)
}

// VerdictService_ServiceDesc describes the service for grpc.Server.
var VerdictService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*VerdictServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetVerdicts", Handler: getVerdictsHandler},
		{MethodName: "GetState", Handler: getStateHandler},
		{MethodName: "ChangeSubject", Handler: changeSubjectHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "WatchVerdicts", Handler: watchVerdictsHandler, ServerStreams: true},
	},
	Metadata: "terminal/v1/verdict.proto",
}

func getVerdictsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(VerdictServiceServer).GetVerdicts(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetVerdicts}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(VerdictServiceServer).GetVerdicts(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func getStateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(VerdictServiceServer).GetState(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetState}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(VerdictServiceServer).GetState(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func changeSubjectHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(VerdictServiceServer).ChangeSubject(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodChangeSubject}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(VerdictServiceServer).ChangeSubject(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func watchVerdictsHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(VerdictServiceServer).WatchVerdicts(in, &watchVerdictsServer{stream})
}

// Client is a VerdictService client.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) GetVerdicts(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodGetVerdicts, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetState(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodGetState, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ChangeSubject requests a new instrument and returns the normalized symbol.
func (c *Client) ChangeSubject(ctx context.Context, symbol string, opts ...grpc.CallOption) (string, error) {
	in, err := structpb.NewStruct(map[string]any{"symbol": symbol})
	if err != nil {
		return "", err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodChangeSubject, in, out, opts...); err != nil {
		return "", err
	}
	return out.GetFields()["symbol"].GetStringValue(), nil
}

// WatchVerdicts opens a server stream of verdict reports.
func (c *Client) WatchVerdicts(ctx context.Context, opts ...grpc.CallOption) (*VerdictStream, error) {
	stream, err := c.cc.NewStream(ctx, &VerdictService_ServiceDesc.Streams[0], methodWatchVerdicts, opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &VerdictStream{stream: stream}, nil
}

// VerdictStream is the client side of WatchVerdicts.
type VerdictStream struct {
	stream grpc.ClientStream
}

func (s *VerdictStream) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := s.stream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
