package horizonpb

import (
	"context"

	"google.golang.org/grpc"
)

// StorageServer is the interface internal/server.Server implements. It
// plays the role a `protoc-gen-go-grpc`-generated `XxxServer` interface
// would, hand-written here since no `.proto` file backs this package
// (see DESIGN.md).
type StorageServer interface {
	Get(context.Context, *GetRequest) (*GetResponse, error)
	Put(context.Context, *PutRequest) (*PutResponse, error)
	Delete(context.Context, *DeleteRequest) (*DeleteResponse, error)
	ScanRange(*ScanRangeRequest, StorageScanRangeServer) error
	Begin(context.Context, *BeginRequest) (*BeginResponse, error)
	Commit(context.Context, *CommitRequest) (*CommitResponse, error)
	Rollback(context.Context, *RollbackRequest) (*RollbackResponse, error)
	Stats(context.Context, *StatsRequest) (*StatsResponse, error)
	Health(context.Context, *HealthRequest) (*HealthResponse, error)
}

// StorageScanRangeServer is the server-side stream handle for ScanRange,
// mirroring the shape generated code gives a server-streaming RPC.
type StorageScanRangeServer interface {
	Send(*ScanRangeResponse) error
	grpc.ServerStream
}

type storageScanRangeServer struct {
	grpc.ServerStream
}

func (s *storageScanRangeServer) Send(resp *ScanRangeResponse) error {
	return s.ServerStream.SendMsg(resp)
}

func handleGet(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(GetRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StorageServer).Get(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/Get"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(StorageServer).Get(ctx, req.(*GetRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func handlePut(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(PutRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StorageServer).Put(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/Put"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(StorageServer).Put(ctx, req.(*PutRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func handleDelete(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(DeleteRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StorageServer).Delete(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/Delete"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(StorageServer).Delete(ctx, req.(*DeleteRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func handleBegin(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(BeginRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StorageServer).Begin(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/Begin"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(StorageServer).Begin(ctx, req.(*BeginRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func handleCommit(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(CommitRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StorageServer).Commit(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/Commit"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(StorageServer).Commit(ctx, req.(*CommitRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func handleRollback(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(RollbackRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StorageServer).Rollback(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/Rollback"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(StorageServer).Rollback(ctx, req.(*RollbackRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func handleStats(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(StatsRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StorageServer).Stats(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/Stats"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(StorageServer).Stats(ctx, req.(*StatsRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func handleHealth(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(HealthRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StorageServer).Health(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/Health"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(StorageServer).Health(ctx, req.(*HealthRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func handleScanRange(srv interface{}, stream grpc.ServerStream) error {
	req := new(ScanRangeRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(StorageServer).ScanRange(req, &storageScanRangeServer{stream})
}

// ServiceName is the fully-qualified gRPC service name, used in place of
// the name a `.proto` file's `service` declaration would otherwise fix.
const ServiceName = "horizondb.v1.Storage"

// ServiceDesc is the hand-built equivalent of what `protoc-gen-go-grpc`
// would generate from a `.proto` file's `service Storage { ... }` block.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StorageServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Get", Handler: handleGet},
		{MethodName: "Put", Handler: handlePut},
		{MethodName: "Delete", Handler: handleDelete},
		{MethodName: "Begin", Handler: handleBegin},
		{MethodName: "Commit", Handler: handleCommit},
		{MethodName: "Rollback", Handler: handleRollback},
		{MethodName: "Stats", Handler: handleStats},
		{MethodName: "Health", Handler: handleHealth},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "ScanRange",
			Handler:       handleScanRange,
			ServerStreams: true,
		},
	},
	Metadata: "horizonpb/storage.proto",
}

// RegisterStorageServer registers srv against gs, mirroring the
// `RegisterXxxServer` function generated code would provide.
func RegisterStorageServer(gs grpc.ServiceRegistrar, srv StorageServer) {
	gs.RegisterService(&ServiceDesc, srv)
}
