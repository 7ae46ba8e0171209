package horizonpb

import (
	"context"

	"google.golang.org/grpc"
)

// StorageClient is the hand-written equivalent of a generated client
// stub.
type StorageClient interface {
	Get(ctx context.Context, in *GetRequest, opts ...grpc.CallOption) (*GetResponse, error)
	Put(ctx context.Context, in *PutRequest, opts ...grpc.CallOption) (*PutResponse, error)
	Delete(ctx context.Context, in *DeleteRequest, opts ...grpc.CallOption) (*DeleteResponse, error)
	ScanRange(ctx context.Context, in *ScanRangeRequest, opts ...grpc.CallOption) (StorageScanRangeClient, error)
	Begin(ctx context.Context, in *BeginRequest, opts ...grpc.CallOption) (*BeginResponse, error)
	Commit(ctx context.Context, in *CommitRequest, opts ...grpc.CallOption) (*CommitResponse, error)
	Rollback(ctx context.Context, in *RollbackRequest, opts ...grpc.CallOption) (*RollbackResponse, error)
	Stats(ctx context.Context, in *StatsRequest, opts ...grpc.CallOption) (*StatsResponse, error)
	Health(ctx context.Context, in *HealthRequest, opts ...grpc.CallOption) (*HealthResponse, error)
}

// StorageScanRangeClient is the client-side stream handle for ScanRange.
type StorageScanRangeClient interface {
	Recv() (*ScanRangeResponse, error)
	grpc.ClientStream
}

type storageClient struct {
	cc grpc.ClientConnInterface
}

// NewStorageClient wraps cc as a StorageClient.
func NewStorageClient(cc grpc.ClientConnInterface) StorageClient {
	return &storageClient{cc: cc}
}

func (c *storageClient) Get(ctx context.Context, in *GetRequest, opts ...grpc.CallOption) (*GetResponse, error) {
	out := new(GetResponse)
	if err := c.cc.Invoke(ctx, ServiceName+"/Get", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *storageClient) Put(ctx context.Context, in *PutRequest, opts ...grpc.CallOption) (*PutResponse, error) {
	out := new(PutResponse)
	if err := c.cc.Invoke(ctx, ServiceName+"/Put", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *storageClient) Delete(ctx context.Context, in *DeleteRequest, opts ...grpc.CallOption) (*DeleteResponse, error) {
	out := new(DeleteResponse)
	if err := c.cc.Invoke(ctx, ServiceName+"/Delete", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *storageClient) Begin(ctx context.Context, in *BeginRequest, opts ...grpc.CallOption) (*BeginResponse, error) {
	out := new(BeginResponse)
	if err := c.cc.Invoke(ctx, ServiceName+"/Begin", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *storageClient) Commit(ctx context.Context, in *CommitRequest, opts ...grpc.CallOption) (*CommitResponse, error) {
	out := new(CommitResponse)
	if err := c.cc.Invoke(ctx, ServiceName+"/Commit", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *storageClient) Rollback(ctx context.Context, in *RollbackRequest, opts ...grpc.CallOption) (*RollbackResponse, error) {
	out := new(RollbackResponse)
	if err := c.cc.Invoke(ctx, ServiceName+"/Rollback", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *storageClient) Stats(ctx context.Context, in *StatsRequest, opts ...grpc.CallOption) (*StatsResponse, error) {
	out := new(StatsResponse)
	if err := c.cc.Invoke(ctx, ServiceName+"/Stats", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *storageClient) Health(ctx context.Context, in *HealthRequest, opts ...grpc.CallOption) (*HealthResponse, error) {
	out := new(HealthResponse)
	if err := c.cc.Invoke(ctx, ServiceName+"/Health", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *storageClient) ScanRange(ctx context.Context, in *ScanRangeRequest, opts ...grpc.CallOption) (StorageScanRangeClient, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], ServiceName+"/ScanRange", opts...)
	if err != nil {
		return nil, err
	}
	x := &storageScanRangeClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type storageScanRangeClient struct {
	grpc.ClientStream
}

func (x *storageScanRangeClient) Recv() (*ScanRangeResponse, error) {
	m := new(ScanRangeResponse)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
