// Package inventoryrpc is the gRPC contract of the inventory service. Messages
// travel as JSON through a codec registered under CodecName.
package inventoryrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "inventory.v1.InventoryService"

const (
	GetStockFullMethod     = "/" + ServiceName + "/GetStock"
	GetAvailableFullMethod = "/" + ServiceName + "/GetAvailable"
	ReserveFullMethod      = "/" + ServiceName + "/Reserve"
	CommitFullMethod       = "/" + ServiceName + "/Commit"
	ReleaseFullMethod      = "/" + ServiceName + "/Release"
	RestockFullMethod      = "/" + ServiceName + "/Restock"
	ListStockFullMethod    = "/" + ServiceName + "/ListStock"
	SetStockFullMethod     = "/" + ServiceName + "/SetStock"
)

// RetryServiceConfig retries calls that failed on backend contention or while
// the service was unreachable. Attempts are bounded and backed off. Only
// methods that are safe to repeat are listed: Reserve and Restock change
// stock by a delta and would apply twice if the first attempt landed.
const RetryServiceConfig = `{
  "methodConfig": [{
    "name": [
      {"service": "` + ServiceName + `", "method": "GetStock"},
      {"service": "` + ServiceName + `", "method": "GetAvailable"},
      {"service": "` + ServiceName + `", "method": "ListStock"},
      {"service": "` + ServiceName + `", "method": "SetStock"},
      {"service": "` + ServiceName + `", "method": "Commit"},
      {"service": "` + ServiceName + `", "method": "Release"}
    ],
    "waitForReady": false,
    "retryPolicy": {
      "maxAttempts": 4,
      "initialBackoff": "0.05s",
      "maxBackoff": "1s",
      "backoffMultiplier": 2,
      "retryableStatusCodes": ["UNAVAILABLE", "ABORTED"]
    }
  }]
}`

type InventoryServiceServer interface {
	GetStock(context.Context, *GetStockRequest) (*GetStockResponse, error)
	GetAvailable(context.Context, *GetAvailableRequest) (*GetAvailableResponse, error)
	Reserve(context.Context, *ReserveRequest) (*ReserveResponse, error)
	Commit(context.Context, *CommitRequest) (*CommitResponse, error)
	Release(context.Context, *ReleaseRequest) (*ReleaseResponse, error)
	Restock(context.Context, *RestockRequest) (*RestockResponse, error)
	ListStock(context.Context, *ListStockRequest) (*ListStockResponse, error)
	SetStock(context.Context, *SetStockRequest) (*SetStockResponse, error)
}

// UnimplementedInventoryServiceServer can be embedded to keep servers
// compiling when methods are added.
type UnimplementedInventoryServiceServer struct{}

func (UnimplementedInventoryServiceServer) GetStock(context.Context, *GetStockRequest) (*GetStockResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetStock not implemented")
}
func (UnimplementedInventoryServiceServer) GetAvailable(context.Context, *GetAvailableRequest) (*GetAvailableResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetAvailable not implemented")
}
func (UnimplementedInventoryServiceServer) Reserve(context.Context, *ReserveRequest) (*ReserveResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Reserve not implemented")
}
func (UnimplementedInventoryServiceServer) Commit(context.Context, *CommitRequest) (*CommitResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Commit not implemented")
}
func (UnimplementedInventoryServiceServer) Release(context.Context, *ReleaseRequest) (*ReleaseResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Release not implemented")
}
func (UnimplementedInventoryServiceServer) Restock(context.Context, *RestockRequest) (*RestockResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Restock not implemented")
}
func (UnimplementedInventoryServiceServer) ListStock(context.Context, *ListStockRequest) (*ListStockResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListStock not implemented")
}
func (UnimplementedInventoryServiceServer) SetStock(context.Context, *SetStockRequest) (*SetStockResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method SetStock not implemented")
}

func unary[Req, Resp any](fullMethod string, call func(InventoryServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(InventoryServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(InventoryServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var InventoryServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*InventoryServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetStock", Handler: unary(GetStockFullMethod, InventoryServiceServer.GetStock)},
		{MethodName: "GetAvailable", Handler: unary(GetAvailableFullMethod, InventoryServiceServer.GetAvailable)},
		{MethodName: "Reserve", Handler: unary(ReserveFullMethod, InventoryServiceServer.Reserve)},
		{MethodName: "Commit", Handler: unary(CommitFullMethod, InventoryServiceServer.Commit)},
		{MethodName: "Release", Handler: unary(ReleaseFullMethod, InventoryServiceServer.Release)},
		{MethodName: "Restock", Handler: unary(RestockFullMethod, InventoryServiceServer.Restock)},
		{MethodName: "ListStock", Handler: unary(ListStockFullMethod, InventoryServiceServer.ListStock)},
		{MethodName: "SetStock", Handler: unary(SetStockFullMethod, InventoryServiceServer.SetStock)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "inventory/v1/inventory.json",
}

func RegisterInventoryServiceServer(s grpc.ServiceRegistrar, srv InventoryServiceServer) {
	s.RegisterService(&InventoryServiceDesc, srv)
}

type InventoryServiceClient interface {
	GetStock(ctx context.Context, in *GetStockRequest, opts ...grpc.CallOption) (*GetStockResponse, error)
	GetAvailable(ctx context.Context, in *GetAvailableRequest, opts ...grpc.CallOption) (*GetAvailableResponse, error)
	Reserve(ctx context.Context, in *ReserveRequest, opts ...grpc.CallOption) (*ReserveResponse, error)
	Commit(ctx context.Context, in *CommitRequest, opts ...grpc.CallOption) (*CommitResponse, error)
	Release(ctx context.Context, in *ReleaseRequest, opts ...grpc.CallOption) (*ReleaseResponse, error)
	Restock(ctx context.Context, in *RestockRequest, opts ...grpc.CallOption) (*RestockResponse, error)
	ListStock(ctx context.Context, in *ListStockRequest, opts ...grpc.CallOption) (*ListStockResponse, error)
	SetStock(ctx context.Context, in *SetStockRequest, opts ...grpc.CallOption) (*SetStockResponse, error)
}

type inventoryServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewInventoryServiceClient(cc grpc.ClientConnInterface) InventoryServiceClient {
	return &inventoryServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *inventoryServiceClient) GetStock(ctx context.Context, in *GetStockRequest, opts ...grpc.CallOption) (*GetStockResponse, error) {
	return invoke[GetStockResponse](ctx, c.cc, GetStockFullMethod, in, opts)
}

func (c *inventoryServiceClient) GetAvailable(ctx context.Context, in *GetAvailableRequest, opts ...grpc.CallOption) (*GetAvailableResponse, error) {
	return invoke[GetAvailableResponse](ctx, c.cc, GetAvailableFullMethod, in, opts)
}

func (c *inventoryServiceClient) Reserve(ctx context.Context, in *ReserveRequest, opts ...grpc.CallOption) (*ReserveResponse, error) {
	return invoke[ReserveResponse](ctx, c.cc, ReserveFullMethod, in, opts)
}

func (c *inventoryServiceClient) Commit(ctx context.Context, in *CommitRequest, opts ...grpc.CallOption) (*CommitResponse, error) {
	return invoke[CommitResponse](ctx, c.cc, CommitFullMethod, in, opts)
}

func (c *inventoryServiceClient) Release(ctx context.Context, in *ReleaseRequest, opts ...grpc.CallOption) (*ReleaseResponse, error) {
	return invoke[ReleaseResponse](ctx, c.cc, ReleaseFullMethod, in, opts)
}

func (c *inventoryServiceClient) Restock(ctx context.Context, in *RestockRequest, opts ...grpc.CallOption) (*RestockResponse, error) {
	return invoke[RestockResponse](ctx, c.cc, RestockFullMethod, in, opts)
}

func (c *inventoryServiceClient) ListStock(ctx context.Context, in *ListStockRequest, opts ...grpc.CallOption) (*ListStockResponse, error) {
	return invoke[ListStockResponse](ctx, c.cc, ListStockFullMethod, in, opts)
}

func (c *inventoryServiceClient) SetStock(ctx context.Context, in *SetStockRequest, opts ...grpc.CallOption) (*SetStockResponse, error) {
	return invoke[SetStockResponse](ctx, c.cc, SetStockFullMethod, in, opts)
}
