package handler

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// The inventory service speaks JSON over gRPC, so the messages are plain Go
// structs and the service descriptor is written by hand.

const (
	InventoryServiceName = "farmacia.Inventory"
	ContentSubtype       = "json"
)

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return ContentSubtype }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type InventoryServer interface {
	Login(context.Context, *LoginRequest) (*LoginReply, error)
	CreatePurchase(context.Context, *PurchaseRequest) (*DocumentReply, error)
	CreateSale(context.Context, *SaleRequest) (*DocumentReply, error)
	SuggestProducts(context.Context, *SuggestRequest) (*SuggestReply, error)
}

func unaryMethod[Req, Reply any](name string, call func(InventoryServer, context.Context, *Req) (*Reply, error)) grpc.MethodDesc {
	fullMethod := "/" + InventoryServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(InventoryServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(InventoryServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var InventoryServiceDesc = grpc.ServiceDesc{
	ServiceName: InventoryServiceName,
	HandlerType: (*InventoryServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("Login", InventoryServer.Login),
		unaryMethod("CreatePurchase", InventoryServer.CreatePurchase),
		unaryMethod("CreateSale", InventoryServer.CreateSale),
		unaryMethod("SuggestProducts", InventoryServer.SuggestProducts),
	},
	Streams: []grpc.StreamDesc{},
}

func RegisterInventoryServer(s grpc.ServiceRegistrar, srv InventoryServer) {
	s.RegisterService(&InventoryServiceDesc, srv)
}

// InventoryClient calls the inventory service with the JSON codec.
type InventoryClient struct {
	cc grpc.ClientConnInterface
}

func NewInventoryClient(cc grpc.ClientConnInterface) *InventoryClient {
	return &InventoryClient{cc: cc}
}

func (c *InventoryClient) invoke(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(ContentSubtype)}, opts...)
	return c.cc.Invoke(ctx, "/"+InventoryServiceName+"/"+method, in, out, opts...)
}

func (c *InventoryClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginReply, error) {
	out := new(LoginReply)
	if err := c.invoke(ctx, "Login", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *InventoryClient) CreatePurchase(ctx context.Context, in *PurchaseRequest, opts ...grpc.CallOption) (*DocumentReply, error) {
	out := new(DocumentReply)
	if err := c.invoke(ctx, "CreatePurchase", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *InventoryClient) CreateSale(ctx context.Context, in *SaleRequest, opts ...grpc.CallOption) (*DocumentReply, error) {
	out := new(DocumentReply)
	if err := c.invoke(ctx, "CreateSale", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *InventoryClient) SuggestProducts(ctx context.Context, in *SuggestRequest, opts ...grpc.CallOption) (*SuggestReply, error) {
	out := new(SuggestReply)
	if err := c.invoke(ctx, "SuggestProducts", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
