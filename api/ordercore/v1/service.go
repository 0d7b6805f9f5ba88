package ordercorev1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName: полное имя gRPC-сервиса.
const ServiceName = "ordercore.v1.OrderCoreService"

const (
	OrderCoreService_RegisterMember_FullMethodName = "/" + ServiceName + "/RegisterMember"
	OrderCoreService_ListMembers_FullMethodName    = "/" + ServiceName + "/ListMembers"
	OrderCoreService_RegisterItem_FullMethodName   = "/" + ServiceName + "/RegisterItem"
	OrderCoreService_ListItems_FullMethodName      = "/" + ServiceName + "/ListItems"
	OrderCoreService_PlaceOrder_FullMethodName     = "/" + ServiceName + "/PlaceOrder"
	OrderCoreService_CancelOrder_FullMethodName    = "/" + ServiceName + "/CancelOrder"
	OrderCoreService_GetOrder_FullMethodName       = "/" + ServiceName + "/GetOrder"
	OrderCoreService_SearchOrders_FullMethodName   = "/" + ServiceName + "/SearchOrders"
)

// OrderCoreServiceServer: серверная часть API.
type OrderCoreServiceServer interface {
	RegisterMember(context.Context, *RegisterMemberRequest) (*RegisterMemberResponse, error)
	ListMembers(context.Context, *ListMembersRequest) (*ListMembersResponse, error)
	RegisterItem(context.Context, *RegisterItemRequest) (*RegisterItemResponse, error)
	ListItems(context.Context, *ListItemsRequest) (*ListItemsResponse, error)
	PlaceOrder(context.Context, *PlaceOrderRequest) (*PlaceOrderResponse, error)
	CancelOrder(context.Context, *CancelOrderRequest) (*CancelOrderResponse, error)
	GetOrder(context.Context, *GetOrderRequest) (*GetOrderResponse, error)
	SearchOrders(context.Context, *SearchOrdersRequest) (*SearchOrdersResponse, error)
}

// UnimplementedOrderCoreServiceServer отвечает Unimplemented на все методы.
type UnimplementedOrderCoreServiceServer struct{}

func (UnimplementedOrderCoreServiceServer) RegisterMember(context.Context, *RegisterMemberRequest) (*RegisterMemberResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RegisterMember not implemented")
}

func (UnimplementedOrderCoreServiceServer) ListMembers(context.Context, *ListMembersRequest) (*ListMembersResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListMembers not implemented")
}

func (UnimplementedOrderCoreServiceServer) RegisterItem(context.Context, *RegisterItemRequest) (*RegisterItemResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RegisterItem not implemented")
}

func (UnimplementedOrderCoreServiceServer) ListItems(context.Context, *ListItemsRequest) (*ListItemsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListItems not implemented")
}

func (UnimplementedOrderCoreServiceServer) PlaceOrder(context.Context, *PlaceOrderRequest) (*PlaceOrderResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method PlaceOrder not implemented")
}

func (UnimplementedOrderCoreServiceServer) CancelOrder(context.Context, *CancelOrderRequest) (*CancelOrderResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CancelOrder not implemented")
}

func (UnimplementedOrderCoreServiceServer) GetOrder(context.Context, *GetOrderRequest) (*GetOrderResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetOrder not implemented")
}

func (UnimplementedOrderCoreServiceServer) SearchOrders(context.Context, *SearchOrdersRequest) (*SearchOrdersResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method SearchOrders not implemented")
}

// RegisterOrderCoreServiceServer регистрирует реализацию API на gRPC-сервере.
func RegisterOrderCoreServiceServer(s grpc.ServiceRegistrar, srv OrderCoreServiceServer) {
	s.RegisterService(&OrderCoreService_ServiceDesc, srv)
}

// OrderCoreService_ServiceDesc: дескриптор сервиса для grpc.Server.
var OrderCoreService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrderCoreServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RegisterMember", Handler: unaryHandler(OrderCoreService_RegisterMember_FullMethodName, OrderCoreServiceServer.RegisterMember)},
		{MethodName: "ListMembers", Handler: unaryHandler(OrderCoreService_ListMembers_FullMethodName, OrderCoreServiceServer.ListMembers)},
		{MethodName: "RegisterItem", Handler: unaryHandler(OrderCoreService_RegisterItem_FullMethodName, OrderCoreServiceServer.RegisterItem)},
		{MethodName: "ListItems", Handler: unaryHandler(OrderCoreService_ListItems_FullMethodName, OrderCoreServiceServer.ListItems)},
		{MethodName: "PlaceOrder", Handler: unaryHandler(OrderCoreService_PlaceOrder_FullMethodName, OrderCoreServiceServer.PlaceOrder)},
		{MethodName: "CancelOrder", Handler: unaryHandler(OrderCoreService_CancelOrder_FullMethodName, OrderCoreServiceServer.CancelOrder)},
		{MethodName: "GetOrder", Handler: unaryHandler(OrderCoreService_GetOrder_FullMethodName, OrderCoreServiceServer.GetOrder)},
		{MethodName: "SearchOrders", Handler: unaryHandler(OrderCoreService_SearchOrders_FullMethodName, OrderCoreServiceServer.SearchOrders)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "api/ordercore/v1",
}

func unaryHandler[Req, Resp any](
	fullMethod string,
	call func(OrderCoreServiceServer, context.Context, *Req) (*Resp, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		server := srv.(OrderCoreServiceServer)
		if interceptor == nil {
			return call(server, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(server, ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// OrderCoreServiceClient: клиент API.
type OrderCoreServiceClient interface {
	RegisterMember(ctx context.Context, in *RegisterMemberRequest, opts ...grpc.CallOption) (*RegisterMemberResponse, error)
	ListMembers(ctx context.Context, in *ListMembersRequest, opts ...grpc.CallOption) (*ListMembersResponse, error)
	RegisterItem(ctx context.Context, in *RegisterItemRequest, opts ...grpc.CallOption) (*RegisterItemResponse, error)
	ListItems(ctx context.Context, in *ListItemsRequest, opts ...grpc.CallOption) (*ListItemsResponse, error)
	PlaceOrder(ctx context.Context, in *PlaceOrderRequest, opts ...grpc.CallOption) (*PlaceOrderResponse, error)
	CancelOrder(ctx context.Context, in *CancelOrderRequest, opts ...grpc.CallOption) (*CancelOrderResponse, error)
	GetOrder(ctx context.Context, in *GetOrderRequest, opts ...grpc.CallOption) (*GetOrderResponse, error)
	SearchOrders(ctx context.Context, in *SearchOrdersRequest, opts ...grpc.CallOption) (*SearchOrdersResponse, error)
}

type orderCoreServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewOrderCoreServiceClient создаёт клиент поверх соединения. Все вызовы идут с JSON-кодеком.
func NewOrderCoreServiceClient(cc grpc.ClientConnInterface) OrderCoreServiceClient {
	return &orderCoreServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	callOpts := append([]grpc.CallOption{grpc.CallContentSubtype(ContentSubtype)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, callOpts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *orderCoreServiceClient) RegisterMember(ctx context.Context, in *RegisterMemberRequest, opts ...grpc.CallOption) (*RegisterMemberResponse, error) {
	return invoke[RegisterMemberResponse](ctx, c.cc, OrderCoreService_RegisterMember_FullMethodName, in, opts)
}

func (c *orderCoreServiceClient) ListMembers(ctx context.Context, in *ListMembersRequest, opts ...grpc.CallOption) (*ListMembersResponse, error) {
	return invoke[ListMembersResponse](ctx, c.cc, OrderCoreService_ListMembers_FullMethodName, in, opts)
}

func (c *orderCoreServiceClient) RegisterItem(ctx context.Context, in *RegisterItemRequest, opts ...grpc.CallOption) (*RegisterItemResponse, error) {
	return invoke[RegisterItemResponse](ctx, c.cc, OrderCoreService_RegisterItem_FullMethodName, in, opts)
}

func (c *orderCoreServiceClient) ListItems(ctx context.Context, in *ListItemsRequest, opts ...grpc.CallOption) (*ListItemsResponse, error) {
	return invoke[ListItemsResponse](ctx, c.cc, OrderCoreService_ListItems_FullMethodName, in, opts)
}

func (c *orderCoreServiceClient) PlaceOrder(ctx context.Context, in *PlaceOrderRequest, opts ...grpc.CallOption) (*PlaceOrderResponse, error) {
	return invoke[PlaceOrderResponse](ctx, c.cc, OrderCoreService_PlaceOrder_FullMethodName, in, opts)
}

func (c *orderCoreServiceClient) CancelOrder(ctx context.Context, in *CancelOrderRequest, opts ...grpc.CallOption) (*CancelOrderResponse, error) {
	return invoke[CancelOrderResponse](ctx, c.cc, OrderCoreService_CancelOrder_FullMethodName, in, opts)
}

func (c *orderCoreServiceClient) GetOrder(ctx context.Context, in *GetOrderRequest, opts ...grpc.CallOption) (*GetOrderResponse, error) {
	return invoke[GetOrderResponse](ctx, c.cc, OrderCoreService_GetOrder_FullMethodName, in, opts)
}

func (c *orderCoreServiceClient) SearchOrders(ctx context.Context, in *SearchOrdersRequest, opts ...grpc.CallOption) (*SearchOrdersResponse, error) {
	return invoke[SearchOrdersResponse](ctx, c.cc, OrderCoreService_SearchOrders_FullMethodName, in, opts)
}
