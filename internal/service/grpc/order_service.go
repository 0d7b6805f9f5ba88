package grpcsvc

import (
	"context"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	ordercorev1 "github.com/vladislavdragonenkov/ordercore/api/ordercore/v1"
	"github.com/vladislavdragonenkov/ordercore/internal/domain"
	"github.com/vladislavdragonenkov/ordercore/internal/service/catalog"
	"github.com/vladislavdragonenkov/ordercore/internal/service/member"
	"github.com/vladislavdragonenkov/ordercore/internal/service/ordering"
)

// OrderCoreService реализует gRPC API поверх сервисов участников, каталога и заказов.
type OrderCoreService struct {
	ordercorev1.UnimplementedOrderCoreServiceServer

	orders  *ordering.Service
	members *member.Service
	catalog *catalog.Service
	logger  *log.Entry
}

// NewOrderCoreService конструирует сервис с зависимостями.
func NewOrderCoreService(
	orders *ordering.Service,
	members *member.Service,
	items *catalog.Service,
	logger *log.Entry,
) *OrderCoreService {
	if logger == nil {
		logger = log.WithField("component", "grpc-api")
	}
	return &OrderCoreService{
		orders:  orders,
		members: members,
		catalog: items,
		logger:  logger,
	}
}

// RegisterMember регистрирует участника с уникальным именем.
func (s *OrderCoreService) RegisterMember(ctx context.Context, req *ordercorev1.RegisterMemberRequest) (*ordercorev1.RegisterMemberResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	joined, err := s.members.Join(ctx, member.JoinRequest{
		Name:    req.Name,
		Address: fromAPIAddress(req.Address),
	})
	if err != nil {
		return nil, s.toStatus(err, "RegisterMember")
	}
	return &ordercorev1.RegisterMemberResponse{Member: toAPIMember(joined)}, nil
}

// ListMembers возвращает всех участников или тех, чьё имя содержит NameContains.
func (s *OrderCoreService) ListMembers(ctx context.Context, req *ordercorev1.ListMembersRequest) (*ordercorev1.ListMembersResponse, error) {
	var (
		found []domain.Member
		err   error
	)
	if req != nil && strings.TrimSpace(req.NameContains) != "" {
		found, err = s.members.SearchByName(ctx, req.NameContains)
	} else {
		found, err = s.members.FindMembers(ctx)
	}
	if err != nil {
		return nil, s.toStatus(err, "ListMembers")
	}

	result := make([]*ordercorev1.Member, 0, len(found))
	for _, m := range found {
		result = append(result, toAPIMember(m))
	}
	return &ordercorev1.ListMembersResponse{Members: result}, nil
}

// RegisterItem добавляет товар в каталог.
func (s *OrderCoreService) RegisterItem(ctx context.Context, req *ordercorev1.RegisterItemRequest) (*ordercorev1.RegisterItemResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	details, err := fromAPIDetails(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	item, err := s.catalog.Register(ctx, catalog.RegisterRequest{
		Name:          req.Name,
		Price:         req.Price,
		StockQuantity: int(req.StockQuantity),
		Details:       details,
	})
	if err != nil {
		return nil, s.toStatus(err, "RegisterItem")
	}
	return &ordercorev1.RegisterItemResponse{Item: toAPIItem(item)}, nil
}

// ListItems возвращает каталог.
func (s *OrderCoreService) ListItems(ctx context.Context, _ *ordercorev1.ListItemsRequest) (*ordercorev1.ListItemsResponse, error) {
	items, err := s.catalog.FindItems(ctx)
	if err != nil {
		return nil, s.toStatus(err, "ListItems")
	}

	result := make([]*ordercorev1.Item, 0, len(items))
	for _, item := range items {
		result = append(result, toAPIItem(item))
	}
	return &ordercorev1.ListItemsResponse{Items: result}, nil
}

// PlaceOrder оформляет заказ и списывает остатки всех позиций атомарно.
func (s *OrderCoreService) PlaceOrder(ctx context.Context, req *ordercorev1.PlaceOrderRequest) (*ordercorev1.PlaceOrderResponse, error) {
	if req == nil || req.MemberId == "" {
		return nil, status.Error(codes.InvalidArgument, "member_id is required")
	}

	lines := make([]ordering.LineRequest, 0, len(req.Lines))
	for idx, line := range req.Lines {
		if line == nil {
			return nil, status.Errorf(codes.InvalidArgument, "lines[%d] is nil", idx)
		}
		if line.ItemId == "" {
			return nil, status.Errorf(codes.InvalidArgument, "lines[%d].item_id is required", idx)
		}
		lines = append(lines, ordering.LineRequest{ItemID: line.ItemId, Count: int(line.Count)})
	}

	orderID, err := s.orders.Place(ctx, req.MemberId, lines...)
	if err != nil {
		return nil, s.toStatus(err, "PlaceOrder")
	}
	return &ordercorev1.PlaceOrderResponse{OrderId: orderID}, nil
}

// CancelOrder отменяет заказ. Повторная отмена отвечает FailedPrecondition.
func (s *OrderCoreService) CancelOrder(ctx context.Context, req *ordercorev1.CancelOrderRequest) (*ordercorev1.CancelOrderResponse, error) {
	if req == nil || req.OrderId == "" {
		return nil, status.Error(codes.InvalidArgument, "order_id is required")
	}

	if err := s.orders.CancelOrder(ctx, req.OrderId); err != nil {
		return nil, s.toStatus(err, "CancelOrder")
	}
	return &ordercorev1.CancelOrderResponse{
		OrderId: req.OrderId,
		Status:  string(domain.OrderStatusCancelled),
	}, nil
}

// GetOrder возвращает заказ по идентификатору.
func (s *OrderCoreService) GetOrder(ctx context.Context, req *ordercorev1.GetOrderRequest) (*ordercorev1.GetOrderResponse, error) {
	if req == nil || req.OrderId == "" {
		return nil, status.Error(codes.InvalidArgument, "order_id is required")
	}

	order, err := s.orders.FindOrder(ctx, req.OrderId)
	if err != nil {
		return nil, s.toStatus(err, "GetOrder")
	}
	return &ordercorev1.GetOrderResponse{Order: toAPIOrder(order)}, nil
}

// SearchOrders ищет заказы по статусу и фрагменту имени участника.
func (s *OrderCoreService) SearchOrders(ctx context.Context, req *ordercorev1.SearchOrdersRequest) (*ordercorev1.SearchOrdersResponse, error) {
	var search domain.OrderSearch
	if req != nil {
		search = domain.OrderSearch{
			OrderStatus: domain.OrderStatus(strings.ToUpper(strings.TrimSpace(req.OrderStatus))),
			MemberName:  req.MemberName,
		}
	}

	orders, err := s.orders.SearchOrders(ctx, search)
	if err != nil {
		return nil, s.toStatus(err, "SearchOrders")
	}

	result := make([]*ordercorev1.Order, 0, len(orders))
	for _, order := range orders {
		result = append(result, toAPIOrder(order))
	}
	return &ordercorev1.SearchOrdersResponse{Orders: result}, nil
}

func (s *OrderCoreService) toStatus(err error, operation string) error {
	code := codeFor(err)

	entry := s.logger.WithError(err).WithFields(log.Fields{
		"operation": operation,
		"code":      code.String(),
	})
	if code == codes.Internal {
		entry.Error("request failed")
		return status.Error(codes.Internal, "internal error")
	}
	entry.Debug("request rejected")
	return status.Error(code, err.Error())
}

var validationErrors = []error{
	domain.ErrQuantityInvalid,
	domain.ErrStockNegative,
	domain.ErrPriceNegative,
	domain.ErrLinesRequired,
	domain.ErrMemberRequired,
	domain.ErrMemberNameRequired,
	domain.ErrItemNameRequired,
	domain.ErrItemKindRequired,
	domain.ErrOrderStatusInvalid,
}

func codeFor(err error) codes.Code {
	switch {
	case domain.IsNotFound(err):
		return codes.NotFound
	case errors.Is(err, domain.ErrInsufficientStock), errors.Is(err, domain.ErrInvalidStateTransition):
		return codes.FailedPrecondition
	case errors.Is(err, domain.ErrMemberNameTaken):
		return codes.AlreadyExists
	case domain.IsVersionConflict(err):
		return codes.Aborted
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return codes.InvalidArgument
		}
	}
	return codes.Internal
}
