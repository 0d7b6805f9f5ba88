// Package ordering реализует сценарии оформления, отмены и поиска заказов.
package ordering

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
	"github.com/vladislavdragonenkov/ordercore/internal/metrics"
)

const (
	opPlace  = "place"
	opCancel = "cancel"
	opSearch = "search"
)

var tracer = otel.Tracer("ordercore/ordering")

// LineRequest: запрос на одну позицию заказа.
type LineRequest struct {
	ItemID string
	Count  int
}

// Service выполняет use case заказов поверх шлюза хранения.
type Service struct {
	gateway domain.Gateway
	retry   RetryConfig
	logger  *log.Entry
	metrics *metrics.OrderMetrics
	now     func() time.Time
}

// Option настраивает Service.
type Option func(*Service)

// WithRetryConfig задаёт политику повторов после конфликта версий.
func WithRetryConfig(cfg RetryConfig) Option {
	return func(s *Service) {
		s.retry = cfg.normalized()
	}
}

// WithLogger задаёт логгер сервиса.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics задаёт набор метрик.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithClock подменяет источник времени для событий outbox.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService создаёт сервис заказов.
func NewService(gateway domain.Gateway, opts ...Option) *Service {
	s := &Service{
		gateway: gateway,
		retry:   DefaultRetryConfig(),
		logger:  log.WithField("component", "ordering-service"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.NewOrderMetrics()
	}
	return s
}

// PlaceOrder оформляет заказ из одной позиции и возвращает его идентификатор.
func (s *Service) PlaceOrder(ctx context.Context, memberID, itemID string, count int) (string, error) {
	return s.Place(ctx, memberID, LineRequest{ItemID: itemID, Count: count})
}

// Place оформляет заказ из нескольких позиций. Остатки всех товаров списываются
// в одной транзакции: ошибка на любой позиции откатывает все предыдущие.
func (s *Service) Place(ctx context.Context, memberID string, lines ...LineRequest) (string, error) {
	ctx, span := tracer.Start(ctx, "ordering.Place", trace.WithAttributes(
		attribute.String("ordercore.member_id", memberID),
		attribute.Int("ordercore.lines", len(lines)),
	))
	defer span.End()
	defer s.metrics.Start(opPlace)()

	if len(lines) == 0 {
		return "", s.reject(span, opPlace, domain.ErrLinesRequired)
	}

	var placed domain.Order
	err := s.executeWithRetry(ctx, opPlace, func() error {
		return s.gateway.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
			order, err := placeInTx(ctx, repos, memberID, lines)
			if err != nil {
				return err
			}
			saved, err := repos.Orders().Save(ctx, order)
			if err != nil {
				return err
			}
			if err := s.enqueue(ctx, repos, domain.EventOrderPlaced, saved); err != nil {
				return err
			}
			placed = saved
			return nil
		})
	})
	if err != nil {
		return "", s.reject(span, opPlace, err)
	}

	units := countUnits(placed)
	s.metrics.RecordOrderPlaced(units)
	span.SetAttributes(attribute.String("ordercore.order_id", placed.ID))
	s.logger.WithFields(log.Fields{
		"order_id":  placed.ID,
		"member_id": memberID,
		"lines":     len(placed.Lines),
		"units":     units,
	}).Info("order placed")
	return placed.ID, nil
}

func placeInTx(ctx context.Context, repos domain.Repositories, memberID string, lines []LineRequest) (domain.Order, error) {
	member, err := repos.Members().FindOne(ctx, memberID)
	if err != nil {
		return domain.Order{}, err
	}

	orderLines := make([]domain.OrderLine, 0, len(lines))
	for _, req := range lines {
		// Товар перечитывается на каждой позиции: повтор того же товара видит уже списанный остаток.
		item, err := repos.Items().FindOne(ctx, req.ItemID)
		if err != nil {
			return domain.Order{}, err
		}
		line, err := domain.NewOrderLine(&item, item.Price, req.Count)
		if err != nil {
			return domain.Order{}, err
		}
		if _, err := repos.Items().Save(ctx, item); err != nil {
			return domain.Order{}, err
		}
		orderLines = append(orderLines, line)
	}

	return domain.PlaceOrder(member, domain.NewDelivery(member.Address), orderLines...)
}

// CancelOrder отменяет заказ и возвращает товар на склад. Повторная отмена
// возвращает ErrInvalidStateTransition и не меняет остатки.
func (s *Service) CancelOrder(ctx context.Context, orderID string) error {
	ctx, span := tracer.Start(ctx, "ordering.CancelOrder", trace.WithAttributes(
		attribute.String("ordercore.order_id", orderID),
	))
	defer span.End()
	defer s.metrics.Start(opCancel)()

	var cancelled domain.Order
	err := s.executeWithRetry(ctx, opCancel, func() error {
		return s.gateway.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
			order, err := repos.Orders().FindOne(ctx, orderID)
			if err != nil {
				return err
			}
			if order.Status != domain.OrderStatusOrdered {
				return domain.ErrInvalidStateTransition
			}

			ids := order.ItemIDs()
			items := make(map[string]*domain.Item, len(ids))
			for _, id := range ids {
				item, err := repos.Items().FindOne(ctx, id)
				if err != nil {
					return err
				}
				items[id] = &item
			}

			if err := order.Cancel(items); err != nil {
				return err
			}
			for _, id := range ids {
				if _, err := repos.Items().Save(ctx, *items[id]); err != nil {
					return err
				}
			}

			saved, err := repos.Orders().Save(ctx, order)
			if err != nil {
				return err
			}
			if err := s.enqueue(ctx, repos, domain.EventOrderCancelled, saved); err != nil {
				return err
			}
			cancelled = saved
			return nil
		})
	})
	if err != nil {
		return s.reject(span, opCancel, err)
	}

	units := countUnits(cancelled)
	s.metrics.RecordOrderCancelled(units)
	s.logger.WithFields(log.Fields{
		"order_id": cancelled.ID,
		"units":    units,
	}).Info("order cancelled")
	return nil
}

// SearchOrders ищет заказы по статусу и фрагменту имени участника; не больше 1000 результатов.
func (s *Service) SearchOrders(ctx context.Context, search domain.OrderSearch) ([]domain.Order, error) {
	ctx, span := tracer.Start(ctx, "ordering.SearchOrders", trace.WithAttributes(
		attribute.String("ordercore.order_status", string(search.OrderStatus)),
		attribute.Bool("ordercore.member_name_filter", search.HasMemberName()),
	))
	defer span.End()
	defer s.metrics.Start(opSearch)()

	if err := search.Validate(); err != nil {
		return nil, s.reject(span, opSearch, err)
	}

	orders, err := s.gateway.Orders().FindOrders(ctx, search)
	if err != nil {
		return nil, s.reject(span, opSearch, err)
	}
	span.SetAttributes(attribute.Int("ordercore.results", len(orders)))
	return orders, nil
}

// FindOrder возвращает заказ по идентификатору.
func (s *Service) FindOrder(ctx context.Context, orderID string) (domain.Order, error) {
	return s.gateway.Orders().FindOne(ctx, orderID)
}

func (s *Service) enqueue(ctx context.Context, repos domain.Repositories, eventType string, order domain.Order) error {
	msg, err := domain.NewOrderOutboxMessage(eventType, order, s.now())
	if err != nil {
		return err
	}
	_, err = repos.Outbox().Enqueue(ctx, msg)
	return err
}

func (s *Service) reject(span trace.Span, operation string, err error) error {
	reason := rejectionReason(err)
	s.metrics.RecordRejected(operation, reason)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	entry := s.logger.WithError(err).WithFields(log.Fields{
		"operation": operation,
		"reason":    reason,
	})
	if reason == "persistence" {
		entry.Error("order operation failed")
	} else {
		entry.Warn("order operation rejected")
	}
	return err
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrInvalidStateTransition):
		return "invalid_state"
	case domain.IsNotFound(err):
		return "not_found"
	case domain.IsVersionConflict(err):
		return "version_conflict"
	case domain.IsPersistenceFailure(err):
		return "persistence"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "invalid_request"
	}
}

func countUnits(order domain.Order) int {
	units := 0
	for _, line := range order.Lines {
		units += line.Count
	}
	return units
}
