package ordering_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
	"github.com/vladislavdragonenkov/ordercore/internal/metrics"
	"github.com/vladislavdragonenkov/ordercore/internal/service/catalog"
	"github.com/vladislavdragonenkov/ordercore/internal/service/member"
	"github.com/vladislavdragonenkov/ordercore/internal/service/ordering"
	"github.com/vladislavdragonenkov/ordercore/internal/service/outbox"
	"github.com/vladislavdragonenkov/ordercore/internal/storage/memory"
)

// OrderLifecycleTestSuite прогоняет заказ от регистрации участника до доставки событий.
type OrderLifecycleTestSuite struct {
	suite.Suite
	store     *memory.Store
	orders    *ordering.Service
	members   *member.Service
	catalog   *catalog.Service
	worker    *outbox.Worker
	publisher *capturingPublisher
}

func (s *OrderLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel)
	logger := baseLogger.WithField("component", "lifecycle-test")

	s.store = memory.NewStore()
	s.publisher = &capturingPublisher{}
	s.orders = ordering.NewService(s.store,
		ordering.WithLogger(logger),
		ordering.WithMetrics(metrics.NewOrderMetricsWithRegisterer(prometheus.NewRegistry())),
	)
	s.members = member.NewService(s.store, logger)
	s.catalog = catalog.NewService(s.store, logger)
	s.worker = outbox.NewWorker(s.store.Outbox(), s.publisher,
		outbox.WithLogger(logger),
		outbox.WithMetrics(metrics.NewOutboxMetricsWithRegisterer(prometheus.NewRegistry())),
		outbox.WithRetryBaseDelay(0),
	)
}

func (s *OrderLifecycleTestSuite) join(name string) domain.Member {
	joined, err := s.members.Join(context.Background(), member.JoinRequest{
		Name:    name,
		Address: domain.Address{City: "Seoul", Street: "Teheran-ro", Zipcode: "06236"},
	})
	require.NoError(s.T(), err)
	return joined
}

func (s *OrderLifecycleTestSuite) book(name string, price int64, stock int) domain.Item {
	item, err := s.catalog.Register(context.Background(), catalog.RegisterRequest{
		Name:          name,
		Price:         price,
		StockQuantity: stock,
		Details:       domain.Book{Author: "Kim", ISBN: "978-89-0000-000-0"},
	})
	require.NoError(s.T(), err)
	return item
}

func (s *OrderLifecycleTestSuite) stockOf(id string) int {
	item, err := s.catalog.FindOne(context.Background(), id)
	require.NoError(s.T(), err)
	return item.StockQuantity()
}

func (s *OrderLifecycleTestSuite) TestPlaceAndCancelDeliversEvents() {
	ctx := context.Background()
	buyer := s.join("userA")
	jpa1 := s.book("JPA1 BOOK", 10000, 100)
	jpa2 := s.book("JPA2 BOOK", 20000, 100)

	orderID, err := s.orders.Place(ctx, buyer.ID,
		ordering.LineRequest{ItemID: jpa1.ID, Count: 1},
		ordering.LineRequest{ItemID: jpa2.ID, Count: 2},
	)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 99, s.stockOf(jpa1.ID))
	require.Equal(s.T(), 98, s.stockOf(jpa2.ID))

	order, err := s.orders.FindOrder(ctx, orderID)
	require.NoError(s.T(), err)
	require.Equal(s.T(), domain.OrderStatusOrdered, order.Status)
	require.Equal(s.T(), int64(50000), order.TotalPrice())
	require.Equal(s.T(), buyer.Address, order.Delivery.Address)

	require.NoError(s.T(), s.orders.CancelOrder(ctx, orderID))
	require.Equal(s.T(), 100, s.stockOf(jpa1.ID))
	require.Equal(s.T(), 100, s.stockOf(jpa2.ID))

	err = s.orders.CancelOrder(ctx, orderID)
	require.ErrorIs(s.T(), err, domain.ErrInvalidStateTransition)
	require.Equal(s.T(), 100, s.stockOf(jpa1.ID))

	require.Equal(s.T(), 2, s.worker.ProcessOnce(ctx))
	events := s.publisher.events()
	require.Len(s.T(), events, 2)
	require.Equal(s.T(), domain.EventOrderPlaced, events[0].EventType)
	require.Equal(s.T(), domain.EventOrderCancelled, events[1].EventType)

	var placed domain.OrderEvent
	require.NoError(s.T(), json.Unmarshal(events[0].Payload, &placed))
	require.Equal(s.T(), orderID, placed.OrderID)
	require.Equal(s.T(), buyer.ID, placed.MemberID)
	require.Equal(s.T(), int64(50000), placed.TotalPrice)
	require.Len(s.T(), placed.Lines, 2)

	require.Zero(s.T(), s.worker.ProcessOnce(ctx))
}

func (s *OrderLifecycleTestSuite) TestInsufficientStockLeavesNoTrace() {
	ctx := context.Background()
	buyer := s.join("userB")
	plenty := s.book("SPRING1 BOOK", 20000, 200)
	scarce := s.book("SPRING2 BOOK", 40000, 3)

	_, err := s.orders.Place(ctx, buyer.ID,
		ordering.LineRequest{ItemID: plenty.ID, Count: 5},
		ordering.LineRequest{ItemID: scarce.ID, Count: 4},
	)
	require.ErrorIs(s.T(), err, domain.ErrInsufficientStock)
	require.Equal(s.T(), 200, s.stockOf(plenty.ID))
	require.Equal(s.T(), 3, s.stockOf(scarce.ID))

	orders, err := s.orders.SearchOrders(ctx, domain.OrderSearch{})
	require.NoError(s.T(), err)
	require.Empty(s.T(), orders)
	require.Zero(s.T(), s.worker.ProcessOnce(ctx))
}

func (s *OrderLifecycleTestSuite) TestSearchCombinesStatusAndName() {
	ctx := context.Background()
	alice := s.join("alice kim")
	bob := s.join("bob lee")
	item := s.book("GO BOOK", 30000, 10)

	aliceFirst, err := s.orders.PlaceOrder(ctx, alice.ID, item.ID, 1)
	require.NoError(s.T(), err)
	_, err = s.orders.PlaceOrder(ctx, alice.ID, item.ID, 1)
	require.NoError(s.T(), err)
	_, err = s.orders.PlaceOrder(ctx, bob.ID, item.ID, 1)
	require.NoError(s.T(), err)
	require.NoError(s.T(), s.orders.CancelOrder(ctx, aliceFirst))

	cases := []struct {
		search domain.OrderSearch
		want   int
	}{
		{domain.OrderSearch{}, 3},
		{domain.OrderSearch{MemberName: "kim"}, 2},
		{domain.OrderSearch{OrderStatus: domain.OrderStatusOrdered}, 2},
		{domain.OrderSearch{OrderStatus: domain.OrderStatusCancelled, MemberName: "alice"}, 1},
		{domain.OrderSearch{OrderStatus: domain.OrderStatusCancelled, MemberName: "bob"}, 0},
		{domain.OrderSearch{MemberName: "   "}, 3},
	}
	for _, tc := range cases {
		orders, err := s.orders.SearchOrders(ctx, tc.search)
		require.NoError(s.T(), err)
		require.Len(s.T(), orders, tc.want, "search %+v", tc.search)
	}
}

func (s *OrderLifecycleTestSuite) TestConcurrentOrdersNeverOversell() {
	ctx := context.Background()
	buyer := s.join("userC")
	item := s.book("LAST COPIES", 15000, 10)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		placed   int
		rejected int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.orders.PlaceOrder(ctx, buyer.ID, item.ID, 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				placed++
			case domain.IsVersionConflict(err), errors.Is(err, domain.ErrInsufficientStock):
				rejected++
			default:
				s.T().Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.LessOrEqual(s.T(), placed, 10)
	require.Equal(s.T(), 20, placed+rejected)
	require.Equal(s.T(), 10-placed, s.stockOf(item.ID))

	orders, err := s.orders.SearchOrders(ctx, domain.OrderSearch{OrderStatus: domain.OrderStatusOrdered})
	require.NoError(s.T(), err)
	require.Len(s.T(), orders, placed)
}

func TestOrderLifecycleTestSuite(t *testing.T) {
	suite.Run(t, new(OrderLifecycleTestSuite))
}

type capturingPublisher struct {
	mu        sync.Mutex
	published []domain.OutboxMessage
}

func (p *capturingPublisher) Publish(_ context.Context, msg domain.OutboxMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, msg)
	return nil
}

func (p *capturingPublisher) events() []domain.OutboxMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.OutboxMessage(nil), p.published...)
}
