package domain_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

func makeMember() domain.Member {
	return domain.Member{
		ID:      "member-1",
		Name:    "Alice",
		Address: domain.Address{City: "Seoul", Street: "Gangnam-daero", Zipcode: "06000"},
	}
}

// helper для создания заказа с одной позицией на quantity единиц.
func placeSingleLineOrder(t *testing.T, item *domain.Item, quantity int) domain.Order {
	t.Helper()
	member := makeMember()
	line, err := domain.NewOrderLine(item, item.Price, quantity)
	if err != nil {
		t.Fatalf("new order line: %v", err)
	}
	order, err := domain.PlaceOrder(member, domain.NewDelivery(member.Address), line)
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	return order
}

func TestNewOrderLine_DecreasesStock(t *testing.T) {
	item := makeItem(t, 10)

	line, err := domain.NewOrderLine(item, 9000, 3)
	if err != nil {
		t.Fatalf("new order line: %v", err)
	}
	if line.ItemID != item.ID || line.OrderPrice != 9000 || line.Count != 3 {
		t.Fatalf("unexpected line: %+v", line)
	}
	if line.ID == "" {
		t.Fatal("expected line id to be assigned")
	}
	if got := item.StockQuantity(); got != 7 {
		t.Fatalf("expected stock 7, got %d", got)
	}
}

func TestNewOrderLine_Errors(t *testing.T) {
	cases := []struct {
		name  string
		price int64
		count int
		want  error
	}{
		{name: "insufficient stock", price: 100, count: 3, want: domain.ErrInsufficientStock},
		{name: "zero count", price: 100, count: 0, want: domain.ErrQuantityInvalid},
		{name: "negative price", price: -1, count: 1, want: domain.ErrPriceNegative},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			item := makeItem(t, 2)
			line, err := domain.NewOrderLine(item, tc.price, tc.count)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if line != (domain.OrderLine{}) {
				t.Fatalf("expected no line on failure, got %+v", line)
			}
			if got := item.StockQuantity(); got != 2 {
				t.Fatalf("stock must stay 2, got %d", got)
			}
		})
	}
}

func TestOrderLine_CancelRejectsForeignItem(t *testing.T) {
	item := makeItem(t, 5)
	line, err := domain.NewOrderLine(item, item.Price, 1)
	if err != nil {
		t.Fatalf("new order line: %v", err)
	}

	other := makeItem(t, 5)
	other.ID = "item-2"
	if err := line.Cancel(other); !errors.Is(err, domain.ErrLineItemMismatch) {
		t.Fatalf("expected ErrLineItemMismatch, got %v", err)
	}
	if got := other.StockQuantity(); got != 5 {
		t.Fatalf("foreign item stock must stay 5, got %d", got)
	}
}

func TestPlaceOrder_BuildsAggregate(t *testing.T) {
	item := makeItem(t, 10)
	before := time.Now().UTC().Add(-time.Second)

	order := placeSingleLineOrder(t, item, 2)

	if order.ID == "" {
		t.Fatal("expected order id")
	}
	if order.Status != domain.OrderStatusOrdered {
		t.Fatalf("expected status ORDERED, got %s", order.Status)
	}
	if order.MemberID != "member-1" {
		t.Fatalf("unexpected member id %s", order.MemberID)
	}
	if order.OrderDate.Before(before) {
		t.Fatalf("order date %s is not current", order.OrderDate)
	}
	if len(order.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(order.Lines))
	}
	if order.Delivery.Status != domain.DeliveryStatusReady {
		t.Fatalf("expected delivery READY, got %s", order.Delivery.Status)
	}
	if order.Delivery.Address.City != "Seoul" {
		t.Fatalf("expected delivery address snapshot, got %+v", order.Delivery.Address)
	}
}

func TestPlaceOrder_Errors(t *testing.T) {
	item := makeItem(t, 10)
	line, err := domain.NewOrderLine(item, item.Price, 1)
	if err != nil {
		t.Fatalf("new order line: %v", err)
	}

	if _, err := domain.PlaceOrder(domain.Member{}, domain.NewDelivery(domain.Address{}), line); !errors.Is(err, domain.ErrMemberRequired) {
		t.Fatalf("expected ErrMemberRequired, got %v", err)
	}
	if _, err := domain.PlaceOrder(makeMember(), domain.NewDelivery(domain.Address{})); !errors.Is(err, domain.ErrLinesRequired) {
		t.Fatalf("expected ErrLinesRequired, got %v", err)
	}
}

func TestOrderCancel_RestoresStock(t *testing.T) {
	item := makeItem(t, 10)
	order := placeSingleLineOrder(t, item, 4)
	if got := item.StockQuantity(); got != 6 {
		t.Fatalf("expected stock 6 after order, got %d", got)
	}

	if err := order.Cancel(map[string]*domain.Item{item.ID: item}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if order.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", order.Status)
	}
	if got := item.StockQuantity(); got != 10 {
		t.Fatalf("expected stock restored to 10, got %d", got)
	}
}

func TestOrderCancel_Twice(t *testing.T) {
	item := makeItem(t, 10)
	order := placeSingleLineOrder(t, item, 4)
	items := map[string]*domain.Item{item.ID: item}

	if err := order.Cancel(items); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	if err := order.Cancel(items); !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}
	if got := item.StockQuantity(); got != 10 {
		t.Fatalf("second cancel must not touch stock, got %d", got)
	}
	if order.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", order.Status)
	}
}

func TestOrderCancel_MissingItemHasNoEffect(t *testing.T) {
	book := makeItem(t, 10)
	album := &domain.Item{ID: "item-2", Name: "Album", Price: 500, Details: domain.Album{Artist: "x"}}
	if err := album.AddStock(5); err != nil {
		t.Fatalf("add stock: %v", err)
	}

	member := makeMember()
	l1, err := domain.NewOrderLine(book, book.Price, 1)
	if err != nil {
		t.Fatalf("line 1: %v", err)
	}
	l2, err := domain.NewOrderLine(album, album.Price, 2)
	if err != nil {
		t.Fatalf("line 2: %v", err)
	}
	order, err := domain.PlaceOrder(member, domain.NewDelivery(member.Address), l1, l2)
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	err = order.Cancel(map[string]*domain.Item{book.ID: book})
	if !errors.Is(err, domain.ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
	if got := book.StockQuantity(); got != 9 {
		t.Fatalf("book stock must stay 9, got %d", got)
	}
	if order.Status != domain.OrderStatusOrdered {
		t.Fatalf("status must stay ORDERED, got %s", order.Status)
	}
}

func TestOrderTotalPrice_UsesOrderTimePrice(t *testing.T) {
	book := makeItem(t, 10)
	member := makeMember()

	l1, err := domain.NewOrderLine(book, 1000, 2)
	if err != nil {
		t.Fatalf("line 1: %v", err)
	}
	l2, err := domain.NewOrderLine(book, 1500, 3)
	if err != nil {
		t.Fatalf("line 2: %v", err)
	}
	order, err := domain.PlaceOrder(member, domain.NewDelivery(member.Address), l1, l2)
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	book.Price = 99999

	if got := order.TotalPrice(); got != 2*1000+3*1500 {
		t.Fatalf("expected total 6500, got %d", got)
	}
	if ids := order.ItemIDs(); len(ids) != 1 || ids[0] != book.ID {
		t.Fatalf("expected distinct item ids [%s], got %v", book.ID, ids)
	}
}

func TestOrderStatus_Valid(t *testing.T) {
	if !domain.OrderStatusOrdered.Valid() || !domain.OrderStatusCancelled.Valid() {
		t.Fatal("expected known statuses to be valid")
	}
	if domain.OrderStatus("SHIPPED").Valid() {
		t.Fatal("expected unknown status to be invalid")
	}
}

func TestNewOrderOutboxMessage(t *testing.T) {
	item := makeItem(t, 10)
	order := placeSingleLineOrder(t, item, 2)

	msg, err := domain.NewOrderOutboxMessage(domain.EventOrderPlaced, order, time.Now())
	if err != nil {
		t.Fatalf("build outbox message: %v", err)
	}
	if msg.AggregateType != domain.OutboxAggregateOrder || msg.AggregateID != order.ID {
		t.Fatalf("unexpected message envelope: %+v", msg)
	}

	var event domain.OrderEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if event.TotalPrice != 2*item.Price || len(event.Lines) != 1 {
		t.Fatalf("unexpected payload: %+v", event)
	}
}

func TestOrderCancel_ForeignItemHasNoEffect(t *testing.T) {
	book := makeItem(t, 10)
	album := &domain.Item{ID: "item-2", Name: "Album", Price: 500, Details: domain.Album{Artist: "x"}}
	if err := album.AddStock(5); err != nil {
		t.Fatalf("add stock: %v", err)
	}

	member := makeMember()
	l1, err := domain.NewOrderLine(book, book.Price, 1)
	if err != nil {
		t.Fatalf("line 1: %v", err)
	}
	l2, err := domain.NewOrderLine(album, album.Price, 2)
	if err != nil {
		t.Fatalf("line 2: %v", err)
	}
	order, err := domain.PlaceOrder(member, domain.NewDelivery(member.Address), l1, l2)
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	// Ключ совпадает с позицией, но под ним лежит другой товар.
	err = order.Cancel(map[string]*domain.Item{book.ID: book, album.ID: book})
	if !errors.Is(err, domain.ErrLineItemMismatch) {
		t.Fatalf("expected ErrLineItemMismatch, got %v", err)
	}
	if got := book.StockQuantity(); got != 9 {
		t.Fatalf("book stock must stay 9, got %d", got)
	}
	if got := album.StockQuantity(); got != 3 {
		t.Fatalf("album stock must stay 3, got %d", got)
	}
	if order.Status != domain.OrderStatusOrdered {
		t.Fatalf("status must stay ORDERED, got %s", order.Status)
	}
}
