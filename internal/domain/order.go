package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus описывает жизненный цикл заказа: ORDERED → CANCELLED.
type OrderStatus string

const (
	// OrderStatusOrdered: заказ оформлен, товар списан со склада.
	OrderStatusOrdered OrderStatus = "ORDERED"
	// OrderStatusCancelled: заказ отменён, остатки возвращены. Конечное состояние.
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusOrdered, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// DeliveryStatus: статус доставки.
type DeliveryStatus string

const (
	DeliveryStatusReady    DeliveryStatus = "READY"
	DeliveryStatusComplete DeliveryStatus = "COMPLETE"
)

// Delivery: снимок адреса доставки, создаётся и хранится вместе с заказом.
type Delivery struct {
	ID      string
	Address Address
	Status  DeliveryStatus
}

// NewDelivery создаёт доставку в статусе READY.
func NewDelivery(address Address) Delivery {
	return Delivery{
		ID:      uuid.NewString(),
		Address: address,
		Status:  DeliveryStatusReady,
	}
}

// OrderLine: позиция заказа: товар, цена на момент заказа и количество.
type OrderLine struct {
	ID     string
	ItemID string
	// OrderPrice фиксируется при создании и не зависит от последующих изменений цены товара.
	OrderPrice int64
	Count      int
}

// NewOrderLine создаёт позицию и списывает count единиц со склада товара.
// При ошибке позиция не создаётся, а остаток товара не меняется.
func NewOrderLine(item *Item, orderPrice int64, count int) (OrderLine, error) {
	if count <= 0 {
		return OrderLine{}, ErrQuantityInvalid
	}
	if orderPrice < 0 {
		return OrderLine{}, ErrPriceNegative
	}
	if err := item.RemoveStock(count); err != nil {
		return OrderLine{}, err
	}

	return OrderLine{
		ID:         uuid.NewString(),
		ItemID:     item.ID,
		OrderPrice: orderPrice,
		Count:      count,
	}, nil
}

// TotalPrice возвращает стоимость позиции.
func (l OrderLine) TotalPrice() int64 {
	return l.OrderPrice * int64(l.Count)
}

// Cancel возвращает на склад ровно то количество, которое было списано при создании позиции.
func (l OrderLine) Cancel(item *Item) error {
	if item == nil || item.ID != l.ItemID {
		return ErrLineItemMismatch
	}
	return item.AddStock(l.Count)
}

// Order: агрегат заказа. Владеет позициями и доставкой; участник и товары
// связаны только по идентификатору.
type Order struct {
	ID        string
	MemberID  string
	OrderDate time.Time
	Status    OrderStatus
	Lines     []OrderLine
	Delivery  Delivery
	Version   int64
}

// PlaceOrder собирает заказ из участника, доставки и уже созданных позиций.
// Списание остатков уже выполнено NewOrderLine; фабрика ввода-вывода не делает.
func PlaceOrder(member Member, delivery Delivery, lines ...OrderLine) (Order, error) {
	if member.ID == "" {
		return Order{}, ErrMemberRequired
	}
	if len(lines) == 0 {
		return Order{}, ErrLinesRequired
	}
	if delivery.ID == "" {
		delivery.ID = uuid.NewString()
	}
	if delivery.Status == "" {
		delivery.Status = DeliveryStatusReady
	}

	owned := make([]OrderLine, len(lines))
	copy(owned, lines)

	return Order{
		ID:        uuid.NewString(),
		MemberID:  member.ID,
		OrderDate: time.Now().UTC(),
		Status:    OrderStatusOrdered,
		Lines:     owned,
		Delivery:  delivery,
	}, nil
}

// Cancel отменяет заказ и возвращает остатки по всем позициям.
// items должен содержать все товары заказа (ключ, ID товара).
func (o *Order) Cancel(items map[string]*Item) error {
	if o.Status != OrderStatusOrdered {
		return ErrInvalidStateTransition
	}
	// Проверяем наличие всех товаров до первой мутации.
	for _, line := range o.Lines {
		item := items[line.ItemID]
		switch {
		case item == nil:
			return ErrItemNotFound
		case item.ID != line.ItemID:
			return ErrLineItemMismatch
		case line.Count <= 0:
			return ErrQuantityInvalid
		}
	}

	for _, line := range o.Lines {
		if err := line.Cancel(items[line.ItemID]); err != nil {
			return err
		}
	}
	o.Status = OrderStatusCancelled
	return nil
}

// TotalPrice возвращает сумму заказа по ценам на момент оформления.
func (o *Order) TotalPrice() int64 {
	var total int64
	for _, line := range o.Lines {
		total += line.TotalPrice()
	}
	return total
}

// ItemIDs возвращает уникальные идентификаторы товаров в порядке позиций.
func (o *Order) ItemIDs() []string {
	seen := make(map[string]struct{}, len(o.Lines))
	ids := make([]string, 0, len(o.Lines))
	for _, line := range o.Lines {
		if _, ok := seen[line.ItemID]; ok {
			continue
		}
		seen[line.ItemID] = struct{}{}
		ids = append(ids, line.ItemID)
	}
	return ids
}
