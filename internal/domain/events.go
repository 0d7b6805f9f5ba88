package domain

import (
	"encoding/json"
	"time"
)

// OrderEventLine: позиция заказа в событии.
type OrderEventLine struct {
	ItemID     string `json:"item_id"`
	OrderPrice int64  `json:"order_price"`
	Count      int    `json:"count"`
}

// OrderEvent: полезная нагрузка событий order.placed / order.cancelled.
type OrderEvent struct {
	EventType  string           `json:"event_type"`
	OrderID    string           `json:"order_id"`
	MemberID   string           `json:"member_id"`
	Status     OrderStatus      `json:"status"`
	TotalPrice int64            `json:"total_price"`
	Lines      []OrderEventLine `json:"lines"`
	Occurred   time.Time        `json:"occurred"`
}

// NewOrderOutboxMessage сериализует состояние заказа в outbox-сообщение.
func NewOrderOutboxMessage(eventType string, order Order, occurred time.Time) (OutboxMessage, error) {
	lines := make([]OrderEventLine, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, OrderEventLine{
			ItemID:     line.ItemID,
			OrderPrice: line.OrderPrice,
			Count:      line.Count,
		})
	}

	payload, err := json.Marshal(OrderEvent{
		EventType:  eventType,
		OrderID:    order.ID,
		MemberID:   order.MemberID,
		Status:     order.Status,
		TotalPrice: order.TotalPrice(),
		Lines:      lines,
		Occurred:   occurred.UTC(),
	})
	if err != nil {
		return OutboxMessage{}, err
	}

	return OutboxMessage{
		AggregateType: OutboxAggregateOrder,
		AggregateID:   order.ID,
		EventType:     eventType,
		Payload:       payload,
	}, nil
}

// OutboxDeadLetter: событие, которое не удалось доставить после всех попыток.
// Содержит исходный payload без изменений, чтобы его можно было переиграть.
type OutboxDeadLetter struct {
	OutboxID      string          `json:"outbox_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishError  string          `json:"publish_error"`
	FailedAt      time.Time       `json:"failed_at"`
}
