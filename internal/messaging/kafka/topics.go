package kafka

// Topics для событий заказов.
const (
	TopicOrderEvents    = "ordercore.order.events"
	TopicOrderEventsDLQ = "ordercore.order.events.dlq"
)

// Заголовки сообщений, дублирующие ключевые поля конверта.
const (
	HeaderEventType = "x-event-type"
	HeaderOutboxID  = "x-outbox-id"
	HeaderReplayed  = "x-replayed-at"
)
