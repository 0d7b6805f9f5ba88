package kafka

import (
	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel/propagation"
)

// producerCarrier переносит контекст трассировки в заголовки исходящего сообщения.
type producerCarrier struct {
	msg *sarama.ProducerMessage
}

func (c producerCarrier) Get(key string) string {
	for _, h := range c.msg.Headers {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c producerCarrier) Set(key, value string) {
	for i, h := range c.msg.Headers {
		if string(h.Key) == key {
			c.msg.Headers[i].Value = []byte(value)
			return
		}
	}
	c.msg.Headers = append(c.msg.Headers, sarama.RecordHeader{Key: []byte(key), Value: []byte(value)})
}

func (c producerCarrier) Keys() []string {
	keys := make([]string, len(c.msg.Headers))
	for i, h := range c.msg.Headers {
		keys[i] = string(h.Key)
	}
	return keys
}

// ConsumerCarrier читает контекст трассировки из заголовков полученного сообщения.
type ConsumerCarrier struct {
	msg *sarama.ConsumerMessage
}

// NewConsumerCarrier оборачивает сообщение для propagation.TextMapPropagator.Extract.
func NewConsumerCarrier(msg *sarama.ConsumerMessage) ConsumerCarrier {
	return ConsumerCarrier{msg: msg}
}

func (c ConsumerCarrier) Get(key string) string {
	for _, h := range c.msg.Headers {
		if h != nil && string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

// Set не поддерживается: полученное сообщение неизменяемо.
func (c ConsumerCarrier) Set(string, string) {}

func (c ConsumerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.msg.Headers))
	for _, h := range c.msg.Headers {
		if h != nil {
			keys = append(keys, string(h.Key))
		}
	}
	return keys
}

var (
	_ propagation.TextMapCarrier = producerCarrier{}
	_ propagation.TextMapCarrier = ConsumerCarrier{}
)
