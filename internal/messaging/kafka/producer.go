package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "ordercore/messaging/kafka"

// Message: сообщение для отправки в Kafka.
type Message struct {
	Topic   string
	Key     string
	Value   []byte
	Headers map[string]string
}

// Producer публикует сообщения через sarama.SyncProducer и трассирует каждую отправку.
type Producer struct {
	producer   sarama.SyncProducer
	logger     *log.Entry
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

// ProducerOption настраивает Producer.
type ProducerOption func(*Producer)

// WithProducerLogger задаёт логгер.
func WithProducerLogger(logger *log.Entry) ProducerOption {
	return func(p *Producer) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithTracerProvider задаёт провайдер трассировки вместо глобального.
func WithTracerProvider(provider trace.TracerProvider) ProducerOption {
	return func(p *Producer) {
		if provider != nil {
			p.tracer = provider.Tracer(tracerName)
		}
	}
}

// WithPropagator задаёт формат переноса контекста трассировки в заголовки.
func WithPropagator(propagator propagation.TextMapPropagator) ProducerOption {
	return func(p *Producer) {
		if propagator != nil {
			p.propagator = propagator
		}
	}
}

// NewSaramaConfig возвращает настройки идемпотентного producer.
func NewSaramaConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1
	return config
}

// NewProducer подключается к брокерам и создаёт producer.
func NewProducer(brokers []string, opts ...ProducerOption) (*Producer, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewSaramaConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return NewProducerFromSync(producer, opts...), nil
}

// NewProducerFromSync оборачивает готовый sarama.SyncProducer.
func NewProducerFromSync(producer sarama.SyncProducer, opts ...ProducerOption) *Producer {
	p := &Producer{
		producer:   producer,
		logger:     log.WithField("component", "kafka-producer"),
		tracer:     otel.Tracer(tracerName),
		propagator: otel.GetTextMapPropagator(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Send отправляет сообщение и дожидается подтверждения брокера.
func (p *Producer) Send(ctx context.Context, msg Message) error {
	out := &sarama.ProducerMessage{
		Topic:     msg.Topic,
		Key:       sarama.StringEncoder(msg.Key),
		Value:     sarama.ByteEncoder(msg.Value),
		Timestamp: time.Now().UTC(),
	}
	for key, value := range msg.Headers {
		out.Headers = append(out.Headers, sarama.RecordHeader{Key: []byte(key), Value: []byte(value)})
	}

	ctx, span := p.tracer.Start(ctx, "send "+msg.Topic,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationName("send"),
			semconv.MessagingOperationTypePublish,
			semconv.MessagingDestinationName(msg.Topic),
			semconv.MessagingKafkaMessageKey(msg.Key),
		),
	)
	defer span.End()

	p.propagator.Inject(ctx, producerCarrier{msg: out})

	partition, offset, err := p.producer.SendMessage(out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.WithError(err).WithFields(log.Fields{
			"topic": msg.Topic,
			"key":   msg.Key,
		}).Error("failed to send message to kafka")
		return fmt.Errorf("failed to send message: %w", err)
	}

	span.SetAttributes(
		semconv.MessagingDestinationPartitionID(fmt.Sprint(partition)),
		semconv.MessagingKafkaMessageOffset(int(offset)),
	)
	p.logger.WithFields(log.Fields{
		"topic":     msg.Topic,
		"key":       msg.Key,
		"partition": partition,
		"offset":    offset,
	}).Debug("message sent to kafka")
	return nil
}

// PublishEvent сериализует событие в JSON и отправляет его.
func (p *Producer) PublishEvent(ctx context.Context, topic, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return p.Send(ctx, Message{Topic: topic, Key: key, Value: data})
}

// Close закрывает producer.
func (p *Producer) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka producer: %w", err)
	}
	return nil
}
