// Package telemetry настраивает OpenTelemetry-трассировку процесса.
package telemetry

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config задаёт параметры экспорта трасс.
type Config struct {
	// Endpoint: адрес OTLP/gRPC коллектора; пустое значение отключает экспорт.
	Endpoint       string
	Insecure       bool
	ServiceName    string
	ServiceVersion string
	// SampleRatio: доля корневых трасс, попадающих в экспорт (0..1).
	SampleRatio float64
}

// ShutdownFunc сбрасывает накопленные спаны и останавливает провайдер.
type ShutdownFunc func(context.Context) error

// Propagator возвращает формат переноса контекста, общий для gRPC и Kafka.
func Propagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
}

// InitTracerProvider регистрирует глобальные провайдер и propagator.
// Без Endpoint спаны не экспортируются, но контекст трассировки всё равно передаётся дальше.
func InitTracerProvider(ctx context.Context, cfg Config, logger *log.Entry) (ShutdownFunc, error) {
	if logger == nil {
		logger = log.WithField("component", "telemetry")
	}
	otel.SetTextMapPropagator(Propagator())

	if cfg.Endpoint == "" {
		logger.Info("trace export is disabled")
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	provider := NewTracerProvider(cfg, sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(provider)

	logger.WithField("endpoint", cfg.Endpoint).Info("trace export is enabled")
	return provider.Shutdown, nil
}

// NewTracerProvider собирает провайдер с ресурсом сервиса и семплером по Config.
func NewTracerProvider(cfg Config, opts ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	)

	ratio := cfg.SampleRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}

	all := append([]sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	}, opts...)
	return sdktrace.NewTracerProvider(all...)
}
