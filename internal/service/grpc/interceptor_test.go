package grpcsvc

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestTracingUnaryInterceptor_ContinuesClientTrace(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	interceptor := TracingUnaryInterceptor(provider, propagation.TraceContext{})

	const traceparent = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("traceparent", traceparent))
	info := &grpc.UnaryServerInfo{FullMethod: "/ordercore.v1.OrderCoreService/PlaceOrder"}

	var handlerSpan trace.SpanContext
	_, err := interceptor(ctx, nil, info, func(ctx context.Context, _ any) (any, error) {
		handlerSpan = trace.SpanContextFromContext(ctx)
		return "ok", nil
	})
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	require.Equal(t, "ordercore.v1.OrderCoreService/PlaceOrder", span.Name())
	require.Equal(t, trace.SpanKindServer, span.SpanKind())
	require.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", span.Parent().TraceID().String())
	require.Equal(t, span.SpanContext().SpanID(), handlerSpan.SpanID())
	require.Contains(t, span.Attributes(), attribute.String("rpc.method", "PlaceOrder"))
	require.Contains(t, span.Attributes(), attribute.String("rpc.service", "ordercore.v1.OrderCoreService"))
}

func TestTracingUnaryInterceptor_RecordsErrorStatus(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	interceptor := TracingUnaryInterceptor(provider, nil)

	info := &grpc.UnaryServerInfo{FullMethod: "/ordercore.v1.OrderCoreService/CancelOrder"}
	_, err := interceptor(context.Background(), nil, info, func(context.Context, any) (any, error) {
		return nil, status.Error(codes.FailedPrecondition, "invalid order state transition")
	})
	require.Equal(t, codes.FailedPrecondition, status.Code(err))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, otelcodes.Error, spans[0].Status().Code)
	require.Contains(t, spans[0].Attributes(), attribute.Int("rpc.grpc.status_code", int(codes.FailedPrecondition)))
	require.False(t, spans[0].Parent().IsValid())

	_, err = interceptor(context.Background(), nil, info, func(context.Context, any) (any, error) {
		return nil, errors.New("plain")
	})
	require.Equal(t, codes.Unknown, status.Code(err))
}

func TestSplitFullMethod(t *testing.T) {
	service, method := splitFullMethod("/ordercore.v1.OrderCoreService/GetOrder")
	require.Equal(t, "ordercore.v1.OrderCoreService", service)
	require.Equal(t, "GetOrder", method)

	service, method = splitFullMethod("bare")
	require.Empty(t, service)
	require.Equal(t, "bare", method)
}
