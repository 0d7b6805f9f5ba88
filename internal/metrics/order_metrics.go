package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics содержит метрики сценариев заказа.
type OrderMetrics struct {
	// Счётчики исходов
	ordersPlaced    prometheus.Counter
	ordersCancelled prometheus.Counter
	rejected        *prometheus.CounterVec

	// Движение складских остатков
	unitsReserved prometheus.Counter
	unitsReleased prometheus.Counter

	// Повторы после конфликта версий
	retries *prometheus.CounterVec

	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// NewOrderMetrics создаёт метрики в глобальном реестре Prometheus.
func NewOrderMetrics() *OrderMetrics {
	return NewOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOrderMetricsWithRegisterer создаёт метрики в указанном реестре.
func NewOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	return &OrderMetrics{
		ordersPlaced: registerCounter(registerer, prometheus.CounterOpts{
			Name: "ordercore_orders_placed_total",
			Help: "Total number of orders placed",
		}),
		ordersCancelled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "ordercore_orders_cancelled_total",
			Help: "Total number of orders cancelled",
		}),
		rejected: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "ordercore_order_operations_rejected_total",
			Help: "Total number of rejected order operations grouped by operation and reason",
		}, []string{"operation", "reason"}),
		unitsReserved: registerCounter(registerer, prometheus.CounterOpts{
			Name: "ordercore_stock_units_reserved_total",
			Help: "Total number of stock units taken by placed orders",
		}),
		unitsReleased: registerCounter(registerer, prometheus.CounterOpts{
			Name: "ordercore_stock_units_released_total",
			Help: "Total number of stock units returned by cancelled orders",
		}),
		retries: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "ordercore_order_operation_retries_total",
			Help: "Total number of order operation retries after a version conflict",
		}, []string{"operation"}),
		duration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "ordercore_order_operation_duration_seconds",
			Help:    "Duration of order operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation"}),
		inFlight: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "ordercore_order_operations_in_flight",
			Help: "Number of order operations currently running",
		}),
	}
}

// RecordOrderPlaced учитывает оформленный заказ и списанные единицы.
func (m *OrderMetrics) RecordOrderPlaced(units int) {
	m.ordersPlaced.Inc()
	m.unitsReserved.Add(float64(units))
}

// RecordOrderCancelled учитывает отменённый заказ и возвращённые единицы.
func (m *OrderMetrics) RecordOrderCancelled(units int) {
	m.ordersCancelled.Inc()
	m.unitsReleased.Add(float64(units))
}

// RecordRejected учитывает отклонённую операцию.
func (m *OrderMetrics) RecordRejected(operation, reason string) {
	m.rejected.WithLabelValues(operation, reason).Inc()
}

// RecordRetry учитывает повтор операции после конфликта версий.
func (m *OrderMetrics) RecordRetry(operation string) {
	m.retries.WithLabelValues(operation).Inc()
}

// Start отмечает начало операции; возвращённая функция фиксирует длительность.
func (m *OrderMetrics) Start(operation string) func() {
	started := time.Now()
	m.inFlight.Inc()
	return func() {
		m.inFlight.Dec()
		m.duration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
	}
}
