package app

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Поддерживаемые драйверы хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска приложения.
type Config struct {
	GRPCAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	// KafkaBrokers пустой, события копятся в outbox без публикации.
	KafkaBrokers       []string
	KafkaTopic         string
	KafkaDLQTopic      string
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	OrderMaxAttempts int

	OTLPEndpoint     string
	OTLPInsecure     bool
	TraceSampleRatio float64

	LogLevel log.Level
}

// DefaultConfig возвращает настройки для локального запуска без внешних зависимостей.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:            ":50051",
		MetricsAddr:         ":9090",
		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		OutboxPollInterval:  time.Second,
		OutboxBatchSize:     100,
		OutboxMaxAttempts:   3,
		OutboxRetryDelay:    50 * time.Millisecond,
		OrderMaxAttempts:    5,
		OTLPInsecure:        true,
		TraceSampleRatio:    1,
		LogLevel:            log.InfoLevel,
	}
}

// ConfigFromEnv накладывает переменные окружения ORDERCORE_* на DefaultConfig.
func ConfigFromEnv(getenv func(string) string) (Config, error) {
	cfg := DefaultConfig()
	var errs []error

	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			errs = append(errs, fmt.Errorf("%s must be a positive integer, got %q", key, v))
			return
		}
		*dst = n
	}
	duration := func(key string, dst *time.Duration) {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			errs = append(errs, fmt.Errorf("%s must be a non-negative duration, got %q", key, v))
			return
		}
		*dst = d
	}
	boolean := func(key string, dst *bool) {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s must be a boolean, got %q", key, v))
			return
		}
		*dst = b
	}

	str("ORDERCORE_GRPC_ADDR", &cfg.GRPCAddr)
	str("ORDERCORE_METRICS_ADDR", &cfg.MetricsAddr)
	str("ORDERCORE_STORAGE_DRIVER", &cfg.StorageDriver)
	str("ORDERCORE_POSTGRES_DSN", &cfg.PostgresDSN)
	boolean("ORDERCORE_POSTGRES_AUTO_MIGRATE", &cfg.PostgresAutoMigrate)
	cfg.KafkaBrokers = ParseList(getenv("ORDERCORE_KAFKA_BROKERS"))
	str("ORDERCORE_KAFKA_TOPIC", &cfg.KafkaTopic)
	str("ORDERCORE_KAFKA_DLQ_TOPIC", &cfg.KafkaDLQTopic)
	duration("ORDERCORE_OUTBOX_POLL_INTERVAL", &cfg.OutboxPollInterval)
	integer("ORDERCORE_OUTBOX_BATCH_SIZE", &cfg.OutboxBatchSize)
	integer("ORDERCORE_OUTBOX_MAX_ATTEMPTS", &cfg.OutboxMaxAttempts)
	duration("ORDERCORE_OUTBOX_RETRY_DELAY", &cfg.OutboxRetryDelay)
	integer("ORDERCORE_ORDER_MAX_ATTEMPTS", &cfg.OrderMaxAttempts)
	str("ORDERCORE_OTLP_ENDPOINT", &cfg.OTLPEndpoint)
	boolean("ORDERCORE_OTLP_INSECURE", &cfg.OTLPInsecure)

	if v := strings.TrimSpace(getenv("ORDERCORE_TRACE_SAMPLE_RATIO")); v != "" {
		ratio, err := strconv.ParseFloat(v, 64)
		if err != nil || ratio < 0 || ratio > 1 {
			errs = append(errs, fmt.Errorf("ORDERCORE_TRACE_SAMPLE_RATIO must be within [0, 1], got %q", v))
		} else {
			cfg.TraceSampleRatio = ratio
		}
	}
	if v := strings.TrimSpace(getenv("ORDERCORE_LOG_LEVEL")); v != "" {
		level, err := log.ParseLevel(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("ORDERCORE_LOG_LEVEL: %w", err))
		} else {
			cfg.LogLevel = level
		}
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return errors.New("postgres dsn is required for postgres storage driver")
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", c.StorageDriver)
	}
	if c.KafkaTopic != "" && c.KafkaTopic == c.KafkaDLQTopic {
		return errors.New("kafka topic and dlq topic must differ")
	}
	return nil
}

// ParseList разбирает список через запятую, отбрасывая пустые элементы.
func ParseList(raw string) []string {
	var out []string
	for _, chunk := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(chunk); v != "" {
			out = append(out, v)
		}
	}
	return out
}
