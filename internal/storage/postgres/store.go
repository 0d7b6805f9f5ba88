package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

const (
	defaultConnTimeout     = 5 * time.Second
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute

	opTimeout = 5 * time.Second
)

// Коды ошибок PostgreSQL, которые транслируются в доменные ошибки.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// querier: общее подмножество *sql.DB и *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store оборачивает SQL-подключение к PostgreSQL и реализует domain.Gateway.
type Store struct {
	db *sql.DB
}

// Open открывает инструментированное подключение к PostgreSQL и проверяет доступность базы.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := otelsql.Open("pgx", dsn, otelsql.WithAttributes(semconv.DBSystemPostgreSQL))
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Store{db: db}, nil
}

// DB возвращает raw SQL DB, когда нужен низкоуровневый доступ.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping проверяет доступность подключения.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres store is not initialized")
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

// EnsureSchema применяет все up-миграции.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.MigrateUp(ctx, 0)
}

// Close закрывает подключение к БД.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Members возвращает репозиторий участников; каждая операция выполняется в своей транзакции.
func (s *Store) Members() domain.MemberRepository { return memberRepository{conn: conn{db: s.db}} }

// Items возвращает репозиторий товаров.
func (s *Store) Items() domain.ItemRepository { return itemRepository{conn: conn{db: s.db}} }

// Orders возвращает репозиторий заказов.
func (s *Store) Orders() domain.OrderRepository { return orderRepository{conn: conn{db: s.db}} }

// Outbox возвращает outbox-репозиторий.
func (s *Store) Outbox() domain.OutboxRepository { return outboxRepository{conn: conn{db: s.db}} }

// WithinTx выполняет fn в одной SQL-транзакции. Ошибка fn или commit откатывает все изменения.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos domain.Repositories) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.PersistenceError("begin tx", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(ctx, txRepositories{conn: conn{db: s.db, tx: tx}}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return domain.PersistenceError("commit tx", err)
	}
	return nil
}

type txRepositories struct {
	conn conn
}

func (r txRepositories) Members() domain.MemberRepository { return memberRepository{conn: r.conn} }
func (r txRepositories) Items() domain.ItemRepository     { return itemRepository{conn: r.conn} }
func (r txRepositories) Orders() domain.OrderRepository   { return orderRepository{conn: r.conn} }
func (r txRepositories) Outbox() domain.OutboxRepository  { return outboxRepository{conn: r.conn} }

// conn привязывает репозиторий либо к пулу, либо к открытой транзакции.
type conn struct {
	db *sql.DB
	tx *sql.Tx
}

func (c conn) q() querier {
	if c.tx != nil {
		return c.tx
	}
	return c.db
}

// atomic выполняет несколько statement-ов атомарно: внутри внешней транзакции или в собственной.
func (c conn) atomic(ctx context.Context, fn func(q querier) error) (err error) {
	if c.tx != nil {
		return fn(c.tx)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.PersistenceError("begin tx", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return domain.PersistenceError("commit tx", err)
	}
	return nil
}

func pgErrorCode(err error) (code, constraint string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName
	}
	return "", ""
}

func isUniqueViolation(err error) bool {
	code, _ := pgErrorCode(err)
	return code == pgUniqueViolation
}

var _ domain.Gateway = (*Store)(nil)
