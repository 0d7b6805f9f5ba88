package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

// Store: in-memory реализация domain.Gateway для локальной разработки и тестов.
//
// Транзакция копит изменения в собственном overlay и применяет их при commit под
// единой блокировкой, сверяя версии с текущим состоянием. Так параллельные единицы
// работы получают те же гарантии optimistic locking, что и PostgreSQL-реализация.
type Store struct {
	mu      sync.RWMutex
	members map[string]domain.Member
	items   map[string]domain.Item
	orders  map[string]domain.Order
	outbox  *outboxRepositoryInMemory
}

// NewStore создаёт пустое хранилище.
func NewStore() *Store {
	return &Store{
		members: make(map[string]domain.Member),
		items:   make(map[string]domain.Item),
		orders:  make(map[string]domain.Order),
		outbox:  NewOutboxRepository(),
	}
}

// Members возвращает репозиторий участников в режиме autocommit.
func (s *Store) Members() domain.MemberRepository { return memberRepository{store: s} }

// Items возвращает репозиторий товаров в режиме autocommit.
func (s *Store) Items() domain.ItemRepository { return itemRepository{store: s} }

// Orders возвращает репозиторий заказов в режиме autocommit.
func (s *Store) Orders() domain.OrderRepository { return orderRepository{store: s} }

// Outbox возвращает outbox-репозиторий.
func (s *Store) Outbox() domain.OutboxRepository { return s.outbox }

// WithinTx выполняет fn в одной единице работы. Ошибка fn отбрасывает все изменения.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos domain.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := s.begin()
	if err := fn(ctx, txRepositories{store: s, tx: tx}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return tx.commit()
}

type txRepositories struct {
	store *Store
	tx    *txn
}

func (r txRepositories) Members() domain.MemberRepository {
	return memberRepository{store: r.store, tx: r.tx}
}

func (r txRepositories) Items() domain.ItemRepository {
	return itemRepository{store: r.store, tx: r.tx}
}

func (r txRepositories) Orders() domain.OrderRepository {
	return orderRepository{store: r.store, tx: r.tx}
}

func (r txRepositories) Outbox() domain.OutboxRepository {
	return txOutboxRepository{store: r.store, tx: r.tx}
}

// entry: изменённая в транзакции запись.
type entry[T any] struct {
	value       T
	baseVersion int64
	insert      bool
}

// accessors описывает, как достать идентификатор и версию сущности.
type accessors[T any] struct {
	id          func(T) string
	version     func(T) int64
	withID      func(T, string) T
	withVersion func(T, int64) T
}

type txn struct {
	store   *Store
	members map[string]*entry[domain.Member]
	items   map[string]*entry[domain.Item]
	orders  map[string]*entry[domain.Order]
	outbox  []domain.OutboxMessage
}

func (s *Store) begin() *txn {
	return &txn{
		store:   s,
		members: make(map[string]*entry[domain.Member]),
		items:   make(map[string]*entry[domain.Item]),
		orders:  make(map[string]*entry[domain.Order]),
	}
}

// stage регистрирует запись в overlay: новую (без ID или с неизвестным ID) либо
// обновление существующей с проверкой версии.
func stage[T any](mu *sync.RWMutex, base map[string]T, staged map[string]*entry[T], acc accessors[T], value T) (T, error) {
	var zero T

	id := acc.id(value)
	if id == "" {
		value = acc.withID(value, uuid.NewString())
		staged[acc.id(value)] = &entry[T]{value: value, insert: true}
		return value, nil
	}

	if e, ok := staged[id]; ok {
		current := acc.version(e.value)
		if acc.version(value) != current {
			return zero, domain.ErrVersionConflict
		}
		if !e.insert {
			value = acc.withVersion(value, current+1)
		}
		e.value = value
		return value, nil
	}

	mu.RLock()
	stored, exists := base[id]
	mu.RUnlock()

	if !exists {
		staged[id] = &entry[T]{value: value, insert: true}
		return value, nil
	}

	baseVersion := acc.version(stored)
	if acc.version(value) != baseVersion {
		return zero, domain.ErrVersionConflict
	}
	value = acc.withVersion(value, baseVersion+1)
	staged[id] = &entry[T]{value: value, baseVersion: baseVersion}
	return value, nil
}

// lookup читает запись с учётом overlay транзакции.
func lookup[T any](mu *sync.RWMutex, base map[string]T, staged map[string]*entry[T], id string) (T, bool) {
	if e, ok := staged[id]; ok {
		return e.value, true
	}
	mu.RLock()
	defer mu.RUnlock()
	value, ok := base[id]
	return value, ok
}

// snapshot возвращает все записи с учётом overlay транзакции.
func snapshot[T any](mu *sync.RWMutex, base map[string]T, staged map[string]*entry[T]) []T {
	mu.RLock()
	result := make([]T, 0, len(base)+len(staged))
	for id, value := range base {
		if _, ok := staged[id]; ok {
			continue
		}
		result = append(result, value)
	}
	mu.RUnlock()

	for _, e := range staged {
		result = append(result, e.value)
	}
	return result
}

// verify проверяет, что записи overlay не устарели. Вызывается под s.mu.Lock.
func verify[T any](base map[string]T, staged map[string]*entry[T], acc accessors[T]) error {
	for id, e := range staged {
		stored, exists := base[id]
		if e.insert {
			if exists {
				return domain.ErrVersionConflict
			}
			continue
		}
		if !exists || acc.version(stored) != e.baseVersion {
			return domain.ErrVersionConflict
		}
	}
	return nil
}

func apply[T any](base map[string]T, staged map[string]*entry[T]) {
	for id, e := range staged {
		base[id] = e.value
	}
}

// commit атомарно применяет overlay. Если хотя бы одна запись устарела, не применяется ничего.
func (t *txn) commit() error {
	s := t.store
	s.mu.Lock()

	if err := verify(s.members, t.members, memberAccessors); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := verify(s.items, t.items, itemAccessors); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := verify(s.orders, t.orders, orderAccessors); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := t.checkUniqueMemberNames(); err != nil {
		s.mu.Unlock()
		return err
	}

	apply(s.members, t.members)
	apply(s.items, t.items)
	apply(s.orders, t.orders)
	s.mu.Unlock()

	// Outbox пишется после основного состояния: событие не может опередить заказ.
	s.outbox.appendAll(t.outbox)
	return nil
}

// checkUniqueMemberNames эмулирует уникальный индекс по имени участника. Вызывается под s.mu.Lock.
func (t *txn) checkUniqueMemberNames() error {
	if len(t.members) == 0 {
		return nil
	}
	owners := make(map[string]string, len(t.store.members)+len(t.members))
	for id, member := range t.store.members {
		if _, ok := t.members[id]; ok {
			continue
		}
		owners[member.Name] = id
	}
	for id, e := range t.members {
		if owner, ok := owners[e.value.Name]; ok && owner != id {
			return domain.ErrMemberNameTaken
		}
		owners[e.value.Name] = id
	}
	return nil
}

// autocommit выполняет fn в собственной транзакции, если репозиторий не привязан к внешней.
func autocommit[T any](s *Store, tx *txn, fn func(*txn) (T, error)) (T, error) {
	if tx != nil {
		return fn(tx)
	}

	tx = s.begin()
	value, err := fn(tx)
	if err != nil {
		return value, err
	}
	if err := tx.commit(); err != nil {
		var zero T
		return zero, err
	}
	return value, nil
}

var _ domain.Gateway = (*Store)(nil)
