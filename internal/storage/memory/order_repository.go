package memory

import (
	"context"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

var orderAccessors = accessors[domain.Order]{
	id:      func(o domain.Order) string { return o.ID },
	version: func(o domain.Order) int64 { return o.Version },
	withID: func(o domain.Order, id string) domain.Order {
		o.ID = id
		return o
	},
	withVersion: func(o domain.Order, v int64) domain.Order {
		o.Version = v
		return o
	},
}

type orderRepository struct {
	store *Store
	tx    *txn
}

func (r orderRepository) staged() map[string]*entry[domain.Order] {
	if r.tx == nil {
		return nil
	}
	return r.tx.orders
}

// Save сохраняет заказ вместе с позициями и доставкой.
func (r orderRepository) Save(ctx context.Context, order domain.Order) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	// Сохраняем копию позиций, чтобы избежать непредсказуемых мутаций извне.
	order = cloneOrder(order)
	saved, err := autocommit(r.store, r.tx, func(tx *txn) (domain.Order, error) {
		return stage(&r.store.mu, r.store.orders, tx.orders, orderAccessors, order)
	})
	if err != nil {
		return domain.Order{}, err
	}
	return cloneOrder(saved), nil
}

// FindOne возвращает заказ или ErrOrderNotFound.
func (r orderRepository) FindOne(ctx context.Context, id string) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	order, ok := lookup(&r.store.mu, r.store.orders, r.staged(), id)
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// FindOrders возвращает заказы, удовлетворяющие всем заданным фильтрам, не более MaxSearchResults.
// Заказы без участника в выборку не попадают.
func (r orderRepository) FindOrders(ctx context.Context, search domain.OrderSearch) ([]domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := search.Validate(); err != nil {
		return nil, err
	}

	var memberStage map[string]*entry[domain.Member]
	if r.tx != nil {
		memberStage = r.tx.members
	}
	names := make(map[string]string)
	for _, member := range snapshot(&r.store.mu, r.store.members, memberStage) {
		names[member.ID] = member.Name
	}

	predicates := buildOrderPredicates(search)
	result := make([]domain.Order, 0)
	for _, order := range snapshot(&r.store.mu, r.store.orders, r.staged()) {
		name, ok := names[order.MemberID]
		if !ok {
			continue
		}
		if !matchesAll(predicates, orderRow{order: order, memberName: name}) {
			continue
		}
		result = append(result, cloneOrder(order))
		if len(result) >= domain.MaxSearchResults {
			break
		}
	}
	return result, nil
}

func cloneOrder(order domain.Order) domain.Order {
	if order.Lines != nil {
		lines := make([]domain.OrderLine, len(order.Lines))
		copy(lines, order.Lines)
		order.Lines = lines
	}
	return order
}

var _ domain.OrderRepository = orderRepository{}
