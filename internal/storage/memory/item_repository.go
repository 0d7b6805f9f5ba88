package memory

import (
	"context"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

var itemAccessors = accessors[domain.Item]{
	id:      func(i domain.Item) string { return i.ID },
	version: func(i domain.Item) int64 { return i.Version },
	withID: func(i domain.Item, id string) domain.Item {
		i.ID = id
		return i
	},
	withVersion: func(i domain.Item, v int64) domain.Item {
		i.Version = v
		return i
	},
}

type itemRepository struct {
	store *Store
	tx    *txn
}

func (r itemRepository) staged() map[string]*entry[domain.Item] {
	if r.tx == nil {
		return nil
	}
	return r.tx.items
}

// Save вставляет или обновляет товар; обновление проходит только при совпадении версии.
func (r itemRepository) Save(ctx context.Context, item domain.Item) (domain.Item, error) {
	if err := ctx.Err(); err != nil {
		return domain.Item{}, err
	}
	if item.StockQuantity() < 0 {
		return domain.Item{}, domain.ErrStockNegative
	}
	return autocommit(r.store, r.tx, func(tx *txn) (domain.Item, error) {
		return stage(&r.store.mu, r.store.items, tx.items, itemAccessors, item)
	})
}

func (r itemRepository) FindOne(ctx context.Context, id string) (domain.Item, error) {
	if err := ctx.Err(); err != nil {
		return domain.Item{}, err
	}
	item, ok := lookup(&r.store.mu, r.store.items, r.staged(), id)
	if !ok {
		return domain.Item{}, domain.ErrItemNotFound
	}
	return item, nil
}

func (r itemRepository) FindAll(ctx context.Context) ([]domain.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return snapshot(&r.store.mu, r.store.items, r.staged()), nil
}

var _ domain.ItemRepository = itemRepository{}
