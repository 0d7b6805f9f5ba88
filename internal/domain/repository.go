package domain

import "context"

// MemberRepository описывает требования к хранилищу участников.
type MemberRepository interface {
	// Save вставляет участника с пустым ID (ID назначается) или обновляет существующего
	// с проверкой версии. Возвращает сохранённое состояние.
	Save(ctx context.Context, member Member) (Member, error)
	// FindOne возвращает участника или ErrMemberNotFound.
	FindOne(ctx context.Context, id string) (Member, error)
	FindAll(ctx context.Context) ([]Member, error)
	// FindByName ищет участников с точным совпадением имени.
	FindByName(ctx context.Context, name string) ([]Member, error)
	// FindByNameContaining ищет участников, чьё имя содержит fragment (с учётом регистра).
	FindByNameContaining(ctx context.Context, fragment string) ([]Member, error)
}

// ItemRepository описывает требования к хранилищу товаров.
type ItemRepository interface {
	// Save вставляет новый товар (пустой ID) или обновляет существующий с проверкой версии.
	Save(ctx context.Context, item Item) (Item, error)
	// FindOne возвращает товар или ErrItemNotFound.
	FindOne(ctx context.Context, id string) (Item, error)
	FindAll(ctx context.Context) ([]Item, error)
}

// OrderRepository описывает требования к хранилищу заказов.
// Позиции и доставка сохраняются и загружаются вместе с заказом.
type OrderRepository interface {
	// Save вставляет новый заказ или обновляет статус существующего с проверкой версии.
	Save(ctx context.Context, order Order) (Order, error)
	// FindOne возвращает заказ или ErrOrderNotFound.
	FindOne(ctx context.Context, id string) (Order, error)
	// FindOrders выполняет поиск по критериям, не более MaxSearchResults записей.
	FindOrders(ctx context.Context, search OrderSearch) ([]Order, error)
}

// Repositories: набор репозиториев, привязанных к одной единице работы.
type Repositories interface {
	Members() MemberRepository
	Items() ItemRepository
	Orders() OrderRepository
	Outbox() OutboxRepository
}

// Gateway: шлюз хранилища. Вне транзакции каждая операция атомарна сама по себе;
// WithinTx фиксирует все изменения fn вместе либо не фиксирует ни одного.
type Gateway interface {
	Repositories
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
