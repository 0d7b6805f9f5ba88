package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientStock: списание привело бы к отрицательному остатку.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidStateTransition: переход статуса заказа не разрешён (например, повторная отмена).
	ErrInvalidStateTransition = errors.New("invalid order state transition")
	// ErrNotFound: базовая ошибка для ненайденных сущностей.
	ErrNotFound = errors.New("not found")
	// ErrPersistence: непрозрачная ошибка хранилища (соединение, ограничения БД).
	ErrPersistence = errors.New("persistence failure")
	// ErrVersionConflict сигнализирует о конфликте версий при сохранении (optimistic locking).
	ErrVersionConflict = errors.New("version conflict")

	// ErrMemberNotFound возвращается, если участник не найден.
	ErrMemberNotFound = fmt.Errorf("member %w", ErrNotFound)
	// ErrItemNotFound возвращается, если товар не найден.
	ErrItemNotFound = fmt.Errorf("item %w", ErrNotFound)
	// ErrOrderNotFound возвращается, если заказ не найден.
	ErrOrderNotFound = fmt.Errorf("order %w", ErrNotFound)
	// ErrOutboxMessageNotFound возвращается при отметке несуществующего события outbox.
	ErrOutboxMessageNotFound = fmt.Errorf("outbox message %w", ErrNotFound)

	// Ошибка некорректного количества (<= 0) при изменении остатка или в позиции заказа.
	ErrQuantityInvalid = errors.New("quantity must be greater than zero")
	// Ошибка отрицательного начального остатка.
	ErrStockNegative = errors.New("stock quantity must be non-negative")
	// Ошибка отрицательной цены.
	ErrPriceNegative = errors.New("price must be non-negative")
	// Ошибка отсутствия позиций в заказе.
	ErrLinesRequired = errors.New("order must contain at least one line")
	// Ошибка отсутствующего участника в заказе.
	ErrMemberRequired = errors.New("member_id is required")
	// Ошибка пустого имени участника.
	ErrMemberNameRequired = errors.New("member name is required")
	// ErrMemberNameTaken: участник с таким именем уже зарегистрирован.
	ErrMemberNameTaken = errors.New("member name already taken")
	// Ошибка пустого названия товара.
	ErrItemNameRequired = errors.New("item name is required")
	// Ошибка отсутствующего вида товара.
	ErrItemKindRequired = errors.New("item kind is required")
	// ErrLineItemMismatch: позицию пытаются откатить на чужой товар.
	ErrLineItemMismatch = errors.New("order line does not reference this item")
	// ErrOrderStatusInvalid: неизвестный статус в критериях поиска.
	ErrOrderStatusInvalid = errors.New("unknown order status")
)

// IsNotFound проверяет, является ли ошибка ошибкой отсутствия сущности.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// IsPersistenceFailure проверяет, пришла ли ошибка из хранилища.
func IsPersistenceFailure(err error) bool {
	return errors.Is(err, ErrPersistence)
}

// PersistenceError оборачивает ошибку драйвера в ErrPersistence, сохраняя исходную причину.
func PersistenceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
