package domain

import "strings"

// MaxSearchResults: жёсткий предел выборки поиска заказов. Смещение (offset) не поддерживается.
const MaxSearchResults = 1000

// OrderSearch: критерии поиска заказов. Пустой статус и пустое (или из пробелов) имя
// означают отсутствие фильтра. Заданные фильтры объединяются через AND.
// Порядок результатов не гарантируется, если вызывающая сторона не сортирует сама.
type OrderSearch struct {
	OrderStatus OrderStatus
	MemberName  string
}

// HasStatus сообщает, задан ли фильтр по статусу.
func (s OrderSearch) HasStatus() bool {
	return s.OrderStatus != ""
}

// HasMemberName сообщает, задан ли фильтр по имени участника.
func (s OrderSearch) HasMemberName() bool {
	return strings.TrimSpace(s.MemberName) != ""
}

// Validate проверяет, что статус (если задан) известен.
func (s OrderSearch) Validate() error {
	if s.HasStatus() && !s.OrderStatus.Valid() {
		return ErrOrderStatusInvalid
	}
	return nil
}
