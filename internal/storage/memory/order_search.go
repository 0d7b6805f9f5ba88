package memory

import (
	"strings"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

// orderRow: заказ, соединённый с именем участника.
type orderRow struct {
	order      domain.Order
	memberName string
}

type orderPredicate func(orderRow) bool

// buildOrderPredicates собирает список условий; каждое заданное поле OrderSearch добавляет одно.
func buildOrderPredicates(search domain.OrderSearch) []orderPredicate {
	var predicates []orderPredicate

	if search.HasStatus() {
		status := search.OrderStatus
		predicates = append(predicates, func(row orderRow) bool {
			return row.order.Status == status
		})
	}
	if search.HasMemberName() {
		fragment := search.MemberName
		predicates = append(predicates, func(row orderRow) bool {
			return strings.Contains(row.memberName, fragment)
		})
	}

	return predicates
}

func matchesAll(predicates []orderPredicate, row orderRow) bool {
	for _, match := range predicates {
		if !match(row) {
			return false
		}
	}
	return true
}
