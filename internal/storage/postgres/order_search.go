package postgres

import (
	"strconv"
	"strings"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

const orderSelect = `
		SELECT o.id, o.member_id, o.status, o.order_date, o.version,
		       d.id, d.city, d.street, d.zipcode, d.status
		FROM orders o
		JOIN members m ON m.id = o.member_id
		JOIN deliveries d ON d.order_id = o.id`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike экранирует метасимволы LIKE, чтобы фрагмент искался как литеральная подстрока.
func escapeLike(fragment string) string {
	return likeEscaper.Replace(fragment)
}

// orderQuery собирает текстовый SQL-запрос: первое условие открывает WHERE, каждое следующее
// присоединяется через AND.
type orderQuery struct {
	sql  strings.Builder
	args []any
	cond int
}

func newOrderQuery() *orderQuery {
	q := &orderQuery{}
	q.sql.WriteString(orderSelect)
	return q
}

// where добавляет условие; "?" в тексте заменяется на следующий позиционный параметр.
func (q *orderQuery) where(condition string, arg any) {
	if q.cond == 0 {
		q.sql.WriteString("\n\t\tWHERE ")
	} else {
		q.sql.WriteString("\n\t\t  AND ")
	}
	q.cond++
	q.args = append(q.args, arg)
	q.sql.WriteString(strings.Replace(condition, "?", q.placeholder(), 1))
}

func (q *orderQuery) limit(n int) {
	q.args = append(q.args, n)
	q.sql.WriteString("\n\t\tLIMIT " + q.placeholder())
}

func (q *orderQuery) placeholder() string {
	return "$" + strconv.Itoa(len(q.args))
}

func (q *orderQuery) build() (string, []any) {
	return q.sql.String(), q.args
}

// buildOrderSearchQuery строит запрос поиска заказов по критериям. Результат ограничен MaxSearchResults.
func buildOrderSearchQuery(search domain.OrderSearch) (string, []any) {
	q := newOrderQuery()
	if search.HasStatus() {
		q.where("o.status = ?", string(search.OrderStatus))
	}
	if search.HasMemberName() {
		q.where(`m.name LIKE '%' || ? || '%' ESCAPE '\'`, escapeLike(search.MemberName))
	}
	q.limit(domain.MaxSearchResults)
	return q.build()
}
