package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

type orderRepository struct {
	conn conn
}

// Save обновляет статус заказа и доставки с проверкой версии, а новый заказ вставляет
// вместе с доставкой и позициями. Позиции после вставки не меняются.
func (r orderRepository) Save(ctx context.Context, order domain.Order) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	fresh := order.ID == ""
	if fresh {
		order.ID = uuid.NewString()
	}

	err := r.conn.atomic(ctx, func(q querier) error {
		if fresh {
			return r.insert(ctx, q, order)
		}
		updated, err := r.update(ctx, q, order)
		if err != nil {
			return err
		}
		if updated {
			order.Version++
			return nil
		}
		return r.insert(ctx, q, order)
	})
	if err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (r orderRepository) update(ctx context.Context, q querier, order domain.Order) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE orders
		SET status = $1,
		    version = version + 1
		WHERE id = $2
		  AND version = $3
	`, string(order.Status), order.ID, order.Version)
	if err != nil {
		return false, domain.PersistenceError("update order", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, domain.PersistenceError("rows affected", err)
	}
	if affected == 0 {
		exists, err := rowExists(ctx, q, `SELECT 1 FROM orders WHERE id = $1`, order.ID)
		if err != nil {
			return false, err
		}
		if exists {
			return false, domain.ErrVersionConflict
		}
		return false, nil
	}

	if _, err := q.ExecContext(ctx, `
		UPDATE deliveries SET status = $1 WHERE order_id = $2
	`, string(order.Delivery.Status), order.ID); err != nil {
		return false, domain.PersistenceError("update delivery", err)
	}
	return true, nil
}

func (r orderRepository) insert(ctx context.Context, q querier, order domain.Order) error {
	if _, err := q.ExecContext(ctx, `
		INSERT INTO orders (id, member_id, status, order_date, version)
		VALUES ($1,$2,$3,$4,$5)
	`, order.ID, order.MemberID, string(order.Status), order.OrderDate, order.Version); err != nil {
		return mapOrderError("insert order", err)
	}

	d := order.Delivery
	if _, err := q.ExecContext(ctx, `
		INSERT INTO deliveries (id, order_id, city, street, zipcode, status)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, d.ID, order.ID, d.Address.City, d.Address.Street, d.Address.Zipcode, string(d.Status)); err != nil {
		return mapOrderError("insert delivery", err)
	}

	for i, line := range order.Lines {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO order_lines (id, order_id, item_id, position, order_price, count)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, line.ID, order.ID, line.ItemID, i, line.OrderPrice, line.Count); err != nil {
			return mapOrderError("insert order line", err)
		}
	}
	return nil
}

// FindOne возвращает заказ с позициями и доставкой или ErrOrderNotFound.
func (r orderRepository) FindOne(ctx context.Context, id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	q := r.conn.q()
	order, err := scanOrder(q.QueryRowContext(ctx, orderSelect+"\n\t\tWHERE o.id = $1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, domain.PersistenceError("select order", err)
	}

	lines, err := loadLines(ctx, q, []string{order.ID})
	if err != nil {
		return domain.Order{}, err
	}
	order.Lines = lines[order.ID]
	return order, nil
}

// FindOrders выполняет поиск по критериям; позиции подгружаются одним запросом для всей выборки.
func (r orderRepository) FindOrders(ctx context.Context, search domain.OrderSearch) ([]domain.Order, error) {
	if err := search.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	q := r.conn.q()
	query, args := buildOrderSearchQuery(search)
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.PersistenceError("search orders", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	ids := make([]string, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, domain.PersistenceError("scan order row", err)
		}
		orders = append(orders, order)
		ids = append(ids, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.PersistenceError("iterate order rows", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	lines, err := loadLines(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Lines = lines[orders[i].ID]
	}
	return orders, nil
}

func loadLines(ctx context.Context, q querier, orderIDs []string) (map[string][]domain.OrderLine, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT order_id, id, item_id, order_price, count
		FROM order_lines
		WHERE order_id = ANY($1)
		ORDER BY order_id, position
	`, orderIDs)
	if err != nil {
		return nil, domain.PersistenceError("load order lines", err)
	}
	defer rows.Close()

	result := make(map[string][]domain.OrderLine, len(orderIDs))
	for rows.Next() {
		var (
			orderID string
			line    domain.OrderLine
		)
		if err := rows.Scan(&orderID, &line.ID, &line.ItemID, &line.OrderPrice, &line.Count); err != nil {
			return nil, domain.PersistenceError("scan order line", err)
		}
		result[orderID] = append(result[orderID], line)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.PersistenceError("iterate order lines", err)
	}
	return result, nil
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order          domain.Order
		status         string
		deliveryStatus string
	)
	if err := row.Scan(
		&order.ID, &order.MemberID, &status, &order.OrderDate, &order.Version,
		&order.Delivery.ID, &order.Delivery.Address.City, &order.Delivery.Address.Street,
		&order.Delivery.Address.Zipcode, &deliveryStatus,
	); err != nil {
		return domain.Order{}, err
	}
	order.Status = domain.OrderStatus(status)
	order.Delivery.Status = domain.DeliveryStatus(deliveryStatus)
	order.OrderDate = order.OrderDate.UTC()
	return order, nil
}

func mapOrderError(op string, err error) error {
	code, constraint := pgErrorCode(err)
	switch {
	case code == pgUniqueViolation:
		return domain.ErrVersionConflict
	case code == pgForeignKeyViolation && constraint == "orders_member_id_fkey":
		return domain.ErrMemberNotFound
	case code == pgForeignKeyViolation && constraint == "order_lines_item_id_fkey":
		return domain.ErrItemNotFound
	default:
		return domain.PersistenceError(op, err)
	}
}

var _ domain.OrderRepository = orderRepository{}
