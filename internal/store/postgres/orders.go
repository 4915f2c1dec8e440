package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"pideci/backend/internal/domain"
	"pideci/backend/internal/store"
	"pideci/backend/internal/xid"
)

// Tables

const tableColumns = `id, name, order_number, created_at`

func scanTable(row rowScanner) (*domain.RestaurantTable, error) {
	var t domain.RestaurantTable
	if err := row.Scan(&t.ID, &t.Name, &t.OrderNumber, &t.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (s *Store) ListTables(ctx context.Context) ([]domain.RestaurantTable, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+tableColumns+` FROM restaurant_tables ORDER BY order_number ASC, name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tables := make([]domain.RestaurantTable, 0, 16)
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		tables = append(tables, *t)
	}
	return tables, rows.Err()
}

func (s *Store) GetTable(ctx context.Context, id string) (*domain.RestaurantTable, error) {
	return scanTable(s.db.QueryRowContext(ctx, `SELECT `+tableColumns+` FROM restaurant_tables WHERE id = $1`, id))
}

func (s *Store) CreateTable(ctx context.Context, table domain.RestaurantTable) (*domain.RestaurantTable, error) {
	if table.ID == "" {
		table.ID = xid.New()
	}
	return scanTable(s.db.QueryRowContext(ctx, `
		INSERT INTO restaurant_tables (id, name, order_number, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
		RETURNING `+tableColumns,
		table.ID, table.Name, table.OrderNumber, nullTime(table.CreatedAt)))
}

func (s *Store) UpdateTable(ctx context.Context, table domain.RestaurantTable) (*domain.RestaurantTable, error) {
	return scanTable(s.db.QueryRowContext(ctx, `
		UPDATE restaurant_tables SET name = $2, order_number = $3
		WHERE id = $1
		RETURNING `+tableColumns,
		table.ID, table.Name, table.OrderNumber))
}

func (s *Store) DeleteTable(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT true FROM restaurant_tables WHERE id = $1 FOR UPDATE`, id).Scan(&exists); err != nil {
			return notFound(err)
		}
		var occupied bool
		if err := tx.QueryRowContext(ctx, `
			SELECT EXISTS (SELECT 1 FROM orders WHERE table_id = $1 AND status IN ('active', 'completed'))
		`, id).Scan(&occupied); err != nil {
			return err
		}
		if occupied {
			return store.ErrConflict
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM restaurant_tables WHERE id = $1`, id); err != nil {
			if isForeignKeyViolation(err) {
				return store.ErrConflict
			}
			return err
		}
		return nil
	})
}

func (s *Store) NextOrderNumber(ctx context.Context) (int, error) {
	var next int
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(order_number), 0) + 1 FROM restaurant_tables`).Scan(&next)
	return next, err
}

// Orders

const orderColumns = `id, table_id, status, total, created_at, updated_at`

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o      domain.Order
		status string
	)
	if err := row.Scan(&o.ID, &o.TableID, &status, &o.Total, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	o.Status = domain.OrderStatus(status)
	return &o, nil
}

func (s *Store) queryOrders(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, 16)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func (s *Store) ListOrders(ctx context.Context, tableID string) ([]domain.Order, error) {
	if tableID == "" {
		return s.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC, id DESC`)
	}
	return s.queryOrders(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE table_id = $1
		ORDER BY created_at DESC, id DESC
	`, tableID)
}

func (s *Store) ListOrdersByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	return s.queryOrders(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE status = $1
		ORDER BY created_at ASC, id ASC
	`, string(status))
}

func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return scanOrder(s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
}

func (s *Store) GetOccupyingOrder(ctx context.Context, tableID string) (*domain.Order, error) {
	return scanOrder(s.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE table_id = $1 AND status IN ('active', 'completed')
	`, tableID))
}

// CreateOrder leans on the partial unique index for occupancy, so two
// concurrent opens on one table cannot both succeed.
func (s *Store) CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	if order.ID == "" {
		order.ID = xid.New()
	}
	created, err := scanOrder(s.db.QueryRowContext(ctx, `
		INSERT INTO orders (id, table_id, status, total, created_at, updated_at)
		VALUES ($1, $2, $3, 0, COALESCE($4, now()), COALESCE($5, now()))
		RETURNING `+orderColumns,
		order.ID, order.TableID, string(order.Status), nullTime(order.CreatedAt), nullTime(order.UpdatedAt)))
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return nil, store.ErrConflict
		case isForeignKeyViolation(err):
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return created, nil
}

func (s *Store) SetOrderStatus(ctx context.Context, id string, from, to domain.OrderStatus, at time.Time) (*domain.Order, error) {
	order, err := scanOrder(s.db.QueryRowContext(ctx, `
		UPDATE orders SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
		RETURNING `+orderColumns,
		id, string(from), string(to), at))
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if _, getErr := s.GetOrder(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, store.ErrInvalidState
}

func (s *Store) DeleteOrder(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// Order items

const orderItemColumns = `id, order_id, product_id, product_name, quantity, price, total`

func scanOrderItem(row rowScanner) (*domain.OrderItem, error) {
	var item domain.OrderItem
	if err := row.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.Quantity, &item.Price, &item.Total); err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

func listOrderItems(ctx context.Context, q querier, orderID string) ([]domain.OrderItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+orderItemColumns+`
		FROM order_items
		WHERE order_id = $1
		ORDER BY id COLLATE "C" ASC
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0, 8)
	for rows.Next() {
		item, err := scanOrderItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (s *Store) ListOrderItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	if _, err := s.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return listOrderItems(ctx, s.db, orderID)
}

func (s *Store) GetOrderItem(ctx context.Context, id string) (*domain.OrderItem, error) {
	return scanOrderItem(s.db.QueryRowContext(ctx, `SELECT `+orderItemColumns+` FROM order_items WHERE id = $1`, id))
}

func lockOrder(ctx context.Context, tx *sql.Tx, id string) (*domain.Order, error) {
	return scanOrder(tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
}

func recomputeOrderTotal(ctx context.Context, tx *sql.Tx, orderID string, at time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET total = (SELECT COALESCE(SUM(total), 0) FROM order_items WHERE order_id = $1),
			updated_at = $2
		WHERE id = $1
	`, orderID, at)
	return err
}

func (s *Store) AddOrderItem(ctx context.Context, item domain.OrderItem, at time.Time) (*domain.OrderItem, error) {
	if item.ID == "" {
		item.ID = xid.New()
	}
	item.Total = item.Price.Mul(item.Quantity)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := lockOrder(ctx, tx, item.OrderID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, product_name, quantity, price, total)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, item.ID, item.OrderID, item.ProductID, item.ProductName, item.Quantity, item.Price, item.Total); err != nil {
			return err
		}
		return recomputeOrderTotal(ctx, tx, item.OrderID, at)
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpdateOrderItem(ctx context.Context, item domain.OrderItem, at time.Time) (*domain.OrderItem, error) {
	var updated *domain.OrderItem
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := scanOrderItem(tx.QueryRowContext(ctx, `SELECT `+orderItemColumns+` FROM order_items WHERE id = $1`, item.ID))
		if err != nil {
			return err
		}
		if _, err := lockOrder(ctx, tx, existing.OrderID); err != nil {
			return err
		}
		updated, err = scanOrderItem(tx.QueryRowContext(ctx, `
			UPDATE order_items SET quantity = $2, price = $3, total = $4
			WHERE id = $1
			RETURNING `+orderItemColumns,
			item.ID, item.Quantity, item.Price, item.Price.Mul(item.Quantity)))
		if err != nil {
			return err
		}
		return recomputeOrderTotal(ctx, tx, existing.OrderID, at)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Store) DeleteOrderItem(ctx context.Context, id string, at time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var orderID string
		if err := tx.QueryRowContext(ctx, `SELECT order_id FROM order_items WHERE id = $1`, id).Scan(&orderID); err != nil {
			return notFound(err)
		}
		if _, err := lockOrder(ctx, tx, orderID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if err := requireAffected(res); err != nil {
			return err
		}
		return recomputeOrderTotal(ctx, tx, orderID, at)
	})
}

// CloseOrder turns a completed order into a sale inside one transaction. The
// order row lock keeps a concurrent close of the same order from double
// billing: the loser finds the row gone and gets ErrNotFound.
func (s *Store) CloseOrder(ctx context.Context, orderID string, sale domain.Sale) (*domain.SaleReceipt, error) {
	if sale.ID == "" {
		sale.ID = xid.New()
	}

	var receipt *domain.SaleReceipt
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		order, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.Status != domain.OrderCompleted {
			return store.ErrInvalidState
		}
		orderItems, err := listOrderItems(ctx, tx, orderID)
		if err != nil {
			return err
		}

		sale.Total = order.Total
		items := make([]domain.SaleItem, 0, len(orderItems))
		for _, oi := range orderItems {
			items = append(items, domain.SaleItem{
				ID:          xid.New(),
				SaleID:      sale.ID,
				ProductID:   oi.ProductID,
				ProductName: oi.ProductName,
				Quantity:    oi.Quantity,
				Price:       oi.Price,
				Total:       oi.Total,
			})
		}

		receipt, err = insertSale(ctx, tx, sale, items)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}
