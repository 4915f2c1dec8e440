package sqlite

import (
	"context"
	"time"

	"gorm.io/gorm"

	"pideci/backend/internal/domain"
	"pideci/backend/internal/money"
	"pideci/backend/internal/store"
	"pideci/backend/internal/xid"
)

var occupyingStatuses = []string{string(domain.OrderActive), string(domain.OrderCompleted)}

func (s *Store) ListTables(ctx context.Context) ([]domain.RestaurantTable, error) {
	var rows []tableRow
	if err := s.conn(ctx).Order("order_number ASC, name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.RestaurantTable, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) GetTable(ctx context.Context, id string) (*domain.RestaurantTable, error) {
	var row tableRow
	if err := s.conn(ctx).Take(&row, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	out := row.toDomain()
	return &out, nil
}

func (s *Store) CreateTable(ctx context.Context, table domain.RestaurantTable) (*domain.RestaurantTable, error) {
	if table.ID == "" {
		table.ID = xid.New()
	}
	row := tableRow{ID: table.ID, Name: table.Name, OrderNumber: table.OrderNumber, CreatedAt: utc(table.CreatedAt)}
	if err := s.conn(ctx).Create(&row).Error; err != nil {
		return nil, translate(err)
	}
	out := row.toDomain()
	return &out, nil
}

func (s *Store) UpdateTable(ctx context.Context, table domain.RestaurantTable) (*domain.RestaurantTable, error) {
	var row tableRow
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Take(&row, "id = ?", table.ID).Error; err != nil {
			return err
		}
		row.Name = table.Name
		row.OrderNumber = table.OrderNumber
		return tx.Model(&row).Updates(map[string]any{"name": row.Name, "order_number": row.OrderNumber}).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	out := row.toDomain()
	return &out, nil
}

func (s *Store) DeleteTable(ctx context.Context, id string) error {
	return translate(s.transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Take(&tableRow{}, "id = ?", id).Error; err != nil {
			return err
		}
		occupied, err := exists(tx, &orderRow{}, "table_id = ? AND status IN ?", id, occupyingStatuses)
		if err != nil {
			return err
		}
		if occupied {
			return store.ErrConflict
		}
		return tx.Delete(&tableRow{}, "id = ?", id).Error
	}))
}

func (s *Store) NextOrderNumber(ctx context.Context) (int, error) {
	var highest int
	if err := s.conn(ctx).Model(&tableRow{}).Select("COALESCE(MAX(order_number), 0)").Scan(&highest).Error; err != nil {
		return 0, err
	}
	return highest + 1, nil
}

func (s *Store) listOrders(q *gorm.DB) ([]domain.Order, error) {
	var rows []orderRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) ListOrders(ctx context.Context, tableID string) ([]domain.Order, error) {
	q := s.conn(ctx).Order("created_at DESC, id DESC")
	if tableID != "" {
		q = q.Where("table_id = ?", tableID)
	}
	return s.listOrders(q)
}

func (s *Store) ListOrdersByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	return s.listOrders(s.conn(ctx).Where("status = ?", string(status)).Order("created_at ASC, id ASC"))
}

func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	var row orderRow
	if err := s.conn(ctx).Take(&row, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	out := row.toDomain()
	return &out, nil
}

func (s *Store) GetOccupyingOrder(ctx context.Context, tableID string) (*domain.Order, error) {
	var row orderRow
	err := s.conn(ctx).Where("table_id = ? AND status IN ?", tableID, occupyingStatuses).Take(&row).Error
	if err != nil {
		return nil, translate(err)
	}
	out := row.toDomain()
	return &out, nil
}

func (s *Store) CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	if order.ID == "" {
		order.ID = xid.New()
	}
	row := orderRow{
		ID:        order.ID,
		TableID:   order.TableID,
		Status:    string(order.Status),
		Total:     money.Zero,
		CreatedAt: utc(order.CreatedAt),
		UpdatedAt: utc(order.UpdatedAt),
	}
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Take(&tableRow{}, "id = ?", order.TableID).Error; err != nil {
			return err
		}
		occupied, err := exists(tx, &orderRow{}, "table_id = ? AND status IN ?", order.TableID, occupyingStatuses)
		if err != nil {
			return err
		}
		if occupied {
			return store.ErrConflict
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	out := row.toDomain()
	return &out, nil
}

func (s *Store) SetOrderStatus(ctx context.Context, id string, from, to domain.OrderStatus, at time.Time) (*domain.Order, error) {
	var row orderRow
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Take(&row, "id = ?", id).Error; err != nil {
			return err
		}
		if row.Status != string(from) {
			return store.ErrInvalidState
		}
		row.Status = string(to)
		row.UpdatedAt = at.UTC()
		return tx.Model(&orderRow{ID: id}).Updates(map[string]any{"status": row.Status, "updated_at": row.UpdatedAt}).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	out := row.toDomain()
	return &out, nil
}

func (s *Store) DeleteOrder(ctx context.Context, id string) error {
	return translate(s.transaction(ctx, func(tx *gorm.DB) error {
		return deleteOrder(tx, id)
	}))
}

func deleteOrder(tx *gorm.DB, id string) error {
	if err := tx.Where("order_id = ?", id).Delete(&orderItemRow{}).Error; err != nil {
		return err
	}
	return requireRows(tx.Delete(&orderRow{}, "id = ?", id))
}

func orderItems(tx *gorm.DB, orderID string) ([]orderItemRow, error) {
	var rows []orderItemRow
	if err := tx.Where("order_id = ?", orderID).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) ListOrderItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	out := make([]domain.OrderItem, 0)
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Take(&orderRow{}, "id = ?", orderID).Error; err != nil {
			return err
		}
		rows, err := orderItems(tx, orderID)
		if err != nil {
			return err
		}
		for _, r := range rows {
			out = append(out, r.toDomain())
		}
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func (s *Store) GetOrderItem(ctx context.Context, id string) (*domain.OrderItem, error) {
	var row orderItemRow
	if err := s.conn(ctx).Take(&row, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	out := row.toDomain()
	return &out, nil
}

// recompute sets the order total to the sum of its item totals.
func recompute(tx *gorm.DB, orderID string, at time.Time) error {
	rows, err := orderItems(tx, orderID)
	if err != nil {
		return err
	}
	total := money.Zero
	for _, r := range rows {
		total = total.Add(r.Total)
	}
	return tx.Model(&orderRow{ID: orderID}).Updates(map[string]any{"total": total, "updated_at": at.UTC()}).Error
}

func (s *Store) AddOrderItem(ctx context.Context, item domain.OrderItem, at time.Time) (*domain.OrderItem, error) {
	if item.ID == "" {
		item.ID = xid.New()
	}
	item.Total = item.Price.Mul(item.Quantity)
	row := orderItemRow{
		ID:          item.ID,
		OrderID:     item.OrderID,
		ProductID:   item.ProductID,
		ProductName: item.ProductName,
		Quantity:    item.Quantity,
		Price:       item.Price,
		Total:       item.Total,
	}
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Take(&orderRow{}, "id = ?", item.OrderID).Error; err != nil {
			return err
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		return recompute(tx, item.OrderID, at)
	})
	if err != nil {
		return nil, translate(err)
	}
	out := row.toDomain()
	return &out, nil
}

func (s *Store) UpdateOrderItem(ctx context.Context, item domain.OrderItem, at time.Time) (*domain.OrderItem, error) {
	var row orderItemRow
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Take(&row, "id = ?", item.ID).Error; err != nil {
			return err
		}
		row.Quantity = item.Quantity
		row.Price = item.Price
		row.Total = item.Price.Mul(item.Quantity)
		if err := tx.Model(&orderItemRow{ID: row.ID}).Updates(map[string]any{
			"quantity": row.Quantity,
			"price":    row.Price,
			"total":    row.Total,
		}).Error; err != nil {
			return err
		}
		return recompute(tx, row.OrderID, at)
	})
	if err != nil {
		return nil, translate(err)
	}
	out := row.toDomain()
	return &out, nil
}

func (s *Store) DeleteOrderItem(ctx context.Context, id string, at time.Time) error {
	return translate(s.transaction(ctx, func(tx *gorm.DB) error {
		var row orderItemRow
		if err := tx.Take(&row, "id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&orderItemRow{}, "id = ?", id).Error; err != nil {
			return err
		}
		return recompute(tx, row.OrderID, at)
	}))
}

func (s *Store) CloseOrder(ctx context.Context, orderID string, sale domain.Sale) (*domain.SaleReceipt, error) {
	if sale.ID == "" {
		sale.ID = xid.New()
	}
	var receipt *domain.SaleReceipt
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var order orderRow
		if err := tx.Take(&order, "id = ?", orderID).Error; err != nil {
			return err
		}
		if order.Status != string(domain.OrderCompleted) {
			return store.ErrInvalidState
		}
		rows, err := orderItems(tx, orderID)
		if err != nil {
			return err
		}

		sale.Total = order.Total
		items := make([]domain.SaleItem, 0, len(rows))
		for _, oi := range rows {
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
		receipt, err = insertSale(tx, sale, items)
		if err != nil {
			return err
		}
		return deleteOrder(tx, orderID)
	})
	if err != nil {
		return nil, translate(err)
	}
	return receipt, nil
}
