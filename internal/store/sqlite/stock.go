package sqlite

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"pideci/backend/internal/domain"
	"pideci/backend/internal/store"
	"pideci/backend/internal/xid"
)

func (s *Store) ListStock(ctx context.Context) ([]domain.Stock, error) {
	return listStock(s.conn(ctx).Order("name ASC"))
}

func listStock(q *gorm.DB) ([]domain.Stock, error) {
	var rows []stockRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Stock, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) GetStock(ctx context.Context, id string) (*domain.Stock, error) {
	var row stockRow
	if err := s.conn(ctx).Take(&row, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	out := row.toDomain()
	return &out, nil
}

func (s *Store) GetStockByName(ctx context.Context, name string) (*domain.Stock, error) {
	var row stockRow
	if err := s.conn(ctx).Take(&row, "name = ?", name).Error; err != nil {
		return nil, translate(err)
	}
	out := row.toDomain()
	return &out, nil
}

func checkCategory(tx *gorm.DB, categoryID *string) error {
	if categoryID == nil {
		return nil
	}
	ok, err := exists(tx, &categoryRow{}, "id = ?", *categoryID)
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) UpsertStockByName(ctx context.Context, req domain.StockUpsertRequest, newID string) (*domain.Stock, error) {
	var row stockRow
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		if err := checkCategory(tx, req.CategoryID); err != nil {
			return err
		}
		err := tx.Take(&row, "name = ?", req.Name).Error
		creating := errors.Is(err, gorm.ErrRecordNotFound)
		if err != nil && !creating {
			return err
		}
		if creating {
			if newID == "" {
				newID = xid.New()
			}
			row = stockRow{ID: newID, Name: req.Name}
		}

		row.Quantity, _ = store.ApplyDelta(row.Quantity, req.Quantity)
		if req.Price != nil {
			price := *req.Price
			row.Price = &price
		}
		if req.CategoryID != nil {
			categoryID := *req.CategoryID
			row.CategoryID = &categoryID
		}
		if req.AlertThreshold != nil {
			threshold := *req.AlertThreshold
			row.AlertThreshold = &threshold
		}
		if creating {
			return tx.Create(&row).Error
		}
		return tx.Model(&stockRow{ID: row.ID}).Select("*").Updates(&row).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	out := row.toDomain()
	return &out, nil
}

func (s *Store) UpdateStock(ctx context.Context, stock domain.Stock) (*domain.Stock, error) {
	row := stockFromDomain(stock)
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Take(&stockRow{}, "id = ?", stock.ID).Error; err != nil {
			return err
		}
		taken, err := exists(tx, &stockRow{}, "name = ? AND id <> ?", stock.Name, stock.ID)
		if err != nil {
			return err
		}
		if taken {
			return store.ErrConflict
		}
		if err := checkCategory(tx, stock.CategoryID); err != nil {
			return err
		}
		return tx.Model(&stockRow{ID: row.ID}).Select("*").Updates(&row).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	out := row.toDomain()
	return &out, nil
}

func (s *Store) AdjustStock(ctx context.Context, id string, delta int) (*domain.StockAdjustResult, error) {
	return s.adjust(ctx, "id = ?", id, delta)
}

func (s *Store) AdjustStockByName(ctx context.Context, name string, delta int) (*domain.StockAdjustResult, error) {
	return s.adjust(ctx, "name = ?", name, delta)
}

func (s *Store) adjust(ctx context.Context, where, key string, delta int) (*domain.StockAdjustResult, error) {
	var result *domain.StockAdjustResult
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var row stockRow
		if err := tx.Take(&row, where, key).Error; err != nil {
			return err
		}
		next, short := store.ApplyDelta(row.Quantity, delta)
		current := row.toDomain()
		warning := store.Warning(current, -delta, short)
		if err := tx.Model(&row).Update("quantity", next).Error; err != nil {
			return err
		}
		current.Quantity = next
		result = &domain.StockAdjustResult{Stock: current, Warning: warning}
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return result, nil
}

func (s *Store) DeleteStock(ctx context.Context, id string) error {
	return translate(s.transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Model(&productRow{}).Where("stock_item_id = ?", id).Update("stock_item_id", nil).Error; err != nil {
			return err
		}
		return requireRows(tx.Delete(&stockRow{}, "id = ?", id))
	}))
}

func (s *Store) ListLowStock(ctx context.Context) ([]domain.Stock, error) {
	return listStock(s.conn(ctx).
		Where("alert_threshold > 0 AND quantity <= alert_threshold").
		Order("quantity ASC, name ASC"))
}

// deduct applies the clamped stock effect of sold items. Rows deleted since
// the product was linked are skipped.
func deduct(tx *gorm.DB, items []domain.SaleItem) ([]domain.StockWarning, error) {
	warnings := make([]domain.StockWarning, 0)
	productIDs := make([]string, 0, len(items))
	for _, item := range items {
		productIDs = append(productIDs, item.ProductID)
	}
	products, err := productsByIDs(tx, productIDs)
	if err != nil {
		return nil, err
	}

	for _, d := range store.CollectDeductions(items, products) {
		var row stockRow
		err := tx.Take(&row, "id = ?", d.StockItemID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		next, short := store.ApplyDelta(row.Quantity, -d.Quantity)
		if w := store.Warning(row.toDomain(), d.Quantity, short); w != nil {
			warnings = append(warnings, *w)
		}
		if err := tx.Model(&row).Update("quantity", next).Error; err != nil {
			return nil, err
		}
	}
	return warnings, nil
}
