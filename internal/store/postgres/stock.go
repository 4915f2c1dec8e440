package postgres

import (
	"context"
	"database/sql"
	"errors"

	"pideci/backend/internal/domain"
	"pideci/backend/internal/store"
	"pideci/backend/internal/xid"
)

const stockColumns = `id, name, quantity, price, category_id, alert_threshold`

func scanStock(row rowScanner) (*domain.Stock, error) {
	var (
		st         domain.Stock
		price      sql.NullString
		categoryID sql.NullString
		threshold  sql.NullInt64
	)
	if err := row.Scan(&st.ID, &st.Name, &st.Quantity, &price, &categoryID, &threshold); err != nil {
		return nil, notFound(err)
	}
	amount, err := amountPtr(price)
	if err != nil {
		return nil, err
	}
	st.Price = amount
	st.CategoryID = stringPtr(categoryID)
	st.AlertThreshold = intPtr(threshold)
	return &st, nil
}

func queryStock(ctx context.Context, q querier, query string, args ...any) ([]domain.Stock, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Stock, 0, 32)
	for rows.Next() {
		st, err := scanStock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

func (s *Store) ListStock(ctx context.Context) ([]domain.Stock, error) {
	return queryStock(ctx, s.db, `SELECT `+stockColumns+` FROM stock ORDER BY name ASC`)
}

func (s *Store) GetStock(ctx context.Context, id string) (*domain.Stock, error) {
	return scanStock(s.db.QueryRowContext(ctx, `SELECT `+stockColumns+` FROM stock WHERE id = $1`, id))
}

func (s *Store) GetStockByName(ctx context.Context, name string) (*domain.Stock, error) {
	return scanStock(s.db.QueryRowContext(ctx, `SELECT `+stockColumns+` FROM stock WHERE name = $1`, name))
}

// UpsertStockByName locks the named row, or inserts it when missing. A racing
// insert of the same name surfaces as ErrConflict.
func (s *Store) UpsertStockByName(ctx context.Context, req domain.StockUpsertRequest, newID string) (*domain.Stock, error) {
	var out *domain.Stock
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row, err := scanStock(tx.QueryRowContext(ctx, `SELECT `+stockColumns+` FROM stock WHERE name = $1 FOR UPDATE`, req.Name))
		switch {
		case err == nil:
		case errors.Is(err, store.ErrNotFound):
			if newID == "" {
				newID = xid.New()
			}
			row = &domain.Stock{ID: newID, Name: req.Name}
			if _, err := tx.ExecContext(ctx, `INSERT INTO stock (id, name, quantity) VALUES ($1, $2, 0)`, row.ID, row.Name); err != nil {
				if isUniqueViolation(err) {
					return store.ErrConflict
				}
				return err
			}
		default:
			return err
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
		out, err = updateStock(ctx, tx, *row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) UpdateStock(ctx context.Context, row domain.Stock) (*domain.Stock, error) {
	return updateStock(ctx, s.db, row)
}

func updateStock(ctx context.Context, q querier, row domain.Stock) (*domain.Stock, error) {
	updated, err := scanStock(q.QueryRowContext(ctx, `
		UPDATE stock
		SET name = $2, quantity = $3, price = $4, category_id = $5, alert_threshold = $6
		WHERE id = $1
		RETURNING `+stockColumns,
		row.ID, row.Name, row.Quantity, nullAmount(row.Price), nullString(row.CategoryID), nullInt(row.AlertThreshold)))
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return nil, store.ErrConflict
		case isForeignKeyViolation(err):
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return updated, nil
}

func (s *Store) AdjustStock(ctx context.Context, id string, delta int) (*domain.StockAdjustResult, error) {
	return s.adjust(ctx, `SELECT `+stockColumns+` FROM stock WHERE id = $1 FOR UPDATE`, id, delta)
}

func (s *Store) AdjustStockByName(ctx context.Context, name string, delta int) (*domain.StockAdjustResult, error) {
	return s.adjust(ctx, `SELECT `+stockColumns+` FROM stock WHERE name = $1 FOR UPDATE`, name, delta)
}

func (s *Store) adjust(ctx context.Context, lockQuery, key string, delta int) (*domain.StockAdjustResult, error) {
	var result *domain.StockAdjustResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row, err := scanStock(tx.QueryRowContext(ctx, lockQuery, key))
		if err != nil {
			return err
		}
		next, short := store.ApplyDelta(row.Quantity, delta)
		warning := store.Warning(*row, -delta, short)
		if _, err := tx.ExecContext(ctx, `UPDATE stock SET quantity = $2 WHERE id = $1`, row.ID, next); err != nil {
			return err
		}
		row.Quantity = next
		result = &domain.StockAdjustResult{Stock: *row, Warning: warning}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteStock leaves unlinking products to ON DELETE SET NULL.
func (s *Store) DeleteStock(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM stock WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) ListLowStock(ctx context.Context) ([]domain.Stock, error) {
	return queryStock(ctx, s.db, `
		SELECT `+stockColumns+`
		FROM stock
		WHERE alert_threshold > 0 AND quantity <= alert_threshold
		ORDER BY quantity ASC, name ASC
	`)
}

// deduct locks every linked stock row in id order and applies the clamped
// decrement. Rows deleted since the product was linked are skipped.
func deduct(ctx context.Context, tx *sql.Tx, items []domain.SaleItem) ([]domain.StockWarning, error) {
	warnings := make([]domain.StockWarning, 0)

	productIDs := make([]string, 0, len(items))
	for _, item := range items {
		productIDs = append(productIDs, item.ProductID)
	}
	products, err := getProductsByIDs(ctx, tx, productIDs)
	if err != nil {
		return nil, err
	}
	deductions := store.CollectDeductions(items, products)
	if len(deductions) == 0 {
		return warnings, nil
	}

	stockIDs := make([]string, 0, len(deductions))
	for _, d := range deductions {
		stockIDs = append(stockIDs, d.StockItemID)
	}
	locked, err := queryStock(ctx, tx, `SELECT `+stockColumns+` FROM stock WHERE id = ANY($1) ORDER BY id FOR UPDATE`, stockIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Stock, len(locked))
	for _, row := range locked {
		byID[row.ID] = row
	}

	for _, d := range deductions {
		row, ok := byID[d.StockItemID]
		if !ok {
			continue
		}
		next, short := store.ApplyDelta(row.Quantity, -d.Quantity)
		if w := store.Warning(row, d.Quantity, short); w != nil {
			warnings = append(warnings, *w)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE stock SET quantity = $2 WHERE id = $1`, row.ID, next); err != nil {
			return nil, err
		}
	}
	return warnings, nil
}
