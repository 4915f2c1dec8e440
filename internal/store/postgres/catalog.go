package postgres

import (
	"context"
	"database/sql"

	"pideci/backend/internal/domain"
	"pideci/backend/internal/store"
	"pideci/backend/internal/xid"
)

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM categories ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]domain.Category, 0, 16)
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *Store) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	var c domain.Category
	err := s.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM categories WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *Store) CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	if category.ID == "" {
		category.ID = xid.New()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO categories (id, name, created_at)
		VALUES ($1, $2, COALESCE($3, now()))
		RETURNING created_at
	`, category.ID, category.Name, nullTime(category.CreatedAt)).Scan(&category.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	return &category, nil
}

func (s *Store) UpdateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	var updated domain.Category
	err := s.db.QueryRowContext(ctx, `
		UPDATE categories SET name = $2
		WHERE id = $1
		RETURNING id, name, created_at
	`, category.ID, category.Name).Scan(&updated.ID, &updated.Name, &updated.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, notFound(err)
	}
	return &updated, nil
}

// DeleteCategory leaves unlinking to ON DELETE SET NULL on products and stock.
func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

const productColumns = `id, name, price, category_id, stock_item_id`

func scanProduct(row rowScanner) (*domain.Product, error) {
	var (
		p          domain.Product
		categoryID sql.NullString
		stockID    sql.NullString
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &categoryID, &stockID); err != nil {
		return nil, notFound(err)
	}
	p.CategoryID = stringPtr(categoryID)
	p.StockItemID = stringPtr(stockID)
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return scanProduct(s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
}

func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	return getProductsByIDs(ctx, s.db, ids)
}

func getProductsByIDs(ctx context.Context, q querier, ids []string) (map[string]domain.Product, error) {
	found := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	rows, err := q.QueryContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		found[p.ID] = *p
	}
	return found, rows.Err()
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" {
		product.ID = xid.New()
	}
	created, err := scanProduct(s.db.QueryRowContext(ctx, `
		INSERT INTO products (id, name, price, category_id, stock_item_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+productColumns,
		product.ID, product.Name, product.Price, nullString(product.CategoryID), nullString(product.StockItemID)))
	if err != nil {
		return nil, productWriteError(err)
	}
	return created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	updated, err := scanProduct(s.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2, price = $3, category_id = $4, stock_item_id = $5
		WHERE id = $1
		RETURNING `+productColumns,
		product.ID, product.Name, product.Price, nullString(product.CategoryID), nullString(product.StockItemID)))
	if err != nil {
		return nil, productWriteError(err)
	}
	return updated, nil
}

// A dangling category or stock reference reads as a missing entity.
func productWriteError(err error) error {
	if isForeignKeyViolation(err) {
		return store.ErrNotFound
	}
	return err
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}
