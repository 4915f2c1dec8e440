package sqlite

import (
	"context"

	"gorm.io/gorm"

	"pideci/backend/internal/domain"
	"pideci/backend/internal/store"
	"pideci/backend/internal/xid"
)

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var rows []categoryRow
	if err := s.conn(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Category, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	var row categoryRow
	if err := s.conn(ctx).Take(&row, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	out := row.toDomain()
	return &out, nil
}

func categoryNameTaken(tx *gorm.DB, name, exceptID string) (bool, error) {
	return exists(tx, &categoryRow{}, "lower(name) = lower(?) AND id <> ?", name, exceptID)
}

func (s *Store) CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	if category.ID == "" {
		category.ID = xid.New()
	}
	row := categoryRow{ID: category.ID, Name: category.Name, CreatedAt: utc(category.CreatedAt)}
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		taken, err := categoryNameTaken(tx, row.Name, "")
		if err != nil {
			return err
		}
		if taken {
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

func (s *Store) UpdateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	var row categoryRow
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Take(&row, "id = ?", category.ID).Error; err != nil {
			return err
		}
		taken, err := categoryNameTaken(tx, category.Name, category.ID)
		if err != nil {
			return err
		}
		if taken {
			return store.ErrConflict
		}
		row.Name = category.Name
		return tx.Model(&row).Update("name", row.Name).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	out := row.toDomain()
	return &out, nil
}

func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	return translate(s.transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Model(&productRow{}).Where("category_id = ?", id).Update("category_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Model(&stockRow{}).Where("category_id = ?", id).Update("category_id", nil).Error; err != nil {
			return err
		}
		return requireRows(tx.Delete(&categoryRow{}, "id = ?", id))
	}))
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var rows []productRow
	if err := s.conn(ctx).Order("name ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var row productRow
	if err := s.conn(ctx).Take(&row, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	out := row.toDomain()
	return &out, nil
}

func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	return productsByIDs(s.conn(ctx), ids)
}

func productsByIDs(tx *gorm.DB, ids []string) (map[string]domain.Product, error) {
	found := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	var rows []productRow
	if err := tx.Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		found[r.ID] = r.toDomain()
	}
	return found, nil
}

func checkProductRefs(tx *gorm.DB, p domain.Product) error {
	if p.CategoryID != nil {
		ok, err := exists(tx, &categoryRow{}, "id = ?", *p.CategoryID)
		if err != nil {
			return err
		}
		if !ok {
			return store.ErrNotFound
		}
	}
	if p.StockItemID != nil {
		ok, err := exists(tx, &stockRow{}, "id = ?", *p.StockItemID)
		if err != nil {
			return err
		}
		if !ok {
			return store.ErrNotFound
		}
	}
	return nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" {
		product.ID = xid.New()
	}
	row := productFromDomain(product)
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		if err := checkProductRefs(tx, product); err != nil {
			return err
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	out := row.toDomain()
	return &out, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	row := productFromDomain(product)
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Take(&productRow{}, "id = ?", product.ID).Error; err != nil {
			return err
		}
		if err := checkProductRefs(tx, product); err != nil {
			return err
		}
		return tx.Model(&productRow{ID: row.ID}).Select("*").Updates(&row).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	out := row.toDomain()
	return &out, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	return requireRows(s.conn(ctx).Delete(&productRow{}, "id = ?", id))
}
