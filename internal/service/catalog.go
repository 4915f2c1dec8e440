package service

import (
	"context"
	"strings"

	"pideci/backend/internal/domain"
)

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *Service) GetCategory(ctx context.Context, id string) (domain.Category, error) {
	category, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		return domain.Category{}, err
	}
	return *category, nil
}

func (s *Service) CreateCategory(ctx context.Context, req domain.CategoryRequest) (domain.Category, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.check(req); err != nil {
		return domain.Category{}, err
	}
	created, err := s.repo.CreateCategory(ctx, domain.Category{
		Name:      req.Name,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return domain.Category{}, err
	}
	s.logAudit(ctx, "category_create", "category", created.ID, "name", created.Name)
	return *created, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id string, req domain.CategoryRequest) (domain.Category, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.check(req); err != nil {
		return domain.Category{}, err
	}
	existing, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		return domain.Category{}, err
	}
	existing.Name = req.Name
	updated, err := s.repo.UpdateCategory(ctx, *existing)
	if err != nil {
		return domain.Category{}, err
	}
	s.logAudit(ctx, "category_update", "category", id, "name", updated.Name)
	return *updated, nil
}

func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "category_delete", "category", id)
	return nil
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.check(req); err != nil {
		return domain.Product{}, err
	}
	if req.Price.IsNegative() {
		return domain.Product{}, invalid("price must not be negative")
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Name:        req.Name,
		Price:       req.Price,
		CategoryID:  blankToNil(req.CategoryID),
		StockItemID: blankToNil(req.StockItemID),
	})
	if err != nil {
		return domain.Product{}, err
	}
	s.logAudit(ctx, "product_create", "product", created.ID, "name", created.Name, "price", created.Price.String())
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, patch domain.ProductPatch) (domain.Product, error) {
	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if patch.Name.Set {
		name := strings.TrimSpace(patch.Name.Value)
		if patch.Name.Null || name == "" {
			return domain.Product{}, invalid("name is required")
		}
		updated.Name = name
	}
	if patch.Price.Set {
		if patch.Price.Null || patch.Price.Value.IsNegative() {
			return domain.Product{}, invalid("price must be zero or more")
		}
		updated.Price = patch.Price.Value
	}
	updated.CategoryID = blankToNil(patch.CategoryID.Ptr(updated.CategoryID))
	updated.StockItemID = blankToNil(patch.StockItemID.Ptr(updated.StockItemID))

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}
	s.logAudit(ctx, "product_update", "product", id, "name", saved.Name, "price", saved.Price.String())
	return *saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "product_delete", "product", id)
	return nil
}

func (s *Service) ListTables(ctx context.Context) ([]domain.RestaurantTable, error) {
	return s.repo.ListTables(ctx)
}

func (s *Service) GetTable(ctx context.Context, id string) (domain.RestaurantTable, error) {
	table, err := s.repo.GetTable(ctx, id)
	if err != nil {
		return domain.RestaurantTable{}, err
	}
	return *table, nil
}

// CreateTable numbers the table after the highest existing one when the
// request leaves orderNumber at zero.
func (s *Service) CreateTable(ctx context.Context, req domain.TableCreateRequest) (domain.RestaurantTable, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.check(req); err != nil {
		return domain.RestaurantTable{}, err
	}
	if req.OrderNumber == 0 {
		next, err := s.repo.NextOrderNumber(ctx)
		if err != nil {
			return domain.RestaurantTable{}, err
		}
		req.OrderNumber = next
	}

	created, err := s.repo.CreateTable(ctx, domain.RestaurantTable{
		Name:        req.Name,
		OrderNumber: req.OrderNumber,
		CreatedAt:   s.now().UTC(),
	})
	if err != nil {
		return domain.RestaurantTable{}, err
	}
	s.logAudit(ctx, "table_create", "table", created.ID, "name", created.Name)
	return *created, nil
}

func (s *Service) UpdateTable(ctx context.Context, id string, patch domain.TablePatch) (domain.RestaurantTable, error) {
	existing, err := s.repo.GetTable(ctx, id)
	if err != nil {
		return domain.RestaurantTable{}, err
	}

	updated := *existing
	if patch.Name.Set {
		name := strings.TrimSpace(patch.Name.Value)
		if patch.Name.Null || name == "" {
			return domain.RestaurantTable{}, invalid("name is required")
		}
		updated.Name = name
	}
	if n, ok := patch.OrderNumber.Get(); ok {
		if n < 0 {
			return domain.RestaurantTable{}, invalid("orderNumber must be 0 or more")
		}
		updated.OrderNumber = n
	}

	saved, err := s.repo.UpdateTable(ctx, updated)
	if err != nil {
		return domain.RestaurantTable{}, err
	}
	s.logAudit(ctx, "table_update", "table", id, "name", saved.Name)
	return *saved, nil
}

func (s *Service) DeleteTable(ctx context.Context, id string) error {
	if err := s.repo.DeleteTable(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "table_delete", "table", id)
	return nil
}

func blankToNil(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
