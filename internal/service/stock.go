package service

import (
	"context"
	"strings"

	"pideci/backend/internal/domain"
	"pideci/backend/internal/xid"
)

func (s *Service) ListStock(ctx context.Context) ([]domain.Stock, error) {
	return s.repo.ListStock(ctx)
}

func (s *Service) GetStock(ctx context.Context, id string) (domain.Stock, error) {
	row, err := s.repo.GetStock(ctx, id)
	if err != nil {
		return domain.Stock{}, err
	}
	return *row, nil
}

func (s *Service) ListLowStock(ctx context.Context) ([]domain.Stock, error) {
	return s.repo.ListLowStock(ctx)
}

// UpsertStock adds req.Quantity to the row named req.Name, creating the row
// when the name is new.
func (s *Service) UpsertStock(ctx context.Context, req domain.StockUpsertRequest) (domain.Stock, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.CategoryID = blankToNil(req.CategoryID)
	if err := s.check(req); err != nil {
		return domain.Stock{}, err
	}
	if req.Price != nil && req.Price.IsNegative() {
		return domain.Stock{}, invalid("price must not be negative")
	}

	row, err := s.repo.UpsertStockByName(ctx, req, xid.New())
	if err != nil {
		return domain.Stock{}, err
	}
	s.logAudit(ctx, "stock_upsert", "stock", row.ID, "name", row.Name, "delta", req.Quantity, "quantity", row.Quantity)
	return *row, nil
}

func (s *Service) UpdateStock(ctx context.Context, id string, patch domain.StockPatch) (domain.Stock, error) {
	existing, err := s.repo.GetStock(ctx, id)
	if err != nil {
		return domain.Stock{}, err
	}

	updated := *existing
	if patch.Name.Set {
		name := strings.TrimSpace(patch.Name.Value)
		if patch.Name.Null || name == "" {
			return domain.Stock{}, invalid("name is required")
		}
		updated.Name = name
	}
	if patch.Quantity.Set {
		if patch.Quantity.Null || patch.Quantity.Value < 0 {
			return domain.Stock{}, invalid("quantity must be 0 or more")
		}
		updated.Quantity = patch.Quantity.Value
	}
	if v, ok := patch.Price.Get(); ok && v.IsNegative() {
		return domain.Stock{}, invalid("price must not be negative")
	}
	if v, ok := patch.AlertThreshold.Get(); ok && v < 0 {
		return domain.Stock{}, invalid("alertThreshold must be 0 or more")
	}
	updated.Price = patch.Price.Ptr(updated.Price)
	updated.CategoryID = blankToNil(patch.CategoryID.Ptr(updated.CategoryID))
	updated.AlertThreshold = patch.AlertThreshold.Ptr(updated.AlertThreshold)

	saved, err := s.repo.UpdateStock(ctx, updated)
	if err != nil {
		return domain.Stock{}, err
	}
	s.logAudit(ctx, "stock_update", "stock", id, "name", saved.Name, "quantity", saved.Quantity)
	return *saved, nil
}

// AdjustStock adds delta to the row's quantity. A result below zero is
// clamped and reported as a warning.
func (s *Service) AdjustStock(ctx context.Context, id string, delta int) (domain.StockAdjustResult, error) {
	result, err := s.repo.AdjustStock(ctx, id, delta)
	if err != nil {
		return domain.StockAdjustResult{}, err
	}
	s.afterAdjust(ctx, "stock_adjust", delta, result)
	return *result, nil
}

func (s *Service) AdjustStockByName(ctx context.Context, name string, delta int) (domain.StockAdjustResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.StockAdjustResult{}, invalid("name is required")
	}
	result, err := s.repo.AdjustStockByName(ctx, name, delta)
	if err != nil {
		return domain.StockAdjustResult{}, err
	}
	s.afterAdjust(ctx, "stock_adjust", delta, result)
	return *result, nil
}

// DeductStockByName removes quantity units from the named row.
func (s *Service) DeductStockByName(ctx context.Context, name string, quantity int) (domain.StockAdjustResult, error) {
	if quantity <= 0 {
		return domain.StockAdjustResult{}, invalid("quantity must be greater than 0")
	}
	return s.AdjustStockByName(ctx, name, -quantity)
}

func (s *Service) afterAdjust(ctx context.Context, action string, delta int, result *domain.StockAdjustResult) {
	if result.Warning != nil {
		s.warnStock(ctx, action, []domain.StockWarning{*result.Warning})
	}
	s.logAudit(ctx, action, "stock", result.Stock.ID, "delta", delta, "quantity", result.Stock.Quantity)
}

func (s *Service) DeleteStock(ctx context.Context, id string) error {
	if err := s.repo.DeleteStock(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "stock_delete", "stock", id)
	return nil
}
