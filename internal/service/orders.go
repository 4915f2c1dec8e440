package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"pideci/backend/internal/domain"
	"pideci/backend/internal/store"
)

func (s *Service) ListOrders(ctx context.Context, tableID string) ([]domain.Order, error) {
	return s.repo.ListOrders(ctx, tableID)
}

func (s *Service) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return *order, nil
}

func (s *Service) ListOrderItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	return s.repo.ListOrderItems(ctx, orderID)
}

// GetActiveOrderForTable returns the order occupying the table, or nil when
// the table is free.
func (s *Service) GetActiveOrderForTable(ctx context.Context, tableID string) (*domain.Order, error) {
	if _, err := s.repo.GetTable(ctx, tableID); err != nil {
		return nil, err
	}
	order, err := s.repo.GetOccupyingOrder(ctx, tableID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return order, err
}

func (s *Service) CreateOrder(ctx context.Context, req domain.OrderCreateRequest) (domain.Order, error) {
	if err := s.check(req); err != nil {
		return domain.Order{}, err
	}
	now := s.now().UTC()
	created, err := s.repo.CreateOrder(ctx, domain.Order{
		TableID:   req.TableID,
		Status:    domain.OrderActive,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if errors.Is(err, store.ErrConflict) {
		return domain.Order{}, fmt.Errorf("%w: table already has an open order", store.ErrConflict)
	}
	if err != nil {
		return domain.Order{}, err
	}
	s.logAudit(ctx, "order_create", "order", created.ID, "table_id", created.TableID)
	return *created, nil
}

// UpdateOrder applies a status patch. Only active -> completed is a real
// transition; asking for the current status is a no-op.
func (s *Service) UpdateOrder(ctx context.Context, id string, patch domain.OrderPatch) (domain.Order, error) {
	status, ok := patch.Status.Get()
	if !ok {
		return s.GetOrder(ctx, id)
	}
	switch status {
	case domain.OrderCompleted:
		existing, err := s.repo.GetOrder(ctx, id)
		if err != nil {
			return domain.Order{}, err
		}
		if existing.Status == domain.OrderCompleted {
			return *existing, nil
		}
		return s.CompleteOrder(ctx, id)
	case domain.OrderActive:
		existing, err := s.repo.GetOrder(ctx, id)
		if err != nil {
			return domain.Order{}, err
		}
		if existing.Status != domain.OrderActive {
			return domain.Order{}, fmt.Errorf("%w: completed orders cannot be reopened", store.ErrInvalidState)
		}
		return *existing, nil
	default:
		return domain.Order{}, invalid("unknown order status %q", status)
	}
}

func (s *Service) CompleteOrder(ctx context.Context, id string) (domain.Order, error) {
	order, err := s.repo.SetOrderStatus(ctx, id, domain.OrderActive, domain.OrderCompleted, s.now().UTC())
	if errors.Is(err, store.ErrInvalidState) {
		return domain.Order{}, fmt.Errorf("%w: only active orders can be completed", store.ErrInvalidState)
	}
	if err != nil {
		return domain.Order{}, err
	}
	s.logAudit(ctx, "order_complete", "order", id, "total", order.Total.String())
	return *order, nil
}

// CancelOrder drops the order and its items without recording a sale.
func (s *Service) CancelOrder(ctx context.Context, id string) error {
	if err := s.repo.DeleteOrder(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "order_cancel", "order", id)
	return nil
}

// AddOrderItem prices the line from the catalog; clients never send prices.
// Adding a product twice yields two lines.
func (s *Service) AddOrderItem(ctx context.Context, orderID string, req domain.OrderItemCreateRequest) (domain.OrderItem, error) {
	if err := s.check(req); err != nil {
		return domain.OrderItem{}, err
	}
	if _, err := s.repo.GetOrder(ctx, orderID); err != nil {
		return domain.OrderItem{}, err
	}
	product, err := s.repo.GetProduct(ctx, req.ProductID)
	if err != nil {
		return domain.OrderItem{}, fmt.Errorf("product %s: %w", req.ProductID, err)
	}

	item, err := s.repo.AddOrderItem(ctx, domain.OrderItem{
		OrderID:     orderID,
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    req.Quantity,
		Price:       product.Price,
	}, s.now().UTC())
	if err != nil {
		return domain.OrderItem{}, err
	}
	s.logAudit(ctx, "order_item_add", "order", orderID, "product_id", product.ID, "qty", req.Quantity)
	return *item, nil
}

func (s *Service) UpdateOrderItem(ctx context.Context, itemID string, patch domain.OrderItemPatch) (domain.OrderItem, error) {
	existing, err := s.repo.GetOrderItem(ctx, itemID)
	if err != nil {
		return domain.OrderItem{}, err
	}

	updated := *existing
	if patch.Quantity.Set {
		if patch.Quantity.Null || patch.Quantity.Value <= 0 {
			return domain.OrderItem{}, invalid("quantity must be greater than 0")
		}
		updated.Quantity = patch.Quantity.Value
	}
	if patch.Price.Set {
		if patch.Price.Null || patch.Price.Value.IsNegative() {
			return domain.OrderItem{}, invalid("price must be zero or more")
		}
		updated.Price = patch.Price.Value
	}

	saved, err := s.repo.UpdateOrderItem(ctx, updated, s.now().UTC())
	if err != nil {
		return domain.OrderItem{}, err
	}
	s.logAudit(ctx, "order_item_update", "order", saved.OrderID, "item_id", itemID, "qty", saved.Quantity, "price", saved.Price.String())
	return *saved, nil
}

func (s *Service) RemoveOrderItem(ctx context.Context, itemID string) error {
	existing, err := s.repo.GetOrderItem(ctx, itemID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteOrderItem(ctx, itemID, s.now().UTC()); err != nil {
		return err
	}
	s.logAudit(ctx, "order_item_remove", "order", existing.OrderID, "item_id", itemID)
	return nil
}

// CloseBill turns a completed order into a sale under today's session,
// deducts linked stock and removes the order.
func (s *Service) CloseBill(ctx context.Context, orderID string) (domain.CloseBillResult, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return domain.CloseBillResult{}, err
	}
	if order.Status != domain.OrderCompleted {
		return domain.CloseBillResult{}, fmt.Errorf("%w: only completed orders can be closed", store.ErrInvalidState)
	}
	session, err := s.writableSession(ctx)
	if err != nil {
		return domain.CloseBillResult{}, err
	}

	receipt, err := s.repo.CloseOrder(ctx, orderID, domain.Sale{
		SessionID: session.ID,
		Date:      s.now().UTC(),
	})
	if errors.Is(err, store.ErrInvalidState) {
		return domain.CloseBillResult{}, fmt.Errorf("%w: only completed orders can be closed", store.ErrInvalidState)
	}
	if err != nil {
		return domain.CloseBillResult{}, err
	}

	s.afterSale(ctx, "order", receipt)
	s.logAudit(ctx, "close_bill", "order", orderID, "sale_id", receipt.Sale.ID, "total", receipt.Sale.Total.String())
	return domain.CloseBillResult{
		Success:       true,
		Sale:          receipt.Sale,
		Items:         receipt.Items,
		StockWarnings: receipt.StockWarnings,
	}, nil
}

// KitchenOrders lists active orders, oldest first, with their table and
// items.
func (s *Service) KitchenOrders(ctx context.Context) ([]domain.KitchenOrder, error) {
	orders, err := s.repo.ListOrdersByStatus(ctx, domain.OrderActive)
	if err != nil {
		return nil, err
	}

	out := make([]domain.KitchenOrder, len(orders))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, order := range orders {
		g.Go(func() error {
			items, err := s.repo.ListOrderItems(gctx, order.ID)
			if errors.Is(err, store.ErrNotFound) {
				// closed or cancelled between the two reads
				items = []domain.OrderItem{}
			} else if err != nil {
				return err
			}
			entry := domain.KitchenOrder{Order: order, Items: items}
			if table, err := s.repo.GetTable(gctx, order.TableID); err == nil {
				entry.Table = table
			} else if !errors.Is(err, store.ErrNotFound) {
				return err
			}
			out[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
