package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pideci/backend/internal/domain"
	"pideci/backend/internal/money"
	"pideci/backend/internal/store"
)

// LedgerQuery is the raw filter of a sales or expenses listing. Dates are
// either plain days, covering the whole business day, or RFC 3339 instants.
type LedgerQuery struct {
	SessionID string
	DateFrom  string
	DateTo    string
}

// ledgerFilter resolves a query against the active session and the business
// timezone.
func (s *Service) ledgerFilter(ctx context.Context, q LedgerQuery) (domain.LedgerFilter, error) {
	filter := domain.LedgerFilter{SessionID: strings.TrimSpace(q.SessionID)}
	if filter.SessionID == "" {
		active, err := s.repo.GetActiveSession(ctx)
		if errors.Is(err, store.ErrNotFound) {
			return domain.LedgerFilter{}, ErrNoActiveSession
		}
		if err != nil {
			return domain.LedgerFilter{}, err
		}
		filter.SessionID = active.ID
	}

	var err error
	if filter.From, err = s.parseBound(q.DateFrom, false); err != nil {
		return domain.LedgerFilter{}, invalid("dateFrom: %v", err)
	}
	if filter.To, err = s.parseBound(q.DateTo, true); err != nil {
		return domain.LedgerFilter{}, invalid("dateTo: %v", err)
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return domain.LedgerFilter{}, invalid("dateTo is before dateFrom")
	}
	return filter, nil
}

func (s *Service) parseBound(raw string, endOfDay bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if day, err := time.ParseInLocation(domain.DateLayout, raw, s.location); err == nil {
		if endOfDay {
			return day.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
		}
		return day, nil
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected YYYY-MM-DD or RFC 3339, got %q", raw)
	}
	return at, nil
}

func (s *Service) ListSales(ctx context.Context, q LedgerQuery) ([]domain.Sale, error) {
	filter, err := s.ledgerFilter(ctx, q)
	if err != nil {
		return nil, err
	}
	return s.repo.ListSales(ctx, filter)
}

func (s *Service) ListSaleItems(ctx context.Context, saleID string) ([]domain.SaleItem, error) {
	return s.repo.ListSaleItems(ctx, saleID)
}

// CreateSale records a direct POS sale. Prices come from the catalog and
// linked stock is deducted in the same unit of work.
func (s *Service) CreateSale(ctx context.Context, req domain.SaleCreateRequest) (domain.SaleReceipt, error) {
	if err := s.check(req); err != nil {
		return domain.SaleReceipt{}, err
	}
	session, err := s.writableSession(ctx)
	if err != nil {
		return domain.SaleReceipt{}, err
	}

	ids := make([]string, 0, len(req.Items))
	for _, line := range req.Items {
		ids = append(ids, line.ProductID)
	}
	products, err := s.repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		return domain.SaleReceipt{}, err
	}

	items := make([]domain.SaleItem, 0, len(req.Items))
	total := money.Zero
	for _, line := range req.Items {
		product, ok := products[line.ProductID]
		if !ok {
			return domain.SaleReceipt{}, fmt.Errorf("%w: product %s", store.ErrNotFound, line.ProductID)
		}
		lineTotal := product.Price.Mul(line.Quantity)
		total = total.Add(lineTotal)
		items = append(items, domain.SaleItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    line.Quantity,
			Price:       product.Price,
			Total:       lineTotal,
		})
	}

	receipt, err := s.repo.CreateSale(ctx, domain.Sale{
		SessionID: session.ID,
		Date:      s.now().UTC(),
		Total:     total,
	}, items)
	if err != nil {
		return domain.SaleReceipt{}, err
	}

	s.afterSale(ctx, "pos", receipt)
	s.logAudit(ctx, "sale_create", "sale", receipt.Sale.ID, "total", receipt.Sale.Total.String(), "lines", len(receipt.Items))
	return *receipt, nil
}

// DeleteSale removes a sale of today's active session. Deducted stock is
// not restored.
func (s *Service) DeleteSale(ctx context.Context, id string) error {
	session, err := s.writableSession(ctx)
	if err != nil {
		return err
	}
	sale, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return err
	}
	if sale.SessionID != session.ID {
		return fmt.Errorf("%w: sale belongs to another session", ErrPastSessionReadOnly)
	}
	if err := s.repo.DeleteSale(ctx, id); err != nil {
		return err
	}
	s.invalidateStats(ctx)
	s.logAudit(ctx, "sale_delete", "sale", id, "total", sale.Total.String())
	return nil
}

func (s *Service) afterSale(ctx context.Context, source string, receipt *domain.SaleReceipt) {
	if receipt.StockWarnings == nil {
		receipt.StockWarnings = []domain.StockWarning{}
	}
	s.metrics.RecordSale(source, len(receipt.StockWarnings))
	s.warnStock(ctx, source, receipt.StockWarnings)
	s.invalidateStats(ctx)
}
