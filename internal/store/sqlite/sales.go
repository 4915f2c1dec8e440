package sqlite

import (
	"context"

	"gorm.io/gorm"

	"pideci/backend/internal/domain"
	"pideci/backend/internal/store"
	"pideci/backend/internal/xid"
)

func ledgerScope(filter domain.LedgerFilter) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		if filter.SessionID != "" {
			q = q.Where("session_id = ?", filter.SessionID)
		}
		if !filter.From.IsZero() {
			q = q.Where("date >= ?", filter.From.UTC())
		}
		if !filter.To.IsZero() {
			q = q.Where("date <= ?", filter.To.UTC())
		}
		return q
	}
}

func (s *Store) ListSales(ctx context.Context, filter domain.LedgerFilter) ([]domain.Sale, error) {
	var rows []saleRow
	if err := s.conn(ctx).Scopes(ledgerScope(filter)).Order("date DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Sale, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	var row saleRow
	if err := s.conn(ctx).Take(&row, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	out := row.toDomain()
	return &out, nil
}

func (s *Store) ListSaleItems(ctx context.Context, saleID string) ([]domain.SaleItem, error) {
	out := make([]domain.SaleItem, 0)
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Take(&saleRow{}, "id = ?", saleID).Error; err != nil {
			return err
		}
		var rows []saleItemRow
		if err := tx.Where("sale_id = ?", saleID).Order("id ASC").Find(&rows).Error; err != nil {
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

func (s *Store) ListSaleLines(ctx context.Context) ([]domain.SaleLine, error) {
	var out []domain.SaleLine
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var sales []saleRow
		if err := tx.Find(&sales).Error; err != nil {
			return err
		}
		dates := make(map[string]saleRow, len(sales))
		for _, sale := range sales {
			dates[sale.ID] = sale
		}
		var items []saleItemRow
		if err := tx.Find(&items).Error; err != nil {
			return err
		}
		out = make([]domain.SaleLine, 0, len(items))
		for _, item := range items {
			sale, ok := dates[item.SaleID]
			if !ok {
				continue
			}
			out = append(out, domain.SaleLine{SaleItem: item.toDomain(), SaleDate: sale.Date})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale, items []domain.SaleItem) (*domain.SaleReceipt, error) {
	if sale.ID == "" {
		sale.ID = xid.New()
	}
	frozen := make([]domain.SaleItem, len(items))
	for i, item := range items {
		if item.ID == "" {
			item.ID = xid.New()
		}
		item.SaleID = sale.ID
		frozen[i] = item
	}

	var receipt *domain.SaleReceipt
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var err error
		receipt, err = insertSale(tx, sale, frozen)
		return err
	})
	if err != nil {
		return nil, translate(err)
	}
	return receipt, nil
}

func insertSale(tx *gorm.DB, sale domain.Sale, items []domain.SaleItem) (*domain.SaleReceipt, error) {
	if err := tx.Take(&sessionRow{}, "id = ?", sale.SessionID).Error; err != nil {
		return nil, err
	}
	row := saleRow{ID: sale.ID, SessionID: sale.SessionID, Date: sale.Date.UTC(), Total: sale.Total}
	if err := tx.Create(&row).Error; err != nil {
		return nil, err
	}
	if len(items) > 0 {
		rows := make([]saleItemRow, 0, len(items))
		for _, item := range items {
			rows = append(rows, saleItemFromDomain(item))
		}
		if err := tx.Create(&rows).Error; err != nil {
			return nil, err
		}
	}
	warnings, err := deduct(tx, items)
	if err != nil {
		return nil, err
	}
	return &domain.SaleReceipt{Sale: sale, Items: items, StockWarnings: warnings}, nil
}

func (s *Store) DeleteSale(ctx context.Context, id string) error {
	return translate(s.transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("sale_id = ?", id).Delete(&saleItemRow{}).Error; err != nil {
			return err
		}
		return requireRows(tx.Delete(&saleRow{}, "id = ?", id))
	}))
}

func (s *Store) ListExpenses(ctx context.Context, filter domain.LedgerFilter) ([]domain.Expense, error) {
	var rows []expenseRow
	if err := s.conn(ctx).Scopes(ledgerScope(filter)).Order("date DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Expense, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) GetExpense(ctx context.Context, id string) (*domain.Expense, error) {
	var row expenseRow
	if err := s.conn(ctx).Take(&row, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	out := row.toDomain()
	return &out, nil
}

func (s *Store) CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
	if expense.ID == "" {
		expense.ID = xid.New()
	}
	row := expenseRow{
		ID:        expense.ID,
		SessionID: expense.SessionID,
		Date:      expense.Date.UTC(),
		Category:  expense.Category,
		Amount:    expense.Amount,
	}
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Take(&sessionRow{}, "id = ?", expense.SessionID).Error; err != nil {
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

func (s *Store) DeleteExpense(ctx context.Context, id string) error {
	return requireRows(s.conn(ctx).Delete(&expenseRow{}, "id = ?", id))
}

var _ store.Repository = (*Store)(nil)
