package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"pideci/backend/internal/domain"
	"pideci/backend/internal/store"
	"pideci/backend/internal/xid"
)

// ledgerWhere renders the shared session and time-window predicate.
func ledgerWhere(filter domain.LedgerFilter) (string, []any) {
	clauses := make([]string, 0, 3)
	args := make([]any, 0, 3)
	if filter.SessionID != "" {
		args = append(args, filter.SessionID)
		clauses = append(clauses, fmt.Sprintf("session_id = $%d", len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		clauses = append(clauses, fmt.Sprintf("date >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		clauses = append(clauses, fmt.Sprintf("date <= $%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

const saleColumns = `id, session_id, date, total`

func scanSale(row rowScanner) (*domain.Sale, error) {
	var sale domain.Sale
	if err := row.Scan(&sale.ID, &sale.SessionID, &sale.Date, &sale.Total); err != nil {
		return nil, notFound(err)
	}
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context, filter domain.LedgerFilter) ([]domain.Sale, error) {
	where, args := ledgerWhere(filter)
	rows, err := s.db.QueryContext(ctx, `SELECT `+saleColumns+` FROM sales `+where+` ORDER BY date DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 32)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *sale)
	}
	return sales, rows.Err()
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	return scanSale(s.db.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id))
}

func (s *Store) ListSaleItems(ctx context.Context, saleID string) ([]domain.SaleItem, error) {
	if _, err := s.GetSale(ctx, saleID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sale_id, product_id, product_name, quantity, price, total
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY id COLLATE "C" ASC
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.SaleItem, 0, 8)
	for rows.Next() {
		var item domain.SaleItem
		if err := rows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.ProductName, &item.Quantity, &item.Price, &item.Total); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) ListSaleLines(ctx context.Context) ([]domain.SaleLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT si.id, si.sale_id, si.product_id, si.product_name, si.quantity, si.price, si.total, s.date
		FROM sale_items si
		JOIN sales s ON s.id = si.sale_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := make([]domain.SaleLine, 0, 128)
	for rows.Next() {
		var line domain.SaleLine
		if err := rows.Scan(&line.ID, &line.SaleID, &line.ProductID, &line.ProductName, &line.Quantity, &line.Price, &line.Total, &line.SaleDate); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
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
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		receipt, err = insertSale(ctx, tx, sale, frozen)
		return err
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// insertSale writes the sale with its lines and applies the stock effect.
// The session row is share-locked so a concurrent session delete waits.
func insertSale(ctx context.Context, tx *sql.Tx, sale domain.Sale, items []domain.SaleItem) (*domain.SaleReceipt, error) {
	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT true FROM business_sessions WHERE id = $1 FOR SHARE`, sale.SessionID).Scan(&exists); err != nil {
		return nil, notFound(err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sales (id, session_id, date, total)
		VALUES ($1, $2, $3, $4)
	`, sale.ID, sale.SessionID, sale.Date, sale.Total); err != nil {
		return nil, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sale_items (id, sale_id, product_id, product_name, quantity, price, total)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	for _, item := range items {
		if _, err := stmt.ExecContext(ctx, item.ID, item.SaleID, item.ProductID, item.ProductName, item.Quantity, item.Price, item.Total); err != nil {
			return nil, err
		}
	}

	warnings, err := deduct(ctx, tx, items)
	if err != nil {
		return nil, err
	}
	return &domain.SaleReceipt{Sale: sale, Items: items, StockWarnings: warnings}, nil
}

// DeleteSale never touches stock.
func (s *Store) DeleteSale(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

const expenseColumns = `id, session_id, date, category, amount`

func scanExpense(row rowScanner) (*domain.Expense, error) {
	var e domain.Expense
	if err := row.Scan(&e.ID, &e.SessionID, &e.Date, &e.Category, &e.Amount); err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

func (s *Store) ListExpenses(ctx context.Context, filter domain.LedgerFilter) ([]domain.Expense, error) {
	where, args := ledgerWhere(filter)
	rows, err := s.db.QueryContext(ctx, `SELECT `+expenseColumns+` FROM expenses `+where+` ORDER BY date DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := make([]domain.Expense, 0, 16)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, *e)
	}
	return expenses, rows.Err()
}

func (s *Store) GetExpense(ctx context.Context, id string) (*domain.Expense, error) {
	return scanExpense(s.db.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = $1`, id))
}

func (s *Store) CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
	if expense.ID == "" {
		expense.ID = xid.New()
	}
	created, err := scanExpense(s.db.QueryRowContext(ctx, `
		INSERT INTO expenses (id, session_id, date, category, amount)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+expenseColumns,
		expense.ID, expense.SessionID, expense.Date, expense.Category, expense.Amount))
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return created, nil
}

func (s *Store) DeleteExpense(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}
