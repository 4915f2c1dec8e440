package service

import (
	"context"
	"fmt"
	"strings"

	"pideci/backend/internal/domain"
)

func (s *Service) ListExpenses(ctx context.Context, q LedgerQuery) ([]domain.Expense, error) {
	filter, err := s.ledgerFilter(ctx, q)
	if err != nil {
		return nil, err
	}
	return s.repo.ListExpenses(ctx, filter)
}

func (s *Service) CreateExpense(ctx context.Context, req domain.ExpenseCreateRequest) (domain.Expense, error) {
	req.Category = strings.TrimSpace(req.Category)
	if err := s.check(req); err != nil {
		return domain.Expense{}, err
	}
	if !req.Amount.IsPositive() {
		return domain.Expense{}, invalid("amount must be greater than 0")
	}
	session, err := s.writableSession(ctx)
	if err != nil {
		return domain.Expense{}, err
	}

	created, err := s.repo.CreateExpense(ctx, domain.Expense{
		SessionID: session.ID,
		Date:      s.now().UTC(),
		Category:  req.Category,
		Amount:    req.Amount,
	})
	if err != nil {
		return domain.Expense{}, err
	}
	s.logAudit(ctx, "expense_create", "expense", created.ID, "category", created.Category, "amount", created.Amount.String())
	return *created, nil
}

func (s *Service) DeleteExpense(ctx context.Context, id string) error {
	session, err := s.writableSession(ctx)
	if err != nil {
		return err
	}
	expense, err := s.repo.GetExpense(ctx, id)
	if err != nil {
		return err
	}
	if expense.SessionID != session.ID {
		return fmt.Errorf("%w: expense belongs to another session", ErrPastSessionReadOnly)
	}
	if err := s.repo.DeleteExpense(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "expense_delete", "expense", id, "amount", expense.Amount.String())
	return nil
}
