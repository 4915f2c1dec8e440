package postgres

import (
	"context"
	"database/sql"

	"pideci/backend/internal/domain"
	"pideci/backend/internal/store"
	"pideci/backend/internal/xid"
)

const sessionColumns = `id, to_char(date, 'YYYY-MM-DD'), name, is_active, created_at`

func scanSession(row rowScanner) (*domain.BusinessSession, error) {
	var session domain.BusinessSession
	if err := row.Scan(&session.ID, &session.Date, &session.Name, &session.IsActive, &session.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &session, nil
}

func (s *Store) ListSessions(ctx context.Context) ([]domain.BusinessSession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sessionColumns+`
		FROM business_sessions
		ORDER BY date DESC, created_at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]domain.BusinessSession, 0, 32)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	return sessions, rows.Err()
}

func (s *Store) GetSession(ctx context.Context, id string) (*domain.BusinessSession, error) {
	return scanSession(s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM business_sessions WHERE id = $1`, id))
}

func (s *Store) GetActiveSession(ctx context.Context) (*domain.BusinessSession, error) {
	return scanSession(s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM business_sessions WHERE is_active`))
}

func (s *Store) FindSessionByDate(ctx context.Context, date string) (*domain.BusinessSession, error) {
	return scanSession(s.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+`
		FROM business_sessions
		WHERE date = $1::date
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, date))
}

func (s *Store) CreateSession(ctx context.Context, session domain.BusinessSession) (*domain.BusinessSession, error) {
	if session.ID == "" {
		session.ID = xid.New()
	}
	var created *domain.BusinessSession
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if session.IsActive {
			if _, err := tx.ExecContext(ctx, `UPDATE business_sessions SET is_active = false WHERE is_active`); err != nil {
				return err
			}
		}
		var err error
		created, err = scanSession(tx.QueryRowContext(ctx, `
			INSERT INTO business_sessions (id, date, name, is_active, created_at)
			VALUES ($1, $2::date, $3, $4, $5)
			RETURNING `+sessionColumns,
			session.ID, session.Date, session.Name, session.IsActive, session.CreatedAt))
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Store) ActivateSession(ctx context.Context, id string) (*domain.BusinessSession, error) {
	var activated *domain.BusinessSession
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT true FROM business_sessions WHERE id = $1 FOR UPDATE`, id).Scan(&exists); err != nil {
			return notFound(err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE business_sessions SET is_active = false WHERE is_active AND id <> $1`, id); err != nil {
			return err
		}
		var err error
		activated, err = scanSession(tx.QueryRowContext(ctx, `
			UPDATE business_sessions SET is_active = true
			WHERE id = $1
			RETURNING `+sessionColumns, id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return activated, nil
}

func (s *Store) DeactivateSessions(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE business_sessions SET is_active = false WHERE is_active`)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	return int(affected), err
}

// DeleteSession relies on ON DELETE CASCADE for sales, sale items and expenses.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var active bool
		if err := tx.QueryRowContext(ctx, `SELECT is_active FROM business_sessions WHERE id = $1 FOR UPDATE`, id).Scan(&active); err != nil {
			return notFound(err)
		}
		if active {
			return store.ErrInvalidState
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM business_sessions WHERE id = $1`, id)
		return err
	})
}
