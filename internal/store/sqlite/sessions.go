package sqlite

import (
	"context"

	"gorm.io/gorm"

	"pideci/backend/internal/domain"
	"pideci/backend/internal/store"
	"pideci/backend/internal/xid"
)

func (s *Store) ListSessions(ctx context.Context) ([]domain.BusinessSession, error) {
	var rows []sessionRow
	if err := s.conn(ctx).Order("date DESC, created_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.BusinessSession, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*domain.BusinessSession, error) {
	var row sessionRow
	if err := s.conn(ctx).Take(&row, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	out := row.toDomain()
	return &out, nil
}

func (s *Store) GetActiveSession(ctx context.Context) (*domain.BusinessSession, error) {
	var row sessionRow
	if err := s.conn(ctx).Where("is_active = ?", true).Take(&row).Error; err != nil {
		return nil, translate(err)
	}
	out := row.toDomain()
	return &out, nil
}

func (s *Store) FindSessionByDate(ctx context.Context, date string) (*domain.BusinessSession, error) {
	var row sessionRow
	err := s.conn(ctx).Where("date = ?", date).Order("created_at DESC, id DESC").Take(&row).Error
	if err != nil {
		return nil, translate(err)
	}
	out := row.toDomain()
	return &out, nil
}

func deactivateAll(tx *gorm.DB) (int, error) {
	res := tx.Model(&sessionRow{}).Where("is_active = ?", true).Update("is_active", false)
	return int(res.RowsAffected), res.Error
}

func (s *Store) CreateSession(ctx context.Context, session domain.BusinessSession) (*domain.BusinessSession, error) {
	if session.ID == "" {
		session.ID = xid.New()
	}
	row := sessionRow{
		ID:        session.ID,
		Date:      session.Date,
		Name:      session.Name,
		IsActive:  session.IsActive,
		CreatedAt: utc(session.CreatedAt),
	}
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		if row.IsActive {
			if _, err := deactivateAll(tx); err != nil {
				return err
			}
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	out := row.toDomain()
	return &out, nil
}

func (s *Store) ActivateSession(ctx context.Context, id string) (*domain.BusinessSession, error) {
	var row sessionRow
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Take(&row, "id = ?", id).Error; err != nil {
			return err
		}
		if _, err := deactivateAll(tx); err != nil {
			return err
		}
		row.IsActive = true
		return tx.Model(&row).Update("is_active", true).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	out := row.toDomain()
	return &out, nil
}

func (s *Store) DeactivateSessions(ctx context.Context) (int, error) {
	return deactivateAll(s.conn(ctx))
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	return translate(s.transaction(ctx, func(tx *gorm.DB) error {
		var row sessionRow
		if err := tx.Take(&row, "id = ?", id).Error; err != nil {
			return err
		}
		if row.IsActive {
			return store.ErrInvalidState
		}
		saleIDs := tx.Model(&saleRow{}).Select("id").Where("session_id = ?", id)
		if err := tx.Where("sale_id IN (?)", saleIDs).Delete(&saleItemRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("session_id = ?", id).Delete(&saleRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("session_id = ?", id).Delete(&expenseRow{}).Error; err != nil {
			return err
		}
		return tx.Delete(&sessionRow{}, "id = ?", id).Error
	}))
}
