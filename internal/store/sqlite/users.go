package sqlite

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"pideci/backend/internal/domain"
	"pideci/backend/internal/store"
	"pideci/backend/internal/xid"
)

func (s *Store) ListRoles(ctx context.Context) ([]domain.Role, error) {
	var rows []roleRow
	if err := s.conn(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Role, 0, len(rows))
	for _, r := range rows {
		role, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, nil
}

func (s *Store) getRole(q *gorm.DB, where string, arg string) (*domain.Role, error) {
	var row roleRow
	if err := q.Take(&row, where, arg).Error; err != nil {
		return nil, translate(err)
	}
	role, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (s *Store) GetRole(ctx context.Context, id string) (*domain.Role, error) {
	return s.getRole(s.conn(ctx), "id = ?", id)
}

func (s *Store) GetRoleByName(ctx context.Context, name string) (*domain.Role, error) {
	return s.getRole(s.conn(ctx), "lower(name) = lower(?)", name)
}

func roleNameTaken(tx *gorm.DB, name, exceptID string) (bool, error) {
	return exists(tx, &roleRow{}, "lower(name) = lower(?) AND id <> ?", name, exceptID)
}

func (s *Store) CreateRole(ctx context.Context, role domain.Role) (*domain.Role, error) {
	if role.ID == "" {
		role.ID = xid.New()
	}
	row, err := roleFromDomain(role)
	if err != nil {
		return nil, err
	}
	err = s.transaction(ctx, func(tx *gorm.DB) error {
		taken, err := roleNameTaken(tx, row.Name, "")
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
	out, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) UpdateRole(ctx context.Context, role domain.Role) (*domain.Role, error) {
	row, err := roleFromDomain(role)
	if err != nil {
		return nil, err
	}
	err = s.transaction(ctx, func(tx *gorm.DB) error {
		var existing roleRow
		if err := tx.Take(&existing, "id = ?", role.ID).Error; err != nil {
			return err
		}
		taken, err := roleNameTaken(tx, row.Name, row.ID)
		if err != nil {
			return err
		}
		if taken {
			return store.ErrConflict
		}
		row.CreatedAt = existing.CreatedAt
		return tx.Model(&roleRow{ID: row.ID}).Updates(map[string]any{
			"name":        row.Name,
			"description": row.Description,
			"permissions": row.Permissions,
		}).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	out, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) DeleteRole(ctx context.Context, id string) error {
	return translate(s.transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Take(&roleRow{}, "id = ?", id).Error; err != nil {
			return err
		}
		held, err := exists(tx, &userRow{}, "role_id = ?", id)
		if err != nil {
			return err
		}
		if held {
			return store.ErrConflict
		}
		return tx.Delete(&roleRow{}, "id = ?", id).Error
	}))
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	var rows []userRow
	if err := s.conn(ctx).Order("username ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.UserAccount, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*domain.UserAccount, error) {
	var row userRow
	if err := s.conn(ctx).Take(&row, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	out := row.toDomain()
	return &out, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	var row userRow
	username = strings.ToLower(strings.TrimSpace(username))
	if err := s.conn(ctx).Take(&row, "username = ?", username).Error; err != nil {
		return nil, translate(err)
	}
	out := row.toDomain()
	return &out, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	if user.ID == "" {
		user.ID = xid.New()
	}
	row := userRow{
		ID:        user.ID,
		Username:  strings.ToLower(strings.TrimSpace(user.Username)),
		Password:  user.Password,
		RoleID:    user.RoleID,
		CreatedAt: utc(user.CreatedAt),
	}
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		taken, err := exists(tx, &userRow{}, "username = ?", row.Username)
		if err != nil {
			return err
		}
		if taken {
			return store.ErrConflict
		}
		if err := tx.Take(&roleRow{}, "id = ?", row.RoleID).Error; err != nil {
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

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	return requireRows(s.conn(ctx).Delete(&userRow{}, "id = ?", id))
}

func (s *Store) UpdateUserPassword(ctx context.Context, id string, password string) error {
	return requireRows(s.conn(ctx).Model(&userRow{}).Where("id = ?", id).Update("password", password))
}
