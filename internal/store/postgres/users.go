package postgres

import (
	"context"
	"encoding/json"
	"strings"

	"pideci/backend/internal/domain"
	"pideci/backend/internal/rbac"
	"pideci/backend/internal/store"
	"pideci/backend/internal/xid"
)

const roleColumns = `id, name, description, permissions, created_at`

func scanRole(row rowScanner) (*domain.Role, error) {
	var (
		role  domain.Role
		perms []byte
	)
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &perms, &role.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	role.Permissions = rbac.NewSet()
	if err := json.Unmarshal(perms, &role.Permissions); err != nil {
		return nil, err
	}
	return &role, nil
}

func (s *Store) ListRoles(ctx context.Context) ([]domain.Role, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles := make([]domain.Role, 0, 8)
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, *role)
	}
	return roles, rows.Err()
}

func (s *Store) GetRole(ctx context.Context, id string) (*domain.Role, error) {
	return scanRole(s.db.QueryRowContext(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
}

func (s *Store) GetRoleByName(ctx context.Context, name string) (*domain.Role, error) {
	return scanRole(s.db.QueryRowContext(ctx, `SELECT `+roleColumns+` FROM roles WHERE lower(name) = lower($1)`, name))
}

func (s *Store) CreateRole(ctx context.Context, role domain.Role) (*domain.Role, error) {
	if role.ID == "" {
		role.ID = xid.New()
	}
	perms, err := json.Marshal(role.Permissions)
	if err != nil {
		return nil, err
	}
	created, err := scanRole(s.db.QueryRowContext(ctx, `
		INSERT INTO roles (id, name, description, permissions, created_at)
		VALUES ($1, $2, $3, $4::jsonb, COALESCE($5, now()))
		RETURNING `+roleColumns,
		role.ID, role.Name, role.Description, string(perms), nullTime(role.CreatedAt)))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	return created, nil
}

func (s *Store) UpdateRole(ctx context.Context, role domain.Role) (*domain.Role, error) {
	perms, err := json.Marshal(role.Permissions)
	if err != nil {
		return nil, err
	}
	updated, err := scanRole(s.db.QueryRowContext(ctx, `
		UPDATE roles SET name = $2, description = $3, permissions = $4::jsonb
		WHERE id = $1
		RETURNING `+roleColumns,
		role.ID, role.Name, role.Description, string(perms)))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	return updated, nil
}

func (s *Store) DeleteRole(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return requireAffected(res)
}

const userColumns = `id, username, password, role_id, created_at`

func scanUser(row rowScanner) (*domain.UserAccount, error) {
	var u domain.UserAccount
	if err := row.Scan(&u.ID, &u.Username, &u.Password, &u.RoleID, &u.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY username ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *Store) GetUser(ctx context.Context, id string) (*domain.UserAccount, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	if user.ID == "" {
		user.ID = xid.New()
	}
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	created, err := scanUser(s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, username, password, role_id, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
		RETURNING `+userColumns,
		user.ID, user.Username, user.Password, user.RoleID, nullTime(user.CreatedAt)))
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return nil, store.ErrConflict
		case isForeignKeyViolation(err):
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return created, nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) UpdateUserPassword(ctx context.Context, id string, password string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password = $2 WHERE id = $1`, id, password)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

var _ store.Repository = (*Store)(nil)
