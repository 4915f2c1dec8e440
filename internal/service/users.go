package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"pideci/backend/internal/domain"
	"pideci/backend/internal/rbac"
	"pideci/backend/internal/store"
)

// Authenticate checks a username and password pair. Accounts stored with a
// plain-text password (hand-inserted rows) are upgraded to bcrypt on their
// first successful login.
func (s *Service) Authenticate(ctx context.Context, username, password string) (domain.UserProfile, error) {
	user, err := s.repo.GetUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return domain.UserProfile{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.UserProfile{}, err
	}

	if isPasswordHash(user.Password) {
		if !verifyPassword(user.Password, password) {
			return domain.UserProfile{}, ErrInvalidCredentials
		}
	} else {
		if password == "" || subtle.ConstantTimeCompare([]byte(user.Password), []byte(password)) != 1 {
			return domain.UserProfile{}, ErrInvalidCredentials
		}
		if hashed, err := hashPassword(password); err == nil {
			if err := s.repo.UpdateUserPassword(ctx, user.ID, hashed); err != nil {
				s.logger.WarnContext(ctx, "password upgrade failed", "user_id", user.ID, "error", err)
			}
		}
	}

	profile, err := s.profileFor(ctx, *user)
	if err != nil {
		return domain.UserProfile{}, err
	}
	s.logAudit(WithActor(ctx, profile.Actor()), "login", "user", user.ID)
	return profile, nil
}

// Profile loads a user with its role's current permissions.
func (s *Service) Profile(ctx context.Context, userID string) (domain.UserProfile, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return domain.UserProfile{}, err
	}
	return s.profileFor(ctx, *user)
}

func (s *Service) profileFor(ctx context.Context, user domain.UserAccount) (domain.UserProfile, error) {
	role, err := s.repo.GetRole(ctx, user.RoleID)
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("role of user %s: %w", user.ID, err)
	}
	return toProfile(user, *role), nil
}

func toProfile(user domain.UserAccount, role domain.Role) domain.UserProfile {
	perms := role.Permissions
	if perms == nil {
		perms = rbac.NewSet()
	}
	return domain.UserProfile{
		ID:          user.ID,
		Username:    user.Username,
		RoleID:      role.ID,
		Role:        role.Name,
		Permissions: perms,
		CreatedAt:   user.CreatedAt,
	}
}

func (s *Service) ListUsers(ctx context.Context) ([]domain.UserProfile, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	roles, err := s.repo.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Role, len(roles))
	for _, r := range roles {
		byID[r.ID] = r
	}

	out := make([]domain.UserProfile, 0, len(users))
	for _, u := range users {
		role, ok := byID[u.RoleID]
		if !ok {
			role = domain.Role{ID: u.RoleID}
		}
		out = append(out, toProfile(u, role))
	}
	return out, nil
}

func (s *Service) CreateUser(ctx context.Context, req domain.UserCreateRequest) (domain.UserProfile, error) {
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	if err := s.check(req); err != nil {
		return domain.UserProfile{}, err
	}
	if strings.ContainsAny(req.Username, " \t\r\n") {
		return domain.UserProfile{}, invalid("username must not contain spaces")
	}
	role, err := s.repo.GetRole(ctx, req.RoleID)
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("role %s: %w", req.RoleID, err)
	}

	hashed, err := hashPassword(req.Password)
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("hash password: %w", err)
	}
	created, err := s.repo.CreateUser(ctx, domain.UserAccount{
		Username:  req.Username,
		Password:  hashed,
		RoleID:    role.ID,
		CreatedAt: s.now().UTC(),
	})
	if errors.Is(err, store.ErrConflict) {
		return domain.UserProfile{}, fmt.Errorf("%w: username %q is taken", store.ErrConflict, req.Username)
	}
	if err != nil {
		return domain.UserProfile{}, err
	}
	s.logAudit(ctx, "user_create", "user", created.ID, "username", created.Username, "role", role.Name)
	return toProfile(*created, *role), nil
}

func (s *Service) DeleteUser(ctx context.Context, id string) error {
	if actor, ok := ActorFromContext(ctx); ok && actor.UserID == id {
		return invalid("you cannot delete your own account")
	}
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "user_delete", "user", id)
	return nil
}

func (s *Service) ListRoles(ctx context.Context) ([]domain.Role, error) {
	return s.repo.ListRoles(ctx)
}

func (s *Service) Permissions() []rbac.Descriptor {
	return rbac.Catalog()
}

func (s *Service) CreateRole(ctx context.Context, req domain.RoleRequest) (domain.Role, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if err := s.check(req); err != nil {
		return domain.Role{}, err
	}
	perms, err := rbac.ParseSet(req.Permissions)
	if err != nil {
		return domain.Role{}, invalid("%v", err)
	}

	created, err := s.repo.CreateRole(ctx, domain.Role{
		Name:        req.Name,
		Description: req.Description,
		Permissions: perms,
		CreatedAt:   s.now().UTC(),
	})
	if errors.Is(err, store.ErrConflict) {
		return domain.Role{}, fmt.Errorf("%w: role %q already exists", store.ErrConflict, req.Name)
	}
	if err != nil {
		return domain.Role{}, err
	}
	s.logAudit(ctx, "role_create", "role", created.ID, "name", created.Name, "permissions", strings.Join(created.Permissions.Strings(), ","))
	return *created, nil
}

// UpdateRole edits a role. The admin role keeps its name and every
// permission so the system cannot lock itself out.
func (s *Service) UpdateRole(ctx context.Context, id string, patch domain.RolePatch) (domain.Role, error) {
	existing, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return domain.Role{}, err
	}
	builtinAdmin := strings.EqualFold(existing.Name, rbac.AdminRole)

	updated := *existing
	if patch.Name.Set {
		name := strings.TrimSpace(patch.Name.Value)
		if patch.Name.Null || name == "" {
			return domain.Role{}, invalid("name is required")
		}
		if builtinAdmin && !strings.EqualFold(name, rbac.AdminRole) {
			return domain.Role{}, fmt.Errorf("%w: the admin role cannot be renamed", ErrForbidden)
		}
		updated.Name = name
	}
	if patch.Description.Set {
		updated.Description = strings.TrimSpace(patch.Description.Value)
	}
	if patch.Permissions.Set {
		perms, err := rbac.ParseSet(patch.Permissions.Value)
		if err != nil {
			return domain.Role{}, invalid("%v", err)
		}
		if builtinAdmin && !rbac.HasAll(rbac.All(), perms) {
			return domain.Role{}, fmt.Errorf("%w: the admin role keeps every permission", ErrForbidden)
		}
		updated.Permissions = perms
	}

	saved, err := s.repo.UpdateRole(ctx, updated)
	if errors.Is(err, store.ErrConflict) {
		return domain.Role{}, fmt.Errorf("%w: role %q already exists", store.ErrConflict, updated.Name)
	}
	if err != nil {
		return domain.Role{}, err
	}
	s.logAudit(ctx, "role_update", "role", id, "name", saved.Name, "permissions", strings.Join(saved.Permissions.Strings(), ","))
	return *saved, nil
}

func (s *Service) DeleteRole(ctx context.Context, id string) error {
	existing, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if strings.EqualFold(existing.Name, rbac.AdminRole) {
		return fmt.Errorf("%w: the admin role cannot be deleted", ErrForbidden)
	}
	err = s.repo.DeleteRole(ctx, id)
	if errors.Is(err, store.ErrConflict) {
		return fmt.Errorf("%w: role is still assigned to users", store.ErrConflict)
	}
	if err != nil {
		return err
	}
	s.logAudit(ctx, "role_delete", "role", id, "name", existing.Name)
	return nil
}

// EnsureRole creates a role by name when it does not exist yet.
func (s *Service) EnsureRole(ctx context.Context, name, description string, perms rbac.Set) (domain.Role, bool, error) {
	existing, err := s.repo.GetRoleByName(ctx, name)
	if err == nil {
		return *existing, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.Role{}, false, err
	}
	created, err := s.CreateRole(ctx, domain.RoleRequest{
		Name:        name,
		Description: description,
		Permissions: perms.Strings(),
	})
	if err != nil {
		return domain.Role{}, false, err
	}
	return created, true, nil
}
