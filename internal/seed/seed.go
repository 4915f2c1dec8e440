// Package seed fills an empty installation with the built-in roles, a first
// admin account and, optionally, the restaurant's starting menu.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"pideci/backend/internal/domain"
	"pideci/backend/internal/money"
	"pideci/backend/internal/rbac"
	"pideci/backend/internal/service"
)

const (
	AdminUsername        = "admin"
	DefaultAdminPassword = "admin123"
)

type Options struct {
	AdminPassword string
	DemoMenu      bool
}

type menuItem struct {
	name     string
	price    string
	category string
}

var menu = []menuItem{
	{"Kıymalı Pide", "150", "Pide"},
	{"Kuşbaşılı Pide", "180", "Pide"},
	{"Kaşarlı Pide", "150", "Pide"},
	{"Kuşbaşı Kaşarlı Pide", "220", "Pide"},
	{"Peynirli Pide", "150", "Pide"},
	{"Kıymalı Kaşarlı Pide", "200", "Pide"},

	{"Cantık", "75", "Cantık"},
	{"Kıymalı Kaşarlı Cantık", "100", "Cantık"},
	{"Kuşbaşı Kaşarlı Cantık", "120", "Cantık"},
	{"Kaşarlı Cantık", "120", "Cantık"},

	{"Ayran", "10", "İçecek"},
	{"Soda", "40", "İçecek"},
}

// Run is safe to call on every start; each step only acts on empty data.
func Run(ctx context.Context, svc *service.Service, opts Options, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	ctx = service.WithActor(ctx, domain.Actor{Username: "seed", Role: "system"})

	adminRole, err := seedRoles(ctx, svc, logger)
	if err != nil {
		return err
	}
	if err := seedAdmin(ctx, svc, adminRole, opts.AdminPassword, logger); err != nil {
		return err
	}
	if opts.DemoMenu {
		if err := seedMenu(ctx, svc, logger); err != nil {
			return err
		}
	}
	return nil
}

func seedRoles(ctx context.Context, svc *service.Service, logger *slog.Logger) (domain.Role, error) {
	var admin domain.Role
	for _, builtin := range rbac.BuiltinRoles() {
		role, created, err := svc.EnsureRole(ctx, builtin.Name, builtin.Description, builtin.Permissions)
		if err != nil {
			return domain.Role{}, fmt.Errorf("seed role %s: %w", builtin.Name, err)
		}
		if created {
			logger.Info("seeded role", "role", role.Name)
		}
		if builtin.Name == rbac.AdminRole {
			admin = role
		}
	}
	return admin, nil
}

func seedAdmin(ctx context.Context, svc *service.Service, adminRole domain.Role, password string, logger *slog.Logger) error {
	users, err := svc.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(users) > 0 {
		return nil
	}

	password = strings.TrimSpace(password)
	if password == "" {
		password = DefaultAdminPassword
		logger.Warn("seeding admin with the default password; set SEED_ADMIN_PASSWORD and change it after first login", "username", AdminUsername)
	}
	if _, err := svc.CreateUser(ctx, domain.UserCreateRequest{
		Username: AdminUsername,
		Password: password,
		RoleID:   adminRole.ID,
	}); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	logger.Info("seeded admin user", "username", AdminUsername)
	return nil
}

func seedMenu(ctx context.Context, svc *service.Service, logger *slog.Logger) error {
	products, err := svc.ListProducts(ctx)
	if err != nil {
		return err
	}
	if len(products) > 0 {
		logger.Debug("products already present, menu seeding skipped", "count", len(products))
		return nil
	}

	categories, err := svc.ListCategories(ctx)
	if err != nil {
		return err
	}
	categoryIDs := make(map[string]string, len(categories))
	for _, c := range categories {
		categoryIDs[c.Name] = c.ID
	}

	for _, item := range menu {
		id, ok := categoryIDs[item.category]
		if !ok {
			created, err := svc.CreateCategory(ctx, domain.CategoryRequest{Name: item.category})
			if err != nil {
				return fmt.Errorf("seed category %s: %w", item.category, err)
			}
			id = created.ID
			categoryIDs[item.category] = id
		}
		if _, err := svc.CreateProduct(ctx, domain.ProductCreateRequest{
			Name:       item.name,
			Price:      money.MustParse(item.price),
			CategoryID: &id,
		}); err != nil {
			return fmt.Errorf("seed product %s: %w", item.name, err)
		}
	}
	logger.Info("seeded menu", "products", len(menu))
	return nil
}
