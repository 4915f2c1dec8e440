package seed

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"pideci/backend/internal/rbac"
	"pideci/backend/internal/service"
	"pideci/backend/internal/store/memory"
)

func TestRunSeedsOnceAndIsRepeatable(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.New(memory.New(), service.WithLogger(logger))

	opts := Options{AdminPassword: "letmein-please", DemoMenu: true}
	require.NoError(t, Run(ctx, svc, opts, logger))
	require.NoError(t, Run(ctx, svc, opts, logger))

	roles, err := svc.ListRoles(ctx)
	require.NoError(t, err)
	require.Len(t, roles, len(rbac.BuiltinRoles()))

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, rbac.AdminRole, users[0].Role)

	profile, err := svc.Authenticate(ctx, AdminUsername, "letmein-please")
	require.NoError(t, err)
	require.True(t, rbac.HasAll(rbac.All(), profile.Permissions))

	products, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, len(menu))

	categories, err := svc.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 3)
}

func TestRunWithoutMenu(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.New(memory.New(), service.WithLogger(logger))

	require.NoError(t, Run(ctx, svc, Options{}, logger))

	products, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	require.Empty(t, products)

	_, err = svc.Authenticate(ctx, AdminUsername, DefaultAdminPassword)
	require.NoError(t, err)
}
