package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"pideci/backend/internal/store"
	"pideci/backend/internal/store/storetest"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("PIDECI_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("PIDECI_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	s, err := New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.EnsureSchema(ctx))
	_, err = s.db.ExecContext(ctx, `
		TRUNCATE users, roles, expenses, sale_items, sales, order_items, orders,
			restaurant_tables, products, stock, categories, business_sessions
	`)
	require.NoError(t, err)
	return s
}

func TestRepositoryContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Repository { return openTestStore(t) })
}

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.EnsureSchema(context.Background()))
}
