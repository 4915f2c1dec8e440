package sqlite

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"pideci/backend/internal/store"
	"pideci/backend/internal/store/storetest"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), "file:"+strings.ReplaceAll(t.Name(), "/", "_")+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRepositoryContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Repository { return openTestStore(t) })
}

func TestOpenMigratesTwice(t *testing.T) {
	first := openTestStore(t)
	require.NoError(t, first.conn(context.Background()).AutoMigrate(&sessionRow{}, &stockRow{}))

	changed, err := first.DeactivateSessions(context.Background())
	require.NoError(t, err)
	require.Zero(t, changed)
}
