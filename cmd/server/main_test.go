package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"pideci/backend/internal/cache"
	"pideci/backend/internal/config"
	"pideci/backend/internal/store/memory"
	sqlitestore "pideci/backend/internal/store/sqlite"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestValidateSecurityConfigRejectsShortSecret(t *testing.T) {
	require.Error(t, validateSecurityConfig(config.Config{AuthSecret: "short"}))
	require.Error(t, validateSecurityConfig(config.Config{}))
}

func TestValidateSecurityConfigAcceptsLongSecret(t *testing.T) {
	require.NoError(t, validateSecurityConfig(config.Config{AuthSecret: "0123456789abcdef0123456789abcdef"}))
}

func TestOpenRepositoryDefaultsToMemory(t *testing.T) {
	repo, err := openRepository(context.Background(), config.Config{}, quiet)
	require.NoError(t, err)
	defer repo.Close()

	require.IsType(t, &memory.Store{}, repo)
	require.Nil(t, healthCheck(repo))
}

func TestOpenRepositoryUsesSQLitePath(t *testing.T) {
	ctx := context.Background()
	repo, err := openRepository(ctx, config.Config{SQLitePath: "file:main_test?mode=memory&cache=shared"}, quiet)
	require.NoError(t, err)
	defer repo.Close()

	require.IsType(t, &sqlitestore.Store{}, repo)
	check := healthCheck(repo)
	require.NotNil(t, check)
	require.NoError(t, check(ctx))
}

func TestOpenCacheFallsBackToNoop(t *testing.T) {
	ctx := context.Background()

	c, closeFn := openCache(ctx, config.Config{}, quiet)
	require.IsType(t, cache.Noop{}, c)
	require.Nil(t, closeFn)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	c, closeFn = openCache(ctx, config.Config{RedisAddr: addr}, quiet)
	require.IsType(t, cache.Noop{}, c)
	require.Nil(t, closeFn)
}

func TestOpenCacheUsesRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	c, closeFn := openCache(context.Background(), config.Config{RedisAddr: mr.Addr()}, quiet)
	require.IsType(t, &cache.Redis{}, c)
	require.NotNil(t, closeFn)
	require.NoError(t, closeFn())
}
