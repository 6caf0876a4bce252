package utils

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"live-auction/internal/config"
	"live-auction/pkg/logger"
)

func TestInitializeRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := &config.Config{Redis: config.RedisConfig{Address: mr.Addr()}}
	rdb, err := InitializeRedis(context.Background(), cfg, logger.NewNop())
	require.NoError(t, err)
	defer rdb.Close()

	require.NoError(t, rdb.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	require.Equal(t, "v", got)
}

func TestInitializeRedis_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := &config.Config{Redis: config.RedisConfig{Address: addr}}
	_, err := InitializeRedis(context.Background(), cfg, logger.NewNop())
	require.Error(t, err)
}
