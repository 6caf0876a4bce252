package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	"live-auction/internal/config"
	"live-auction/internal/domain"
	"live-auction/pkg/logger"
)

func insertOne(t *testing.T, l *Ledger) {
	t.Helper()
	ctx := context.Background()

	outcome, err := l.WithAuctionTx(ctx, "rome-bed", func(ctx context.Context, tx domain.LedgerTx) (domain.PlaceBidOutcome, error) {
		bid, err := tx.InsertBid(ctx, "alice", 10)
		if err != nil {
			return domain.PlaceBidOutcome{}, err
		}
		return domain.Accepted(bid), nil
	})
	require.NoError(t, err)
	require.True(t, outcome.IsAccepted())

	summary, err := l.Summary(ctx, "rome-bed")
	require.NoError(t, err)
	require.Equal(t, int64(10), summary.HighestAmount())
}

func TestOpen_Bolt(t *testing.T) {
	cfg := &config.Config{
		Ledger: config.LedgerConfig{Driver: "bolt"},
		Bolt:   config.BoltConfig{Path: filepath.Join(t.TempDir(), "ledger.db")},
	}

	l, err := Open(context.Background(), cfg, nil, nil, logger.NewNop())
	require.NoError(t, err)
	defer l.Close()

	require.Equal(t, "serializable", l.IsolationLevel())
	insertOne(t, l)
}

func TestOpen_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := &config.Config{Ledger: config.LedgerConfig{Driver: "redis"}}
	l, err := Open(context.Background(), cfg, rdb, nil, logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, l.Close())

	insertOne(t, l)
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{Ledger: config.LedgerConfig{Driver: "redis"}},
		nil, nil, logger.NewNop())
	require.Error(t, err)

	_, err = Open(context.Background(), &config.Config{Ledger: config.LedgerConfig{Driver: "sqlite"}},
		nil, nil, logger.NewNop())
	require.Error(t, err)
}
