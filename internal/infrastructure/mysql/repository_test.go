package mysql

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"live-auction/internal/domain"
)

func TestEnsureSchema(t *testing.T) {
	db, mock := newMockDB(t)

	for range schemaStatements {
		mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS`)).
			WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, EnsureSchema(context.Background(), db))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncCatalog(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMySQLAuctionRepository(db)
	endsAt := time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

	auctions := []domain.Auction{
		{ID: "rome-bed", Title: "Rome Bed", EndsAt: endsAt},
		{ID: "venice-bed", Title: "Venice Bed", EndsAt: endsAt},
	}
	for _, a := range auctions {
		mock.ExpectExec(regexp.QuoteMeta(`ON DUPLICATE KEY UPDATE`)).
			WithArgs(a.ID, a.Title, "", endsAt).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}

	require.NoError(t, repo.SyncCatalog(context.Background(), auctions))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveBidEvent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMySQLEventRepository(db)
	ts := time.Date(2026, 1, 15, 19, 0, 0, 0, time.UTC)
	endsAt := ts.Add(6 * time.Hour)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO auction_events`)).
		WithArgs("rome-bed", "bid_accepted", "alice", int64(100), ts,
			sql.NullTime{Time: endsAt, Valid: true}, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.SaveBidEvent(context.Background(), &domain.BidEvent{
		Type:            domain.BidAccepted,
		AuctionID:       "rome-bed",
		UserID:          "alice",
		Amount:          100,
		Timestamp:       ts,
		EffectiveEndsAt: &endsAt,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBidHistory(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMySQLEventRepository(db)
	ts := time.Date(2026, 1, 15, 19, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM auction_events`)).
		WithArgs("rome-bed", "bid_accepted").
		WillReturnRows(sqlmock.NewRows([]string{"auction_id", "event_type", "user_id", "amount", "event_timestamp"}).
			AddRow("rome-bed", "bid_accepted", "alice", int64(100), ts))

	events, err := repo.GetBidHistory(context.Background(), "rome-bed")
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, domain.BidAccepted, events[0].Type)
	require.Equal(t, int64(100), events[0].Amount)
}
