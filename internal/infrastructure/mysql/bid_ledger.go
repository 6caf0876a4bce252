package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"

	"live-auction/internal/domain"
	"live-auction/pkg/utils"
)

// InnoDB error numbers that mean "retry the whole transaction".
const (
	errDeadlock        = 1213
	errLockWaitTimeout = 1205
)

var _ domain.BidLedger = (*MySQLBidLedger)(nil)

// MySQLBidLedger stores bids in InnoDB. Each place-bid transaction runs at REPEATABLE READ and
// takes a row lock on the auction first, so writers on the same auction queue up behind each
// other and the bid reads that follow see the latest committed state.
type MySQLBidLedger struct {
	db  *sql.DB
	now func() time.Time
}

func NewMySQLBidLedger(db *sql.DB) *MySQLBidLedger {
	return &MySQLBidLedger{db: db, now: time.Now}
}

// WithClock overrides the clock used to stamp CreatedAt on insert.
func (r *MySQLBidLedger) WithClock(now func() time.Time) *MySQLBidLedger {
	r.now = now
	return r
}

func (r *MySQLBidLedger) IsolationLevel() string {
	return "repeatable read (auction row locked FOR UPDATE)"
}

func (r *MySQLBidLedger) WithAuctionTx(ctx context.Context, auctionID string, fn domain.TxFunc) (domain.PlaceBidOutcome, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return domain.PlaceBidOutcome{}, classify(auctionID, err)
	}

	outcome, err := r.run(ctx, tx, auctionID, fn)
	if err != nil {
		tx.Rollback()
		return domain.PlaceBidOutcome{}, classify(auctionID, err)
	}
	if !outcome.IsAccepted() {
		if err := tx.Rollback(); err != nil {
			return domain.PlaceBidOutcome{}, err
		}
		return outcome, nil
	}

	if err := tx.Commit(); err != nil {
		return domain.PlaceBidOutcome{}, classify(auctionID, err)
	}
	return outcome, nil
}

func (r *MySQLBidLedger) run(ctx context.Context, tx *sql.Tx, auctionID string, fn domain.TxFunc) (domain.PlaceBidOutcome, error) {
	var locked string
	err := tx.QueryRowContext(ctx, `SELECT id FROM auctions WHERE id = ? FOR UPDATE`, auctionID).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PlaceBidOutcome{}, fmt.Errorf("auction %s not synced: %w", auctionID, domain.ErrAuctionNotFound)
	}
	if err != nil {
		return domain.PlaceBidOutcome{}, fmt.Errorf("lock auction %s: %w", auctionID, err)
	}

	return fn(ctx, &ledgerTx{tx: tx, auctionID: auctionID, now: r.now})
}

// classify maps deadlocks and lock wait timeouts to ErrTransactionConflict.
func classify(auctionID string, err error) error {
	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) && (myErr.Number == errDeadlock || myErr.Number == errLockWaitTimeout) {
		return fmt.Errorf("auction %s: %v: %w", auctionID, myErr, domain.ErrTransactionConflict)
	}
	return err
}

func (r *MySQLBidLedger) Summary(ctx context.Context, auctionID string) (domain.BidSummary, error) {
	var summary domain.BidSummary

	highest, err := queryHighest(ctx, r.db, auctionID, false)
	if err != nil {
		return summary, err
	}
	summary.Highest = highest

	latest, err := queryLatestAt(ctx, r.db, auctionID, false)
	if err != nil {
		return summary, err
	}
	summary.LatestAt = latest
	return summary, nil
}

// RecentBids returns up to limit bids, newest first.
func (r *MySQLBidLedger) RecentBids(ctx context.Context, auctionID string, limit int) ([]*domain.Bid, error) {
	query := `
        SELECT id, auction_id, bidder_id, amount, created_at
        FROM bids WHERE auction_id = ?
        ORDER BY seq DESC LIMIT ?
    `

	rows, err := r.db.QueryContext(ctx, query, auctionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bids := []*domain.Bid{}
	for rows.Next() {
		var bid domain.Bid
		if err := rows.Scan(&bid.ID, &bid.AuctionID, &bid.BidderID, &bid.Amount, &bid.CreatedAt); err != nil {
			return nil, err
		}
		bid.CreatedAt = bid.CreatedAt.UTC()
		bids = append(bids, &bid)
	}

	return bids, rows.Err()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Reads inside a place-bid transaction are locking reads so they always see the latest
// committed rows rather than the transaction's snapshot.
const lockSuffix = " LOCK IN SHARE MODE"

func queryHighest(ctx context.Context, q queryer, auctionID string, locking bool) (*domain.Bid, error) {
	query := `
        SELECT id, auction_id, bidder_id, amount, created_at
        FROM bids WHERE auction_id = ?
        ORDER BY amount DESC, seq ASC LIMIT 1`
	if locking {
		query += lockSuffix
	}

	var bid domain.Bid
	err := q.QueryRowContext(ctx, query, auctionID).Scan(
		&bid.ID, &bid.AuctionID, &bid.BidderID, &bid.Amount, &bid.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	bid.CreatedAt = bid.CreatedAt.UTC()
	return &bid, nil
}

func queryLatestAt(ctx context.Context, q queryer, auctionID string, locking bool) (*time.Time, error) {
	query := `SELECT created_at FROM bids WHERE auction_id = ? ORDER BY seq DESC LIMIT 1`
	if locking {
		query += lockSuffix
	}

	var createdAt time.Time
	err := q.QueryRowContext(ctx, query, auctionID).Scan(&createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	createdAt = createdAt.UTC()
	return &createdAt, nil
}

type ledgerTx struct {
	tx        *sql.Tx
	auctionID string
	now       func() time.Time
}

func (t *ledgerTx) ReadHighest(ctx context.Context) (*domain.Bid, error) {
	return queryHighest(ctx, t.tx, t.auctionID, true)
}

func (t *ledgerTx) ReadLatestBidTime(ctx context.Context) (*time.Time, error) {
	return queryLatestAt(ctx, t.tx, t.auctionID, true)
}

func (t *ledgerTx) InsertBid(ctx context.Context, bidderID string, amount int64) (*domain.Bid, error) {
	bid := &domain.Bid{
		ID:        utils.GenerateID(),
		AuctionID: t.auctionID,
		BidderID:  bidderID,
		Amount:    amount,
		CreatedAt: t.now().UTC().Truncate(time.Microsecond),
	}

	query := `
        INSERT INTO bids (id, auction_id, bidder_id, amount, created_at)
        VALUES (?, ?, ?, ?, ?)
    `
	_, err := t.tx.ExecContext(ctx, query,
		bid.ID, bid.AuctionID, bid.BidderID, bid.Amount, bid.CreatedAt)
	if err != nil {
		return nil, err
	}
	return bid, nil
}
