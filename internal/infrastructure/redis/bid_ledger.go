package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"live-auction/internal/domain"
	"live-auction/pkg/utils"
)

var _ domain.BidLedger = (*RedisBidLedger)(nil)

// RedisBidLedger keeps one list of bids per auction (newest first) and a copy of the highest
// bid. Place-bid transactions WATCH both keys, so a concurrent commit makes EXEC fail.
type RedisBidLedger struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisBidLedger(client *redis.Client) *RedisBidLedger {
	return &RedisBidLedger{client: client, now: time.Now}
}

// WithClock overrides the clock used to stamp CreatedAt on insert.
func (r *RedisBidLedger) WithClock(now func() time.Time) *RedisBidLedger {
	r.now = now
	return r
}

func (r *RedisBidLedger) IsolationLevel() string {
	return "optimistic (WATCH/MULTI)"
}

func bidsKey(auctionID string) string {
	return fmt.Sprintf("auction:%s:bids", auctionID)
}

func highestKey(auctionID string) string {
	return fmt.Sprintf("auction:%s:highest", auctionID)
}

func (r *RedisBidLedger) WithAuctionTx(ctx context.Context, auctionID string, fn domain.TxFunc) (domain.PlaceBidOutcome, error) {
	var outcome domain.PlaceBidOutcome

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		ltx := &ledgerTx{tx: tx, auctionID: auctionID, now: r.now}

		out, err := fn(ctx, ltx)
		if err != nil {
			return err
		}
		outcome = out
		if !out.IsAccepted() || ltx.pending == nil {
			return nil
		}

		data, err := json.Marshal(ltx.pending)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.LPush(ctx, bidsKey(auctionID), data)
			if ltx.raisesHighest {
				pipe.Set(ctx, highestKey(auctionID), data, 0)
			}
			return nil
		})
		return err
	}, bidsKey(auctionID), highestKey(auctionID))

	switch {
	case errors.Is(err, redis.TxFailedErr):
		return domain.PlaceBidOutcome{}, fmt.Errorf("auction %s: %w", auctionID, domain.ErrTransactionConflict)
	case err != nil:
		return domain.PlaceBidOutcome{}, err
	}
	return outcome, nil
}

func (r *RedisBidLedger) Summary(ctx context.Context, auctionID string) (domain.BidSummary, error) {
	var summary domain.BidSummary

	highest, err := getBid(ctx, r.client, highestKey(auctionID))
	if err != nil {
		return summary, err
	}
	summary.Highest = highest

	latest, err := latestBid(ctx, r.client, auctionID)
	if err != nil {
		return summary, err
	}
	if latest != nil {
		summary.LatestAt = &latest.CreatedAt
	}
	return summary, nil
}

// RecentBids returns up to limit bids, newest first.
func (r *RedisBidLedger) RecentBids(ctx context.Context, auctionID string, limit int) ([]*domain.Bid, error) {
	bids := []*domain.Bid{}
	if limit <= 0 {
		return bids, nil
	}

	raw, err := r.client.LRange(ctx, bidsKey(auctionID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	for _, item := range raw {
		bid, err := decodeBid(item)
		if err != nil {
			return nil, err
		}
		bids = append(bids, bid)
	}
	return bids, nil
}

type ledgerTx struct {
	tx            *redis.Tx
	auctionID     string
	now           func() time.Time
	pending       *domain.Bid
	raisesHighest bool
}

func (t *ledgerTx) ReadHighest(ctx context.Context) (*domain.Bid, error) {
	return getBid(ctx, t.tx, highestKey(t.auctionID))
}

func (t *ledgerTx) ReadLatestBidTime(ctx context.Context) (*time.Time, error) {
	latest, err := latestBid(ctx, t.tx, t.auctionID)
	if err != nil || latest == nil {
		return nil, err
	}
	return &latest.CreatedAt, nil
}

// InsertBid queues the bid for the MULTI block. Nothing is written until commit.
func (t *ledgerTx) InsertBid(ctx context.Context, bidderID string, amount int64) (*domain.Bid, error) {
	highest, err := t.ReadHighest(ctx)
	if err != nil {
		return nil, err
	}

	t.pending = &domain.Bid{
		ID:        utils.GenerateID(),
		AuctionID: t.auctionID,
		BidderID:  bidderID,
		Amount:    amount,
		CreatedAt: t.now().UTC(),
	}
	t.raisesHighest = highest == nil || amount > highest.Amount
	return t.pending, nil
}

func getBid(ctx context.Context, c redis.Cmdable, key string) (*domain.Bid, error) {
	raw, err := c.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeBid(raw)
}

func latestBid(ctx context.Context, c redis.Cmdable, auctionID string) (*domain.Bid, error) {
	raw, err := c.LIndex(ctx, bidsKey(auctionID), 0).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeBid(raw)
}

func decodeBid(raw string) (*domain.Bid, error) {
	var bid domain.Bid
	if err := json.Unmarshal([]byte(raw), &bid); err != nil {
		return nil, fmt.Errorf("decode bid: %w", err)
	}
	return &bid, nil
}
