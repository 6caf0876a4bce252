// Package boltdb provides an embedded BidLedger on top of BoltDB.
//
// Bolt allows a single read-write transaction at a time, so every place-bid transaction is
// serialized against all others. Each auction gets its own bucket holding an append-only
// "bids" sub-bucket keyed by a big-endian sequence number and a "highest" key.
package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "github.com/boltdb/bolt"

	"live-auction/internal/domain"
	"live-auction/pkg/utils"
)

var (
	rootBucket = []byte("auctions")
	bidsBucket = []byte("bids")
	highestKey = []byte("highest")

	errRejected = errors.New("bid rejected")
)

var _ domain.BidLedger = (*BidLedger)(nil)

type BidLedger struct {
	db  *bolt.DB
	now func() time.Time
}

type Option func(*BidLedger)

// WithClock overrides the clock used to stamp CreatedAt on insert.
func WithClock(now func() time.Time) Option {
	return func(l *BidLedger) { l.now = now }
}

// Open opens (or creates) the database file and ensures the root bucket exists.
func Open(path string, opts ...Option) (*BidLedger, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt ledger %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(rootBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	l := &BidLedger{db: db, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Close releases the database file lock.
func (l *BidLedger) Close() error {
	return l.db.Close()
}

func (l *BidLedger) IsolationLevel() string {
	return "serializable"
}

func (l *BidLedger) WithAuctionTx(ctx context.Context, auctionID string, fn domain.TxFunc) (domain.PlaceBidOutcome, error) {
	if err := ctx.Err(); err != nil {
		return domain.PlaceBidOutcome{}, err
	}

	var outcome domain.PlaceBidOutcome
	err := l.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.Bucket(rootBucket).CreateBucketIfNotExists([]byte(auctionID))
		if err != nil {
			return err
		}
		bids, err := b.CreateBucketIfNotExists(bidsBucket)
		if err != nil {
			return err
		}

		out, err := fn(ctx, &ledgerTx{auctionID: auctionID, bucket: b, bids: bids, now: l.now})
		if err != nil {
			return err
		}
		outcome = out
		if !out.IsAccepted() {
			// Returning an error rolls back the bucket creation and any write.
			return errRejected
		}
		return nil
	})

	switch {
	case errors.Is(err, errRejected):
		return outcome, nil
	case err != nil:
		return domain.PlaceBidOutcome{}, err
	}
	return outcome, nil
}

func (l *BidLedger) Summary(ctx context.Context, auctionID string) (domain.BidSummary, error) {
	var summary domain.BidSummary

	err := l.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(rootBucket).Bucket([]byte(auctionID))
		if b == nil {
			return nil
		}
		highest, err := decodeBid(b.Get(highestKey))
		if err != nil {
			return err
		}
		summary.Highest = highest

		latest, err := lastBid(b.Bucket(bidsBucket))
		if err != nil {
			return err
		}
		if latest != nil {
			summary.LatestAt = &latest.CreatedAt
		}
		return nil
	})
	if err != nil {
		return domain.BidSummary{}, err
	}
	return summary, nil
}

// RecentBids returns up to limit bids, newest first.
func (l *BidLedger) RecentBids(ctx context.Context, auctionID string, limit int) ([]*domain.Bid, error) {
	bids := []*domain.Bid{}

	err := l.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(rootBucket).Bucket([]byte(auctionID))
		if b == nil {
			return nil
		}
		c := b.Bucket(bidsBucket).Cursor()
		for k, v := c.Last(); k != nil && len(bids) < limit; k, v = c.Prev() {
			bid, err := decodeBid(v)
			if err != nil {
				return err
			}
			bids = append(bids, bid)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bids, nil
}

type ledgerTx struct {
	auctionID string
	bucket    *bolt.Bucket
	bids      *bolt.Bucket
	now       func() time.Time
}

func (t *ledgerTx) ReadHighest(ctx context.Context) (*domain.Bid, error) {
	return decodeBid(t.bucket.Get(highestKey))
}

func (t *ledgerTx) ReadLatestBidTime(ctx context.Context) (*time.Time, error) {
	latest, err := lastBid(t.bids)
	if err != nil || latest == nil {
		return nil, err
	}
	return &latest.CreatedAt, nil
}

func (t *ledgerTx) InsertBid(ctx context.Context, bidderID string, amount int64) (*domain.Bid, error) {
	seq, err := t.bids.NextSequence()
	if err != nil {
		return nil, err
	}

	bid := &domain.Bid{
		ID:        utils.GenerateID(),
		AuctionID: t.auctionID,
		BidderID:  bidderID,
		Amount:    amount,
		CreatedAt: t.now().UTC(),
	}
	data, err := json.Marshal(bid)
	if err != nil {
		return nil, err
	}
	if err := t.bids.Put(itob(seq), data); err != nil {
		return nil, err
	}

	highest, err := decodeBid(t.bucket.Get(highestKey))
	if err != nil {
		return nil, err
	}
	if highest == nil || bid.Amount > highest.Amount {
		if err := t.bucket.Put(highestKey, data); err != nil {
			return nil, err
		}
	}
	return bid, nil
}

func lastBid(bids *bolt.Bucket) (*domain.Bid, error) {
	if bids == nil {
		return nil, nil
	}
	_, v := bids.Cursor().Last()
	return decodeBid(v)
}

func decodeBid(data []byte) (*domain.Bid, error) {
	if data == nil {
		return nil, nil
	}
	var bid domain.Bid
	if err := json.Unmarshal(data, &bid); err != nil {
		return nil, fmt.Errorf("decode bid: %w", err)
	}
	return &bid, nil
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
