package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"live-auction/internal/auctiontime"
	"live-auction/internal/domain"
	"live-auction/pkg/logger"
)

const (
	defaultMaxConflictRetries = 3
	defaultRecentBidsLimit    = 50
)

// AuctionService orchestrates the catalog, the bid ledger and the time rules. It holds no
// mutable auction state.
type AuctionService struct {
	catalog     domain.AuctionCatalog
	ledger      domain.BidLedger
	closeCalc   *auctiontime.CloseCalculator
	eventPub    domain.EventPublisher
	maxRetries  int
	recentLimit int
	now         func() time.Time
	log         logger.Logger
}

type AuctionServiceOption func(*AuctionService)

func WithEventPublisher(pub domain.EventPublisher) AuctionServiceOption {
	return func(s *AuctionService) { s.eventPub = pub }
}

// WithMaxConflictRetries bounds how many times a conflicting transaction is re-run.
func WithMaxConflictRetries(n int) AuctionServiceOption {
	return func(s *AuctionService) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

func WithRecentBidsLimit(n int) AuctionServiceOption {
	return func(s *AuctionService) {
		if n > 0 {
			s.recentLimit = n
		}
	}
}

func WithClock(now func() time.Time) AuctionServiceOption {
	return func(s *AuctionService) { s.now = now }
}

func NewAuctionService(
	catalog domain.AuctionCatalog,
	ledger domain.BidLedger,
	closeCalc *auctiontime.CloseCalculator,
	log logger.Logger,
	opts ...AuctionServiceOption,
) *AuctionService {
	s := &AuctionService{
		catalog:     catalog,
		ledger:      ledger,
		closeCalc:   closeCalc,
		maxRetries:  defaultMaxConflictRetries,
		recentLimit: defaultRecentBidsLimit,
		now:         time.Now,
		log:         log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceBid validates the request, then runs the accept/reject decision inside one ledger
// transaction. Rejections are returned as errors wrapping the domain sentinels.
func (s *AuctionService) PlaceBid(ctx context.Context, auctionID, bidderID string, amount int64) (*domain.Bid, error) {
	if bidderID == "" {
		return nil, domain.ErrUnauthenticated
	}

	auction, ok := s.catalog.Get(auctionID)
	if !ok {
		return nil, fmt.Errorf("place bid on %s: %w", auctionID, domain.ErrAuctionNotFound)
	}

	if !s.closeCalc.Window().IsOpen(s.now()) {
		return nil, s.rejection(auction.ID, bidderID, amount, domain.ReasonWindowClosed)
	}

	if amount <= 0 {
		return nil, s.rejection(auction.ID, bidderID, amount, domain.ReasonInvalidAmount)
	}

	var (
		outcome domain.PlaceBidOutcome
		err     error
	)
	for attempt := 1; attempt <= s.maxRetries+1; attempt++ {
		outcome, err = s.ledger.WithAuctionTx(ctx, auction.ID, s.decide(auction, bidderID, amount, s.now()))
		if !errors.Is(err, domain.ErrTransactionConflict) {
			break
		}
		s.log.Warn("Bid transaction conflict", "auction_id", auction.ID, "user_id", bidderID,
			"amount", amount, "attempt", attempt)
	}

	if err != nil {
		if errors.Is(err, domain.ErrTransactionConflict) {
			return nil, fmt.Errorf("place bid on %s: gave up after %d attempts: %w", auction.ID, s.maxRetries+1, err)
		}
		s.log.Error("Failed to place bid", "auction_id", auction.ID, "user_id", bidderID, "error", err)
		return nil, fmt.Errorf("place bid on %s: %w", auction.ID, err)
	}

	if !outcome.IsAccepted() {
		return nil, s.rejection(auction.ID, bidderID, amount, outcome.Reason)
	}

	bid := outcome.Bid
	s.log.Info("Bid accepted", "auction_id", auction.ID, "user_id", bidderID, "amount", amount, "bid_id", bid.ID)
	s.publishAccepted(ctx, auction, bid, outcome.Previous)
	return bid, nil
}

// decide is the body of the place-bid transaction.
func (s *AuctionService) decide(auction domain.Auction, bidderID string, amount int64, now time.Time) domain.TxFunc {
	return func(ctx context.Context, tx domain.LedgerTx) (domain.PlaceBidOutcome, error) {
		highest, err := tx.ReadHighest(ctx)
		if err != nil {
			return domain.PlaceBidOutcome{}, fmt.Errorf("read highest bid: %w", err)
		}

		latestAt, err := tx.ReadLatestBidTime(ctx)
		if err != nil {
			return domain.PlaceBidOutcome{}, fmt.Errorf("read latest bid time: %w", err)
		}

		endsAt := s.closeCalc.EffectiveEndsAt(auction.EndsAt, latestAt)
		if !s.closeCalc.IsLive(endsAt, now) {
			return domain.Rejected(domain.ReasonAuctionClosed), nil
		}

		var current int64
		if highest != nil {
			current = highest.Amount
		}
		if amount <= current {
			return domain.Rejected(domain.ReasonBidTooLow), nil
		}

		bid, err := tx.InsertBid(ctx, bidderID, amount)
		if err != nil {
			return domain.PlaceBidOutcome{}, fmt.Errorf("insert bid: %w", err)
		}
		outcome := domain.Accepted(bid)
		outcome.Previous = highest
		return outcome, nil
	}
}

func (s *AuctionService) rejection(auctionID, bidderID string, amount int64, reason domain.RejectReason) error {
	s.log.Info("Bid rejected", "auction_id", auctionID, "user_id", bidderID, "amount", amount, "reason", reason)
	return fmt.Errorf("place bid on %s: %w", auctionID, reason.Err())
}

// publishAccepted is best-effort: the bid is already committed.
func (s *AuctionService) publishAccepted(ctx context.Context, auction domain.Auction, bid, previous *domain.Bid) {
	if s.eventPub == nil {
		return
	}
	var previousBidder string
	if previous != nil {
		previousBidder = previous.BidderID
	}
	err := s.eventPub.PublishBidEvent(ctx, &domain.BidEvent{
		Type:            domain.BidAccepted,
		AuctionID:       auction.ID,
		UserID:          bid.BidderID,
		Amount:          bid.Amount,
		Timestamp:       bid.CreatedAt,
		EffectiveEndsAt: s.closeCalc.EffectiveEndsAt(auction.EndsAt, &bid.CreatedAt),
		PreviousBidder:  previousBidder,
	})
	if err != nil {
		s.log.Warn("Failed to publish bid event", "auction_id", auction.ID, "bid_id", bid.ID, "error", err)
	}
}

// GetAuctionView composes the ledger read path with the close rules. Reads are not isolated
// from concurrent writers.
func (s *AuctionService) GetAuctionView(ctx context.Context, auctionID string) (*domain.AuctionView, error) {
	auction, ok := s.catalog.Get(auctionID)
	if !ok {
		return nil, fmt.Errorf("get auction %s: %w", auctionID, domain.ErrAuctionNotFound)
	}

	summary, err := s.ledger.Summary(ctx, auction.ID)
	if err != nil {
		return nil, fmt.Errorf("get auction %s: %w", auction.ID, err)
	}

	recent, err := s.ledger.RecentBids(ctx, auction.ID, s.recentLimit)
	if err != nil {
		return nil, fmt.Errorf("get auction %s: recent bids: %w", auction.ID, err)
	}
	if recent == nil {
		recent = []*domain.Bid{}
	}

	view := s.buildView(auction, summary, s.now())
	view.RecentBids = recent
	return view, nil
}

// ListAuctionViews evaluates every catalog entry on its own, without bid history.
func (s *AuctionService) ListAuctionViews(ctx context.Context) ([]*domain.AuctionView, error) {
	now := s.now()
	auctions := s.catalog.List()
	views := make([]*domain.AuctionView, 0, len(auctions))

	for _, auction := range auctions {
		summary, err := s.ledger.Summary(ctx, auction.ID)
		if err != nil {
			return nil, fmt.Errorf("list auctions: %s: %w", auction.ID, err)
		}
		views = append(views, s.buildView(auction, summary, now))
	}

	return views, nil
}

func (s *AuctionService) buildView(auction domain.Auction, summary domain.BidSummary, now time.Time) *domain.AuctionView {
	endsAt := s.closeCalc.EffectiveEndsAt(auction.EndsAt, summary.LatestAt)
	live := s.closeCalc.IsLive(endsAt, now)
	hasBids := summary.LatestAt != nil

	view := &domain.AuctionView{
		Auction:         auction,
		EffectiveEndsAt: endsAt,
		Live:            live,
		HasBids:         hasBids,
		HighestBid:      summary.HighestAmount(),
		Status:          domain.StatusOf(hasBids, live),
	}
	if summary.Highest != nil {
		view.HighBidder = summary.Highest.BidderID
	}
	return view
}
