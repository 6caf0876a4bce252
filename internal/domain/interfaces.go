package domain

//go:generate mockgen -destination=mocks/mock_interfaces.go -package=mocks live-auction/internal/domain BidLedger,LedgerTx,EventPublisher,AuctionStateCache,LeaderElection

import (
	"context"
	"time"
)

// LedgerTx is the view of the bid ledger inside one isolated unit of work for a single auction.
type LedgerTx interface {
	// ReadHighest returns nil when the auction has no bids.
	ReadHighest(ctx context.Context) (*Bid, error)
	// ReadLatestBidTime returns nil when the auction has no bids.
	ReadLatestBidTime(ctx context.Context) (*time.Time, error)
	// InsertBid assigns ID and CreatedAt. The write becomes visible only on commit.
	InsertBid(ctx context.Context, bidderID string, amount int64) (*Bid, error)
}

// TxFunc decides the outcome of a place-bid attempt.
type TxFunc func(ctx context.Context, tx LedgerTx) (PlaceBidOutcome, error)

// BidLedger owns all bid records.
type BidLedger interface {
	// WithAuctionTx runs fn in a transaction scoped to auctionID. It commits only when fn
	// returns an accepted outcome and a nil error; rejections and errors abort without writing.
	// Write conflicts are reported as ErrTransactionConflict.
	WithAuctionTx(ctx context.Context, auctionID string, fn TxFunc) (PlaceBidOutcome, error)
	Summary(ctx context.Context, auctionID string) (BidSummary, error)
	RecentBids(ctx context.Context, auctionID string, limit int) ([]*Bid, error)
	IsolationLevel() string
}

type AuctionCatalog interface {
	Get(auctionID string) (Auction, bool)
	List() []Auction
}

// Cache interfaces
type AuctionStateCache interface {
	SetAuctionStatus(ctx context.Context, auctionID string, status AuctionStatus) error
	GetAuctionStatus(ctx context.Context, auctionID string) (AuctionStatus, bool, error)
}

// Event interfaces
type EventPublisher interface {
	PublishBidEvent(ctx context.Context, event *BidEvent) error
}

type EventSubscriber interface {
	SubscribeToBidEvents(ctx context.Context, handler EventHandler) error
}

type EventHandler func(event *BidEvent) error

type EventRepository interface {
	SaveBidEvent(ctx context.Context, event *BidEvent) error
}

// Notification interfaces
type UserNotifier interface {
	NotifyUser(ctx context.Context, userID string, message interface{}) error
}

type AuctionBroadcaster interface {
	BroadcastToAuction(ctx context.Context, auctionID string, message interface{}) error
}

// Leader election interface
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}

// WebSocket interfaces
type WebSocketConnection interface {
	Send(message interface{}) error
	Close() error
	UserID() string
	AuctionID() string
}

type ConnectionManager interface {
	RegisterConnection(userID, auctionID string, conn WebSocketConnection) error
	UnregisterConnection(conn WebSocketConnection) error
	GetConnectionsForAuction(auctionID string) []WebSocketConnection
	GetConnectionsForUser(userID string) []WebSocketConnection
	BroadcastToAuction(auctionID string, message interface{}) error
	NotifyUser(userID string, message interface{}) error
	CloseAndUnregisterConnections(auctionID string) error
}
