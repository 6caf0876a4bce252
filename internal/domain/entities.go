package domain

import (
	"time"
)

// Auction is a static catalog entry. It is loaded once at startup and never mutated.
type Auction struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	EndsAt      time.Time `json:"ends_at"`
}

// Bid is an immutable ledger record. ID and CreatedAt are assigned by the ledger on insert.
type Bid struct {
	ID        string    `json:"id"`
	AuctionID string    `json:"auction_id"`
	BidderID  string    `json:"bidder_id"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// BidSummary is what the view path needs from the ledger for one auction.
type BidSummary struct {
	Highest  *Bid
	LatestAt *time.Time
}

// HighestAmount returns 0 when the auction has no bids.
func (s BidSummary) HighestAmount() int64 {
	if s.Highest == nil {
		return 0
	}
	return s.Highest.Amount
}

type AuctionStatus int

const (
	AuctionAwaitingBids AuctionStatus = iota
	AuctionActive
	AuctionEnded
)

func (s AuctionStatus) String() string {
	switch s {
	case AuctionAwaitingBids:
		return "awaiting_bids"
	case AuctionActive:
		return "active"
	case AuctionEnded:
		return "ended"
	default:
		return "unknown"
	}
}

func (s AuctionStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StatusOf derives the status label shown next to a view.
func StatusOf(hasBids, live bool) AuctionStatus {
	switch {
	case !hasBids:
		return AuctionAwaitingBids
	case live:
		return AuctionActive
	default:
		return AuctionEnded
	}
}

// AuctionView is the read model served to clients.
type AuctionView struct {
	Auction         Auction       `json:"auction"`
	EffectiveEndsAt *time.Time    `json:"effective_ends_at"`
	Live            bool          `json:"live"`
	HasBids         bool          `json:"has_bids"`
	HighestBid      int64         `json:"highest_bid"`
	HighBidder      string        `json:"high_bidder,omitempty"`
	Status          AuctionStatus `json:"status"`
	RecentBids      []*Bid        `json:"recent_bids,omitempty"`
}

// PlaceBidOutcome is the tagged result of the place-bid transaction: either Bid is set
// (accepted) or Reason is set (rejected). Ledgers never write when Reason is set.
type PlaceBidOutcome struct {
	Bid      *Bid
	Reason   RejectReason
	// Previous is the highest bid the accepted one displaced, nil for the first bid.
	Previous *Bid
}

func Accepted(bid *Bid) PlaceBidOutcome {
	return PlaceBidOutcome{Bid: bid}
}

func Rejected(reason RejectReason) PlaceBidOutcome {
	return PlaceBidOutcome{Reason: reason}
}

func (o PlaceBidOutcome) IsAccepted() bool {
	return o.Reason == "" && o.Bid != nil
}

type BidEvent struct {
	Type            BidEventType `json:"type"`
	AuctionID       string       `json:"auction_id"`
	UserID          string       `json:"user_id,omitempty"`
	Amount          int64        `json:"amount,omitempty"`
	Timestamp       time.Time    `json:"timestamp"`
	EffectiveEndsAt *time.Time   `json:"effective_ends_at,omitempty"`
	// PreviousBidder is the outbid high bidder on bid_accepted, if any.
	PreviousBidder  string       `json:"previous_bidder,omitempty"`
}

type BidEventType string

const (
	BidAccepted  BidEventType = "bid_accepted"
	AuctionEnded BidEventType = "auction_ended"
)
