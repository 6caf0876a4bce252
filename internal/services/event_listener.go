package services

import (
	"context"
	"fmt"
	"time"

	"live-auction/internal/domain"
	"live-auction/pkg/logger"
)

// BidUpdateMessage is broadcast to every live-feed connection of an auction after a commit.
type BidUpdateMessage struct {
	Type            string     `json:"type"`
	AuctionID       string     `json:"auction_id"`
	HighestBid      int64      `json:"highest_bid"`
	HighBidder      string     `json:"high_bidder"`
	Timestamp       time.Time  `json:"timestamp"`
	EffectiveEndsAt *time.Time `json:"effective_ends_at,omitempty"`
}

type AuctionEndedMessage struct {
	Type       string    `json:"type"`
	AuctionID  string    `json:"auction_id"`
	Winner     string    `json:"winner,omitempty"`
	WinningBid int64     `json:"winning_bid"`
	Timestamp  time.Time `json:"timestamp"`
}

// OutbidMessage goes only to the bidder who just lost the lead.
type OutbidMessage struct {
	Type       string    `json:"type"`
	AuctionID  string    `json:"auction_id"`
	HighestBid int64     `json:"highest_bid"`
	Timestamp  time.Time `json:"timestamp"`
}

// EventListener fans pub/sub events out to the websocket connections of this instance.
type EventListener struct {
	broadcaster       domain.AuctionBroadcaster
	notifier          domain.UserNotifier
	connectionManager domain.ConnectionManager
	log               logger.Logger
}

func NewEventListener(connectionManager domain.ConnectionManager, broadcaster domain.AuctionBroadcaster,
	notifier domain.UserNotifier, log logger.Logger) *EventListener {
	return &EventListener{
		broadcaster:       broadcaster,
		notifier:          notifier,
		connectionManager: connectionManager,
		log:               log,
	}
}

// Start blocks until ctx is cancelled.
func (el *EventListener) Start(ctx context.Context, subscriber domain.EventSubscriber) error {
	el.log.Info("Starting event listener")
	return subscriber.SubscribeToBidEvents(ctx, el.HandleBidEvent)
}

func (el *EventListener) HandleBidEvent(event *domain.BidEvent) error {
	el.log.Debug("Handling bid event", "type", event.Type, "auction_id", event.AuctionID)

	switch event.Type {
	case domain.BidAccepted:
		return el.handleBidAccepted(event)
	case domain.AuctionEnded:
		return el.handleAuctionEnded(event)
	}

	return fmt.Errorf("unknown event type %q for auction %s", event.Type, event.AuctionID)
}

func (el *EventListener) handleBidAccepted(event *domain.BidEvent) error {
	ctx := context.Background()
	if err := el.broadcaster.BroadcastToAuction(ctx, event.AuctionID, BidUpdateMessage{
		Type:            "bid_update",
		AuctionID:       event.AuctionID,
		HighestBid:      event.Amount,
		HighBidder:      event.UserID,
		Timestamp:       event.Timestamp,
		EffectiveEndsAt: event.EffectiveEndsAt,
	}); err != nil {
		return err
	}

	// Raising your own bid is not being outbid.
	if el.notifier == nil || event.PreviousBidder == "" || event.PreviousBidder == event.UserID {
		return nil
	}
	return el.notifier.NotifyUser(ctx, event.PreviousBidder, OutbidMessage{
		Type:       "outbid",
		AuctionID:  event.AuctionID,
		HighestBid: event.Amount,
		Timestamp:  event.Timestamp,
	})
}

func (el *EventListener) handleAuctionEnded(event *domain.BidEvent) error {
	// Final broadcast
	if err := el.broadcaster.BroadcastToAuction(context.Background(), event.AuctionID, AuctionEndedMessage{
		Type:       "auction_ended",
		AuctionID:  event.AuctionID,
		Winner:     event.UserID,
		WinningBid: event.Amount,
		Timestamp:  event.Timestamp,
	}); err != nil {
		el.log.Error("Failed to broadcast auction ended event", "error", err)
		return err
	}

	if err := el.connectionManager.CloseAndUnregisterConnections(event.AuctionID); err != nil {
		el.log.Error("Failed to finalize connections for auction", "auction_id",
			event.AuctionID, "error", err)
		return err
	}
	return nil
}
