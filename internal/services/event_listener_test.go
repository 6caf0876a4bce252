package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"live-auction/internal/domain"
	"live-auction/internal/infrastructure/websocket"
	"live-auction/pkg/logger"
)

type recordingConn struct {
	mu       sync.Mutex
	userID   string
	auction  string
	messages []interface{}
	closed   bool
}

func (c *recordingConn) Send(message interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, message)
	return nil
}

func (c *recordingConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *recordingConn) UserID() string    { return c.userID }
func (c *recordingConn) AuctionID() string { return c.auction }

type stubSubscriber struct {
	events []*domain.BidEvent
}

func (s *stubSubscriber) SubscribeToBidEvents(ctx context.Context, handler domain.EventHandler) error {
	for _, e := range s.events {
		if err := handler(e); err != nil {
			return err
		}
	}
	return nil
}

func TestEventListener_BroadcastsAndCloses(t *testing.T) {
	cm := websocket.NewConnectionManager(logger.NewNop())
	notifier := websocket.NewWebSocketNotifier(cm)
	listener := NewEventListener(cm, notifier, notifier, logger.NewNop())

	conn := &recordingConn{userID: "alice", auction: "rome-bed"}
	other := &recordingConn{userID: "bob", auction: "venice-bed"}
	require.NoError(t, cm.RegisterConnection("alice", "rome-bed", conn))
	require.NoError(t, cm.RegisterConnection("bob", "venice-bed", other))

	ts := time.Date(2026, 1, 15, 19, 0, 0, 0, time.UTC)
	sub := &stubSubscriber{events: []*domain.BidEvent{
		{Type: domain.BidAccepted, AuctionID: "rome-bed", UserID: "alice", Amount: 100, Timestamp: ts},
		{Type: domain.AuctionEnded, AuctionID: "rome-bed", UserID: "alice", Amount: 100, Timestamp: ts},
	}}
	require.NoError(t, listener.Start(context.Background(), sub))

	require.Len(t, conn.messages, 2)
	update := conn.messages[0].(BidUpdateMessage)
	require.Equal(t, "bid_update", update.Type)
	require.Equal(t, int64(100), update.HighestBid)
	require.Equal(t, "alice", update.HighBidder)

	ended := conn.messages[1].(AuctionEndedMessage)
	require.Equal(t, "auction_ended", ended.Type)
	require.Equal(t, "alice", ended.Winner)
	require.True(t, conn.closed)

	require.Empty(t, other.messages)
	require.False(t, other.closed)
	require.Empty(t, cm.GetConnectionsForAuction("rome-bed"))
}

func TestEventListener_UnknownEvent(t *testing.T) {
	cm := websocket.NewConnectionManager(logger.NewNop())
	notifier := websocket.NewWebSocketNotifier(cm)
	listener := NewEventListener(cm, notifier, notifier, logger.NewNop())

	err := listener.HandleBidEvent(&domain.BidEvent{Type: "bid_rejected", AuctionID: "rome-bed"})
	require.Error(t, err)
}

func TestEventListener_NotifiesOutbidBidder(t *testing.T) {
	cm := websocket.NewConnectionManager(logger.NewNop())
	notifier := websocket.NewWebSocketNotifier(cm)
	listener := NewEventListener(cm, notifier, notifier, logger.NewNop())

	alice := &recordingConn{userID: "alice", auction: "rome-bed"}
	bob := &recordingConn{userID: "bob", auction: "rome-bed"}
	bobElsewhere := &recordingConn{userID: "bob", auction: "venice-bed"}
	require.NoError(t, cm.RegisterConnection("alice", "rome-bed", alice))
	require.NoError(t, cm.RegisterConnection("bob", "rome-bed", bob))
	require.NoError(t, cm.RegisterConnection("bob", "venice-bed", bobElsewhere))

	ts := time.Date(2026, 1, 15, 19, 0, 0, 0, time.UTC)
	require.NoError(t, listener.HandleBidEvent(&domain.BidEvent{
		Type: domain.BidAccepted, AuctionID: "rome-bed", UserID: "alice", Amount: 150,
		Timestamp: ts, PreviousBidder: "bob",
	}))

	require.Len(t, alice.messages, 1)
	require.IsType(t, BidUpdateMessage{}, alice.messages[0])

	require.Len(t, bob.messages, 2)
	require.IsType(t, BidUpdateMessage{}, bob.messages[0])
	outbid := bob.messages[1].(OutbidMessage)
	require.Equal(t, "outbid", outbid.Type)
	require.Equal(t, "rome-bed", outbid.AuctionID)
	require.Equal(t, int64(150), outbid.HighestBid)

	// The notice names its auction, so it also reaches the bidder's other feeds.
	require.Len(t, bobElsewhere.messages, 1)
	require.IsType(t, OutbidMessage{}, bobElsewhere.messages[0])
}

func TestEventListener_NoOutbidWhenRaisingOwnBid(t *testing.T) {
	cm := websocket.NewConnectionManager(logger.NewNop())
	notifier := websocket.NewWebSocketNotifier(cm)
	listener := NewEventListener(cm, notifier, notifier, logger.NewNop())

	alice := &recordingConn{userID: "alice", auction: "rome-bed"}
	require.NoError(t, cm.RegisterConnection("alice", "rome-bed", alice))

	for _, previous := range []string{"alice", ""} {
		require.NoError(t, listener.HandleBidEvent(&domain.BidEvent{
			Type: domain.BidAccepted, AuctionID: "rome-bed", UserID: "alice", Amount: 200,
			PreviousBidder: previous,
		}))
	}

	require.Len(t, alice.messages, 2)
	for _, msg := range alice.messages {
		require.IsType(t, BidUpdateMessage{}, msg)
	}
}
