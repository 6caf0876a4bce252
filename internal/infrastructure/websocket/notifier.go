package websocket

import (
	"context"

	"live-auction/internal/domain"
)

// WebSocketNotifier adapts a ConnectionManager to the context-aware notifier interfaces.
type WebSocketNotifier struct {
	connManager domain.ConnectionManager
}

var (
	_ domain.UserNotifier       = (*WebSocketNotifier)(nil)
	_ domain.AuctionBroadcaster = (*WebSocketNotifier)(nil)
)

func NewWebSocketNotifier(connManager domain.ConnectionManager) *WebSocketNotifier {
	return &WebSocketNotifier{connManager: connManager}
}

func (n *WebSocketNotifier) NotifyUser(ctx context.Context, userID string, message interface{}) error {
	return n.connManager.NotifyUser(userID, message)
}

func (n *WebSocketNotifier) BroadcastToAuction(ctx context.Context, auctionID string, message interface{}) error {
	return n.connManager.BroadcastToAuction(auctionID, message)
}
