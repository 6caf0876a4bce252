package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"live-auction/internal/domain"
	"live-auction/pkg/logger"
	"live-auction/pkg/utils"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	maxMessage = 4096
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

// BidPlacer is the slice of the auction service the live feed needs.
type BidPlacer interface {
	PlaceBid(ctx context.Context, auctionID, bidderID string, amount int64) (*domain.Bid, error)
	GetAuctionView(ctx context.Context, auctionID string) (*domain.AuctionView, error)
}

// Client messages.
type inboundMessage struct {
	Type   string          `json:"type"`
	Amount json.RawMessage `json:"amount,omitempty"`
}

// Server messages.
type SnapshotMessage struct {
	Type    string              `json:"type"`
	Auction *domain.AuctionView `json:"auction"`
}

type BidAcceptedMessage struct {
	Type string      `json:"type"`
	Bid  *domain.Bid `json:"bid"`
}

type BidRejectedMessage struct {
	Type   string `json:"type"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

type WebSocketHandler struct {
	service     BidPlacer
	connManager domain.ConnectionManager
	authHeader  string
	log         logger.Logger
}

func NewWebSocketHandler(service BidPlacer, connManager domain.ConnectionManager,
	authHeader string, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		service:     service,
		connManager: connManager,
		authHeader:  authHeader,
		log:         log,
	}
}

// HandleConnection serves GET /ws/auction/{auctionID}. The bidder is taken only from the
// gateway-set auth header on the upgrade request.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	auctionID := mux.Vars(r)["auctionID"]

	userID := strings.TrimSpace(r.Header.Get(h.authHeader))
	if userID == "" {
		http.Error(w, "bidder identity required", http.StatusUnauthorized)
		return
	}

	view, err := h.service.GetAuctionView(r.Context(), auctionID)
	if errors.Is(err, domain.ErrAuctionNotFound) {
		http.Error(w, "auction not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error("Failed to load auction", "auction_id", auctionID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if view.Status == domain.AuctionEnded {
		h.log.Info("Rejected connection - auction has ended", "auction_id", auctionID)
		http.Error(w, "auction has already ended", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	wsConn := NewWebSocketConnection(conn, userID, auctionID)
	if err := h.connManager.RegisterConnection(userID, auctionID, wsConn); err != nil {
		h.log.Error("Failed to register connection", "error", err)
		conn.Close()
		return
	}

	if err := wsConn.Send(SnapshotMessage{Type: "snapshot", Auction: view}); err != nil {
		h.log.Warn("Failed to send snapshot", "user_id", userID, "auction_id", auctionID, "error", err)
	}

	go h.handleMessages(wsConn)
}

func (h *WebSocketHandler) handleMessages(conn *WebSocketConnection) {
	done := make(chan struct{})
	defer func() {
		close(done)
		h.connManager.UnregisterConnection(conn)
		conn.Close()
	}()
	go conn.keepAlive(done)

	conn.conn.SetReadLimit(maxMessage)
	conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg inboundMessage
		if err := conn.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("Failed to read message", "user_id", conn.UserID(), "error", err)
			}
			return
		}
		conn.conn.SetReadDeadline(time.Now().Add(pongWait))

		switch msg.Type {
		case "place_bid":
			h.handleBidMessage(conn, msg)
		case "ping":
			conn.Send(map[string]string{"type": "pong"})
		default:
			conn.Send(BidRejectedMessage{Type: "error", Code: "UNKNOWN_MESSAGE", Reason: "unknown message type"})
		}
	}
}

func (h *WebSocketHandler) handleBidMessage(conn *WebSocketConnection, msg inboundMessage) {
	// A malformed amount goes through as 0 so the window and auction checks still come first.
	amount, _ := utils.ParseAmount(msg.Amount)

	bid, err := h.service.PlaceBid(context.Background(), conn.AuctionID(), conn.UserID(), amount)
	if err != nil {
		if reason, ok := domain.ReasonOf(err); ok {
			conn.Send(rejected(string(reason), reason.Err().Error()))
			return
		}
		if errors.Is(err, domain.ErrTransactionConflict) {
			conn.Send(rejected("TRANSACTION_CONFLICT", "too many concurrent bids, try again"))
			return
		}
		conn.Send(rejected("INTERNAL", "failed to place bid"))
		return
	}

	conn.Send(BidAcceptedMessage{Type: "bid_accepted", Bid: bid})
}

func rejected(code, reason string) BidRejectedMessage {
	return BidRejectedMessage{Type: "bid_rejected", Code: code, Reason: reason}
}

// WebSocketConnection serializes writes; gorilla connections allow one concurrent writer.
type WebSocketConnection struct {
	conn      *websocket.Conn
	userID    string
	auctionID string
	writeMu   sync.Mutex
}

func NewWebSocketConnection(conn *websocket.Conn, userID, auctionID string) *WebSocketConnection {
	return &WebSocketConnection{
		conn:      conn,
		userID:    userID,
		auctionID: auctionID,
	}
}

func (wsc *WebSocketConnection) Send(message interface{}) error {
	wsc.writeMu.Lock()
	defer wsc.writeMu.Unlock()

	wsc.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return wsc.conn.WriteJSON(message)
}

// keepAlive pings the peer until done is closed or a ping fails.
func (wsc *WebSocketConnection) keepAlive(done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := wsc.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (wsc *WebSocketConnection) Close() error {
	return wsc.conn.Close()
}

func (wsc *WebSocketConnection) UserID() string {
	return wsc.userID
}

func (wsc *WebSocketConnection) AuctionID() string {
	return wsc.auctionID
}
