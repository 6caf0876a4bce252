package websocket

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"live-auction/internal/domain"
	"live-auction/pkg/logger"
)

type fakePlacer struct {
	view    *domain.AuctionView
	viewErr error
	bidErr  error
}

func (f *fakePlacer) PlaceBid(ctx context.Context, auctionID, bidderID string, amount int64) (*domain.Bid, error) {
	if f.bidErr != nil {
		return nil, f.bidErr
	}
	if amount <= 0 {
		return nil, fmt.Errorf("place bid: %w", domain.ErrInvalidAmount)
	}
	return &domain.Bid{ID: "b-1", AuctionID: auctionID, BidderID: bidderID, Amount: amount}, nil
}

func (f *fakePlacer) GetAuctionView(ctx context.Context, auctionID string) (*domain.AuctionView, error) {
	if f.viewErr != nil {
		return nil, f.viewErr
	}
	return f.view, nil
}

func newWSServer(t *testing.T, placer BidPlacer) (*httptest.Server, *ConnectionManager) {
	t.Helper()
	cm := NewConnectionManager(logger.NewNop())
	h := NewWebSocketHandler(placer, cm, "X-User-ID", logger.NewNop())

	router := mux.NewRouter()
	router.HandleFunc("/ws/auction/{auctionID}", h.HandleConnection)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, cm
}

// dial connects as userID through the auth header; an empty userID sends no header.
func dial(t *testing.T, srv *httptest.Server, path, userID string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	header := http.Header{}
	if userID != "" {
		header.Set("X-User-ID", userID)
	}
	return websocket.DefaultDialer.Dial(url, header)
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg map[string]interface{}
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func liveView() *domain.AuctionView {
	return &domain.AuctionView{
		Auction: domain.Auction{ID: "rome-bed", Title: "Rome Bed"},
		Live:    true,
		Status:  domain.AuctionAwaitingBids,
	}
}

func TestHandleConnection_SnapshotAndBid(t *testing.T) {
	srv, cm := newWSServer(t, &fakePlacer{view: liveView()})

	conn, _, err := dial(t, srv, "/ws/auction/rome-bed", "alice")
	require.NoError(t, err)
	defer conn.Close()

	snapshot := readMessage(t, conn)
	require.Equal(t, "snapshot", snapshot["type"])
	require.Len(t, cm.GetConnectionsForAuction("rome-bed"), 1)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "place_bid", "amount": 120}))
	accepted := readMessage(t, conn)
	require.Equal(t, "bid_accepted", accepted["type"])
	bid := accepted["bid"].(map[string]interface{})
	require.Equal(t, float64(120), bid["amount"])
	require.Equal(t, "alice", bid["bidder_id"])

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	require.Equal(t, "pong", readMessage(t, conn)["type"])
}

func TestHandleConnection_RejectedBids(t *testing.T) {
	tests := []struct {
		name    string
		bidErr  error
		payload string
		code    string
	}{
		{"fractional amount", nil, `{"type":"place_bid","amount":10.5}`, "INVALID_AMOUNT"},
		{"string amount", nil, `{"type":"place_bid","amount":"10"}`, "INVALID_AMOUNT"},
		{"negative amount", nil, `{"type":"place_bid","amount":-3}`, "INVALID_AMOUNT"},
		{"window before malformed amount", fmt.Errorf("place bid: %w", domain.ErrWindowClosed), `{"type":"place_bid","amount":1.5}`, "WINDOW_CLOSED"},
		{"closed before string amount", fmt.Errorf("place bid: %w", domain.ErrAuctionClosed), `{"type":"place_bid","amount":"abc"}`, "AUCTION_CLOSED"},
		{"too low", fmt.Errorf("place bid: %w", domain.ErrBidTooLow), `{"type":"place_bid","amount":5}`, "BID_TOO_LOW"},
		{"window", fmt.Errorf("place bid: %w", domain.ErrWindowClosed), `{"type":"place_bid","amount":5}`, "WINDOW_CLOSED"},
		{"conflict", fmt.Errorf("place bid: %w", domain.ErrTransactionConflict), `{"type":"place_bid","amount":5}`, "TRANSACTION_CONFLICT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newWSServer(t, &fakePlacer{view: liveView(), bidErr: tt.bidErr})

			conn, _, err := dial(t, srv, "/ws/auction/rome-bed", "alice")
			require.NoError(t, err)
			defer conn.Close()
			readMessage(t, conn) // snapshot

			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tt.payload)))
			msg := readMessage(t, conn)
			require.Equal(t, "bid_rejected", msg["type"])
			require.Equal(t, tt.code, msg["code"])
		})
	}
}

func TestHandleConnection_RefusedUpgrades(t *testing.T) {
	ended := liveView()
	ended.Live = false
	ended.HasBids = true
	ended.Status = domain.AuctionEnded

	tests := []struct {
		name   string
		placer *fakePlacer
		path   string
		userID string
		status int
	}{
		{"missing user", &fakePlacer{view: liveView()}, "/ws/auction/rome-bed", "", http.StatusUnauthorized},
		{"query identity ignored", &fakePlacer{view: liveView()}, "/ws/auction/rome-bed?user_id=victim", "", http.StatusUnauthorized},
		{"unknown auction", &fakePlacer{viewErr: domain.ErrAuctionNotFound}, "/ws/auction/nope", "alice", http.StatusNotFound},
		{"ended auction", &fakePlacer{view: ended}, "/ws/auction/rome-bed", "alice", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newWSServer(t, tt.placer)
			_, resp, err := dial(t, srv, tt.path, tt.userID)
			require.Error(t, err)
			require.NotNil(t, resp)
			require.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestHandleConnection_UnregistersOnClose(t *testing.T) {
	srv, cm := newWSServer(t, &fakePlacer{view: liveView()})

	conn, _, err := dial(t, srv, "/ws/auction/rome-bed", "alice")
	require.NoError(t, err)
	readMessage(t, conn)
	conn.Close()

	require.Eventually(t, func() bool {
		return len(cm.GetConnectionsForAuction("rome-bed")) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
