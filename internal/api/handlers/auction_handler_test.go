package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"live-auction/internal/api/middleware"
	"live-auction/internal/domain"
	"live-auction/pkg/logger"
)

func setupRouter(t *testing.T) (*echo.Echo, *MockAuctionServiceInterface) {
	t.Helper()
	ctrl := gomock.NewController(t)
	svc := NewMockAuctionServiceInterface(ctrl)

	e := echo.New()
	api := e.Group("/api/v1", middleware.Auth("X-User-ID"))
	NewAuctionHandler(svc, logger.NewNop()).Register(api)
	return e, svc
}

func doRequest(e *echo.Echo, method, path, body, bidder string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if bidder != "" {
		req.Header.Set("X-User-ID", bidder)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestPlaceBidHandler_Accepted(t *testing.T) {
	e, svc := setupRouter(t)

	created := time.Date(2026, 1, 15, 19, 0, 0, 0, time.UTC)
	svc.EXPECT().PlaceBid(gomock.Any(), "rome-bed", "alice", int64(150)).
		Return(&domain.Bid{ID: "b-1", AuctionID: "rome-bed", BidderID: "alice", Amount: 150, CreatedAt: created}, nil)

	rec := doRequest(e, http.MethodPost, "/api/v1/auctions/rome-bed/bids", `{"amount":150}`, "alice")
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp PlaceBidResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "b-1", resp.Bid.ID)
	require.Equal(t, int64(150), resp.Bid.Amount)
	require.Equal(t, "alice", resp.Bid.BidderID)
}

func TestPlaceBidHandler_MalformedAmountBecomesZero(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"string amount", `{"amount":"150"}`},
		{"fraction", `{"amount":1.5}`},
		{"missing", `{}`},
		{"not json", `amount=150`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, svc := setupRouter(t)
			svc.EXPECT().PlaceBid(gomock.Any(), "rome-bed", "alice", int64(0)).
				Return(nil, fmt.Errorf("place bid: %w", domain.ErrInvalidAmount))

			rec := doRequest(e, http.MethodPost, "/api/v1/auctions/rome-bed/bids", tt.body, "alice")
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Equal(t, "INVALID_AMOUNT", decodeError(t, rec).Code)
		})
	}
}

func TestPlaceBidHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unauthenticated", domain.ErrUnauthenticated, http.StatusUnauthorized, "UNAUTHENTICATED"},
		{"not found", domain.ErrAuctionNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"window closed", domain.ErrWindowClosed, http.StatusConflict, "WINDOW_CLOSED"},
		{"auction closed", domain.ErrAuctionClosed, http.StatusConflict, "AUCTION_CLOSED"},
		{"too low", domain.ErrBidTooLow, http.StatusConflict, "BID_TOO_LOW"},
		{"conflict", domain.ErrTransactionConflict, http.StatusServiceUnavailable, "TRANSACTION_CONFLICT"},
		{"infrastructure", errors.New("connection reset"), http.StatusInternalServerError, "INTERNAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, svc := setupRouter(t)
			svc.EXPECT().PlaceBid(gomock.Any(), "rome-bed", gomock.Any(), int64(10)).
				Return(nil, fmt.Errorf("place bid on rome-bed: %w", tt.err))

			rec := doRequest(e, http.MethodPost, "/api/v1/auctions/rome-bed/bids", `{"amount":10}`, "alice")
			require.Equal(t, tt.status, rec.Code)

			resp := decodeError(t, rec)
			require.Equal(t, tt.code, resp.Code)
			require.NotEmpty(t, resp.Error)
			require.NotContains(t, resp.Error, "connection reset")
			if tt.status == http.StatusServiceUnavailable {
				require.Equal(t, "1", rec.Header().Get("Retry-After"))
			}
		})
	}
}

func TestPlaceBidHandler_NoBidderHeader(t *testing.T) {
	e, svc := setupRouter(t)
	svc.EXPECT().PlaceBid(gomock.Any(), "rome-bed", "", int64(10)).Return(nil, domain.ErrUnauthenticated)

	rec := doRequest(e, http.MethodPost, "/api/v1/auctions/rome-bed/bids", `{"amount":10}`, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetAuctionHandler(t *testing.T) {
	e, svc := setupRouter(t)

	endsAt := time.Date(2026, 1, 16, 1, 0, 0, 0, time.UTC)
	svc.EXPECT().GetAuctionView(gomock.Any(), "rome-bed").Return(&domain.AuctionView{
		Auction:         domain.Auction{ID: "rome-bed", Title: "Rome Bed"},
		EffectiveEndsAt: &endsAt,
		Live:            true,
		HasBids:         true,
		HighestBid:      100,
		HighBidder:      "alice",
		Status:          domain.AuctionActive,
		RecentBids:      []*domain.Bid{{ID: "b-1", Amount: 100, BidderID: "alice"}},
	}, nil)
	svc.EXPECT().GetAuctionView(gomock.Any(), "nope").
		Return(nil, fmt.Errorf("get auction nope: %w", domain.ErrAuctionNotFound))

	rec := doRequest(e, http.MethodGet, "/api/v1/auctions/rome-bed", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "active", body["status"])
	require.Equal(t, float64(100), body["highest_bid"])
	require.Equal(t, "alice", body["high_bidder"])
	require.Len(t, body["recent_bids"], 1)

	rec = doRequest(e, http.MethodGet, "/api/v1/auctions/nope", "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "NOT_FOUND", decodeError(t, rec).Code)
}

func TestListAuctionsHandler(t *testing.T) {
	e, svc := setupRouter(t)
	svc.EXPECT().ListAuctionViews(gomock.Any()).Return([]*domain.AuctionView{
		{Auction: domain.Auction{ID: "rome-bed"}, Status: domain.AuctionAwaitingBids},
		{Auction: domain.Auction{ID: "venice-bed"}, Status: domain.AuctionEnded, HasBids: true},
	}, nil)

	rec := doRequest(e, http.MethodGet, "/api/v1/auctions", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Auctions []struct {
			Auction domain.Auction `json:"auction"`
			Status  string         `json:"status"`
		} `json:"auctions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Auctions, 2)
	require.Equal(t, "rome-bed", resp.Auctions[0].Auction.ID)
	require.Equal(t, "awaiting_bids", resp.Auctions[0].Status)
	require.Equal(t, "ended", resp.Auctions[1].Status)
}

func TestListAuctionsHandler_Failure(t *testing.T) {
	e, svc := setupRouter(t)
	svc.EXPECT().ListAuctionViews(gomock.Any()).Return(nil, errors.New("ledger unavailable"))

	rec := doRequest(e, http.MethodGet, "/api/v1/auctions", "", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "INTERNAL", decodeError(t, rec).Code)
}
