package handlers

//go:generate mockgen -destination=mock_service_test.go -package=handlers live-auction/internal/api/handlers AuctionServiceInterface

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"live-auction/internal/api/middleware"
	"live-auction/internal/domain"
	"live-auction/pkg/logger"
	"live-auction/pkg/utils"
)

type AuctionServiceInterface interface {
	PlaceBid(ctx context.Context, auctionID, bidderID string, amount int64) (*domain.Bid, error)
	GetAuctionView(ctx context.Context, auctionID string) (*domain.AuctionView, error)
	ListAuctionViews(ctx context.Context) ([]*domain.AuctionView, error)
}

type AuctionHandler struct {
	service AuctionServiceInterface
	log     logger.Logger
}

type PlaceBidRequest struct {
	Amount json.RawMessage `json:"amount"`
}

type PlaceBidResponse struct {
	Bid *domain.Bid `json:"bid"`
}

type ListAuctionsResponse struct {
	Auctions []*domain.AuctionView `json:"auctions"`
}

type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func NewAuctionHandler(service AuctionServiceInterface, log logger.Logger) *AuctionHandler {
	return &AuctionHandler{service: service, log: log}
}

// Register mounts the routes on g. bidMiddleware wraps only the place-bid route.
func (h *AuctionHandler) Register(g *echo.Group, bidMiddleware ...echo.MiddlewareFunc) {
	g.GET("/auctions", h.ListAuctions)
	g.GET("/auctions/:id", h.GetAuction)
	g.POST("/auctions/:id/bids", h.PlaceBid, bidMiddleware...)
}

// ListAuctions handles GET /api/v1/auctions
func (h *AuctionHandler) ListAuctions(c echo.Context) error {
	views, err := h.service.ListAuctionViews(c.Request().Context())
	if err != nil {
		h.log.Error("ListAuctions: failed to evaluate catalog", "error", err)
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, ListAuctionsResponse{Auctions: views})
}

// GetAuction handles GET /api/v1/auctions/:id
func (h *AuctionHandler) GetAuction(c echo.Context) error {
	auctionID := c.Param("id")
	view, err := h.service.GetAuctionView(c.Request().Context(), auctionID)
	if err != nil {
		if !errors.Is(err, domain.ErrAuctionNotFound) {
			h.log.Error("GetAuction: failed to load auction", "auction_id", auctionID, "error", err)
		}
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// PlaceBid handles POST /api/v1/auctions/:id/bids
//
// A body that does not carry a positive integer amount is passed on as amount 0, so the
// service reports INVALID_AMOUNT only after the identity, auction and window checks.
func (h *AuctionHandler) PlaceBid(c echo.Context) error {
	auctionID := c.Param("id")
	bidderID := middleware.BidderID(c)

	var amount int64
	var req PlaceBidRequest
	if err := c.Bind(&req); err != nil {
		h.log.Debug("PlaceBid: unreadable body", "auction_id", auctionID, "error", err)
	} else if parsed, ok := utils.ParseAmount(req.Amount); ok {
		amount = parsed
	}

	bid, err := h.service.PlaceBid(c.Request().Context(), auctionID, bidderID, amount)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, PlaceBidResponse{Bid: bid})
}

// MapErrorToHTTP maps service errors to an HTTP status and a stable error code.
func MapErrorToHTTP(err error) (int, string) {
	if reason, ok := domain.ReasonOf(err); ok {
		switch reason {
		case domain.ReasonUnauthenticated:
			return http.StatusUnauthorized, string(reason)
		case domain.ReasonNotFound:
			return http.StatusNotFound, string(reason)
		case domain.ReasonInvalidAmount:
			return http.StatusBadRequest, string(reason)
		default:
			return http.StatusConflict, string(reason)
		}
	}
	if errors.Is(err, domain.ErrTransactionConflict) {
		return http.StatusServiceUnavailable, "TRANSACTION_CONFLICT"
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func writeError(c echo.Context, err error) error {
	status, code := MapErrorToHTTP(err)

	message := "internal server error"
	switch {
	case status == http.StatusServiceUnavailable:
		c.Response().Header().Set("Retry-After", "1")
		message = "concurrent bid conflict, retry"
	case status != http.StatusInternalServerError:
		reason := domain.RejectReason(code)
		message = reason.Err().Error()
	}

	return c.JSON(status, ErrorResponse{Code: code, Error: message})
}
