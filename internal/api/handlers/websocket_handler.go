package handlers

import (
	"net/http"

	"live-auction/internal/domain"
	"live-auction/internal/infrastructure/websocket"
	"live-auction/pkg/logger"
)

type WebSocketHandlers struct {
	wsHandler *websocket.WebSocketHandler
}

func NewWebSocketHandlers(service websocket.BidPlacer, connManager domain.ConnectionManager,
	authHeader string, log logger.Logger) *WebSocketHandlers {
	return &WebSocketHandlers{
		wsHandler: websocket.NewWebSocketHandler(service, connManager, authHeader, log),
	}
}

func (h *WebSocketHandlers) HandleConnection(w http.ResponseWriter, r *http.Request) {
	h.wsHandler.HandleConnection(w, r)
}
