package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"live-auction/internal/api/middleware"
	"live-auction/internal/config"
	"live-auction/internal/domain"
	"live-auction/internal/infrastructure/mysql"
	"live-auction/internal/infrastructure/redis"
	"live-auction/pkg/logger"
	"live-auction/pkg/utils"
)

// EventArchive stores pub/sub events and serves the accepted-bid history back.
type EventArchive interface {
	domain.EventRepository
	GetBidHistory(ctx context.Context, auctionID string) ([]*domain.BidEvent, error)
}

type AnalyticsService struct {
	subscriber domain.EventSubscriber
	archive    EventArchive
	log        logger.Logger
}

func NewAnalyticsService(subscriber domain.EventSubscriber, archive EventArchive, log logger.Logger) *AnalyticsService {
	return &AnalyticsService{
		subscriber: subscriber,
		archive:    archive,
		log:        log,
	}
}

// Start archives every event until ctx is cancelled.
func (as *AnalyticsService) Start(ctx context.Context) error {
	as.log.Info("Starting analytics service")

	return as.subscriber.SubscribeToBidEvents(ctx, func(event *domain.BidEvent) error {
		as.log.Debug("Storing event", "type", event.Type, "auction_id", event.AuctionID,
			"user_id", event.UserID, "amount", event.Amount)

		saveCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return as.archive.SaveBidEvent(saveCtx, event)
	})
}

type historyResponse struct {
	AuctionID string             `json:"auction_id"`
	Bids      []*domain.BidEvent `json:"bids"`
}

// HandleHistory serves GET /api/v1/auctions/{id}/history
func (as *AnalyticsService) HandleHistory(w http.ResponseWriter, r *http.Request) {
	auctionID := mux.Vars(r)["id"]

	events, err := as.archive.GetBidHistory(r.Context(), auctionID)
	if err != nil {
		as.log.Error("Failed to load bid history", "auction_id", auctionID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"code": "INTERNAL", "error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, historyResponse{AuctionID: auctionID, Bids: events})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func newRouter(as *AnalyticsService, log logger.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.CORSWithLogging(log))

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/auctions/{id}/history", as.HandleHistory).Methods(http.MethodGet)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	return router
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New().Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.NewWithLevel(cfg.Log.Level)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rdb, err := utils.InitializeRedis(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	db, err := utils.InitializeMysql(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to connect to MySQL", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if cfg.MySQL.ApplySchema {
		if err := mysql.EnsureSchema(ctx, db); err != nil {
			log.Error("Failed to apply schema", "error", err)
			os.Exit(1)
		}
	}

	analyticsService := NewAnalyticsService(
		redis.NewRedisEventSubscriber(rdb, log),
		mysql.NewMySQLEventRepository(db),
		log,
	)

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()

	go func() {
		if err := analyticsService.Start(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Analytics service failed", "error", err)
			os.Exit(1)
		}
	}()

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: newRouter(analyticsService, log),
	}

	go func() {
		log.Info("Starting analytics API", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down analytics service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Analytics service stopped")
}
