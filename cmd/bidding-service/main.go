package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"live-auction/internal/api/handlers"
	"live-auction/internal/api/middleware"
	"live-auction/internal/auctiontime"
	"live-auction/internal/catalog"
	"live-auction/internal/config"
	"live-auction/internal/infrastructure/ledger"
	"live-auction/internal/infrastructure/redis"
	"live-auction/internal/infrastructure/websocket"
	"live-auction/internal/services"
	"live-auction/pkg/logger"
	"live-auction/pkg/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New().Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.NewWithLevel(cfg.Log.Level)

	cat, err := catalog.FromConfig(cfg.Auctions)
	if err != nil {
		log.Error("Failed to build auction catalog", "error", err)
		os.Exit(1)
	}

	window, err := auctiontime.NewTradingWindow(cfg.Trading.Timezone, cfg.Trading.OpenMinute, cfg.Trading.CloseMinute)
	if err != nil {
		log.Error("Invalid trading window", "error", err)
		os.Exit(1)
	}
	closeCalc := auctiontime.NewCloseCalculator(window, cfg.Trading.Extension, cfg.Trading.Step)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rdb, err := utils.InitializeRedis(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// The bolt driver holds an exclusive file lock, so it cannot be shared with auction-service.
	bidLedger, err := ledger.Open(ctx, cfg, rdb, cat.List(), log)
	if err != nil {
		log.Error("Failed to open bid ledger", "driver", cfg.Ledger.Driver, "error", err)
		os.Exit(1)
	}
	defer bidLedger.Close()

	eventPublisher := redis.NewEventPublisher(rdb)
	eventSubscriber := redis.NewRedisEventSubscriber(rdb, log)

	auctionService := services.NewAuctionService(cat, bidLedger, closeCalc, log,
		services.WithEventPublisher(eventPublisher),
		services.WithMaxConflictRetries(cfg.Ledger.MaxConflictRetries),
		services.WithRecentBidsLimit(cfg.Ledger.RecentBidsLimit),
	)

	connManager := websocket.NewConnectionManager(log)
	notifier := websocket.NewWebSocketNotifier(connManager)
	eventListener := services.NewEventListener(connManager, notifier, notifier, log)
	wsHandlers := handlers.NewWebSocketHandlers(auctionService, connManager, cfg.Auth.Header, log)

	router := mux.NewRouter()
	router.Use(middleware.CORSWithLogging(log))

	router.HandleFunc("/ws/auction/{auctionID}", wsHandlers.HandleConnection)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	listenCtx, stopListening := context.WithCancel(context.Background())
	defer stopListening()

	go func() {
		if err := eventListener.Start(listenCtx, eventSubscriber); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Event listener stopped", "error", err)
		}
	}()

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Info("Starting bidding service", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down bidding service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	stopListening()
	for _, id := range cat.IDs() {
		if err := connManager.CloseAndUnregisterConnections(id); err != nil {
			log.Warn("Failed to close connections", "auction_id", id, "error", err)
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Bidding service stopped")
}
