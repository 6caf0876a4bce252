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

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"live-auction/internal/api/handlers"
	apimw "live-auction/internal/api/middleware"
	"live-auction/internal/auctiontime"
	"live-auction/internal/catalog"
	"live-auction/internal/config"
	"live-auction/internal/domain"
	"live-auction/internal/infrastructure/leader"
	"live-auction/internal/infrastructure/ledger"
	"live-auction/internal/infrastructure/redis"
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
	log.Info("Starting auction service", "config", cfg.GetConfigString())

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

	bidLedger, err := ledger.Open(ctx, cfg, rdb, cat.List(), log)
	if err != nil {
		log.Error("Failed to open bid ledger", "driver", cfg.Ledger.Driver, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := bidLedger.Close(); err != nil {
			log.Error("Failed to close bid ledger", "error", err)
		}
	}()

	stateCache := redis.NewRedisStateCache(rdb)
	eventPublisher := redis.NewEventPublisher(rdb)
	leaderElection := leader.NewRedisLeaderElection(rdb, cfg.Leader.TTL)

	auctionService := services.NewAuctionService(cat, bidLedger, closeCalc, log,
		services.WithEventPublisher(eventPublisher),
		services.WithMaxConflictRetries(cfg.Ledger.MaxConflictRetries),
		services.WithRecentBidsLimit(cfg.Ledger.RecentBidsLimit),
	)

	instanceID := cfg.Instance.ID
	if instanceID == "" {
		instanceID = "auction-service-" + uuid.NewString()
	}
	closeWatcher := services.NewCloseWatcher(cfg.Watcher.Schedule, auctionService, stateCache,
		eventPublisher, leaderElection, instanceID, log)

	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	limiterStore := apimw.NewLimiterStore(cfg.RateLimit.RPS, cfg.RateLimit.Burst,
		apimw.WithIdleTTL(cfg.RateLimit.IdleTTL))
	limiterStore.StartJanitor(bgCtx)

	e := newServer(auctionService, limiterStore, cfg, log)

	if err := closeWatcher.Start(bgCtx); err != nil {
		log.Error("Failed to start close watcher", "error", err)
		os.Exit(1)
	}

	go campaignForLeadership(bgCtx, leaderElection, instanceID, log)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		log.Info("Starting HTTP server", "address", serverAddr)
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down auction service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	closeWatcher.Stop()
	stopBackground()
	if err := leaderElection.ReleaseLeadership(shutdownCtx, instanceID); err != nil {
		log.Error("Failed to release leadership", "error", err)
	}
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Auction service stopped")
}

func newServer(service handlers.AuctionServiceInterface, limiterStore *apimw.LimiterStore,
	cfg *config.Config, log logger.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestID())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: `{"time":"${time_rfc3339}","id":"${id}","remote_ip":"${remote_ip}","method":"${method}","uri":"${uri}","status":${status},"error":"${error}","latency_human":"${latency_human}","bytes_in":${bytes_in},"bytes_out":${bytes_out}}` + "\n",
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			cfg.Auth.Header,
		},
		MaxAge: 86400,
	}))

	api := e.Group("/api/v1", apimw.Auth(cfg.Auth.Header))
	handlers.NewAuctionHandler(service, log).Register(api, apimw.RateLimit(limiterStore, log))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"service":   "auction-service",
			"ledger":    cfg.Ledger.Driver,
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	return e
}

// campaignForLeadership keeps trying to take the close watcher lease. The winner refreshes
// the lease itself until it loses the key.
func campaignForLeadership(ctx context.Context, election domain.LeaderElection, instanceID string, log logger.Logger) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		became, err := election.BecomeLeader(ctx, instanceID)
		if err != nil {
			log.Error("Failed to attempt leadership", "error", err)
		} else if became {
			log.Info("Became close watcher leader", "instance_id", instanceID)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
