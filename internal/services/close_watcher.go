package services

import (
	"context"
	"fmt"
	"time"

	"live-auction/internal/domain"
	"live-auction/pkg/logger"

	"github.com/robfig/cron/v3"
)

// AuctionLister is the read path the watcher polls.
type AuctionLister interface {
	ListAuctionViews(ctx context.Context) ([]*domain.AuctionView, error)
}

// CloseWatcher periodically looks for auctions whose effective close has passed and publishes
// auction_ended once per auction. Only the elected leader sweeps.
type CloseWatcher struct {
	cron       *cron.Cron
	schedule   string
	auctions   AuctionLister
	stateCache domain.AuctionStateCache
	publisher  domain.EventPublisher
	leader     domain.LeaderElection
	instanceID string
	now        func() time.Time
	log        logger.Logger
}

func NewCloseWatcher(schedule string, auctions AuctionLister, stateCache domain.AuctionStateCache,
	publisher domain.EventPublisher, leader domain.LeaderElection, instanceID string,
	log logger.Logger) *CloseWatcher {
	return &CloseWatcher{
		cron:       cron.New(),
		schedule:   schedule,
		auctions:   auctions,
		stateCache: stateCache,
		publisher:  publisher,
		leader:     leader,
		instanceID: instanceID,
		now:        time.Now,
		log:        log,
	}
}

func (w *CloseWatcher) Start(ctx context.Context) error {
	w.log.Info("Starting close watcher", "schedule", w.schedule)

	_, err := w.cron.AddFunc(w.schedule, func() {
		if err := w.Sweep(ctx); err != nil {
			w.log.Error("Close sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule close watcher %q: %w", w.schedule, err)
	}

	w.cron.Start()
	return nil
}

// Stop waits for a running sweep to finish.
func (w *CloseWatcher) Stop() {
	w.log.Info("Stopping close watcher")
	<-w.cron.Stop().Done()
}

// Sweep runs one pass. Status changes are recorded in the state cache; an auction_ended event
// whose publish fails is retried on the next pass.
func (w *CloseWatcher) Sweep(ctx context.Context) error {
	if w.leader != nil {
		isLeader, err := w.leader.IsLeader(ctx, w.instanceID)
		if err != nil {
			return fmt.Errorf("check leadership: %w", err)
		}
		if !isLeader {
			return nil
		}
	}

	views, err := w.auctions.ListAuctionViews(ctx)
	if err != nil {
		return err
	}

	for _, view := range views {
		id := view.Auction.ID
		previous, found, err := w.stateCache.GetAuctionStatus(ctx, id)
		if err != nil {
			w.log.Error("Failed to read auction status", "auction_id", id, "error", err)
			continue
		}
		if found && previous == view.Status {
			continue
		}

		if view.Status == domain.AuctionEnded {
			event := &domain.BidEvent{
				Type:            domain.AuctionEnded,
				AuctionID:       id,
				UserID:          view.HighBidder,
				Amount:          view.HighestBid,
				Timestamp:       w.now().UTC(),
				EffectiveEndsAt: view.EffectiveEndsAt,
			}
			if err := w.publisher.PublishBidEvent(ctx, event); err != nil {
				w.log.Warn("Failed to publish auction ended", "auction_id", id, "error", err)
				continue
			}
			w.log.Info("Auction ended", "auction_id", id, "winner", view.HighBidder, "amount", view.HighestBid)
		}

		if err := w.stateCache.SetAuctionStatus(ctx, id, view.Status); err != nil {
			w.log.Error("Failed to store auction status", "auction_id", id, "error", err)
		}
	}

	return nil
}
