// Package ledger selects the BidLedger backend named by configuration.
package ledger

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"live-auction/internal/config"
	"live-auction/internal/domain"
	"live-auction/internal/infrastructure/boltdb"
	"live-auction/internal/infrastructure/mysql"
	redisinfra "live-auction/internal/infrastructure/redis"
	"live-auction/pkg/logger"
	"live-auction/pkg/utils"
)

// Ledger is an open backend plus whatever it holds that must be released on shutdown.
type Ledger struct {
	domain.BidLedger
	close func() error
}

func (l *Ledger) Close() error {
	if l.close == nil {
		return nil
	}
	return l.close()
}

// Open connects the configured backend. rdb is only used by the redis driver and is owned by
// the caller. The mysql driver mirrors auctions into the auctions table before returning, since
// its transactions lock those rows.
func Open(ctx context.Context, cfg *config.Config, rdb *redis.Client, auctions []domain.Auction,
	log logger.Logger) (*Ledger, error) {
	var l *Ledger

	switch cfg.Ledger.Driver {
	case "mysql":
		db, err := utils.InitializeMysql(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		if cfg.MySQL.ApplySchema {
			if err := mysql.EnsureSchema(ctx, db); err != nil {
				db.Close()
				return nil, err
			}
		}
		if err := mysql.NewMySQLAuctionRepository(db).SyncCatalog(ctx, auctions); err != nil {
			db.Close()
			return nil, err
		}
		l = &Ledger{BidLedger: mysql.NewMySQLBidLedger(db), close: db.Close}

	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("redis ledger: no redis client")
		}
		l = &Ledger{BidLedger: redisinfra.NewRedisBidLedger(rdb)}

	case "bolt":
		bl, err := boltdb.Open(cfg.Bolt.Path)
		if err != nil {
			return nil, err
		}
		l = &Ledger{BidLedger: bl, close: bl.Close}

	default:
		return nil, fmt.Errorf("unsupported ledger driver %q", cfg.Ledger.Driver)
	}

	log.Info("Bid ledger ready", "driver", cfg.Ledger.Driver, "isolation", l.IsolationLevel())
	return l, nil
}
