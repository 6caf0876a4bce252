package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"live-auction/internal/domain"
)

// MySQLAuctionRepository mirrors the static catalog into the auctions table. The ledger locks
// these rows to serialize place-bid transactions per auction.
type MySQLAuctionRepository struct {
	db *sql.DB
}

func NewMySQLAuctionRepository(db *sql.DB) *MySQLAuctionRepository {
	return &MySQLAuctionRepository{db: db}
}

// SyncCatalog upserts every catalog entry.
func (r *MySQLAuctionRepository) SyncCatalog(ctx context.Context, auctions []domain.Auction) error {
	query := `
        INSERT INTO auctions (id, title, description, ends_at)
        VALUES (?, ?, ?, ?)
        ON DUPLICATE KEY UPDATE title = VALUES(title), description = VALUES(description), ends_at = VALUES(ends_at)
    `
	for _, auction := range auctions {
		_, err := r.db.ExecContext(ctx, query,
			auction.ID, auction.Title, auction.Description, auction.EndsAt.UTC())
		if err != nil {
			return fmt.Errorf("sync auction %s: %w", auction.ID, err)
		}
	}
	return nil
}

