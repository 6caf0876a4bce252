package mysql

import (
	"context"
	"database/sql"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS auctions (
        id          VARCHAR(64)  NOT NULL PRIMARY KEY,
        title       VARCHAR(255) NOT NULL,
        description TEXT         NOT NULL,
        ends_at     DATETIME(6)  NOT NULL,
        updated_at  DATETIME(6)  NOT NULL DEFAULT CURRENT_TIMESTAMP(6) ON UPDATE CURRENT_TIMESTAMP(6)
    ) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS bids (
        seq        BIGINT       NOT NULL AUTO_INCREMENT PRIMARY KEY,
        id         CHAR(36)     NOT NULL UNIQUE,
        auction_id VARCHAR(64)  NOT NULL,
        bidder_id  VARCHAR(255) NOT NULL,
        amount     BIGINT       NOT NULL,
        created_at DATETIME(6)  NOT NULL,
        INDEX idx_bids_auction_seq (auction_id, seq),
        INDEX idx_bids_auction_amount (auction_id, amount),
        CONSTRAINT fk_bids_auction FOREIGN KEY (auction_id) REFERENCES auctions (id)
    ) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS auction_events (
        id                BIGINT       NOT NULL AUTO_INCREMENT PRIMARY KEY,
        auction_id        VARCHAR(64)  NOT NULL,
        event_type        VARCHAR(32)  NOT NULL,
        user_id           VARCHAR(255) NOT NULL DEFAULT '',
        amount            BIGINT       NOT NULL DEFAULT 0,
        event_timestamp   DATETIME(6)  NOT NULL,
        effective_ends_at DATETIME(6)  NULL,
        created_at        DATETIME(6)  NOT NULL,
        INDEX idx_events_auction (auction_id, event_timestamp)
    ) ENGINE=InnoDB`,
}

// EnsureSchema creates the tables used by the ledger and the event archive.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
