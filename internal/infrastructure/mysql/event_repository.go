package mysql

import (
	"context"
	"database/sql"
	"time"

	"live-auction/internal/domain"
)

// MySQLEventRepository archives events received from the pub/sub channel.
type MySQLEventRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewMySQLEventRepository(db *sql.DB) *MySQLEventRepository {
	return &MySQLEventRepository{db: db, now: time.Now}
}

func (r *MySQLEventRepository) SaveBidEvent(ctx context.Context, event *domain.BidEvent) error {
	query := `
        INSERT INTO auction_events (auction_id, event_type, user_id, amount, event_timestamp, effective_ends_at, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `

	var endsAt sql.NullTime
	if event.EffectiveEndsAt != nil {
		endsAt = sql.NullTime{Time: event.EffectiveEndsAt.UTC(), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		event.AuctionID, string(event.Type), event.UserID, event.Amount,
		event.Timestamp.UTC(), endsAt, r.now().UTC())
	return err
}

// GetBidHistory returns archived bid_accepted events for an auction, oldest first.
func (r *MySQLEventRepository) GetBidHistory(ctx context.Context, auctionID string) ([]*domain.BidEvent, error) {
	query := `
        SELECT auction_id, event_type, user_id, amount, event_timestamp
        FROM auction_events
        WHERE auction_id = ? AND event_type = ?
        ORDER BY event_timestamp ASC
    `

	rows, err := r.db.QueryContext(ctx, query, auctionID, string(domain.BidAccepted))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []*domain.BidEvent{}
	for rows.Next() {
		var event domain.BidEvent
		var eventType string

		err := rows.Scan(&event.AuctionID, &eventType, &event.UserID, &event.Amount, &event.Timestamp)
		if err != nil {
			return nil, err
		}

		event.Type = domain.BidEventType(eventType)
		events = append(events, &event)
	}

	return events, rows.Err()
}
