package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"auctioneer/internal/auction/models"
	id "auctioneer/pkg/domain"
	"auctioneer/pkg/platform/sentinel"
)

type OutboxStore struct {
	s *Store
}

const aggregateAuction = "auction"

func (st *OutboxStore) Append(ctx context.Context, e *models.OutboxEntry) error {
	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := st.s.execer(ctx).ExecContext(ctx, query,
		e.ID,
		aggregateAuction,
		uuid.UUID(e.AggregateID),
		e.EventType,
		e.Payload,
		e.Attempts,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", mapError(err))
	}
	return nil
}

// FetchPending returns unprocessed entries oldest first.
func (st *OutboxStore) FetchPending(ctx context.Context, limit int) ([]*models.OutboxEntry, error) {
	rows, err := st.s.execer(ctx).QueryContext(ctx, `
		SELECT id, aggregate_id, event_type, payload, attempts, created_at, processed_at
		FROM outbox
		WHERE processed_at IS NULL
		ORDER BY created_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", mapError(err))
	}
	defer rows.Close()

	var out []*models.OutboxEntry
	for rows.Next() {
		var (
			e           models.OutboxEntry
			aggregateID uuid.UUID
			processed   sql.NullTime
		)
		if err := rows.Scan(&e.ID, &aggregateID, &e.EventType, &e.Payload, &e.Attempts, &e.CreatedAt, &processed); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		e.AggregateID = id.AuctionID(aggregateID)
		if processed.Valid {
			e.ProcessedAt = &processed.Time
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return out, nil
}

func (st *OutboxStore) MarkProcessed(ctx context.Context, entryID uuid.UUID, at time.Time) error {
	res, err := st.s.execer(ctx).ExecContext(ctx,
		`UPDATE outbox SET processed_at = $2 WHERE id = $1`, entryID, at)
	if err != nil {
		return fmt.Errorf("mark outbox entry %s processed: %w", entryID, mapError(err))
	}
	return expectOne(res, sentinel.ErrNotFound)
}

func (st *OutboxStore) MarkFailedAttempt(ctx context.Context, entryID uuid.UUID) error {
	res, err := st.s.execer(ctx).ExecContext(ctx,
		`UPDATE outbox SET attempts = attempts + 1 WHERE id = $1`, entryID)
	if err != nil {
		return fmt.Errorf("mark outbox entry %s failed: %w", entryID, mapError(err))
	}
	return expectOne(res, sentinel.ErrNotFound)
}
