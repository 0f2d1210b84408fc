package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"auctioneer/internal/auction/models"
	id "auctioneer/pkg/domain"
	"auctioneer/pkg/platform/sentinel"
)

type AuctionStore struct {
	s *Store
}

const auctionColumns = `
	id, domain_id, status, start_time, end_time, min_price, min_increment,
	reserve_price, lease_price, expiry_duration, current_bid, highest_bid,
	current_winner, winning_bid_id, version, created_at, updated_at`

func (st *AuctionStore) FindByID(ctx context.Context, auctionID id.AuctionID) (*models.Auction, error) {
	row := st.s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+auctionColumns+` FROM auctions WHERE id = $1`, uuid.UUID(auctionID))
	a, err := scanAuction(row)
	if err != nil {
		return nil, fmt.Errorf("find auction %s: %w", auctionID, mapError(err))
	}
	return a, nil
}

func (st *AuctionStore) FindByIDForUpdate(ctx context.Context, auctionID id.AuctionID) (*models.Auction, error) {
	row := st.s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+auctionColumns+` FROM auctions WHERE id = $1 FOR UPDATE`, uuid.UUID(auctionID))
	a, err := scanAuction(row)
	if err != nil {
		return nil, fmt.Errorf("lock auction %s: %w", auctionID, mapError(err))
	}
	return a, nil
}

func (st *AuctionStore) FindByStatusIn(ctx context.Context, statuses []models.AuctionStatus) ([]*models.Auction, error) {
	names := make([]string, len(statuses))
	for i, status := range statuses {
		names[i] = string(status)
	}
	rows, err := st.s.execer(ctx).QueryContext(ctx,
		`SELECT `+auctionColumns+` FROM auctions WHERE status = ANY($1) ORDER BY created_at`, pq.Array(names))
	if err != nil {
		return nil, fmt.Errorf("list auctions by status: %w", mapError(err))
	}
	defer rows.Close()

	var out []*models.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan auction: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate auctions: %w", err)
	}
	return out, nil
}

func (st *AuctionStore) Create(ctx context.Context, a *models.Auction) error {
	query := `
		INSERT INTO auctions (` + auctionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 1, $15, $16)
	`
	_, err := st.s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(a.ID),
		uuid.UUID(a.DomainID),
		string(a.Status),
		a.StartTime,
		a.EndTime,
		a.MinPrice,
		a.MinIncrement,
		a.ReservePrice,
		a.LeasePrice,
		a.ExpiryDuration,
		a.CurrentBid,
		a.HighestBid,
		nullableUser(a.CurrentWinner),
		nullableBid(a.WinningBidID),
		a.CreatedAt,
		updatedAt(a.UpdatedAt, a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("create auction %s: %w", a.ID, mapError(err))
	}
	a.Version = 1
	return nil
}

// Update writes a only if the stored version still matches a.Version, then
// bumps it.
func (st *AuctionStore) Update(ctx context.Context, a *models.Auction) error {
	query := `
		UPDATE auctions SET
			status = $2, start_time = $3, end_time = $4, min_price = $5,
			min_increment = $6, reserve_price = $7, lease_price = $8,
			expiry_duration = $9, current_bid = $10, highest_bid = $11,
			current_winner = $12, winning_bid_id = $13, updated_at = $14,
			version = version + 1
		WHERE id = $1 AND version = $15
	`
	res, err := st.s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(a.ID),
		string(a.Status),
		a.StartTime,
		a.EndTime,
		a.MinPrice,
		a.MinIncrement,
		a.ReservePrice,
		a.LeasePrice,
		a.ExpiryDuration,
		a.CurrentBid,
		a.HighestBid,
		nullableUser(a.CurrentWinner),
		nullableBid(a.WinningBidID),
		updatedAt(a.UpdatedAt, a.CreatedAt),
		a.Version,
	)
	if err != nil {
		return fmt.Errorf("update auction %s: %w", a.ID, mapError(err))
	}
	if err := expectOne(res, sentinel.ErrConflict); err != nil {
		// either the row is gone or someone else updated it first
		return fmt.Errorf("update auction %s at version %d: %w", a.ID, a.Version, err)
	}
	a.Version++
	return nil
}

func scanAuction(row scanner) (*models.Auction, error) {
	var (
		a                   models.Auction
		auctionID, domainID uuid.UUID
		status              string
		winner, winningBid  uuid.NullUUID
	)
	err := row.Scan(
		&auctionID,
		&domainID,
		&status,
		&a.StartTime,
		&a.EndTime,
		&a.MinPrice,
		&a.MinIncrement,
		&a.ReservePrice,
		&a.LeasePrice,
		&a.ExpiryDuration,
		&a.CurrentBid,
		&a.HighestBid,
		&winner,
		&winningBid,
		&a.Version,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.ID = id.AuctionID(auctionID)
	a.DomainID = id.DomainID(domainID)
	a.Status = models.AuctionStatus(status)
	if winner.Valid {
		w := id.UserID(winner.UUID)
		a.CurrentWinner = &w
	}
	if winningBid.Valid {
		b := id.BidID(winningBid.UUID)
		a.WinningBidID = &b
	}
	return &a, nil
}
