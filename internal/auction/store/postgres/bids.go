package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"auctioneer/internal/auction/models"
	id "auctioneer/pkg/domain"
)

type BidStore struct {
	s *Store
}

const bidColumns = `id, auction_id, domain_id, bidder_id, amount, current_bid, created_at`

func (st *BidStore) Create(ctx context.Context, b *models.Bid) error {
	_, err := st.s.execer(ctx).ExecContext(ctx,
		`INSERT INTO bids (`+bidColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.UUID(b.ID),
		uuid.UUID(b.AuctionID),
		uuid.UUID(b.DomainID),
		uuid.UUID(b.BidderID),
		b.Amount,
		b.CurrentBid,
		b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create bid %s: %w", b.ID, mapError(err))
	}
	return nil
}

func (st *BidStore) FindByID(ctx context.Context, bidID id.BidID) (*models.Bid, error) {
	row := st.s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+bidColumns+` FROM bids WHERE id = $1`, uuid.UUID(bidID))
	b, err := scanBid(row)
	if err != nil {
		return nil, fmt.Errorf("find bid %s: %w", bidID, mapError(err))
	}
	return b, nil
}

// FindHighestBid ranks by amount, earliest first on ties.
func (st *BidStore) FindHighestBid(ctx context.Context, auctionID id.AuctionID) (*models.Bid, error) {
	row := st.s.execer(ctx).QueryRowContext(ctx, `
		SELECT `+bidColumns+` FROM bids
		WHERE auction_id = $1
		ORDER BY amount DESC, created_at ASC
		LIMIT 1`, uuid.UUID(auctionID))
	b, err := scanBid(row)
	if err != nil {
		return nil, fmt.Errorf("find highest bid for auction %s: %w", auctionID, mapError(err))
	}
	return b, nil
}

func (st *BidStore) FindNextHighestBid(ctx context.Context, auctionID id.AuctionID, belowAmount decimal.Decimal, excluded []id.UserID) (*models.Bid, error) {
	row := st.s.execer(ctx).QueryRowContext(ctx, `
		SELECT `+bidColumns+` FROM bids
		WHERE auction_id = $1
		  AND amount < $2
		  AND NOT (bidder_id = ANY($3::uuid[]))
		ORDER BY amount DESC, created_at ASC
		LIMIT 1`, uuid.UUID(auctionID), belowAmount, pq.Array(userUUIDs(excluded)))
	b, err := scanBid(row)
	if err != nil {
		return nil, fmt.Errorf("find next highest bid for auction %s: %w", auctionID, mapError(err))
	}
	return b, nil
}

func (st *BidStore) CountByAuction(ctx context.Context, auctionID id.AuctionID) (int, error) {
	var n int
	err := st.s.execer(ctx).QueryRowContext(ctx,
		`SELECT count(*) FROM bids WHERE auction_id = $1`, uuid.UUID(auctionID)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count bids for auction %s: %w", auctionID, mapError(err))
	}
	return n, nil
}

func (st *BidStore) CountByUserAndAuction(ctx context.Context, userID id.UserID, auctionID id.AuctionID) (int, error) {
	var n int
	err := st.s.execer(ctx).QueryRowContext(ctx,
		`SELECT count(*) FROM bids WHERE auction_id = $1 AND bidder_id = $2`,
		uuid.UUID(auctionID), uuid.UUID(userID)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count bids for user %s: %w", userID, mapError(err))
	}
	return n, nil
}

func scanBid(row scanner) (*models.Bid, error) {
	var (
		b                             models.Bid
		bidID, auctionID, domainID, u uuid.UUID
	)
	if err := row.Scan(&bidID, &auctionID, &domainID, &u, &b.Amount, &b.CurrentBid, &b.CreatedAt); err != nil {
		return nil, err
	}
	b.ID = id.BidID(bidID)
	b.AuctionID = id.AuctionID(auctionID)
	b.DomainID = id.DomainID(domainID)
	b.BidderID = id.UserID(u)
	return &b, nil
}
