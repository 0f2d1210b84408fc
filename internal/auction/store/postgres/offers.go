package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"auctioneer/internal/auction/models"
	id "auctioneer/pkg/domain"
	"auctioneer/pkg/platform/sentinel"
)

type OfferStore struct {
	s *Store
}

const offerColumns = `id, auction_id, bidder_id, amount, status, created_at, updated_at`

func (st *OfferStore) Create(ctx context.Context, o *models.Offer) error {
	_, err := st.s.execer(ctx).ExecContext(ctx,
		`INSERT INTO offers (`+offerColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.UUID(o.ID),
		uuid.UUID(o.AuctionID),
		uuid.UUID(o.BidderID),
		o.Amount,
		string(o.Status),
		o.CreatedAt,
		updatedAt(o.UpdatedAt, o.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("create offer %s: %w", o.ID, mapError(err))
	}
	return nil
}

func (st *OfferStore) FindByID(ctx context.Context, offerID id.OfferID) (*models.Offer, error) {
	row := st.s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+offerColumns+` FROM offers WHERE id = $1`, uuid.UUID(offerID))
	o, err := scanOffer(row)
	if err != nil {
		return nil, fmt.Errorf("find offer %s: %w", offerID, mapError(err))
	}
	return o, nil
}

func (st *OfferStore) FindPendingByAuction(ctx context.Context, auctionID id.AuctionID) (*models.Offer, error) {
	row := st.s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+offerColumns+` FROM offers WHERE auction_id = $1 AND status = $2`,
		uuid.UUID(auctionID), string(models.OfferPending))
	o, err := scanOffer(row)
	if err != nil {
		return nil, fmt.Errorf("find pending offer for auction %s: %w", auctionID, mapError(err))
	}
	return o, nil
}

func (st *OfferStore) UpdateStatus(ctx context.Context, offerID id.OfferID, status models.OfferStatus, at time.Time) error {
	res, err := st.s.execer(ctx).ExecContext(ctx,
		`UPDATE offers SET status = $2, updated_at = $3 WHERE id = $1`,
		uuid.UUID(offerID), string(status), at)
	if err != nil {
		return fmt.Errorf("update offer %s: %w", offerID, mapError(err))
	}
	if err := expectOne(res, sentinel.ErrNotFound); err != nil {
		return fmt.Errorf("update offer %s: %w", offerID, err)
	}
	return nil
}

func scanOffer(row scanner) (*models.Offer, error) {
	var (
		o                       models.Offer
		offerID, auctionID, who uuid.UUID
		status                  string
	)
	if err := row.Scan(&offerID, &auctionID, &who, &o.Amount, &status, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.ID = id.OfferID(offerID)
	o.AuctionID = id.AuctionID(auctionID)
	o.BidderID = id.UserID(who)
	o.Status = models.OfferStatus(status)
	return &o, nil
}
