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

type PaymentStore struct {
	s *Store
}

const paymentColumns = `id, auction_id, bid_id, bidder_id, amount, kind, status, checkout_ref, created_at, updated_at`

// Create relies on payments_open_per_auction_idx: a second open payment for
// the same auction surfaces as ErrConflict.
func (st *PaymentStore) Create(ctx context.Context, p *models.Payment) error {
	_, err := st.s.execer(ctx).ExecContext(ctx,
		`INSERT INTO payments (`+paymentColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.UUID(p.ID),
		uuid.UUID(p.AuctionID),
		nullableBid(p.BidID),
		uuid.UUID(p.BidderID),
		p.Amount,
		string(p.Kind),
		string(p.Status),
		p.CheckoutRef,
		p.CreatedAt,
		updatedAt(p.UpdatedAt, p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("create payment %s: %w", p.ID, mapError(err))
	}
	return nil
}

func (st *PaymentStore) FindByID(ctx context.Context, paymentID id.PaymentID) (*models.Payment, error) {
	row := st.s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, uuid.UUID(paymentID))
	p, err := scanPayment(row)
	if err != nil {
		return nil, fmt.Errorf("find payment %s: %w", paymentID, mapError(err))
	}
	return p, nil
}

func (st *PaymentStore) FindPendingPayments(ctx context.Context) ([]*models.Payment, error) {
	return st.list(ctx, "pending payments",
		`SELECT `+paymentColumns+` FROM payments WHERE status = $1 ORDER BY created_at`,
		string(models.PaymentPending))
}

func (st *PaymentStore) FindActiveByAuction(ctx context.Context, auctionID id.AuctionID) (*models.Payment, error) {
	row := st.s.execer(ctx).QueryRowContext(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE auction_id = $1 AND status IN ($2, $3)`,
		uuid.UUID(auctionID), string(models.PaymentPending), string(models.PaymentProcessing))
	p, err := scanPayment(row)
	if err != nil {
		return nil, fmt.Errorf("find open payment for auction %s: %w", auctionID, mapError(err))
	}
	return p, nil
}

func (st *PaymentStore) ListByAuction(ctx context.Context, auctionID id.AuctionID) ([]*models.Payment, error) {
	return st.list(ctx, "auction payments",
		`SELECT `+paymentColumns+` FROM payments WHERE auction_id = $1 ORDER BY created_at`,
		uuid.UUID(auctionID))
}

func (st *PaymentStore) UpdateStatus(ctx context.Context, paymentID id.PaymentID, status models.PaymentStatus, at time.Time) error {
	res, err := st.s.execer(ctx).ExecContext(ctx,
		`UPDATE payments SET status = $2, updated_at = $3 WHERE id = $1`,
		uuid.UUID(paymentID), string(status), at)
	if err != nil {
		return fmt.Errorf("update payment %s: %w", paymentID, mapError(err))
	}
	if err := expectOne(res, sentinel.ErrNotFound); err != nil {
		return fmt.Errorf("update payment %s: %w", paymentID, err)
	}
	return nil
}

func (st *PaymentStore) Update(ctx context.Context, p *models.Payment) error {
	res, err := st.s.execer(ctx).ExecContext(ctx, `
		UPDATE payments SET status = $2, amount = $3, checkout_ref = $4, updated_at = $5
		WHERE id = $1`,
		uuid.UUID(p.ID), string(p.Status), p.Amount, p.CheckoutRef, updatedAt(p.UpdatedAt, p.CreatedAt))
	if err != nil {
		return fmt.Errorf("update payment %s: %w", p.ID, mapError(err))
	}
	if err := expectOne(res, sentinel.ErrNotFound); err != nil {
		return fmt.Errorf("update payment %s: %w", p.ID, err)
	}
	return nil
}

func (st *PaymentStore) list(ctx context.Context, what, query string, args ...any) ([]*models.Payment, error) {
	rows, err := st.s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", what, mapError(err))
	}
	defer rows.Close()

	var out []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", what, err)
	}
	return out, nil
}

func scanPayment(row scanner) (*models.Payment, error) {
	var (
		p                         models.Payment
		paymentID, auctionID, who uuid.UUID
		bidID                     uuid.NullUUID
		kind, status              string
	)
	err := row.Scan(&paymentID, &auctionID, &bidID, &who, &p.Amount, &kind, &status, &p.CheckoutRef, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.ID = id.PaymentID(paymentID)
	p.AuctionID = id.AuctionID(auctionID)
	p.BidderID = id.UserID(who)
	p.Kind = models.PaymentKind(kind)
	p.Status = models.PaymentStatus(status)
	if bidID.Valid {
		b := id.BidID(bidID.UUID)
		p.BidID = &b
	}
	return &p, nil
}
