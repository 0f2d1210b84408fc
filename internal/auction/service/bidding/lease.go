package bidding

import (
	"context"

	"github.com/shopspring/decimal"

	"auctioneer/internal/auction/models"
	"auctioneer/internal/auction/ports"
	"auctioneer/internal/auction/pricing"
	id "auctioneer/pkg/domain"
	dErrors "auctioneer/pkg/domain-errors"
	"auctioneer/pkg/requestcontext"
)

// Eligibility tells a user which actions are open to them right now.
type Eligibility struct {
	CanBid         bool
	CanIncreaseBid bool
	CanLease       bool
	CanMakeOffer   bool
	MinimumBid     decimal.Decimal
	CurrentBid     decimal.Decimal
	Winning        bool
}

func (s *Service) Eligibility(ctx context.Context, auctionID id.AuctionID, userID id.UserID) (*Eligibility, error) {
	a, err := s.stores.Auctions.FindByID(ctx, auctionID)
	if err != nil {
		return nil, translate(err, "auction not found")
	}
	total, err := s.stores.Bids.CountByAuction(ctx, auctionID)
	if err != nil {
		return nil, translate(err, "auction not found")
	}
	mine, err := s.stores.Bids.CountByUserAndAuction(ctx, userID, auctionID)
	if err != nil {
		return nil, translate(err, "auction not found")
	}

	open := checkOpen(a, requestcontext.Now(ctx)) == nil
	snapshot := pricing.Snapshot{
		CurrentBid:   a.CurrentBid,
		HighestBid:   a.HighestBid,
		MinPrice:     a.MinPrice,
		MinIncrement: a.MinIncrement,
		ReservePrice: a.ReservePrice,
		Winner:       a.CurrentWinner,
		BidCount:     total,
	}
	return &Eligibility{
		CanBid:         open && mine == 0,
		CanIncreaseBid: open && mine > 0,
		CanLease:       open && s.leaseAvailable(ctx, a),
		CanMakeOffer:   open && total == 0,
		MinimumBid:     pricing.MinimumNextBid(snapshot, userID),
		CurrentBid:     a.CurrentBid,
		Winning:        a.IsWinner(userID),
	}, nil
}

// leaseAvailable: instant lease stays on offer while the price is below the
// configured fraction of the lease price.
func (s *Service) leaseAvailable(ctx context.Context, a *models.Auction) bool {
	if !a.LeasePrice.IsPositive() {
		return false
	}
	limit := a.LeasePrice.Mul(decimal.NewFromFloat(s.leaseThreshold(ctx)))
	return a.CurrentBid.LessThan(limit)
}

// Lease takes the auction off the bidding floor at its lease price. The
// auction waits in LEASE_PENDING for the payment; if the payment stalls the
// sweep reopens it.
func (s *Service) Lease(ctx context.Context, auctionID id.AuctionID, userID id.UserID) (*models.Payment, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}
	now := requestcontext.Now(ctx)
	var payment *models.Payment

	err := s.withRetry(ctx, "lease", func() error {
		return s.tx.RunInTx(ctx, auctionID, func(ctx context.Context, tx ports.Stores) error {
			a, err := tx.Auctions.FindByIDForUpdate(ctx, auctionID)
			if err != nil {
				return translate(err, "auction not found")
			}
			if err := checkOpen(a, now); err != nil {
				return err
			}
			if !s.leaseAvailable(ctx, a) {
				return dErrors.New(dErrors.CodeInvalidState, "lease is no longer available for this auction")
			}

			payment = &models.Payment{
				ID:        id.NewPaymentID(),
				AuctionID: a.ID,
				BidderID:  userID,
				Amount:    a.LeasePrice,
				Kind:      models.PaymentLease,
				Status:    models.PaymentPending,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.Payments.Create(ctx, payment); err != nil {
				return translate(err, "auction not found")
			}
			a.Transition(models.AuctionLeasePending, now)
			if err := tx.Auctions.Update(ctx, a); err != nil {
				return translate(err, "auction not found")
			}
			return s.setDomainStatus(ctx, tx, a.DomainID, models.DomainLeasePending)
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "auction leased",
		"auction_id", auctionID,
		"payment_id", payment.ID,
	)
	return payment, nil
}

func (s *Service) setDomainStatus(ctx context.Context, tx ports.Stores, domainID id.DomainID, status models.DomainStatus) error {
	d, err := tx.Domains.FindByID(ctx, domainID)
	if err != nil {
		return translate(err, "domain not found")
	}
	d.Status = status
	d.UpdatedAt = requestcontext.Now(ctx)
	return translate(tx.Domains.Update(ctx, d), "domain not found")
}
