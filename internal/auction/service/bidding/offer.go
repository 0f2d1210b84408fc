package bidding

import (
	"context"

	"github.com/shopspring/decimal"

	"auctioneer/internal/auction/models"
	"auctioneer/internal/auction/ports"
	"auctioneer/internal/auction/settlement"
	id "auctioneer/pkg/domain"
	dErrors "auctioneer/pkg/domain-errors"
	"auctioneer/pkg/requestcontext"
)

type MakeOfferCommand struct {
	AuctionID id.AuctionID
	BidderID  id.UserID
	Amount    decimal.Decimal
}

// MakeOffer proposes a fixed price before anyone has bid. Bidding is paused
// in OFFER_PENDING until the offer is accepted or rejected.
func (s *Service) MakeOffer(ctx context.Context, cmd MakeOfferCommand) (*models.Offer, error) {
	if cmd.BidderID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "bidder id is required")
	}
	if !cmd.Amount.IsPositive() || !cmd.Amount.Equal(cmd.Amount.Round(2)) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "offer amount must be positive with at most two decimal places")
	}
	now := requestcontext.Now(ctx)
	var offer *models.Offer

	err := s.withRetry(ctx, "make_offer", func() error {
		return s.tx.RunInTx(ctx, cmd.AuctionID, func(ctx context.Context, tx ports.Stores) error {
			a, err := tx.Auctions.FindByIDForUpdate(ctx, cmd.AuctionID)
			if err != nil {
				return translate(err, "auction not found")
			}
			if err := checkOpen(a, now); err != nil {
				return err
			}
			bids, err := tx.Bids.CountByAuction(ctx, a.ID)
			if err != nil {
				return translate(err, "auction not found")
			}
			if bids > 0 {
				return dErrors.New(dErrors.CodeInvalidState, "offers are closed once bidding has started")
			}
			if cmd.Amount.LessThan(a.MinPrice) {
				return dErrors.New(dErrors.CodeBidTooLow, "offer must be at least "+a.MinPrice.StringFixed(2))
			}

			offer = &models.Offer{
				ID:        id.NewOfferID(),
				AuctionID: a.ID,
				BidderID:  cmd.BidderID,
				Amount:    cmd.Amount,
				Status:    models.OfferPending,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.Offers.Create(ctx, offer); err != nil {
				return translate(err, "auction not found")
			}
			a.Transition(models.AuctionOfferPending, now)
			if err := tx.Auctions.Update(ctx, a); err != nil {
				return translate(err, "auction not found")
			}
			return s.setDomainStatus(ctx, tx, a.DomainID, models.DomainOfferPending)
		})
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "offer made", "auction_id", cmd.AuctionID, "offer_id", offer.ID)
	return offer, nil
}

// AcceptOffer turns a pending offer into a PENDING payment. The auction stays
// in OFFER_PENDING until checkout starts or the payment times out. Offers can
// only be accepted inside the bidding window.
func (s *Service) AcceptOffer(ctx context.Context, auctionID id.AuctionID, offerID id.OfferID) (*models.Payment, error) {
	now := requestcontext.Now(ctx)
	var payment *models.Payment

	err := s.withRetry(ctx, "accept_offer", func() error {
		return s.tx.RunInTx(ctx, auctionID, func(ctx context.Context, tx ports.Stores) error {
			a, offer, err := s.loadPendingOffer(ctx, tx, auctionID, offerID)
			if err != nil {
				return err
			}
			if !now.Before(a.EndTime) {
				return dErrors.New(dErrors.CodeInvalidState, "auction has ended")
			}
			if err := tx.Offers.UpdateStatus(ctx, offer.ID, models.OfferAccepted, now); err != nil {
				return translate(err, "offer not found")
			}
			payment = &models.Payment{
				ID:        id.NewPaymentID(),
				AuctionID: a.ID,
				BidderID:  offer.BidderID,
				Amount:    offer.Amount,
				Kind:      models.PaymentOffer,
				Status:    models.PaymentPending,
				CreatedAt: now,
				UpdatedAt: now,
			}
			return translate(tx.Payments.Create(ctx, payment), "auction not found")
		})
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "offer accepted", "auction_id", auctionID, "offer_id", offerID, "payment_id", payment.ID)
	return payment, nil
}

// RejectOffer declines a pending offer and reopens bidding.
func (s *Service) RejectOffer(ctx context.Context, auctionID id.AuctionID, offerID id.OfferID) error {
	now := requestcontext.Now(ctx)

	err := s.withRetry(ctx, "reject_offer", func() error {
		return s.tx.RunInTx(ctx, auctionID, func(ctx context.Context, tx ports.Stores) error {
			a, offer, err := s.loadPendingOffer(ctx, tx, auctionID, offerID)
			if err != nil {
				return err
			}
			if err := tx.Offers.UpdateStatus(ctx, offer.ID, models.OfferRejected, now); err != nil {
				return translate(err, "offer not found")
			}
			_, err = settlement.Reopen(ctx, tx, a, now)
			return translate(err, "auction not found")
		})
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "offer rejected", "auction_id", auctionID, "offer_id", offerID)
	return nil
}

func (s *Service) loadPendingOffer(ctx context.Context, tx ports.Stores, auctionID id.AuctionID, offerID id.OfferID) (*models.Auction, *models.Offer, error) {
	a, err := tx.Auctions.FindByIDForUpdate(ctx, auctionID)
	if err != nil {
		return nil, nil, translate(err, "auction not found")
	}
	offer, err := tx.Offers.FindByID(ctx, offerID)
	if err != nil {
		return nil, nil, translate(err, "offer not found")
	}
	if offer.AuctionID != a.ID {
		return nil, nil, dErrors.New(dErrors.CodeNotFound, "offer not found")
	}
	if offer.Status != models.OfferPending || a.Status != models.AuctionOfferPending {
		return nil, nil, dErrors.New(dErrors.CodeInvalidState, "offer is no longer pending")
	}
	return a, offer, nil
}
