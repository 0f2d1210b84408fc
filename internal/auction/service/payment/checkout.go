package payment

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"auctioneer/internal/auction/models"
	"auctioneer/internal/auction/ports"
	"auctioneer/internal/auction/settlement"
	id "auctioneer/pkg/domain"
	dErrors "auctioneer/pkg/domain-errors"
	"auctioneer/pkg/requestcontext"
)

type InitiateCommand struct {
	PaymentID   id.PaymentID
	BuyerID     id.UserID
	CheckoutRef string
}

func (c InitiateCommand) Validate() error {
	if c.PaymentID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "payment id is required")
	}
	if c.BuyerID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "buyer id is required")
	}
	if strings.TrimSpace(c.CheckoutRef) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "checkout reference is required")
	}
	return nil
}

type CompleteCommand struct {
	PaymentID   id.PaymentID
	CheckoutRef string
	Paid        bool
}

// CompleteResult reports the payment and, for a declined checkout, what
// settlement did with the auction.
type CompleteResult struct {
	Payment *models.Payment
	Outcome settlement.Outcome
}

// checkoutStates are the auction states from which a buyer may start paying.
var checkoutStates = map[models.AuctionStatus]bool{
	models.AuctionPaymentPending: true,
	models.AuctionLeasePending:   true,
	models.AuctionOfferPending:   true,
}

// Initiate hands a PENDING payment to the checkout provider. The payment
// moves to PROCESSING and the auction to PAYMENT_PROCESSING; the sweep no
// longer touches it.
func (s *Service) Initiate(ctx context.Context, cmd InitiateCommand) (*models.Payment, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	ctx, span := s.tracer.Start(ctx, "payment.Initiate")
	defer span.End()
	span.SetAttributes(attribute.String("payment.id", cmd.PaymentID.String()))

	auctionID, err := s.auctionOf(ctx, cmd.PaymentID)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	var out *models.Payment

	err = s.withRetry(ctx, "initiate_payment", func() error {
		return s.tx.RunInTx(ctx, auctionID, func(ctx context.Context, tx ports.Stores) error {
			a, p, err := load(ctx, tx, auctionID, cmd.PaymentID)
			if err != nil {
				return err
			}
			if p.BidderID != cmd.BuyerID {
				return dErrors.New(dErrors.CodeNotFound, "payment not found")
			}
			if p.Status != models.PaymentPending {
				return dErrors.New(dErrors.CodeInvalidState, "payment is not awaiting checkout")
			}
			if !checkoutStates[a.Status] {
				return dErrors.New(dErrors.CodeInvalidState, "auction is not awaiting payment")
			}

			p.Status = models.PaymentProcessing
			p.CheckoutRef = cmd.CheckoutRef
			p.UpdatedAt = now
			if err := tx.Payments.Update(ctx, p); err != nil {
				return translate(err, "payment not found")
			}
			a.Transition(models.AuctionPaymentProcessing, now)
			if err := tx.Auctions.Update(ctx, a); err != nil {
				return translate(err, "auction not found")
			}
			out = p
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "checkout started",
		"payment_id", out.ID,
		"auction_id", out.AuctionID,
		"kind", out.Kind,
	)
	return out, nil
}

// Complete records the provider's verdict on a PROCESSING payment. The
// callback must carry the reference Initiate stored. A paid
// checkout transfers the domain to the buyer; a declined one fails the
// payment exactly like a timeout would.
func (s *Service) Complete(ctx context.Context, cmd CompleteCommand) (CompleteResult, error) {
	if cmd.PaymentID.IsNil() {
		return CompleteResult{}, dErrors.New(dErrors.CodeInvalidInput, "payment id is required")
	}
	if strings.TrimSpace(cmd.CheckoutRef) == "" {
		return CompleteResult{}, dErrors.New(dErrors.CodeInvalidInput, "checkout reference is required")
	}
	ctx, span := s.tracer.Start(ctx, "payment.Complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("payment.id", cmd.PaymentID.String()),
		attribute.Bool("payment.paid", cmd.Paid),
	)

	auctionID, err := s.auctionOf(ctx, cmd.PaymentID)
	if err != nil {
		return CompleteResult{}, err
	}
	now := requestcontext.Now(ctx)
	var result CompleteResult

	err = s.withRetry(ctx, "complete_payment", func() error {
		return s.tx.RunInTx(ctx, auctionID, func(ctx context.Context, tx ports.Stores) error {
			result = CompleteResult{}
			a, p, err := load(ctx, tx, auctionID, cmd.PaymentID)
			if err != nil {
				return err
			}
			if p.Status != models.PaymentProcessing {
				return dErrors.New(dErrors.CodeInvalidState, "payment is not being processed")
			}
			if cmd.CheckoutRef != p.CheckoutRef {
				return dErrors.New(dErrors.CodeInvalidInput, "checkout reference does not match")
			}

			if !cmd.Paid {
				res, err := settlement.FailPayment(ctx, tx, a, p, now)
				if err != nil {
					return translate(err, "payment not found")
				}
				result = CompleteResult{Payment: p, Outcome: res.Outcome}
				return nil
			}

			if err := s.settle(ctx, tx, a, p, now); err != nil {
				return err
			}
			result = CompleteResult{Payment: p}
			return nil
		})
	})
	if err != nil {
		return CompleteResult{}, err
	}
	s.logger.InfoContext(ctx, "checkout completed",
		"payment_id", cmd.PaymentID,
		"auction_id", auctionID,
		"paid", cmd.Paid,
		"outcome", result.Outcome,
	)
	return result, nil
}

// GetPayment returns a payment by ID.
func (s *Service) GetPayment(ctx context.Context, paymentID id.PaymentID) (*models.Payment, error) {
	p, err := s.stores.Payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, translate(err, "payment not found")
	}
	return p, nil
}

func (s *Service) settle(ctx context.Context, tx ports.Stores, a *models.Auction, p *models.Payment, now time.Time) error {
	if err := tx.Payments.UpdateStatus(ctx, p.ID, models.PaymentPaid, now); err != nil {
		return translate(err, "payment not found")
	}
	p.Status = models.PaymentPaid
	p.UpdatedAt = now

	if !a.Transition(models.AuctionPaymentCompleted, now) {
		return dErrors.New(dErrors.CodeInvalidState, "auction is not awaiting payment")
	}
	buyer := p.BidderID
	a.CurrentWinner = &buyer
	if err := tx.Auctions.Update(ctx, a); err != nil {
		return translate(err, "auction not found")
	}

	expiryDays := a.ExpiryDuration
	if expiryDays <= 0 {
		expiryDays = defaultExpiryDays
	}
	err := settlement.MutateDomain(ctx, tx, a.DomainID, func(d *models.Domain) {
		d.Transfer(buyer, p.Amount, expiryDays, now)
	})
	return translate(err, "domain not found")
}

// auctionOf resolves the lock key for a payment before the transaction.
func (s *Service) auctionOf(ctx context.Context, paymentID id.PaymentID) (id.AuctionID, error) {
	p, err := s.stores.Payments.FindByID(ctx, paymentID)
	if err != nil {
		return id.AuctionID{}, translate(err, "payment not found")
	}
	return p.AuctionID, nil
}

func load(ctx context.Context, tx ports.Stores, auctionID id.AuctionID, paymentID id.PaymentID) (*models.Auction, *models.Payment, error) {
	a, err := tx.Auctions.FindByIDForUpdate(ctx, auctionID)
	if err != nil {
		return nil, nil, translate(err, "auction not found")
	}
	p, err := tx.Payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, nil, translate(err, "payment not found")
	}
	return a, p, nil
}
