package payment_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"auctioneer/internal/auction/models"
	"auctioneer/internal/auction/ports"
	"auctioneer/internal/auction/service/payment"
	"auctioneer/internal/auction/settlement"
	"auctioneer/internal/auction/store/memory"
	id "auctioneer/pkg/domain"
	dErrors "auctioneer/pkg/domain-errors"
	"auctioneer/pkg/requestcontext"
)

type staticSettings map[string]float64

func (s staticSettings) GetNumeric(_ context.Context, key string, fallback float64) float64 {
	if v, ok := s[key]; ok {
		return v
	}
	return fallback
}

type PaymentSuite struct {
	suite.Suite
	ctx      context.Context
	store    *memory.Store
	settings staticSettings
	service  *payment.Service
	now      time.Time
}

func TestPaymentSuite(t *testing.T) {
	suite.Run(t, new(PaymentSuite))
}

func (s *PaymentSuite) SetupTest() {
	s.now = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.store = memory.New()
	s.settings = staticSettings{}

	svc, err := payment.New(s.store.Stores(), s.store,
		payment.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		payment.WithSettings(s.settings),
		payment.WithClock(func() time.Time { return s.now }),
		payment.WithConfig(payment.Config{PendingThreshold: time.Hour}),
	)
	s.Require().NoError(err)
	s.service = svc
}

// seedAuction creates an ENDED auction with reserve 60 and bids from distinct
// bidders at the given amounts, oldest first.
func (s *PaymentSuite) seedAuction(end time.Time, amounts ...int64) *models.Auction {
	dom := &models.Domain{ID: id.NewDomainID(), Name: "cascade.example", Status: models.DomainAuctionEnded}
	s.Require().NoError(s.store.Stores().Domains.Create(s.ctx, dom))

	a := &models.Auction{
		ID:             id.NewAuctionID(),
		DomainID:       dom.ID,
		Status:         models.AuctionEnded,
		StartTime:      end.Add(-24 * time.Hour),
		EndTime:        end,
		MinPrice:       decimal.NewFromInt(10),
		MinIncrement:   decimal.NewFromInt(5),
		ReservePrice:   decimal.NewFromInt(60),
		LeasePrice:     decimal.NewFromInt(500),
		ExpiryDuration: 30,
		CurrentBid:     decimal.NewFromInt(85),
		HighestBid:     decimal.NewFromInt(120),
		CreatedAt:      end.Add(-48 * time.Hour),
	}
	s.Require().NoError(s.store.Stores().Auctions.Create(s.ctx, a))

	for i, amount := range amounts {
		s.Require().NoError(s.store.Stores().Bids.Create(s.ctx, &models.Bid{
			ID:        id.NewBidID(),
			AuctionID: a.ID,
			DomainID:  dom.ID,
			BidderID:  id.NewUserID(),
			Amount:    decimal.NewFromInt(amount),
			CreatedAt: a.StartTime.Add(time.Duration(i+1) * time.Minute),
		}))
	}
	return a
}

// award resolves an ENDED auction at the given time.
func (s *PaymentSuite) award(a *models.Auction, at time.Time) *models.Payment {
	var p *models.Payment
	err := s.store.RunInTx(s.ctx, a.ID, func(ctx context.Context, tx ports.Stores) error {
		locked, err := tx.Auctions.FindByIDForUpdate(ctx, a.ID)
		if err != nil {
			return err
		}
		res, err := settlement.ResolveEnded(ctx, tx, locked, at)
		if err != nil {
			return err
		}
		p = res.Payment
		return nil
	})
	s.Require().NoError(err)
	s.Require().NotNil(p)
	return p
}

func (s *PaymentSuite) auction(auctionID id.AuctionID) *models.Auction {
	a, err := s.store.Stores().Auctions.FindByID(s.ctx, auctionID)
	s.Require().NoError(err)
	return a
}

func (s *PaymentSuite) domain(domainID id.DomainID) *models.Domain {
	d, err := s.store.Stores().Domains.FindByID(s.ctx, domainID)
	s.Require().NoError(err)
	return d
}

func (s *PaymentSuite) bidAmount(bidID *id.BidID) decimal.Decimal {
	s.Require().NotNil(bidID)
	b, err := s.store.Stores().Bids.FindByID(s.ctx, *bidID)
	s.Require().NoError(err)
	return b.Amount
}

func (s *PaymentSuite) TestSweepCascadesDownTheBidLadder() {
	a := s.seedAuction(s.now.Add(-3*time.Hour), 50, 80, 120)
	first := s.award(a, s.now.Add(-2*time.Hour))
	s.True(s.bidAmount(first.BidID).Equal(decimal.NewFromInt(120)))

	report, err := s.service.RunPass(s.ctx, payment.PassConfig{Now: s.now, PendingThreshold: time.Hour})
	s.Require().NoError(err)
	s.Equal(1, report.Expired)
	s.Equal(1, report.Cascaded)

	failed, err := s.store.Stores().Payments.FindByID(s.ctx, first.ID)
	s.Require().NoError(err)
	s.Equal(models.PaymentFailed, failed.Status)

	pending, err := s.store.Stores().Payments.FindPendingPayments(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	second := pending[0]
	s.True(s.bidAmount(second.BidID).Equal(decimal.NewFromInt(80)))
	s.Equal(models.AuctionPaymentPending, s.auction(a.ID).Status)

	s.Run("the runner-up also lets it lapse", func() {
		later := s.now.Add(2 * time.Hour)
		report, err := s.service.RunPass(s.ctx, payment.PassConfig{Now: later, PendingThreshold: time.Hour})
		s.Require().NoError(err)
		s.Equal(1, report.Failed)

		s.Equal(models.AuctionFailed, s.auction(a.ID).Status)
		s.Equal(models.DomainListed, s.domain(a.DomainID).Status)

		pending, err := s.store.Stores().Payments.FindPendingPayments(s.ctx)
		s.Require().NoError(err)
		s.Empty(pending)
	})
}

func (s *PaymentSuite) TestSweepLeavesFreshPaymentsAlone() {
	a := s.seedAuction(s.now.Add(-time.Hour), 80)
	p := s.award(a, s.now.Add(-10*time.Minute))

	report, err := s.service.RunPass(s.ctx, payment.PassConfig{Now: s.now, PendingThreshold: time.Hour})
	s.Require().NoError(err)
	s.Equal(1, report.Scanned)
	s.Zero(report.Expired)

	stored, err := s.store.Stores().Payments.FindByID(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(models.PaymentPending, stored.Status)
}

func (s *PaymentSuite) TestPassReadsThresholdFromSettings() {
	a := s.seedAuction(s.now.Add(-time.Hour), 80)
	p := s.award(a, s.now.Add(-10*time.Minute))

	s.settings[models.SettingPendingThresholdSeconds] = 300
	s.Require().NoError(s.service.Pass(s.ctx))

	stored, err := s.store.Stores().Payments.FindByID(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(models.PaymentFailed, stored.Status)
	s.Equal(models.AuctionFailed, s.auction(a.ID).Status)
}

func (s *PaymentSuite) TestSweepIsIdempotent() {
	a := s.seedAuction(s.now.Add(-3*time.Hour), 70, 120)
	s.award(a, s.now.Add(-2*time.Hour))

	cfg := payment.PassConfig{Now: s.now, PendingThreshold: time.Hour}
	_, err := s.service.RunPass(s.ctx, cfg)
	s.Require().NoError(err)
	report, err := s.service.RunPass(s.ctx, cfg)
	s.Require().NoError(err)
	s.Zero(report.Expired, "the runner-up's payment was created at the pass time")

	payments, err := s.store.Stores().Payments.ListByAuction(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Len(payments, 2)
}

func (s *PaymentSuite) TestLeaseTimeoutReopensBeforeEnd() {
	dom := &models.Domain{ID: id.NewDomainID(), Name: "lease.example", Status: models.DomainLeasePending}
	s.Require().NoError(s.store.Stores().Domains.Create(s.ctx, dom))
	a := &models.Auction{
		ID: id.NewAuctionID(), DomainID: dom.ID, Status: models.AuctionLeasePending,
		StartTime: s.now.Add(-4 * time.Hour), EndTime: s.now.Add(4 * time.Hour),
		MinPrice: decimal.NewFromInt(10), MinIncrement: decimal.NewFromInt(1),
		ReservePrice: decimal.NewFromInt(10), LeasePrice: decimal.NewFromInt(100),
		CurrentBid: decimal.NewFromInt(10), HighestBid: decimal.NewFromInt(10),
	}
	s.Require().NoError(s.store.Stores().Auctions.Create(s.ctx, a))
	lease := &models.Payment{
		ID: id.NewPaymentID(), AuctionID: a.ID, BidderID: id.NewUserID(),
		Amount: a.LeasePrice, Kind: models.PaymentLease, Status: models.PaymentPending,
		CreatedAt: s.now.Add(-2 * time.Hour),
	}
	s.Require().NoError(s.store.Stores().Payments.Create(s.ctx, lease))

	report, err := s.service.RunPass(s.ctx, payment.PassConfig{Now: s.now, PendingThreshold: time.Hour})
	s.Require().NoError(err)
	s.Equal(1, report.Reopened)
	s.Equal(models.AuctionActive, s.auction(a.ID).Status)
	s.Equal(models.DomainAuctionActive, s.domain(dom.ID).Status)
}

func (s *PaymentSuite) TestCheckoutPaidTransfersDomain() {
	a := s.seedAuction(s.now.Add(-time.Hour), 50, 120)
	p := s.award(a, s.now.Add(-time.Minute))

	started, err := s.service.Initiate(s.ctx, payment.InitiateCommand{
		PaymentID: p.ID, BuyerID: p.BidderID, CheckoutRef: "chk_123",
	})
	s.Require().NoError(err)
	s.Equal(models.PaymentProcessing, started.Status)
	s.Equal(models.AuctionPaymentProcessing, s.auction(a.ID).Status)

	report, err := s.service.RunPass(s.ctx, payment.PassConfig{Now: s.now.Add(24 * time.Hour), PendingThreshold: time.Hour})
	s.Require().NoError(err)
	s.Zero(report.Expired, "processing payments are not swept")

	res, err := s.service.Complete(s.ctx, payment.CompleteCommand{PaymentID: p.ID, CheckoutRef: "chk_123", Paid: true})
	s.Require().NoError(err)
	s.Equal(models.PaymentPaid, res.Payment.Status)

	final := s.auction(a.ID)
	s.Equal(models.AuctionPaymentCompleted, final.Status)
	s.True(final.IsWinner(p.BidderID))

	d := s.domain(a.DomainID)
	s.Equal(models.DomainPaymentCompleted, d.Status)
	s.Require().NotNil(d.CurrentOwner)
	s.Equal(p.BidderID, *d.CurrentOwner)
	s.Require().NotNil(d.RenewalPrice)
	s.True(d.RenewalPrice.Equal(p.Amount))
	s.Require().NotNil(d.ExpiryDate)
	s.Equal(s.now.AddDate(0, 0, 30), *d.ExpiryDate)
}

func (s *PaymentSuite) TestCheckoutDeclinedCascades() {
	a := s.seedAuction(s.now.Add(-time.Hour), 80, 120)
	p := s.award(a, s.now.Add(-time.Minute))

	_, err := s.service.Initiate(s.ctx, payment.InitiateCommand{PaymentID: p.ID, BuyerID: p.BidderID, CheckoutRef: "chk_9"})
	s.Require().NoError(err)

	res, err := s.service.Complete(s.ctx, payment.CompleteCommand{PaymentID: p.ID, CheckoutRef: "chk_9", Paid: false})
	s.Require().NoError(err)
	s.Equal(settlement.OutcomeAwarded, res.Outcome)
	s.Equal(models.PaymentFailed, res.Payment.Status)
	s.Equal(models.AuctionPaymentPending, s.auction(a.ID).Status)

	active, err := s.store.Stores().Payments.FindActiveByAuction(s.ctx, a.ID)
	s.Require().NoError(err)
	s.True(s.bidAmount(active.BidID).Equal(decimal.NewFromInt(80)))
}

func (s *PaymentSuite) TestCheckoutRejections() {
	a := s.seedAuction(s.now.Add(-time.Hour), 120)
	p := s.award(a, s.now.Add(-time.Minute))

	s.Run("someone else's payment", func() {
		_, err := s.service.Initiate(s.ctx, payment.InitiateCommand{PaymentID: p.ID, BuyerID: id.NewUserID(), CheckoutRef: "x"})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
	s.Run("missing checkout reference", func() {
		_, err := s.service.Initiate(s.ctx, payment.InitiateCommand{PaymentID: p.ID, BuyerID: p.BidderID})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
	s.Run("completing before checkout started", func() {
		_, err := s.service.Complete(s.ctx, payment.CompleteCommand{PaymentID: p.ID, CheckoutRef: "a", Paid: true})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
	s.Run("unknown payment", func() {
		_, err := s.service.GetPayment(s.ctx, id.NewPaymentID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
	s.Run("checkout started twice", func() {
		_, err := s.service.Initiate(s.ctx, payment.InitiateCommand{PaymentID: p.ID, BuyerID: p.BidderID, CheckoutRef: "a"})
		s.Require().NoError(err)
		_, err = s.service.Initiate(s.ctx, payment.InitiateCommand{PaymentID: p.ID, BuyerID: p.BidderID, CheckoutRef: "b"})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
	s.Run("mismatched checkout reference", func() {
		_, err := s.service.Complete(s.ctx, payment.CompleteCommand{PaymentID: p.ID, CheckoutRef: "zzz", Paid: true})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
	s.Run("completion without a checkout reference", func() {
		for _, ref := range []string{"", "   "} {
			_, err := s.service.Complete(s.ctx, payment.CompleteCommand{PaymentID: p.ID, CheckoutRef: ref, Paid: true})
			s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
		}
		stored, err := s.store.Stores().Payments.FindByID(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Equal(models.PaymentProcessing, stored.Status)
		s.Equal(models.AuctionPaymentProcessing, s.auction(a.ID).Status)
	})
}

func (s *PaymentSuite) TestSweepThresholdIsExclusive() {
	a := s.seedAuction(s.now.Add(-2*time.Hour), 80)
	p := s.award(a, s.now.Add(-time.Hour))

	report, err := s.service.RunPass(s.ctx, payment.PassConfig{Now: s.now, PendingThreshold: time.Hour})
	s.Require().NoError(err)
	s.Zero(report.Expired, "exactly one threshold old is not yet expired")
	stored, err := s.store.Stores().Payments.FindByID(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(models.PaymentPending, stored.Status)

	report, err = s.service.RunPass(s.ctx, payment.PassConfig{Now: s.now.Add(time.Second), PendingThreshold: time.Hour})
	s.Require().NoError(err)
	s.Equal(1, report.Expired)
	stored, err = s.store.Stores().Payments.FindByID(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(models.PaymentFailed, stored.Status)
}
