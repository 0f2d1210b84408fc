package settlement_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"auctioneer/internal/auction/models"
	"auctioneer/internal/auction/ports"
	"auctioneer/internal/auction/settlement"
	"auctioneer/internal/auction/store/memory"
	id "auctioneer/pkg/domain"
	"auctioneer/pkg/platform/sentinel"
)

type SettlementSuite struct {
	suite.Suite
	ctx     context.Context
	store   *memory.Store
	now     time.Time
	auction *models.Auction
	domain  *models.Domain
}

func TestSettlementSuite(t *testing.T) {
	suite.Run(t, new(SettlementSuite))
}

func (s *SettlementSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.New()
	s.now = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

	s.domain = &models.Domain{ID: id.NewDomainID(), Name: "example.com", Status: models.DomainAuctionEnded}
	s.Require().NoError(s.store.Stores().Domains.Create(s.ctx, s.domain))

	s.auction = &models.Auction{
		ID:           id.NewAuctionID(),
		DomainID:     s.domain.ID,
		Status:       models.AuctionEnded,
		StartTime:    s.now.Add(-48 * time.Hour),
		EndTime:      s.now.Add(-time.Hour),
		MinPrice:     decimal.NewFromInt(10),
		MinIncrement: decimal.NewFromInt(5),
		ReservePrice: decimal.NewFromInt(60),
		CurrentBid:   decimal.NewFromInt(85),
		HighestBid:   decimal.NewFromInt(120),
		CreatedAt:    s.now.Add(-72 * time.Hour),
	}
	s.Require().NoError(s.store.Stores().Auctions.Create(s.ctx, s.auction))
}

func (s *SettlementSuite) placeBid(amount int64, offset time.Duration) *models.Bid {
	b := &models.Bid{
		ID:        id.NewBidID(),
		AuctionID: s.auction.ID,
		DomainID:  s.domain.ID,
		BidderID:  id.NewUserID(),
		Amount:    decimal.NewFromInt(amount),
		CreatedAt: s.now.Add(-24*time.Hour + offset),
	}
	s.Require().NoError(s.store.Stores().Bids.Create(s.ctx, b))
	return b
}

func (s *SettlementSuite) inTx(fn func(ctx context.Context, tx ports.Stores, a *models.Auction) error) {
	err := s.store.RunInTx(s.ctx, s.auction.ID, func(ctx context.Context, tx ports.Stores) error {
		a, err := tx.Auctions.FindByIDForUpdate(ctx, s.auction.ID)
		if err != nil {
			return err
		}
		return fn(ctx, tx, a)
	})
	s.Require().NoError(err)
}

func (s *SettlementSuite) reload() (*models.Auction, *models.Domain) {
	a, err := s.store.Stores().Auctions.FindByID(s.ctx, s.auction.ID)
	s.Require().NoError(err)
	d, err := s.store.Stores().Domains.FindByID(s.ctx, s.domain.ID)
	s.Require().NoError(err)
	return a, d
}

func (s *SettlementSuite) activePayment() *models.Payment {
	p, err := s.store.Stores().Payments.FindActiveByAuction(s.ctx, s.auction.ID)
	s.Require().NoError(err)
	return p
}

func (s *SettlementSuite) TestResolveEndedWithoutBidsFails() {
	s.inTx(func(ctx context.Context, tx ports.Stores, a *models.Auction) error {
		res, err := settlement.ResolveEnded(ctx, tx, a, s.now)
		s.Equal(settlement.OutcomeFailed, res.Outcome)
		return err
	})

	a, d := s.reload()
	s.Equal(models.AuctionFailed, a.Status)
	s.Equal(models.DomainListed, d.Status)
	s.Nil(d.CurrentHighestBid)
}

func (s *SettlementSuite) TestResolveEndedBelowReserveFails() {
	s.placeBid(55, 0)

	s.inTx(func(ctx context.Context, tx ports.Stores, a *models.Auction) error {
		_, err := settlement.ResolveEnded(ctx, tx, a, s.now)
		return err
	})

	a, _ := s.reload()
	s.Equal(models.AuctionFailed, a.Status)
	_, err := s.store.Stores().Payments.FindActiveByAuction(s.ctx, s.auction.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *SettlementSuite) TestResolveEndedAwardsTopBidder() {
	s.placeBid(80, 0)
	top := s.placeBid(120, time.Minute)

	s.inTx(func(ctx context.Context, tx ports.Stores, a *models.Auction) error {
		res, err := settlement.ResolveEnded(ctx, tx, a, s.now)
		s.Equal(settlement.OutcomeAwarded, res.Outcome)
		return err
	})

	a, _ := s.reload()
	s.Equal(models.AuctionPaymentPending, a.Status)
	s.Require().NotNil(a.CurrentWinner)
	s.Equal(top.BidderID, *a.CurrentWinner)

	p := s.activePayment()
	s.Equal(top.BidderID, p.BidderID)
	s.Equal(models.PaymentSale, p.Kind)
	s.True(decimal.NewFromInt(85).Equal(p.Amount), "winner pays the settlement price, got %s", p.Amount)
}

func (s *SettlementSuite) TestResolveEndedRejectsWrongStatus() {
	err := s.store.RunInTx(s.ctx, s.auction.ID, func(ctx context.Context, tx ports.Stores) error {
		a, err := tx.Auctions.FindByIDForUpdate(ctx, s.auction.ID)
		s.Require().NoError(err)
		a.Status = models.AuctionActive
		_, err = settlement.ResolveEnded(ctx, tx, a, s.now)
		return err
	})
	s.ErrorIs(err, sentinel.ErrInvalidState)
}

// Bids [50, 80, 120] with reserve 60: the 120 bidder stalls, the 80 bidder is
// offered the sale, stalls too, and 50 cannot meet reserve.
func (s *SettlementSuite) TestCascadeThroughBidders() {
	low := s.placeBid(50, 0)
	mid := s.placeBid(80, time.Minute)
	top := s.placeBid(120, 2*time.Minute)

	s.inTx(func(ctx context.Context, tx ports.Stores, a *models.Auction) error {
		_, err := settlement.ResolveEnded(ctx, tx, a, s.now)
		return err
	})
	first := s.activePayment()
	s.Equal(top.BidderID, first.BidderID)

	s.inTx(func(ctx context.Context, tx ports.Stores, a *models.Auction) error {
		res, err := settlement.FailPayment(ctx, tx, a, first, s.now)
		s.Equal(settlement.OutcomeAwarded, res.Outcome)
		return err
	})
	second := s.activePayment()
	s.Equal(mid.BidderID, second.BidderID)
	s.True(decimal.NewFromInt(80).Equal(second.Amount), "capped by the bidder's ceiling, got %s", second.Amount)

	a, _ := s.reload()
	s.Equal(models.AuctionPaymentPending, a.Status)
	s.Equal(mid.BidderID, *a.CurrentWinner)

	s.inTx(func(ctx context.Context, tx ports.Stores, a *models.Auction) error {
		res, err := settlement.FailPayment(ctx, tx, a, second, s.now)
		s.Equal(settlement.OutcomeFailed, res.Outcome)
		return err
	})

	a, d := s.reload()
	s.Equal(models.AuctionFailed, a.Status)
	s.Equal(models.DomainListed, d.Status)

	history, err := s.store.Stores().Payments.ListByAuction(s.ctx, s.auction.ID)
	s.Require().NoError(err)
	s.Len(history, 2)
	for _, p := range history {
		s.Equal(models.PaymentFailed, p.Status)
		s.NotEqual(low.BidderID, p.BidderID)
	}
}

func (s *SettlementSuite) TestCascadeSkipsBiddersWhoAlreadyFailed() {
	stalled := s.placeBid(120, 0)
	// the same bidder's lower bid must not be offered the sale again
	s.Require().NoError(s.store.Stores().Bids.Create(s.ctx, &models.Bid{
		ID: id.NewBidID(), AuctionID: s.auction.ID, BidderID: stalled.BidderID,
		Amount: decimal.NewFromInt(100), CreatedAt: s.now.Add(-23 * time.Hour),
	}))
	next := s.placeBid(90, time.Minute)

	s.inTx(func(ctx context.Context, tx ports.Stores, a *models.Auction) error {
		_, err := settlement.ResolveEnded(ctx, tx, a, s.now)
		return err
	})
	s.inTx(func(ctx context.Context, tx ports.Stores, a *models.Auction) error {
		_, err := settlement.FailPayment(ctx, tx, a, s.activePayment(), s.now)
		return err
	})

	s.Equal(next.BidderID, s.activePayment().BidderID)
}

func (s *SettlementSuite) TestFailPaymentIsNotReentrant() {
	s.placeBid(120, 0)
	s.inTx(func(ctx context.Context, tx ports.Stores, a *models.Auction) error {
		_, err := settlement.ResolveEnded(ctx, tx, a, s.now)
		return err
	})
	p := s.activePayment()
	p.Status = models.PaymentPaid

	err := s.store.RunInTx(s.ctx, s.auction.ID, func(ctx context.Context, tx ports.Stores) error {
		a, err := tx.Auctions.FindByIDForUpdate(ctx, s.auction.ID)
		s.Require().NoError(err)
		_, err = settlement.FailPayment(ctx, tx, a, p, s.now)
		return err
	})
	s.ErrorIs(err, sentinel.ErrInvalidState)
}

func (s *SettlementSuite) leasePending(endTime time.Time) *models.Payment {
	var payment *models.Payment
	s.inTx(func(ctx context.Context, tx ports.Stores, a *models.Auction) error {
		a.Status = models.AuctionLeasePending
		a.EndTime = endTime
		if err := tx.Auctions.Update(ctx, a); err != nil {
			return err
		}
		payment = &models.Payment{
			ID: id.NewPaymentID(), AuctionID: a.ID, BidderID: id.NewUserID(),
			Amount: decimal.NewFromInt(500), Kind: models.PaymentLease,
			Status: models.PaymentPending, CreatedAt: s.now,
		}
		return tx.Payments.Create(ctx, payment)
	})
	return payment
}

func (s *SettlementSuite) TestLeaseTimeoutBeforeEndReopens() {
	p := s.leasePending(s.now.Add(time.Hour))

	s.inTx(func(ctx context.Context, tx ports.Stores, a *models.Auction) error {
		res, err := settlement.FailPayment(ctx, tx, a, p, s.now)
		s.Equal(settlement.OutcomeReopened, res.Outcome)
		return err
	})

	a, d := s.reload()
	s.Equal(models.AuctionActive, a.Status)
	s.Equal(models.DomainAuctionActive, d.Status)
}

func (s *SettlementSuite) TestLeaseTimeoutAfterEndResolves() {
	bid := s.placeBid(90, 0)
	p := s.leasePending(s.now.Add(-time.Minute))

	s.inTx(func(ctx context.Context, tx ports.Stores, a *models.Auction) error {
		res, err := settlement.FailPayment(ctx, tx, a, p, s.now)
		s.Equal(settlement.OutcomeAwarded, res.Outcome)
		return err
	})

	a, _ := s.reload()
	s.Equal(models.AuctionPaymentPending, a.Status)
	s.Equal(bid.BidderID, s.activePayment().BidderID)
}

func (s *SettlementSuite) TestSalePrice() {
	a := &models.Auction{CurrentBid: decimal.NewFromInt(10), ReservePrice: decimal.NewFromInt(60)}
	s.True(decimal.NewFromInt(60).Equal(settlement.SalePrice(a, decimal.NewFromInt(60))))
	s.True(decimal.NewFromInt(60).Equal(settlement.SalePrice(a, decimal.NewFromInt(90))))

	a.CurrentBid = decimal.NewFromInt(85)
	s.True(decimal.NewFromInt(85).Equal(settlement.SalePrice(a, decimal.NewFromInt(120))))
	s.True(decimal.NewFromInt(70).Equal(settlement.SalePrice(a, decimal.NewFromInt(70))))
}
