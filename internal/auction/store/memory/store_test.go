package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"auctioneer/internal/auction/models"
	"auctioneer/internal/auction/ports"
	id "auctioneer/pkg/domain"
	dErrors "auctioneer/pkg/domain-errors"
	"auctioneer/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *Store
	ctx   context.Context
	now   time.Time
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = New()
	s.ctx = context.Background()
	s.now = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
}

func (s *MemoryStoreSuite) seedAuction() *models.Auction {
	a := &models.Auction{
		ID:           id.NewAuctionID(),
		DomainID:     id.NewDomainID(),
		Status:       models.AuctionActive,
		MinPrice:     decimal.NewFromInt(10),
		MinIncrement: decimal.NewFromInt(5),
		ReservePrice: decimal.NewFromInt(60),
		CurrentBid:   decimal.NewFromInt(10),
		HighestBid:   decimal.NewFromInt(10),
		StartTime:    s.now.Add(-time.Hour),
		EndTime:      s.now.Add(time.Hour),
		CreatedAt:    s.now,
	}
	s.Require().NoError(s.store.Stores().Auctions.Create(s.ctx, a))
	return a
}

func (s *MemoryStoreSuite) bid(auctionID id.AuctionID, bidder id.UserID, amount int64, at time.Time) *models.Bid {
	return &models.Bid{
		ID:        id.NewBidID(),
		AuctionID: auctionID,
		BidderID:  bidder,
		Amount:    decimal.NewFromInt(amount),
		CreatedAt: at,
	}
}

func (s *MemoryStoreSuite) TestRollbackDiscardsStagedWrites() {
	a := s.seedAuction()
	boom := errors.New("boom")

	err := s.store.RunInTx(s.ctx, a.ID, func(ctx context.Context, tx ports.Stores) error {
		locked, err := tx.Auctions.FindByIDForUpdate(ctx, a.ID)
		s.Require().NoError(err)
		locked.CurrentBid = decimal.NewFromInt(40)
		s.Require().NoError(tx.Auctions.Update(ctx, locked))
		s.Require().NoError(tx.Bids.Create(ctx, s.bid(a.ID, id.NewUserID(), 40, s.now)))

		// staged writes are visible inside the transaction
		n, err := tx.Bids.CountByAuction(ctx, a.ID)
		s.Require().NoError(err)
		s.Equal(1, n)
		return boom
	})
	s.ErrorIs(err, boom)

	stored, err := s.store.Stores().Auctions.FindByID(s.ctx, a.ID)
	s.Require().NoError(err)
	s.True(decimal.NewFromInt(10).Equal(stored.CurrentBid))
	s.Equal(int64(1), stored.Version)

	n, err := s.store.Stores().Bids.CountByAuction(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *MemoryStoreSuite) TestCommitAppliesAllWrites() {
	a := s.seedAuction()
	bidder := id.NewUserID()

	err := s.store.RunInTx(s.ctx, a.ID, func(ctx context.Context, tx ports.Stores) error {
		locked, err := tx.Auctions.FindByIDForUpdate(ctx, a.ID)
		if err != nil {
			return err
		}
		locked.CurrentBid = decimal.NewFromInt(20)
		if err := tx.Auctions.Update(ctx, locked); err != nil {
			return err
		}
		if err := tx.Bids.Create(ctx, s.bid(a.ID, bidder, 20, s.now)); err != nil {
			return err
		}
		entry, err := models.NewOutbidEntry(models.OutbidNotice{AuctionID: a.ID, OccurredAt: s.now})
		if err != nil {
			return err
		}
		return tx.Outbox.Append(ctx, entry)
	})
	s.Require().NoError(err)

	stored, err := s.store.Stores().Auctions.FindByID(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(int64(2), stored.Version)

	n, err := s.store.Stores().Bids.CountByUserAndAuction(s.ctx, bidder, a.ID)
	s.Require().NoError(err)
	s.Equal(1, n)

	pending, err := s.store.Stores().Outbox.FetchPending(s.ctx, 10)
	s.Require().NoError(err)
	s.Len(pending, 1)
}

func (s *MemoryStoreSuite) TestUpdateRejectsStaleVersion() {
	a := s.seedAuction()
	auctions := s.store.Stores().Auctions

	first, err := auctions.FindByID(s.ctx, a.ID)
	s.Require().NoError(err)
	second, err := auctions.FindByID(s.ctx, a.ID)
	s.Require().NoError(err)

	s.Require().NoError(auctions.Update(s.ctx, first))
	s.Equal(int64(2), first.Version)

	err = auctions.Update(s.ctx, second)
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *MemoryStoreSuite) TestDomainChangedUnderTransactionConflicts() {
	dom := &models.Domain{ID: id.NewDomainID(), Name: "shared.example", Status: models.DomainListed}
	s.Require().NoError(s.store.Stores().Domains.Create(s.ctx, dom))

	err := s.store.RunInTx(s.ctx, id.NewAuctionID(), func(ctx context.Context, tx ports.Stores) error {
		mine, err := tx.Domains.FindByIDForUpdate(ctx, dom.ID)
		if err != nil {
			return err
		}
		theirs, err := s.store.Stores().Domains.FindByID(ctx, dom.ID)
		if err != nil {
			return err
		}
		theirs.Status = models.DomainAuctionPending
		if err := s.store.Stores().Domains.Update(ctx, theirs); err != nil {
			return err
		}

		mine.Status = models.DomainAuctionPending
		return tx.Domains.Update(ctx, mine)
	})
	s.ErrorIs(err, sentinel.ErrConflict)

	s.Run("untouched domain commits", func() {
		err := s.store.RunInTx(s.ctx, id.NewAuctionID(), func(ctx context.Context, tx ports.Stores) error {
			d, err := tx.Domains.FindByIDForUpdate(ctx, dom.ID)
			if err != nil {
				return err
			}
			d.Status = models.DomainListed
			return tx.Domains.Update(ctx, d)
		})
		s.Require().NoError(err)
		stored, err := s.store.Stores().Domains.FindByID(s.ctx, dom.ID)
		s.Require().NoError(err)
		s.Equal(models.DomainListed, stored.Status)
	})
}

func (s *MemoryStoreSuite) TestConcurrentTransactionsSerializePerAuction() {
	a := s.seedAuction()
	const workers = 50

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.store.RunInTx(s.ctx, a.ID, func(ctx context.Context, tx ports.Stores) error {
				locked, err := tx.Auctions.FindByIDForUpdate(ctx, a.ID)
				if err != nil {
					return err
				}
				locked.CurrentBid = locked.CurrentBid.Add(decimal.NewFromInt(1))
				return tx.Auctions.Update(ctx, locked)
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	stored, err := s.store.Stores().Auctions.FindByID(s.ctx, a.ID)
	s.Require().NoError(err)
	s.True(decimal.NewFromInt(10+workers).Equal(stored.CurrentBid), "got %s", stored.CurrentBid)
	s.Equal(int64(1+workers), stored.Version)
}

func (s *MemoryStoreSuite) TestRunInTxRejectsCancelledContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	err := s.store.RunInTx(ctx, id.NewAuctionID(), func(context.Context, ports.Stores) error {
		s.Fail("callback must not run")
		return nil
	})
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
}

func (s *MemoryStoreSuite) TestBidOrdering() {
	a := s.seedAuction()
	bids := s.store.Stores().Bids
	early, late, low := id.NewUserID(), id.NewUserID(), id.NewUserID()

	s.Require().NoError(bids.Create(s.ctx, s.bid(a.ID, late, 120, s.now.Add(time.Minute))))
	s.Require().NoError(bids.Create(s.ctx, s.bid(a.ID, early, 120, s.now)))
	s.Require().NoError(bids.Create(s.ctx, s.bid(a.ID, low, 50, s.now)))
	s.Require().NoError(bids.Create(s.ctx, s.bid(a.ID, early, 80, s.now)))

	s.Run("ties go to the earlier bid", func() {
		top, err := bids.FindHighestBid(s.ctx, a.ID)
		s.Require().NoError(err)
		s.Equal(early, top.BidderID)
	})

	s.Run("next highest is strictly below and skips excluded bidders", func() {
		next, err := bids.FindNextHighestBid(s.ctx, a.ID, decimal.NewFromInt(120), []id.UserID{early})
		s.Require().NoError(err)
		s.Equal(low, next.BidderID)
	})

	s.Run("exhausted cascade reports not found", func() {
		_, err := bids.FindNextHighestBid(s.ctx, a.ID, decimal.NewFromInt(50), nil)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *MemoryStoreSuite) TestOnlyOneOpenPaymentPerAuction() {
	a := s.seedAuction()
	payments := s.store.Stores().Payments
	first := &models.Payment{ID: id.NewPaymentID(), AuctionID: a.ID, Status: models.PaymentPending, Kind: models.PaymentSale, CreatedAt: s.now}
	s.Require().NoError(payments.Create(s.ctx, first))

	second := &models.Payment{ID: id.NewPaymentID(), AuctionID: a.ID, Status: models.PaymentPending, Kind: models.PaymentSale, CreatedAt: s.now}
	s.ErrorIs(payments.Create(s.ctx, second), sentinel.ErrConflict)

	s.Require().NoError(payments.UpdateStatus(s.ctx, first.ID, models.PaymentFailed, s.now))
	s.Require().NoError(payments.Create(s.ctx, second))

	active, err := payments.FindActiveByAuction(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(second.ID, active.ID)

	pending, err := payments.FindPendingPayments(s.ctx)
	s.Require().NoError(err)
	s.Len(pending, 1)
}

func (s *MemoryStoreSuite) TestOutboxLifecycle() {
	outbox := s.store.Stores().Outbox
	entry, err := models.NewOutbidEntry(models.OutbidNotice{AuctionID: id.NewAuctionID(), OccurredAt: s.now})
	s.Require().NoError(err)
	s.Require().NoError(outbox.Append(s.ctx, entry))

	s.Require().NoError(outbox.MarkFailedAttempt(s.ctx, entry.ID))
	pending, err := outbox.FetchPending(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(1, pending[0].Attempts)

	s.Require().NoError(outbox.MarkProcessed(s.ctx, entry.ID, s.now))
	pending, err = outbox.FetchPending(s.ctx, 10)
	s.Require().NoError(err)
	s.Empty(pending)
}

func (s *MemoryStoreSuite) TestSettingsAndDirectory() {
	settings := s.store.Settings()
	_, err := settings.Get(s.ctx, models.SettingPendingThresholdSeconds)
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.Require().NoError(settings.Put(s.ctx, &models.Setting{Key: models.SettingPendingThresholdSeconds, Value: "900"}))
	got, err := settings.Get(s.ctx, models.SettingPendingThresholdSeconds)
	s.Require().NoError(err)
	s.Equal("900", got.Value)

	dir := s.store.Directory()
	user := id.NewUserID()
	s.Require().NoError(dir.Register(s.ctx, user, " bob@example.com "))
	email, err := dir.EmailOf(s.ctx, user)
	s.Require().NoError(err)
	s.Equal("bob@example.com", email)
}
