package notification

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"auctioneer/internal/auction/models"
	"auctioneer/internal/auction/ports"
	portmocks "auctioneer/internal/auction/ports/mocks"
	"auctioneer/internal/auction/store/memory"
	id "auctioneer/pkg/domain"
	"auctioneer/pkg/platform/circuit"
)

//go:generate mockgen -source=../auction/ports/ports.go -destination=../auction/ports/mocks/mocks.go -package=mocks Notifier,Settings,Directory
type RelaySuite struct {
	suite.Suite
	ctx      context.Context
	outbox   ports.OutboxStore
	notifier *portmocks.MockNotifier
	now      time.Time
	relay    *Relay
}

func TestRelaySuite(t *testing.T) {
	suite.Run(t, new(RelaySuite))
}

func (s *RelaySuite) SetupTest() {
	s.ctx = context.Background()
	s.outbox = memory.New().Stores().Outbox
	s.notifier = portmocks.NewMockNotifier(gomock.NewController(s.T()))
	s.now = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time { return s.now }

	relay, err := NewRelay(s.outbox, s.notifier,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(clock),
		WithMaxAttempts(3),
		WithBreaker(circuit.New("test", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Minute), circuit.WithClock(clock))),
	)
	s.Require().NoError(err)
	s.relay = relay
}

func (s *RelaySuite) appendNotice(offset time.Duration) models.OutbidNotice {
	notice := models.OutbidNotice{
		AuctionID:     id.NewAuctionID(),
		DomainID:      id.NewDomainID(),
		DomainName:    "relay.example",
		PreviousOwner: id.NewUserID(),
		NewCurrentBid: decimal.NewFromInt(25),
		OccurredAt:    s.now.Add(offset),
	}
	entry, err := models.NewOutbidEntry(notice)
	s.Require().NoError(err)
	s.Require().NoError(s.outbox.Append(s.ctx, entry))
	return notice
}

func (s *RelaySuite) pending() []*models.OutboxEntry {
	entries, err := s.outbox.FetchPending(s.ctx, 100)
	s.Require().NoError(err)
	return entries
}

func (s *RelaySuite) TestDeliversAndMarksProcessed() {
	first := s.appendNotice(0)
	second := s.appendNotice(time.Second)

	gomock.InOrder(
		s.notifier.EXPECT().SendOutbid(gomock.Any(), noticeFor(first)).Return(nil),
		s.notifier.EXPECT().SendOutbid(gomock.Any(), noticeFor(second)).Return(nil),
	)

	s.Require().NoError(s.relay.Pass(s.ctx))
	s.Empty(s.pending())
}

func (s *RelaySuite) TestFailedDeliveryIsRetriedNextPass() {
	notice := s.appendNotice(0)

	s.notifier.EXPECT().SendOutbid(gomock.Any(), noticeFor(notice)).Return(errors.New("smtp down"))
	s.Require().NoError(s.relay.Pass(s.ctx))

	entries := s.pending()
	s.Require().Len(entries, 1)
	s.Equal(1, entries[0].Attempts)

	s.notifier.EXPECT().SendOutbid(gomock.Any(), noticeFor(notice)).Return(nil)
	s.Require().NoError(s.relay.Pass(s.ctx))
	s.Empty(s.pending())
}

func (s *RelaySuite) TestBreakerStopsBatchUntilCooldown() {
	s.appendNotice(0)
	s.appendNotice(time.Second)
	s.appendNotice(2 * time.Second)

	s.notifier.EXPECT().SendOutbid(gomock.Any(), gomock.Any()).Return(errors.New("broker down")).Times(2)
	s.Require().NoError(s.relay.Pass(s.ctx))
	s.Len(s.pending(), 3)

	s.Run("open breaker skips delivery", func() {
		s.Require().NoError(s.relay.Pass(s.ctx))
		s.Len(s.pending(), 3)
	})

	s.Run("probe after cooldown closes breaker", func() {
		s.now = s.now.Add(2 * time.Minute)
		s.notifier.EXPECT().SendOutbid(gomock.Any(), gomock.Any()).Return(nil).Times(3)
		s.Require().NoError(s.relay.Pass(s.ctx))
		s.Empty(s.pending())
	})
}

func (s *RelaySuite) TestAbandonsAfterMaxAttempts() {
	s.appendNotice(0)
	entry := s.pending()[0]
	for range 3 {
		s.Require().NoError(s.outbox.MarkFailedAttempt(s.ctx, entry.ID))
	}

	s.Require().NoError(s.relay.Pass(s.ctx))
	s.Empty(s.pending())
}

func (s *RelaySuite) TestDropsUnknownEvents() {
	s.Require().NoError(s.outbox.Append(s.ctx, &models.OutboxEntry{
		ID:        uuid.New(),
		EventType: "auction.renamed",
		Payload:   []byte(`{}`),
		CreatedAt: s.now,
	}))

	s.Require().NoError(s.relay.Pass(s.ctx))
	s.Empty(s.pending())
}

func (s *RelaySuite) TestRequiresDependencies() {
	_, err := NewRelay(nil, s.notifier)
	s.Error(err)
	_, err = NewRelay(s.outbox, nil)
	s.Error(err)
}

// noticeFor matches a notice after a JSON round trip, which normalizes
// decimal and time representations.
func noticeFor(want models.OutbidNotice) gomock.Matcher {
	return gomock.Cond(func(got models.OutbidNotice) bool {
		return got.AuctionID == want.AuctionID &&
			got.PreviousOwner == want.PreviousOwner &&
			got.NewCurrentBid.Equal(want.NewCurrentBid) &&
			got.OccurredAt.Equal(want.OccurredAt)
	})
}
