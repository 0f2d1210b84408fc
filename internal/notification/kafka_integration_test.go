//go:build integration

package notification_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"auctioneer/internal/auction/models"
	"auctioneer/internal/auction/store/memory"
	"auctioneer/internal/notification"
	"auctioneer/internal/platform/config"
	"auctioneer/internal/platform/kafka"
	id "auctioneer/pkg/domain"
	"auctioneer/pkg/testutil/containers"
)

type KafkaRelaySuite struct {
	suite.Suite
	broker   string
	producer *kgo.Client
	topic    string
}

func TestKafkaRelaySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaRelaySuite))
}

func (s *KafkaRelaySuite) SetupSuite() {
	s.broker = containers.GetManager().GetRedpanda(s.T()).Broker
	s.topic = "auction.outbid.it"

	ctx := context.Background()
	producer, err := kafka.NewProducer(ctx, config.KafkaConfig{
		Brokers:     []string{s.broker},
		OutbidTopic: s.topic,
	})
	s.Require().NoError(err)
	s.Require().NotNil(producer)
	s.producer = producer

	s.Require().NoError(kafka.EnsureTopic(ctx, producer, s.topic, 1, 1))
	// second call is a no-op
	s.Require().NoError(kafka.EnsureTopic(ctx, producer, s.topic, 1, 1))
}

func (s *KafkaRelaySuite) TearDownSuite() {
	if s.producer != nil {
		s.producer.Close()
	}
}

func (s *KafkaRelaySuite) TestRelayPublishesOutboxToKafka() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store := memory.New()
	notice := models.OutbidNotice{
		AuctionID:     id.NewAuctionID(),
		DomainID:      id.NewDomainID(),
		DomainName:    "example.com",
		PreviousOwner: id.NewUserID(),
		NewCurrentBid: decimal.NewFromInt(85),
		OccurredAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
	entry, err := models.NewOutbidEntry(notice)
	s.Require().NoError(err)
	s.Require().NoError(store.Stores().Outbox.Append(ctx, entry))

	notifier, err := notification.NewKafkaNotifier(s.producer, s.topic)
	s.Require().NoError(err)
	relay, err := notification.NewRelay(store.Stores().Outbox, notifier)
	s.Require().NoError(err)
	s.Require().NoError(relay.Pass(ctx))

	pending, err := store.Stores().Outbox.FetchPending(ctx, 10)
	s.Require().NoError(err)
	s.Empty(pending)

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.broker),
		kgo.ConsumeTopics(s.topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	var got *kgo.Record
	for got == nil && ctx.Err() == nil {
		fetches := consumer.PollFetches(ctx)
		fetches.EachRecord(func(r *kgo.Record) {
			if string(r.Key) == notice.AuctionID.String() {
				got = r
			}
		})
	}
	s.Require().NotNil(got, "outbid record not consumed")

	var decoded models.OutbidNotice
	s.Require().NoError(json.Unmarshal(got.Value, &decoded))
	s.Equal(notice.PreviousOwner, decoded.PreviousOwner)
	s.True(notice.NewCurrentBid.Equal(decoded.NewCurrentBid))
	s.Require().Len(got.Headers, 1)
	s.Equal(models.EventOutbid, string(got.Headers[0].Value))
}
