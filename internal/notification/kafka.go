package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"auctioneer/internal/auction/models"
)

// Producer is the slice of *kgo.Client the Kafka notifier needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

var _ Producer = (*kgo.Client)(nil)

// KafkaNotifier publishes outbid notices as JSON records keyed by auction, so
// every notice for one auction lands on the same partition in order.
type KafkaNotifier struct {
	producer Producer
	topic    string
}

func NewKafkaNotifier(producer Producer, topic string) (*KafkaNotifier, error) {
	if producer == nil {
		return nil, errors.New("kafka producer is required")
	}
	if topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	return &KafkaNotifier{producer: producer, topic: topic}, nil
}

func (k *KafkaNotifier) SendOutbid(ctx context.Context, notice models.OutbidNotice) error {
	payload, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("marshal outbid notice: %w", err)
	}
	record := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(notice.AuctionID.String()),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(models.EventOutbid)},
		},
	}
	if err := k.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce outbid notice: %w", err)
	}
	return nil
}
