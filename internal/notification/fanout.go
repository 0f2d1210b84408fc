package notification

import (
	"context"
	"errors"
	"log/slog"

	"auctioneer/internal/auction/models"
	"auctioneer/internal/auction/ports"
)

// Fanout sends each notice to every channel. A failure on any channel fails
// the delivery, so the relay retries all of them; consumers must tolerate
// duplicates.
type Fanout []ports.Notifier

func (f Fanout) SendOutbid(ctx context.Context, notice models.OutbidNotice) error {
	var errs []error
	for _, n := range f {
		if err := n.SendOutbid(ctx, notice); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier only logs. It is the notifier when no channel is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) SendOutbid(ctx context.Context, notice models.OutbidNotice) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "bidder outbid",
		"auction_id", notice.AuctionID,
		"domain", notice.DomainName,
		"user_id", notice.PreviousOwner,
		"current_bid", notice.NewCurrentBid.StringFixed(2),
	)
	return nil
}
