package main

import (
	"context"
	"fmt"
	"log/slog"

	"auctioneer/internal/auction/ports"
	"auctioneer/internal/notification"
	"auctioneer/internal/platform/config"
	"auctioneer/internal/platform/kafka"
)

// newNotifier fans outbid notices out to every configured channel. The log
// channel is always on.
func newNotifier(ctx context.Context, cfg *config.Config, dir ports.Directory, logger *slog.Logger) (ports.Notifier, func(), error) {
	channels := notification.Fanout{notification.LogNotifier{Logger: logger}}
	cleanup := func() {}

	client, err := kafka.NewProducer(ctx, cfg.Kafka)
	if err != nil {
		return nil, cleanup, err
	}
	if client != nil {
		cleanup = client.Close
		if err := kafka.EnsureTopic(ctx, client, cfg.Kafka.OutbidTopic, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
			logger.WarnContext(ctx, "could not ensure outbid topic", "topic", cfg.Kafka.OutbidTopic, "error", err)
		}
		k, err := notification.NewKafkaNotifier(client, cfg.Kafka.OutbidTopic)
		if err != nil {
			return nil, cleanup, err
		}
		channels = append(channels, k)
		logger.InfoContext(ctx, "kafka outbid channel enabled", "topic", cfg.Kafka.OutbidTopic)
	}

	if cfg.SMTP.Host != "" {
		dialer := notification.NewDialer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.Encryption)
		e, err := notification.NewEmailNotifier(dialer, dir, cfg.SMTP.SenderEmail, logger)
		if err != nil {
			return nil, cleanup, fmt.Errorf("email notifier: %w", err)
		}
		channels = append(channels, e)
		logger.InfoContext(ctx, "email outbid channel enabled", "smtp_host", cfg.SMTP.Host)
	}
	return channels, cleanup, nil
}
