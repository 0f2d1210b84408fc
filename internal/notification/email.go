package notification

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gopkg.in/gomail.v2"

	"auctioneer/internal/auction/models"
	"auctioneer/internal/auction/ports"
	"auctioneer/pkg/email"
	"auctioneer/pkg/platform/sentinel"
)

// Mailer is satisfied by *gomail.Dialer.
type Mailer interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailNotifier tells the previous leader by email that they were outbid.
type EmailNotifier struct {
	mailer    Mailer
	directory ports.Directory
	from      string
	logger    *slog.Logger
}

func NewEmailNotifier(mailer Mailer, directory ports.Directory, from string, logger *slog.Logger) (*EmailNotifier, error) {
	if mailer == nil || directory == nil {
		return nil, errors.New("mailer and directory are required")
	}
	if from == "" {
		return nil, errors.New("sender address is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EmailNotifier{mailer: mailer, directory: directory, from: from, logger: logger}, nil
}

func (e *EmailNotifier) SendOutbid(ctx context.Context, notice models.OutbidNotice) error {
	to, err := e.directory.EmailOf(ctx, notice.PreviousOwner)
	if errors.Is(err, sentinel.ErrNotFound) {
		// no contact on file is not a delivery failure
		e.logger.DebugContext(ctx, "no email on file for outbid bidder", "user_id", notice.PreviousOwner)
		return nil
	}
	if err != nil {
		return fmt.Errorf("resolve contact: %w", err)
	}
	to, ok := email.Normalize(to)
	if !ok {
		e.logger.WarnContext(ctx, "invalid email on file for outbid bidder", "user_id", notice.PreviousOwner)
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", e.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", fmt.Sprintf("You've been outbid on %s", notice.DomainName))
	m.SetBody("text/plain", fmt.Sprintf(
		"Hi %s,\n\nSomeone has placed a higher bid on %s. The current bid is now %s.\n\nPlace a new bid before the auction ends to stay in the running.\n",
		email.DisplayName(to), notice.DomainName, notice.NewCurrentBid.StringFixed(2),
	))

	done := make(chan error, 1)
	go func() {
		done <- e.mailer.DialAndSend(m)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("email sending cancelled or timed out: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send outbid email: %w", err)
		}
	}
	e.logger.InfoContext(ctx, "outbid email sent", "auction_id", notice.AuctionID, "user_id", notice.PreviousOwner)
	return nil
}

// NewDialer configures gomail for "ssl" (implicit TLS) or "tls"/"starttls".
// Any other value leaves the connection unencrypted.
func NewDialer(host string, port int, username, password, encryption string) *gomail.Dialer {
	d := gomail.NewDialer(host, port, username, password)
	switch strings.ToLower(encryption) {
	case "ssl":
		d.SSL = true
		d.TLSConfig = &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
	case "tls", "starttls":
		d.TLSConfig = &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
	}
	return d
}
