// Package settings serves operator-tunable numeric knobs from the settings
// table. Values are read on every call so a change takes effect on the next
// pass without a restart.
package settings

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"auctioneer/internal/auction/models"
	dErrors "auctioneer/pkg/domain-errors"
	"auctioneer/pkg/platform/sentinel"
)

// Store is the persistence the service reads from.
type Store interface {
	Get(ctx context.Context, key string) (*models.Setting, error)
	Put(ctx context.Context, setting *models.Setting) error
}

type Service struct {
	store  Store
	logger *slog.Logger
}

func New(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// GetNumeric returns the setting parsed as a number, or fallback when it is
// missing, unreadable or not numeric.
func (s *Service) GetNumeric(ctx context.Context, key string, fallback float64) float64 {
	setting, err := s.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "failed to read setting, using default",
				"key", key,
				"default", fallback,
				"error", err,
			)
		}
		return fallback
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(setting.Value), 64)
	if err != nil {
		s.logger.WarnContext(ctx, "setting is not numeric, using default",
			"key", key,
			"value", setting.Value,
			"default", fallback,
		)
		return fallback
	}
	return v
}

// SetNumeric stores a numeric setting, keeping any existing description.
func (s *Service) SetNumeric(ctx context.Context, key string, value float64) error {
	if strings.TrimSpace(key) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "setting key is required")
	}
	setting := &models.Setting{Key: key}
	if existing, err := s.store.Get(ctx, key); err == nil {
		setting.Description = existing.Description
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read setting")
	}
	setting.Value = strconv.FormatFloat(value, 'f', -1, 64)
	if err := s.store.Put(ctx, setting); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save setting")
	}
	s.logger.InfoContext(ctx, "setting updated", "key", key, "value", setting.Value)
	return nil
}
