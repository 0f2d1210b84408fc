package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"auctioneer/internal/auction/models"
	id "auctioneer/pkg/domain"
)

// SettingStore reads and writes the key/value settings table.
type SettingStore struct {
	s *Store
}

func (st *SettingStore) Get(ctx context.Context, key string) (*models.Setting, error) {
	var setting models.Setting
	err := st.s.execer(ctx).QueryRowContext(ctx,
		`SELECT key, value, description FROM settings WHERE key = $1`, key,
	).Scan(&setting.Key, &setting.Value, &setting.Description)
	if err != nil {
		return nil, fmt.Errorf("find setting %s: %w", key, mapError(err))
	}
	return &setting, nil
}

func (st *SettingStore) Put(ctx context.Context, setting *models.Setting) error {
	_, err := st.s.execer(ctx).ExecContext(ctx, `
		INSERT INTO settings (key, value, description) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, description = EXCLUDED.description`,
		setting.Key, setting.Value, setting.Description)
	if err != nil {
		return fmt.Errorf("save setting %s: %w", setting.Key, mapError(err))
	}
	return nil
}

// Directory resolves bidder contact addresses from user_contacts.
type Directory struct {
	s *Store
}

func (d *Directory) EmailOf(ctx context.Context, userID id.UserID) (string, error) {
	var email string
	err := d.s.execer(ctx).QueryRowContext(ctx,
		`SELECT email FROM user_contacts WHERE user_id = $1`, uuid.UUID(userID)).Scan(&email)
	if err != nil {
		return "", fmt.Errorf("find contact for %s: %w", userID, mapError(err))
	}
	return email, nil
}

func (d *Directory) Register(ctx context.Context, userID id.UserID, email string) error {
	_, err := d.s.execer(ctx).ExecContext(ctx, `
		INSERT INTO user_contacts (user_id, email) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET email = EXCLUDED.email`,
		uuid.UUID(userID), strings.TrimSpace(email))
	if err != nil {
		return fmt.Errorf("register contact for %s: %w", userID, mapError(err))
	}
	return nil
}
