package memory

import (
	"context"
	"fmt"
	"strings"

	"auctioneer/internal/auction/models"
	id "auctioneer/pkg/domain"
	"auctioneer/pkg/platform/sentinel"
)

// SettingStore keeps key/value settings in memory.
type SettingStore struct{ s *Store }

func (st *SettingStore) Get(_ context.Context, key string) (*models.Setting, error) {
	st.s.mu.RLock()
	defer st.s.mu.RUnlock()
	setting, ok := st.s.settings[key]
	if !ok {
		return nil, fmt.Errorf("find setting %s: %w", key, sentinel.ErrNotFound)
	}
	c := *setting
	return &c, nil
}

func (st *SettingStore) Put(_ context.Context, setting *models.Setting) error {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	c := *setting
	st.s.settings[setting.Key] = &c
	return nil
}

// Directory maps bidders to contact addresses.
type Directory struct{ s *Store }

func (d *Directory) EmailOf(_ context.Context, userID id.UserID) (string, error) {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()
	email, ok := d.s.contacts[userID]
	if !ok {
		return "", fmt.Errorf("find contact for %s: %w", userID, sentinel.ErrNotFound)
	}
	return email, nil
}

func (d *Directory) Register(_ context.Context, userID id.UserID, email string) error {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	d.s.contacts[userID] = strings.TrimSpace(email)
	return nil
}
