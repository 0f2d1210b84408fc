package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"auctioneer/internal/auction/models"
	"auctioneer/pkg/platform/sentinel"
)

type outboxStore struct{ v *view }

func cloneEntry(e *models.OutboxEntry) *models.OutboxEntry {
	c := *e
	c.Payload = append([]byte(nil), e.Payload...)
	if e.ProcessedAt != nil {
		t := *e.ProcessedAt
		c.ProcessedAt = &t
	}
	return &c
}

func (s *outboxStore) Append(_ context.Context, entry *models.OutboxEntry) error {
	s.v.write(func() {
		if s.v.st != nil {
			s.v.st.outbox = append(s.v.st.outbox, cloneEntry(entry))
			return
		}
		s.v.s.outbox[entry.ID] = cloneEntry(entry)
	})
	return nil
}

// FetchPending returns committed, unprocessed entries oldest first.
func (s *outboxStore) FetchPending(_ context.Context, limit int) ([]*models.OutboxEntry, error) {
	var out []*models.OutboxEntry
	s.v.read(func() {
		for _, e := range s.v.s.outbox {
			if e.ProcessedAt == nil {
				out = append(out, cloneEntry(e))
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *outboxStore) MarkProcessed(_ context.Context, entryID uuid.UUID, at time.Time) error {
	s.v.s.mu.Lock()
	defer s.v.s.mu.Unlock()
	e, ok := s.v.s.outbox[entryID]
	if !ok {
		return fmt.Errorf("mark outbox entry %s processed: %w", entryID, sentinel.ErrNotFound)
	}
	processed := at
	e.ProcessedAt = &processed
	return nil
}

func (s *outboxStore) MarkFailedAttempt(_ context.Context, entryID uuid.UUID) error {
	s.v.s.mu.Lock()
	defer s.v.s.mu.Unlock()
	e, ok := s.v.s.outbox[entryID]
	if !ok {
		return fmt.Errorf("mark outbox entry %s failed: %w", entryID, sentinel.ErrNotFound)
	}
	e.Attempts++
	return nil
}
