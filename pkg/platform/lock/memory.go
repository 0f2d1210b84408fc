package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type lease struct {
	token     string
	expiresAt time.Time
}

// Memory is a process-local Locker for single-replica deployments and tests.
type Memory struct {
	mu     sync.Mutex
	leases map[string]lease
	now    func() time.Time
}

func NewMemory() *Memory {
	return &Memory{leases: make(map[string]lease), now: time.Now}
}

func (m *Memory) Acquire(_ context.Context, key string, ttl time.Duration) (Release, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if held, ok := m.leases[key]; ok && now.Before(held.expiresAt) {
		return nil, ErrNotAcquired
	}
	token := uuid.NewString()
	m.leases[key] = lease{token: token, expiresAt: now.Add(ttl)}

	return func(context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		if held, ok := m.leases[key]; ok && held.token == token {
			delete(m.leases, key)
		}
		return nil
	}, nil
}
