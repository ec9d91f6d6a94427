package ledger

import (
	"context"
	"sync"
	"time"
)

// Memory is a mutex-guarded in-process ledger for embedding the engine and
// for tests. Deployments with more than one process use the redis ledger.
type Memory struct {
	// TTL bounds how long a reservation may stay pending. Zero means the
	// default of thirty seconds.
	TTL time.Duration
	// Now allows tests to control the clock.
	Now func() time.Time

	mu       sync.Mutex
	counters map[string]*memCounter
}

type memCounter struct {
	used    int
	pending map[string]memReservation
	done    map[string]int
}

type memReservation struct {
	count    int
	deadline time.Time
}

// NewMemory constructs an in-process ledger.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{TTL: ttl}
}

// TryReserve implements Ledger.
func (m *Memory) TryReserve(_ context.Context, counterID string, limit int, token string, requested int) (int, error) {
	if requested <= 0 {
		return 0, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.counter(counterID)
	m.expire(c)

	if existing, ok := c.pending[token]; ok {
		return existing.count, nil
	}

	pendingSum := 0
	for _, r := range c.pending {
		pendingSum += r.count
	}
	avail := limit - c.used - pendingSum
	if avail <= 0 {
		return 0, nil
	}
	grant := requested
	if grant > avail {
		grant = avail
	}
	c.pending[token] = memReservation{count: grant, deadline: m.now().Add(m.ttl())}
	return grant, nil
}

// Commit implements Ledger.
func (m *Memory) Commit(_ context.Context, counterID, token string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.counter(counterID)
	m.expire(c)

	if prior, ok := c.done[token]; ok {
		return prior, nil
	}
	r, ok := c.pending[token]
	if !ok {
		return 0, ErrUnknownReservation
	}
	delete(c.pending, token)
	c.used += r.count
	c.done[token] = r.count
	return r.count, nil
}

// Release implements Ledger.
func (m *Memory) Release(_ context.Context, counterID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.counter(counterID).pending, token)
	return nil
}

// Shrink implements Ledger.
func (m *Memory) Shrink(_ context.Context, counterID, token string, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.counter(counterID)
	m.expire(c)

	r, ok := c.pending[token]
	if !ok {
		return nil
	}
	if count <= 0 {
		delete(c.pending, token)
		return nil
	}
	if count < r.count {
		r.count = count
		c.pending[token] = r
	}
	return nil
}

// Refund implements Ledger.
func (m *Memory) Refund(_ context.Context, counterID string, count int) error {
	if count <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.counter(counterID)
	c.used -= count
	if c.used < 0 {
		c.used = 0
	}
	return nil
}

// Used implements Ledger.
func (m *Memory) Used(_ context.Context, counterID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counter(counterID).used, nil
}

func (m *Memory) counter(id string) *memCounter {
	if m.counters == nil {
		m.counters = make(map[string]*memCounter)
	}
	c, ok := m.counters[id]
	if !ok {
		c = &memCounter{pending: map[string]memReservation{}, done: map[string]int{}}
		m.counters[id] = c
	}
	return c
}

func (m *Memory) expire(c *memCounter) {
	now := m.now()
	for token, r := range c.pending {
		if now.After(r.deadline) {
			delete(c.pending, token)
		}
	}
}

func (m *Memory) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *Memory) ttl() time.Duration {
	if m.TTL > 0 {
		return m.TTL
	}
	return 30 * time.Second
}
