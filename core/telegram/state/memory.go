package state

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/pestbot/core/logger"
)

type entry[T any] struct {
	value   T
	touched time.Time
}

// Memory is an in-process Store. Expired entries are invisible to Get and
// removed by Sweep.
type Memory[T any] struct {
	mu      sync.Mutex
	idle    time.Duration
	now     func() time.Time
	entries map[Key]entry[T]
}

// NewMemory builds a Memory store that forgets entries idle for longer than idle.
func NewMemory[T any](idle time.Duration) *Memory[T] {
	return &Memory[T]{
		idle:    idle,
		now:     time.Now,
		entries: make(map[Key]entry[T]),
	}
}

// Get returns the value for key if it has not expired.
func (m *Memory[T]) Get(_ context.Context, key Key) (T, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero T
	e, ok := m.entries[key]
	if !ok {
		return zero, false, nil
	}
	if m.expired(e) {
		delete(m.entries, key)
		return zero, false, nil
	}
	return e.value, true, nil
}

// Put stores value under key.
func (m *Memory[T]) Put(_ context.Context, key Key, value T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry[T]{value: value, touched: m.now()}
	return nil
}

// Delete removes key.
func (m *Memory[T]) Delete(_ context.Context, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Sweep drops expired entries and returns how many were dropped.
func (m *Memory[T]) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, e := range m.entries {
		if m.expired(e) {
			delete(m.entries, k)
			n++
		}
	}
	return n
}

// Run sweeps periodically until ctx is done.
func (m *Memory[T]) Run(ctx context.Context) error {
	interval := m.idle / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				logger.Session.Debug("idle conversations dropped",
					slog.String("event", "session.sweep"),
					slog.Int("count", n),
				)
			}
		}
	}
}

func (m *Memory[T]) expired(e entry[T]) bool {
	return m.idle > 0 && m.now().Sub(e.touched) > m.idle
}
