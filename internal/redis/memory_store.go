package redis

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// CleanupInterval is the interval between expired item cleanup runs.
	CleanupInterval = 5 * time.Minute
)

// MemoryStore is an in-memory implementation of the Store interface.
// It provides the same functionality as the Redis store but without sharing
// between processes. Expired items are dropped by a background cleanup goroutine.
type MemoryStore struct {
	entries       map[Kind]map[string]*expiringItem[Entry]
	logger        *logrus.Logger
	mu            sync.RWMutex
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	closeOnce     sync.Once
}

// expiringItem wraps data with expiration time for TTL support.
type expiringItem[T any] struct {
	Data      T
	ExpiresAt time.Time
}

// isExpired checks if the item has expired. A zero ExpiresAt never expires.
func (e *expiringItem[T]) isExpired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// NewMemoryStore creates a new in-memory store with TTL cleanup.
func NewMemoryStore(logger *logrus.Logger) *MemoryStore {
	store := &MemoryStore{
		entries:       make(map[Kind]map[string]*expiringItem[Entry]),
		logger:        logger,
		cleanupTicker: time.NewTicker(CleanupInterval),
		stopCleanup:   make(chan struct{}),
	}

	go store.cleanupExpiredItems()

	logger.Debug("In-memory reference store initialized")
	return store
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, key Key) (Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.entries[key.Kind][key.Variant]
	if !ok || item.isExpired(time.Now()) {
		return Entry{}, false, nil
	}
	return copyEntry(item.Data), true, nil
}

// Set implements Store.
func (m *MemoryStore) Set(_ context.Context, key Key, entry Entry, ttl time.Duration) error {
	item := &expiringItem[Entry]{Data: copyEntry(entry)}
	if ttl > 0 {
		item.ExpiresAt = time.Now().Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	variants, ok := m.entries[key.Kind]
	if !ok {
		variants = make(map[string]*expiringItem[Entry])
		m.entries[key.Kind] = variants
	}
	variants[key.Variant] = item
	return nil
}

// DeleteKinds implements Store. All kinds are removed under one lock.
func (m *MemoryStore) DeleteKinds(_ context.Context, kinds ...Kind) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, kind := range kinds {
		delete(m.entries, kind)
	}
	return nil
}

// Ping implements Store.
func (m *MemoryStore) Ping(context.Context) error {
	return nil
}

// Close shuts down the cleanup goroutine.
func (m *MemoryStore) Close() error {
	m.closeOnce.Do(func() {
		close(m.stopCleanup)
		m.logger.Debug("Memory store closed")
	})
	return nil
}

// cleanupExpiredItems runs periodically to remove expired items.
func (m *MemoryStore) cleanupExpiredItems() {
	defer m.cleanupTicker.Stop()

	for {
		select {
		case <-m.cleanupTicker.C:
			m.performCleanup(time.Now())
		case <-m.stopCleanup:
			return
		}
	}
}

// performCleanup removes expired items from all kinds.
func (m *MemoryStore) performCleanup(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	expired := 0
	for kind, variants := range m.entries {
		for variant, item := range variants {
			if item.isExpired(now) {
				delete(variants, variant)
				expired++
			}
		}
		if len(variants) == 0 {
			delete(m.entries, kind)
		}
	}

	if expired > 0 {
		m.logger.WithField("expired_items", expired).Debug("Cleaned up expired items from memory store")
	}
}

func copyEntry(e Entry) Entry {
	return Entry{
		Payload:  append([]byte(nil), e.Payload...),
		StoredAt: e.StoredAt,
	}
}
