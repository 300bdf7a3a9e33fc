// Package cache provides the in-process caches that sit in front of the
// backend and the manager that expires and purges them.
package cache

import (
	"sync"
	"time"

	applog "expensedash/internal/log"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	// Get retrieves a value from the cache
	Get(key string) (T, bool)

	// Set stores a value in the cache
	Set(key string, data T)

	// Delete removes a key from the cache
	Delete(key string)

	// Purge removes every entry
	Purge()

	// Size returns the current number of items in the cache
	Size() int
}

// Store is what the manager needs from a registered cache.
type Store interface {
	CleanExpired() int
	Purge()
}

// Manager handles cache lifecycle: periodic expiry and whole-set purges.
type Manager struct {
	mu          sync.Mutex
	caches      []Store
	logger      *applog.Logger
	started     bool
	stopOnce    sync.Once
	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

// NewManager creates a new cache manager
func NewManager(logger *applog.Logger) *Manager {
	if logger == nil {
		logger = applog.Discard()
	}
	return &Manager{
		logger:      logger.WithComponent(applog.ComponentCache),
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Register adds a cache to the manager
func (m *Manager) Register(caches ...Store) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches = append(m.caches, caches...)
}

// PurgeAll empties every registered cache.
func (m *Manager) PurgeAll() {
	m.mu.Lock()
	caches := append([]Store(nil), m.caches...)
	m.mu.Unlock()

	for _, c := range caches {
		c.Purge()
	}
	m.logger.Debug("Caches purged", applog.FieldCount, len(caches))
}

// StartCleanup begins periodic cleanup of all registered caches
func (m *Manager) StartCleanup(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true
	go m.cleanup(interval)
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.mu.Lock()
			caches := append([]Store(nil), m.caches...)
			m.mu.Unlock()

			totalCleaned := 0
			for _, c := range caches {
				totalCleaned += c.CleanExpired()
			}
			if totalCleaned > 0 {
				m.logger.Debug("Expired cache entries removed", applog.FieldCount, totalCleaned)
			}
		case <-m.stopCleanup:
			return
		}
	}
}

// Stop gracefully stops the cleanup routine. Safe to call more than once and
// when cleanup was never started.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCleanup)
		m.mu.Lock()
		started := m.started
		m.mu.Unlock()
		if started {
			<-m.cleanupDone
		}
	})
}
