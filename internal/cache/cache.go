// Package cache provides a small in-process LRU cache with per-entry TTL,
// used to keep dashboard fragments and sessions cheap between writes.
package cache

import (
	"log/slog"
	"time"
)

// Cleaner is anything the Manager can sweep for expired entries.
type Cleaner interface {
	CleanExpired() int
}

// Manager runs a periodic expiry sweep over registered caches. Register
// everything before StartCleanup; Register is not safe to call after it.
type Manager struct {
	caches []Cleaner
	stop   chan struct{}
	done   chan struct{}
}

func NewManager() *Manager {
	return &Manager{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func (m *Manager) Register(c Cleaner) {
	m.caches = append(m.caches, c)
}

// StartCleanup sweeps all registered caches every interval until Stop.
func (m *Manager) StartCleanup(interval time.Duration) {
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				removed := 0
				for _, c := range m.caches {
					removed += c.CleanExpired()
				}
				if removed > 0 {
					slog.Debug("Cache cleanup removed expired entries", "removed", removed)
				}
			case <-m.stop:
				return
			}
		}
	}()
}

// Stop halts the sweep goroutine and waits for it to exit.
func (m *Manager) Stop() {
	close(m.stop)
	<-m.done
}
