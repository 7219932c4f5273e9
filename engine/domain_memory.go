package engine

import (
	"sync"
	"time"
)

// memoEntry pins a shop domain to the engine that last worked for it.
type memoEntry struct {
	engineName string
	expiresAt  time.Time
}

// EngineMemo remembers which engine each shop domain needs, so the
// dispatcher pays the escalation cost once per domain per TTL instead
// of once per item. Entries are forgotten on failure and pruned
// periodically.
type EngineMemo struct {
	entries sync.Map // domain (string) -> *memoEntry
	ttl     time.Duration
	done    chan struct{}
}

// NewEngineMemo creates a memo with the given TTL and starts the
// background pruner.
func NewEngineMemo(ttl time.Duration) *EngineMemo {
	m := &EngineMemo{
		ttl:  ttl,
		done: make(chan struct{}),
	}
	go m.pruneLoop()
	return m
}

// Get returns the remembered engine name for a domain, or "" when
// nothing is remembered or the entry expired.
func (m *EngineMemo) Get(domain string) string {
	val, ok := m.entries.Load(domain)
	if !ok {
		return ""
	}
	entry := val.(*memoEntry)
	if time.Now().After(entry.expiresAt) {
		m.entries.Delete(domain)
		return ""
	}
	return entry.engineName
}

// Set records which engine rendered the domain successfully.
func (m *EngineMemo) Set(domain, engineName string) {
	m.entries.Store(domain, &memoEntry{
		engineName: engineName,
		expiresAt:  time.Now().Add(m.ttl),
	})
}

// Forget drops a domain after its remembered engine failed.
func (m *EngineMemo) Forget(domain string) {
	m.entries.Delete(domain)
}

// Stop terminates the background pruner.
func (m *EngineMemo) Stop() {
	close(m.done)
}

func (m *EngineMemo) pruneLoop() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			now := time.Now()
			m.entries.Range(func(key, value any) bool {
				if now.After(value.(*memoEntry).expiresAt) {
					m.entries.Delete(key)
				}
				return true
			})
		}
	}
}
