package progression

import (
	"context"
	"sync"
	"time"
)

type registryKey struct {
	visitor string
	chapter string
}

type registryEntry struct {
	mu       sync.Mutex
	session  *Session
	lastUsed time.Time
}

// Registry keeps in-flight sessions between requests, one per visitor and
// chapter. Entries idle for longer than the TTL are evicted by Sweep.
type Registry struct {
	mu       sync.Mutex
	sessions map[registryKey]*registryEntry
	ttl      time.Duration
	now      func() time.Time
}

func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		sessions: make(map[registryKey]*registryEntry),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Do runs fn against the visitor's session for chapterID, creating it with
// start when none is held. Calls for the same visitor and chapter are
// serialized. If start fails nothing is cached and its session (which may
// be nil or parked in StateNotFound) is passed to fn along with the error.
func (r *Registry) Do(visitor, chapterID string, start func() (*Session, error), fn func(*Session, error) error) error {
	key := registryKey{visitor: visitor, chapter: chapterID}

	r.mu.Lock()
	e, ok := r.sessions[key]
	if !ok {
		e = &registryEntry{}
		r.sessions[key] = e
	}
	e.lastUsed = r.now()
	r.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		s, err := start()
		if err != nil {
			r.remove(key, e)
			return fn(s, err)
		}
		e.session = s
	}
	return fn(e.session, nil)
}

// Forget drops the visitor's session for chapterID
func (r *Registry) Forget(visitor, chapterID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, registryKey{visitor: visitor, chapter: chapterID})
}

func (r *Registry) remove(key registryKey, e *registryEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[key] == e {
		delete(r.sessions, key)
	}
}

// Len returns the number of held sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep evicts sessions idle for longer than the TTL and returns how many were removed
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.ttl)
	removed := 0
	for key, e := range r.sessions {
		if e.lastUsed.Before(cutoff) {
			delete(r.sessions, key)
			removed++
		}
	}
	return removed
}

// Run sweeps on every tick until ctx is cancelled
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}
