package services

import (
	"sync"
	"time"

	"github.com/Logan-Myn/dancehub-v3-sub000/metrics"
)

// Session is an in-memory wizard or booking flow.
type Session interface {
	Close()
	Closed() bool
}

type registryEntry[T Session] struct {
	value    T
	lastSeen time.Time
}

// Registry holds live sessions by key and evicts idle ones.
type Registry[T Session] struct {
	mu      sync.Mutex
	kind    string
	entries map[string]*registryEntry[T]
	now     func() time.Time
}

func NewRegistry[T Session](kind string) *Registry[T] {
	return &Registry[T]{kind: kind, entries: make(map[string]*registryEntry[T]), now: time.Now}
}

// Get returns a live session and refreshes its idle timer. Closed sessions
// are dropped.
func (r *Registry[T]) Get(key string) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var zero T
	e, ok := r.entries[key]
	if !ok {
		return zero, false
	}
	if e.value.Closed() {
		r.removeLocked(key)
		return zero, false
	}
	e.lastSeen = r.now()
	return e.value, true
}

// GetOrCreate runs create outside the lock. If another request stored a
// session for key meanwhile, the new one is closed and the stored one wins.
func (r *Registry[T]) GetOrCreate(key string, create func() (T, error)) (T, error) {
	if v, ok := r.Get(key); ok {
		return v, nil
	}
	v, err := create()
	if err != nil {
		var zero T
		return zero, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[key]; ok && !e.value.Closed() {
		v.Close()
		e.lastSeen = r.now()
		return e.value, nil
	}
	r.putLocked(key, v)
	return v, nil
}

func (r *Registry[T]) Put(key string, v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[key]; ok {
		e.value.Close()
		r.removeLocked(key)
	}
	r.putLocked(key, v)
}

// Delete closes and forgets the session.
func (r *Registry[T]) Delete(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[key]; ok {
		e.value.Close()
		r.removeLocked(key)
	}
}

// Evict closes sessions idle for longer than ttl and returns how many went.
func (r *Registry[T]) Evict(ttl time.Duration) int {
	r.mu.Lock()
	cutoff := r.now().Add(-ttl)
	var stale []T
	for k, e := range r.entries {
		if e.value.Closed() || e.lastSeen.Before(cutoff) {
			stale = append(stale, e.value)
			r.removeLocked(k)
		}
	}
	r.mu.Unlock()

	for _, v := range stale {
		v.Close()
	}
	return len(stale)
}

func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry[T]) putLocked(key string, v T) {
	r.entries[key] = &registryEntry[T]{value: v, lastSeen: r.now()}
	metrics.ActiveSessions.WithLabelValues(r.kind).Set(float64(len(r.entries)))
}

func (r *Registry[T]) removeLocked(key string) {
	delete(r.entries, key)
	metrics.ActiveSessions.WithLabelValues(r.kind).Set(float64(len(r.entries)))
}
