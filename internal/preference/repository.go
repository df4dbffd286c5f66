package preference

import (
	"context"
	"sync"
)

// Repository persists preference documents with optimistic concurrency.
type Repository interface {
	// Get returns the stored document or ErrPreferenceNotFound.
	Get(ctx context.Context, userID string) (*Preference, error)

	// Save writes p only if the stored revision still equals expected
	// (0 for a document that was never stored) and returns
	// ErrRevisionConflict otherwise. On success p.Revision is advanced.
	Save(ctx context.Context, p *Preference, expected int64) error
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu    sync.RWMutex
	prefs map[string]*Preference
}

// NewInMemoryRepository creates a new in-memory preference repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{prefs: make(map[string]*Preference)}
}

// Get implements Repository.
func (r *InMemoryRepository) Get(_ context.Context, userID string) (*Preference, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.prefs[userID]
	if !ok {
		return nil, ErrPreferenceNotFound
	}
	return p.Clone(), nil
}

// Save implements Repository.
func (r *InMemoryRepository) Save(_ context.Context, p *Preference, expected int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var current int64
	if existing, ok := r.prefs[p.UserID]; ok {
		current = existing.Revision
	}
	if current != expected {
		return ErrRevisionConflict
	}

	p.Revision = expected + 1
	r.prefs[p.UserID] = p.Clone()
	return nil
}
