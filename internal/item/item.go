// Package item is the candidate item source for the decision engine.
// Items are owned by a user and are only mutated through this package;
// scoring reads a snapshot of the active items for each request.
package item

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/mealpilot/internal/cursor"
)

// Common errors for item operations.
var (
	ErrItemNotFound = errors.New("item not found")
	ErrNotOwner     = errors.New("not your item")
)

// Item is a saved meal candidate.
type Item struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	Name           string    `json:"name"`
	RestaurantName *string   `json:"restaurantName"`
	Tags           []string  `json:"tags"`
	PlatformHints  []string  `json:"platformHints"`
	PriceEstimate  *int      `json:"priceEstimate"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Restaurant returns the restaurant name or "".
func (i *Item) Restaurant() string {
	if i.RestaurantName == nil {
		return ""
	}
	return *i.RestaurantName
}

// NormalizeHints trims, lowercases and de-duplicates platform hints,
// keeping first-seen order. Blank hints are dropped.
func NormalizeHints(hints []string) []string {
	seen := make(map[string]struct{}, len(hints))
	out := make([]string, 0, len(hints))
	for _, h := range hints {
		n := strings.ToLower(strings.TrimSpace(h))
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// ListFilter narrows a history listing. All set fields AND together.
type ListFilter struct {
	After  *cursor.Position
	From   *time.Time
	To     *time.Time
	Active *bool
}

func (f ListFilter) matches(it *Item) bool {
	if f.Active != nil && it.Active != *f.Active {
		return false
	}
	if f.From != nil && it.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && it.CreatedAt.After(*f.To) {
		return false
	}
	if f.After != nil && !f.After.Admits(it.CreatedAt, it.ID) {
		return false
	}
	return true
}

// Repository stores items.
type Repository interface {
	// Create assigns an id and timestamps and stores the item.
	Create(ctx context.Context, it *Item) error

	// GetByID returns the item or ErrItemNotFound.
	GetByID(ctx context.Context, id string) (*Item, error)

	// Update replaces an existing item and bumps UpdatedAt.
	Update(ctx context.Context, it *Item) error

	// ListActive returns every active item of the user, in no particular order.
	ListActive(ctx context.Context, userID string) ([]*Item, error)

	// List returns up to fetch items of the user matching f,
	// ordered by created_at DESC, id DESC.
	List(ctx context.Context, userID string, f ListFilter, fetch int) ([]*Item, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu    sync.RWMutex
	items map[string]*Item
	now   func() time.Time
}

// NewInMemoryRepository creates a new in-memory item repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		items: make(map[string]*Item),
		now:   func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

func clone(it *Item) *Item {
	c := *it
	c.Tags = append([]string(nil), it.Tags...)
	c.PlatformHints = append([]string(nil), it.PlatformHints...)
	if it.RestaurantName != nil {
		r := *it.RestaurantName
		c.RestaurantName = &r
	}
	if it.PriceEstimate != nil {
		p := *it.PriceEstimate
		c.PriceEstimate = &p
	}
	return &c
}

// Create implements Repository.
func (r *InMemoryRepository) Create(_ context.Context, it *Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if it.ID == "" {
		it.ID = uuid.New().String()
	}
	now := r.now()
	if it.CreatedAt.IsZero() {
		it.CreatedAt = now
	}
	if it.UpdatedAt.IsZero() {
		it.UpdatedAt = it.CreatedAt
	}
	r.items[it.ID] = clone(it)
	return nil
}

// GetByID implements Repository.
func (r *InMemoryRepository) GetByID(_ context.Context, id string) (*Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	it, ok := r.items[id]
	if !ok {
		return nil, ErrItemNotFound
	}
	return clone(it), nil
}

// Update implements Repository.
func (r *InMemoryRepository) Update(_ context.Context, it *Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.items[it.ID]
	if !ok {
		return ErrItemNotFound
	}
	it.CreatedAt = existing.CreatedAt
	it.UpdatedAt = r.now()
	r.items[it.ID] = clone(it)
	return nil
}

// ListActive implements Repository.
func (r *InMemoryRepository) ListActive(_ context.Context, userID string) ([]*Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Item
	for _, it := range r.items {
		if it.UserID == userID && it.Active {
			out = append(out, clone(it))
		}
	}
	return out, nil
}

// List implements Repository.
func (r *InMemoryRepository) List(_ context.Context, userID string, f ListFilter, fetch int) ([]*Item, error) {
	r.mu.RLock()
	var out []*Item
	for _, it := range r.items {
		if it.UserID == userID && f.matches(it) {
			out = append(out, clone(it))
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	if fetch > 0 && len(out) > fetch {
		out = out[:fetch]
	}
	return out, nil
}
