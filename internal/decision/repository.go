package decision

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/onnwee/mealpilot/internal/cursor"
)

// Filter narrows a decision history listing. All set fields AND together.
type Filter struct {
	After          *cursor.Position
	From           *time.Time
	To             *time.Time
	HasFeedback    *bool
	FeedbackStatus *FeedbackStatus
	ReasonCode     string
}

func (f Filter) matches(d *Decision) bool {
	if f.From != nil && d.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && d.CreatedAt.After(*f.To) {
		return false
	}
	if f.HasFeedback != nil && (d.Feedback != nil) != *f.HasFeedback {
		return false
	}
	if f.FeedbackStatus != nil && (d.Feedback == nil || d.Feedback.Status != *f.FeedbackStatus) {
		return false
	}
	if f.ReasonCode != "" && (d.Feedback == nil || d.Feedback.ReasonCode == nil || *d.Feedback.ReasonCode != f.ReasonCode) {
		return false
	}
	if f.After != nil && !f.After.Admits(d.CreatedAt, d.ID) {
		return false
	}
	return true
}

// EventFilter narrows an event listing. DecisionID and UserID are optional
// scopes; at least one is set by callers.
type EventFilter struct {
	DecisionID string
	UserID     string
	Action     *Action
	After      *cursor.Position
	From       *time.Time
	To         *time.Time
}

func (f EventFilter) matches(e *Event) bool {
	if f.DecisionID != "" && e.DecisionID != f.DecisionID {
		return false
	}
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.Action != nil && e.Action != *f.Action {
		return false
	}
	if f.From != nil && e.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && e.CreatedAt.After(*f.To) {
		return false
	}
	if f.After != nil && !f.After.Admits(e.CreatedAt, e.ID) {
		return false
	}
	return true
}

// Repository stores decisions.
type Repository interface {
	// Create assigns an id when empty and stores d.
	Create(ctx context.Context, d *Decision) error

	// GetByID returns the decision or ErrDecisionNotFound.
	GetByID(ctx context.Context, id string) (*Decision, error)

	// SetFeedback replaces the feedback of an existing decision.
	SetFeedback(ctx context.Context, id string, fb *Feedback) error

	// List returns up to fetch decisions of the user matching f,
	// ordered by created_at DESC, id DESC.
	List(ctx context.Context, userID string, f Filter, fetch int) ([]*Decision, error)
}

// EventRepository is the append-only event log.
type EventRepository interface {
	// Append assigns an id when empty and stores e.
	Append(ctx context.Context, e *Event) error

	// List returns up to fetch events matching f, ordered by
	// created_at DESC, id DESC.
	List(ctx context.Context, f EventFilter, fetch int) ([]*Event, error)
}

// NewID returns a time-ordered identifier for decisions and events.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// deepCopy round-trips v through JSON so stored documents never share
// slices or maps with callers.
func deepCopy[T any](v *T) (*T, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to copy %T: %w", v, err)
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to copy %T: %w", v, err)
	}
	return &out, nil
}

func sortNewestFirst[T any](rows []T, key func(T) (time.Time, string)) {
	sort.Slice(rows, func(i, j int) bool {
		ti, idi := key(rows[i])
		tj, idj := key(rows[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return idi > idj
	})
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu        sync.RWMutex
	decisions map[string]*Decision
}

// NewInMemoryRepository creates a new in-memory decision repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{decisions: make(map[string]*Decision)}
}

// Create implements Repository.
func (r *InMemoryRepository) Create(_ context.Context, d *Decision) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d.ID == "" {
		d.ID = NewID()
	}
	stored, err := deepCopy(d)
	if err != nil {
		return err
	}
	r.decisions[d.ID] = stored
	return nil
}

// GetByID implements Repository.
func (r *InMemoryRepository) GetByID(_ context.Context, id string) (*Decision, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.decisions[id]
	if !ok {
		return nil, ErrDecisionNotFound
	}
	return deepCopy(d)
}

// SetFeedback implements Repository.
func (r *InMemoryRepository) SetFeedback(_ context.Context, id string, fb *Feedback) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.decisions[id]
	if !ok {
		return ErrDecisionNotFound
	}
	stored, err := deepCopy(fb)
	if err != nil {
		return err
	}
	d.Feedback = stored
	return nil
}

// List implements Repository.
func (r *InMemoryRepository) List(_ context.Context, userID string, f Filter, fetch int) ([]*Decision, error) {
	r.mu.RLock()
	var out []*Decision
	for _, d := range r.decisions {
		if d.UserID != userID || !f.matches(d) {
			continue
		}
		c, err := deepCopy(d)
		if err != nil {
			r.mu.RUnlock()
			return nil, err
		}
		out = append(out, c)
	}
	r.mu.RUnlock()

	sortNewestFirst(out, func(d *Decision) (time.Time, string) { return d.CreatedAt, d.ID })
	if fetch > 0 && len(out) > fetch {
		out = out[:fetch]
	}
	return out, nil
}

// InMemoryEventRepository is an in-memory implementation of EventRepository.
type InMemoryEventRepository struct {
	mu     sync.RWMutex
	events []*Event
}

// NewInMemoryEventRepository creates a new in-memory event log.
func NewInMemoryEventRepository() *InMemoryEventRepository {
	return &InMemoryEventRepository{}
}

// Append implements EventRepository.
func (r *InMemoryEventRepository) Append(_ context.Context, e *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.ID == "" {
		e.ID = NewID()
	}
	stored, err := deepCopy(e)
	if err != nil {
		return err
	}
	r.events = append(r.events, stored)
	return nil
}

// List implements EventRepository.
func (r *InMemoryEventRepository) List(_ context.Context, f EventFilter, fetch int) ([]*Event, error) {
	r.mu.RLock()
	var out []*Event
	for _, e := range r.events {
		if !f.matches(e) {
			continue
		}
		c, err := deepCopy(e)
		if err != nil {
			r.mu.RUnlock()
			return nil, err
		}
		out = append(out, c)
	}
	r.mu.RUnlock()

	sortNewestFirst(out, func(e *Event) (time.Time, string) { return e.CreatedAt, e.ID })
	if fetch > 0 && len(out) > fetch {
		out = out[:fetch]
	}
	return out, nil
}
