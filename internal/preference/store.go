package preference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultUpdateRetries bounds compare-and-swap attempts per update.
const DefaultUpdateRetries = 3

// Store is the read and write path for preferences. Every write is a
// read-modify-write guarded by the document revision: a concurrent writer
// causes a reload and a retry, up to the configured attempt count.
type Store struct {
	repo    Repository
	retries int
	metrics *Metrics
	now     func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithRetries sets the number of compare-and-swap attempts.
func WithRetries(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.retries = n
		}
	}
}

// WithMetrics records conflicts on m.
func WithMetrics(m *Metrics) StoreOption {
	return func(s *Store) { s.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore creates a Store over repo.
func NewStore(repo Repository, opts ...StoreOption) *Store {
	s := &Store{
		repo:    repo,
		retries: DefaultUpdateRetries,
		now:     func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the user's preference, or the empty default when none is stored.
func (s *Store) Get(ctx context.Context, userID string) (*Preference, error) {
	p, err := s.repo.Get(ctx, userID)
	if errors.Is(err, ErrPreferenceNotFound) {
		return Empty(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load preference: %w", err)
	}
	return p, nil
}

// UpsertProfile replaces the explicit profile and keeps the learned weights.
func (s *Store) UpsertProfile(ctx context.Context, userID string, profile Profile) (*Preference, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return s.update(ctx, userID, func(p *Preference) (*Preference, bool) {
		return p.WithProfile(profile, s.now()), true
	})
}

// ApplyFeedback learns from sig. SKIP and nil signals do not write.
func (s *Store) ApplyFeedback(ctx context.Context, userID string, sig *Signal) (*Preference, error) {
	return s.update(ctx, userID, func(p *Preference) (*Preference, bool) {
		return ApplyFeedback(p, sig, s.now())
	})
}

func (s *Store) update(ctx context.Context, userID string, mutate func(*Preference) (*Preference, bool)) (*Preference, error) {
	for attempt := 1; ; attempt++ {
		current, err := s.Get(ctx, userID)
		if err != nil {
			return nil, err
		}

		next, changed := mutate(current)
		if !changed {
			return current, nil
		}

		err = s.repo.Save(ctx, next, current.Revision)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, ErrRevisionConflict) {
			return nil, fmt.Errorf("failed to save preference: %w", err)
		}

		if s.metrics != nil {
			s.metrics.IncConflicts()
		}
		if attempt >= s.retries {
			return nil, fmt.Errorf("failed to save preference after %d attempts: %w", attempt, err)
		}
		slog.DebugContext(ctx, "preference revision conflict, retrying",
			"user_id", userID,
			"attempt", attempt,
		)
	}
}
