package preference

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestStore_GetDefaultsToEmpty(t *testing.T) {
	s := NewStore(NewInMemoryRepository())

	p, err := s.Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if p.UserID != "u1" || p.SchemaVersion != SchemaVersion || p.Revision != 0 {
		t.Errorf("unexpected default: %+v", p)
	}
	if len(p.TagWeights) != 0 || len(p.RestaurantWeights) != 0 {
		t.Errorf("expected empty weights, got %+v", p)
	}
}

func TestStore_UpsertProfileKeepsWeights(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewInMemoryRepository(), WithClock(func() time.Time { return fixedNow }))

	if _, err := s.ApplyFeedback(ctx, "u1", &Signal{Status: StatusAccept, Tags: []string{"veg"}, Restaurant: "X"}); err != nil {
		t.Fatalf("ApplyFeedback failed: %v", err)
	}

	p, err := s.UpsertProfile(ctx, "u1", Profile{PreferTags: []string{"Spicy"}, BudgetMax: intPtr(300)})
	if err != nil {
		t.Fatalf("UpsertProfile failed: %v", err)
	}
	if p.TagWeight("veg") != 1 || p.RestaurantWeight("x") != 1 {
		t.Errorf("expected learned weights kept, got %+v", p)
	}
	if len(p.Profile.PreferTags) != 1 || p.Profile.PreferTags[0] != "spicy" {
		t.Errorf("expected normalized profile, got %v", p.Profile.PreferTags)
	}

	// Replacement is wholesale.
	p, err = s.UpsertProfile(ctx, "u1", Profile{})
	if err != nil {
		t.Fatalf("UpsertProfile failed: %v", err)
	}
	if p.Profile.BudgetMax != nil || len(p.Profile.PreferTags) != 0 {
		t.Errorf("expected profile cleared, got %+v", p.Profile)
	}
	if p.Revision != 3 {
		t.Errorf("expected revision 3, got %d", p.Revision)
	}
}

func TestStore_UpsertProfileRejectsBudgetRange(t *testing.T) {
	s := NewStore(NewInMemoryRepository())
	_, err := s.UpsertProfile(context.Background(), "u1", Profile{BudgetMin: intPtr(500), BudgetMax: intPtr(100)})
	if !errors.Is(err, ErrBudgetRange) {
		t.Errorf("expected ErrBudgetRange, got %v", err)
	}
}

func TestStore_SkipDoesNotWrite(t *testing.T) {
	repo := NewInMemoryRepository()
	s := NewStore(repo)

	if _, err := s.ApplyFeedback(context.Background(), "u1", &Signal{Status: StatusSkip, Tags: []string{"veg"}}); err != nil {
		t.Fatalf("ApplyFeedback failed: %v", err)
	}
	if _, err := repo.Get(context.Background(), "u1"); !errors.Is(err, ErrPreferenceNotFound) {
		t.Errorf("expected nothing stored, got %v", err)
	}
}

// racingRepository makes the first n saves lose to a concurrent writer.
type racingRepository struct {
	*InMemoryRepository
	losses int
}

func (r *racingRepository) Save(ctx context.Context, p *Preference, expected int64) error {
	if r.losses > 0 {
		r.losses--
		rival := Empty(p.UserID)
		rival.TagWeights["rival"] = 1
		if err := r.InMemoryRepository.Save(ctx, rival, expected); err != nil {
			return err
		}
	}
	return r.InMemoryRepository.Save(ctx, p, expected)
}

func TestStore_RetriesOnConflict(t *testing.T) {
	tests := []struct {
		name          string
		losses        int
		retries       int
		wantErr       bool
		wantConflicts float64
	}{
		{"no race", 0, 3, false, 0},
		{"one lost race", 1, 3, false, 1},
		{"two lost races", 2, 3, false, 2},
		{"retries exhausted", 3, 3, true, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &racingRepository{InMemoryRepository: NewInMemoryRepository(), losses: tt.losses}
			metrics := NewMetrics()
			s := NewStore(repo, WithRetries(tt.retries), WithMetrics(metrics))

			p, err := s.ApplyFeedback(context.Background(), "u1", &Signal{Status: StatusAccept, Tags: []string{"veg"}})
			if tt.wantErr {
				if !errors.Is(err, ErrRevisionConflict) {
					t.Fatalf("expected ErrRevisionConflict, got %v", err)
				}
			} else {
				if err != nil {
					t.Fatalf("ApplyFeedback failed: %v", err)
				}
				if p.TagWeight("veg") != 1 {
					t.Errorf("expected veg=1, got %d", p.TagWeight("veg"))
				}
				if tt.losses > 0 && p.TagWeight("rival") != 1 {
					t.Errorf("expected rival write preserved, got %+v", p.TagWeights)
				}
			}
			if got := testutil.ToFloat64(metrics.conflicts); got != tt.wantConflicts {
				t.Errorf("expected %v conflicts, got %v", tt.wantConflicts, got)
			}
		})
	}
}

func TestStore_ConcurrentFeedbackLosesNothing(t *testing.T) {
	s := NewStore(NewInMemoryRepository(), WithRetries(1000))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.ApplyFeedback(ctx, "u1", &Signal{Status: StatusAccept, Tags: []string{"veg"}}); err != nil {
				t.Errorf("ApplyFeedback failed: %v", err)
			}
		}()
	}
	wg.Wait()

	p, _ := s.Get(ctx, "u1")
	if p.TagWeight("veg") != 5 {
		t.Errorf("expected all five updates applied, got %d", p.TagWeight("veg"))
	}
}
