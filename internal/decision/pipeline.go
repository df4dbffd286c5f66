package decision

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/onnwee/mealpilot/internal/item"
	"github.com/onnwee/mealpilot/internal/preference"
	"github.com/onnwee/mealpilot/internal/tracing"
)

// EmptyPoolMessage is returned when the user has no active items.
const EmptyPoolMessage = "No saved items yet. Create a few via POST /api/items to get decisions."

// ItemSource supplies the candidate pool.
type ItemSource interface {
	ListActive(ctx context.Context, userID string) ([]*item.Item, error)
}

// PreferenceReader returns the user's preference, defaulting when absent.
type PreferenceReader interface {
	Get(ctx context.Context, userID string) (*preference.Preference, error)
}

// Request is a decide call. Limit is nil for the default.
type Request struct {
	Budget       *int
	MustHaveTags []string
	AvoidTags    []string
	Query        *string
	Limit        *int
}

// Result is the outcome of a decide call. DecisionID and Message are
// mutually exclusive.
type Result struct {
	DecisionID *string     `json:"decisionId"`
	UserID     string      `json:"userId"`
	Time       time.Time   `json:"time"`
	Limit      int         `json:"limit"`
	Candidates []Candidate `json:"candidates"`
	Message    *string     `json:"message"`
}

// Pipeline ranks a user's items and persists the decision.
type Pipeline struct {
	items     ItemSource
	prefs     PreferenceReader
	decisions Repository
	engine    *ScoringEngine
	metrics   *Metrics
	now       func() time.Time
}

// NewPipeline creates a ranking pipeline. metrics may be nil.
func NewPipeline(items ItemSource, prefs PreferenceReader, decisions Repository, engine *ScoringEngine, metrics *Metrics) *Pipeline {
	return &Pipeline{
		items:     items,
		prefs:     prefs,
		decisions: decisions,
		engine:    engine,
		metrics:   metrics,
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

// Decide loads the pool and preference, scores, ranks, truncates and
// persists. An empty pool returns a message and stores nothing.
func (p *Pipeline) Decide(ctx context.Context, userID string, req Request) (_ *Result, err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "decision.decide")
	defer func() { endSpan(err) }()

	limit := ClampLimit(req.Limit)
	now := p.now()

	var (
		pool []*item.Item
		pref *preference.Preference
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pool, err = p.items.ListActive(gctx, userID)
		if err != nil {
			return fmt.Errorf("failed to load items: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		pref, err = p.prefs.Get(gctx, userID)
		if err != nil {
			return fmt.Errorf("failed to load preference: %w", err)
		}
		return nil
	})
	if err = g.Wait(); err != nil {
		return nil, err
	}

	if len(pool) == 0 {
		msg := EmptyPoolMessage
		return &Result{
			UserID:     userID,
			Time:       now,
			Limit:      limit,
			Candidates: []Candidate{},
			Message:    &msg,
		}, nil
	}

	input := Input{
		Budget:       req.Budget,
		MustHaveTags: req.MustHaveTags,
		AvoidTags:    req.AvoidTags,
		Query:        req.Query,
		Limit:        limit,
	}
	candidates := p.rank(pool, input, pref)

	d := &Decision{
		UserID:     userID,
		CreatedAt:  now,
		Input:      input,
		Candidates: candidates,
		Meta: Meta{
			SchemaVersion:      SchemaVersion,
			Algorithm:          Algorithm,
			AlgorithmVersion:   AlgorithmVersion,
			InputHash:          HashInput(input),
			ItemsHash:          HashItems(pool),
			PreferenceHash:     HashPreference(pref),
			PreferenceSnapshot: SnapshotPreference(pref),
		},
	}
	if err = p.decisions.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to save decision: %w", err)
	}
	p.metrics.ObserveDecision(len(candidates))

	id := d.ID
	return &Result{
		DecisionID: &id,
		UserID:     userID,
		Time:       now,
		Limit:      limit,
		Candidates: candidates,
	}, nil
}

// rank is the CPU-only part of Decide.
func (p *Pipeline) rank(pool []*item.Item, input Input, pref *preference.Preference) []Candidate {
	constraints := NewConstraints(input, pref)

	scored := make([]Scored, 0, len(pool))
	for _, it := range pool {
		scored = append(scored, p.engine.Score(it, constraints))
	}
	Rank(scored)

	top := scored[:min(input.Limit, len(scored))]
	scores := make([]float64, len(top))
	for i, s := range top {
		scores[i] = s.Score()
	}
	confidences := Softmax(scores)

	candidates := make([]Candidate, len(top))
	for i, s := range top {
		candidates[i] = Candidate{
			Item:       snapshotItem(s.Item),
			Score:      s.Score(),
			Confidence: confidences[i],
			Why:        s.Why,
			DeepLinks:  DeepLinks(s.Item),
			Breakdown:  s.Breakdown,
		}
	}
	return candidates
}

func snapshotItem(it *item.Item) ItemSnapshot {
	tags := it.Tags
	if tags == nil {
		tags = []string{}
	}
	return ItemSnapshot{
		ID:             it.ID,
		Name:           it.Name,
		RestaurantName: it.RestaurantName,
		Tags:           tags,
		PriceEstimate:  it.PriceEstimate,
	}
}
