package decision

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/onnwee/mealpilot/internal/preference"
	"github.com/onnwee/mealpilot/internal/tracing"
	"github.com/onnwee/mealpilot/internal/validate"
)

// Learner applies feedback to the user's learned preference.
type Learner interface {
	ApplyFeedback(ctx context.Context, userID string, sig *preference.Signal) (*preference.Preference, error)
}

// FeedbackRequest is a feedback submission.
type FeedbackRequest struct {
	Status     FeedbackStatus
	ReasonCode *string
	Category   *ReasonCategory
	Tags       []string
	Rating     *int
	Comment    *string
}

// EventRequest is an intent event submission.
type EventRequest struct {
	Action   Action
	Platform *Platform
	Context  *EventContext
}

// FeedbackProcessor records feedback and intent events on decisions.
//
// The feedback save is the success boundary. The preference update and the
// event append that follow it are derived writes: they run detached from
// the caller's cancellation, and their failures are logged and counted but
// never returned.
type FeedbackProcessor struct {
	decisions Repository
	events    EventRepository
	learner   Learner
	metrics   *Metrics
	now       func() time.Time
}

// NewFeedbackProcessor creates a processor. metrics may be nil.
func NewFeedbackProcessor(decisions Repository, events EventRepository, learner Learner, metrics *Metrics) *FeedbackProcessor {
	return &FeedbackProcessor{
		decisions: decisions,
		events:    events,
		learner:   learner,
		metrics:   metrics,
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

// owned loads a decision and checks that userID owns it.
func (p *FeedbackProcessor) owned(ctx context.Context, userID, decisionID string) (*Decision, error) {
	return loadOwned(ctx, p.decisions, userID, decisionID)
}

func loadOwned(ctx context.Context, repo Repository, userID, decisionID string) (*Decision, error) {
	d, err := repo.GetByID(ctx, decisionID)
	if err != nil {
		return nil, err
	}
	if d.UserID != userID {
		return nil, ErrNotOwner
	}
	return d, nil
}

// BuildFeedback assembles the stored feedback value. A structured reason
// is attached when a category is given or can be inferred from a
// non-blank reason code.
func BuildFeedback(req FeedbackRequest, now time.Time) *Feedback {
	code := validate.TrimmedOrNil(req.ReasonCode)

	var category *ReasonCategory
	if req.Category != nil {
		c := *req.Category
		category = &c
	} else if code != nil {
		c := InferCategory(*code)
		category = &c
	}

	fb := &Feedback{
		Status:     req.Status,
		ReasonCode: code,
		Comment:    validate.TrimmedOrNil(req.Comment),
		Rating:     req.Rating,
		CreatedAt:  now,
	}
	if category != nil {
		fb.Reason = &FeedbackReason{
			Category: *category,
			Code:     code,
			Tags:     validate.Tags(req.Tags),
		}
	}
	return fb
}

// Submit stores feedback on a decision the caller owns, then learns from
// it and appends the matching event. A second submission replaces the
// first.
func (p *FeedbackProcessor) Submit(ctx context.Context, userID, decisionID string, req FeedbackRequest) (_ *Decision, err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "decision.feedback")
	defer func() { endSpan(err) }()

	if !req.Status.Valid() {
		return nil, ErrInvalidStatus
	}

	d, err := p.owned(ctx, userID, decisionID)
	if err != nil {
		return nil, err
	}

	fb := BuildFeedback(req, p.now())
	if err = p.decisions.SetFeedback(ctx, d.ID, fb); err != nil {
		return nil, fmt.Errorf("failed to save feedback: %w", err)
	}
	d.Feedback = fb
	p.metrics.IncFeedback(fb.Status)

	p.applyDerived(context.WithoutCancel(ctx), d, fb)
	return d, nil
}

func (p *FeedbackProcessor) applyDerived(ctx context.Context, d *Decision, fb *Feedback) {
	if _, err := p.learner.ApplyFeedback(ctx, d.UserID, learningSignal(d, fb)); err != nil {
		p.metrics.IncDerivedWriteFailure(DerivedWritePreference)
		slog.ErrorContext(ctx, "failed to update preference from feedback",
			"decision_id", d.ID,
			"user_id", d.UserID,
			"error", err,
		)
	}

	ev := &Event{
		DecisionID: d.ID,
		UserID:     d.UserID,
		Action:     Action(fb.Status),
		CreatedAt:  p.now(),
	}
	if err := p.events.Append(ctx, ev); err != nil {
		p.metrics.IncDerivedWriteFailure(DerivedWriteEvent)
		slog.ErrorContext(ctx, "failed to append feedback event",
			"decision_id", d.ID,
			"user_id", d.UserID,
			"error", err,
		)
		return
	}
	p.metrics.IncEvents(ev.Action)
}

// learningSignal takes the top-ranked candidate as the learning input.
func learningSignal(d *Decision, fb *Feedback) *preference.Signal {
	if len(d.Candidates) == 0 || fb.Status == FeedbackSkip {
		return nil
	}
	top := d.Candidates[0].Item
	sig := &preference.Signal{
		Status: string(fb.Status),
		Tags:   top.Tags,
	}
	if fb.ReasonCode != nil {
		sig.ReasonCode = *fb.ReasonCode
	}
	if top.RestaurantName != nil {
		sig.Restaurant = strings.TrimSpace(*top.RestaurantName)
	}
	return sig
}

// RecordEvent appends an intent event to a decision the caller owns.
// It does not depend on the decision's feedback state.
func (p *FeedbackProcessor) RecordEvent(ctx context.Context, userID, decisionID string, req EventRequest) (*Event, error) {
	if req.Action == ActionClickPlatform && req.Platform == nil {
		return nil, ErrPlatformRequired
	}

	d, err := p.owned(ctx, userID, decisionID)
	if err != nil {
		return nil, err
	}

	ev := &Event{
		DecisionID: d.ID,
		UserID:     d.UserID,
		Action:     req.Action,
		Platform:   req.Platform,
		Context:    req.Context,
		CreatedAt:  p.now(),
	}
	if err := p.events.Append(ctx, ev); err != nil {
		return nil, fmt.Errorf("failed to append event: %w", err)
	}
	p.metrics.IncEvents(ev.Action)
	return ev, nil
}
