package decision

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/onnwee/mealpilot/internal/cursor"
)

// History page size bounds.
const (
	MinHistoryLimit     = 1
	MaxHistoryLimit     = 200
	DefaultHistoryLimit = 50
)

// ClampHistoryLimit applies the default and bounds to a page size.
func ClampHistoryLimit(limit *int) int {
	if limit == nil {
		return DefaultHistoryLimit
	}
	return max(MinHistoryLimit, min(MaxHistoryLimit, *limit))
}

// Window is the shared part of history queries.
type Window struct {
	Limit  int
	Cursor string
	From   *time.Time
	To     *time.Time
}

// resolve validates the window before any store access.
func (w Window) resolve() (*cursor.Position, error) {
	if w.From != nil && w.To != nil && w.From.After(*w.To) {
		return nil, ErrInvalidRange
	}
	if strings.TrimSpace(w.Cursor) == "" {
		return nil, nil
	}
	pos, err := cursor.Decode(w.Cursor)
	if err != nil {
		return nil, err
	}
	return &pos, nil
}

func (w Window) limit() int {
	if w.Limit < MinHistoryLimit {
		return DefaultHistoryLimit
	}
	return min(w.Limit, MaxHistoryLimit)
}

// DecisionQuery filters a decision history listing.
type DecisionQuery struct {
	Window
	HasFeedback    *bool
	FeedbackStatus *FeedbackStatus
	ReasonCode     string
}

// EventQuery filters an event listing.
type EventQuery struct {
	Window
	Action *Action
}

// Page is one page of history. NextCursor is empty on the last page.
type Page[T any] struct {
	Items      []T
	NextCursor string
}

// History pages through decisions and events newest first.
type History struct {
	decisions Repository
	events    EventRepository
}

// NewHistory creates a history reader.
func NewHistory(decisions Repository, events EventRepository) *History {
	return &History{decisions: decisions, events: events}
}

// Decision returns one decision the user owns.
func (h *History) Decision(ctx context.Context, userID, decisionID string) (*Decision, error) {
	return loadOwned(ctx, h.decisions, userID, decisionID)
}

// Decisions lists the user's decisions.
func (h *History) Decisions(ctx context.Context, userID string, q DecisionQuery) (Page[*Decision], error) {
	after, err := q.resolve()
	if err != nil {
		return Page[*Decision]{}, err
	}
	limit := q.limit()

	rows, err := h.decisions.List(ctx, userID, Filter{
		After:          after,
		From:           q.From,
		To:             q.To,
		HasFeedback:    q.HasFeedback,
		FeedbackStatus: q.FeedbackStatus,
		ReasonCode:     strings.TrimSpace(q.ReasonCode),
	}, limit+1)
	if err != nil {
		return Page[*Decision]{}, fmt.Errorf("failed to list decisions: %w", err)
	}

	items, next := cursor.Page(rows, limit, func(d *Decision) cursor.Position {
		return cursor.Position{CreatedAt: d.CreatedAt, ID: d.ID}
	})
	if items == nil {
		items = []*Decision{}
	}
	return Page[*Decision]{Items: items, NextCursor: next}, nil
}

// DecisionEvents lists the events of a decision the user owns.
func (h *History) DecisionEvents(ctx context.Context, userID, decisionID string, q EventQuery) (Page[*Event], error) {
	after, err := q.resolve()
	if err != nil {
		return Page[*Event]{}, err
	}
	if _, err := loadOwned(ctx, h.decisions, userID, decisionID); err != nil {
		return Page[*Event]{}, err
	}
	return h.listEvents(ctx, EventFilter{DecisionID: decisionID}, q, after)
}

// UserEvents lists every event of the user.
func (h *History) UserEvents(ctx context.Context, userID string, q EventQuery) (Page[*Event], error) {
	after, err := q.resolve()
	if err != nil {
		return Page[*Event]{}, err
	}
	return h.listEvents(ctx, EventFilter{UserID: userID}, q, after)
}

func (h *History) listEvents(ctx context.Context, f EventFilter, q EventQuery, after *cursor.Position) (Page[*Event], error) {
	limit := q.limit()
	f.Action = q.Action
	f.After = after
	f.From = q.From
	f.To = q.To

	rows, err := h.events.List(ctx, f, limit+1)
	if err != nil {
		return Page[*Event]{}, fmt.Errorf("failed to list events: %w", err)
	}

	items, next := cursor.Page(rows, limit, func(e *Event) cursor.Position {
		return cursor.Position{CreatedAt: e.CreatedAt, ID: e.ID}
	})
	if items == nil {
		items = []*Event{}
	}
	return Page[*Event]{Items: items, NextCursor: next}, nil
}
