package api

import (
	"context"
	"net/http"

	"github.com/onnwee/mealpilot/internal/decision"
)

// Decider ranks a user's items and persists the decision.
type Decider interface {
	Decide(ctx context.Context, userID string, req decision.Request) (*decision.Result, error)
}

// DecideRequest is the body of POST /api/decide. Limit is clamped, not
// rejected.
type DecideRequest struct {
	Budget       *int     `json:"budget" validate:"omitempty,gte=0,lte=100000"`
	MustHaveTags []string `json:"mustHaveTags" validate:"omitempty,max=20,dive,max=32"`
	AvoidTags    []string `json:"avoidTags" validate:"omitempty,max=20,dive,max=32"`
	Query        *string  `json:"query" validate:"omitempty,max=200"`
	Limit        *int     `json:"limit"`
}

// DecideHandlers serves the ranking endpoint.
type DecideHandlers struct {
	decider Decider
}

// NewDecideHandlers creates a new DecideHandlers instance.
func NewDecideHandlers(decider Decider) *DecideHandlers {
	return &DecideHandlers{decider: decider}
}

// Decide handles POST /api/decide. An empty body is treated as {}.
func (h *DecideHandlers) Decide(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req DecideRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}

	result, err := h.decider.Decide(r.Context(), userID(r), decision.Request{
		Budget:       req.Budget,
		MustHaveTags: req.MustHaveTags,
		AvoidTags:    req.AvoidTags,
		Query:        req.Query,
		Limit:        req.Limit,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}
