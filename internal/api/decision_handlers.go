package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/onnwee/mealpilot/internal/decision"
)

// DecisionsPrefix is the path the per-decision routes live under.
const DecisionsPrefix = "/api/decisions/"

// HistoryReader pages through a user's decisions and events.
type HistoryReader interface {
	Decision(ctx context.Context, userID, decisionID string) (*decision.Decision, error)
	Decisions(ctx context.Context, userID string, q decision.DecisionQuery) (decision.Page[*decision.Decision], error)
	DecisionEvents(ctx context.Context, userID, decisionID string, q decision.EventQuery) (decision.Page[*decision.Event], error)
	UserEvents(ctx context.Context, userID string, q decision.EventQuery) (decision.Page[*decision.Event], error)
}

// FeedbackRecorder stores feedback and intent events on decisions.
type FeedbackRecorder interface {
	Submit(ctx context.Context, userID, decisionID string, req decision.FeedbackRequest) (*decision.Decision, error)
	RecordEvent(ctx context.Context, userID, decisionID string, req decision.EventRequest) (*decision.Event, error)
}

// FeedbackRequest is the body of POST /api/decisions/{id}/feedback.
type FeedbackRequest struct {
	Status     string   `json:"status" validate:"required,oneof=ACCEPT REJECT SKIP"`
	ReasonCode *string  `json:"reasonCode" validate:"omitempty,max=64"`
	Category   *string  `json:"category" validate:"omitempty,oneof=PRICE TASTE DIET AVAILABILITY VARIETY OTHER"`
	Tags       []string `json:"tags" validate:"omitempty,dive,max=32"`
	Rating     *int     `json:"rating" validate:"omitempty,gte=1,lte=5"`
	Comment    *string  `json:"comment" validate:"omitempty,max=500"`
}

// EventRequest is the body of POST /api/decisions/{id}/events.
type EventRequest struct {
	Action   string                 `json:"action" validate:"required,oneof=ACCEPT REJECT SKIP CLICK_PLATFORM"`
	Platform *string                `json:"platform" validate:"omitempty,oneof=SWIGGY ZOMATO EATSURE"`
	Context  *decision.EventContext `json:"context"`
}

// DecisionHandlers serves decision history, feedback and intent events.
type DecisionHandlers struct {
	history  HistoryReader
	feedback FeedbackRecorder
}

// NewDecisionHandlers creates a new DecisionHandlers instance.
func NewDecisionHandlers(history HistoryReader, feedback FeedbackRecorder) *DecisionHandlers {
	return &DecisionHandlers{history: history, feedback: feedback}
}

// Route dispatches everything under /api/decisions/.
func (h *DecisionHandlers) Route(w http.ResponseWriter, r *http.Request) {
	id, rest := pathID(r.URL.Path, DecisionsPrefix)
	if id == "" {
		h.ListDecisions(w, r)
		return
	}

	switch rest {
	case "":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		h.GetDecision(w, r, id)
	case "feedback":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		h.SubmitFeedback(w, r, id)
	case "events":
		switch r.Method {
		case http.MethodPost:
			h.RecordEvent(w, r, id)
		case http.MethodGet:
			h.ListDecisionEvents(w, r, id)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
		}
	default:
		WriteError(w, r, http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
	}
}

// ListDecisions handles GET /api/decisions.
func (h *DecisionHandlers) ListDecisions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	window, err := parseWindow(r)
	if err != nil {
		writeQueryError(w, r, err)
		return
	}
	hasFeedback, err := parseOptionalBool(r, "hasFeedback")
	if err != nil {
		writeQueryError(w, r, err)
		return
	}

	q := decision.DecisionQuery{
		Window:      window,
		HasFeedback: hasFeedback,
		ReasonCode:  r.URL.Query().Get("reasonCode"),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("feedbackStatus")); raw != "" {
		status := decision.FeedbackStatus(strings.ToUpper(raw))
		if !status.Valid() {
			WriteError(w, r, http.StatusBadRequest, ErrCodeValidation, "feedbackStatus must be one of: ACCEPT REJECT SKIP")
			return
		}
		q.FeedbackStatus = &status
	}

	page, err := h.history.Decisions(r.Context(), userID(r), q)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writePage(w, r, page)
}

// GetDecision handles GET /api/decisions/{id}.
func (h *DecisionHandlers) GetDecision(w http.ResponseWriter, r *http.Request, id string) {
	d, err := h.history.Decision(r.Context(), userID(r), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, d)
}

// SubmitFeedback handles POST /api/decisions/{id}/feedback.
func (h *DecisionHandlers) SubmitFeedback(w http.ResponseWriter, r *http.Request, id string) {
	var req FeedbackRequest
	if !decodeBody(w, r, &req) {
		return
	}

	fr := decision.FeedbackRequest{
		Status:     decision.FeedbackStatus(req.Status),
		ReasonCode: req.ReasonCode,
		Tags:       req.Tags,
		Rating:     req.Rating,
		Comment:    req.Comment,
	}
	if req.Category != nil {
		c := decision.ReasonCategory(*req.Category)
		fr.Category = &c
	}

	d, err := h.feedback.Submit(r.Context(), userID(r), id, fr)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, d)
}

// RecordEvent handles POST /api/decisions/{id}/events.
func (h *DecisionHandlers) RecordEvent(w http.ResponseWriter, r *http.Request, id string) {
	var req EventRequest
	if !decodeBody(w, r, &req) {
		return
	}

	er := decision.EventRequest{
		Action:  decision.Action(req.Action),
		Context: req.Context,
	}
	if req.Platform != nil {
		p := decision.Platform(*req.Platform)
		er.Platform = &p
	}

	ev, err := h.feedback.RecordEvent(r.Context(), userID(r), id, er)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, ev)
}

// ListDecisionEvents handles GET /api/decisions/{id}/events.
func (h *DecisionHandlers) ListDecisionEvents(w http.ResponseWriter, r *http.Request, id string) {
	q, ok := parseEventQuery(w, r)
	if !ok {
		return
	}
	page, err := h.history.DecisionEvents(r.Context(), userID(r), id, q)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writePage(w, r, page)
}

// ListEvents handles GET /api/events.
func (h *DecisionHandlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	q, ok := parseEventQuery(w, r)
	if !ok {
		return
	}
	page, err := h.history.UserEvents(r.Context(), userID(r), q)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writePage(w, r, page)
}

func parseEventQuery(w http.ResponseWriter, r *http.Request) (decision.EventQuery, bool) {
	window, err := parseWindow(r)
	if err != nil {
		writeQueryError(w, r, err)
		return decision.EventQuery{}, false
	}
	q := decision.EventQuery{Window: window}
	if raw := strings.TrimSpace(r.URL.Query().Get("action")); raw != "" {
		action := decision.Action(strings.ToUpper(raw))
		switch action {
		case decision.ActionAccept, decision.ActionReject, decision.ActionSkip, decision.ActionClickPlatform:
		default:
			WriteError(w, r, http.StatusBadRequest, ErrCodeValidation, "action must be one of: ACCEPT REJECT SKIP CLICK_PLATFORM")
			return decision.EventQuery{}, false
		}
		q.Action = &action
	}
	return q, true
}
