package api

import (
	"net/http"
	"testing"

	"github.com/onnwee/mealpilot/internal/decision"
)

// seedDecision creates one item and one decision for user.
func seedDecision(t *testing.T, s *testServer, user string) string {
	t.Helper()
	s.createItem(t, user, map[string]any{"name": "Chicken Biryani", "restaurantName": "Paradise", "tags": []string{"spicy"}})
	res := s.decide(t, user, map[string]any{})
	if res.DecisionID == nil {
		t.Fatal("expected a decision id")
	}
	return *res.DecisionID
}

func TestGetDecision_Ownership(t *testing.T) {
	s := newTestServer(t)
	id := seedDecision(t, s, "u1")

	tests := []struct {
		name        string
		path        string
		user        string
		wantStatus  int
		wantMessage string
	}{
		{"owner", "/api/decisions/" + id, "u1", http.StatusOK, ""},
		{"other user", "/api/decisions/" + id, "u2", http.StatusForbidden, "not your decision"},
		{"missing", "/api/decisions/does-not-exist", "u1", http.StatusNotFound, "decision not found"},
		{"unknown subresource", "/api/decisions/" + id + "/nope", "u1", http.StatusNotFound, "The requested resource was not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodGet, tt.path, tt.user, nil)
			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantMessage == "" {
				var d decision.Decision
				decodeJSON(t, w, &d)
				if d.ID != id || d.Meta.InputHash == "" {
					t.Errorf("unexpected decision %+v", d)
				}
				return
			}
			if msg := decodeError(t, w).Message; msg != tt.wantMessage {
				t.Errorf("expected message %q, got %q", tt.wantMessage, msg)
			}
		})
	}
}

func TestListDecisions_Pagination(t *testing.T) {
	s := newTestServer(t)
	s.createItem(t, "u1", map[string]any{"name": "Dal"})
	for i := 0; i < 3; i++ {
		s.decide(t, "u1", map[string]any{})
	}

	w := s.do(t, http.MethodGet, "/api/decisions?limit=2", "u1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var first []decision.Decision
	decodeJSON(t, w, &first)
	next := w.Header().Get(NextCursorHeader)
	if len(first) != 2 || next == "" {
		t.Fatalf("expected 2 rows and a cursor, got %d rows and %q", len(first), next)
	}

	w = s.do(t, http.MethodGet, "/api/decisions?limit=2&cursor="+next, "u1", nil)
	var second []decision.Decision
	decodeJSON(t, w, &second)
	if len(second) != 1 {
		t.Fatalf("expected 1 row on the last page, got %d", len(second))
	}
	if h := w.Header().Get(NextCursorHeader); h != "" {
		t.Errorf("expected no cursor on the last page, got %q", h)
	}
	for _, d := range first {
		if d.ID == second[0].ID {
			t.Errorf("decision %q appeared on both pages", d.ID)
		}
	}
}

func TestListDecisions_QueryErrors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name        string
		query       string
		wantMessage string
	}{
		{"bad cursor", "?cursor=%21%21", "invalid cursor"},
		{"bad from", "?from=2025-01-01", "from must be an ISO-8601 instant"},
		{"range inverted", "?from=2025-02-01T00:00:00Z&to=2025-01-01T00:00:00Z", "from must be <= to"},
		{"bad hasFeedback", "?hasFeedback=sometimes", "hasFeedback must be true or false"},
		{"bad feedbackStatus", "?feedbackStatus=LOVE", "feedbackStatus must be one of: ACCEPT REJECT SKIP"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodGet, "/api/decisions"+tt.query, "u1", nil)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
			if msg := decodeError(t, w).Message; msg != tt.wantMessage {
				t.Errorf("expected message %q, got %q", tt.wantMessage, msg)
			}
		})
	}
}

func TestSubmitFeedback(t *testing.T) {
	s := newTestServer(t)
	id := seedDecision(t, s, "u1")

	w := s.do(t, http.MethodPost, "/api/decisions/"+id+"/feedback", "u1", map[string]any{
		"status":     "REJECT",
		"reasonCode": "TOO_SPICY",
		"tags":       []string{" Spicy "},
		"rating":     2,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var d decision.Decision
	decodeJSON(t, w, &d)
	if d.Feedback == nil || d.Feedback.Status != decision.FeedbackReject {
		t.Fatalf("expected REJECT feedback, got %+v", d.Feedback)
	}
	if d.Feedback.Reason == nil || d.Feedback.Reason.Category != decision.CategoryTaste {
		t.Errorf("expected inferred TASTE category, got %+v", d.Feedback.Reason)
	}

	// The filtered listing sees it.
	var rejected []decision.Decision
	decodeJSON(t, s.do(t, http.MethodGet, "/api/decisions?feedbackStatus=reject", "u1", nil), &rejected)
	if len(rejected) != 1 || rejected[0].ID != id {
		t.Errorf("expected the rejected decision, got %d rows", len(rejected))
	}

	// REJECT appends a matching event.
	var events []decision.Event
	decodeJSON(t, s.do(t, http.MethodGet, "/api/decisions/"+id+"/events", "u1", nil), &events)
	if len(events) != 1 || events[0].Action != decision.ActionReject {
		t.Errorf("expected one REJECT event, got %+v", events)
	}
}

func TestSubmitFeedback_Validation(t *testing.T) {
	s := newTestServer(t)
	id := seedDecision(t, s, "u1")

	tests := []struct {
		name      string
		body      map[string]any
		wantField string
	}{
		{"missing status", map[string]any{}, "status"},
		{"unknown status", map[string]any{"status": "MAYBE"}, "status"},
		{"rating too high", map[string]any{"status": "ACCEPT", "rating": 6}, "rating"},
		{"rating too low", map[string]any{"status": "ACCEPT", "rating": 0}, "rating"},
		{"unknown category", map[string]any{"status": "ACCEPT", "category": "MOOD"}, "category"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/api/decisions/"+id+"/feedback", "u1", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
			resp := decodeError(t, w)
			if len(resp.FieldErrors) == 0 || resp.FieldErrors[0].Field != tt.wantField {
				t.Errorf("expected field error on %q, got %v", tt.wantField, resp.FieldErrors)
			}
		})
	}
}

func TestSubmitFeedback_NotOwner(t *testing.T) {
	s := newTestServer(t)
	id := seedDecision(t, s, "u1")

	w := s.do(t, http.MethodPost, "/api/decisions/"+id+"/feedback", "u2", map[string]any{"status": "ACCEPT"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRecordEvent(t *testing.T) {
	s := newTestServer(t)
	id := seedDecision(t, s, "u1")
	path := "/api/decisions/" + id + "/events"

	w := s.do(t, http.MethodPost, path, "u1", map[string]any{"action": "CLICK_PLATFORM"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without platform, got %d", w.Code)
	}
	if msg := decodeError(t, w).Message; msg != decision.ErrPlatformRequired.Error() {
		t.Errorf("unexpected message %q", msg)
	}

	w = s.do(t, http.MethodPost, path, "u1", map[string]any{
		"action":   "CLICK_PLATFORM",
		"platform": "SWIGGY",
		"context":  map[string]any{"timeOfDay": "night", "device": "mobile"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var ev decision.Event
	decodeJSON(t, w, &ev)
	if ev.ID == "" || ev.DecisionID != id || ev.Platform == nil || *ev.Platform != decision.PlatformSwiggy {
		t.Errorf("unexpected event %+v", ev)
	}
	if ev.Context == nil || ev.Context.Device == nil || *ev.Context.Device != "mobile" {
		t.Errorf("expected context to be stored, got %+v", ev.Context)
	}

	w = s.do(t, http.MethodPost, path, "u1", map[string]any{"action": "PURCHASE"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown action, got %d", w.Code)
	}

	w = s.do(t, http.MethodPost, path, "u2", map[string]any{"action": "SKIP"})
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for another user's decision, got %d", w.Code)
	}
}

func TestListEvents(t *testing.T) {
	s := newTestServer(t)
	first := seedDecision(t, s, "u1")
	second := s.decide(t, "u1", map[string]any{})

	for _, body := range []map[string]any{
		{"action": "CLICK_PLATFORM", "platform": "ZOMATO"},
		{"action": "SKIP"},
	} {
		if w := s.do(t, http.MethodPost, "/api/decisions/"+first+"/events", "u1", body); w.Code != http.StatusCreated {
			t.Fatalf("failed to seed event: %d", w.Code)
		}
	}
	if w := s.do(t, http.MethodPost, "/api/decisions/"+*second.DecisionID+"/events", "u1", map[string]any{"action": "ACCEPT"}); w.Code != http.StatusCreated {
		t.Fatalf("failed to seed event: %d", w.Code)
	}

	var all []decision.Event
	decodeJSON(t, s.do(t, http.MethodGet, "/api/events", "u1", nil), &all)
	if len(all) != 3 {
		t.Errorf("expected 3 events, got %d", len(all))
	}

	var clicks []decision.Event
	decodeJSON(t, s.do(t, http.MethodGet, "/api/events?action=click_platform", "u1", nil), &clicks)
	if len(clicks) != 1 || clicks[0].Action != decision.ActionClickPlatform {
		t.Errorf("expected one click event, got %+v", clicks)
	}

	var perDecision []decision.Event
	decodeJSON(t, s.do(t, http.MethodGet, "/api/decisions/"+first+"/events", "u1", nil), &perDecision)
	if len(perDecision) != 2 {
		t.Errorf("expected 2 events on the first decision, got %d", len(perDecision))
	}

	var others []decision.Event
	decodeJSON(t, s.do(t, http.MethodGet, "/api/events", "u2", nil), &others)
	if len(others) != 0 {
		t.Errorf("expected no events for u2, got %d", len(others))
	}

	w := s.do(t, http.MethodGet, "/api/events?action=PURCHASE", "u1", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown action filter, got %d", w.Code)
	}
}
