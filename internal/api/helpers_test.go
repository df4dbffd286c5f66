package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"

	"github.com/onnwee/mealpilot/internal/decision"
	"github.com/onnwee/mealpilot/internal/item"
	"github.com/onnwee/mealpilot/internal/middleware"
	"github.com/onnwee/mealpilot/internal/preference"
)

// testUserHeader stands in for a verified bearer token in handler tests.
const testUserHeader = "X-Test-User"

// testServer is the full route table over in-memory stores.
type testServer struct {
	items     *item.InMemoryRepository
	prefs     *preference.Store
	decisions *decision.InMemoryRepository
	events    *decision.InMemoryEventRepository
	handler   http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	s := &testServer{
		items:     item.NewInMemoryRepository(),
		prefs:     preference.NewStore(preference.NewInMemoryRepository()),
		decisions: decision.NewInMemoryRepository(),
		events:    decision.NewInMemoryEventRepository(),
	}

	pipeline := decision.NewPipeline(s.items, s.prefs, s.decisions, decision.NewScoringEngine(nil), nil)
	feedback := decision.NewFeedbackProcessor(s.decisions, s.events, s.prefs, nil)
	history := decision.NewHistory(s.decisions, s.events)

	mux := NewRouter(RouterConfig{
		Health:      NewHealthHandlers(HealthHandlersConfig{Service: "mealpilot-api", Version: "test"}),
		Items:       NewItemHandlers(s.items),
		Decide:      NewDecideHandlers(pipeline),
		Decisions:   NewDecisionHandlers(history, feedback),
		Preferences: NewPreferenceHandlers(s.prefs),
		Protect:     fakeAuth,
	})
	s.handler = middleware.RequestID(mux)
	return s
}

// fakeAuth trusts the test header instead of a token.
func fakeAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid := r.Header.Get(testUserHeader)
		if uid == "" {
			WriteError(w, r, http.StatusUnauthorized, ErrCodeAuthFailed, "missing bearer token")
			return
		}
		next.ServeHTTP(w, r.WithContext(middleware.SetUserID(r.Context(), uid)))
	})
}

// do sends a request as user with an optional JSON body.
func (s *testServer) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != nil {
		var buf bytes.Buffer
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			if err := json.NewEncoder(&buf).Encode(b); err != nil {
				t.Fatalf("failed to encode body: %v", err)
			}
		}
		req = httptest.NewRequest(method, path, &buf)
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if user != "" {
		req.Header.Set(testUserHeader, user)
	}

	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

// createItem posts an item and returns the stored copy.
func (s *testServer) createItem(t *testing.T, user string, body map[string]any) item.Item {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/items", user, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create item: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var it item.Item
	decodeJSON(t, w, &it)
	return it
}

// decide runs POST /api/decide and returns the result.
func (s *testServer) decide(t *testing.T, user string, body any) decision.Result {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/decide", user, body)
	if w.Code != http.StatusOK {
		t.Fatalf("decide: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var res decision.Result
	decodeJSON(t, w, &res)
	return res
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	decodeJSON(t, w, &resp)
	return resp
}

func intPtr(n int) *int { return &n }
