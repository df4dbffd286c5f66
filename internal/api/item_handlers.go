package api

import (
	"net/http"
	"strings"

	"github.com/onnwee/mealpilot/internal/cursor"
	"github.com/onnwee/mealpilot/internal/decision"
	"github.com/onnwee/mealpilot/internal/item"
)

// ItemsPrefix is the path the per-item routes live under.
const ItemsPrefix = "/api/items/"

// Item listing page size bounds.
const (
	MinItemLimit     = 1
	MaxItemLimit     = 200
	DefaultItemLimit = 100
)

// CreateItemRequest is the body of POST /api/items.
type CreateItemRequest struct {
	Name           string   `json:"name" validate:"required,notblank,min=2,max=120"`
	RestaurantName *string  `json:"restaurantName" validate:"omitempty,max=120"`
	Tags           []string `json:"tags" validate:"omitempty,max=20,dive,notblank,max=32"`
	PlatformHints  []string `json:"platformHints" validate:"omitempty,max=10,dive,notblank,max=32"`
	PriceEstimate  *int     `json:"priceEstimate" validate:"omitempty,gte=0,lte=100000"`
}

// UpdateItemRequest is the body of PATCH /api/items/{id}. Absent fields
// keep their current value.
type UpdateItemRequest struct {
	Name           *string  `json:"name" validate:"omitempty,notblank,max=120"`
	RestaurantName *string  `json:"restaurantName" validate:"omitempty,max=120"`
	Tags           []string `json:"tags" validate:"omitempty,max=20,dive,max=32"`
	PlatformHints  []string `json:"platformHints" validate:"omitempty,max=10,dive,max=32"`
	PriceEstimate  *int     `json:"priceEstimate" validate:"omitempty,gte=0,lte=100000"`
	Active         *bool    `json:"active"`
}

// ItemHandlers serves the saved item endpoints.
type ItemHandlers struct {
	repo item.Repository
}

// NewItemHandlers creates a new ItemHandlers instance.
func NewItemHandlers(repo item.Repository) *ItemHandlers {
	return &ItemHandlers{repo: repo}
}

// Collection dispatches /api/items.
func (h *ItemHandlers) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.CreateItem(w, r)
	case http.MethodGet:
		h.ListItems(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// Route dispatches /api/items/{id}.
func (h *ItemHandlers) Route(w http.ResponseWriter, r *http.Request) {
	id, rest := pathID(r.URL.Path, ItemsPrefix)
	if id == "" {
		h.Collection(w, r)
		return
	}
	if rest != "" {
		WriteError(w, r, http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
		return
	}

	switch r.Method {
	case http.MethodPatch:
		h.UpdateItem(w, r, id)
	case http.MethodDelete:
		h.DeleteItem(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodPatch, http.MethodDelete)
	}
}

// CreateItem handles POST /api/items.
func (h *ItemHandlers) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req CreateItemRequest
	if !decodeBody(w, r, &req) {
		return
	}

	it := &item.Item{
		UserID:         userID(r),
		Name:           strings.TrimSpace(req.Name),
		RestaurantName: trimmed(req.RestaurantName),
		Tags:           req.Tags,
		PlatformHints:  item.NormalizeHints(req.PlatformHints),
		PriceEstimate:  req.PriceEstimate,
		Active:         true,
	}
	if it.Tags == nil {
		it.Tags = []string{}
	}

	if err := h.repo.Create(r.Context(), it); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, it)
}

// ListItems handles GET /api/items. Only active items are listed unless
// active=false is given.
func (h *ItemHandlers) ListItems(w http.ResponseWriter, r *http.Request) {
	limit, err := parseOptionalInt(r, "limit")
	if err != nil {
		writeQueryError(w, r, err)
		return
	}
	from, err := parseInstant(r, "from")
	if err != nil {
		writeQueryError(w, r, err)
		return
	}
	to, err := parseInstant(r, "to")
	if err != nil {
		writeQueryError(w, r, err)
		return
	}
	active, err := parseOptionalBool(r, "active")
	if err != nil {
		writeQueryError(w, r, err)
		return
	}
	if from != nil && to != nil && from.After(*to) {
		writeDomainError(w, r, decision.ErrInvalidRange)
		return
	}
	if active == nil {
		t := true
		active = &t
	}

	f := item.ListFilter{From: from, To: to, Active: active}
	if raw := strings.TrimSpace(r.URL.Query().Get("cursor")); raw != "" {
		pos, err := cursor.Decode(raw)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		f.After = &pos
	}

	n := clampItemLimit(limit)
	rows, err := h.repo.List(r.Context(), userID(r), f, n+1)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	items, next := cursor.Page(rows, n, func(it *item.Item) cursor.Position {
		return cursor.Position{CreatedAt: it.CreatedAt, ID: it.ID}
	})
	if items == nil {
		items = []*item.Item{}
	}
	writePage(w, r, decision.Page[*item.Item]{Items: items, NextCursor: next})
}

// UpdateItem handles PATCH /api/items/{id}.
func (h *ItemHandlers) UpdateItem(w http.ResponseWriter, r *http.Request, id string) {
	var req UpdateItemRequest
	if !decodeBody(w, r, &req) {
		return
	}

	it, err := h.owned(r, id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	if req.Name != nil {
		it.Name = strings.TrimSpace(*req.Name)
	}
	if req.RestaurantName != nil {
		it.RestaurantName = trimmed(req.RestaurantName)
	}
	if req.Tags != nil {
		it.Tags = req.Tags
	}
	if req.PlatformHints != nil {
		it.PlatformHints = item.NormalizeHints(req.PlatformHints)
	}
	if req.PriceEstimate != nil {
		it.PriceEstimate = req.PriceEstimate
	}
	if req.Active != nil {
		it.Active = *req.Active
	}

	if err := h.repo.Update(r.Context(), it); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, it)
}

// DeleteItem handles DELETE /api/items/{id} by deactivating the item.
func (h *ItemHandlers) DeleteItem(w http.ResponseWriter, r *http.Request, id string) {
	it, err := h.owned(r, id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	it.Active = false
	if err := h.repo.Update(r.Context(), it); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ItemHandlers) owned(r *http.Request, id string) (*item.Item, error) {
	it, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if it.UserID != userID(r) {
		return nil, item.ErrNotOwner
	}
	return it, nil
}

func clampItemLimit(limit *int) int {
	if limit == nil {
		return DefaultItemLimit
	}
	return max(MinItemLimit, min(MaxItemLimit, *limit))
}

// trimmed returns a trimmed copy of s. An empty result is kept, matching
// what the caller sent.
func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
