package api

import (
	"context"
	"net/http"

	"github.com/onnwee/mealpilot/internal/preference"
)

// PreferenceService reads preferences and replaces the explicit profile.
type PreferenceService interface {
	Get(ctx context.Context, userID string) (*preference.Preference, error)
	UpsertProfile(ctx context.Context, userID string, profile preference.Profile) (*preference.Preference, error)
}

// ProfileRequest is the body of PUT /api/preferences/profile.
type ProfileRequest struct {
	BudgetMin           *int     `json:"budgetMin" validate:"omitempty,gte=0,lte=100000"`
	BudgetMax           *int     `json:"budgetMax" validate:"omitempty,gte=0,lte=100000"`
	PreferTags          []string `json:"preferTags" validate:"omitempty,max=50,dive,max=32"`
	AvoidTags           []string `json:"avoidTags" validate:"omitempty,max=50,dive,max=32"`
	PreferRestaurants   []string `json:"preferRestaurants" validate:"omitempty,max=50,dive,max=120"`
	AvoidRestaurants    []string `json:"avoidRestaurants" validate:"omitempty,max=50,dive,max=120"`
	DietaryRestrictions []string `json:"dietaryRestrictions" validate:"omitempty,max=20,dive,max=32"`
	Allergens           []string `json:"allergens" validate:"omitempty,max=50,dive,max=32"`
	Notes               *string  `json:"notes" validate:"omitempty,max=500"`
}

// PreferenceHandlers serves the preference document.
type PreferenceHandlers struct {
	prefs PreferenceService
}

// NewPreferenceHandlers creates a new PreferenceHandlers instance.
func NewPreferenceHandlers(prefs PreferenceService) *PreferenceHandlers {
	return &PreferenceHandlers{prefs: prefs}
}

// Get handles GET /api/preferences. Users without a stored document get the
// empty default.
func (h *PreferenceHandlers) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	p, err := h.prefs.Get(r.Context(), userID(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, p)
}

// PutProfile handles PUT /api/preferences/profile. Learned weights are kept.
func (h *PreferenceHandlers) PutProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}

	var req ProfileRequest
	if !decodeBody(w, r, &req) {
		return
	}

	p, err := h.prefs.UpsertProfile(r.Context(), userID(r), preference.Profile{
		BudgetMin:           req.BudgetMin,
		BudgetMax:           req.BudgetMax,
		PreferTags:          req.PreferTags,
		AvoidTags:           req.AvoidTags,
		PreferRestaurants:   req.PreferRestaurants,
		AvoidRestaurants:    req.AvoidRestaurants,
		DietaryRestrictions: req.DietaryRestrictions,
		Allergens:           req.Allergens,
		Notes:               req.Notes,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, p)
}
