// Package preference holds each user's explicit profile and the weights
// learned from decision feedback.
package preference

import (
	"errors"
	"strings"
	"time"

	"github.com/onnwee/mealpilot/internal/validate"
)

// SchemaVersion is the current preference document version.
const SchemaVersion = 2

// Learned weight bounds.
const (
	MinWeight       = -5
	MaxWeight       = 5
	MaxPricePenalty = 5
)

// Common errors for preference operations.
var (
	ErrPreferenceNotFound = errors.New("preference not found")
	ErrRevisionConflict   = errors.New("preference revision conflict")
	ErrBudgetRange        = errors.New("budgetMin must be <= budgetMax")
)

// Profile is the explicit, user-set part of a preference. It is replaced
// wholesale on update.
type Profile struct {
	BudgetMin           *int     `json:"budgetMin"`
	BudgetMax           *int     `json:"budgetMax"`
	PreferTags          []string `json:"preferTags"`
	AvoidTags           []string `json:"avoidTags"`
	PreferRestaurants   []string `json:"preferRestaurants"`
	AvoidRestaurants    []string `json:"avoidRestaurants"`
	DietaryRestrictions []string `json:"dietaryRestrictions"`
	Allergens           []string `json:"allergens"`
	Notes               *string  `json:"notes"`
}

// Normalize returns a copy with every set trimmed, lowercased, de-duplicated
// and sorted, and blank notes dropped.
func (p Profile) Normalize() Profile {
	out := p
	out.PreferTags = validate.Tags(p.PreferTags)
	out.AvoidTags = validate.Tags(p.AvoidTags)
	out.PreferRestaurants = validate.Tags(p.PreferRestaurants)
	out.AvoidRestaurants = validate.Tags(p.AvoidRestaurants)
	out.DietaryRestrictions = validate.Tags(p.DietaryRestrictions)
	out.Allergens = validate.Tags(p.Allergens)
	out.Notes = validate.TrimmedOrNil(p.Notes)
	if p.BudgetMin != nil {
		v := *p.BudgetMin
		out.BudgetMin = &v
	}
	if p.BudgetMax != nil {
		v := *p.BudgetMax
		out.BudgetMax = &v
	}
	return out
}

// Validate checks cross-field constraints.
func (p Profile) Validate() error {
	if p.BudgetMin != nil && p.BudgetMax != nil && *p.BudgetMin > *p.BudgetMax {
		return ErrBudgetRange
	}
	return nil
}

// HardAvoid returns dietary restrictions and allergens as one lookup set.
func (p Profile) HardAvoid() map[string]struct{} {
	set := validate.Set(p.DietaryRestrictions)
	for k := range validate.Set(p.Allergens) {
		set[k] = struct{}{}
	}
	return set
}

// Preference is the per-user document: the explicit profile plus sparse
// learned weights. Absent weights count as 0.
type Preference struct {
	UserID            string         `json:"userId"`
	TagWeights        map[string]int `json:"tagWeights"`
	RestaurantWeights map[string]int `json:"restaurantWeights"`
	PricePenalty      int            `json:"pricePenalty"`
	Profile           Profile        `json:"profile"`
	SchemaVersion     int            `json:"schemaVersion"`
	UpdatedAt         *time.Time     `json:"updatedAt"`

	// Revision is the optimistic concurrency stamp. 0 means never stored.
	Revision int64 `json:"-"`
}

// Empty returns the default document for a user with no stored preference.
func Empty(userID string) *Preference {
	return &Preference{
		UserID:            userID,
		TagWeights:        map[string]int{},
		RestaurantWeights: map[string]int{},
		Profile:           Profile{}.Normalize(),
		SchemaVersion:     SchemaVersion,
	}
}

// Clone returns a deep copy.
func (p *Preference) Clone() *Preference {
	c := *p
	c.TagWeights = make(map[string]int, len(p.TagWeights))
	for k, v := range p.TagWeights {
		c.TagWeights[k] = v
	}
	c.RestaurantWeights = make(map[string]int, len(p.RestaurantWeights))
	for k, v := range p.RestaurantWeights {
		c.RestaurantWeights[k] = v
	}
	c.Profile = p.Profile.Normalize()
	if p.UpdatedAt != nil {
		t := *p.UpdatedAt
		c.UpdatedAt = &t
	}
	return &c
}

// TagWeight returns the learned weight for tag, or 0.
func (p *Preference) TagWeight(tag string) int {
	return p.TagWeights[validate.Text(tag)]
}

// RestaurantWeight returns the learned weight for a restaurant, or 0.
func (p *Preference) RestaurantWeight(name string) int {
	return p.RestaurantWeights[validate.Text(name)]
}

// WithProfile returns a copy carrying profile and the existing learned weights.
func (p *Preference) WithProfile(profile Profile, now time.Time) *Preference {
	c := p.Clone()
	c.Profile = profile.Normalize()
	c.UpdatedAt = &now
	c.SchemaVersion = SchemaVersion
	return c
}

// Signal is the learning input taken from a decision's top-ranked
// candidate and the feedback given on it.
type Signal struct {
	Status     string
	ReasonCode string
	Tags       []string
	Restaurant string
}

// Feedback statuses understood by ApplyFeedback.
const (
	StatusAccept = "ACCEPT"
	StatusReject = "REJECT"
	StatusSkip   = "SKIP"
)

// ApplyFeedback returns the preference after learning from sig, and
// whether anything changed. A nil signal or a SKIP leaves p untouched.
func ApplyFeedback(p *Preference, sig *Signal, now time.Time) (*Preference, bool) {
	if sig == nil || sig.Status == StatusSkip {
		return p, false
	}

	delta := -1
	if sig.Status == StatusAccept {
		delta = 1
	}

	next := p.Clone()
	for _, tag := range sig.Tags {
		if key := validate.Text(tag); key != "" {
			bump(next.TagWeights, key, delta)
		}
	}
	if key := validate.Text(sig.Restaurant); key != "" {
		bump(next.RestaurantWeights, key, delta)
	}

	switch {
	case sig.Status == StatusReject && strings.EqualFold(strings.TrimSpace(sig.ReasonCode), "TOO_PRICEY"):
		next.PricePenalty = min(next.PricePenalty+1, MaxPricePenalty)
	case sig.Status == StatusAccept:
		next.PricePenalty = max(next.PricePenalty-1, 0)
	}

	next.UpdatedAt = &now
	if next.SchemaVersion == 0 {
		next.SchemaVersion = SchemaVersion
	}
	return next, true
}

func bump(weights map[string]int, key string, delta int) {
	v := min(max(weights[key]+delta, MinWeight), MaxWeight)
	if v == 0 {
		delete(weights, key)
		return
	}
	weights[key] = v
}
