package decision

import (
	"errors"
	"time"
)

// Decision record constants.
const (
	SchemaVersion    = 2
	Algorithm        = "heuristic-score"
	AlgorithmVersion = "1"
)

// Common errors for decision operations.
var (
	ErrDecisionNotFound = errors.New("decision not found")
	ErrNotOwner         = errors.New("not your decision")
	ErrInvalidRange     = errors.New("from must be <= to")
	ErrPlatformRequired = errors.New("platform is required when action=CLICK_PLATFORM")
	ErrInvalidStatus    = errors.New("status must be one of: ACCEPT, REJECT, SKIP")
)

// FeedbackStatus is the user's verdict on a decision.
type FeedbackStatus string

// Feedback statuses.
const (
	FeedbackAccept FeedbackStatus = "ACCEPT"
	FeedbackReject FeedbackStatus = "REJECT"
	FeedbackSkip   FeedbackStatus = "SKIP"
)

// Valid reports whether s is a known status.
func (s FeedbackStatus) Valid() bool {
	switch s {
	case FeedbackAccept, FeedbackReject, FeedbackSkip:
		return true
	}
	return false
}

// ReasonCategory groups feedback reason codes.
type ReasonCategory string

// Reason categories.
const (
	CategoryPrice        ReasonCategory = "PRICE"
	CategoryTaste        ReasonCategory = "TASTE"
	CategoryDiet         ReasonCategory = "DIET"
	CategoryAvailability ReasonCategory = "AVAILABILITY"
	CategoryVariety      ReasonCategory = "VARIETY"
	CategoryOther        ReasonCategory = "OTHER"
)

// Action is the kind of a decision event.
type Action string

// Event actions. The first three mirror feedback statuses.
const (
	ActionAccept        Action = "ACCEPT"
	ActionReject        Action = "REJECT"
	ActionSkip          Action = "SKIP"
	ActionClickPlatform Action = "CLICK_PLATFORM"
)

// Platform is a delivery platform a deep link points at.
type Platform string

// Supported platforms.
const (
	PlatformSwiggy  Platform = "SWIGGY"
	PlatformZomato  Platform = "ZOMATO"
	PlatformEatSure Platform = "EATSURE"
)

// Input is the decide request as received, with the applied limit.
type Input struct {
	Budget       *int     `json:"budget"`
	MustHaveTags []string `json:"mustHaveTags"`
	AvoidTags    []string `json:"avoidTags"`
	Query        *string  `json:"query"`
	Limit        int      `json:"limit"`
}

// ItemSnapshot is the frozen view of an item inside a decision.
type ItemSnapshot struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	RestaurantName *string  `json:"restaurantName"`
	Tags           []string `json:"tags"`
	PriceEstimate  *int     `json:"priceEstimate"`
}

// Breakdown is the per-term contribution to a candidate's score.
type Breakdown struct {
	Base               float64 `json:"base"`
	BudgetFit          float64 `json:"budgetFit"`
	MustTagMatch       float64 `json:"mustTagMatch"`
	AvoidTagPenalty    float64 `json:"avoidTagPenalty"`
	QueryMatch         float64 `json:"queryMatch"`
	RestaurantAffinity float64 `json:"restaurantAffinity"`
	TagAffinity        float64 `json:"tagAffinity"`
	PriceSensitivity   float64 `json:"priceSensitivity"`
	Total              float64 `json:"total"`
}

// DeepLink is a platform search URL for an item.
type DeepLink struct {
	Platform Platform `json:"platform"`
	URL      string   `json:"url"`
}

// Candidate is one ranked entry of a decision.
type Candidate struct {
	Item       ItemSnapshot `json:"item"`
	Score      float64      `json:"score"`
	Confidence float64      `json:"confidence"`
	Why        []string     `json:"why"`
	DeepLinks  []DeepLink   `json:"deepLinks"`
	Breakdown  Breakdown    `json:"breakdown"`
}

// FeedbackReason is the structured reason attached to feedback.
type FeedbackReason struct {
	Category ReasonCategory `json:"category"`
	Code     *string        `json:"code"`
	Tags     []string       `json:"tags"`
}

// Feedback is the user's response to a decision. A later submission
// replaces an earlier one.
type Feedback struct {
	Status     FeedbackStatus  `json:"status"`
	ReasonCode *string         `json:"reasonCode"`
	Reason     *FeedbackReason `json:"reason"`
	Comment    *string         `json:"comment"`
	Rating     *int            `json:"rating"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// PreferenceSnapshot freezes the learned state a decision was scored with.
type PreferenceSnapshot struct {
	SchemaVersion     int            `json:"schemaVersion"`
	TagWeights        map[string]int `json:"tagWeights"`
	RestaurantWeights map[string]int `json:"restaurantWeights"`
	PricePenalty      int            `json:"pricePenalty"`
	UpdatedAt         *time.Time     `json:"updatedAt"`
}

// Meta is captured once at creation and never recomputed.
type Meta struct {
	SchemaVersion      int                `json:"schemaVersion"`
	Algorithm          string             `json:"algorithm"`
	AlgorithmVersion   string             `json:"algorithmVersion"`
	InputHash          string             `json:"inputHash"`
	ItemsHash          string             `json:"itemsHash"`
	PreferenceHash     string             `json:"preferenceHash"`
	RandomSeed         *int64             `json:"randomSeed"`
	PreferenceSnapshot PreferenceSnapshot `json:"preferenceSnapshot"`
}

// Decision is a persisted ranking outcome.
type Decision struct {
	ID         string      `json:"id"`
	UserID     string      `json:"userId"`
	CreatedAt  time.Time   `json:"createdAt"`
	Input      Input       `json:"input"`
	Candidates []Candidate `json:"candidates"`
	Feedback   *Feedback   `json:"feedback"`
	Meta       Meta        `json:"meta"`
}

// EventContext is optional client context for an event.
type EventContext struct {
	TimeOfDay    *string `json:"timeOfDay"`
	Device       *string `json:"device"`
	LocationHint *string `json:"locationHint"`
}

// Event is an immutable intent record tied to a decision.
type Event struct {
	ID         string        `json:"id"`
	DecisionID string        `json:"decisionId"`
	UserID     string        `json:"userId"`
	Action     Action        `json:"action"`
	Platform   *Platform     `json:"platform"`
	Context    *EventContext `json:"context"`
	CreatedAt  time.Time     `json:"createdAt"`
}
