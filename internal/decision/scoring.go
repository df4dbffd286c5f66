package decision

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/onnwee/mealpilot/internal/item"
	"github.com/onnwee/mealpilot/internal/preference"
	"github.com/onnwee/mealpilot/internal/ranking"
	"github.com/onnwee/mealpilot/internal/validate"
)

// safeDefault is shown when no constraint term produced a bullet.
const safeDefault = "A safe default based on your saved items"

// Constraints is the per-request scoring context: request signals merged
// with the user's profile and learned weights. Build it once per request
// with NewConstraints and share it across items.
type Constraints struct {
	// Budget is the effective budget, or nil when neither the request nor
	// the profile sets one.
	Budget *int

	mustTags     []string
	requestAvoid map[string]struct{}
	profileAvoid map[string]struct{}
	hardAvoid    map[string]struct{}
	queryTokens  []string

	pref              *preference.Preference
	preferTags        map[string]struct{}
	preferRestaurants map[string]struct{}
	avoidRestaurants  map[string]struct{}
}

// NewConstraints prepares the scoring context for in and pref.
// The request budget is capped by the profile's budgetMax; with no request
// budget, budgetMax alone applies.
func NewConstraints(in Input, pref *preference.Preference) *Constraints {
	if pref == nil {
		pref = preference.Empty("")
	}
	profile := pref.Profile

	c := &Constraints{
		Budget:            EffectiveBudget(in.Budget, profile.BudgetMax),
		mustTags:          validate.Tags(in.MustHaveTags),
		requestAvoid:      validate.Set(in.AvoidTags),
		profileAvoid:      validate.Set(profile.AvoidTags),
		hardAvoid:         profile.HardAvoid(),
		pref:              pref,
		preferTags:        validate.Set(profile.PreferTags),
		preferRestaurants: validate.Set(profile.PreferRestaurants),
		avoidRestaurants:  validate.Set(profile.AvoidRestaurants),
	}
	if in.Query != nil {
		for _, tok := range strings.Fields(validate.Text(*in.Query)) {
			if utf8.RuneCountInString(tok) >= ranking.MinQueryTokenLength {
				c.queryTokens = append(c.queryTokens, tok)
			}
		}
	}
	return c
}

// EffectiveBudget combines the request budget with the profile maximum.
func EffectiveBudget(request, profileMax *int) *int {
	switch {
	case profileMax == nil:
		return request
	case request == nil:
		v := *profileMax
		return &v
	default:
		v := min(*request, *profileMax)
		return &v
	}
}

// Scored is an item with its computed score.
type Scored struct {
	Item      *item.Item
	Breakdown Breakdown
	Why       []string
}

// Score returns the total.
func (s Scored) Score() float64 {
	return s.Breakdown.Total
}

// ScoringEngine applies the additive heuristic. It is stateless apart from
// its weights and safe for concurrent use.
type ScoringEngine struct {
	w ranking.Weights
}

// NewScoringEngine creates an engine. A nil w uses ranking.DefaultWeights.
func NewScoringEngine(w *ranking.Weights) *ScoringEngine {
	if w == nil {
		w = ranking.DefaultWeights()
	}
	return &ScoringEngine{w: *w}
}

// Weights returns a copy of the engine's weights.
func (e *ScoringEngine) Weights() ranking.Weights {
	return e.w
}

// Score computes the breakdown and explanation bullets for one item.
// Term order matters only for the bullets: constraint terms run first, the
// safe-default bullet is decided next, then learned and profile terms.
func (e *ScoringEngine) Score(it *item.Item, c *Constraints) Scored {
	w := e.w
	b := Breakdown{Base: w.Base}
	total := w.Base
	var why []string

	overBudget := false
	if c.Budget != nil && it.PriceEstimate != nil {
		limit := strconv.Itoa(*c.Budget)
		if *it.PriceEstimate <= *c.Budget {
			b.BudgetFit = w.WithinBudget
			total += b.BudgetFit
			why = append(why, "Within budget (≤ "+limit+")")
		} else {
			overBudget = true
			b.BudgetFit = w.OverBudget
			total += b.BudgetFit
			why = append(why, "Above budget (> "+limit+")")
		}
	}

	itemTags := validate.Tags(it.Tags)
	tagSet := make(map[string]struct{}, len(itemTags))
	for _, t := range itemTags {
		tagSet[t] = struct{}{}
	}

	if len(c.mustTags) > 0 {
		matched := validate.Intersect(c.mustTags, tagSet)
		if len(matched) > 0 {
			b.MustTagMatch = float64(len(matched)) * w.MustTagMatch
			total += b.MustTagMatch
			for _, t := range matched {
				why = append(why, "Matches tag: "+t)
			}
		} else {
			b.MustTagMatch = w.MustTagMiss
			total += b.MustTagMatch
		}
	}

	avoidTerms := []struct {
		set    map[string]struct{}
		weight float64
		label  string
	}{
		{c.hardAvoid, w.HardAvoid, "Hard avoid tag: "},
		{c.profileAvoid, w.ProfileAvoid, "Avoid tag (profile): "},
		{c.requestAvoid, w.RequestAvoid, "Avoid tag present: "},
	}
	for _, term := range avoidTerms {
		matched := validate.Intersect(itemTags, term.set)
		if len(matched) == 0 {
			continue
		}
		penalty := float64(len(matched)) * term.weight
		b.AvoidTagPenalty += penalty
		total += penalty
		for _, t := range matched {
			why = append(why, term.label+t)
		}
	}

	if len(c.queryTokens) > 0 {
		haystack := strings.TrimSpace(validate.Text(it.Name) + " " + validate.Text(it.Restaurant()) + " " + strings.Join(itemTags, " "))
		hits := 0
		for _, tok := range c.queryTokens {
			if strings.Contains(haystack, tok) {
				hits++
			}
		}
		if hits > 0 {
			b.QueryMatch = float64(hits) * w.QueryToken
			total += b.QueryMatch
			why = append(why, "Matches your query")
		}
	}

	if len(why) == 0 {
		why = append(why, safeDefault)
	}

	if rw := c.pref.RestaurantWeight(it.Restaurant()); rw != 0 {
		delta := float64(rw) * w.LearnedRestaurant
		b.RestaurantAffinity += delta
		total += delta
		if rw > 0 {
			why = append(why, "You often like this place")
		} else {
			why = append(why, "You often avoid this place")
		}
	}

	tagSum := 0
	for _, t := range itemTags {
		tagSum += c.pref.TagWeight(t)
	}
	if tagSum != 0 {
		delta := float64(tagSum) * w.LearnedTag
		b.TagAffinity += delta
		total += delta
		if tagSum > 0 {
			why = append(why, "Matches your usual preferences")
		} else {
			why = append(why, "Conflicts with your usual preferences")
		}
	}

	if overBudget && c.pref.PricePenalty > 0 {
		b.PriceSensitivity = float64(c.pref.PricePenalty) * w.PriceSensitivity
		total += b.PriceSensitivity
	}

	if restaurant := validate.Text(it.Restaurant()); restaurant != "" {
		if _, ok := c.preferRestaurants[restaurant]; ok {
			b.RestaurantAffinity += w.PreferredRestaurant
			total += w.PreferredRestaurant
			why = append(why, "Preferred restaurant (profile)")
		}
		if _, ok := c.avoidRestaurants[restaurant]; ok {
			b.RestaurantAffinity += w.AvoidedRestaurant
			total += w.AvoidedRestaurant
			why = append(why, "Avoid restaurant (profile)")
		}
	}

	if preferred := validate.Intersect(itemTags, c.preferTags); len(preferred) > 0 {
		delta := float64(len(preferred)) * w.PreferredTag
		b.TagAffinity += delta
		total += delta
		for _, t := range preferred {
			why = append(why, "Preferred tag: "+t)
		}
	}

	// Terms are summed in evaluation order.
	b.Total = total

	return Scored{Item: it, Breakdown: b, Why: why}
}
