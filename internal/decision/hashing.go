package decision

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/onnwee/mealpilot/internal/item"
	"github.com/onnwee/mealpilot/internal/preference"
	"github.com/onnwee/mealpilot/internal/validate"
)

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// FormatInstant renders t in UTC with the fraction printed in groups of
// three digits, as many as needed: 2025-01-02T03:04:05Z, ...05.120Z,
// ...05.123456Z. Zero times render as "".
func FormatInstant(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.UTC()
	ns := t.Nanosecond()
	switch {
	case ns == 0:
		return t.Format("2006-01-02T15:04:05Z")
	case ns%1_000_000 == 0:
		return t.Format("2006-01-02T15:04:05.000Z")
	case ns%1_000 == 0:
		return t.Format("2006-01-02T15:04:05.000000Z")
	}
	return t.Format("2006-01-02T15:04:05.000000000Z")
}

func optionalInt(v *int) string {
	if v == nil {
		return "null"
	}
	return strconv.Itoa(*v)
}

func optionalInstant(t *time.Time) string {
	if t == nil {
		return ""
	}
	return FormatInstant(*t)
}

// HashInput digests the normalized request. Tag order, case, surrounding
// whitespace and duplicates do not affect the result.
func HashInput(in Input) string {
	query := ""
	if in.Query != nil {
		query = validate.Text(*in.Query)
	}
	canonical := "budget=" + optionalInt(in.Budget) +
		"|must=" + strings.Join(validate.Tags(in.MustHaveTags), ",") +
		"|avoid=" + strings.Join(validate.Tags(in.AvoidTags), ",") +
		"|query=" + query +
		"|limit=" + strconv.Itoa(in.Limit)
	return sha256Hex(canonical)
}

// HashItems digests the candidate pool as id:updatedAt pairs sorted by id.
func HashItems(items []*item.Item) string {
	sorted := append([]*item.Item(nil), items...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	pairs := make([]string, 0, len(sorted))
	for _, it := range sorted {
		pairs = append(pairs, it.ID+":"+FormatInstant(it.UpdatedAt))
	}
	return sha256Hex(strings.Join(pairs, "|"))
}

// formatWeights renders a weight map in ascending key order as
// {a=1, b=-2}.
func formatWeights(m map[string]int) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(strconv.Itoa(m[k]))
	}
	sb.WriteByte('}')
	return sb.String()
}

func joinSorted(values []string) string {
	return strings.Join(validate.Tags(values), ",")
}

// HashPreference digests the learned weights and the explicit profile.
func HashPreference(p *preference.Preference) string {
	profile := p.Profile
	canonicalProfile := "budgetMin=" + optionalInt(profile.BudgetMin) +
		"|budgetMax=" + optionalInt(profile.BudgetMax) +
		"|preferTags=" + joinSorted(profile.PreferTags) +
		"|avoidTags=" + joinSorted(profile.AvoidTags) +
		"|preferRestaurants=" + joinSorted(profile.PreferRestaurants) +
		"|avoidRestaurants=" + joinSorted(profile.AvoidRestaurants) +
		"|dietaryRestrictions=" + joinSorted(profile.DietaryRestrictions) +
		"|allergens=" + joinSorted(profile.Allergens)

	canonical := "tags=" + formatWeights(p.TagWeights) +
		"|restaurants=" + formatWeights(p.RestaurantWeights) +
		"|pricePenalty=" + strconv.Itoa(p.PricePenalty) +
		"|updatedAt=" + optionalInstant(p.UpdatedAt) +
		"|schemaVersion=" + strconv.Itoa(p.SchemaVersion) +
		"|profile=" + canonicalProfile
	return sha256Hex(canonical)
}

// SnapshotPreference freezes the learned part of p.
func SnapshotPreference(p *preference.Preference) PreferenceSnapshot {
	c := p.Clone()
	return PreferenceSnapshot{
		SchemaVersion:     c.SchemaVersion,
		TagWeights:        c.TagWeights,
		RestaurantWeights: c.RestaurantWeights,
		PricePenalty:      c.PricePenalty,
		UpdatedAt:         c.UpdatedAt,
	}
}
