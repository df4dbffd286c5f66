package decision

import (
	"testing"
	"time"

	"github.com/onnwee/mealpilot/internal/item"
	"github.com/onnwee/mealpilot/internal/preference"
)

func TestFormatInstant(t *testing.T) {
	tests := []struct {
		in   time.Time
		want string
	}{
		{time.Time{}, ""},
		{time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), "2025-01-02T03:04:05Z"},
		{time.Date(2025, 1, 2, 3, 4, 5, 120_000_000, time.UTC), "2025-01-02T03:04:05.120Z"},
		{time.Date(2025, 1, 2, 3, 4, 5, 123_456_000, time.UTC), "2025-01-02T03:04:05.123456Z"},
		{time.Date(2025, 1, 2, 3, 4, 5, 1, time.UTC), "2025-01-02T03:04:05.000000001Z"},
		{time.Date(2025, 1, 2, 8, 34, 5, 0, time.FixedZone("IST", 5*3600+1800)), "2025-01-02T03:04:05Z"},
	}
	for _, tt := range tests {
		if got := FormatInstant(tt.in); got != tt.want {
			t.Errorf("FormatInstant(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHashInput_Stable(t *testing.T) {
	a := Input{Budget: intPtr(250), MustHaveTags: []string{"Spicy", "comfort"}, AvoidTags: []string{"peanut"}, Query: strPtr(" Biryani "), Limit: 3}
	b := Input{Budget: intPtr(250), MustHaveTags: []string{"comfort", " spicy", "comfort"}, AvoidTags: []string{"PEANUT"}, Query: strPtr("biryani"), Limit: 3}
	if HashInput(a) != HashInput(b) {
		t.Error("expected equivalent inputs to hash identically")
	}

	changes := []Input{
		{Budget: intPtr(251), MustHaveTags: a.MustHaveTags, AvoidTags: a.AvoidTags, Query: a.Query, Limit: 3},
		{Budget: nil, MustHaveTags: a.MustHaveTags, AvoidTags: a.AvoidTags, Query: a.Query, Limit: 3},
		{Budget: a.Budget, MustHaveTags: []string{"spicy"}, AvoidTags: a.AvoidTags, Query: a.Query, Limit: 3},
		{Budget: a.Budget, MustHaveTags: a.MustHaveTags, AvoidTags: nil, Query: a.Query, Limit: 3},
		{Budget: a.Budget, MustHaveTags: a.MustHaveTags, AvoidTags: a.AvoidTags, Query: strPtr("dosa"), Limit: 3},
		{Budget: a.Budget, MustHaveTags: a.MustHaveTags, AvoidTags: a.AvoidTags, Query: a.Query, Limit: 4},
	}
	for i, in := range changes {
		if HashInput(in) == HashInput(a) {
			t.Errorf("change %d: expected a different hash", i)
		}
	}
}

func TestHashInput_Known(t *testing.T) {
	// sha256("budget=null|must=|avoid=|query=|limit=50")
	got := HashInput(Input{Limit: 50})
	if got != sha256Hex("budget=null|must=|avoid=|query=|limit=50") {
		t.Errorf("unexpected canonical form, got %s", got)
	}
	if len(got) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(got))
	}
}

func TestHashItems_OrderIndependent(t *testing.T) {
	a := &item.Item{ID: "a", UpdatedAt: t0}
	b := &item.Item{ID: "b", UpdatedAt: t0.Add(time.Second)}
	c := &item.Item{ID: "c"}

	h1 := HashItems([]*item.Item{a, b, c})
	h2 := HashItems([]*item.Item{c, a, b})
	if h1 != h2 {
		t.Error("expected permutation to hash identically")
	}
	if want := sha256Hex("a:2025-06-01T12:00:00Z|b:2025-06-01T12:00:01Z|c:"); h1 != want {
		t.Errorf("unexpected canonical form")
	}

	touched := &item.Item{ID: "b", UpdatedAt: t0.Add(2 * time.Second)}
	if HashItems([]*item.Item{a, touched, c}) == h1 {
		t.Error("expected an updatedAt change to change the hash")
	}
}

func TestHashPreference(t *testing.T) {
	p := preference.Empty("u1")
	p.TagWeights["veg"] = 1
	p.TagWeights["spicy"] = -2
	p.RestaurantWeights["x"] = 3

	want := "tags={spicy=-2, veg=1}|restaurants={x=3}|pricePenalty=0|updatedAt=|schemaVersion=2" +
		"|profile=budgetMin=null|budgetMax=null|preferTags=|avoidTags=|preferRestaurants=|avoidRestaurants=|dietaryRestrictions=|allergens="
	if got := HashPreference(p); got != sha256Hex(want) {
		t.Errorf("unexpected canonical form")
	}

	reordered := p.Clone()
	reordered.Profile.PreferTags = []string{"b", "a"}
	sorted := p.Clone()
	sorted.Profile.PreferTags = []string{"a", "b"}
	if HashPreference(reordered) != HashPreference(sorted) {
		t.Error("expected profile set order not to matter")
	}
	if HashPreference(sorted) == HashPreference(p) {
		t.Error("expected a profile change to change the hash")
	}

	bumped := p.Clone()
	bumped.TagWeights["veg"] = 2
	if HashPreference(bumped) == HashPreference(p) {
		t.Error("expected a weight change to change the hash")
	}
}

func TestSnapshotPreference_IsDetached(t *testing.T) {
	p := preference.Empty("u1")
	p.TagWeights["veg"] = 1
	snap := SnapshotPreference(p)
	p.TagWeights["veg"] = 4
	if snap.TagWeights["veg"] != 1 {
		t.Errorf("expected snapshot to be frozen, got %d", snap.TagWeights["veg"])
	}
}
