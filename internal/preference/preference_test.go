package preference

import (
	"math/rand"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
)

var fixedNow = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

func TestApplyFeedback(t *testing.T) {
	convey.Convey("Given an empty preference", t, func() {
		p := Empty("u1")

		convey.Convey("When the feedback is SKIP", func() {
			next, changed := ApplyFeedback(p, &Signal{Status: StatusSkip, Tags: []string{"veg"}, Restaurant: "X"}, fixedNow)

			convey.Convey("Then nothing changes", func() {
				convey.So(changed, convey.ShouldBeFalse)
				convey.So(next, convey.ShouldEqual, p)
				convey.So(next.TagWeights, convey.ShouldBeEmpty)
				convey.So(next.UpdatedAt, convey.ShouldBeNil)
			})
		})

		convey.Convey("When there is no top candidate", func() {
			_, changed := ApplyFeedback(p, nil, fixedNow)
			convey.So(changed, convey.ShouldBeFalse)
		})

		convey.Convey("When the top candidate is accepted", func() {
			next, changed := ApplyFeedback(p, &Signal{Status: StatusAccept, Tags: []string{" Veg "}, Restaurant: "X"}, fixedNow)

			convey.Convey("Then its tag and restaurant move from 0 to 1", func() {
				convey.So(changed, convey.ShouldBeTrue)
				convey.So(next.TagWeight("veg"), convey.ShouldEqual, 1)
				convey.So(next.RestaurantWeight("x"), convey.ShouldEqual, 1)
				convey.So(*next.UpdatedAt, convey.ShouldEqual, fixedNow)
			})

			convey.Convey("Then the input is not mutated", func() {
				convey.So(p.TagWeights, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When the top candidate is rejected as too pricey", func() {
			next, _ := ApplyFeedback(p, &Signal{Status: StatusReject, ReasonCode: "too_pricey", Tags: []string{"veg"}}, fixedNow)

			convey.Convey("Then the tag drops and the price penalty grows", func() {
				convey.So(next.TagWeight("veg"), convey.ShouldEqual, -1)
				convey.So(next.PricePenalty, convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When a rejection has another reason", func() {
			next, _ := ApplyFeedback(p, &Signal{Status: StatusReject, ReasonCode: "BORING"}, fixedNow)
			convey.So(next.PricePenalty, convey.ShouldEqual, 0)
		})
	})

	convey.Convey("Given a weight of 1", t, func() {
		p := Empty("u1")
		p.TagWeights["veg"] = 1
		p.PricePenalty = 2

		convey.Convey("When the tag is rejected", func() {
			next, _ := ApplyFeedback(p, &Signal{Status: StatusReject, Tags: []string{"veg"}}, fixedNow)

			convey.Convey("Then the entry is removed rather than stored as zero", func() {
				_, present := next.TagWeights["veg"]
				convey.So(present, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When anything is accepted", func() {
			next, _ := ApplyFeedback(p, &Signal{Status: StatusAccept}, fixedNow)
			convey.So(next.PricePenalty, convey.ShouldEqual, 1)
		})
	})
}

func TestApplyFeedback_Bounds(t *testing.T) {
	convey.Convey("Given a long random feedback sequence", t, func() {
		rng := rand.New(rand.NewSource(7))
		statuses := []string{StatusAccept, StatusReject, StatusSkip}
		reasons := []string{"", "TOO_PRICEY", "BORING"}
		tags := []string{"veg", "spicy", "comfort"}

		p := Empty("u1")
		for i := 0; i < 2000; i++ {
			sig := &Signal{
				Status:     statuses[rng.Intn(len(statuses))],
				ReasonCode: reasons[rng.Intn(len(reasons))],
				Tags:       []string{tags[rng.Intn(len(tags))]},
				Restaurant: "place",
			}
			p, _ = ApplyFeedback(p, sig, fixedNow)
		}

		convey.Convey("Then every weight stays in range and none is stored as zero", func() {
			for _, w := range p.TagWeights {
				convey.So(w, convey.ShouldBeBetweenOrEqual, MinWeight, MaxWeight)
				convey.So(w, convey.ShouldNotEqual, 0)
			}
			for _, w := range p.RestaurantWeights {
				convey.So(w, convey.ShouldBeBetweenOrEqual, MinWeight, MaxWeight)
				convey.So(w, convey.ShouldNotEqual, 0)
			}
			convey.So(p.PricePenalty, convey.ShouldBeBetweenOrEqual, 0, MaxPricePenalty)
		})
	})

	convey.Convey("Given repeated acceptance", t, func() {
		p := Empty("u1")
		for i := 0; i < 10; i++ {
			p, _ = ApplyFeedback(p, &Signal{Status: StatusAccept, Tags: []string{"veg"}}, fixedNow)
		}
		convey.So(p.TagWeight("veg"), convey.ShouldEqual, MaxWeight)
	})
}

func intPtr(n int) *int       { return &n }
func strPtr(s string) *string { return &s }

func TestProfile_Normalize(t *testing.T) {
	p := Profile{
		PreferTags:       []string{" Spicy", "spicy", "", "Veg"},
		AvoidRestaurants: []string{"  KFC "},
		Notes:            strPtr("   "),
	}.Normalize()

	if len(p.PreferTags) != 2 || p.PreferTags[0] != "spicy" || p.PreferTags[1] != "veg" {
		t.Errorf("unexpected prefer tags: %v", p.PreferTags)
	}
	if len(p.AvoidRestaurants) != 1 || p.AvoidRestaurants[0] != "kfc" {
		t.Errorf("unexpected avoid restaurants: %v", p.AvoidRestaurants)
	}
	if p.Notes != nil {
		t.Errorf("expected blank notes dropped, got %q", *p.Notes)
	}
	if p.Allergens == nil {
		t.Error("expected empty sets to be non-nil")
	}
}

func TestProfile_Validate(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		wantErr bool
	}{
		{"empty", Profile{}, false},
		{"min only", Profile{BudgetMin: intPtr(100)}, false},
		{"equal", Profile{BudgetMin: intPtr(100), BudgetMax: intPtr(100)}, false},
		{"inverted", Profile{BudgetMin: intPtr(300), BudgetMax: intPtr(100)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.profile.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestProfile_HardAvoid(t *testing.T) {
	p := Profile{DietaryRestrictions: []string{"Pork"}, Allergens: []string{"peanut", "pork"}}
	set := p.HardAvoid()
	if len(set) != 2 {
		t.Fatalf("expected 2 entries, got %v", set)
	}
	for _, k := range []string{"pork", "peanut"} {
		if _, ok := set[k]; !ok {
			t.Errorf("expected %q in hard avoid set", k)
		}
	}
}
