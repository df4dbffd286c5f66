package decision

import (
	"time"

	"github.com/onnwee/mealpilot/internal/item"
)

func intPtr(n int) *int       { return &n }
func strPtr(s string) *string { return &s }

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newItem(id, name, restaurant string, price *int, tags ...string) *item.Item {
	it := &item.Item{
		ID:        id,
		UserID:    "u1",
		Name:      name,
		Tags:      tags,
		Active:    true,
		CreatedAt: t0,
		UpdatedAt: t0,
	}
	if restaurant != "" {
		it.RestaurantName = &restaurant
	}
	it.PriceEstimate = price
	return it
}

const epsilon = 1e-9

func approx(a, b float64) bool {
	d := a - b
	return d < epsilon && d > -epsilon
}
