package decision

import "strings"

// categoryKeywords is checked in order; the first group with a keyword
// contained in the reason code wins.
var categoryKeywords = []struct {
	category ReasonCategory
	keywords []string
}{
	{CategoryPrice, []string{"PRICE", "BUDGET"}},
	{CategoryDiet, []string{"DIET", "ALLERG", "VEG"}},
	{CategoryAvailability, []string{"SOLD_OUT", "CLOSED", "UNAVAILABLE"}},
	{CategoryVariety, []string{"SAME", "BORING", "VARIETY"}},
	{CategoryTaste, []string{"TASTE", "SPICY", "SWEET"}},
}

// InferCategory maps a free-form reason code to a category.
func InferCategory(reasonCode string) ReasonCategory {
	code := strings.ToUpper(strings.TrimSpace(reasonCode))
	for _, group := range categoryKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(code, kw) {
				return group.category
			}
		}
	}
	return CategoryOther
}
