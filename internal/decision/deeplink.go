package decision

import (
	"net/url"
	"strings"

	"github.com/onnwee/mealpilot/internal/item"
	"github.com/onnwee/mealpilot/internal/validate"
)

// deepLinkTemplates maps a platform hint to its platform and search URL
// prefix. Adding a platform is a table edit.
var deepLinkTemplates = map[string]struct {
	platform Platform
	prefix   string
}{
	"swiggy":  {PlatformSwiggy, "https://www.swiggy.com/search?query="},
	"zomato":  {PlatformZomato, "https://www.zomato.com/search?q="},
	"eatsure": {PlatformEatSure, "https://www.eatsure.com/search?q="},
}

var defaultPlatformHints = []string{"swiggy", "zomato"}

// DeepLinks builds platform search links for an item. Items without hints
// get the default platforms. Unknown hints are dropped.
func DeepLinks(it *item.Item) []DeepLink {
	name := strings.TrimSpace(it.Name)
	query := name
	if restaurant := strings.TrimSpace(it.Restaurant()); restaurant != "" {
		query = restaurant + " " + name
	}
	if strings.TrimSpace(query) == "" {
		return []DeepLink{}
	}

	encoded := url.QueryEscape(query)
	hints := it.PlatformHints
	if len(hints) == 0 {
		hints = defaultPlatformHints
	}

	links := make([]DeepLink, 0, len(hints))
	for _, hint := range hints {
		tmpl, ok := deepLinkTemplates[validate.Text(hint)]
		if !ok {
			continue
		}
		links = append(links, DeepLink{Platform: tmpl.platform, URL: tmpl.prefix + encoded})
	}
	return links
}
