package taste

import (
	"net/url"
	"strings"

	"github.com/culturetwin/twin-finder/backend/internal/model/taste"
)

const placeholderBaseURL = "https://ui-avatars.com/api/"

// Per-category background colors for generated placeholder art.
var placeholderColors = map[taste.Category]string{
	taste.Movie:       "1e40af",
	taste.TVShow:      "4338ca",
	taste.Book:        "7c3aed",
	taste.Brand:       "059669",
	taste.Person:      "9d174d",
	taste.Podcast:     "9a3412",
	taste.Artist:      "713f12",
	taste.Destination: "164e63",
	taste.Place:       "1e40af",
}

// FallbackImageURL synthesizes a deterministic placeholder-avatar URL from
// the category color and the item's name initials, so every item renders with
// a resolvable image even when the source payload carries none.
func FallbackImageURL(category taste.Category, name string) string {
	color, ok := placeholderColors[category]
	if !ok {
		color = "6b7280"
	}

	text := strings.ToUpper(string(category)[:1])
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		if len(trimmed) > 2 {
			trimmed = trimmed[:2]
		}
		text = strings.ToUpper(trimmed)
	}

	query := url.Values{}
	query.Set("name", text)
	query.Set("background", color)
	query.Set("color", "fff")
	query.Set("size", "200")
	query.Set("bold", "true")
	query.Set("rounded", "true")
	query.Set("length", "2")

	return placeholderBaseURL + "?" + query.Encode()
}
