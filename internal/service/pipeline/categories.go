package pipeline

import (
	"strings"

	"github.com/culturetwin/twin-finder/backend/internal/model/taste"
)

// categoryKeywords maps interest phrasing onto recommendation categories.
var categoryKeywords = []struct {
	category taste.Category
	keywords []string
}{
	{taste.Movie, []string{"film", "cinema", "movies", "actor", "actress", "director"}},
	{taste.TVShow, []string{"tv", "television", "series", "show", "episode", "netflix", "hbo"}},
	{taste.Book, []string{"book", "novel", "reading", "author", "literature"}},
	{taste.Brand, []string{"brand", "fashion", "clothing", "tech", "gadget"}},
	{taste.Person, []string{"celebrity", "influencer", "artist", "musician", "actor", "actress"}},
}

// CategoriesForInterests derives a category set from extracted interests via
// keyword matching, falling back to movie/tv_show/book when nothing matches.
//
// This is an opt-in personalization strategy: ProcessUserInput deliberately
// queries the fixed default set instead, so callers who want analysis-driven
// category selection must invoke this explicitly.
func CategoriesForInterests(interests []string) []taste.Category {
	var matched []taste.Category
	seen := make(map[taste.Category]bool)

	for _, interest := range interests {
		lowered := strings.ToLower(interest)
		for _, bucket := range categoryKeywords {
			if seen[bucket.category] {
				continue
			}
			for _, keyword := range bucket.keywords {
				if strings.Contains(lowered, keyword) {
					matched = append(matched, bucket.category)
					seen[bucket.category] = true
					break
				}
			}
		}
	}

	if len(matched) == 0 {
		return []taste.Category{taste.Movie, taste.TVShow, taste.Book}
	}
	return matched
}
