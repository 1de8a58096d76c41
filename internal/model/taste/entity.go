package taste

// Category is one entity type in the recommendation service's taxonomy.
type Category string

const (
	Movie       Category = "movie"
	TVShow      Category = "tv_show"
	Book        Category = "book"
	Brand       Category = "brand"
	Person      Category = "person"
	Podcast     Category = "podcast"
	Artist      Category = "artist"
	Destination Category = "destination"
	Place       Category = "place"
)

var supported = map[Category]bool{
	Movie:       true,
	TVShow:      true,
	Book:        true,
	Brand:       true,
	Person:      true,
	Podcast:     true,
	Artist:      true,
	Destination: true,
	Place:       true,
}

// Supported reports whether the category is part of the service taxonomy.
func (c Category) Supported() bool {
	return supported[c]
}

// DefaultCategories returns the five categories queried on every pipeline run.
// The broader taxonomy is accepted as input but not requested by default.
func DefaultCategories() []Category {
	return []Category{Movie, TVShow, Book, Brand, Person}
}

// Item is one normalized recommendation entity. Items are created fresh per
// request and discarded wholesale when a new user turn starts.
type Item struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Category    Category       `json:"category"`
	ImageURL    string         `json:"imageUrl"`
	Description string         `json:"description"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// Set maps categories to their recommendation lists. Display order follows
// response order, so the slices are never re-sorted.
type Set map[Category][]Item

// NewSet builds a set with every requested category present, empty or not.
func NewSet(categories ...Category) Set {
	set := make(Set, len(categories))
	for _, category := range categories {
		set[category] = make([]Item, 0)
	}
	return set
}

// HasItems reports whether at least one category produced a recommendation.
func (s Set) HasItems() bool {
	for _, items := range s {
		if len(items) > 0 {
			return true
		}
	}
	return false
}
