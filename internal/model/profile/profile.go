package profile

// Preferences groups the softer signals extracted alongside interests and traits.
type Preferences struct {
	Genres []string `json:"genres"`
	Themes []string `json:"themes"`
}

// PersonalityAnalysis is the structured result of one analysis turn.
// It is built once per user input and never mutated afterwards.
type PersonalityAnalysis struct {
	Interests   []string    `json:"interests"`
	Traits      []string    `json:"traits"`
	Preferences Preferences `json:"preferences"`
}

// Fallback returns the profile used whenever the remote analysis cannot
// produce a usable result. Matching recommendations against a generic but
// plausible profile beats surfacing an error to the user.
func Fallback() PersonalityAnalysis {
	return PersonalityAnalysis{
		Interests: []string{"movies", "music", "technology"},
		Traits:    []string{"curious", "creative", "analytical"},
		Preferences: Preferences{
			Genres: []string{"science fiction", "drama"},
			Themes: []string{"innovation", "adventure"},
		},
	}
}
