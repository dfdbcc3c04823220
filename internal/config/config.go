package config

import (
	"os"
	"strings"
)

// Answer sort methods accepted by the post aggregator.
const (
	SortLatest = "latest"
	SortOldest = "oldest"
	SortVotes  = "votes"
)

// SortMethods lists every known answer sort method. The cache layer
// invalidates one post-data entry per method.
var SortMethods = []string{SortLatest, SortOldest, SortVotes}

// Settings holds the Q&A behavior switches, read once at startup.
type Settings struct {
	// DefaultSortMethod orders answers when the caller does not ask for
	// a specific method, and acts as the secondary tiebreak otherwise.
	DefaultSortMethod string
	// ShowAcceptedAnswerFirst promotes the accepted answer to the top.
	ShowAcceptedAnswerFirst bool
	// TagModerationEnabled places tags created by non-moderators into
	// the "suggested" queue instead of accepting them outright.
	TagModerationEnabled bool
	// GroupsEnabled turns on group-scoped visibility. Summary caching
	// is disabled while groups are on.
	GroupsEnabled bool
	// Languages are the active display languages; the summary cache
	// keeps one entry per language.
	Languages []string
	// DefaultLanguage is used for threads created without a language.
	DefaultLanguage string
}

// FromEnv builds Settings from environment variables, falling back to
// sensible defaults for anything unset.
func FromEnv() *Settings {
	s := &Settings{
		DefaultSortMethod:       getenv("ASKGO_DEFAULT_SORT", SortVotes),
		ShowAcceptedAnswerFirst: getbool("ASKGO_ACCEPTED_FIRST", true),
		TagModerationEnabled:    getbool("ASKGO_TAG_MODERATION", false),
		GroupsEnabled:           getbool("ASKGO_GROUPS_ENABLED", false),
		DefaultLanguage:         getenv("ASKGO_DEFAULT_LANGUAGE", "en"),
	}
	langs := getenv("ASKGO_LANGUAGES", s.DefaultLanguage)
	for _, l := range strings.Split(langs, ",") {
		if l = strings.TrimSpace(l); l != "" {
			s.Languages = append(s.Languages, l)
		}
	}
	if !validSort(s.DefaultSortMethod) {
		s.DefaultSortMethod = SortVotes
	}
	return s
}

// Defaults returns the settings used when nothing is configured; tests
// start from here.
func Defaults() *Settings {
	return &Settings{
		DefaultSortMethod:       SortVotes,
		ShowAcceptedAnswerFirst: true,
		TagModerationEnabled:    false,
		GroupsEnabled:           false,
		Languages:               []string{"en"},
		DefaultLanguage:         "en",
	}
}

// HasLanguage reports whether code is one of the active display
// languages.
func (s *Settings) HasLanguage(code string) bool {
	for _, l := range s.Languages {
		if l == code {
			return true
		}
	}
	return false
}

func validSort(m string) bool {
	for _, v := range SortMethods {
		if v == m {
			return true
		}
	}
	return false
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getbool(key string, fallback bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
