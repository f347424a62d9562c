// Package category classifies browsing activity into productivity categories.
//
// Classification is rule based and deterministic: rules are checked in a
// fixed priority order and the first matching category wins. Domain
// patterns across all categories are tried before any keyword pattern.
//
// Priority order:
//
//	development, productivity, learning, news, social, entertainment, shopping
//
// Anything that matches no rule is Other.
package category

import (
	"net/url"
	"strings"
)

// Category is a productivity label assigned to a session.
type Category string

// Known categories.
const (
	Development   Category = "development"
	Productivity  Category = "productivity"
	Learning      Category = "learning"
	News          Category = "news"
	Social        Category = "social"
	Entertainment Category = "entertainment"
	Shopping      Category = "shopping"
	Other         Category = "other"
)

// UnknownDomain is returned by ExtractDomain for URLs without a host.
const UnknownDomain = "unknown"

// Priority returns the categories in match order, Other excluded.
func Priority() []Category {
	return []Category{
		Development,
		Productivity,
		Learning,
		News,
		Social,
		Entertainment,
		Shopping,
	}
}

// String implements fmt.Stringer.
func (c Category) String() string {
	return string(c)
}

// Set is a set of categories, used for the productive set.
type Set map[Category]struct{}

// NewSet builds a Set from category names. Names are lowercased and trimmed.
func NewSet(names []string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		s[Category(n)] = struct{}{}
	}
	return s
}

// DefaultProductive returns the default productive set.
func DefaultProductive() Set {
	return Set{
		Development:  {},
		Productivity: {},
		Learning:     {},
	}
}

// Contains reports whether c is in the set.
func (s Set) Contains(c Category) bool {
	_, ok := s[c]
	return ok
}

// ExtractDomain returns the lowercased host of rawURL without port.
// URLs that do not parse or have no host yield UnknownDomain.
func ExtractDomain(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return UnknownDomain
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return UnknownDomain
	}
	return host
}
