package category

import (
	"strings"
)

// Matcher is a precomputed form of an ordered rule set.
//
// Patterns are lowercased and deduplicated once. Match gives exactly the
// result of scanning the rules in order: first every category's domain
// patterns, then every category's keyword patterns.
type Matcher struct {
	order    []Category
	domains  [][]string
	keywords [][]string

	// exact host -> index of the first rule listing it as a domain
	hosts map[string]int
}

// NewMatcher compiles rules. Rules keep their slice order as priority.
func NewMatcher(rules []Rule) *Matcher {
	m := &Matcher{
		order:    make([]Category, 0, len(rules)),
		domains:  make([][]string, 0, len(rules)),
		keywords: make([][]string, 0, len(rules)),
		hosts:    make(map[string]int),
	}

	for i, r := range rules {
		m.order = append(m.order, r.Category)
		m.domains = append(m.domains, normalizePatterns(r.Domains))
		m.keywords = append(m.keywords, normalizePatterns(r.Keywords))

		for _, d := range m.domains[i] {
			if _, seen := m.hosts[d]; !seen {
				m.hosts[d] = i
			}
		}
	}

	return m
}

// Match returns the category for a URL and title, or Other.
func (m *Matcher) Match(rawURL, title string) Category {
	u := strings.ToLower(rawURL)
	t := strings.ToLower(title)

	// Exact host hit: rule k matches on domain, so only earlier rules
	// can still win the domain pass.
	limit := len(m.order)
	hit := -1
	if k, pattern, ok := m.hostIndex(ExtractDomain(rawURL)); ok && strings.Contains(u, pattern) {
		limit, hit = k, k
	}

	for i := 0; i < limit; i++ {
		if containsAny(u, t, m.domains[i]) {
			return m.order[i]
		}
	}
	if hit >= 0 {
		return m.order[hit]
	}

	for i := range m.order {
		if containsAny(u, t, m.keywords[i]) {
			return m.order[i]
		}
	}

	return Other
}

// hostIndex looks up host and its www-less form.
func (m *Matcher) hostIndex(host string) (int, string, bool) {
	if k, ok := m.hosts[host]; ok {
		return k, host, true
	}
	if trimmed, found := strings.CutPrefix(host, "www."); found {
		if k, ok := m.hosts[trimmed]; ok {
			return k, trimmed, true
		}
	}
	return 0, "", false
}

// Categories returns the categories in priority order.
func (m *Matcher) Categories() []Category {
	out := make([]Category, len(m.order))
	copy(out, m.order)
	return out
}

func containsAny(u, t string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(u, p) || strings.Contains(t, p) {
			return true
		}
	}
	return false
}

func normalizePatterns(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, p := range in {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
