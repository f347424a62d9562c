package category

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/0xmhha/tab-monitor/pkg/logger"
)

const (
	// DefaultCacheTTL is how long a categorization stays memoised.
	DefaultCacheTTL = 10 * time.Minute

	// DefaultCleanupInterval is how often expired entries are purged.
	DefaultCleanupInterval = 30 * time.Minute
)

// Config configures a Categorizer.
type Config struct {
	// Rules in priority order. Empty means DefaultRules().
	Rules []Rule

	// CacheTTL for memoised results. Zero means DefaultCacheTTL.
	CacheTTL time.Duration

	// Logger for cache diagnostics. Nil means no logging.
	Logger logger.Logger
}

// Categorizer labels a URL and title with a Category.
//
// Thread-safety: safe for concurrent use.
type Categorizer struct {
	matcher *Matcher
	cache   *gocache.Cache
	log     logger.Logger
}

// New creates a Categorizer.
func New(cfg Config) *Categorizer {
	rules := cfg.Rules
	if len(rules) == 0 {
		rules = DefaultRules()
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	return &Categorizer{
		matcher: NewMatcher(rules),
		cache:   gocache.New(ttl, DefaultCleanupInterval),
		log:     logger.ForComponent(cfg.Logger, "category"),
	}
}

// Default returns a Categorizer with the built-in rules.
func Default() *Categorizer {
	return New(Config{})
}

// Categorize returns the category of a URL and title.
func (c *Categorizer) Categorize(rawURL, title string) Category {
	key := rawURL + "\x00" + title

	if v, found := c.cache.Get(key); found {
		if cat, ok := v.(Category); ok {
			return cat
		}
		c.log.Error("wrong type in categorizer cache", "key", rawURL)
	}

	cat := c.matcher.Match(rawURL, title)
	c.cache.SetDefault(key, cat)

	return cat
}

// Priority returns the categories in the order they are matched.
func (c *Categorizer) Priority() []Category {
	return c.matcher.Categories()
}

// CachedItems returns the number of memoised results.
func (c *Categorizer) CachedItems() int {
	return c.cache.ItemCount()
}

// Flush drops all memoised results.
func (c *Categorizer) Flush() {
	c.cache.Flush()
}
