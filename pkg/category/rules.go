package category

// Rule maps a category to the patterns that select it.
//
// Domains are substrings matched in the first pass, Keywords in the
// fallback pass. Both are matched case-insensitively against the URL and
// the title.
type Rule struct {
	Category Category
	Domains  []string
	Keywords []string
}

// DefaultRules returns the built-in rule set in priority order.
//
// A fresh slice is returned on every call.
func DefaultRules() []Rule {
	return []Rule{
		{
			Category: Development,
			Domains: []string{
				"github.com", "gitlab.com", "bitbucket.org", "stackoverflow.com",
				"stackexchange.com", "developer.mozilla.org", "npmjs.com",
				"pkg.go.dev", "go.dev", "docs.python.org", "rust-lang.org",
				"codepen.io", "replit.com", "codesandbox.io", "vercel.com",
				"netlify.com", "localhost", "127.0.0.1",
			},
			Keywords: []string{
				"pull request", "code review", "documentation", "api reference",
				"programming", "debugging", "compiler",
			},
		},
		{
			Category: Productivity,
			Domains: []string{
				"docs.google.com", "drive.google.com", "sheets.google.com",
				"calendar.google.com", "mail.google.com", "outlook.live.com",
				"outlook.office.com", "notion.so", "trello.com", "asana.com",
				"slack.com", "figma.com", "airtable.com", "linear.app",
				"atlassian.net", "monday.com", "zoom.us",
			},
			Keywords: []string{
				"spreadsheet", "calendar", "inbox", "meeting", "agenda",
				"project board", "to-do",
			},
		},
		{
			Category: Learning,
			Domains: []string{
				"coursera.org", "udemy.com", "edx.org", "khanacademy.org",
				"wikipedia.org", "duolingo.com", "brilliant.org", "leetcode.com",
				"freecodecamp.org", "codecademy.com", "pluralsight.com",
				"arxiv.org", "scholar.google.com",
			},
			Keywords: []string{
				"tutorial", "course", "lesson", "lecture", "learn", "study",
				"how to",
			},
		},
		{
			Category: News,
			Domains: []string{
				"news.ycombinator.com", "news.google.com", "cnn.com", "bbc.com",
				"bbc.co.uk", "nytimes.com", "theguardian.com", "reuters.com",
				"bloomberg.com", "techcrunch.com", "theverge.com", "wsj.com",
				"apnews.com",
			},
			Keywords: []string{
				"news", "breaking", "headline", "journal",
			},
		},
		{
			Category: Social,
			Domains: []string{
				"facebook.com", "twitter.com", "instagram.com", "linkedin.com",
				"reddit.com", "tiktok.com", "threads.net", "mastodon.social",
				"discord.com", "pinterest.com", "tumblr.com", "snapchat.com",
			},
			Keywords: []string{
				"social", "followers", "timeline", "friends",
			},
		},
		{
			Category: Entertainment,
			Domains: []string{
				"youtube.com", "youtu.be", "netflix.com", "twitch.tv",
				"spotify.com", "hulu.com", "disneyplus.com", "primevideo.com",
				"vimeo.com", "soundcloud.com", "crunchyroll.com", "imdb.com",
			},
			Keywords: []string{
				"video", "movie", "music", "episode", "stream", "game",
				"watch",
			},
		},
		{
			Category: Shopping,
			Domains: []string{
				"amazon.com", "ebay.com", "etsy.com", "aliexpress.com",
				"walmart.com", "bestbuy.com", "ikea.com", "shopify.com",
				"temu.com",
			},
			Keywords: []string{
				"shopping cart", "checkout", "add to cart", "sale", "deals",
			},
		},
	}
}
