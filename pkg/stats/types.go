// Package stats derives read-only views from aggregated browsing data.
//
// Every function here is pure: it reads an aggregator.Snapshot (or parts
// of it) and returns new values. Nothing is cached or mutated.
//
// Example usage:
//
//	snap := store.Snapshot()
//	day, _ := store.Day(store.DayKey(now))
//	score := stats.ProductivityScore(day)
//	top := stats.TopDomains(snap, 10)
package stats

import (
	"time"

	"github.com/0xmhha/tab-monitor/pkg/category"
	"github.com/0xmhha/tab-monitor/pkg/session"
)

// DefaultTrendDays is the window of WeeklyTrend.
const DefaultTrendDays = 7

// CategoryShare is one category's time within a day.
type CategoryShare struct {
	Category category.Category
	Time     time.Duration

	// Percent is Time relative to the day total, in [0,100].
	Percent float64
}

// TrendPoint is one day of WeeklyTrend.
type TrendPoint struct {
	Date           string
	TotalTime      time.Duration
	ProductiveTime time.Duration
	Score          int
}

// Totals sums every recorded day.
type Totals struct {
	TotalTime      time.Duration
	ProductiveTime time.Duration
	Sessions       int
	Days           int
	Domains        int
	Score          int
}

// DomainView is the JSON form of a domain aggregate.
type DomainView struct {
	Domain      string `json:"domain"`
	Title       string `json:"title"`
	Category    string `json:"category"`
	TotalTimeMS int64  `json:"total_time"`
	Visits      int    `json:"visits"`
	FirstVisit  int64  `json:"first_visit"`
	LastVisit   int64  `json:"last_visit"`
}

// CategoryView is the JSON form of a CategoryShare.
type CategoryView struct {
	Category string  `json:"category"`
	TimeMS   int64   `json:"time"`
	Percent  float64 `json:"percentage"`
}

// ProductivityView summarizes the current day.
type ProductivityView struct {
	Date             string `json:"date"`
	TotalTimeMS      int64  `json:"total_time"`
	ProductiveTimeMS int64  `json:"productive_time"`
	Score            int    `json:"score"`
	SessionCount     int    `json:"session_count"`
}

// TrendView is the JSON form of a TrendPoint.
type TrendView struct {
	Date             string `json:"date"`
	TotalTimeMS      int64  `json:"total_time"`
	ProductiveTimeMS int64  `json:"productive_time"`
	Score            int    `json:"score"`
}

// Report is the stats snapshot served to dashboards.
type Report struct {
	CurrentSession    *session.View    `json:"current_session"`
	TopDomains        []DomainView     `json:"top_domains"`
	CategoryStats     []CategoryView   `json:"category_stats"`
	ProductivityStats ProductivityView `json:"productivity_stats"`

	// SessionTimeMS is the time since tracking was last started, 0 when
	// paused.
	SessionTimeMS int64 `json:"session_time"`

	IsTracking  bool        `json:"is_tracking"`
	WeeklyTrend []TrendView `json:"weekly_trend"`

	// Demo marks placeholder data shown when no engine answers.
	Demo bool `json:"demo,omitempty"`

	GeneratedAt int64 `json:"generated_at"`
}

// ReportOptions configures BuildReport.
type ReportOptions struct {
	// Now is the report time. Its location decides the current day.
	Now time.Time

	// Current is the live session, nil when idle.
	Current *session.View

	// TopN limits TopDomains. Values <= 0 mean all.
	TopN int

	// TrendDays is the WeeklyTrend window. Default: DefaultTrendDays.
	TrendDays int
}
