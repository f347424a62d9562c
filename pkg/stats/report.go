package stats

import (
	"time"

	"github.com/0xmhha/tab-monitor/pkg/aggregator"
	"github.com/0xmhha/tab-monitor/pkg/category"
	"github.com/0xmhha/tab-monitor/pkg/session"
)

// BuildReport assembles a Report from a snapshot.
func BuildReport(snap *aggregator.Snapshot, opts ReportOptions) Report {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if snap == nil {
		snap = &aggregator.Snapshot{}
	}

	today := opts.Now.Format(aggregator.DateLayout)
	day, ok := snap.Days[today]
	if !ok {
		day = aggregator.DailyStats{Date: today}
	}

	r := Report{
		CurrentSession: opts.Current,
		TopDomains:     make([]DomainView, 0),
		CategoryStats:  make([]CategoryView, 0),
		ProductivityStats: ProductivityView{
			Date:             today,
			TotalTimeMS:      day.TotalTime.Milliseconds(),
			ProductiveTimeMS: day.ProductiveTime.Milliseconds(),
			Score:            ProductivityScore(day),
			SessionCount:     day.SessionCount,
		},
		IsTracking:  snap.Meta.TrackingEnabled,
		WeeklyTrend: make([]TrendView, 0, opts.TrendDays),
		GeneratedAt: opts.Now.UnixMilli(),
	}

	for _, d := range TopDomains(snap, opts.TopN) {
		r.TopDomains = append(r.TopDomains, NewDomainView(d))
	}
	for _, c := range CategoryBreakdown(day) {
		r.CategoryStats = append(r.CategoryStats, CategoryView{
			Category: string(c.Category),
			TimeMS:   c.Time.Milliseconds(),
			Percent:  c.Percent,
		})
	}
	for _, p := range WeeklyTrend(snap, opts.Now, opts.TrendDays) {
		r.WeeklyTrend = append(r.WeeklyTrend, TrendView{
			Date:             p.Date,
			TotalTimeMS:      p.TotalTime.Milliseconds(),
			ProductiveTimeMS: p.ProductiveTime.Milliseconds(),
			Score:            p.Score,
		})
	}

	anchor := snap.Meta.SessionAnchor
	if r.IsTracking && !anchor.IsZero() && opts.Now.After(anchor) {
		r.SessionTimeMS = opts.Now.Sub(anchor).Milliseconds()
	}

	return r
}

// NewDomainView converts an aggregate to its JSON form.
func NewDomainView(d aggregator.DomainAggregate) DomainView {
	v := DomainView{
		Domain:      d.Domain,
		Title:       d.Title,
		Category:    string(d.Category),
		TotalTimeMS: d.TotalTime.Milliseconds(),
		Visits:      d.Visits,
	}
	if !d.FirstVisit.IsZero() {
		v.FirstVisit = d.FirstVisit.UnixMilli()
	}
	if !d.LastVisit.IsZero() {
		v.LastVisit = d.LastVisit.UnixMilli()
	}
	return v
}

// Demo returns a placeholder report, marked with Demo, for clients that
// cannot reach an engine.
func Demo(now time.Time) Report {
	snap := &aggregator.Snapshot{
		Domains: map[string]aggregator.DomainAggregate{},
		Days:    map[string]aggregator.DailyStats{},
		Meta:    aggregator.Meta{TrackingEnabled: true, SessionAnchor: now.Add(-45 * time.Minute)},
	}

	sample := []struct {
		domain string
		title  string
		cat    category.Category
		spent  time.Duration
		visits int
	}{
		{"github.com", "Pull requests", category.Development, 42 * time.Minute, 12},
		{"docs.google.com", "Planning doc", category.Productivity, 18 * time.Minute, 4},
		{"coursera.org", "Distributed systems", category.Learning, 15 * time.Minute, 2},
		{"news.ycombinator.com", "Hacker News", category.News, 9 * time.Minute, 6},
		{"youtube.com", "Music", category.Entertainment, 7 * time.Minute, 3},
	}

	today := aggregator.DailyStats{
		Date:       now.Format(aggregator.DateLayout),
		Categories: map[category.Category]time.Duration{},
	}
	productive := category.DefaultProductive()
	for _, s := range sample {
		snap.Domains[s.domain] = aggregator.DomainAggregate{
			Domain:     s.domain,
			Title:      s.title,
			Category:   s.cat,
			TotalTime:  s.spent,
			Visits:     s.visits,
			FirstVisit: now.Add(-8 * time.Hour),
			LastVisit:  now.Add(-5 * time.Minute),
		}
		today.TotalTime += s.spent
		if productive.Contains(s.cat) {
			today.ProductiveTime += s.spent
		}
		today.Categories[s.cat] += s.spent
		today.SessionCount += s.visits
	}
	snap.Days[today.Date] = today

	for i := 1; i < DefaultTrendDays; i++ {
		date := now.AddDate(0, 0, -i).Format(aggregator.DateLayout)
		total := time.Duration(60+i*15) * time.Minute
		snap.Days[date] = aggregator.DailyStats{
			Date:           date,
			TotalTime:      total,
			ProductiveTime: total * time.Duration(50+i*5) / 100,
			SessionCount:   20 + i,
		}
	}

	current := session.Session{
		TabID:     1,
		URL:       "https://github.com/",
		Domain:    "github.com",
		Title:     "GitHub",
		Category:  category.Development,
		StartTime: now.Add(-3 * time.Minute),
		Focus:     session.Focused,
	}.View(now)

	r := BuildReport(snap, ReportOptions{Now: now, Current: &current, TopN: 10})
	r.Demo = true
	return r
}
