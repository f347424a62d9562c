package stats

import (
	"math"
	"sort"
	"time"

	"github.com/0xmhha/tab-monitor/pkg/aggregator"
	"github.com/0xmhha/tab-monitor/pkg/category"
)

// ProductivityScore returns productive time as a rounded percentage of
// total time, in [0,100]. A day with no time scores 0.
func ProductivityScore(day aggregator.DailyStats) int {
	return score(day.ProductiveTime, day.TotalTime)
}

func score(productive, total time.Duration) int {
	if total <= 0 || productive <= 0 {
		return 0
	}

	s := int(math.Round(float64(productive) / float64(total) * 100))
	switch {
	case s < 0:
		return 0
	case s > 100:
		return 100
	}
	return s
}

// TopDomains returns the n domains with the most time, ties broken by
// visits and then by name. n <= 0 returns all domains.
func TopDomains(snap *aggregator.Snapshot, n int) []aggregator.DomainAggregate {
	if snap == nil {
		return nil
	}

	out := make([]aggregator.DomainAggregate, 0, len(snap.Domains))
	for _, d := range snap.Domains {
		out = append(out, d)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalTime != out[j].TotalTime {
			return out[i].TotalTime > out[j].TotalTime
		}
		if out[i].Visits != out[j].Visits {
			return out[i].Visits > out[j].Visits
		}
		return out[i].Domain < out[j].Domain
	})

	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// WeeklyTrend returns one point per day for the days ending at today,
// oldest first. Days without data are zero points.
func WeeklyTrend(snap *aggregator.Snapshot, today time.Time, days int) []TrendPoint {
	if days <= 0 {
		days = DefaultTrendDays
	}

	out := make([]TrendPoint, 0, days)
	for i := days - 1; i >= 0; i-- {
		date := today.AddDate(0, 0, -i).Format(aggregator.DateLayout)
		p := TrendPoint{Date: date}
		if snap != nil {
			if d, ok := snap.Days[date]; ok {
				p.TotalTime = d.TotalTime
				p.ProductiveTime = d.ProductiveTime
				p.Score = ProductivityScore(d)
			}
		}
		out = append(out, p)
	}
	return out
}

// CategoryBreakdown returns the day's time per category, largest first.
// Ties follow category priority order.
func CategoryBreakdown(day aggregator.DailyStats) []CategoryShare {
	rank := make(map[category.Category]int)
	for i, c := range category.Priority() {
		rank[c] = i
	}
	rankOf := func(c category.Category) int {
		if r, ok := rank[c]; ok {
			return r
		}
		return len(rank)
	}

	var sum time.Duration
	for _, t := range day.Categories {
		sum += t
	}

	out := make([]CategoryShare, 0, len(day.Categories))
	for c, t := range day.Categories {
		if t <= 0 {
			continue
		}
		share := CategoryShare{Category: c, Time: t}
		if sum > 0 {
			share.Percent = math.Round(float64(t)/float64(sum)*1000) / 10
		}
		out = append(out, share)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Time != out[j].Time {
			return out[i].Time > out[j].Time
		}
		ri, rj := rankOf(out[i].Category), rankOf(out[j].Category)
		if ri != rj {
			return ri < rj
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// Overall sums every day in the snapshot.
func Overall(snap *aggregator.Snapshot) Totals {
	var t Totals
	if snap == nil {
		return t
	}

	for _, d := range snap.Days {
		t.TotalTime += d.TotalTime
		t.ProductiveTime += d.ProductiveTime
		t.Sessions += d.SessionCount
	}
	t.Days = len(snap.Days)
	t.Domains = len(snap.Domains)
	t.Score = score(t.ProductiveTime, t.TotalTime)
	return t
}
