package storage

import (
	"time"

	"github.com/0xmhha/tab-monitor/pkg/aggregator"
	"github.com/0xmhha/tab-monitor/pkg/category"
)

// domainRecord is the persisted form of aggregator.DomainAggregate.
// Times and durations are integer milliseconds.
type domainRecord struct {
	Domain       string `json:"domain"`
	Title        string `json:"title"`
	Category     string `json:"category"`
	TotalTimeMS  int64  `json:"total_time_ms"`
	Visits       int    `json:"visits"`
	FirstVisitMS int64  `json:"first_visit_ms"`
	LastVisitMS  int64  `json:"last_visit_ms"`
}

// dailyRecord is the persisted form of aggregator.DailyStats.
type dailyRecord struct {
	Date             string           `json:"date"`
	TotalTimeMS      int64            `json:"total_time_ms"`
	ProductiveTimeMS int64            `json:"productive_time_ms"`
	Categories       map[string]int64 `json:"categories"`
	SessionCount     int              `json:"session_count"`
}

// Meta keys.
const (
	metaTrackingEnabled = "tracking_enabled"
	metaSessionAnchor   = "session_anchor_ms"
)

func encodeDomain(d aggregator.DomainAggregate) domainRecord {
	return domainRecord{
		Domain:       d.Domain,
		Title:        d.Title,
		Category:     string(d.Category),
		TotalTimeMS:  d.TotalTime.Milliseconds(),
		Visits:       d.Visits,
		FirstVisitMS: timeToMS(d.FirstVisit),
		LastVisitMS:  timeToMS(d.LastVisit),
	}
}

func decodeDomain(r domainRecord) aggregator.DomainAggregate {
	return aggregator.DomainAggregate{
		Domain:     r.Domain,
		Title:      r.Title,
		Category:   category.Category(r.Category),
		TotalTime:  time.Duration(r.TotalTimeMS) * time.Millisecond,
		Visits:     r.Visits,
		FirstVisit: msToTime(r.FirstVisitMS),
		LastVisit:  msToTime(r.LastVisitMS),
	}
}

func encodeDay(d aggregator.DailyStats) dailyRecord {
	cats := make(map[string]int64, len(d.Categories))
	for k, v := range d.Categories {
		cats[string(k)] = v.Milliseconds()
	}

	return dailyRecord{
		Date:             d.Date,
		TotalTimeMS:      d.TotalTime.Milliseconds(),
		ProductiveTimeMS: d.ProductiveTime.Milliseconds(),
		Categories:       cats,
		SessionCount:     d.SessionCount,
	}
}

func decodeDay(r dailyRecord) aggregator.DailyStats {
	cats := make(map[category.Category]time.Duration, len(r.Categories))
	for k, v := range r.Categories {
		cats[category.Category(k)] = time.Duration(v) * time.Millisecond
	}

	return aggregator.DailyStats{
		Date:           r.Date,
		TotalTime:      time.Duration(r.TotalTimeMS) * time.Millisecond,
		ProductiveTime: time.Duration(r.ProductiveTimeMS) * time.Millisecond,
		Categories:     cats,
		SessionCount:   r.SessionCount,
	}
}

// timeToMS maps the zero time to 0.
func timeToMS(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// msToTime maps 0 to the zero time.
func msToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
