package display

import (
	"encoding/json"
	"io"

	"github.com/0xmhha/tab-monitor/pkg/stats"
)

// jsonFormatter formats output as JSON.
type jsonFormatter struct {
	config Config
}

// totalsJSON is the JSON form of stats.Totals.
type totalsJSON struct {
	TotalTimeMS      int64 `json:"total_time"`
	ProductiveTimeMS int64 `json:"productive_time"`
	Sessions         int   `json:"sessions"`
	Days             int   `json:"days"`
	Domains          int   `json:"domains"`
	Score            int   `json:"score"`
}

// FormatReport implements Formatter.FormatReport.
func (f *jsonFormatter) FormatReport(w io.Writer, report stats.Report) error {
	return f.encode(w, report)
}

// FormatDomains implements Formatter.FormatDomains.
func (f *jsonFormatter) FormatDomains(w io.Writer, domains []stats.DomainView) error {
	if domains == nil {
		domains = []stats.DomainView{}
	}
	return f.encode(w, domains)
}

// FormatDomain implements Formatter.FormatDomain.
func (f *jsonFormatter) FormatDomain(w io.Writer, domain stats.DomainView) error {
	return f.encode(w, domain)
}

// FormatTotals implements Formatter.FormatTotals.
func (f *jsonFormatter) FormatTotals(w io.Writer, totals stats.Totals) error {
	return f.encode(w, totalsJSON{
		TotalTimeMS:      totals.TotalTime.Milliseconds(),
		ProductiveTimeMS: totals.ProductiveTime.Milliseconds(),
		Sessions:         totals.Sessions,
		Days:             totals.Days,
		Domains:          totals.Domains,
		Score:            totals.Score,
	})
}

func (f *jsonFormatter) encode(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	if !f.config.Compact {
		encoder.SetIndent("", "  ")
	}

	return encoder.Encode(v)
}
