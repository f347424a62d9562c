package display

import (
	"fmt"
	"io"

	"github.com/0xmhha/tab-monitor/pkg/stats"
)

// simpleFormatter formats output as simple text.
type simpleFormatter struct {
	config Config
}

// FormatReport implements Formatter.FormatReport.
func (f *simpleFormatter) FormatReport(w io.Writer, report stats.Report) error {
	state := "paused"
	if report.IsTracking {
		state = "tracking"
	}
	if report.Demo {
		state = "demo"
	}

	current := "idle"
	if s := report.CurrentSession; s != nil {
		current = fmt.Sprintf("%s (%s, %s)", s.Domain, s.Category, formatDuration(s.ElapsedMS))
	}

	p := report.ProductivityStats
	if _, err := fmt.Fprintf(w, "%s | Now: %s | Today: %s | Productive: %s | Score: %d | Sessions: %d\n",
		state,
		current,
		formatDuration(p.TotalTimeMS),
		formatDuration(p.ProductiveTimeMS),
		p.Score,
		p.SessionCount); err != nil {
		return err
	}

	return f.FormatDomains(w, report.TopDomains)
}

// FormatDomains implements Formatter.FormatDomains.
func (f *simpleFormatter) FormatDomains(w io.Writer, domains []stats.DomainView) error {
	for i, d := range domains {
		if _, err := fmt.Fprintf(w, "#%d: %s (%s) - %s in %s visits\n",
			i+1,
			d.Domain,
			d.Category,
			formatDuration(d.TotalTimeMS),
			formatNumber(d.Visits)); err != nil {
			return err
		}
	}

	return nil
}

// FormatDomain implements Formatter.FormatDomain.
func (f *simpleFormatter) FormatDomain(w io.Writer, d stats.DomainView) error {
	_, err := fmt.Fprintf(w, "%s: %s | %s | %d visits | first %s | last %s\n",
		d.Domain,
		d.Category,
		formatDuration(d.TotalTimeMS),
		d.Visits,
		formatTime(d.FirstVisit),
		formatTime(d.LastVisit))
	return err
}

// FormatTotals implements Formatter.FormatTotals.
func (f *simpleFormatter) FormatTotals(w io.Writer, t stats.Totals) error {
	_, err := fmt.Fprintf(w, "Days: %d | Domains: %d | Sessions: %s | Total: %s | Productive: %s | Score: %d\n",
		t.Days,
		t.Domains,
		formatNumber(t.Sessions),
		formatDuration(t.TotalTime.Milliseconds()),
		formatDuration(t.ProductiveTime.Milliseconds()),
		t.Score)
	return err
}
