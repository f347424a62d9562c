package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/0xmhha/tab-monitor/pkg/stats"
)

const (
	ansiBold  = "\x1b[1m"
	ansiGreen = "\x1b[32m"
	ansiYell  = "\x1b[33m"
	ansiRed   = "\x1b[31m"
	ansiReset = "\x1b[0m"

	barWidth = 20
)

// tableFormatter formats output as tables.
type tableFormatter struct {
	config Config
}

// FormatReport implements Formatter.FormatReport.
func (f *tableFormatter) FormatReport(w io.Writer, report stats.Report) error {
	title := "Browsing Statistics"
	if report.Demo {
		title += " (demo data, engine not running)"
	}
	if err := writeHeader(w, f.bold(title), f.config.Compact); err != nil {
		return err
	}

	state := "paused"
	if report.IsTracking {
		state = "tracking"
	}

	p := report.ProductivityStats
	rows := [][]string{
		{"State", state},
		{"Date", p.Date},
		{"Total Time", formatDuration(p.TotalTimeMS)},
		{"Productive Time", formatDuration(p.ProductiveTimeMS)},
		{"Productivity Score", f.score(p.Score)},
		{"Sessions", formatNumber(p.SessionCount)},
		{"Tracked Since Start", formatDuration(report.SessionTimeMS)},
	}

	if s := report.CurrentSession; s != nil {
		rows = append(rows,
			[]string{"Current Domain", s.Domain},
			[]string{"Current Category", categoryLabel(s.Category)},
			[]string{"Current Elapsed", formatDuration(s.ElapsedMS)},
		)
	}

	if err := f.writeTable(w, []string{"Metric", "Value"}, rows); err != nil {
		return err
	}

	if err := writeHeader(w, "Categories Today", f.config.Compact); err != nil {
		return err
	}

	catRows := make([][]string, len(report.CategoryStats))
	for i, c := range report.CategoryStats {
		catRows[i] = []string{
			categoryLabel(c.Category),
			formatDuration(c.TimeMS),
			formatFloat(c.Percent, 1) + "%",
			bar(c.Percent, barWidth),
		}
	}
	if err := f.writeTable(w, []string{"Category", "Time", "Share", ""}, catRows); err != nil {
		return err
	}

	if err := writeHeader(w, "Top Domains", f.config.Compact); err != nil {
		return err
	}
	if err := f.writeDomains(w, report.TopDomains); err != nil {
		return err
	}

	if !f.config.ShowTrend {
		return nil
	}

	if err := writeHeader(w, "Weekly Trend", f.config.Compact); err != nil {
		return err
	}

	trendRows := make([][]string, len(report.WeeklyTrend))
	for i, t := range report.WeeklyTrend {
		trendRows[i] = []string{
			t.Date,
			formatDuration(t.TotalTimeMS),
			formatDuration(t.ProductiveTimeMS),
			f.score(t.Score),
		}
	}
	return f.writeTable(w, []string{"Date", "Total", "Productive", "Score"}, trendRows)
}

// FormatDomains implements Formatter.FormatDomains.
func (f *tableFormatter) FormatDomains(w io.Writer, domains []stats.DomainView) error {
	if err := writeHeader(w, f.bold("Domains by Time"), f.config.Compact); err != nil {
		return err
	}
	return f.writeDomains(w, domains)
}

// FormatDomain implements Formatter.FormatDomain.
func (f *tableFormatter) FormatDomain(w io.Writer, d stats.DomainView) error {
	if err := writeHeader(w, f.bold(d.Domain), f.config.Compact); err != nil {
		return err
	}

	title := d.Title
	if title == "" {
		title = "-"
	}

	rows := [][]string{
		{"Title", title},
		{"Category", categoryLabel(d.Category)},
		{"Total Time", formatDuration(d.TotalTimeMS)},
		{"Visits", formatNumber(d.Visits)},
		{"First Visit", formatTime(d.FirstVisit)},
		{"Last Visit", formatTime(d.LastVisit)},
	}

	return f.writeTable(w, []string{"Field", "Value"}, rows)
}

// FormatTotals implements Formatter.FormatTotals.
func (f *tableFormatter) FormatTotals(w io.Writer, t stats.Totals) error {
	if err := writeHeader(w, f.bold("All-Time Totals"), f.config.Compact); err != nil {
		return err
	}

	rows := [][]string{
		{"Days Recorded", formatNumber(t.Days)},
		{"Domains", formatNumber(t.Domains)},
		{"Sessions", formatNumber(t.Sessions)},
		{"Total Time", formatDuration(t.TotalTime.Milliseconds())},
		{"Productive Time", formatDuration(t.ProductiveTime.Milliseconds())},
		{"Productivity Score", f.score(t.Score)},
	}

	return f.writeTable(w, []string{"Metric", "Value"}, rows)
}

func (f *tableFormatter) writeDomains(w io.Writer, domains []stats.DomainView) error {
	rows := make([][]string, len(domains))
	for i, d := range domains {
		rows[i] = []string{
			fmt.Sprintf("#%d", i+1),
			d.Domain,
			categoryLabel(d.Category),
			formatDuration(d.TotalTimeMS),
			formatNumber(d.Visits),
			formatTime(d.LastVisit),
		}
	}

	return f.writeTable(w, []string{"Rank", "Domain", "Category", "Time", "Visits", "Last Visit"}, rows)
}

func (f *tableFormatter) score(s int) string {
	v := fmt.Sprintf("%d%%", s)
	if !f.config.Color {
		return v
	}

	switch {
	case s >= 60:
		return ansiGreen + v + ansiReset
	case s >= 30:
		return ansiYell + v + ansiReset
	default:
		return ansiRed + v + ansiReset
	}
}

func (f *tableFormatter) bold(s string) string {
	if !f.config.Color {
		return s
	}
	return ansiBold + s + ansiReset
}

// writeTable writes a formatted table.
func (f *tableFormatter) writeTable(w io.Writer, header []string, rows [][]string) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No data")
		return err
	}

	// Calculate column widths on visible text.
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			if n := visibleLen(cell); i < len(widths) && n > widths[i] {
				widths[i] = n
			}
		}
	}

	if err := f.writeRow(w, header, widths); err != nil {
		return err
	}

	if !f.config.Compact {
		separator := make([]string, len(header))
		for i, width := range widths {
			separator[i] = strings.Repeat("-", width)
		}
		if err := f.writeRow(w, separator, widths); err != nil {
			return err
		}
	}

	for _, row := range rows {
		if err := f.writeRow(w, row, widths); err != nil {
			return err
		}
	}

	if !f.config.Compact {
		_, err := fmt.Fprintln(w)
		return err
	}

	return nil
}

// writeRow writes a single table row.
func (f *tableFormatter) writeRow(w io.Writer, cells []string, widths []int) error {
	gap := "  "
	if f.config.Compact {
		gap = " "
	}

	var b strings.Builder
	for i, cell := range cells {
		if i > 0 {
			b.WriteString(gap)
		}
		b.WriteString(cell)
		if i < len(cells)-1 {
			b.WriteString(strings.Repeat(" ", widths[i]-visibleLen(cell)))
		}
	}

	_, err := fmt.Fprintln(w, strings.TrimRight(b.String(), " "))
	return err
}

// visibleLen is the display length of s without ANSI escapes.
func visibleLen(s string) int {
	n := 0
	inEscape := false
	for _, r := range s {
		switch {
		case inEscape:
			if r == 'm' {
				inEscape = false
			}
		case r == '\x1b':
			inEscape = true
		default:
			n++
		}
	}
	return n
}
