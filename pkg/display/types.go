// Package display provides output formatting for browsing statistics.
//
// It supports multiple output formats (table, JSON, simple text) for
// reports, domain aggregates and all-time totals.
package display

import (
	"errors"
	"io"

	"github.com/0xmhha/tab-monitor/pkg/stats"
)

// ErrUnknownFormat is returned by ParseFormat for unsupported names.
var ErrUnknownFormat = errors.New("unknown output format")

// Format represents an output format.
type Format string

const (
	// FormatTable displays statistics in formatted tables.
	FormatTable Format = "table"

	// FormatJSON displays statistics as JSON.
	FormatJSON Format = "json"

	// FormatSimple displays statistics as one line per item.
	FormatSimple Format = "simple"
)

// Formatter formats and displays browsing statistics.
type Formatter interface {
	// FormatReport formats a full stats report: the current session,
	// today's productivity, category shares, top domains and the trend.
	FormatReport(w io.Writer, report stats.Report) error

	// FormatDomains formats a list of domain aggregates.
	FormatDomains(w io.Writer, domains []stats.DomainView) error

	// FormatDomain formats a single domain aggregate in detail.
	FormatDomain(w io.Writer, domain stats.DomainView) error

	// FormatTotals formats totals across every recorded day.
	FormatTotals(w io.Writer, totals stats.Totals) error
}

// Config contains formatter configuration.
type Config struct {
	// Format specifies the output format.
	// Default: FormatTable.
	Format Format

	// Color enables ANSI colors in table output.
	Color bool

	// ShowTrend enables the weekly trend section of reports.
	ShowTrend bool

	// Compact enables compact output (less whitespace).
	// Default: false.
	Compact bool
}
