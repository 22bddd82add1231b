// Package cliutil holds small presentation helpers shared by the smd-server
// and smd-client command-line binaries: human-readable formatting, a PID
// file lock for single-instance daemons, and signal-driven graceful
// shutdown.
package cliutil

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Quiet, when true, suppresses Statusf output. Neither binary defines a
// --quiet flag; smd-client passes false to Statusf.
type Quiet bool

// Statusf prints a status message to w unless quiet is set.
func Statusf(w io.Writer, quiet bool, format string, args ...any) {
	if !quiet {
		fmt.Fprintf(w, format, args...)
	}
}

// FormatSize returns a human-readable byte size, e.g. "1.2 MB".
func FormatSize(n int64) string {
	if n < 0 {
		return humanize.Bytes(0)
	}

	return humanize.Bytes(uint64(n))
}

// FormatTime returns a compact timestamp for display, omitting the year
// when it matches the current year.
func FormatTime(t time.Time) string {
	now := time.Now()

	if t.Year() == now.Year() {
		return t.Format("Jan _2 15:04")
	}

	return t.Format("Jan _2  2006")
}

// PrintTable writes aligned columns to w. headers and each row must have
// the same length.
func PrintTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	printRow(w, headers, widths)

	for _, row := range rows {
		printRow(w, row, widths)
	}
}

func printRow(w io.Writer, cells []string, widths []int) {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		parts[i] = fmt.Sprintf("%-*s", widths[i], cell)
	}

	fmt.Fprintln(w, strings.Join(parts, "  "))
}
