// Package report holds the formatting shared by stage summaries.
package report

import (
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
)

// State is the terminal status of one unit of work.
type State string

const (
	Completed State = "COMPLETED"
	Skipped   State = "SKIPPED"
	Failed    State = "FAILED"
)

// Count formats n with thousands separators: 1234567 -> "1,234,567".
func Count(n int64) string { return humanize.Comma(n) }

// Seconds renders a duration the way the stage logs do ("1.25s").
func Seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 2, 64) + "s"
}
