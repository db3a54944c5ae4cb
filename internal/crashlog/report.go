// internal/crashlog/report.go
package crashlog

import (
	"sort"
	"time"
)

// Report references a single crash log on disk.
type Report struct {
	// Path is the absolute location of the crash log.
	Path string `json:"path" yaml:"path"`
	// Date is when the crash log was written (its modification time).
	Date time.Time `json:"date" yaml:"date"`
}

// Before reports whether r sorts before other. Reports are ordered by date,
// with the path breaking ties so the order is total.
func (r Report) Before(other Report) bool {
	if !r.Date.Equal(other.Date) {
		return r.Date.Before(other.Date)
	}
	return r.Path < other.Path
}

// Sort orders reports oldest first, in place.
func Sort(reports []Report) {
	sort.Slice(reports, func(i, j int) bool { return reports[i].Before(reports[j]) })
}

// Newest returns the most recent report in the batch. ok is false for an empty batch.
func Newest(reports []Report) (newest Report, ok bool) {
	for i, r := range reports {
		if i == 0 || newest.Before(r) {
			newest = r
		}
	}
	return newest, len(reports) > 0
}

// Overlaps reports whether the two batches share any crash log path.
func Overlaps(a, b []Report) bool {
	seen := make(map[string]struct{}, len(a))
	for _, r := range a {
		seen[r.Path] = struct{}{}
	}
	for _, r := range b {
		if _, ok := seen[r.Path]; ok {
			return true
		}
	}
	return false
}
