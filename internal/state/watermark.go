// internal/state/watermark.go
package state

import (
	"time"

	"github.com/xkilldash9x/crashreporter/internal/crashlog"
)

// Watermark marks the most recent crash report that has been handled, either
// ignored by the user or submitted successfully. Reports at or before it are
// never surfaced again.
type Watermark struct {
	Date      time.Time `yaml:"date"`
	Path      string    `yaml:"path"`
	UpdatedAt time.Time `yaml:"updated_at"`
}

// IsZero reports whether no report has been handled yet.
func (w Watermark) IsZero() bool { return w.Date.IsZero() && w.Path == "" }

// Includes reports whether r is dated at or before the watermark. Reports
// sharing the watermark's date are covered regardless of path.
func (w Watermark) Includes(r crashlog.Report) bool {
	if w.IsZero() {
		return false
	}
	return !r.Date.After(w.Date)
}

// Filter returns the reports that are newer than the watermark, preserving order.
func (w Watermark) Filter(reports []crashlog.Report) []crashlog.Report {
	var out []crashlog.Report
	for _, r := range reports {
		if !w.Includes(r) {
			out = append(out, r)
		}
	}
	return out
}

// Store persists the watermark.
type Store interface {
	// Load returns the current watermark; the zero value if none was stored.
	Load() (Watermark, error)
	// Advance moves the watermark to r if r is newer. It returns false and
	// leaves the watermark untouched otherwise.
	Advance(r crashlog.Report) (bool, error)
}

// advance is the shared forward-only rule.
func advance(current Watermark, r crashlog.Report, now time.Time) (Watermark, bool) {
	if current.Includes(r) {
		return current, false
	}
	return Watermark{Date: r.Date, Path: r.Path, UpdatedAt: now}, true
}
