// internal/reporter/delegate.go
package reporter

import (
	"time"

	"github.com/xkilldash9x/crashreporter/internal/submission"
)

// Delegate observes the reporter on behalf of the host application.
// The reporter calls it but never owns it.
type Delegate interface {
	// WillSendCrashLog is called once per discovered log, oldest first.
	// Returning false holds the log back for this run only. The watermark
	// is date-based, so a held-back log dated before a log that is then
	// submitted or ignored is covered by it and never offered again.
	WillSendCrashLog(path string, date time.Time) bool
	SubmissionFinished(result submission.Result)
	SubmissionFailed(err error)
}

// DelegateFuncs adapts optional functions to Delegate. Nil fields accept
// every log and ignore outcomes, so the zero value is a no-op delegate.
type DelegateFuncs struct {
	WillSend func(path string, date time.Time) bool
	Finished func(result submission.Result)
	Failed   func(err error)
}

func (d DelegateFuncs) WillSendCrashLog(path string, date time.Time) bool {
	if d.WillSend == nil {
		return true
	}
	return d.WillSend(path, date)
}

func (d DelegateFuncs) SubmissionFinished(result submission.Result) {
	if d.Finished != nil {
		d.Finished(result)
	}
}

func (d DelegateFuncs) SubmissionFailed(err error) {
	if d.Failed != nil {
		d.Failed(err)
	}
}
