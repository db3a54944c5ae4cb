// internal/submission/errors.go
package submission

import (
	"errors"
	"fmt"
)

var (
	// ErrAttachmentUnreadable is returned when a staged file is missing or is not a regular file.
	ErrAttachmentUnreadable = errors.New("attachment unreadable")
	// ErrReportUnreadable is returned when a crash log cannot be opened at send time.
	ErrReportUnreadable = errors.New("crash log unreadable")
	// ErrNetwork wraps transport failures: DNS, connect, TLS, timeouts.
	ErrNetwork = errors.New("submission network failure")
	// ErrNoReports is returned when a send is attempted with an empty batch.
	ErrNoReports = errors.New("no crash reports to submit")
)

// SubmissionError reports that the endpoint answered with a non-2xx status.
type SubmissionError struct {
	StatusCode int
	Body       string
}

func (e *SubmissionError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("submission rejected with status %d", e.StatusCode)
	}
	return fmt.Sprintf("submission rejected with status %d: %s", e.StatusCode, e.Body)
}
