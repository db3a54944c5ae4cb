// internal/submission/payload.go
package submission

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/xkilldash9x/crashreporter/internal/crashlog"
)

// Payload is everything a single submission carries.
type Payload struct {
	Reports     []crashlog.Report
	Comments    string
	Email       string
	Attributes  map[string]string
	Attachments []string
}

// Result describes a submission the endpoint accepted.
type Result struct {
	// SubmissionID is generated client-side and sent with the request.
	SubmissionID string
	// RemoteID is the identifier the collector assigned, when it returns one.
	RemoteID   string
	StatusCode int
	Reports    []crashlog.Report
	// Skipped lists attachments that could no longer be read at send time.
	Skipped []string
}

// Staging accumulates attributes and attachments until the next send drains them.
// It is safe for concurrent use.
type Staging struct {
	mu          sync.Mutex
	attributes  map[string]string
	attachments []string
}

// NewStaging returns an empty staging area.
func NewStaging() *Staging {
	return &Staging{attributes: make(map[string]string)}
}

// SetAttribute stages key=value. A later call with the same key replaces the value.
func (s *Staging) SetAttribute(key, value string) error {
	if key == "" {
		return fmt.Errorf("attribute key must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attributes[key] = value
	return nil
}

// AddAttachment stages a file. The file must exist and be a regular file;
// on failure nothing is staged and earlier entries are untouched. Adding the
// same file twice is a no-op.
func (s *Staging) AddAttachment(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrAttachmentUnreadable, path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrAttachmentUnreadable, path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrAttachmentUnreadable, path)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.attachments {
		if existing == abs {
			return nil
		}
	}
	s.attachments = append(s.attachments, abs)
	return nil
}

// Attributes returns a copy of the staged attributes.
func (s *Staging) Attributes() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.attributes))
	for k, v := range s.attributes {
		out[k] = v
	}
	return out
}

// Attachments returns a copy of the staged attachment paths.
func (s *Staging) Attachments() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.attachments...)
}

// Drain returns the staged collections and resets the staging area.
func (s *Staging) Drain() (map[string]string, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attrs, files := s.attributes, s.attachments
	s.attributes = make(map[string]string)
	s.attachments = nil
	return attrs, files
}
