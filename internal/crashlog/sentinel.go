// internal/crashlog/sentinel.go
package crashlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"
)

// Sentinel turns a panic in the running process into a crash log that the
// next scan will pick up. Deferred Recover must be the first deferred call in
// main so that it runs last.
type Sentinel struct {
	// Dir resolves the crash directory at panic time, after configuration
	// has had a chance to load.
	Dir func() string
	// Flush runs before the log is written, typically to sync the logger.
	Flush func()
	// Stderr receives a short notice. Defaults to os.Stderr.
	Stderr io.Writer

	now       func() time.Time
	writeFile func(name string, data []byte, perm os.FileMode) error
	repanic   func(v any)
}

// Recover writes the panic log and then re-panics so the process still exits
// with a non-zero status and the runtime prints its usual trace.
func (s *Sentinel) Recover() {
	r := recover()
	if r == nil {
		return
	}
	s.handle(r, debug.Stack())
}

func (s *Sentinel) handle(r any, stack []byte) {
	if s.Flush != nil {
		s.Flush()
	}
	stderr := s.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	path, err := s.write(r, stack)
	if err != nil {
		fmt.Fprintf(stderr, "CRITICAL: failed to write panic log: %v\n", err)
	} else {
		fmt.Fprintf(stderr, "Crash details logged to %s\n", path)
	}

	repanic := s.repanic
	if repanic == nil {
		repanic = func(v any) { panic(v) }
	}
	repanic(r)
}

func (s *Sentinel) write(r any, stack []byte) (string, error) {
	dir := ""
	if s.Dir != nil {
		dir = s.Dir()
	}
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	now := time.Now
	if s.now != nil {
		now = s.now
	}
	writeFile := os.WriteFile
	if s.writeFile != nil {
		writeFile = s.writeFile
	}

	name := fmt.Sprintf("panic-%s.log", now().UTC().Format("20060102T150405.000000000Z"))
	path := filepath.Join(dir, name)
	body := fmt.Sprintf("panic: %v\n\n%s", r, stack)
	return path, writeFile(path, []byte(body), 0o644)
}
