// internal/crashlog/scanner.go
package crashlog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"
)

// ErrScanFailed is returned when a crash log directory exists but cannot be read.
var ErrScanFailed = errors.New("crash log scan failed")

// ScannerInterface is the contract the reporter depends on for discovery.
type ScannerInterface interface {
	Scan(ctx context.Context) ([]Report, error)
}

// Scanner finds crash logs in a fixed set of directories. Directories are
// not walked recursively; only file names matching one of the glob patterns
// are reported.
type Scanner struct {
	logger   *zap.Logger
	dirs     []string
	patterns []string
}

// NewScanner validates the glob patterns and expands "~" in the directories.
func NewScanner(logger *zap.Logger, dirs, patterns []string) (*Scanner, error) {
	for _, p := range patterns {
		if _, err := filepath.Match(p, ""); err != nil {
			return nil, fmt.Errorf("invalid crash log pattern %q: %w", p, err)
		}
	}
	expanded, err := ExpandDirs(dirs)
	if err != nil {
		return nil, err
	}
	return &Scanner{
		logger:   logger.Named("scanner"),
		dirs:     expanded,
		patterns: patterns,
	}, nil
}

// ExpandDirs resolves "~" and makes every directory absolute.
func ExpandDirs(dirs []string) ([]string, error) {
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		p, err := homedir.Expand(d)
		if err != nil {
			return nil, fmt.Errorf("could not resolve crash directory %q: %w", d, err)
		}
		if p, err = filepath.Abs(p); err != nil {
			return nil, fmt.Errorf("could not resolve crash directory %q: %w", d, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// Dirs returns the expanded directories the scanner reads.
func (s *Scanner) Dirs() []string { return append([]string(nil), s.dirs...) }

// Scan returns every matching crash log, oldest first.
func (s *Scanner) Scan(ctx context.Context) ([]Report, error) {
	var reports []Report
	seen := make(map[string]struct{})

	for _, dir := range s.dirs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				s.logger.Debug("Crash directory does not exist, skipping.", zap.String("dir", dir))
				continue
			}
			return nil, fmt.Errorf("%w: %s: %v", ErrScanFailed, dir, err)
		}

		for _, entry := range entries {
			if !entry.Type().IsRegular() || !s.matches(entry.Name()) {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			if _, dup := seen[path]; dup {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				// Removed between ReadDir and Info.
				s.logger.Debug("Crash log vanished during scan.", zap.String("path", path), zap.Error(err))
				continue
			}
			seen[path] = struct{}{}
			reports = append(reports, Report{Path: path, Date: info.ModTime()})
		}
	}

	Sort(reports)
	s.logger.Debug("Scan complete.", zap.Int("found", len(reports)))
	return reports, nil
}

func (s *Scanner) matches(name string) bool {
	for _, p := range s.patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}
