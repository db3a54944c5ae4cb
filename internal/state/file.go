// internal/state/file.go
package state

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/alexflint/go-filemutex"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/crashreporter/internal/crashlog"
)

// stateVersion is written with every document so the layout can change later.
const stateVersion = 1

type document struct {
	Version   int       `yaml:"version"`
	Watermark Watermark `yaml:"watermark"`
}

// FileStore persists the watermark as a small YAML document. Every
// read-modify-write holds an OS file lock next to the state file, so
// several processes may share one state file.
type FileStore struct {
	logger *zap.Logger
	path   string

	mu   sync.Mutex // flock does not exclude goroutines sharing one descriptor
	lock *filemutex.FileMutex
}

// NewFileStore opens (creating if needed) the directory and lock file for path.
func NewFileStore(logger *zap.Logger, path string) (*FileStore, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("could not resolve state file %q: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	lock, err := filemutex.New(expanded + ".lock")
	if err != nil {
		return nil, fmt.Errorf("failed to open state lock: %w", err)
	}
	return &FileStore{
		logger: logger.Named("state"),
		path:   expanded,
		lock:   lock,
	}, nil
}

// Path returns the resolved location of the state file.
func (f *FileStore) Path() string { return f.path }

// Load returns the stored watermark.
func (f *FileStore) Load() (Watermark, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.lock.Lock(); err != nil {
		return Watermark{}, fmt.Errorf("failed to lock state file: %w", err)
	}
	defer f.unlock()
	return f.read()
}

// Advance moves the watermark forward to r under the file lock.
func (f *FileStore) Advance(r crashlog.Report) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.lock.Lock(); err != nil {
		return false, fmt.Errorf("failed to lock state file: %w", err)
	}
	defer f.unlock()

	current, err := f.read()
	if err != nil {
		return false, err
	}
	next, moved := advance(current, r, time.Now().UTC())
	if !moved {
		f.logger.Debug("Watermark already covers report.", zap.String("path", r.Path), zap.Time("watermark", current.Date))
		return false, nil
	}

	data, err := yaml.Marshal(document{Version: stateVersion, Watermark: next})
	if err != nil {
		return false, fmt.Errorf("failed to encode state: %w", err)
	}
	if err := writeFileAtomic(filepath.Dir(f.path), filepath.Base(f.path), data, 0o600); err != nil {
		return false, fmt.Errorf("failed to write state file: %w", err)
	}
	f.logger.Info("Watermark advanced.", zap.String("path", next.Path), zap.Time("date", next.Date))
	return true, nil
}

// Close releases the lock file handle.
func (f *FileStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lock.Close()
}

func (f *FileStore) read() (Watermark, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Watermark{}, nil
		}
		return Watermark{}, fmt.Errorf("failed to read state file: %w", err)
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Watermark{}, fmt.Errorf("state file %s is corrupt: %w", f.path, err)
	}
	if doc.Version > stateVersion {
		return Watermark{}, fmt.Errorf("state file %s has unsupported version %d", f.path, doc.Version)
	}
	return doc.Watermark, nil
}

func (f *FileStore) unlock() {
	if err := f.lock.Unlock(); err != nil {
		f.logger.Warn("Failed to release state lock.", zap.Error(err))
	}
}
