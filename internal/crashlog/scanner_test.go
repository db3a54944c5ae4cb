// internal/crashlog/scanner_test.go
package crashlog

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// writeCrashLog creates a file and pins its modification time.
func writeCrashLog(t *testing.T, dir, name string, mtime time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("crash "+name), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}

func TestScanner_Scan(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("matches patterns and sorts by date", func(t *testing.T) {
		dirA, dirB := t.TempDir(), t.TempDir()
		newer := writeCrashLog(t, dirA, "App_2026-03-01.crash", base.Add(2*time.Hour))
		older := writeCrashLog(t, dirB, "panic-1.log", base)
		writeCrashLog(t, dirA, "notes.txt", base.Add(time.Hour))
		require.NoError(t, os.Mkdir(filepath.Join(dirA, "nested.crash"), 0o755))

		s, err := NewScanner(zaptest.NewLogger(t), []string{dirA, dirB}, []string{"*.crash", "panic-*.log"})
		require.NoError(t, err)

		reports, err := s.Scan(context.Background())
		require.NoError(t, err)
		require.Len(t, reports, 2)
		assert.Equal(t, older, reports[0].Path)
		assert.Equal(t, newer, reports[1].Path)
		assert.True(t, reports[0].Date.Equal(base))
	})

	t.Run("missing directory is skipped", func(t *testing.T) {
		dir := t.TempDir()
		writeCrashLog(t, dir, "a.crash", base)

		s, err := NewScanner(zaptest.NewLogger(t), []string{filepath.Join(dir, "absent"), dir}, []string{"*.crash"})
		require.NoError(t, err)

		reports, err := s.Scan(context.Background())
		require.NoError(t, err)
		assert.Len(t, reports, 1)
	})

	t.Run("duplicate directories are reported once", func(t *testing.T) {
		dir := t.TempDir()
		writeCrashLog(t, dir, "a.crash", base)

		s, err := NewScanner(zaptest.NewLogger(t), []string{dir, dir}, []string{"*.crash", "a.*"})
		require.NoError(t, err)

		reports, err := s.Scan(context.Background())
		require.NoError(t, err)
		assert.Len(t, reports, 1)
	})

	t.Run("unreadable directory fails the scan", func(t *testing.T) {
		if runtime.GOOS == "windows" || os.Geteuid() == 0 {
			t.Skip("permission bits are not enforced for this user")
		}
		dir := filepath.Join(t.TempDir(), "locked")
		require.NoError(t, os.Mkdir(dir, 0o000))
		t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

		s, err := NewScanner(zaptest.NewLogger(t), []string{dir}, []string{"*.crash"})
		require.NoError(t, err)

		_, err = s.Scan(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrScanFailed)
		assert.Contains(t, err.Error(), dir)
	})

	t.Run("canceled context", func(t *testing.T) {
		s, err := NewScanner(zaptest.NewLogger(t), []string{t.TempDir()}, []string{"*.crash"})
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = s.Scan(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestNewScanner_InvalidPattern(t *testing.T) {
	_, err := NewScanner(zaptest.NewLogger(t), []string{t.TempDir()}, []string{"[unterminated"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid crash log pattern")
}

func TestExpandDirs(t *testing.T) {
	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })
	home := t.TempDir()
	t.Setenv("HOME", home)
	if runtime.GOOS == "windows" {
		t.Setenv("USERPROFILE", home)
	}

	dirs, err := ExpandDirs([]string{"~/crashes", "relative"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "crashes"), dirs[0])
	assert.True(t, filepath.IsAbs(dirs[1]))
}
