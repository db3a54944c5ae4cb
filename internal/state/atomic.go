// internal/state/atomic.go
package state

import (
	"os"
	"path/filepath"
)

// writeFileAtomic writes data to dir/name using a temp file and rename, so a
// crash mid-write never leaves a truncated state file behind.
func writeFileAtomic(dir, name string, data []byte, perm os.FileMode) error {
	targetPath := filepath.Join(dir, name)
	tmpPath := filepath.Join(dir, ".tmp-"+name)

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer os.Remove(tmpPath) // no-op after a successful rename

	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, targetPath)
}
