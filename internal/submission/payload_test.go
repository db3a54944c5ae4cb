// internal/submission/payload_test.go
package submission

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaging_SetAttribute(t *testing.T) {
	s := NewStaging()
	require.NoError(t, s.SetAttribute("version", "1.0"))
	require.NoError(t, s.SetAttribute("version", "1.1"))
	require.NoError(t, s.SetAttribute("channel", "beta"))
	assert.Error(t, s.SetAttribute("", "x"))

	assert.Equal(t, map[string]string{"version": "1.1", "channel": "beta"}, s.Attributes())

	// Returned maps are copies.
	s.Attributes()["version"] = "tampered"
	assert.Equal(t, "1.1", s.Attributes()["version"])
}

func TestStaging_AddAttachment(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "console.log")
	require.NoError(t, os.WriteFile(file, []byte("log"), 0o600))

	s := NewStaging()
	require.NoError(t, s.AddAttachment(file))
	require.NoError(t, s.AddAttachment(file), "adding the same file twice is a no-op")
	assert.Equal(t, []string{file}, s.Attachments())

	err := s.AddAttachment(filepath.Join(dir, "missing.log"))
	assert.ErrorIs(t, err, ErrAttachmentUnreadable)

	err = s.AddAttachment(dir)
	assert.ErrorIs(t, err, ErrAttachmentUnreadable, "directories are rejected")

	assert.Equal(t, []string{file}, s.Attachments(), "failed adds leave earlier entries untouched")
}

func TestStaging_Drain(t *testing.T) {
	file := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("a"), 0o600))

	s := NewStaging()
	require.NoError(t, s.SetAttribute("k", "v"))
	require.NoError(t, s.AddAttachment(file))

	attrs, files := s.Drain()
	assert.Equal(t, map[string]string{"k": "v"}, attrs)
	assert.Equal(t, []string{file}, files)

	assert.Empty(t, s.Attributes())
	assert.Empty(t, s.Attachments())
}

func TestStaging_Concurrent(t *testing.T) {
	s := NewStaging()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.SetAttribute("key", "value")
			_ = s.Attributes()
		}(i)
	}
	wg.Wait()
	assert.Equal(t, "value", s.Attributes()["key"])
}

func TestIsReservedField(t *testing.T) {
	assert.True(t, IsReservedField(FieldCrashLog))
	assert.True(t, IsReservedField(FieldAttributes))
	assert.False(t, IsReservedField("version"))
}

func TestNewBodyEncoder_Unsupported(t *testing.T) {
	_, _, err := newBodyEncoder(nil, "zstd")
	assert.Error(t, err)

	_, err = NewBodyDecoder(nil, "compress")
	assert.Error(t, err)
}
