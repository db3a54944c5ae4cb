// internal/collector/collector_test.go
package collector

import (
	"bytes"
	"compress/gzip"
	"context"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/crashreporter/internal/config"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s, err := NewServer(zaptest.NewLogger(t), config.CollectorConfig{SpoolDir: t.TempDir()})
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

type formFile struct{ field, name, content string }

func buildForm(t *testing.T, fields [][2]string, files []formFile) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range fields {
		require.NoError(t, w.WriteField(f[0], f[1]))
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func decodeReply(t *testing.T, resp *http.Response) BaseReply {
	t.Helper()
	defer resp.Body.Close()
	var reply BaseReply
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reply))
	return reply
}

func TestSubmit_StoresEntry(t *testing.T) {
	s, ts := newTestServer(t)

	body, contentType := buildForm(t,
		[][2]string{
			{"submission_id", "5b0f9a52-4a53-4b8d-9d1c-2f3f0b8e6a11"},
			{"comments", "clicked save"},
			{"email", "user@example.com"},
			{"attributes", `{"version":"1.2.3"}`},
			{"channel", "beta"},
			{"crash_log_date", "2026-03-01T12:00:00Z"},
		},
		[]formFile{
			{"crash_log", "App.crash", "crash body"},
			{"attachment", "console.log", "log body"},
		})

	resp, err := http.Post(ts.URL+"/submit", contentType, body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	reply := decodeReply(t, resp)
	assert.Equal(t, "success", reply.Status)
	assert.Equal(t, "5b0f9a52-4a53-4b8d-9d1c-2f3f0b8e6a11", reply.ID)

	entries, err := s.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "clicked save", e.Comments)
	assert.Equal(t, "user@example.com", e.Email)
	assert.Equal(t, map[string]string{"version": "1.2.3", "channel": "beta"}, e.Attributes)
	require.Len(t, e.CrashLogs, 1)
	assert.Equal(t, "App.crash", e.CrashLogs[0].Name)
	assert.True(t, e.CrashLogs[0].Date.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)))
	require.Len(t, e.Attachments, 1)

	content, err := os.ReadFile(e.CrashLogs[0].Path)
	require.NoError(t, err)
	assert.Equal(t, "crash body", string(content))
	content, err = os.ReadFile(e.Attachments[0].Path)
	require.NoError(t, err)
	assert.Equal(t, "log body", string(content))
}

func TestSubmit_GzipBody(t *testing.T) {
	s, ts := newTestServer(t)

	raw, contentType := buildForm(t, nil, []formFile{{"crash_log", "a.crash", "zipped"}})
	var compressed bytes.Buffer
	zw := gzip.NewWriter(&compressed)
	_, err := zw.Write(raw.Bytes())
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/submit", &compressed)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Content-Encoding", "gzip")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	reply := decodeReply(t, resp)
	assert.NotEmpty(t, reply.ID, "a collector id is issued when the client sends none")

	entries, err := s.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, reply.ID, entries[0].ID)
}

func TestSubmit_Rejections(t *testing.T) {
	s, ts := newTestServer(t)

	t.Run("not multipart", func(t *testing.T) {
		resp, err := http.Post(ts.URL+"/submit", "application/json", bytes.NewBufferString("{}"))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, decodeReply(t, resp).Status, "expected multipart/form-data")
	})

	t.Run("missing crash log", func(t *testing.T) {
		body, contentType := buildForm(t, [][2]string{{"comments", "hi"}}, nil)
		resp, err := http.Post(ts.URL+"/submit", contentType, body)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, decodeReply(t, resp).Status, "missing crash_log")
	})

	t.Run("bad attributes", func(t *testing.T) {
		body, contentType := buildForm(t, [][2]string{{"attributes", "[1,2]"}}, []formFile{{"crash_log", "a.crash", "x"}})
		resp, err := http.Post(ts.URL+"/submit", contentType, body)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("crash log without file name", func(t *testing.T) {
		body, contentType := buildForm(t, [][2]string{{"crash_log", "inline text"}}, []formFile{{"crash_log", "a.crash", "x"}})
		resp, err := http.Post(ts.URL+"/submit", contentType, body)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, decodeReply(t, resp).Status, "crash_log part has no file name")
	})

	t.Run("attachment without file name", func(t *testing.T) {
		body, contentType := buildForm(t, [][2]string{{"attachment", "inline"}}, []formFile{{"crash_log", "a.crash", "x"}})
		resp, err := http.Post(ts.URL+"/submit", contentType, body)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown encoding", func(t *testing.T) {
		body, contentType := buildForm(t, nil, []formFile{{"crash_log", "a.crash", "x"}})
		req, err := http.NewRequest(http.MethodPost, ts.URL+"/submit", body)
		require.NoError(t, err)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Content-Encoding", "compress")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("wrong method", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/submit")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})

	entries, err := s.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected submissions leave nothing behind")

	leftovers, err := filepath.Glob(filepath.Join(s.spool, ".incoming-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestSubmit_DuplicateSubmissionIDGetsFreshID(t *testing.T) {
	s, ts := newTestServer(t)
	const id = "5b0f9a52-4a53-4b8d-9d1c-2f3f0b8e6a11"

	for i := 0; i < 2; i++ {
		body, contentType := buildForm(t, [][2]string{{"submission_id", id}}, []formFile{{"crash_log", "a.crash", "x"}})
		resp, err := http.Post(ts.URL+"/submit", contentType, body)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	entries, err := s.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.NotEqual(t, entries[0].ID, entries[1].ID)
}

func TestHealthAndServe(t *testing.T) {
	s, err := NewServer(zaptest.NewLogger(t), config.CollectorConfig{SpoolDir: t.TempDir()})
	require.NoError(t, err)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, l) }()

	resp, err := http.Get("http://" + l.Addr().String() + "/healthz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decodeReply(t, resp).Status)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("collector did not shut down")
	}
}

func TestNewServer_RequiresSpool(t *testing.T) {
	_, err := NewServer(zaptest.NewLogger(t), config.CollectorConfig{})
	assert.Error(t, err)
}
