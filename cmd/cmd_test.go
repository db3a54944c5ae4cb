// File: cmd/cmd_test.go
package cmd

import (
	"bytes"
	"context"
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
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/crashreporter/internal/collector"
	"github.com/xkilldash9x/crashreporter/internal/config"
	"github.com/xkilldash9x/crashreporter/internal/observability"
)

var (
	t1 = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	t2 = t1.Add(time.Hour)
)

// testEnv is a crash directory, state file and config file under one temp dir.
type testEnv struct {
	crashes string
	state   string
	config  string
}

func resetForTest(t *testing.T) {
	t.Helper()
	observability.ResetForTest()
	crashDir.Store("")
	t.Cleanup(observability.ResetForTest)
}

func newTestEnv(t *testing.T, submissionURL string, policy config.NonInteractivePolicy) *testEnv {
	t.Helper()
	resetForTest(t)
	root := t.TempDir()
	env := &testEnv{
		crashes: filepath.Join(root, "crashes"),
		state:   filepath.Join(root, "state.yaml"),
		config:  filepath.Join(root, "crashreporter.yaml"),
	}
	require.NoError(t, os.MkdirAll(env.crashes, 0o755))

	reporterCfg := map[string]interface{}{
		"crash_dirs":          []string{env.crashes},
		"patterns":            []string{"*.crash"},
		"state_file":          env.state,
		"include_system_info": false,
	}
	if submissionURL != "" {
		reporterCfg["submission_url"] = submissionURL
	}
	if policy != "" {
		reporterCfg["non_interactive_policy"] = string(policy)
	}
	doc := map[string]interface{}{
		"logger":   map[string]interface{}{"level": "error"},
		"reporter": reporterCfg,
		"network":  map[string]interface{}{"compression": "gzip", "timeout": "5s"},
		"dialog":   map[string]interface{}{"email_address": "me@example.com"},
	}
	data, err := yaml.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(env.config, data, 0o600))
	return env
}

func (e *testEnv) crash(t *testing.T, name string, date time.Time) string {
	t.Helper()
	path := filepath.Join(e.crashes, name)
	require.NoError(t, os.WriteFile(path, []byte("crash "+name), 0o600))
	require.NoError(t, os.Chtimes(path, date, date))
	return path
}

func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runContext(t, context.Background(), append([]string{"--config", e.config}, args...)...)
}

func runContext(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func newCollector(t *testing.T) (*collector.Server, string) {
	t.Helper()
	srv, err := collector.NewServer(zaptest.NewLogger(t), config.CollectorConfig{SpoolDir: t.TempDir()})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts.URL + "/submit"
}

func TestVersion(t *testing.T) {
	resetForTest(t)
	out, err := runContext(t, context.Background(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "crashreporter "+Version)

	out, err = runContext(t, context.Background(), "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "crashreporter version "+Version)
}

func TestPending(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1/submit", config.PolicyDefer)

	out, err := env.run(t, "pending")
	require.NoError(t, err)
	assert.Contains(t, out, "No pending crash reports.")

	a := env.crash(t, "A.crash", t1)
	b := env.crash(t, "B.crash", t2)
	env.crash(t, "notes.txt", t2)

	out, err = env.run(t, "pending")
	require.NoError(t, err)
	assert.Contains(t, out, a)
	assert.Contains(t, out, b)
	assert.NotContains(t, out, "notes.txt")

	out, err = env.run(t, "pending", "--json")
	require.NoError(t, err)
	var entries []pendingEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, a, entries[0].Path)
	assert.True(t, entries[1].Date.Equal(t2))
}

func TestIgnore(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1/submit", config.PolicyDefer)
	a := env.crash(t, "A.crash", t1)
	b := env.crash(t, "B.crash", t2)

	out, err := env.run(t, "ignore", "--up-to", a)
	require.NoError(t, err)
	assert.Contains(t, out, "Ignored 1 crash report(s).")

	out, err = env.run(t, "pending")
	require.NoError(t, err)
	assert.NotContains(t, out, a)
	assert.Contains(t, out, b)

	_, err = env.run(t, "ignore", "--up-to", a)
	assert.ErrorContains(t, err, "is not a pending crash report")

	out, err = env.run(t, "ignore")
	require.NoError(t, err)
	assert.Contains(t, out, "Ignored 1 crash report(s).")

	out, err = env.run(t, "pending")
	require.NoError(t, err)
	assert.Contains(t, out, "No pending crash reports.")
}

func TestSend_EndToEnd(t *testing.T) {
	srv, url := newCollector(t)
	env := newTestEnv(t, url, config.PolicyDefer)
	env.crash(t, "A.crash", t1)
	env.crash(t, "B.crash", t2)
	attachment := filepath.Join(t.TempDir(), "console.log")
	require.NoError(t, os.WriteFile(attachment, []byte("log"), 0o600))

	out, err := env.run(t, "send", "--comments", "saved a file", "--attribute", "plan=pro", "--attach", attachment)
	require.NoError(t, err)
	assert.Contains(t, out, "Sent 2 crash report(s).")

	entries, err := srv.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "saved a file", entries[0].Comments)
	assert.Equal(t, "me@example.com", entries[0].Email)
	assert.Equal(t, "pro", entries[0].Attributes["plan"])
	assert.Len(t, entries[0].CrashLogs, 2)
	assert.Len(t, entries[0].Attachments, 1)

	out, err = env.run(t, "pending")
	require.NoError(t, err)
	assert.Contains(t, out, "No pending crash reports.")
}

func TestSend_FailureKeepsReportsPending(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	}))
	t.Cleanup(ts.Close)
	env := newTestEnv(t, ts.URL, config.PolicyDefer)
	a := env.crash(t, "A.crash", t1)

	_, err := env.run(t, "send")
	assert.ErrorContains(t, err, "status 503")

	out, err := env.run(t, "pending")
	require.NoError(t, err)
	assert.Contains(t, out, a)
}

func TestCheck_NonInteractive(t *testing.T) {
	t.Run("submit with a held back log", func(t *testing.T) {
		srv, url := newCollector(t)
		env := newTestEnv(t, url, config.PolicySubmit)
		env.crash(t, "A.crash", t1)
		b := env.crash(t, "B.crash", t2)

		out, err := env.run(t, "check", "--interactive=false", "--skip", b)
		require.NoError(t, err)
		assert.Contains(t, out, "Submitted 1 crash report(s)")

		entries, err := srv.Entries()
		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.Len(t, entries[0].CrashLogs, 1)
		assert.Equal(t, "A.crash", entries[0].CrashLogs[0].Name)

		out, err = env.run(t, "pending")
		require.NoError(t, err)
		assert.Contains(t, out, b)
	})

	t.Run("defer", func(t *testing.T) {
		srv, url := newCollector(t)
		env := newTestEnv(t, url, config.PolicyDefer)
		a := env.crash(t, "A.crash", t1)

		_, err := env.run(t, "check", "--interactive=false")
		require.NoError(t, err)

		entries, err := srv.Entries()
		require.NoError(t, err)
		assert.Empty(t, entries)

		out, err := env.run(t, "pending")
		require.NoError(t, err)
		assert.Contains(t, out, a)
	})
}

func TestConfigValidationAndOverrides(t *testing.T) {
	env := newTestEnv(t, "", config.PolicyDefer)
	if os.Getenv("CRASHREPORTER_SUBMISSION_URL") != "" {
		t.Skip("submission url set in environment")
	}

	_, err := env.run(t, "pending")
	assert.ErrorContains(t, err, "submission_url is required")

	_, err = env.run(t, "pending", "--submission-url", "http://127.0.0.1:1/submit")
	assert.NoError(t, err)

	_, err = env.run(t, "pending", "--submission-url", "http://127.0.0.1:1/submit", "--policy", "sometimes")
	assert.ErrorContains(t, err, "unknown non_interactive_policy")

	other := t.TempDir()
	out, err := env.run(t, "pending", "--submission-url", "http://127.0.0.1:1/submit", "--crash-dir", other)
	require.NoError(t, err)
	assert.Contains(t, out, "No pending crash reports.")
	assert.Equal(t, other, CrashDir())
}

func TestCollect_StopsWithContext(t *testing.T) {
	env := newTestEnv(t, "", "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runContext(t, ctx, "--config", env.config, "collect", "--listen", "127.0.0.1:0", "--spool", t.TempDir())
	assert.NoError(t, err)
}
