// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/crashreporter/internal/config"
	"github.com/xkilldash9x/crashreporter/internal/crashlog"
	"github.com/xkilldash9x/crashreporter/internal/dialog"
	"github.com/xkilldash9x/crashreporter/internal/state"
	"github.com/xkilldash9x/crashreporter/internal/submission"
	"github.com/xkilldash9x/crashreporter/internal/sysinfo"
)

var (
	_ config.Interface          = (*MockConfig)(nil)
	_ crashlog.ScannerInterface = (*MockScanner)(nil)
	_ state.Store               = (*MockStore)(nil)
	_ submission.Submitter      = (*MockSubmitter)(nil)
	_ sysinfo.Provider          = (*MockSysInfo)(nil)
	_ dialog.Frontend           = (*MockFrontend)(nil)
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

// --- Getters ---

func (m *MockConfig) Logger() config.LoggerConfig {
	args := m.Called()
	return args.Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Reporter() config.ReporterConfig {
	args := m.Called()
	return args.Get(0).(config.ReporterConfig)
}

func (m *MockConfig) Network() config.NetworkConfig {
	args := m.Called()
	return args.Get(0).(config.NetworkConfig)
}

func (m *MockConfig) Dialog() config.DialogConfig {
	args := m.Called()
	return args.Get(0).(config.DialogConfig)
}

func (m *MockConfig) Collector() config.CollectorConfig {
	args := m.Called()
	return args.Get(0).(config.CollectorConfig)
}

// --- Setters ---

func (m *MockConfig) SetSubmissionURL(u string) { m.Called(u) }
func (m *MockConfig) SetNonInteractivePolicy(p config.NonInteractivePolicy) {
	m.Called(p)
}
func (m *MockConfig) SetCrashDirs(dirs []string) { m.Called(dirs) }

// -- Scanner Mock --

// MockScanner mocks the crashlog.ScannerInterface.
type MockScanner struct {
	mock.Mock
}

func (m *MockScanner) Scan(ctx context.Context) ([]crashlog.Report, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]crashlog.Report), args.Error(1)
}

// -- Store Mock --

// MockStore mocks the state.Store interface.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Load() (state.Watermark, error) {
	args := m.Called()
	return args.Get(0).(state.Watermark), args.Error(1)
}

func (m *MockStore) Advance(r crashlog.Report) (bool, error) {
	args := m.Called(r)
	return args.Bool(0), args.Error(1)
}

// -- Submitter Mock --

// MockSubmitter mocks the submission.Submitter interface.
type MockSubmitter struct {
	mock.Mock
}

// Submit honors a canceled context before recording the call.
func (m *MockSubmitter) Submit(ctx context.Context, p submission.Payload) (submission.Result, error) {
	select {
	case <-ctx.Done():
		return submission.Result{}, ctx.Err()
	default:
	}
	args := m.Called(ctx, p)
	return args.Get(0).(submission.Result), args.Error(1)
}

// -- System Info Mock --

// MockSysInfo mocks the sysinfo.Provider interface.
type MockSysInfo struct {
	mock.Mock
}

func (m *MockSysInfo) Collect(ctx context.Context) map[string]string {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(map[string]string)
}

// -- Delegate Mock --

// MockDelegate mocks the reporter delegate.
type MockDelegate struct {
	mock.Mock
}

func (m *MockDelegate) WillSendCrashLog(path string, date time.Time) bool {
	return m.Called(path, date).Bool(0)
}

func (m *MockDelegate) SubmissionFinished(result submission.Result) {
	m.Called(result)
}

func (m *MockDelegate) SubmissionFailed(err error) {
	m.Called(err)
}

// -- Frontend Mock --

// MockFrontend mocks dialog.Frontend. Tests drive the controller through
// Run, which receives the controller passed to Present.
type MockFrontend struct {
	mock.Mock
	Run func(ctx context.Context, c *dialog.Controller) error
}

func (m *MockFrontend) Present(ctx context.Context, c *dialog.Controller) error {
	args := m.Called(ctx, c)
	if m.Run != nil {
		if err := m.Run(ctx, c); err != nil {
			return err
		}
	}
	return args.Error(0)
}
