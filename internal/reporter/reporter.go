// internal/reporter/reporter.go
package reporter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/crashreporter/internal/config"
	"github.com/xkilldash9x/crashreporter/internal/crashlog"
	"github.com/xkilldash9x/crashreporter/internal/dialog"
	"github.com/xkilldash9x/crashreporter/internal/state"
	"github.com/xkilldash9x/crashreporter/internal/submission"
	"github.com/xkilldash9x/crashreporter/internal/sysinfo"
)

var (
	// ErrSubmissionInFlight is returned when a send starts while another is running.
	ErrSubmissionInFlight = errors.New("a crash report submission is already in flight")
	// ErrSubmissionThrottled is returned when a send comes sooner than reporter.min_submit_interval allows.
	ErrSubmissionThrottled = errors.New("crash report submission throttled")
)

// Reporter discovers crash logs, asks the user about them and submits them.
type Reporter struct {
	logger *zap.Logger
	cfg    config.Interface

	scanner   crashlog.ScannerInterface
	store     state.Store
	submitter submission.Submitter
	sysinfo   sysinfo.Provider
	frontend  dialog.Frontend
	windows   *dialog.Manager
	staging   *submission.Staging

	inflight *semaphore.Weighted
	limiter  *rate.Limiter
	now      func() time.Time

	mu       sync.Mutex
	delegate Delegate
}

// Option customizes a Reporter.
type Option func(*Reporter)

// WithScanner replaces the crash-log scanner built from configuration.
func WithScanner(s crashlog.ScannerInterface) Option { return func(r *Reporter) { r.scanner = s } }

// WithStore replaces the watermark file store.
func WithStore(s state.Store) Option { return func(r *Reporter) { r.store = s } }

// WithSubmitter replaces the HTTP submission client.
func WithSubmitter(s submission.Submitter) Option { return func(r *Reporter) { r.submitter = s } }

// WithSysInfo replaces the system attribute source. A nil provider disables it.
func WithSysInfo(p sysinfo.Provider) Option {
	return func(r *Reporter) {
		r.sysinfo = p
		if p == nil {
			r.sysinfo = noSysInfo{}
		}
	}
}

// WithFrontend replaces the terminal dialog.
func WithFrontend(f dialog.Frontend) Option { return func(r *Reporter) { r.frontend = f } }

// WithClock replaces time.Now for throttling.
func WithClock(now func() time.Time) Option { return func(r *Reporter) { r.now = now } }

type noSysInfo struct{}

func (noSysInfo) Collect(context.Context) map[string]string { return nil }

// New builds a Reporter from configuration. Collaborators not supplied
// through options are constructed from cfg.
func New(logger *zap.Logger, cfg config.Interface, opts ...Option) (*Reporter, error) {
	rc := cfg.Reporter()
	r := &Reporter{
		logger:   logger.Named("reporter"),
		cfg:      cfg,
		staging:  submission.NewStaging(),
		inflight: semaphore.NewWeighted(1),
		now:      time.Now,
		delegate: DelegateFuncs{},
	}
	for _, opt := range opts {
		opt(r)
	}

	var err error
	if r.scanner == nil {
		if r.scanner, err = crashlog.NewScanner(logger, rc.CrashDirs, rc.Patterns); err != nil {
			return nil, err
		}
	}
	if r.store == nil {
		if r.store, err = state.NewFileStore(logger, rc.StateFile); err != nil {
			return nil, err
		}
	}
	if r.submitter == nil {
		if r.submitter, err = submission.NewClient(logger, rc.SubmissionURL, cfg.Network()); err != nil {
			return nil, err
		}
	}
	if r.sysinfo == nil {
		if rc.IncludeSystemInfo {
			r.sysinfo = sysinfo.NewCollector(logger, rc.ApplicationName, rc.ApplicationVersion)
		} else {
			r.sysinfo = noSysInfo{}
		}
	}
	if r.frontend == nil {
		r.frontend = dialog.NewTerminalFrontend(logger)
	}
	if rc.MinSubmitInterval > 0 {
		r.limiter = rate.NewLimiter(rate.Every(rc.MinSubmitInterval), 1)
	}
	r.windows = dialog.NewManager(logger, r, r.frontend)
	return r, nil
}

// Close releases the state store and idle connections.
func (r *Reporter) Close() error {
	if c, ok := r.submitter.(interface{ Close() }); ok {
		c.Close()
	}
	if c, ok := r.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// SetDelegate replaces the delegate used for submission outcomes.
func (r *Reporter) SetDelegate(d Delegate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d == nil {
		d = DelegateFuncs{}
	}
	r.delegate = d
}

func (r *Reporter) currentDelegate() Delegate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.delegate
}

// Pending lists the reports the next check would surface.
func (r *Reporter) Pending(ctx context.Context) ([]crashlog.Report, error) {
	wm, err := r.store.Load()
	if err != nil {
		return nil, err
	}
	reports, err := r.scanner.Scan(ctx)
	if err != nil {
		return nil, err
	}
	return wm.Filter(reports), nil
}

// CheckForNewCrashes looks for logs newer than the watermark and, when the
// delegate keeps any, either shows them to the user or applies the
// non-interactive policy. A nil delegate keeps the current one.
func (r *Reporter) CheckForNewCrashes(ctx context.Context, interactive bool, delegate Delegate) error {
	if delegate != nil {
		r.SetDelegate(delegate)
	}
	d := r.currentDelegate()

	pending, err := r.Pending(ctx)
	if err != nil {
		return fmt.Errorf("crash check failed: %w", err)
	}
	if len(pending) == 0 {
		r.logger.Debug("No new crash logs.")
		return nil
	}

	batch := make([]crashlog.Report, 0, len(pending))
	for _, rep := range pending {
		if d.WillSendCrashLog(rep.Path, rep.Date) {
			batch = append(batch, rep)
		} else {
			r.logger.Debug("Delegate held back crash log.", zap.String("path", rep.Path))
		}
	}
	if len(batch) == 0 {
		r.logger.Info("Delegate held back every new crash log.", zap.Int("pending", len(pending)))
		return nil
	}
	r.logger.Info("Found new crash logs.", zap.Int("reports", len(batch)), zap.Bool("interactive", interactive))

	if interactive {
		return r.SendReportsInteractively(ctx, batch, dialog.CopyFromConfig(r.cfg.Dialog()))
	}

	switch policy := r.cfg.Reporter().NonInteractivePolicy; policy {
	case config.PolicySubmit:
		return r.SendReports(ctx, batch, "", r.cfg.Dialog().EmailAddress)
	case config.PolicyDefer:
		r.logger.Info("Leaving crash logs pending until an interactive run.", zap.Int("pending", len(batch)))
		return nil
	default:
		return fmt.Errorf("non-interactive policy %q is not configured", policy)
	}
}

// SendReportsInteractively shows the batch in a window and blocks until the
// user closes it. The error of the chosen action is returned.
func (r *Reporter) SendReportsInteractively(ctx context.Context, reports []crashlog.Report, c dialog.Copy) error {
	outcome, err := r.windows.ShowWindow(ctx, reports, c)
	if err != nil {
		return err
	}
	return outcome.Err
}

// SendReports submits reports with the staged attributes and attachments.
// Success advances the watermark to the newest report; failure leaves every
// report pending. The outcome also goes to the delegate.
func (r *Reporter) SendReports(ctx context.Context, reports []crashlog.Report, comments, email string) error {
	if len(reports) == 0 {
		return submission.ErrNoReports
	}
	if !r.inflight.TryAcquire(1) {
		return ErrSubmissionInFlight
	}
	defer r.inflight.Release(1)

	if r.limiter != nil && !r.limiter.AllowN(r.now(), 1) {
		return ErrSubmissionThrottled
	}

	staged, attachments := r.staging.Drain()
	system := r.sysinfo.Collect(ctx)
	attrs := make(map[string]string, len(system)+len(staged))
	for k, v := range system {
		attrs[k] = v
	}
	for k, v := range staged {
		attrs[k] = v
	}

	d := r.currentDelegate()
	result, err := r.submitter.Submit(ctx, submission.Payload{
		Reports:     reports,
		Comments:    comments,
		Email:       email,
		Attributes:  attrs,
		Attachments: attachments,
	})
	if err != nil {
		r.logger.Warn("Crash report submission failed; reports stay pending.", zap.Int("reports", len(reports)), zap.Error(err))
		d.SubmissionFailed(err)
		return err
	}

	newest, _ := crashlog.Newest(reports)
	if _, err := r.store.Advance(newest); err != nil {
		r.logger.Error("Submitted crash reports but could not record them.", zap.Error(err))
		d.SubmissionFinished(result)
		return fmt.Errorf("crash reports submitted but watermark not saved: %w", err)
	}
	d.SubmissionFinished(result)
	return nil
}

// IgnoreReportsUpTo marks report and everything older as handled.
func (r *Reporter) IgnoreReportsUpTo(report crashlog.Report) error {
	moved, err := r.store.Advance(report)
	if err != nil {
		return fmt.Errorf("failed to ignore crash reports: %w", err)
	}
	if moved {
		r.logger.Info("Ignoring crash reports.", zap.String("up_to", report.Path), zap.Time("date", report.Date))
	} else {
		r.logger.Debug("Watermark already covers report.", zap.String("path", report.Path))
	}
	return nil
}

// SendAttribute stages a key/value pair for the next submission.
func (r *Reporter) SendAttribute(key, value string) error {
	return r.staging.SetAttribute(key, value)
}

// AddAttachment stages a file for the next submission.
func (r *Reporter) AddAttachment(path string) error {
	return r.staging.AddAttachment(path)
}

// Staged returns copies of the attributes and attachments the next send will carry.
func (r *Reporter) Staged() (map[string]string, []string) {
	return r.staging.Attributes(), r.staging.Attachments()
}
