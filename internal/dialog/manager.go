// internal/dialog/manager.go
package dialog

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/crashreporter/internal/crashlog"
	"github.com/xkilldash9x/crashreporter/internal/submission"
)

// Frontend renders a controller and invokes its actions. Present blocks
// until the user has decided or ctx is done.
type Frontend interface {
	Present(ctx context.Context, c *Controller) error
}

// FrontendFunc adapts a function to Frontend.
type FrontendFunc func(ctx context.Context, c *Controller) error

// Present calls f.
func (f FrontendFunc) Present(ctx context.Context, c *Controller) error { return f(ctx, c) }

// Manager creates window controllers and keeps overlapping batches from
// being shown twice.
type Manager struct {
	logger   *zap.Logger
	actions  Actions
	frontend Frontend

	mu   sync.Mutex
	live map[*Controller]struct{}
}

// NewManager returns a Manager presenting through frontend.
func NewManager(logger *zap.Logger, actions Actions, frontend Frontend) *Manager {
	return &Manager{
		logger:   logger.Named("dialog"),
		actions:  actions,
		frontend: frontend,
		live:     make(map[*Controller]struct{}),
	}
}

// ShowWindow presents reports and blocks until the window closes. A window
// whose action is still running when the frontend returns stays registered
// until that action finishes.
func (m *Manager) ShowWindow(ctx context.Context, reports []crashlog.Report, copy Copy) (Outcome, error) {
	if len(reports) == 0 {
		return Outcome{}, fmt.Errorf("cannot show crash report window: %w", submission.ErrNoReports)
	}
	c := newController(m.logger, m.actions, reports, copy)
	if err := m.register(c); err != nil {
		return Outcome{}, err
	}
	defer m.unregister(c)

	if err := c.present(); err != nil {
		return Outcome{}, err
	}
	m.logger.Info("Presenting crash report window.", zap.Int("reports", len(c.reports)))

	err := m.frontend.Present(ctx, c)
	c.settle()
	outcome := c.Outcome()
	m.logger.Info("Crash report window closed.", zap.Stringer("action", outcome.Action))
	if err != nil {
		return outcome, fmt.Errorf("crash report window failed: %w", err)
	}
	return outcome, nil
}

// Live reports how many windows are currently shown.
func (m *Manager) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

func (m *Manager) register(c *Controller) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for other := range m.live {
		if crashlog.Overlaps(other.reports, c.reports) {
			return ErrWindowActive
		}
	}
	m.live[c] = struct{}{}
	return nil
}

func (m *Manager) unregister(c *Controller) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.live, c)
}
