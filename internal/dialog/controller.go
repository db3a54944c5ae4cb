// internal/dialog/controller.go
package dialog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/crashreporter/internal/config"
	"github.com/xkilldash9x/crashreporter/internal/crashlog"
)

var (
	// ErrWindowActive is returned when a window for an overlapping batch is still live.
	ErrWindowActive = errors.New("a crash report window for these reports is already active")
	// ErrInvalidTransition is returned when an action is invalid for the current state.
	ErrInvalidTransition = errors.New("invalid crash report window transition")
)

// State is the lifecycle position of a window controller.
type State int

const (
	StateIdle State = iota
	StatePresented
	StateReporting
	StateIgnoring
	StateDiscarding
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePresented:
		return "presented"
	case StateReporting:
		return "reporting"
	case StateIgnoring:
		return "ignoring"
	case StateDiscarding:
		return "discarding"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Action records which terminal action closed a window.
type Action int

const (
	// ActionNone means the window closed without the user choosing anything.
	ActionNone Action = iota
	ActionSend
	ActionIgnore
	ActionDiscard
)

func (a Action) String() string {
	switch a {
	case ActionSend:
		return "send"
	case ActionIgnore:
		return "ignore"
	case ActionDiscard:
		return "discard"
	default:
		return "none"
	}
}

// Copy is the text a window shows.
type Copy struct {
	Title         string
	Message       string
	Prompt        string
	Placeholder   string
	Note          string
	EmailAddress  string
	DiscardPolicy config.DiscardPolicy
}

// CopyFromConfig builds window copy from the dialog configuration.
func CopyFromConfig(cfg config.DialogConfig) Copy {
	return Copy{
		Title:         cfg.Title,
		Message:       cfg.Message,
		Prompt:        cfg.Prompt,
		Placeholder:   cfg.Placeholder,
		Note:          cfg.Note,
		EmailAddress:  cfg.EmailAddress,
		DiscardPolicy: cfg.DiscardPolicy,
	}
}

// Actions is what a window calls back into when the user decides.
type Actions interface {
	SendReports(ctx context.Context, reports []crashlog.Report, comments, email string) error
	IgnoreReportsUpTo(report crashlog.Report) error
}

// Outcome describes how a window was closed.
type Outcome struct {
	Action   Action
	Reports  []crashlog.Report
	Comments string
	Email    string
	// Err is the error returned by the chosen action, if any.
	Err error
}

// Controller drives one window over a fixed batch of reports. Controllers
// are created by Manager.ShowWindow; a zero Controller rejects every action.
type Controller struct {
	logger  *zap.Logger
	actions Actions
	reports []crashlog.Report
	copy    Copy

	mu      sync.Mutex
	state   State
	email   string
	outcome Outcome
	closed  chan struct{}
}

func newController(logger *zap.Logger, actions Actions, reports []crashlog.Report, c Copy) *Controller {
	batch := append([]crashlog.Report(nil), reports...)
	crashlog.Sort(batch)
	return &Controller{
		logger:  logger,
		actions: actions,
		reports: batch,
		copy:    c,
		email:   c.EmailAddress,
		state:   StateIdle,
		closed:  make(chan struct{}),
	}
}

// Reports returns a copy of the batch.
func (c *Controller) Reports() []crashlog.Report {
	return append([]crashlog.Report(nil), c.reports...)
}

// Copy returns the window text.
func (c *Controller) Copy() Copy { return c.copy }

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Email returns the contact address the next send will use.
func (c *Controller) Email() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.email
}

// SetEmail replaces the configured contact address while the window is presented.
func (c *Controller) SetEmail(email string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePresented {
		return fmt.Errorf("%w: cannot edit email while %s", ErrInvalidTransition, c.state)
	}
	c.email = email
	return nil
}

// Outcome returns how the window closed. It is the zero Outcome until then.
func (c *Controller) Outcome() Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcome
}

func (c *Controller) present() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return fmt.Errorf("%w: cannot present while %s", ErrInvalidTransition, c.state)
	}
	c.state = StatePresented
	return nil
}

// begin moves from Presented to the given intermediate state.
func (c *Controller) begin(next State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePresented {
		return fmt.Errorf("%w: cannot move to %s while %s", ErrInvalidTransition, next, c.state)
	}
	c.state = next
	return nil
}

// Done is closed once the window reaches StateClosed.
func (c *Controller) Done() <-chan struct{} { return c.closed }

func (c *Controller) close(o Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked(o)
}

func (c *Controller) closeLocked(o Outcome) {
	o.Reports = c.reports
	c.outcome = o
	c.state = StateClosed
	close(c.closed)
}

// SendReport submits the batch with the comments and the current email.
// The window closes once the submission returns, whatever its result.
func (c *Controller) SendReport(ctx context.Context, comments string) error {
	if err := c.begin(StateReporting); err != nil {
		return err
	}
	email := c.Email()
	c.logger.Debug("Sending crash reports from window.", zap.Int("reports", len(c.reports)))
	err := c.actions.SendReports(ctx, c.Reports(), comments, email)
	c.close(Outcome{Action: ActionSend, Comments: comments, Email: email, Err: err})
	return err
}

// IgnoreReport marks every report in the batch as handled without sending.
func (c *Controller) IgnoreReport() error {
	if err := c.begin(StateIgnoring); err != nil {
		return err
	}
	err := c.ignoreBatch()
	c.close(Outcome{Action: ActionIgnore, Err: err})
	return err
}

// DiscardReport closes the window without sending. Whether the batch stays
// pending depends on the discard policy.
func (c *Controller) DiscardReport() error {
	if err := c.begin(StateDiscarding); err != nil {
		return err
	}
	var err error
	if c.copy.DiscardPolicy == config.DiscardIgnore {
		err = c.ignoreBatch()
	}
	c.close(Outcome{Action: ActionDiscard, Err: err})
	return err
}

// settle closes a window the frontend left without an action. When an
// action is still running it blocks until that action closes the window.
func (c *Controller) settle() {
	c.mu.Lock()
	st := c.state
	if st == StatePresented {
		c.closeLocked(Outcome{Action: ActionNone})
	}
	c.mu.Unlock()

	switch st {
	case StateReporting, StateIgnoring, StateDiscarding:
		<-c.closed
	}
}

func (c *Controller) ignoreBatch() error {
	newest, ok := crashlog.Newest(c.reports)
	if !ok {
		return nil
	}
	return c.actions.IgnoreReportsUpTo(newest)
}
