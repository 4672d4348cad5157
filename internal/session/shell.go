// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SAVIKA Contributors

// Package session holds the root of an interactive credential session: the
// current view, the signed-in user and the auth-event subscription.
//
// A Shell is mounted once, which subscribes it to gateway events, and closed
// once, which releases the subscription and detaches the active form. Each
// view gets a fresh intake.Form; navigating away detaches the old one so a
// late gateway result cannot touch the new view.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/samber/oops"

	"github.com/savika/savika/internal/gateway"
	"github.com/savika/savika/internal/intake"
	"github.com/savika/savika/pkg/errutil"
)

// View is a screen of the credential flow.
type View string

// Views.
const (
	ViewLogin         View = "login"
	ViewRegister      View = "register"
	ViewRecovery      View = "recovery"
	ViewResetPassword View = "reset-password"
	ViewDashboard     View = "dashboard"
)

// Notices shown after a successful submission.
const (
	NoticeConfirmEmail    = "Check your email to confirm your account, then sign in."
	NoticeRecoverySent    = "Check your email for the password recovery code."
	NoticePasswordUpdated = "Your password has been updated."
)

// State is a snapshot of the shell.
type State struct {
	View   View
	User   *gateway.User
	Notice string
}

// EventRecorder counts auth events.
type EventRecorder interface {
	RecordAuthEvent(event string)
}

// Option configures a Shell.
type Option func(*Shell)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Shell) { s.logger = l }
}

// WithOnChange registers a callback invoked after every state change.
func WithOnChange(fn func(State)) Option {
	return func(s *Shell) { s.onChange = fn }
}

// WithEventRecorder records every auth event received.
func WithEventRecorder(r EventRecorder) Option {
	return func(s *Shell) { s.events = r }
}

// WithRecoveryVerifier enables VerifyRecovery.
func WithRecoveryVerifier(v gateway.RecoveryVerifier) Option {
	return func(s *Shell) { s.verifier = v }
}

// WithUser starts the shell signed in, e.g. from a restored session.
func WithUser(u *gateway.User) Option {
	return func(s *Shell) {
		if u != nil {
			s.state.User = u
			s.state.View = ViewDashboard
		}
	}
}

// Shell is the root of a credential session.
type Shell struct {
	gateway  gateway.Gateway
	service  *intake.Service
	verifier gateway.RecoveryVerifier
	logger   *slog.Logger
	events   EventRecorder
	onChange func(State)

	mu      sync.Mutex
	state   State
	form    *intake.Form
	forms   []*intake.Form
	sub     gateway.Subscription
	mounted bool
	closed  bool
}

// New creates a Shell on the login view.
func New(gw gateway.Gateway, svc *intake.Service, opts ...Option) (*Shell, error) {
	if gw == nil {
		return nil, oops.Errorf("gateway is required")
	}
	if svc == nil {
		return nil, oops.Errorf("intake service is required")
	}
	s := &Shell{
		gateway:  gw,
		service:  svc,
		logger:   slog.New(slog.DiscardHandler),
		onChange: func(State) {},
		state:    State{View: ViewLogin},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	s.form = s.newFormLocked()
	return s, nil
}

// Mount subscribes to gateway auth events. It fails if the shell was already
// mounted or has been closed.
func (s *Shell) Mount() error {
	s.mu.Lock()
	if s.mounted || s.closed {
		s.mu.Unlock()
		return oops.Code("SHELL_MOUNT_INVALID").With("closed", s.closed).Errorf("shell can only be mounted once")
	}
	s.mounted = true
	s.mu.Unlock()

	sub := s.gateway.OnAuthEvent(s.handleEvent)

	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()
	return nil
}

// Close releases the subscription and detaches the active form. Close is
// idempotent.
func (s *Shell) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	sub := s.sub
	s.sub = nil
	s.form.Detach()
	s.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

// Wait blocks until every submission started by the shell has finished.
func (s *Shell) Wait() {
	s.mu.Lock()
	forms := append([]*intake.Form(nil), s.forms...)
	s.mu.Unlock()
	for _, f := range forms {
		f.Wait()
	}
}

// State returns a snapshot of the shell.
func (s *Shell) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// FormState reports the state of the active view's form.
func (s *Shell) FormState() intake.FormState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form.State()
}

// Navigate switches to v. The dashboard needs a signed-in user and the
// password reset view is only entered through a recovery event.
func (s *Shell) Navigate(v View) error {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return oops.Code("SHELL_CLOSED").Errorf("shell is closed")
	case v == ViewDashboard && s.state.User == nil:
		s.mu.Unlock()
		return oops.Code("SHELL_NAVIGATION_DENIED").With("view", string(v)).Errorf("sign in first")
	case v == ViewResetPassword:
		s.mu.Unlock()
		return oops.Code("SHELL_NAVIGATION_DENIED").With("view", string(v)).Errorf("open the recovery link or enter the recovery code first")
	case v != ViewLogin && v != ViewRegister && v != ViewRecovery && v != ViewDashboard:
		s.mu.Unlock()
		return oops.Code("SHELL_UNKNOWN_VIEW").With("view", string(v)).Errorf("unknown view")
	}
	s.setViewLocked(v, "")
	state := s.snapshotLocked()
	s.mu.Unlock()

	s.onChange(state)
	return nil
}

// SubmitLogin submits f on the login view.
func (s *Shell) SubmitLogin(ctx context.Context, f intake.LoginForm) bool {
	return s.submit(ctx, ViewLogin, func(ctx context.Context) intake.Result {
		return s.service.Login(ctx, f)
	})
}

// SubmitRegistration submits f on the register view.
func (s *Shell) SubmitRegistration(ctx context.Context, f intake.RegistrationForm) bool {
	return s.submit(ctx, ViewRegister, func(ctx context.Context) intake.Result {
		return s.service.Register(ctx, f)
	})
}

// SubmitRecovery submits f on the recovery view.
func (s *Shell) SubmitRecovery(ctx context.Context, f intake.RecoveryForm) bool {
	return s.submit(ctx, ViewRecovery, func(ctx context.Context) intake.Result {
		return s.service.Recover(ctx, f)
	})
}

// SubmitPasswordReset submits f on the password reset view.
func (s *Shell) SubmitPasswordReset(ctx context.Context, f intake.PasswordResetForm) bool {
	return s.submit(ctx, ViewResetPassword, func(ctx context.Context) intake.Result {
		return s.service.ResetPassword(ctx, f)
	})
}

// VerifyRecovery exchanges a recovery code for a recovery session. On success
// the gateway emits a password recovery event, which moves the shell to the
// password reset view.
func (s *Shell) VerifyRecovery(ctx context.Context, email, token string) error {
	if s.verifier == nil {
		return oops.Code("SHELL_RECOVERY_UNSUPPORTED").Errorf("the configured gateway cannot verify recovery codes")
	}
	if err := s.verifier.VerifyRecovery(ctx, email, token); err != nil {
		errutil.LogError(ctx, s.logger, "recovery verification failed", err)
		return oops.Code("SHELL_RECOVERY_FAILED").
			Hint("request a new recovery email").
			Errorf("the recovery code is invalid or has expired")
	}
	return nil
}

// Logout signs out and returns to the login view. The local state is reset
// even when the gateway fails; the failure is logged and returned.
func (s *Shell) Logout(ctx context.Context) error {
	err := s.gateway.SignOut(ctx)
	if err != nil {
		errutil.LogError(ctx, s.logger, "sign out failed", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return err
	}
	s.state.User = nil
	s.setViewLocked(ViewLogin, "")
	state := s.snapshotLocked()
	s.mu.Unlock()

	s.onChange(state)
	if err != nil {
		return oops.Code("SHELL_LOGOUT_FAILED").Wrap(err)
	}
	return nil
}

func (s *Shell) submit(ctx context.Context, v View, run intake.Submission) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.state.View != v {
		return false
	}
	return s.form.Submit(ctx, run)
}

func (s *Shell) newFormLocked() *intake.Form {
	var form *intake.Form
	form = intake.NewForm(func(r intake.Result) { s.applyResult(form, r) })
	s.forms = append(s.forms, form)
	return form
}

// setViewLocked changes the view and replaces the active form.
func (s *Shell) setViewLocked(v View, notice string) {
	s.state.Notice = notice
	if s.state.View == v {
		return
	}
	s.state.View = v
	s.form.Detach()
	s.form = s.newFormLocked()
}

func (s *Shell) snapshotLocked() State {
	st := s.state
	if st.User != nil {
		u := *st.User
		st.User = &u
	}
	return st
}

func (s *Shell) applyResult(form *intake.Form, r intake.Result) {
	s.mu.Lock()
	if s.closed || form != s.form {
		s.mu.Unlock()
		return
	}

	if !r.Accepted {
		s.state.Notice = r.Message
	} else {
		switch s.state.View {
		case ViewLogin:
			s.state.User = r.User
			s.setViewLocked(ViewDashboard, "")
		case ViewRegister:
			if r.ConfirmationPending {
				s.setViewLocked(ViewLogin, NoticeConfirmEmail)
			} else {
				s.state.User = r.User
				s.setViewLocked(ViewDashboard, "")
			}
		case ViewRecovery:
			s.state.Notice = NoticeRecoverySent
		case ViewResetPassword:
			if s.state.User != nil {
				s.setViewLocked(ViewDashboard, NoticePasswordUpdated)
			} else {
				s.setViewLocked(ViewLogin, NoticePasswordUpdated)
			}
		}
	}
	state := s.snapshotLocked()
	s.mu.Unlock()

	s.onChange(state)
}

func (s *Shell) handleEvent(e gateway.AuthEvent) {
	if s.events != nil {
		s.events.RecordAuthEvent(string(e.Kind))
	}
	s.logger.Info("auth event", "event", string(e.Kind))

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	switch e.Kind {
	case gateway.EventPasswordRecovery:
		s.state.User = e.User
		s.setViewLocked(ViewResetPassword, "")
	case gateway.EventSignedIn:
		s.state.User = e.User
		if s.state.View != ViewResetPassword {
			s.setViewLocked(ViewDashboard, "")
		}
	case gateway.EventSignedOut:
		s.state.User = nil
		s.setViewLocked(ViewLogin, "")
	case gateway.EventUserUpdated:
		if e.User != nil {
			s.state.User = e.User
		}
	default:
		s.mu.Unlock()
		return
	}
	state := s.snapshotLocked()
	s.mu.Unlock()

	s.onChange(state)
}
