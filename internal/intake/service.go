// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SAVIKA Contributors

package intake

import (
	"context"
	"log/slog"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/savika/savika/internal/gateway"
	"github.com/savika/savika/internal/profile"
	"github.com/savika/savika/internal/redirect"
	"github.com/savika/savika/pkg/errutil"
)

var tracer = otel.Tracer("savika/intake")

// Display messages for gateway failures, per flow. Provider text is logged,
// never shown.
const (
	loginFailedMessage    = "Invalid credentials or user not found."
	registerFailedMessage = "Registration failed. Please try again."
	recoverFailedMessage  = "The recovery email could not be sent. Please try again."
	resetFailedMessage    = "The password could not be updated. Please try again."
)

// Recorder receives submission metrics.
type Recorder interface {
	RecordSubmission(flow, outcome string)
	RecordGatewayError(operation string)
}

type nopRecorder struct{}

func (nopRecorder) RecordSubmission(string, string) {}
func (nopRecorder) RecordGatewayError(string)       {}

// Config holds optional Service settings.
type Config struct {
	// RedirectTo is where the recovery email sends the user back to.
	RedirectTo string

	// Redirects restricts RedirectTo. Nil allows any target.
	Redirects *redirect.Policy

	// Metrics receives submission counts. Nil disables metrics.
	Metrics Recorder
}

// Service validates credential forms and submits accepted ones to the gateway.
type Service struct {
	gateway    gateway.Gateway
	profiles   profile.Directory
	redirectTo string
	metrics    Recorder
	logger     *slog.Logger
}

// NewService creates a Service with a no-op logger.
// Returns an error if any required dependency is nil.
func NewService(gw gateway.Gateway, profiles profile.Directory, cfg Config) (*Service, error) {
	return NewServiceWithLogger(gw, profiles, cfg, slog.New(slog.DiscardHandler))
}

// NewServiceWithLogger creates a Service with the provided logger.
// Returns an error if any required dependency is nil or the recovery redirect
// is not allowed by cfg.Redirects.
func NewServiceWithLogger(gw gateway.Gateway, profiles profile.Directory, cfg Config, logger *slog.Logger) (*Service, error) {
	if gw == nil {
		return nil, oops.Errorf("gateway is required")
	}
	if profiles == nil {
		return nil, oops.Errorf("profile directory is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	if cfg.RedirectTo != "" && !cfg.Redirects.Allowed(cfg.RedirectTo) {
		return nil, oops.Code("INTAKE_REDIRECT_NOT_ALLOWED").
			With("redirect_to", cfg.RedirectTo).
			Hint("add the target to recovery.allowed_redirects").
			Errorf("recovery redirect is not in the allow-list")
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Service{
		gateway:    gw,
		profiles:   profiles,
		redirectTo: cfg.RedirectTo,
		metrics:    metrics,
		logger:     logger,
	}, nil
}

// Login validates f and signs in.
func (s *Service) Login(ctx context.Context, f LoginForm) Result {
	outcome := ValidateLogin(f)
	if !outcome.Accepted {
		return s.finish(FlowLogin, Result{Outcome: outcome})
	}

	var user *gateway.User
	err := s.call(ctx, FlowLogin, "sign_in", func(ctx context.Context) error {
		var err error
		user, err = s.gateway.SignIn(ctx, outcome.Payload.Email, outcome.Payload.Password)
		return err
	})
	if err != nil {
		return s.finish(FlowLogin, Result{Outcome: RejectGateway(loginFailedMessage)})
	}
	return s.finish(FlowLogin, Result{Outcome: outcome, User: user})
}

// Register validates f, signs up and records the profile. A session is only
// issued when the provider does not require email confirmation.
func (s *Service) Register(ctx context.Context, f RegistrationForm) Result {
	outcome := ValidateRegistration(f)
	if !outcome.Accepted {
		return s.finish(FlowRegistration, Result{Outcome: outcome})
	}

	p := outcome.Payload
	var signUp *gateway.SignUpResult
	err := s.call(ctx, FlowRegistration, "sign_up", func(ctx context.Context) error {
		var err error
		signUp, err = s.gateway.SignUp(ctx, p.Email, p.Password, gateway.ProfileAttributes{FullName: p.FullName})
		return err
	})
	if err != nil {
		return s.finish(FlowRegistration, Result{Outcome: RejectGateway(registerFailedMessage)})
	}

	if err := s.profiles.Upsert(ctx, p.Email); err != nil {
		errutil.LogError(ctx, s.logger, "profile upsert after sign-up failed", err)
	}

	result := Result{Outcome: outcome}
	if signUp.SessionIssued {
		result.User = signUp.User
	} else {
		result.ConfirmationPending = true
	}
	return s.finish(FlowRegistration, result)
}

// Recover validates f, checks that the email has a profile and requests a
// recovery email.
func (s *Service) Recover(ctx context.Context, f RecoveryForm) Result {
	outcome := ValidateRecovery(f)
	if !outcome.Accepted {
		return s.finish(FlowRecovery, Result{Outcome: outcome})
	}

	email := outcome.Payload.Email
	exists, err := s.profiles.Exists(ctx, email)
	if err != nil {
		s.metrics.RecordGatewayError("profile_lookup")
		errutil.LogError(ctx, s.logger, "profile lookup failed", err, "flow", string(FlowRecovery))
		return s.finish(FlowRecovery, Result{Outcome: RejectGateway(recoverFailedMessage)})
	}
	if !exists {
		return s.finish(FlowRecovery, Result{Outcome: Reject(AccountNotFound)})
	}

	err = s.call(ctx, FlowRecovery, "request_password_recovery", func(ctx context.Context) error {
		return s.gateway.RequestPasswordRecovery(ctx, email, s.redirectTo)
	})
	if err != nil {
		return s.finish(FlowRecovery, Result{Outcome: RejectGateway(recoverFailedMessage)})
	}
	return s.finish(FlowRecovery, Result{Outcome: outcome})
}

// ResetPassword validates f and updates the password of the recovery session.
func (s *Service) ResetPassword(ctx context.Context, f PasswordResetForm) Result {
	outcome := ValidatePasswordReset(f)
	if !outcome.Accepted {
		return s.finish(FlowPasswordReset, Result{Outcome: outcome})
	}

	err := s.call(ctx, FlowPasswordReset, "update_password", func(ctx context.Context) error {
		return s.gateway.UpdatePassword(ctx, outcome.Payload.Password)
	})
	if err != nil {
		return s.finish(FlowPasswordReset, Result{Outcome: RejectGateway(resetFailedMessage)})
	}
	return s.finish(FlowPasswordReset, Result{Outcome: outcome})
}

// call runs one gateway operation inside a span. Failures are recorded and
// logged here so callers only pick the display message.
func (s *Service) call(ctx context.Context, flow Flow, operation string, fn func(context.Context) error) (err error) {
	submissionID := ulid.Make().String()
	ctx, span := tracer.Start(ctx, "gateway."+operation,
		trace.WithAttributes(
			attribute.String("intake.flow", string(flow)),
			attribute.String("intake.submission_id", submissionID),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	err = fn(ctx)
	if err == nil {
		return nil
	}

	s.metrics.RecordGatewayError(operation)
	err = oops.Code("GATEWAY_"+strings.ToUpper(operation)+"_FAILED").
		With("flow", string(flow)).
		With("submission_id", submissionID).
		With("provider_code", gateway.ErrorCode(err)).
		Wrap(err)
	errutil.LogError(ctx, s.logger, "gateway call failed", err)
	return err
}

func (s *Service) finish(flow Flow, r Result) Result {
	s.metrics.RecordSubmission(string(flow), r.Label())
	if !r.Accepted && r.Reason.Local() {
		s.logger.Debug("submission rejected", "flow", string(flow), "reason", string(r.Reason))
	}
	return r
}
