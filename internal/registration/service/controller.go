package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/smallbiznis/flowmarket/internal/observability/metrics"
	"github.com/smallbiznis/flowmarket/internal/observability/tracing"
	"github.com/smallbiznis/flowmarket/internal/registration/domain"
	"github.com/smallbiznis/flowmarket/internal/registration/form"
	"github.com/smallbiznis/flowmarket/internal/registration/statemachine"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const (
	outcomeSucceeded = "succeeded"
	outcomeFailed    = "failed"

	fallbackErrorMessage = "unknown error"
	panicErrorMessage    = "Something went wrong, please try again"
	noSessionMessage     = "Sign-in did not complete, please try again"
)

var tracer = otel.Tracer("flowmarket/registration")

// Controller runs the submissions of one registration visit. At most one
// submission is in flight; calls made meanwhile are dropped.
type Controller struct {
	log       *zap.Logger
	gateway   domain.AuthGateway
	navigator domain.Navigator
	metrics   *metrics.Metrics

	form    *form.State
	machine *statemachine.Machine

	// admit serializes the state check, the transition into Submitting and
	// the capture of the form snapshot.
	admit sync.Mutex

	mu           sync.RWMutex
	displayEmail string
	session      *domain.Session
}

func New(
	log *zap.Logger,
	gateway domain.AuthGateway,
	navigator domain.Navigator,
	m *metrics.Metrics,
	observer statemachine.Observer,
) *Controller {
	return &Controller{
		log:       log.Named("registration.controller"),
		gateway:   gateway,
		navigator: navigator,
		metrics:   m,
		form:      form.New(),
		machine:   statemachine.New(observer),
	}
}

func (c *Controller) SetField(field domain.Field, value string) error {
	return c.form.Set(field, value)
}

func (c *Controller) State() domain.State {
	return c.machine.Current()
}

// DisplayEmail is the email captured by the last credential submission.
func (c *Controller) DisplayEmail() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.displayEmail
}

// Session is the session returned by a successful provider sign-in.
func (c *Controller) Session() *domain.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// SubmitWithCredentials signs up with the current form contents. It reports
// false when the call was dropped because a submission is in flight or the
// flow already succeeded.
func (c *Controller) SubmitWithCredentials(ctx context.Context) bool {
	fields, ok := c.begin(ctx, domain.PathCredentials)
	if !ok {
		return false
	}

	ctx, span := tracer.Start(ctx, "registration.sign_up")
	defer span.End()

	if authErr := c.signUp(ctx, fields); authErr != nil {
		span.SetStatus(codes.Error, "sign up rejected")
		c.fail(ctx, domain.PathCredentials, messageOf(authErr))
		return true
	}

	c.succeed(ctx, domain.PathCredentials)
	return true
}

// SubmitWithProvider signs in through an external identity provider. On
// success the navigator is sent to the authenticated home route.
func (c *Controller) SubmitWithProvider(ctx context.Context, providerID string) bool {
	if _, ok := c.begin(ctx, domain.PathProvider); !ok {
		return false
	}

	ctx, span := tracer.Start(ctx, "registration.provider_sign_in")
	defer span.End()
	span.SetAttributes(tracing.SafeAttributes(attribute.String("registration.provider", providerID))...)

	session, err := c.signInWithProvider(ctx, providerID)
	if err == nil && session == nil {
		err = domain.NewAuthError(noSessionMessage)
	}
	if err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "provider sign in failed")
		c.fail(ctx, domain.PathProvider, messageOf(err))
		return true
	}

	c.mu.Lock()
	c.session = session
	c.mu.Unlock()

	c.succeed(ctx, domain.PathProvider)
	c.navigator.GoTo(ctx, domain.RouteAuthenticatedHome)
	return true
}

// Acknowledge moves a successful credential sign-up on to the sign-in page.
func (c *Controller) Acknowledge(ctx context.Context) error {
	if !c.machine.Current().AwaitingAcknowledgment() {
		return domain.ErrNotAcknowledgeable
	}
	c.navigator.GoTo(ctx, domain.RouteSignIn)
	return nil
}

func (c *Controller) begin(ctx context.Context, path domain.Path) (domain.RegistrationFields, bool) {
	c.admit.Lock()
	defer c.admit.Unlock()

	if err := c.machine.Begin(ctx, path); err != nil {
		c.metrics.RecordDropped(ctx, string(path))
		c.log.Debug("submission dropped",
			zap.String("path", string(path)),
			zap.String("status", string(c.machine.Current().Status)),
		)
		return domain.RegistrationFields{}, false
	}

	fields := c.form.Snapshot()
	if path == domain.PathCredentials {
		c.mu.Lock()
		c.displayEmail = fields.Email
		c.mu.Unlock()
	}
	c.metrics.RecordSubmission(ctx, string(path))
	return fields, true
}

func (c *Controller) succeed(ctx context.Context, path domain.Path) {
	if err := c.machine.Succeed(ctx); err != nil {
		c.log.Error("record success", zap.String("path", string(path)), zap.Error(err))
		return
	}
	c.metrics.RecordOutcome(ctx, string(path), outcomeSucceeded)
}

func (c *Controller) fail(ctx context.Context, path domain.Path, message string) {
	if err := c.machine.Fail(ctx, message); err != nil {
		c.log.Error("record failure", zap.String("path", string(path)), zap.Error(err))
		return
	}
	c.metrics.RecordOutcome(ctx, string(path), outcomeFailed)
}

func (c *Controller) signUp(ctx context.Context, fields domain.RegistrationFields) (authErr *domain.AuthError) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("auth gateway panicked during sign up", zap.Any("panic", r))
			authErr = domain.NewAuthError(panicErrorMessage)
		}
	}()
	return c.gateway.SignUp(ctx, fields).Err
}

func (c *Controller) signInWithProvider(ctx context.Context, providerID string) (session *domain.Session, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("auth gateway panicked during provider sign in",
				zap.String("provider", providerID),
				zap.Any("panic", r),
			)
			session, err = nil, errors.New(panicErrorMessage)
		}
	}()
	return c.gateway.SignInWithProvider(ctx, providerID)
}

// messageOf flattens a gateway error into the text shown to the user.
func messageOf(err error) string {
	var authErr *domain.AuthError
	var msg string
	switch {
	case errors.As(err, &authErr):
		if authErr != nil {
			msg = authErr.Message
		}
	default:
		msg = err.Error()
	}
	if strings.TrimSpace(msg) == "" {
		return fallbackErrorMessage
	}
	return msg
}

var _ domain.Service = (*Controller)(nil)
