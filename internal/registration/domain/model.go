// Package domain contains the core types of the registration flow.
package domain

import "time"

// Field names a registration form field. Values match the form's input names.
type Field string

const (
	FieldEmail           Field = "email"
	FieldPassword        Field = "password"
	FieldConfirmPassword Field = "confirmPassword"
	FieldName            Field = "name"
)

// Fields lists every registration field.
var Fields = []Field{FieldName, FieldEmail, FieldPassword, FieldConfirmPassword}

// RegistrationFields holds the account-creation credentials.
type RegistrationFields struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Name            string `json:"name"`
}

// Status is the lifecycle status of one registration attempt.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusSubmitting Status = "submitting"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// Path identifies which authentication path a submission used.
type Path string

const (
	PathNone        Path = ""
	PathCredentials Path = "credentials"
	PathProvider    Path = "provider"
)

// State is a snapshot of the registration state machine.
// Err is only set while Status is StatusFailed.
type State struct {
	Status Status
	Err    string
	Path   Path
}

// AwaitingAcknowledgment reports whether the state is the credential sign-up
// success that still needs the user to move on to sign-in.
func (s State) AwaitingAcknowledgment() bool {
	return s.Status == StatusSucceeded && s.Path == PathCredentials
}

// RouteID is an opaque navigation target.
type RouteID string

const (
	RouteSignIn            RouteID = "sign-in"
	RouteAuthenticatedHome RouteID = "authenticated-home"
)

// Session is returned by a successful provider sign-in. The flow only checks
// that one is present.
type Session struct {
	Token     string
	Provider  string
	ExpiresAt time.Time
}

// AuthError is a human-readable failure reported by the gateway and shown
// verbatim to the user.
type AuthError struct {
	Message string
}

func NewAuthError(message string) *AuthError {
	return &AuthError{Message: message}
}

func (e *AuthError) Error() string {
	return e.Message
}

// SignUpResult is the outcome of a credential sign-up. A nil Err means success.
type SignUpResult struct {
	Err *AuthError
}
