package domain

import "context"

// AuthGateway is the identity service boundary used by the flow.
type AuthGateway interface {
	SignUp(ctx context.Context, fields RegistrationFields) SignUpResult
	SignInWithProvider(ctx context.Context, providerID string) (*Session, error)
}

// Navigator receives post-registration navigation intents.
type Navigator interface {
	GoTo(ctx context.Context, route RouteID)
}

// Service drives one registration attempt.
type Service interface {
	SetField(field Field, value string) error
	SubmitWithCredentials(ctx context.Context) bool
	SubmitWithProvider(ctx context.Context, providerID string) bool
	Acknowledge(ctx context.Context) error
	State() State
	DisplayEmail() string
}
