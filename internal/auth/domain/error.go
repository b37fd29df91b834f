package domain

import "errors"

var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrPasswordMismatch     = errors.New("password confirmation does not match")
	ErrUserNotFound         = errors.New("user not found")
	ErrUserExists           = errors.New("user already exists")
	ErrSignUpDisabled       = errors.New("sign up disabled for provider")
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionExpired       = errors.New("session expired")
	ErrSessionRevoked       = errors.New("session revoked")
	ErrInvalidSession       = errors.New("invalid session")
	ErrConfirmationNotFound = errors.New("confirmation token not found")
	ErrConfirmationExpired  = errors.New("confirmation token expired")
	ErrConfirmationUsed     = errors.New("confirmation token already used")
)
