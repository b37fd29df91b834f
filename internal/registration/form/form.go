// Package form holds the values of the registration form.
package form

import (
	"sync"

	"github.com/smallbiznis/flowmarket/internal/registration/domain"
)

// State holds the current registration field values. The zero value is an
// empty form ready for use.
type State struct {
	mu     sync.RWMutex
	fields domain.RegistrationFields
}

func New() *State {
	return &State{}
}

// Set updates exactly one field. Values are stored as given; shape checks
// belong to the presentation layer.
func (s *State) Set(field domain.Field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch field {
	case domain.FieldEmail:
		s.fields.Email = value
	case domain.FieldPassword:
		s.fields.Password = value
	case domain.FieldConfirmPassword:
		s.fields.ConfirmPassword = value
	case domain.FieldName:
		s.fields.Name = value
	default:
		return domain.ErrUnknownField
	}
	return nil
}

// Snapshot returns a copy of all fields.
func (s *State) Snapshot() domain.RegistrationFields {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fields
}
