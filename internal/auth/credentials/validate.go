package credentials

import (
	"errors"
	"net/mail"
	"strings"

	"planner-agent/internal/auth"
)

const minPasswordLength = 8

var (
	ErrMissingEmail    = errors.New("email is required")
	ErrInvalidEmail    = errors.New("email is invalid")
	ErrMissingPassword = errors.New("password is required")
	ErrPasswordShort   = errors.New("password too short")
	ErrMissingName     = errors.New("name is required")
	ErrInvalidRole     = errors.New("role must be couple or vendor")
)

// Normalize trims whitespace around the email. Case is kept as typed; the
// backend decides how emails compare.
func (c Credentials) Normalize() Credentials {
	c.Email = strings.TrimSpace(c.Email)
	return c
}

// Validate only checks presence. Password policy belongs to the backend
// for existing accounts.
func (c Credentials) Validate() error {
	if c.Email == "" {
		return ErrMissingEmail
	}
	if c.Password == "" {
		return ErrMissingPassword
	}
	return nil
}

func (r Registration) Normalize() Registration {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	if r.Role == "" {
		r.Role = auth.RoleCouple
	}
	return r
}

// Validate rejects registrations the backend would refuse anyway. Admin
// accounts cannot self-register.
func (r Registration) Validate() error {
	if r.Name == "" {
		return ErrMissingName
	}
	if r.Email == "" {
		return ErrMissingEmail
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return ErrInvalidEmail
	}
	if len(r.Password) < minPasswordLength {
		return ErrPasswordShort
	}
	if r.Role != auth.RoleCouple && r.Role != auth.RoleVendor {
		return ErrInvalidRole
	}
	return nil
}
