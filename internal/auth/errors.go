package auth

import "errors"

var (
	// ErrUnauthorized is returned when a request carries no usable identity.
	ErrUnauthorized = errors.New("auth: unauthorized")
	// ErrForbidden is returned when an identity lacks the required role.
	ErrForbidden = errors.New("auth: forbidden")
	// ErrInvalidToken wraps every token parse or claim validation failure.
	ErrInvalidToken = errors.New("auth: invalid token")
)
