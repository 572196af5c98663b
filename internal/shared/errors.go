package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated indicates no active session.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden indicates the session's role is not allowed.
	ErrForbidden = errors.New("role not permitted")
	// ErrRelatedDataExists blocks deletion of rows with dependents.
	ErrRelatedDataExists = errors.New("related data exists")
)
