package backend

import "errors"

// Sentinel errors callers check with errors.Is. Everything else coming out
// of this package is an internal failure wrapped with context.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
)
