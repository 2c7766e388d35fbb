package domain

import "errors"

// Sentinel errors for the domain layer.
var (
	ErrNotFound     = errors.New("domain: not found")
	ErrValidation   = errors.New("domain: invalid request")
	ErrRateLimited  = errors.New("domain: rate limited")
	ErrSafetyOptOut = errors.New("domain: safety notifications cannot be opted out")
	ErrPersistence  = errors.New("domain: persistence failure")
)
