package core

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrDuplicateNumber = errors.New("document number already in use")
	ErrUsageLimit      = errors.New("usage limit reached")
	ErrNotConfigured   = errors.New("not configured")
)
