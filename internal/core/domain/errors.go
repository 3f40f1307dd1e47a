package domain

import "errors"

var (
	ErrInvalidPolicy     = errors.New("policy limit and window must be positive")
	ErrMissingIdentifier = errors.New("request context carries no usable identifier")
)
