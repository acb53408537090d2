package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrInvalidInput        = errors.New("invalid input")
	ErrRateLimited         = errors.New("rate limited")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrTerminalOrder       = errors.New("order is in a terminal state")
	ErrSubmitFailed        = errors.New("order did not reach the market")
	ErrLockHeld            = errors.New("lock held")
)
