package cache

import "errors"

var (
	// ErrInvalidArgument is wrapped by every error caused by a bad caller
	// value: negative cost, negative limit, bad sequence override.
	// The cache is left unchanged.
	ErrInvalidArgument = errors.New("cache: invalid argument")

	// ErrNoLoader is returned by GetOrLoad when no Loader was configured.
	ErrNoLoader = errors.New("cache: no Loader provided")

	// ErrClosed is returned by mutating calls after Close.
	ErrClosed = errors.New("cache: closed")
)
