package models

import (
	"errors"
	"fmt"
)

// ParseError is returned when a payload cannot be decoded into the shape
// its subject promises. The message is dropped without touching the cache.
type ParseError struct {
	Kind string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Kind, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// CacheError is returned when the dedup store cannot be reached or fails.
type CacheError struct {
	Op  string
	Key string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *CacheError) Unwrap() error {
	return e.Err
}

// PublishError is returned when the output bus rejects a message. The
// admission already recorded in the cache is not rolled back.
type PublishError struct {
	Subject string
	Err     error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %s: %v", e.Subject, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// ErrorType classifies err for metrics labels.
func ErrorType(err error) string {
	var (
		parseErr   *ParseError
		cacheErr   *CacheError
		publishErr *PublishError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &parseErr):
		return "parse"
	case errors.As(err, &cacheErr):
		return "cache"
	case errors.As(err, &publishErr):
		return "publish"
	default:
		return "internal"
	}
}
