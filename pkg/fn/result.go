// Package fn provides small generic helpers: a Result type, slice
// combinators, composable pipeline stages with tracing, and retry.
package fn

import "fmt"

// Result carries either a value or an error.
type Result[T any] struct {
	val T
	err error
	ok  bool
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] { return Result[T]{val: v, ok: true} }

// Err wraps an error.
func Err[T any](err error) Result[T] { return Result[T]{err: err} }

// Errf wraps a formatted error.
func Errf[T any](format string, args ...any) Result[T] {
	return Result[T]{err: fmt.Errorf(format, args...)}
}

// FromPair converts a (value, error) pair.
func FromPair[T any](v T, err error) Result[T] {
	if err != nil {
		return Err[T](err)
	}
	return Ok(v)
}

// IsOk reports success.
func (r Result[T]) IsOk() bool { return r.ok }

// IsErr reports failure.
func (r Result[T]) IsErr() bool { return !r.ok }

// Unwrap returns the value and error.
func (r Result[T]) Unwrap() (T, error) { return r.val, r.err }

// UnwrapOr returns the value, or fallback on error.
func (r Result[T]) UnwrapOr(fallback T) T {
	if !r.ok {
		return fallback
	}
	return r.val
}
