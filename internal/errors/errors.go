// Package errors provides error handling for apibench.
//
// It re-exports github.com/cockroachdb/errors so every package wraps and
// inspects errors the same way:
//
//	if err := store.AppendRun(ctx, id, fields); err != nil {
//	    return errors.Wrap(err, "append run")
//	}
//
// Sentinel errors below are meant to be checked with errors.Is and wrapped
// with errors.Wrap to add context while preserving the type.
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New         = crdb.New
	Newf        = crdb.Newf
	Wrap        = crdb.Wrap
	Wrapf       = crdb.Wrapf
	WithStack   = crdb.WithStack
	WithMessage = crdb.WithMessage
)

// User-facing messages and details
var (
	WithHint           = crdb.WithHint
	WithHintf          = crdb.WithHintf
	WithDetail         = crdb.WithDetail
	WithSecondaryError = crdb.WithSecondaryError
	GetAllHints        = crdb.GetAllHints
	FlattenHints       = crdb.FlattenHints
)

// Error inspection
var (
	Is        = crdb.Is
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
	Mark      = crdb.Mark
)

var (
	// ErrNotFound indicates the requested record does not exist
	ErrNotFound = New("not found")

	// ErrInvalidRequest indicates caller input was malformed
	ErrInvalidRequest = New("invalid request")

	// ErrTransport indicates the target server could not be reached
	ErrTransport = New("transport failure")

	// ErrPersistence indicates a storage write failed
	ErrPersistence = New("persistence failure")
)

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsInvalidRequest reports whether err is or wraps ErrInvalidRequest.
func IsInvalidRequest(err error) bool {
	return err != nil && Is(err, ErrInvalidRequest)
}

// NotFoundf builds an ErrNotFound-marked error with a formatted message.
// The message is the error text; the mark keeps errors.Is working.
func NotFoundf(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrNotFound)
}

// Invalidf builds an ErrInvalidRequest-marked error with a formatted message.
func Invalidf(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrInvalidRequest)
}
