// Package neoerr defines the typed error kinds shared across every core
// component, following the kind/cause split used throughout the spec's
// error handling design rather than a generic error framework.
package neoerr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error so callers can branch on failure category
// without string matching.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindAlreadyExists Kind = "already_exists"
	KindStorage       Kind = "storage"
	KindCommunication Kind = "communication"
	KindGeneration    Kind = "generation"
	KindNetwork       Kind = "network"
	KindSerialization Kind = "serialization"
	KindConfiguration Kind = "configuration"
)

// Error is the single error type produced by core components.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func new_(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

func Validation(msg string) *Error           { return new_(KindValidation, msg, nil) }
func Validationf(f string, a ...any) *Error  { return new_(KindValidation, fmt.Sprintf(f, a...), nil) }
func NotFound(msg string) *Error             { return new_(KindNotFound, msg, nil) }
func NotFoundf(f string, a ...any) *Error    { return new_(KindNotFound, fmt.Sprintf(f, a...), nil) }
func AlreadyExists(msg string) *Error        { return new_(KindAlreadyExists, msg, nil) }
func Storage(msg string, cause error) *Error { return new_(KindStorage, msg, cause) }
func Communication(msg string, cause error) *Error {
	return new_(KindCommunication, msg, cause)
}
func Generation(msg string, cause error) *Error    { return new_(KindGeneration, msg, cause) }
func Network(msg string, cause error) *Error       { return new_(KindNetwork, msg, cause) }
func Serialization(msg string, cause error) *Error { return new_(KindSerialization, msg, cause) }
func Configuration(msg string) *Error              { return new_(KindConfiguration, msg, nil) }

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
