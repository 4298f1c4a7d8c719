// Package apperr defines the typed failures returned by the verification,
// session and registration services. The HTTP layer turns them into
// responses in a single place.
package apperr

import (
	"errors"
	"fmt"
)

type Kind uint8

const (
	Internal Kind = iota
	NotFound
	Conflict
	Expired
	RateExceeded
	InvalidCode
	InvalidToken
	Revoked
	ProviderUnavailable
	Validation
)

var kindNames = map[Kind]string{
	Internal:            "internal",
	NotFound:            "not_found",
	Conflict:            "conflict",
	Expired:             "expired",
	RateExceeded:        "rate_exceeded",
	InvalidCode:         "invalid_code",
	InvalidToken:        "invalid_token",
	Revoked:             "revoked",
	ProviderUnavailable: "provider_unavailable",
	Validation:          "validation",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}

	return fmt.Sprintf("kind(%d)", k)
}

// Error is a user facing failure. Message is safe to show to the caller,
// Data carries extra machine readable context (e.g. {"expired": true}).
type Error struct {
	Kind    Kind
	Message string
	Data    map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on kind so callers can write errors.Is(err, apperr.ErrRevoked).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return t.Kind == e.Kind && t.Message == ""
}

// With returns a copy of e with the key set in Data.
func (e *Error) With(key string, value any) *Error {
	c := *e
	c.Data = make(map[string]any, len(e.Data)+1)
	for k, v := range e.Data {
		c.Data[k] = v
	}
	c.Data[key] = value

	return &c
}

// Kind sentinels, only meant for errors.Is comparisons.
var (
	ErrNotFound            = &Error{Kind: NotFound}
	ErrConflict            = &Error{Kind: Conflict}
	ErrExpired             = &Error{Kind: Expired}
	ErrRateExceeded        = &Error{Kind: RateExceeded}
	ErrInvalidCode         = &Error{Kind: InvalidCode}
	ErrInvalidToken        = &Error{Kind: InvalidToken}
	ErrRevoked             = &Error{Kind: Revoked}
	ErrProviderUnavailable = &Error{Kind: ProviderUnavailable}
	ErrValidation          = &Error{Kind: Validation}
)

func New(k Kind, msg string) *Error {
	return &Error{Kind: k, Message: msg}
}

func Wrap(k Kind, msg string, err error) *Error {
	return &Error{Kind: k, Message: msg, Err: err}
}

// KindOf classifies err. Anything that isn't an *Error is Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return Internal
}

// As is a shorthand for errors.As with *Error.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
