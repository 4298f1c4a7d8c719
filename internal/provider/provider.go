// Package provider wraps the external service that generates, delivers and
// checks one-time codes.
package provider

import (
	"context"
	"errors"
)

// ErrUnavailable marks transport level failures, as opposed to the provider
// answering with a rejection.
var ErrUnavailable = errors.New("otp provider unavailable")

type SendResult struct {
	Accepted  bool
	Reference string
	Status    string
}

type CheckResult struct {
	Approved bool
	Status   string
}

// Provider sends codes to a phone and checks the code a user typed in.
// Phone numbers are E.164 strings.
type Provider interface {
	Send(ctx context.Context, phone, channel string) (*SendResult, error)
	Check(ctx context.Context, phone, code string) (*CheckResult, error)
}
