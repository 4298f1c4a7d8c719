package provider

import (
	"context"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
)

// Console is a development provider. Nothing is delivered, the send is only
// logged and Check approves a single fixed code.
type Console struct {
	Code string
}

func NewConsole(code string) *Console {
	return &Console{Code: code}
}

func (c *Console) Send(ctx context.Context, phone, channel string) (*SendResult, error) {
	ref, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate reference, %w", err)
	}

	zap.L().Info("[console provider] code sent",
		zap.String("phone", MaskPhone(phone)),
		zap.String("channel", channel),
		zap.String("reference", ref))

	return &SendResult{Accepted: true, Reference: ref, Status: "pending"}, nil
}

func (c *Console) Check(ctx context.Context, phone, code string) (*CheckResult, error) {
	if c.Code != "" && code == c.Code {
		return &CheckResult{Approved: true, Status: "approved"}, nil
	}

	return &CheckResult{Approved: false, Status: "pending"}, nil
}

// MaskPhone keeps the last four digits of a phone number for log output
func MaskPhone(p string) string {
	if len(p) <= 4 {
		return "****"
	}

	return "****" + p[len(p)-4:]
}
