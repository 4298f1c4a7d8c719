package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const twilioVerifyURL = "https://verify.twilio.com/v2"

type TwilioConfig struct {
	AccountSID       string
	AuthToken        string
	VerifyServiceSID string
	Timeout          time.Duration
	// Only overridden in tests
	BaseURL string
}

// Twilio talks to the Twilio Verify v2 REST API. Twilio generates, delivers
// and stores the code, we only ever see the status of a verification.
type Twilio struct {
	cfg    TwilioConfig
	client *http.Client
}

type twilioVerification struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Channel string `json:"channel"`
	Valid   bool   `json:"valid"`
}

type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func NewTwilio(cfg TwilioConfig) *Twilio {
	if cfg.BaseURL == "" {
		cfg.BaseURL = twilioVerifyURL
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Twilio{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (t *Twilio) Send(ctx context.Context, phone, channel string) (*SendResult, error) {
	form := url.Values{
		"To":      {phone},
		"Channel": {channel},
	}

	var v twilioVerification

	status, err := t.post(ctx, "/Verifications", form, &v)
	if err != nil {
		return nil, err
	}

	if status >= 400 {
		return &SendResult{Accepted: false, Status: v.Status}, nil
	}

	zap.L().Debug("Twilio verification created",
		zap.String("phone", MaskPhone(phone)),
		zap.String("channel", channel),
		zap.String("status", v.Status))

	return &SendResult{
		Accepted:  v.Status == "pending",
		Reference: v.SID,
		Status:    v.Status,
	}, nil
}

func (t *Twilio) Check(ctx context.Context, phone, code string) (*CheckResult, error) {
	form := url.Values{
		"To":   {phone},
		"Code": {code},
	}

	var v twilioVerification

	status, err := t.post(ctx, "/VerificationCheck", form, &v)
	if err != nil {
		return nil, err
	}

	// 404 means there's no code outstanding for this number, either because
	// it was never sent or because it already expired or got approved
	if status == http.StatusNotFound {
		return &CheckResult{Approved: false, Status: "not_found"}, nil
	}

	if status >= 400 {
		return &CheckResult{Approved: false, Status: v.Status}, nil
	}

	return &CheckResult{Approved: v.Status == "approved", Status: v.Status}, nil
}

// post returns the HTTP status for 2xx and 4xx answers. Network errors and
// 5xx answers are reported as ErrUnavailable.
func (t *Twilio) post(ctx context.Context, path string, form url.Values, out any) (int, error) {
	endpoint := fmt.Sprintf("%s/Services/%s%s", t.cfg.BaseURL, t.cfg.VerifyServiceSID, path)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, fmt.Errorf("failed to build twilio request, %w", err)
	}

	req.SetBasicAuth(t.cfg.AccountSID, t.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("%w: failed to read response, %v", ErrUnavailable, err)
	}

	if resp.StatusCode >= 500 {
		return resp.StatusCode, fmt.Errorf("%w: twilio answered %d", ErrUnavailable, resp.StatusCode)
	}

	if resp.StatusCode >= 400 {
		var te twilioError
		_ = json.Unmarshal(body, &te)

		zap.L().Warn("Twilio rejected request",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.Int("code", te.Code),
			zap.String("message", te.Message))

		return resp.StatusCode, nil
	}

	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode twilio response, %w", err)
	}

	return resp.StatusCode, nil
}
