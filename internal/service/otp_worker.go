package service

import (
	"bitwise74/otp-auth/internal/provider"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Job is a queued unit of work as seen by the worker, independent of the
// queue driver that delivered it.
type Job struct {
	ID      string
	Name    string
	Payload []byte
}

// OTPWorker asks the provider to deliver a code. Its only output is a log
// line: the verification record is never touched from here.
type OTPWorker struct {
	Provider provider.Provider
	Timeout  time.Duration
}

func NewOTPWorker(p provider.Provider, timeout time.Duration) *OTPWorker {
	return &OTPWorker{Provider: p, Timeout: timeout}
}

// ProcessTask implements asynq.Handler
func (w *OTPWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	id, _ := asynq.GetTaskID(ctx)

	err := w.Handle(ctx, &Job{ID: id, Name: t.Type(), Payload: t.Payload()})
	if errors.Is(err, errBadPayload) {
		// Retrying can't fix a payload we can't read
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	return err
}

var errBadPayload = errors.New("invalid job payload")

func (w *OTPWorker) Handle(ctx context.Context, job *Job) error {
	zap.L().Info("Processing job", zap.String("job", job.Name), zap.String("job_id", job.ID))

	if job.Name != TaskSendOTP {
		zap.L().Warn("Unknown job name", zap.String("job", job.Name), zap.String("job_id", job.ID))
		return nil
	}

	var p SendOTPPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		zap.L().Error("Job failed", zap.String("job", job.Name), zap.String("job_id", job.ID), zap.Error(err))
		return fmt.Errorf("%w, %v", errBadPayload, err)
	}

	if p.PhoneNumber == "" || p.Channel == "" {
		zap.L().Error("Job failed", zap.String("job", job.Name), zap.String("job_id", job.ID), zap.String("reason", "missing phone or channel"))
		return fmt.Errorf("%w, missing phone or channel", errBadPayload)
	}

	if w.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.Timeout)
		defer cancel()
	}

	res, err := w.Provider.Send(ctx, p.PhoneNumber, p.Channel)
	if err == nil && !res.Accepted {
		err = fmt.Errorf("provider did not accept the send, status %q", res.Status)
	}

	if err != nil {
		zap.L().Error("Job failed",
			zap.String("job", job.Name),
			zap.String("job_id", job.ID),
			zap.String("phone", provider.MaskPhone(p.PhoneNumber)),
			zap.String("channel", p.Channel),
			zap.Error(err))

		return fmt.Errorf("send-otp failed, %w", err)
	}

	zap.L().Info("Job completed",
		zap.String("job", job.Name),
		zap.String("job_id", job.ID),
		zap.String("phone", provider.MaskPhone(p.PhoneNumber)),
		zap.String("channel", p.Channel),
		zap.String("reference", res.Reference))

	return nil
}
