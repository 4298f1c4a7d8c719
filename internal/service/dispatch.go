package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// TaskSendOTP is the only job kind the dispatch queue knows about
const TaskSendOTP = "send-otp"

type SendOTPPayload struct {
	PhoneNumber string `json:"phone_number"` // E.164
	Channel     string `json:"channel"`
}

// Dispatcher hands jobs to the OTP worker. Enqueue returns once the job is
// stored, not once it ran, together with the id the job will carry.
type Dispatcher interface {
	Enqueue(ctx context.Context, name string, payload any) (string, error)
}

type AsynqDispatcherOpts struct {
	Queue    string
	MaxRetry int
	// Upper bound for a single run of the job
	Timeout time.Duration
}

// AsynqDispatcher persists jobs in redis through asynq
type AsynqDispatcher struct {
	client *asynq.Client
	opts   AsynqDispatcherOpts
}

func NewAsynqDispatcher(r asynq.RedisConnOpt, o AsynqDispatcherOpts) *AsynqDispatcher {
	if o.Queue == "" {
		o.Queue = "otp"
	}

	return &AsynqDispatcher{
		client: asynq.NewClient(r),
		opts:   o,
	}
}

func (d *AsynqDispatcher) Enqueue(ctx context.Context, name string, payload any) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s payload, %w", name, err)
	}

	opts := []asynq.Option{
		asynq.TaskID(uuid.NewString()),
		asynq.Queue(d.opts.Queue),
		asynq.MaxRetry(d.opts.MaxRetry),
	}

	if d.opts.Timeout > 0 {
		opts = append(opts, asynq.Timeout(d.opts.Timeout))
	}

	info, err := d.client.EnqueueContext(ctx, asynq.NewTask(name, b), opts...)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue %s, %w", name, err)
	}

	zap.L().Debug("Job enqueued",
		zap.String("job", name),
		zap.String("job_id", info.ID),
		zap.String("queue", info.Queue))

	return info.ID, nil
}

func (d *AsynqDispatcher) Close() error {
	return d.client.Close()
}

// WorkerServer drains the redis queue with asynq and feeds every job to the
// OTP worker.
type WorkerServer struct {
	srv *asynq.Server
	mux *asynq.ServeMux
}

type WorkerServerOpts struct {
	Queue       string
	Concurrency int
}

func NewWorkerServer(r asynq.RedisConnOpt, w *OTPWorker, o WorkerServerOpts) *WorkerServer {
	if o.Queue == "" {
		o.Queue = "otp"
	}

	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}

	srv := asynq.NewServer(r, asynq.Config{
		Concurrency: o.Concurrency,
		Queues:      map[string]int{o.Queue: 1},
		Logger:      zap.S(),
		// Failures are already logged by the worker, this only records that
		// asynq gave up on the task
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, t *asynq.Task, err error) {
			id, _ := asynq.GetTaskID(ctx)
			zap.L().Debug("Job errored", zap.String("job", t.Type()), zap.String("job_id", id))
		}),
	})

	mux := asynq.NewServeMux()
	mux.Handle(TaskSendOTP, w)

	return &WorkerServer{srv: srv, mux: mux}
}

// Start begins processing in the background
func (s *WorkerServer) Start() error {
	return s.srv.Start(s.mux)
}

// Shutdown waits for in-flight jobs and stops the server
func (s *WorkerServer) Shutdown() {
	s.srv.Shutdown()
}
