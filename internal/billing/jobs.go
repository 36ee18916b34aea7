package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/phonebill/internal/obs"
)

// TaskCalculate is the asynq task type for asynchronous bill calculation.
const TaskCalculate = "bill:calculate"

// Job states.
const (
	JobPending = "pending"
	JobDone    = "done"
	JobFailed  = "failed"
)

// ErrJobsDisabled is returned when no queue is configured.
var ErrJobsDisabled = errors.New("bill jobs are not configured")

// JobPayload is the body of a TaskCalculate task.
type JobPayload struct {
	ID  string `json:"id"`
	Log string `json:"log"`
}

// JobResult is the stored state of an asynchronous calculation.
type JobResult struct {
	ID              string    `json:"id"`
	Status          string    `json:"status"`
	Total           string    `json:"total,omitempty"`
	Calls           int       `json:"calls,omitempty"`
	BilledCalls     int       `json:"billedCalls,omitempty"`
	FreeDestination string    `json:"freeDestination,omitempty"`
	Skipped         int       `json:"skipped,omitempty"`
	Error           string    `json:"error,omitempty"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// NewCalculateTask builds the asynq task for a job.
func NewCalculateTask(p JobPayload) (*asynq.Task, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCalculate, data), nil
}

func jobKey(id string) string {
	return "job:" + id
}

// Jobs submits calculations to the worker queue and reads back their state.
type Jobs struct {
	Queue     Enqueuer
	Store     JSONStore
	QueueName string
	TTL       time.Duration
	Now       func() time.Time
}

func (j *Jobs) now() time.Time {
	if j != nil && j.Now != nil {
		return j.Now()
	}
	return time.Now().UTC()
}

func (j *Jobs) ttl() time.Duration {
	if j.TTL <= 0 {
		return 24 * time.Hour
	}
	return j.TTL
}

// Submit records a pending job and enqueues it.
func (j *Jobs) Submit(ctx context.Context, phoneLog string) (JobResult, error) {
	if j == nil || j.Queue == nil || j.Store == nil {
		return JobResult{}, ErrJobsDisabled
	}
	if strings.TrimSpace(phoneLog) == "" {
		return JobResult{}, invalidf("phone log is empty")
	}

	id := uuid.NewString()
	pending := JobResult{ID: id, Status: JobPending, UpdatedAt: j.now()}
	if err := j.Store.SetJSON(ctx, jobKey(id), pending, j.ttl()); err != nil {
		return JobResult{}, fmt.Errorf("store job: %w", err)
	}

	task, err := NewCalculateTask(JobPayload{ID: id, Log: phoneLog})
	if err != nil {
		return JobResult{}, err
	}
	opts := []asynq.Option{asynq.TaskID(id), asynq.MaxRetry(3), asynq.Retention(j.ttl())}
	if j.QueueName != "" {
		opts = append(opts, asynq.Queue(j.QueueName))
	}
	if _, err := j.Queue.EnqueueContext(ctx, task, opts...); err != nil {
		return JobResult{}, fmt.Errorf("enqueue job: %w", err)
	}
	return pending, nil
}

// Status returns the stored job state. ok is false for unknown or expired jobs.
func (j *Jobs) Status(ctx context.Context, id string) (JobResult, bool, error) {
	if j == nil || j.Store == nil {
		return JobResult{}, false, ErrJobsDisabled
	}
	var res JobResult
	ok, err := j.Store.GetJSON(ctx, jobKey(id), &res)
	if err != nil || !ok {
		return JobResult{}, false, err
	}
	return res, true, nil
}

// JobProcessor handles TaskCalculate tasks inside the worker.
type JobProcessor struct {
	Svc    *Service
	Store  JSONStore
	TTL    time.Duration
	Logger zerolog.Logger
	Now    func() time.Time
}

// ProcessTask implements asynq.Handler.
func (p *JobProcessor) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload JobPayload
	err := json.Unmarshal(t.Payload(), &payload)
	if err == nil && payload.ID == "" {
		err = errors.New("missing job id")
	}
	if err != nil {
		obs.ObserveJob("malformed")
		return fmt.Errorf("decode bill job payload: %v: %w", err, asynq.SkipRetry)
	}
	logger := p.Logger.With().Str("job_id", payload.ID).Logger()

	result := JobResult{ID: payload.ID, Status: JobDone}
	bill, err := p.Svc.Calculate(ctx, payload.Log)
	switch {
	case errors.Is(err, ErrInvalidInput):
		result.Status = JobFailed
		result.Error = err.Error()
	case err != nil:
		obs.ObserveJob("error")
		return err
	default:
		result.Total = bill.Total.StringFixed(1)
		result.Calls = bill.Calls
		result.BilledCalls = bill.BilledCalls
		result.FreeDestination = bill.FreeDestination
		result.Skipped = bill.Skipped
	}
	result.UpdatedAt = p.now()

	ttl := p.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if err := p.Store.SetJSON(ctx, jobKey(payload.ID), result, ttl); err != nil {
		obs.ObserveJob("error")
		return fmt.Errorf("store job result: %w", err)
	}
	obs.ObserveJob(result.Status)
	logger.Info().Str("status", result.Status).Str("total", result.Total).Msg("bill job processed")
	return nil
}

func (p *JobProcessor) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now().UTC()
}
