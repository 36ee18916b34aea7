package billing_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/phonebill/internal/billing"
)

func TestNewCalculateTask(t *testing.T) {
	task, err := billing.NewCalculateTask(billing.JobPayload{ID: "abc", Log: sampleLog})
	require.NoError(t, err)
	require.Equal(t, billing.TaskCalculate, task.Type())

	var payload billing.JobPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, "abc", payload.ID)
	require.Equal(t, sampleLog, payload.Log)
}

func TestJobsSubmitRejectsBlankLog(t *testing.T) {
	store, _ := newRedisStore(t)
	queue := &captureQueue{}
	jobs := &billing.Jobs{Queue: queue, Store: store}

	_, err := jobs.Submit(context.Background(), "   ")
	require.ErrorIs(t, err, billing.ErrInvalidInput)
	require.Empty(t, queue.tasks)
}

func TestJobProcessorRecordsInvalidInput(t *testing.T) {
	store, _ := newRedisStore(t)
	fixed := time.Date(2025, time.January, 13, 12, 0, 0, 0, time.UTC)
	processor := &billing.JobProcessor{
		Svc:    &billing.Service{Calc: &billing.Calculator{Logger: zerolog.Nop()}},
		Store:  store,
		Logger: zerolog.Nop(),
		Now:    func() time.Time { return fixed },
	}
	task, err := billing.NewCalculateTask(billing.JobPayload{ID: "job-1", Log: "just random input"})
	require.NoError(t, err)
	require.NoError(t, processor.ProcessTask(context.Background(), task))

	jobs := &billing.Jobs{Store: store}
	res, ok, err := jobs.Status(context.Background(), "job-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, billing.JobFailed, res.Status)
	require.Contains(t, res.Error, "invalid input")
	require.True(t, fixed.Equal(res.UpdatedAt))
}

func TestJobProcessorSkipsMalformedPayload(t *testing.T) {
	processor := &billing.JobProcessor{Svc: &billing.Service{}, Logger: zerolog.Nop()}
	err := processor.ProcessTask(context.Background(), asynq.NewTask(billing.TaskCalculate, []byte("{")))
	require.Error(t, err)
	require.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestJobProcessorRetriesOnStoreFailure(t *testing.T) {
	processor := &billing.JobProcessor{
		Svc:    &billing.Service{},
		Store:  failingStore{},
		Logger: zerolog.Nop(),
	}
	task, err := billing.NewCalculateTask(billing.JobPayload{ID: "job-2", Log: sampleLog})
	require.NoError(t, err)
	err = processor.ProcessTask(context.Background(), task)
	require.Error(t, err)
	require.False(t, errors.Is(err, asynq.SkipRetry))
}
