package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TaskTypeTranscribe = "recording:transcribe"
	TaskTypeSweep      = "recording:sweep"

	QueueTranscribe  = "transcribe"
	QueueMaintenance = "maintenance"
)

// TranscribePayload is the body of a transcribe task
type TranscribePayload struct {
	RecordingID string `json:"recordingId"`
}

// Dispatcher schedules background processing of a recording
type Dispatcher interface {
	DispatchTranscription(ctx context.Context, recordingID string) error
}

// TaskDispatcher enqueues transcribe tasks on asynq
type TaskDispatcher struct {
	asynqClient *asynq.Client
	timeout     time.Duration
}

func NewTaskDispatcher(asynqClient *asynq.Client, timeout time.Duration) *TaskDispatcher {
	return &TaskDispatcher{
		asynqClient: asynqClient,
		timeout:     timeout,
	}
}

// DispatchTranscription enqueues one task per recording. The recording id is
// the task id, so a second dispatch for the same recording is dropped.
func (d *TaskDispatcher) DispatchTranscription(ctx context.Context, recordingID string) error {
	task, err := NewTranscribeTask(recordingID)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	opts := []asynq.Option{
		asynq.Queue(QueueTranscribe),
		asynq.TaskID(recordingID),
		asynq.MaxRetry(0),
		asynq.Retention(24 * time.Hour),
	}
	if d.timeout > 0 {
		// leave room for the failure write after the provider call times out
		opts = append(opts, asynq.Timeout(d.timeout+30*time.Second))
	}

	_, err = d.asynqClient.EnqueueContext(ctx, task, opts...)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

func NewTranscribeTask(recordingID string) (*asynq.Task, error) {
	data, err := json.Marshal(TranscribePayload{RecordingID: recordingID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeTranscribe, data), nil
}

// NewSweepTask builds the periodic stuck-recording sweep task
func NewSweepTask() *asynq.Task {
	return asynq.NewTask(TaskTypeSweep, nil)
}
