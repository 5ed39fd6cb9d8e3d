package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/hibiken/asynq"
	"github.com/scribehub/api/internal/service"
)

// RecordingProcessor is the part of the recording service workers drive
type RecordingProcessor interface {
	Process(ctx context.Context, id string) error
	SweepStuck(ctx context.Context) (int, error)
}

// TranscribeWorker processes recording:transcribe tasks
type TranscribeWorker struct {
	recordings RecordingProcessor
}

// NewTranscribeWorker creates a new transcribe worker
func NewTranscribeWorker(recordings RecordingProcessor) *TranscribeWorker {
	return &TranscribeWorker{recordings: recordings}
}

// ProcessTask handles transcribe task processing. Failures are already
// recorded on the recording, so the task is never retried.
func (w *TranscribeWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload service.TranscribePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.RecordingID == "" {
		return fmt.Errorf("task payload missing recordingId: %w", asynq.SkipRetry)
	}

	if err := w.recordings.Process(ctx, payload.RecordingID); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			log.Printf("Recording %s not found, dropping task", payload.RecordingID)
		}
		return fmt.Errorf("recording %s: %v: %w", payload.RecordingID, err, asynq.SkipRetry)
	}
	return nil
}
