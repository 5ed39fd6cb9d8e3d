package worker

import (
	"context"
	"fmt"
	"log"

	"github.com/hibiken/asynq"
)

// SweepWorker fails recordings left in processing by a lost task
type SweepWorker struct {
	recordings RecordingProcessor
}

func NewSweepWorker(recordings RecordingProcessor) *SweepWorker {
	return &SweepWorker{recordings: recordings}
}

func (w *SweepWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	n, err := w.recordings.SweepStuck(ctx)
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}
	if n > 0 {
		log.Printf("Sweep marked %d stuck recording(s) as failed", n)
	}
	return nil
}
