package worker

import (
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/scribehub/api/internal/service"
)

// NewServeMux routes task types to their workers
func NewServeMux(transcribe *TranscribeWorker, sweep *SweepWorker) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeTranscribe, transcribe.ProcessTask)
	mux.HandleFunc(service.TaskTypeSweep, sweep.ProcessTask)
	return mux
}

// NewServer creates the asynq worker server for the pipeline queues
func NewServer(redisOpt asynq.RedisConnOpt, concurrency int, logLevel string) *asynq.Server {
	if concurrency <= 0 {
		concurrency = 10
	}
	return asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			service.QueueTranscribe:  9,
			service.QueueMaintenance: 1,
		},
		LogLevel: LogLevel(logLevel),
	})
}

// NewScheduler registers the periodic stuck-recording sweep. Unique keeps
// replicas running their own scheduler from queueing overlapping sweeps.
func NewScheduler(redisOpt asynq.RedisConnOpt, spec, logLevel string) (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		LogLevel: LogLevel(logLevel),
	})
	if _, err := scheduler.Register(spec, service.NewSweepTask(),
		asynq.Queue(service.QueueMaintenance),
		asynq.MaxRetry(0),
		asynq.Unique(time.Minute),
	); err != nil {
		return nil, err
	}
	return scheduler, nil
}

// LogLevel maps the server log level onto asynq's
func LogLevel(level string) asynq.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return asynq.DebugLevel
	case "warn":
		return asynq.WarnLevel
	case "error":
		return asynq.ErrorLevel
	}
	return asynq.InfoLevel
}
