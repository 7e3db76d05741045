package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/dgknshn20/yapigraniterp/internal/inventory"
	jobmetrics "github.com/dgknshn20/yapigraniterp/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReservationSweep releases expired soft stock reservations.
	TaskReservationSweep = "reservations:sweep"
)

// ReservationSweepPayload parameterizes a sweep run. An empty payload sweeps
// relative to the current time.
type ReservationSweepPayload struct {
	Now time.Time `json:"now,omitempty"`
}

// NewReservationSweepTask constructs an Asynq task.
func NewReservationSweepTask(payload ReservationSweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReservationSweep, data), nil
}

// ReservationSweepJob runs the expiry sweeper as a background task.
type ReservationSweepJob struct {
	sweeper *inventory.Sweeper
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewReservationSweepJob wires the sweeper into the worker.
func NewReservationSweepJob(sweeper *inventory.Sweeper, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReservationSweepJob {
	return &ReservationSweepJob{sweeper: sweeper, logger: logger, metrics: metrics}
}

// Handle processes TaskReservationSweep tasks.
func (j *ReservationSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload ReservationSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	now := payload.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	tracker := j.metrics.Track("reservation_sweep")
	released, err := j.sweeper.SweepExpired(ctx, now)
	if err != nil {
		j.logger.Error("reservation sweep", slog.Any("error", err))
		return tracker.End(err)
	}
	j.metrics.AddReleased(released)
	j.logger.Info("reservation sweep complete", slog.Int("released", released))
	return tracker.End(nil)
}
