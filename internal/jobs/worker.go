package jobs

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"lo/internal/logging"
	"lo/internal/metrics"
)

// Queue is the job storage the worker drives. *Repo implements it.
type Queue interface {
	Claim(ctx context.Context, workerID string) (*Job, error)
	MarkDone(ctx context.Context, id uint64) error
	MarkFailed(ctx context.Context, id uint64, errMsg string) error
	RetryLater(ctx context.Context, id uint64, attempts int, runAt time.Time, errMsg string) error
	Reschedule(ctx context.Context, id uint64, runAt time.Time) error
}

// Handler runs one job. Wrap the error with ErrPermanent to skip retries.
type Handler func(ctx context.Context, job *Job) error

var ErrPermanent = errors.New("permanent job failure")

type registration struct {
	handle Handler
	every  time.Duration // > 0 for recurring jobs
}

type Worker struct {
	ID    string
	Queue Queue
	Tick  time.Duration
	Now   func() time.Time

	handlers map[string]registration
}

func NewWorker(id string, q Queue) *Worker {
	return &Worker{
		ID:       id,
		Queue:    q,
		Tick:     800 * time.Millisecond,
		Now:      time.Now,
		handlers: map[string]registration{},
	}
}

// Handle registers a one-shot job type.
func (w *Worker) Handle(typ string, h Handler) {
	w.handlers[typ] = registration{handle: h}
}

// Recurring registers a job type that is re-armed every interval after each
// run, whatever its outcome.
func (w *Worker) Recurring(typ string, every time.Duration, h Handler) {
	w.handlers[typ] = registration{handle: h, every: every}
}

// Serve claims and runs due jobs until ctx is done.
func (w *Worker) Serve(ctx context.Context) error {
	ticker := time.NewTicker(w.Tick)
	defer ticker.Stop()

	logging.Info().Str("worker", w.ID).Msg("job worker started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// drain everything that is due before waiting for the next tick
			for {
				ran, err := w.RunOnce(ctx)
				if err != nil {
					logging.Error().Err(err).Str("worker", w.ID).Msg("claim job")
				}
				if !ran || ctx.Err() != nil {
					break
				}
			}
		}
	}
}

// RunOnce claims and handles at most one job. ran is false when nothing was due.
func (w *Worker) RunOnce(ctx context.Context) (ran bool, err error) {
	job, err := w.Queue.Claim(ctx, w.ID)
	if err != nil || job == nil {
		return false, err
	}
	w.handle(ctx, job)
	return true, nil
}

func (w *Worker) handle(ctx context.Context, job *Job) {
	log := logging.Logger().With().Uint64("job_id", job.ID).Str("job_type", job.Type).Logger()

	reg, ok := w.handlers[job.Type]
	if !ok {
		metrics.JobsProcessed.WithLabelValues(job.Type, "unknown").Inc()
		logUpdate(log, w.Queue.MarkFailed(ctx, job.ID, "unknown job type"))
		return
	}

	err := w.safeRun(ctx, reg.handle, job)
	if err == nil {
		metrics.JobsProcessed.WithLabelValues(job.Type, "ok").Inc()
		if reg.every > 0 {
			logUpdate(log, w.Queue.Reschedule(ctx, job.ID, w.Now().Add(reg.every)))
			return
		}
		logUpdate(log, w.Queue.MarkDone(ctx, job.ID))
		return
	}

	metrics.JobsProcessed.WithLabelValues(job.Type, "error").Inc()
	log.Warn().Err(err).Int("attempts", job.Attempts+1).Msg("job failed")

	attempts := job.Attempts + 1
	if !errors.Is(err, ErrPermanent) && attempts < job.MaxAttempts {
		logUpdate(log, w.Queue.RetryLater(ctx, job.ID, attempts, w.Now().Add(Backoff(attempts)), err.Error()))
		return
	}
	if reg.every > 0 {
		logUpdate(log, w.Queue.Reschedule(ctx, job.ID, w.Now().Add(reg.every)))
		return
	}
	logUpdate(log, w.Queue.MarkFailed(ctx, job.ID, err.Error()))
}

func (w *Worker) safeRun(ctx context.Context, h Handler, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrPermanent, r)
		}
	}()
	return h(ctx, job)
}

func logUpdate(log zerolog.Logger, err error) {
	if err != nil {
		log.Error().Err(err).Msg("update job state")
	}
}

// Backoff is the delay before retry number attempts: 2^attempts seconds,
// capped at ten minutes.
func Backoff(attempts int) time.Duration {
	sec := math.Min(math.Pow(2, float64(attempts)), 600)
	return time.Duration(sec) * time.Second
}
