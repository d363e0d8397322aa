package followup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/tresses/internal/metrics"
	"github.com/kalambet/tresses/internal/storage"
)

// JobType is the jobs-table type for durable follow-ups.
const JobType = "followup_deliver"

// JobStore abstracts the job queue operations.
type JobStore interface {
	EnqueueJob(job storage.Job) error
	CancelJob(id string) (bool, error)
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
}

// JobScheduler persists follow-ups in the jobs table. A Worker delivers them
// once their run_after time has passed.
type JobScheduler struct {
	store JobStore
	clock Clock
}

func NewJobScheduler(store JobStore, clock Clock) *JobScheduler {
	if clock == nil {
		clock = realClock{}
	}
	return &JobScheduler{store: store, clock: clock}
}

func (s *JobScheduler) Schedule(_ context.Context, msg Message, delay time.Duration) (string, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("encoding follow-up: %w", err)
	}
	job := storage.Job{
		ID:          uuid.New().String(),
		Type:        JobType,
		PayloadJSON: string(payload),
		RunAfter:    s.clock.Now().Add(max(delay, 0)),
	}
	if err := s.store.EnqueueJob(job); err != nil {
		return "", fmt.Errorf("enqueueing follow-up: %w", err)
	}
	metrics.FollowupsScheduled.Inc()
	return job.ID, nil
}

func (s *JobScheduler) Cancel(id string) bool {
	ok, err := s.store.CancelJob(id)
	if err != nil {
		slog.Warn("followup: cancel failed", "job_id", id, "error", err)
		return false
	}
	return ok
}

// Worker processes followup_deliver jobs from the SQLite job queue.
type Worker struct {
	store     JobStore
	deliverer Deliverer
	poll      time.Duration
	logger    *slog.Logger
}

// NewWorker creates a Worker with the given dependencies.
// If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, d Deliverer, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:     store,
		deliverer: d,
		poll:      pollInterval,
		logger:    slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("followup worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and delivers a single follow-up.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{JobType})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	err = w.processJob(ctx, job)
	metrics.RecordFollowupDelivery(err)
	if err != nil {
		w.logger.Warn("follow-up delivery failed", "job_id", job.ID, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	var msg Message
	if err := json.Unmarshal([]byte(job.PayloadJSON), &msg); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}
	if msg.ConversationID == "" {
		return fmt.Errorf("payload has no conversation id")
	}
	if err := w.deliverer.Deliver(ctx, msg); err != nil {
		return fmt.Errorf("delivering to %s: %w", msg.ConversationID, err)
	}
	return nil
}
