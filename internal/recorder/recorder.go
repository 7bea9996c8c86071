// Package recorder owns the append-only submission log. All writes flow
// through a single goroutine so concurrent requests never interleave appends.
package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

const defaultQueueSize = 256

// Recorder serializes submission appends through one writer goroutine.
type Recorder struct {
	repo  domain.Repository
	bus   domain.EventBus
	queue chan *domain.Submission

	// mu orders intake against shutdown: Record sends under the read lock,
	// and Stop flips stopping under the write lock before closing the queue,
	// so a send can never race the close.
	mu       sync.RWMutex
	stopping bool

	wg   sync.WaitGroup
	once sync.Once
}

// New creates a recorder. The bus is optional; without one the recorder
// only persists.
func New(repo domain.Repository, bus domain.EventBus, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Recorder{
		repo:  repo,
		bus:   bus,
		queue: make(chan *domain.Submission, queueSize),
	}
}

// Start launches the writer goroutine.
func (r *Recorder) Start() {
	r.wg.Add(1)
	go r.run()
	slog.Info("submission recorder started", "queue_size", cap(r.queue))
}

// Record enqueues a submission for the writer. It blocks while the queue is
// full and fails if the caller's context expires or the recorder has been
// stopped.
func (r *Recorder) Record(ctx context.Context, sub *domain.Submission) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.stopping {
		return fmt.Errorf("recorder is stopped")
	}

	select {
	case r.queue <- sub:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop closes intake, drains the queue, and waits for the writer to finish.
// The write lock waits out in-flight Record sends before the queue closes.
func (r *Recorder) Stop() {
	r.once.Do(func() {
		r.mu.Lock()
		r.stopping = true
		r.mu.Unlock()
		close(r.queue)
	})
	r.wg.Wait()
	slog.Info("submission recorder stopped")
}

// Pending returns the number of queued, unwritten submissions.
func (r *Recorder) Pending() int {
	return len(r.queue)
}

func (r *Recorder) run() {
	defer r.wg.Done()

	for sub := range r.queue {
		r.write(sub)
	}
}

func (r *Recorder) write(sub *domain.Submission) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := r.repo.SaveSubmission(ctx, sub); err != nil {
		slog.Error("failed to append submission",
			"submission_id", sub.ID,
			"error", err,
		)
		return
	}

	r.publish(ctx, sub)

	slog.Info("submission recorded",
		"submission_id", sub.ID,
		"decision", string(sub.Decision),
		"reason_code", string(sub.ReasonCode),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func (r *Recorder) publish(ctx context.Context, sub *domain.Submission) {
	if r.bus == nil {
		return
	}

	payload, err := json.Marshal(sub)
	if err != nil {
		slog.Error("failed to marshal submission event",
			"submission_id", sub.ID,
			"error", err,
		)
		return
	}

	if err := r.bus.Publish(ctx, domain.TopicSubmissionRecorded, payload); err != nil {
		slog.Error("failed to publish submission recorded event",
			"submission_id", sub.ID,
			"error", err,
		)
	}

	// Conditional outcomes need an agent to pick them up.
	if sub.Decision == domain.DecisionConditional {
		if err := r.bus.Publish(ctx, domain.TopicReviewRequested, payload); err != nil {
			slog.Error("failed to publish review requested event",
				"submission_id", sub.ID,
				"error", err,
			)
		}
	}
}
