package jobs

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ehis6k/transcriber/internal/domain"
)

// Runner executes the work of one job and reports progress through the
// supplied Reporter. Implementations must return promptly once ctx is done.
type Runner interface {
	Kind() domain.JobKind
	Run(ctx context.Context, progress *Reporter) (*domain.JobResult, error)
}

// eventBuffer bounds the per-job progress channel. Slow consumers drop
// intermediate events; the terminal event is always retried last.
const eventBuffer = 64

// Controller owns the lifecycle of a single job: state transitions, progress
// fan-out, cancellation, and terminal result capture.
type Controller struct {
	mu              sync.Mutex
	job             domain.Job
	percent         float64
	events          chan domain.ProgressEvent
	done            chan struct{}
	cancelFn        context.CancelFunc
	cancelRequested bool
	started         bool
	finished        bool
	result          *domain.JobResult
	failure         *Failure
	log             *logrus.Entry
}

// NewController creates a controller in the pending state.
func NewController(kind domain.JobKind, log *logrus.Logger) *Controller {
	if log == nil {
		log = logrus.New()
	}
	id := uuid.NewString()

	return &Controller{
		job:    domain.Job{ID: id, Kind: kind, State: domain.JobStatePending},
		events: make(chan domain.ProgressEvent, eventBuffer),
		done:   make(chan struct{}),
		log:    log.WithField("job", id),
	}
}

// Job returns a snapshot of the job identity and current state.
func (c *Controller) Job() domain.Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.job
}

// Done is closed once the job reaches a terminal state.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Result returns the terminal result and failure. Result is non-nil only
// when the job completed; failure is non-nil only when it failed.
func (c *Controller) Result() (*domain.JobResult, *Failure) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result, c.failure
}

// Start launches the runner in a goroutine and returns the progress stream.
// A controller runs exactly once.
func (c *Controller) Start(ctx context.Context, runner Runner) (<-chan domain.ProgressEvent, error) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil, ErrJobAlreadyRunning
	}
	c.started = true

	runCtx, cancel := context.WithCancel(ctx)
	c.cancelFn = cancel
	if c.cancelRequested {
		cancel()
	}
	c.mu.Unlock()

	go c.run(runCtx, runner)

	return c.events, nil
}

// Cancel requests cancellation. It is safe to call at any time, including
// before Start and after the job has finished.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancelRequested || c.job.State.IsTerminal() {
		return
	}
	c.cancelRequested = true
	c.log.Info("cancellation requested")
	if c.cancelFn != nil {
		c.cancelFn()
	}
}

func (c *Controller) run(ctx context.Context, runner Runner) {
	c.transition(domain.JobStateInitializing, 0, "Job started")

	result, err := runner.Run(ctx, &Reporter{c: c})

	c.finish(ctx, result, err)
}

// finish settles the terminal state. Cancellation wins over results and
// errors produced by a runner racing the cancel signal.
func (c *Controller) finish(ctx context.Context, result *domain.JobResult, err error) {
	c.mu.Lock()

	var terminal domain.ProgressEvent
	switch {
	case c.cancelRequested || ctx.Err() != nil:
		c.job.State = domain.JobStateCancelled
		c.percent = 0
		c.result = nil
		c.log.Info("job cancelled")
		terminal = c.eventLocked("Job cancelled", 0, 0)
	case err != nil:
		c.job.State = domain.JobStateFailed
		c.failure = classify(err)
		c.log.WithError(err).WithField("kind", c.failure.Kind).Error("job failed")
		terminal = c.eventLocked(c.failure.Message, 0, 0)
	default:
		c.job.State = domain.JobStateCompleted
		c.percent = 100
		if result != nil {
			result.JobID = c.job.ID
			result.Kind = c.job.Kind
		}
		c.result = result
		c.log.Info("job completed")
		terminal = c.eventLocked("Job completed", 0, 0)
	}
	c.finished = true
	c.mu.Unlock()

	select {
	case c.events <- terminal:
	default:
	}
	close(c.events)
	close(c.done)
}

// transition moves the job to a new state if the edge is valid and emits a
// progress event. Invalid or post-terminal transitions are ignored.
func (c *Controller) transition(state domain.JobState, percent float64, message string) {
	c.mu.Lock()

	if c.finished || c.cancelRequested || !isValidTransition(c.job.State, state) {
		c.mu.Unlock()
		return
	}
	c.job.State = state
	ev := c.eventLocked(message, 0, 0)
	c.clampPercentLocked(percent)
	ev.Percent = c.percent
	c.mu.Unlock()

	c.emit(ev)
}

// progress emits a within-state progress update.
func (c *Controller) progress(percent float64, message string, currentChunk, totalChunks int) {
	c.mu.Lock()

	if c.finished || c.cancelRequested || c.job.State.IsTerminal() {
		c.mu.Unlock()
		return
	}
	c.clampPercentLocked(percent)
	ev := c.eventLocked(message, currentChunk, totalChunks)
	c.mu.Unlock()

	c.emit(ev)
}

// clampPercentLocked keeps the reported percentage monotone within [0, 100].
func (c *Controller) clampPercentLocked(percent float64) {
	if percent > 100 {
		percent = 100
	}
	if percent > c.percent {
		c.percent = percent
	}
}

func (c *Controller) eventLocked(message string, currentChunk, totalChunks int) domain.ProgressEvent {
	return domain.ProgressEvent{
		JobID:        c.job.ID,
		Kind:         c.job.Kind,
		State:        c.job.State,
		Percent:      c.percent,
		Message:      message,
		CurrentChunk: currentChunk,
		TotalChunks:  totalChunks,
	}
}

// emit delivers without blocking: a full buffer drops the event rather than
// stalling the runner.
func (c *Controller) emit(ev domain.ProgressEvent) {
	select {
	case c.events <- ev:
	default:
	}
}

// isValidTransition encodes the forward edges of the job state machine.
// The loading_model stage is skippable when the model is already cached.
func isValidTransition(from, to domain.JobState) bool {
	switch from {
	case domain.JobStatePending:
		return to == domain.JobStateInitializing
	case domain.JobStateInitializing:
		return to == domain.JobStateLoadingModel || to == domain.JobStateProcessing
	case domain.JobStateLoadingModel:
		return to == domain.JobStateProcessing
	case domain.JobStateProcessing:
		return to == domain.JobStateCompleted
	default:
		return false
	}
}

// Reporter is the runner-facing progress surface of a controller.
type Reporter struct {
	c *Controller
}

// Stage moves the job into a new state with an initial percentage.
func (r *Reporter) Stage(state domain.JobState, percent float64, message string) {
	r.c.transition(state, percent, message)
}

// Progress reports advancement within the current state. Pass zero for the
// chunk counters when they do not apply.
func (r *Reporter) Progress(percent float64, message string, currentChunk, totalChunks int) {
	r.c.progress(percent, message, currentChunk, totalChunks)
}

// Cancelled reports whether cancellation has been requested, letting runners
// stop between units of work.
func (r *Reporter) Cancelled() bool {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	return r.c.cancelRequested
}
