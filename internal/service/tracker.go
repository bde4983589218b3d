package service

import (
	"context"
	"errors"
	"time"

	"github.com/panodent/pano-gateway/internal/domain"
	"github.com/panodent/pano-gateway/internal/logger"
	"github.com/panodent/pano-gateway/internal/runpod"
)

// RemoteClient abstracts the remote inference endpoint.
type RemoteClient interface {
	Submit(ctx context.Context, input runpod.SubmitInput) (*runpod.StatusResponse, error)
	Status(ctx context.Context, jobID string) (*runpod.StatusResponse, error)
	Cancel(ctx context.Context, jobID string) error
}

// TrackerConfig holds polling and backoff parameters.
type TrackerConfig struct {
	// PollInterval is the pause between successful polls in AwaitTerminal.
	PollInterval time.Duration
	// PollTimeout bounds each individual poll call so one slow poll
	// cannot silently eat the whole deadline budget.
	PollTimeout time.Duration
	// BackoffBase and BackoffCap bound the exponential backoff applied
	// after transient poll failures.
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

// Tracker owns the one-job state machine: submission, polling, and the
// bounded wait. Each job's state is owned exclusively by the request
// that created it; the tracker holds no shared mutable job table.
type Tracker struct {
	remote    RemoteClient
	assembler *Assembler
	logger    *logger.Logger
	cfg       TrackerConfig

	// seams for deterministic tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewTracker creates a new job tracker.
// Parameters:
//   - remote: remote inference client.
//   - assembler: result assembler invoked on the SUCCEEDED transition.
//   - log: logger instance.
//   - cfg: polling and backoff parameters.
// Returns:
//   - *Tracker: initialized tracker.
func NewTracker(remote RemoteClient, assembler *Assembler, log *logger.Logger, cfg TrackerConfig) *Tracker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 30 * time.Second
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 2 * time.Second
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = 10 * time.Second
	}
	return &Tracker{
		remote:    remote,
		assembler: assembler,
		logger:    log,
		cfg:       cfg,
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

// sleepCtx pauses for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Submit submits a new analysis job.
//
// Submission is never retried automatically: a transport error leaves the
// remote side effect ambiguous, and a blind retry could create a duplicate
// job. Callers may resubmit explicitly.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - input: immutable job input.
// Returns:
//   - *domain.Job: new job with remote-assigned id and status QUEUED.
//   - error: *domain.SubmissionError if the remote rejected or was unreachable.
func (t *Tracker) Submit(ctx context.Context, input domain.JobInput) (*domain.Job, error) {
	resp, err := t.remote.Submit(ctx, runpod.SubmitInput{
		ImageURL: input.ImageLocator,
		Debug:    input.DebugRequested,
	})
	if err != nil {
		return nil, &domain.SubmissionError{Err: err}
	}

	now := t.now().UTC()
	job := &domain.Job{
		ID:          resp.ID,
		Status:      domain.JobStatusQueued,
		Input:       input,
		SubmittedAt: now,
	}

	logger.CtxInfo(ctx, "Job submitted: id=%s, debug=%v", job.ID, input.DebugRequested)
	return job, nil
}

// Poll queries the remote state once and returns the advanced job.
//
// Polling a job in an authoritative terminal state is a no-op returning
// the stored record unchanged, so repeated polls of a finished job yield
// byte-identical results. A TIMED_OUT job is re-queried: the remote may
// have finished after this side stopped waiting, and an authoritative
// outcome overturns the timeout. While the remote is still working, the
// TIMED_OUT record is returned unchanged.
//
// Transport errors surface as *domain.TransientPollError and are never
// converted into a job failure. An unknown id surfaces as
// *domain.NotFoundError and is fatal for the job.
func (t *Tracker) Poll(ctx context.Context, job *domain.Job) (*domain.Job, error) {
	if job.Status.Authoritative() {
		return job.Clone(), nil
	}

	st, err := t.remote.Status(ctx, job.ID)
	if err != nil {
		var nf *domain.NotFoundError
		if errors.As(err, &nf) {
			return nil, err
		}
		return nil, &domain.TransientPollError{JobID: job.ID, Err: err}
	}

	next := job.Clone()
	now := t.now().UTC()

	switch st.Status {
	case runpod.StateInQueue:
		if next.Status == domain.JobStatusTimedOut {
			// still not done remotely; the local timeout stands untouched
			return next, nil
		}
		// QUEUED never overwrites RUNNING: observations are monotone
		next.LastPolledAt = &now
	case runpod.StateInProgress:
		if next.Status == domain.JobStatusTimedOut {
			return next, nil
		}
		next.LastPolledAt = &now
		next.Status = domain.JobStatusRunning
	case runpod.StateCompleted:
		next.LastPolledAt = &now
		next.Status = domain.JobStatusSucceeded
		next.Failure = nil
		next.TerminalAt = &now
		next.Result = t.assembler.Assemble(ctx, next.ID, next.Input, st.Output)
	case runpod.StateFailed:
		next.LastPolledAt = &now
		msg := st.Error
		if msg == "" {
			msg = "remote reported failure without a message"
		}
		next.Status = domain.JobStatusFailed
		next.TerminalAt = &now
		next.Result = nil
		next.Failure = &domain.Failure{
			Kind:    domain.FailureKindRemote,
			Message: msg,
		}
	case runpod.StateCancelled:
		next.LastPolledAt = &now
		next.Status = domain.JobStatusCancelled
		next.TerminalAt = &now
		next.Result = nil
		next.Failure = nil
	default:
		return nil, &domain.TransientPollError{
			JobID: job.ID,
			Err:   errors.New("unknown remote status: " + string(st.Status)),
		}
	}

	return next, nil
}

// AwaitTerminal polls until the job reaches a terminal state or maxWait
// elapses. On timeout it returns the job with status TIMED_OUT and
// failure kind DEADLINE_EXCEEDED without cancelling the remote job: the
// computation has already incurred cost and may still be retrieved later
// by polling the same id.
//
// Each poll is bounded by the configured PollTimeout; a poll that fails
// or times out counts as one failed attempt and is retried with bounded
// exponential backoff until the overall deadline.
// Parameters:
//   - ctx: caller context; cancellation aborts the wait, not the remote job.
//   - job: job to wait on.
//   - maxWait: overall wait bound.
// Returns:
//   - *domain.Job: terminal job record (possibly TIMED_OUT).
//   - error: *domain.NotFoundError if the remote lost the id, or ctx.Err().
func (t *Tracker) AwaitTerminal(ctx context.Context, job *domain.Job, maxWait time.Duration) (*domain.Job, error) {
	deadline := t.now().Add(maxWait)
	cur := job.Clone()
	backoff := t.cfg.BackoffBase

	for {
		if cur.Status.IsTerminal() {
			return cur, nil
		}

		remaining := deadline.Sub(t.now())
		if remaining <= 0 {
			return t.markTimedOut(ctx, cur, maxWait), nil
		}

		pollCtx, cancel := context.WithTimeout(ctx, t.cfg.PollTimeout)
		next, err := t.Poll(pollCtx, cur)
		cancel()

		if err != nil {
			var nf *domain.NotFoundError
			if errors.As(err, &nf) {
				return nil, err
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			wait := backoff
			if wait > remaining {
				wait = remaining
			}
			logger.CtxWarn(ctx, "Transient poll error for job %s, retrying in %s: %v", cur.ID, wait, err)
			if serr := t.sleep(ctx, wait); serr != nil {
				return nil, serr
			}
			backoff *= 2
			if backoff > t.cfg.BackoffCap {
				backoff = t.cfg.BackoffCap
			}
			continue
		}

		backoff = t.cfg.BackoffBase
		cur = next
		if cur.Status.IsTerminal() {
			return cur, nil
		}

		wait := t.cfg.PollInterval
		if rem := deadline.Sub(t.now()); rem < wait {
			wait = rem
		}
		if wait > 0 {
			if serr := t.sleep(ctx, wait); serr != nil {
				return nil, serr
			}
		}
	}
}

// markTimedOut returns a TIMED_OUT copy of the job. The remote job is
// deliberately left running.
func (t *Tracker) markTimedOut(ctx context.Context, job *domain.Job, maxWait time.Duration) *domain.Job {
	now := t.now().UTC()
	next := job.Clone()
	next.Status = domain.JobStatusTimedOut
	next.TerminalAt = &now
	next.Result = nil
	next.Failure = &domain.Failure{
		Kind:    domain.FailureKindDeadlineExceeded,
		Message: (&domain.DeadlineExceededError{JobID: job.ID, MaxWait: maxWait}).Error(),
	}
	logger.CtxWarn(ctx, "Job %s did not finish within %s, returning TIMED_OUT (remote job left running)", job.ID, maxWait)
	return next
}
