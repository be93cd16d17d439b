// Package poller implements the job-status polling loop: a finite-state,
// cancellable, single-flight fetch cycle that converts terminal server
// states into observer events.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/voxalab/voxa-go/internal/domain"
)

// State is the poller lifecycle state. Every state except Polling and
// Idle is absorbing: once reached, no further fetches occur for that
// job identifier.
type State int

const (
	StateIdle State = iota
	StatePolling
	StateCompleted
	StateFailed
	StateErrored
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateErrored:
		return "errored"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

const (
	defaultProcessingMessage = "processing…"
	failedFallbackMessage    = "processing failed"
	fetchErrorMessage        = "status check failed"
	unknownStatusMessage     = "unrecognized job status"

	// defaultUnknownStatusWindow bounds how long consecutive
	// unrecognized statuses keep the loop alive before it gives up.
	defaultUnknownStatusWindow = 5 * time.Minute
)

// Poller polls one job identifier at a time. Callbacks are delivered
// under the poller's lock, so once Stop returns no callback can fire;
// observers must not call back into the poller from inside a callback.
type Poller struct {
	fetcher       domain.StatusFetcher
	sched         *Scheduler
	log           *zap.SugaredLogger
	unknownWindow time.Duration

	mu     sync.Mutex
	obs    domain.PollObserver
	state  State
	jobID  string
	gen    uint64
	cancel context.CancelFunc
}

// Option configures a Poller.
type Option func(*Poller)

// WithBaseInterval overrides the base poll interval.
func WithBaseInterval(d time.Duration) Option {
	return func(p *Poller) { p.sched = NewScheduler(d) }
}

// WithLogger attaches a logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(p *Poller) { p.log = log }
}

// WithUnknownStatusWindow bounds the consecutive-unrecognized-status
// backoff before the loop errors out.
func WithUnknownStatusWindow(d time.Duration) Option {
	return func(p *Poller) { p.unknownWindow = d }
}

// New creates a Poller in the Idle state.
func New(fetcher domain.StatusFetcher, obs domain.PollObserver, opts ...Option) *Poller {
	p := &Poller{
		fetcher:       fetcher,
		obs:           obs,
		sched:         NewScheduler(DefaultBaseInterval),
		log:           zap.NewNop().Sugar(),
		unknownWindow: defaultUnknownStatusWindow,
		state:         StateIdle,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the current lifecycle state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// JobID returns the identifier of the current polling session.
func (p *Poller) JobID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.jobID
}

// SetHidden records host visibility; the cadence change applies to
// subsequent ticks.
func (p *Poller) SetHidden(hidden bool) {
	p.sched.SetHidden(hidden)
}

// Start begins polling the given identifier. Any previous session is
// stopped first; there is no window in which two identifiers schedule
// fetches concurrently. An empty identifier only stops.
func (p *Poller) Start(jobID string) {
	p.Stop()
	if jobID == "" {
		return
	}

	p.mu.Lock()
	p.gen++
	gen := p.gen
	p.state = StatePolling
	p.jobID = jobID
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.mu.Unlock()

	p.log.Debugw("polling started", "job_id", jobID)
	go p.run(ctx, gen, jobID)
}

// Stop cancels the current session. After Stop returns, no queued tick
// or in-flight response can invoke a callback: the in-flight result is
// discarded by the generation check performed after every fetch.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.state == StatePolling {
		p.state = StateStopped
	}
	p.gen++
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Close stops polling unconditionally. Hosts call it on teardown.
func (p *Poller) Close() {
	p.Stop()
}

// run is the only goroutine that fetches, which makes every session
// single-flight: a tick cannot fire while a fetch is still in progress,
// pending ticks coalesce into at most one.
func (p *Poller) run(ctx context.Context, gen uint64, jobID string) {
	unknown := backoff.NewExponentialBackOff()
	unknown.InitialInterval = p.sched.Base()
	unknown.MaxElapsedTime = p.unknownWindow
	unknown.Reset()

	timer := time.NewTimer(0) // immediate first fetch
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		wait, ok := p.fetchOnce(ctx, gen, jobID, unknown)
		if !ok {
			return
		}
		timer.Reset(wait)
	}
}

// fetchOnce performs one status fetch and dispatches events. It returns
// the wait before the next tick and false when the session is over.
func (p *Poller) fetchOnce(ctx context.Context, gen uint64, jobID string, unknown backoff.BackOff) (time.Duration, bool) {
	job, err := p.fetcher.GetJob(ctx, jobID)

	if err != nil {
		if ctx.Err() != nil {
			return 0, false
		}
		p.log.Debugw("status fetch failed", "job_id", jobID, "error", err)
		p.finish(gen, StateErrored, func(obs domain.PollObserver) {
			obs.OnError(fetchErrorMessage)
		})
		return 0, false
	}

	if !p.emit(gen, func(obs domain.PollObserver) {
		obs.OnProgress(job.Progress, progressMessage(job))
	}) {
		return 0, false
	}

	switch {
	case job.Status == domain.StatusCompleted:
		p.finish(gen, StateCompleted, func(obs domain.PollObserver) {
			obs.OnComplete(job)
		})
		return 0, false

	case job.Status == domain.StatusFailed:
		message := job.Message
		if message == "" {
			message = failedFallbackMessage
		}
		p.finish(gen, StateFailed, func(obs domain.PollObserver) {
			obs.OnFailed(message)
		})
		return 0, false

	case !job.Status.Known():
		next := unknown.NextBackOff()
		if next == backoff.Stop {
			p.log.Warnw("giving up on unrecognized status",
				"job_id", jobID, "status", job.Status)
			p.finish(gen, StateErrored, func(obs domain.PollObserver) {
				obs.OnError(unknownStatusMessage)
			})
			return 0, false
		}
		return maxDuration(p.sched.Interval(), next), true

	default:
		unknown.Reset()
		return p.sched.Interval(), true
	}
}

// emit runs a callback if the session is still live. Holding the lock
// across the callback is what makes "no callback after Stop returns"
// hold even with a response already in hand.
func (p *Poller) emit(gen uint64, fn func(domain.PollObserver)) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gen != gen || p.state != StatePolling {
		return false
	}
	fn(p.obs)
	return true
}

// finish transitions to an absorbing state and fires its callback, at
// most once per session.
func (p *Poller) finish(gen uint64, to State, fn func(domain.PollObserver)) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gen != gen || p.state != StatePolling {
		return false
	}
	p.state = to
	fn(p.obs)
	return true
}

// progressMessage substitutes the default processing message; other
// non-terminal statuses without a message report an empty string.
func progressMessage(job *domain.Job) string {
	if job.Message != "" {
		return job.Message
	}
	if job.Status == domain.StatusProcessing {
		return defaultProcessingMessage
	}
	return ""
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
