// Package poller runs the cooperative "is my reply ready yet" loop against the chat backend.
package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/itchan-dev/mediadesk/shared/config"
	"github.com/itchan-dev/mediadesk/shared/domain"
	internal_errors "github.com/itchan-dev/mediadesk/shared/errors"
	"github.com/itchan-dev/mediadesk/shared/logger"
)

// Fetcher is the single backend call the loop makes per cycle.
// A nil message with a nil error means nothing is ready yet.
type Fetcher interface {
	PendingResponse(ctx context.Context) (*domain.ChatMessage, error)
}

type State string

const (
	StateIdle    State = "idle"
	StatePolling State = "polling"
	StateStopped State = "stopped"
)

// Poller owns at most one active loop. Starting a new loop supersedes the
// previous one: its in-flight fetch still completes and is delivered, then it
// exits. A superseded loop that is waiting for its next tick exits at once.
type Poller struct {
	fetcher  Fetcher
	interval time.Duration
	backoff  time.Duration
	onError  func(err error, consecutive int)
	onCycle  func(ok bool)

	mu    sync.Mutex
	gen   uint64
	state State
	run   *run
}

type Option func(*Poller)

// WithIntervals overrides the base and post-error delays.
func WithIntervals(interval, backoff time.Duration) Option {
	return func(p *Poller) {
		if interval > 0 {
			p.interval = interval
		}
		if backoff > 0 {
			p.backoff = backoff
		}
	}
}

// WithErrorObserver receives every failed fetch along with the length of the current failure streak.
func WithErrorObserver(fn func(err error, consecutive int)) Option {
	return func(p *Poller) { p.onError = fn }
}

// WithCycleObserver is told about every completed fetch.
func WithCycleObserver(fn func(ok bool)) Option {
	return func(p *Poller) { p.onCycle = fn }
}

func New(fetcher Fetcher, opts ...Option) *Poller {
	p := &Poller{
		fetcher:  fetcher,
		interval: config.DefaultPollInterval,
		backoff:  config.DefaultPollBackoff,
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// run is one loop's lifetime. mu is held for the duration of every callback so
// that once Cancel returns nothing else is delivered.
type run struct {
	gen        uint64
	mu         sync.Mutex
	cancelled  bool
	superseded atomic.Bool
	wake       chan struct{} // closed when superseded
	stop       context.CancelFunc
	done       chan struct{}
}

func (r *run) deliver(fn func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelled {
		return false
	}
	fn()
	return true
}

// Handle cancels the loop it was returned for.
type Handle struct {
	p *Poller
	r *run
}

// Cancel stops the loop. A tick already scheduled never fires and no callback
// runs after Cancel returns. It must not be called from inside a callback.
func (h *Handle) Cancel() {
	if h == nil || h.r == nil {
		return
	}
	h.r.mu.Lock()
	h.r.cancelled = true
	h.r.mu.Unlock()
	h.r.stop()

	h.p.mu.Lock()
	if h.p.gen == h.r.gen {
		h.p.state = StateStopped
	}
	h.p.mu.Unlock()
}

// Done is closed when the loop goroutine has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.r.done
}

// Start launches a loop. Before every fetch it checks awaiting; once that reports
// false the loop returns to idle. onResponse receives every non-empty reply and
// is expected to filter stale ones itself.
func (p *Poller) Start(ctx context.Context, awaiting func() bool, onResponse func(domain.ChatMessage)) *Handle {
	runCtx, stop := context.WithCancel(ctx)
	r := &run{stop: stop, wake: make(chan struct{}), done: make(chan struct{})}

	p.mu.Lock()
	p.gen++
	r.gen = p.gen
	if p.run != nil {
		p.run.superseded.Store(true)
		close(p.run.wake)
	}
	p.run = r
	p.state = StatePolling
	p.mu.Unlock()

	go p.loop(runCtx, r, awaiting, onResponse)
	return &Handle{p: p, r: r}
}

// State reports the state of the most recent loop.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Poller) finish(r *run, state State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gen == r.gen && p.state == StatePolling {
		p.state = state
	}
}

func (p *Poller) loop(ctx context.Context, r *run, awaiting func() bool, onResponse func(domain.ChatMessage)) {
	defer close(r.done)
	defer r.stop()

	consecutive := 0
	for {
		if ctx.Err() != nil {
			p.finish(r, StateStopped)
			return
		}
		if r.superseded.Load() {
			return
		}
		if !awaiting() {
			p.finish(r, StateIdle)
			return
		}

		delay := p.interval
		msg, err := p.fetcher.PendingResponse(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			p.finish(r, StateStopped)
			return
		case errors.Is(err, internal_errors.ErrMalformedResponse):
			consecutive = 0
			logger.Log.Warn("ignoring malformed response", "component", "poller", "error", err)
			p.observeCycle(r, true)
		case err != nil:
			consecutive++
			delay = p.backoff
			logger.Log.Warn("poll failed", "component", "poller", "error", err, "consecutive", consecutive)
			p.observeCycle(r, false)
			if p.onError != nil {
				n := consecutive
				r.deliver(func() { p.onError(err, n) })
			}
		default:
			consecutive = 0
			p.observeCycle(r, true)
			if msg != nil {
				m := *msg
				r.deliver(func() { onResponse(m) })
			}
		}

		if r.superseded.Load() {
			return
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			p.finish(r, StateStopped)
			return
		case <-r.wake:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (p *Poller) observeCycle(r *run, ok bool) {
	if p.onCycle != nil {
		r.deliver(func() { p.onCycle(ok) })
	}
}
