// Package correlator matches asynchronous chat replies back to the command that caused them.
package correlator

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/itchan-dev/mediadesk/shared/domain"
	"github.com/itchan-dev/mediadesk/shared/logger"
)

// Acceptance is the verdict on one incoming reply.
// IsNew means it belongs in the transcript; IsCurrent means it answers the in-flight command.
// RequestId is the request the reply resolved, set only with IsCurrent.
type Acceptance struct {
	IsNew     bool
	IsCurrent bool
	RequestId domain.RequestId
}

// Correlator is an in-memory state machine scoped to one chat session.
// At most one request is current (awaiting) at any time.
type Correlator struct {
	mu       sync.Mutex
	now      func() time.Time
	intn     func(n int) int
	requests map[domain.RequestId]*domain.PendingRequest
	current  domain.RequestId
	seen     map[domain.RequestId]struct{}
	lastSeen domain.EpochMillis // ordering key for replies without a request id
}

type Option func(*Correlator)

func WithClock(now func() time.Time) Option {
	return func(c *Correlator) { c.now = now }
}

// WithRand replaces the source of the random ID suffix.
func WithRand(intn func(n int) int) Option {
	return func(c *Correlator) { c.intn = intn }
}

func New(opts ...Option) *Correlator {
	c := &Correlator{
		now:      time.Now,
		intn:     rand.IntN,
		requests: make(map[domain.RequestId]*domain.PendingRequest),
		seen:     make(map[domain.RequestId]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit stamps a new request and abandons the previous one if it was still awaiting.
// IDs are "{epochMillis}-{0..999}"; a collision under rapid double submit is possible and accepted.
func (c *Correlator) Submit() domain.RequestId {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now().UnixMilli()
	if prev, ok := c.requests[c.current]; ok && prev.Status == domain.Awaiting {
		prev.Status = domain.Abandoned
		logger.Log.Debug("request superseded", "component", "correlator", "request_id", prev.RequestId)
	}

	id := fmt.Sprintf("%d-%d", now, c.intn(1000))
	c.requests[id] = &domain.PendingRequest{
		RequestId:   id,
		SubmittedAt: now,
		Status:      domain.Awaiting,
	}
	c.current = id
	if now > c.lastSeen {
		c.lastSeen = now
	}
	return id
}

// Accept classifies a reply. It is idempotent per request id: a second call
// with the same id reports IsNew=false.
func (c *Correlator) Accept(resp domain.ChatMessage) Acceptance {
	c.mu.Lock()
	defer c.mu.Unlock()

	if resp.RequestId == "" {
		// legacy reply: only strictly newer timestamps count
		if resp.Timestamp <= c.lastSeen {
			return Acceptance{}
		}
		c.lastSeen = resp.Timestamp
		return c.resolveCurrentLocked()
	}

	if _, ok := c.seen[resp.RequestId]; ok {
		logger.Log.Debug("ignoring duplicate response", "component", "correlator", "request_id", resp.RequestId)
		return Acceptance{}
	}
	c.seen[resp.RequestId] = struct{}{}
	if resp.Timestamp > c.lastSeen {
		c.lastSeen = resp.Timestamp
	}

	if resp.RequestId != c.current {
		return Acceptance{IsNew: true}
	}
	return c.resolveCurrentLocked()
}

func (c *Correlator) resolveCurrentLocked() Acceptance {
	pending, ok := c.requests[c.current]
	if !ok || pending.Status != domain.Awaiting {
		return Acceptance{IsNew: true}
	}
	pending.Status = domain.Resolved
	return Acceptance{IsNew: true, IsCurrent: true, RequestId: pending.RequestId}
}

// CurrentRequestID returns the in-flight request id, or false when nothing is awaiting.
func (c *Correlator) CurrentRequestID() (domain.RequestId, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == "" {
		return "", false
	}
	return c.current, true
}

// Status reports the lifecycle state of a submitted request.
func (c *Correlator) Status(id domain.RequestId) (domain.RequestStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pending, ok := c.requests[id]
	if !ok {
		return "", false
	}
	return pending.Status, true
}

// Pending returns a copy of the bookkeeping for id.
func (c *Correlator) Pending(id domain.RequestId) (domain.PendingRequest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pending, ok := c.requests[id]
	if !ok {
		return domain.PendingRequest{}, false
	}
	return *pending, true
}

// Abandon gives up on id (send failure, timeout, teardown). A later reply for it
// still reaches the transcript but is never current.
func (c *Correlator) Abandon(id domain.RequestId) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pending, ok := c.requests[id]; ok && pending.Status == domain.Awaiting {
		pending.Status = domain.Abandoned
	}
	if c.current == id {
		c.current = ""
	}
}

// AbandonCurrent abandons whatever request is in flight.
func (c *Correlator) AbandonCurrent() {
	c.mu.Lock()
	id := c.current
	c.mu.Unlock()
	if id != "" {
		c.Abandon(id)
	}
}
