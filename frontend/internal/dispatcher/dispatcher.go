// Package dispatcher orchestrates one chat session: it submits commands, drives
// the poller, filters replies through the correlator and pushes resolved
// artifacts to the preview.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/itchan-dev/mediadesk/frontend/internal/correlator"
	"github.com/itchan-dev/mediadesk/frontend/internal/metrics"
	"github.com/itchan-dev/mediadesk/frontend/internal/poller"
	"github.com/itchan-dev/mediadesk/shared/api"
	"github.com/itchan-dev/mediadesk/shared/domain"
	internal_errors "github.com/itchan-dev/mediadesk/shared/errors"
	"github.com/itchan-dev/mediadesk/shared/logger"
)

type Backend interface {
	SendChat(ctx context.Context, req api.ChatRequest) (*api.ChatReply, error)
	PendingResponse(ctx context.Context) (*domain.ChatMessage, error)
}

type ArtifactResolver interface {
	ResolveLatest(ctx context.Context, text, hint string) (domain.ResolvedArtifact, error)
}

// CatalogSnapshot gives the last known catalog without doing I/O.
type CatalogSnapshot interface {
	Snapshot() domain.Catalog
}

type (
	TranscriptListener   func([]domain.ChatMessage)
	ArtifactListener     func(domain.ResolvedArtifact)
	NotificationListener func(domain.Notification)
)

type Dispatcher struct {
	backend    Backend
	resolver   ArtifactResolver
	catalog    CatalogSnapshot
	correlator *correlator.Correlator
	poller     *poller.Poller
	now        func() time.Time
	maxWait    time.Duration

	pollInterval time.Duration
	pollBackoff  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	closed     bool
	transcript []domain.ChatMessage
	preview    *domain.MediaItem
	pollHandle *poller.Handle

	// emitMu serializes listener calls and is held by Close, so nothing is
	// delivered once Close has returned.
	emitMu       sync.Mutex
	nextListener int
	onTranscript map[int]TranscriptListener
	onArtifact   map[int]ArtifactListener
	onNotify     map[int]NotificationListener
}

type Option func(*Dispatcher)

func WithPollIntervals(interval, backoff time.Duration) Option {
	return func(d *Dispatcher) {
		d.pollInterval = interval
		d.pollBackoff = backoff
	}
}

// WithMaxWait abandons a request that has had no reply for longer than d. Zero polls forever.
func WithMaxWait(d time.Duration) Option {
	return func(disp *Dispatcher) { disp.maxWait = d }
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func WithCorrelator(c *correlator.Correlator) Option {
	return func(d *Dispatcher) { d.correlator = c }
}

func New(backend Backend, resolver ArtifactResolver, catalog CatalogSnapshot, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		backend:      backend,
		resolver:     resolver,
		catalog:      catalog,
		now:          time.Now,
		onTranscript: make(map[int]TranscriptListener),
		onArtifact:   make(map[int]ArtifactListener),
		onNotify:     make(map[int]NotificationListener),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.correlator == nil {
		d.correlator = correlator.New(correlator.WithClock(d.now))
	}
	d.poller = poller.New(backend,
		poller.WithIntervals(d.pollInterval, d.pollBackoff),
		poller.WithErrorObserver(d.onPollError),
		poller.WithCycleObserver(metrics.ObservePoll),
	)
	d.ctx, d.cancel = context.WithCancel(context.Background())
	return d
}

// Send appends the command to the transcript and submits it in the background.
// Results arrive through the listeners.
func (d *Dispatcher) Send(text string, current domain.MediaContext) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.transcript = append(d.transcript, domain.ChatMessage{
		Role:      domain.RoleUser,
		Content:   text,
		Timestamp: d.now().UnixMilli(),
	})
	snapshot := d.transcriptLocked()
	d.mu.Unlock()
	d.emitTranscript(snapshot)

	req := d.buildRequest(text, current)
	req.RequestId = d.correlator.Submit()
	metrics.Commands.WithLabelValues(strconv.FormatBool(req.VideoContext != nil)).Inc()
	logger.Log.Info("command submitted", "component", "dispatcher",
		"request_id", req.RequestId,
		"video_context", req.VideoContext != nil,
		"audio_context", req.AudioContext != nil)

	d.mu.Lock()
	if !d.closed {
		d.pollHandle = d.poller.Start(d.ctx, d.awaiting, d.handleResponse)
	}
	d.mu.Unlock()

	d.goBackground(func() { d.submit(req) })
}

func (d *Dispatcher) buildRequest(text string, current domain.MediaContext) api.ChatRequest {
	req := api.ChatRequest{Message: text}
	if current.Video != nil && WantsVideoContext(text) {
		v := *current.Video
		req.VideoContext = &v
	}
	if mention, ok := audioReference(text); ok {
		if item, ok := FindAudio(d.catalog.Snapshot().Audio, mention); ok {
			req.AudioContext = &item
		}
	}
	if req.AudioContext == nil && current.Audio != nil && isAudioCommand(text) {
		a := *current.Audio
		req.AudioContext = &a
	}
	return req
}

func (d *Dispatcher) submit(req api.ChatRequest) {
	reply, err := d.backend.SendChat(d.ctx, req)
	if err != nil {
		if d.ctx.Err() != nil {
			return
		}
		if errors.Is(err, internal_errors.ErrMalformedResponse) {
			// the command was accepted; the reply still arrives by polling
			logger.Log.Warn("ignoring malformed send reply", "component", "dispatcher", "request_id", req.RequestId, "error", err)
			return
		}
		logger.Log.Warn("command send failed", "component", "dispatcher", "request_id", req.RequestId, "error", err)
		d.notify(domain.Notification{
			Message:  "Could not reach the assistant. Your message was not processed, please try again.",
			Severity: domain.SeverityError,
		})
		d.correlator.Abandon(req.RequestId)
		return
	}
	if reply != nil && reply.Assistant != nil {
		d.handleResponse(*reply.Assistant)
	}
}

// awaiting is the poller's continue predicate. It also enforces the optional max wait.
func (d *Dispatcher) awaiting() bool {
	id, ok := d.correlator.CurrentRequestID()
	if !ok {
		return false
	}
	pending, ok := d.correlator.Pending(id)
	if !ok || pending.Status != domain.Awaiting {
		return false
	}
	if d.maxWait > 0 && d.now().UnixMilli()-pending.SubmittedAt > d.maxWait.Milliseconds() {
		d.correlator.Abandon(id)
		logger.Log.Info("request timed out", "component", "dispatcher", "request_id", id, "max_wait", d.maxWait)
		d.notify(domain.Notification{
			Message:  fmt.Sprintf("No reply after %s, stopped waiting.", d.maxWait),
			Severity: domain.SeverityError,
		})
		return false
	}
	return true
}

func (d *Dispatcher) handleResponse(msg domain.ChatMessage) {
	if msg.Role == "" {
		msg.Role = domain.RoleAssistant
	}
	acc := d.correlator.Accept(msg)
	if !acc.IsNew {
		return
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	appended := d.appendLocked(msg)
	snapshot := d.transcriptLocked()
	d.mu.Unlock()
	if appended {
		d.emitTranscript(snapshot)
	}

	if !acc.IsCurrent {
		return
	}
	id := acc.RequestId
	d.goBackground(func() { d.resolve(id, msg.Content) })
}

// appendLocked keeps at most one assistant turn per request id. Replies without an
// id are deduplicated by identical role and content.
func (d *Dispatcher) appendLocked(msg domain.ChatMessage) bool {
	for _, m := range d.transcript {
		if msg.RequestId != "" && m.Role == domain.RoleAssistant && m.RequestId == msg.RequestId {
			return false
		}
		if msg.RequestId == "" && m.Role == msg.Role && m.Content == msg.Content {
			return false
		}
	}
	d.transcript = append(d.transcript, msg)
	return true
}

func (d *Dispatcher) resolve(id domain.RequestId, content string) {
	res, err := d.resolver.ResolveLatest(d.ctx, content, "")
	if err != nil || res.MatchedItem == nil {
		return
	}
	if current, _ := d.correlator.CurrentRequestID(); current != id {
		logger.Log.Debug("dropping artifact for a superseded request", "component", "dispatcher", "request_id", id)
		return
	}

	item := *res.MatchedItem
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.preview = &item
	d.mu.Unlock()

	logger.Log.Info("preview updated", "component", "dispatcher", "path", item.Path, "tier", res.MatchTier)
	d.emitArtifact(res)
}

func (d *Dispatcher) onPollError(err error, consecutive int) {
	// one notification per outage
	if consecutive != 1 {
		return
	}
	d.notify(domain.Notification{
		Message:  "Lost contact with the assistant, still retrying.",
		Severity: domain.SeverityError,
	})
}

// SelectPreview makes item the active preview, as when the user picks a file by hand.
func (d *Dispatcher) SelectPreview(item domain.MediaItem) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		d.preview = &item
	}
}

// CurrentPreviewItem returns the active preview item, if any.
func (d *Dispatcher) CurrentPreviewItem() (domain.MediaItem, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.preview == nil {
		return domain.MediaItem{}, false
	}
	return *d.preview, true
}

func (d *Dispatcher) Transcript() []domain.ChatMessage {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transcriptLocked()
}

func (d *Dispatcher) transcriptLocked() []domain.ChatMessage {
	out := make([]domain.ChatMessage, len(d.transcript))
	copy(out, d.transcript)
	return out
}

func (d *Dispatcher) CurrentRequestID() (domain.RequestId, bool) {
	return d.correlator.CurrentRequestID()
}

// CurrentRequestStatus reports the state of the most recent command.
func (d *Dispatcher) CurrentRequestStatus() (domain.RequestId, domain.RequestStatus, bool) {
	id, ok := d.correlator.CurrentRequestID()
	if !ok {
		return "", "", false
	}
	status, ok := d.correlator.Status(id)
	return id, status, ok
}

// Close stops polling, abandons the in-flight request and waits for background
// work to finish. No listener is called after Close returns. It must not be
// called from inside a listener.
func (d *Dispatcher) Close() {
	d.emitMu.Lock()
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.emitMu.Unlock()
		return
	}
	d.closed = true
	handle := d.pollHandle
	d.mu.Unlock()
	d.emitMu.Unlock()

	d.cancel()
	if handle != nil {
		handle.Cancel()
	}
	d.correlator.AbandonCurrent()
	d.wg.Wait()
}

func (d *Dispatcher) goBackground(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		fn()
	}()
}

// === Listeners ===

func (d *Dispatcher) OnTranscriptChange(l TranscriptListener) (unsubscribe func()) {
	d.emitMu.Lock()
	defer d.emitMu.Unlock()
	id := d.nextListener
	d.nextListener++
	d.onTranscript[id] = l
	return func() {
		d.emitMu.Lock()
		defer d.emitMu.Unlock()
		delete(d.onTranscript, id)
	}
}

func (d *Dispatcher) OnArtifactResolved(l ArtifactListener) (unsubscribe func()) {
	d.emitMu.Lock()
	defer d.emitMu.Unlock()
	id := d.nextListener
	d.nextListener++
	d.onArtifact[id] = l
	return func() {
		d.emitMu.Lock()
		defer d.emitMu.Unlock()
		delete(d.onArtifact, id)
	}
}

func (d *Dispatcher) OnNotification(l NotificationListener) (unsubscribe func()) {
	d.emitMu.Lock()
	defer d.emitMu.Unlock()
	id := d.nextListener
	d.nextListener++
	d.onNotify[id] = l
	return func() {
		d.emitMu.Lock()
		defer d.emitMu.Unlock()
		delete(d.onNotify, id)
	}
}

func (d *Dispatcher) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *Dispatcher) emitTranscript(messages []domain.ChatMessage) {
	d.emitMu.Lock()
	defer d.emitMu.Unlock()
	if d.isClosed() {
		return
	}
	for _, l := range d.onTranscript {
		l(messages)
	}
}

func (d *Dispatcher) emitArtifact(res domain.ResolvedArtifact) {
	d.emitMu.Lock()
	defer d.emitMu.Unlock()
	if d.isClosed() {
		return
	}
	for _, l := range d.onArtifact {
		l(res)
	}
}

func (d *Dispatcher) notify(n domain.Notification) {
	d.emitMu.Lock()
	defer d.emitMu.Unlock()
	if d.isClosed() {
		return
	}
	for _, l := range d.onNotify {
		l(n)
	}
}
