// Package session keeps one chat session per browser tab. Each session owns its
// own dispatcher, so there is no process-wide correlation state.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/itchan-dev/mediadesk/frontend/internal/dispatcher"
	"github.com/itchan-dev/mediadesk/frontend/internal/metrics"
	"github.com/itchan-dev/mediadesk/shared/domain"
	"github.com/itchan-dev/mediadesk/shared/logger"
)

const CookieName = "mediadesk_session"

// Chat is the part of the dispatcher the UI server drives.
type Chat interface {
	Send(text string, current domain.MediaContext)
	Transcript() []domain.ChatMessage
	CurrentPreviewItem() (domain.MediaItem, bool)
	SelectPreview(item domain.MediaItem)
	OnTranscriptChange(l dispatcher.TranscriptListener) func()
	OnArtifactResolved(l dispatcher.ArtifactListener) func()
	OnNotification(l dispatcher.NotificationListener) func()
	Close()
}

type Factory func() Chat

type Session struct {
	ID   string
	Chat Chat

	mu       sync.Mutex
	lastSeen time.Time
	streams  int
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// Attach marks a live event stream; attached sessions are never evicted.
func (s *Session) Attach() (detach func()) {
	s.mu.Lock()
	s.streams++
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.streams--
		s.lastSeen = time.Now()
		s.mu.Unlock()
	}
}

func (s *Session) idleSince(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streams == 0 && s.lastSeen.Before(cutoff)
}

type Registry struct {
	factory  Factory
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(factory Factory) *Registry {
	return &Registry{
		factory:  factory,
		sessions: make(map[string]*Session),
	}
}

// Get returns a live session and refreshes its idle timer.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if ok {
		// under r.mu so eviction never races a lookup
		s.touch()
	}
	return s, ok
}

// GetOrCreate returns the session for id, creating a fresh one under a new id when id is unknown.
func (r *Registry) GetOrCreate(id string) (s *Session, created bool) {
	if s, ok := r.Get(id); ok {
		return s, false
	}
	s = &Session{ID: uuid.NewString(), Chat: r.factory(), lastSeen: time.Now()}

	r.mu.Lock()
	r.sessions[s.ID] = s
	count := len(r.sessions)
	r.mu.Unlock()

	metrics.ActiveSessions.Inc()
	logger.Log.Info("session created", "component", "session", "session_id", s.ID, "sessions", count)
	return s, true
}

// Remove tears the session down. It reports false for unknown ids.
func (r *Registry) Remove(id string) bool {
	return r.remove(id, nil)
}

// remove deletes id when keep is nil or reports true for it, checked under r.mu.
func (r *Registry) remove(id string, keep func(*Session) bool) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok && keep != nil && !keep(s) {
		ok = false
	}
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	s.Chat.Close()
	metrics.ActiveSessions.Dec()
	logger.Log.Info("session closed", "component", "session", "session_id", id)
	return true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// EvictIdle closes sessions with no stream attached and no request since cutoff.
func (r *Registry) EvictIdle(cutoff time.Time) int {
	evicted := 0
	for _, id := range r.idleIDs(cutoff) {
		if r.removeIdle(id, cutoff) {
			evicted++
		}
	}
	return evicted
}

func (r *Registry) idleIDs(cutoff time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var idle []string
	for id, s := range r.sessions {
		if s.idleSince(cutoff) {
			idle = append(idle, id)
		}
	}
	return idle
}

// removeIdle rechecks idleness, a stream may have attached since the scan.
func (r *Registry) removeIdle(id string, cutoff time.Time) bool {
	return r.remove(id, func(s *Session) bool { return s.idleSince(cutoff) })
}

// CloseAll tears every session down, used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	for _, id := range ids {
		r.Remove(id)
	}
}

// StartJanitor evicts sessions idle for longer than ttl, checking every interval.
func (r *Registry) StartJanitor(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	logger.Log.Info("started session janitor",
		"component", "session",
		"interval", interval,
		"ttl", ttl)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := r.EvictIdle(time.Now().Add(-ttl)); n > 0 {
					logger.Log.Info("evicted idle sessions", "component", "session", "evicted", n)
				}
			case <-ctx.Done():
				r.CloseAll()
				logger.Log.Info("session janitor shutting down", "component", "session")
				return
			}
		}
	}()
}
