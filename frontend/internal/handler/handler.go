package handler

import (
	"context"
	"net/http"
	"sync"

	"github.com/itchan-dev/mediadesk/frontend/internal/markdown"
	"github.com/itchan-dev/mediadesk/frontend/internal/session"
	"github.com/itchan-dev/mediadesk/shared/api"
	"github.com/itchan-dev/mediadesk/shared/domain"
)

// CatalogReader is the shared catalog snapshot kept fresh in the background.
type CatalogReader interface {
	Snapshot() domain.Catalog
	Update(ctx context.Context) error
}

type Handler struct {
	sessions      *session.Registry
	catalog       CatalogReader
	text          *markdown.TextProcessor
	secureCookies bool

	stop     chan struct{}
	stopOnce sync.Once
}

func New(sessions *session.Registry, catalog CatalogReader, text *markdown.TextProcessor, secureCookies bool) *Handler {
	return &Handler{
		sessions:      sessions,
		catalog:       catalog,
		text:          text,
		secureCookies: secureCookies,
		stop:          make(chan struct{}),
	}
}

// Shutdown closes every open event stream. Hijacked websocket connections are
// not tracked by http.Server, so register this with RegisterOnShutdown.
func (h *Handler) Shutdown() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// Health is a liveness probe endpoint.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// session resolves the caller's session from its cookie, starting a new one when needed.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) *session.Session {
	s, created := h.sessions.GetOrCreate(sessionID(r))
	if created {
		http.SetCookie(w, h.sessionCookie(s.ID))
	}
	return s
}

func (h *Handler) sessionCookie(id string) *http.Cookie {
	return &http.Cookie{
		Name:     session.CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

func sessionID(r *http.Request) string {
	c, err := r.Cookie(session.CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func (h *Handler) entries(messages []domain.ChatMessage) []api.TranscriptEntry {
	out := make([]api.TranscriptEntry, len(messages))
	for i, m := range messages {
		out[i] = api.TranscriptEntry{ChatMessage: m, HTML: h.text.ProcessMessage(m)}
	}
	return out
}
