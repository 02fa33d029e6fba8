package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/itchan-dev/mediadesk/frontend/internal/dispatcher"
	"github.com/itchan-dev/mediadesk/frontend/internal/markdown"
	"github.com/itchan-dev/mediadesk/frontend/internal/session"
	"github.com/itchan-dev/mediadesk/shared/api"
	"github.com/itchan-dev/mediadesk/shared/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

type sentCommand struct {
	text    string
	current domain.MediaContext
}

type MockChat struct {
	mu           sync.Mutex
	sent         []sentCommand
	transcript   []domain.ChatMessage
	preview      *domain.MediaItem
	closed       bool
	onTranscript dispatcher.TranscriptListener
	onArtifact   dispatcher.ArtifactListener
	onNotify     dispatcher.NotificationListener
}

func (m *MockChat) Send(text string, current domain.MediaContext) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentCommand{text, current})
	m.transcript = append(m.transcript, domain.ChatMessage{Role: domain.RoleUser, Content: text})
}

func (m *MockChat) Transcript() []domain.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ChatMessage(nil), m.transcript...)
}

func (m *MockChat) CurrentPreviewItem() (domain.MediaItem, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.preview == nil {
		return domain.MediaItem{}, false
	}
	return *m.preview, true
}

func (m *MockChat) SelectPreview(item domain.MediaItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.preview = &item
}

func (m *MockChat) OnTranscriptChange(l dispatcher.TranscriptListener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTranscript = l
	return func() {}
}

func (m *MockChat) OnArtifactResolved(l dispatcher.ArtifactListener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onArtifact = l
	return func() {}
}

func (m *MockChat) OnNotification(l dispatcher.NotificationListener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onNotify = l
	return func() {}
}

func (m *MockChat) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

type MockCatalog struct {
	mu         sync.Mutex
	catalog    domain.Catalog
	next       *domain.Catalog
	UpdateFunc func(ctx context.Context) error
}

func (m *MockCatalog) Snapshot() domain.Catalog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.catalog
}

func (m *MockCatalog) Update(ctx context.Context) error {
	if m.UpdateFunc != nil {
		if err := m.UpdateFunc(ctx); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.next != nil {
		m.catalog = *m.next
	}
	return nil
}

// --- Helpers ---

var clip = domain.MediaItem{Id: "1", Name: "clip.mp4", Path: "/api/videos/1-clip.mp4", Type: domain.Videos}

type testEnv struct {
	handler *Handler
	router  *chi.Mux
	catalog *MockCatalog
	chats   []*MockChat
}

func setupTestHandler() *testEnv {
	env := &testEnv{catalog: &MockCatalog{catalog: domain.EmptyCatalog()}}
	registry := session.NewRegistry(func() session.Chat {
		c := &MockChat{}
		env.chats = append(env.chats, c)
		return c
	})
	h := New(registry, env.catalog, markdown.New(), false)

	r := chi.NewRouter()
	r.Get("/health", h.Health)
	r.Route("/api/session", func(r chi.Router) {
		r.Post("/commands", h.SendCommand)
		r.Get("/transcript", h.Transcript)
		r.Get("/preview", h.GetPreview)
		r.Put("/preview", h.PutPreview)
		r.Get("/catalog", h.Catalog)
		r.Get("/events", h.Events)
		r.Delete("/", h.DeleteSession)
	})
	env.handler = h
	env.router = r
	return env
}

func (env *testEnv) do(method, target, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, reader)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	return rr
}

func sessionCookieFrom(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

// --- Tests ---

func TestHealth(t *testing.T) {
	env := setupTestHandler()
	rr := env.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
}

func TestSendCommand(t *testing.T) {
	t.Run("creates a session and forwards the command", func(t *testing.T) {
		env := setupTestHandler()
		rr := env.do(http.MethodPost, "/api/session/commands", `{"text": "trim it"}`, nil)

		assert.Equal(t, http.StatusAccepted, rr.Code)
		cookie := sessionCookieFrom(t, rr)
		assert.True(t, cookie.HttpOnly)
		require.Len(t, env.chats, 1)
		require.Len(t, env.chats[0].sent, 1)
		assert.Equal(t, "trim it", env.chats[0].sent[0].text)
		assert.Nil(t, env.chats[0].sent[0].current.Video)
	})

	t.Run("preview becomes the command context", func(t *testing.T) {
		env := setupTestHandler()
		rr := env.do(http.MethodGet, "/api/session/transcript", "", nil)
		cookie := sessionCookieFrom(t, rr)
		env.chats[0].SelectPreview(clip)

		rr = env.do(http.MethodPost, "/api/session/commands", `{"text": "blur"}`, cookie)
		assert.Equal(t, http.StatusAccepted, rr.Code)
		require.Len(t, env.chats, 1, "cookie reuses the session")
		require.NotNil(t, env.chats[0].sent[0].current.Video)
		assert.Equal(t, clip.Path, env.chats[0].sent[0].current.Video.Path)
	})

	t.Run("invalid body", func(t *testing.T) {
		env := setupTestHandler()
		rr := env.do(http.MethodPost, "/api/session/commands", `{invalid json`, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("missing text", func(t *testing.T) {
		env := setupTestHandler()
		rr := env.do(http.MethodPost, "/api/session/commands", `{"text": ""}`, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Empty(t, env.chats)
	})
}

func TestTranscript(t *testing.T) {
	env := setupTestHandler()
	rr := env.do(http.MethodPost, "/api/session/commands", `{"text": "**hi**"}`, nil)
	cookie := sessionCookieFrom(t, rr)

	rr = env.do(http.MethodGet, "/api/session/transcript", "", cookie)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp api.TranscriptResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "**hi**", resp.Messages[0].Content)
	assert.Equal(t, domain.RoleUser, resp.Messages[0].Role)
	assert.NotContains(t, resp.Messages[0].HTML, "<strong>", "user turns are not rendered as markdown")
}

func TestPreview(t *testing.T) {
	t.Run("no preview yet", func(t *testing.T) {
		env := setupTestHandler()
		rr := env.do(http.MethodGet, "/api/session/preview", "", nil)
		assert.Equal(t, http.StatusNoContent, rr.Code)
	})

	t.Run("select from the snapshot", func(t *testing.T) {
		env := setupTestHandler()
		env.catalog.catalog.Videos = []domain.MediaItem{clip}

		rr := env.do(http.MethodPut, "/api/session/preview", `{"path": "/api/videos/1-clip.mp4"}`, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		cookie := sessionCookieFrom(t, rr)

		rr = env.do(http.MethodGet, "/api/session/preview", "", cookie)
		require.Equal(t, http.StatusOK, rr.Code)
		var got domain.MediaItem
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.Equal(t, clip, got)
	})

	t.Run("select a file newer than the snapshot", func(t *testing.T) {
		env := setupTestHandler()
		fresh := domain.EmptyCatalog()
		fresh.Videos = []domain.MediaItem{clip}
		env.catalog.next = &fresh

		rr := env.do(http.MethodPut, "/api/session/preview", `{"path": "/api/videos/1-clip.mp4"}`, nil)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("unknown path", func(t *testing.T) {
		env := setupTestHandler()
		rr := env.do(http.MethodPut, "/api/session/preview", `{"path": "/api/videos/nope.mp4"}`, nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestCatalog(t *testing.T) {
	t.Run("snapshot", func(t *testing.T) {
		env := setupTestHandler()
		env.catalog.catalog.Videos = []domain.MediaItem{clip}

		rr := env.do(http.MethodGet, "/api/session/catalog", "", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		var got domain.Catalog
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.Equal(t, []domain.MediaItem{clip}, got.Videos)
		assert.Empty(t, got.Audio)
	})

	t.Run("refresh failure", func(t *testing.T) {
		env := setupTestHandler()
		env.catalog.UpdateFunc = func(ctx context.Context) error { return assert.AnError }

		rr := env.do(http.MethodGet, "/api/session/catalog?refresh=1", "", nil)
		assert.Equal(t, http.StatusBadGateway, rr.Code)
	})
}

func TestDeleteSession(t *testing.T) {
	env := setupTestHandler()
	rr := env.do(http.MethodGet, "/api/session/transcript", "", nil)
	cookie := sessionCookieFrom(t, rr)

	rr = env.do(http.MethodDelete, "/api/session/", "", cookie)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.True(t, env.chats[0].closed)
	cleared := sessionCookieFrom(t, rr)
	assert.Less(t, cleared.MaxAge, 0)

	// the old cookie now starts a fresh session
	env.do(http.MethodGet, "/api/session/transcript", "", cookie)
	assert.Len(t, env.chats, 2)
}

func TestEvents(t *testing.T) {
	env := setupTestHandler()
	server := httptest.NewServer(env.router)
	defer server.Close()

	rr := env.do(http.MethodPost, "/api/session/commands", `{"text": "merge audio"}`, nil)
	cookie := sessionCookieFrom(t, rr)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/session/events"
	header := http.Header{}
	header.Add("Cookie", (&http.Cookie{Name: cookie.Name, Value: cookie.Value}).String())
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()
	defer resp.Body.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first api.Event
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, api.EventTranscript, first.Type)
	require.Len(t, first.Transcript, 1)
	assert.Equal(t, "merge audio", first.Transcript[0].Content)

	chat := env.chats[0]
	require.Eventually(t, func() bool {
		chat.mu.Lock()
		defer chat.mu.Unlock()
		return chat.onArtifact != nil && chat.onNotify != nil
	}, time.Second, 5*time.Millisecond)

	chat.mu.Lock()
	onArtifact, onNotify := chat.onArtifact, chat.onNotify
	chat.mu.Unlock()

	item := clip
	onArtifact(domain.ResolvedArtifact{MatchedItem: &item, MatchTier: domain.TierExplicitPath})
	onNotify(domain.Notification{Message: "retrying", Severity: domain.SeverityError})

	var ev api.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, api.EventArtifact, ev.Type)
	require.NotNil(t, ev.Artifact)
	assert.Equal(t, domain.TierExplicitPath, ev.Artifact.MatchTier)
	assert.Equal(t, clip.Path, ev.Artifact.MatchedItem.Path)

	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, api.EventNotification, ev.Type)
	assert.Equal(t, "retrying", ev.Notification.Message)
}

func TestEventsShutdown(t *testing.T) {
	env := setupTestHandler()
	server := httptest.NewServer(env.router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/session/events"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	defer resp.Body.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first api.Event
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, api.EventTranscript, first.Type)
	assert.Empty(t, first.Transcript)

	env.handler.Shutdown()
	env.handler.Shutdown()

	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "unexpected error: %v", err)
}
