package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/itchan-dev/mediadesk/shared/api"
	"github.com/itchan-dev/mediadesk/shared/domain"
	"github.com/itchan-dev/mediadesk/shared/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must be less than pongWait
	maxMessageSize = 4 * 1024
	eventBuffer    = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// Events streams transcript, artifact and notification events for the caller's
// session. The first frame is always the current transcript.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	s, created := h.sessions.GetOrCreate(sessionID(r))
	header := http.Header{}
	if created {
		header.Add("Set-Cookie", h.sessionCookie(s.ID).String())
	}

	conn, err := upgrader.Upgrade(w, r, header)
	if err != nil {
		logger.Log.Debug("websocket upgrade failed", "component", "events", "error", err)
		return
	}
	detach := s.Attach()
	defer detach()

	out := make(chan api.Event, eventBuffer)
	push := func(ev api.Event) {
		select {
		case out <- ev:
		default:
			logger.Log.Warn("event stream is full, dropping event", "component", "events", "session_id", s.ID, "type", ev.Type)
		}
	}

	unsubscribe := []func(){
		s.Chat.OnTranscriptChange(func(messages []domain.ChatMessage) {
			push(api.Event{Type: api.EventTranscript, Transcript: h.entries(messages)})
		}),
		s.Chat.OnArtifactResolved(func(res domain.ResolvedArtifact) {
			push(api.Event{Type: api.EventArtifact, Artifact: &res})
		}),
		s.Chat.OnNotification(func(n domain.Notification) {
			push(api.Event{Type: api.EventNotification, Notification: &n})
		}),
	}
	defer func() {
		for _, u := range unsubscribe {
			u()
		}
	}()

	push(api.Event{Type: api.EventTranscript, Transcript: h.entries(s.Chat.Transcript())})

	done := make(chan struct{})
	go readPump(conn, done)
	writePump(conn, out, done, h.stop)
}

// readPump only services control frames; clients have nothing to say on this socket.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Log.Debug("websocket closed", "component", "events", "error", err)
			}
			return
		}
	}
}

func writePump(conn *websocket.Conn, out <-chan api.Event, done, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case ev := <-out:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-stop:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		}
	}
}
