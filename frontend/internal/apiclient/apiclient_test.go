package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/itchan-dev/mediadesk/shared/api"
	"github.com/itchan-dev/mediadesk/shared/domain"
	internal_errors "github.com/itchan-dev/mediadesk/shared/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *APIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL)
}

func TestMediaAndRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("decodes catalog", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/media", r.URL.Path)
			w.Write([]byte(`{"videos":[{"id":"1700000000000","name":"clip.mp4","path":"/api/videos/1700000000000-clip.mp4","type":"videos","size":10,"lastModified":1700000000000}],"photos":[],"audio":null}`))
		})

		catalog, err := client.Media(ctx)
		require.NoError(t, err)
		require.Len(t, catalog.Videos, 1)
		assert.Equal(t, "clip.mp4", catalog.Videos[0].Name)
		assert.Equal(t, domain.EpochMillis(1700000000000), catalog.Videos[0].LastModified)
		assert.NotNil(t, catalog.Audio)
	})

	t.Run("server error is transport error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		_, err := client.Media(ctx)
		var te *internal_errors.TransportError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, http.StatusBadGateway, te.StatusCode)

		assert.Equal(t, domain.EmptyCatalog(), client.Refresh(ctx))
	})

	t.Run("refresh on unreachable backend returns empty catalog", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		client := New(srv.URL)
		srv.Close()

		var catalog domain.Catalog
		assert.NotPanics(t, func() { catalog = client.Refresh(ctx) })
		assert.Equal(t, domain.Catalog{Videos: []domain.MediaItem{}, Photos: []domain.MediaItem{}, Audio: []domain.MediaItem{}}, catalog)
	})
}

func TestUpload(t *testing.T) {
	tests := []struct {
		name string
		temp bool
		path string
	}{
		{"permanent", false, "/api/upload"},
		{"temporary", true, "/api/upload/temp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tt.path, r.URL.Path)
				file, header, err := r.FormFile("file")
				if !assert.NoError(t, err) {
					return
				}
				defer file.Close()
				data, _ := io.ReadAll(file)
				assert.Equal(t, "song.mp3", header.Filename)
				assert.Equal(t, "ID3", string(data))

				json.NewEncoder(w).Encode(domain.MediaItem{Name: header.Filename, Path: "/api/audio/1-song.mp3", Type: domain.Audio, IsTemp: tt.temp})
			})

			item, err := client.Upload(context.Background(), "song.mp3", strings.NewReader("ID3"), tt.temp)
			require.NoError(t, err)
			assert.Equal(t, domain.Audio, item.Type)
			assert.Equal(t, tt.temp, item.IsTemp)
		})
	}
}

func TestTempCleanup(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		switch r.URL.EscapedPath() {
		case "/api/temp":
			w.Write([]byte(`{"success":true,"deletedCount":3,"message":"Deleted 3 temporary files"}`))
		case "/api/temp/1-output.mp4":
			w.Write([]byte(`{"success":true}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"File not found"}`))
		}
	})
	ctx := context.Background()

	count, err := client.ClearTemp(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	assert.NoError(t, client.DeleteTemp(ctx, "1-output.mp4"))

	err = client.DeleteTemp(ctx, "missing.mp4")
	var te *internal_errors.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusNotFound, te.StatusCode)
}

func TestSendChat(t *testing.T) {
	ctx := context.Background()

	t.Run("immediate reply", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			var req api.ChatRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "trim it", req.Message)
			assert.Equal(t, "1700000000000-7", req.RequestId)
			assert.NotNil(t, req.VideoContext)

			json.NewEncoder(w).Encode(api.ChatReply{
				User:      &domain.ChatMessage{Role: domain.RoleUser, Content: req.Message},
				Assistant: &domain.ChatMessage{Content: "Done", RequestId: req.RequestId, Timestamp: 5},
			})
		})

		reply, err := client.SendChat(ctx, api.ChatRequest{
			Message:      "trim it",
			RequestId:    "1700000000000-7",
			VideoContext: &domain.MediaItem{Name: "clip.mp4"},
		})
		require.NoError(t, err)
		require.NotNil(t, reply.Assistant)
		assert.Equal(t, domain.RoleAssistant, reply.Assistant.Role)
		assert.Equal(t, "1700000000000-7", reply.Assistant.RequestId)
	})

	t.Run("async reply with empty body", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		})

		reply, err := client.SendChat(ctx, api.ChatRequest{Message: "trim"})
		require.NoError(t, err)
		assert.Nil(t, reply.Assistant)
	})

	t.Run("garbled body is malformed", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"assistant": <oops`))
		})

		reply, err := client.SendChat(ctx, api.ChatRequest{Message: "trim"})
		assert.ErrorIs(t, err, internal_errors.ErrMalformedResponse)
		assert.False(t, internal_errors.IsTransport(err))
		assert.Nil(t, reply)
	})

	t.Run("backend failure", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		_, err := client.SendChat(ctx, api.ChatRequest{Message: "trim"})
		assert.True(t, internal_errors.IsTransport(err))
	})
}

func TestPendingResponse(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		want      *domain.ChatMessage
		malformed bool
	}{
		{
			name: "assistant turn",
			body: `{"role":"assistant","content":"Saved as out.mp4","request_id":"1-2","timestamp":99}`,
			want: &domain.ChatMessage{Role: domain.RoleAssistant, Content: "Saved as out.mp4", RequestId: "1-2", Timestamp: 99},
		},
		{
			name: "legacy turn without request id",
			body: `{"role":"assistant","content":"ok","timestamp":100}`,
			want: &domain.ChatMessage{Role: domain.RoleAssistant, Content: "ok", Timestamp: 100},
		},
		{name: "waiting", body: `{"status":"waiting"}`},
		{name: "missing content", body: `{"role":"assistant"}`, malformed: true},
		{name: "empty object", body: `{}`, malformed: true},
		{name: "not json", body: `<html>`, malformed: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			})

			msg, err := client.PendingResponse(context.Background())
			if tt.malformed {
				assert.True(t, errors.Is(err, internal_errors.ErrMalformedResponse))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, msg)
		})
	}
}
