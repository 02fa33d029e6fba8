package handler

import (
	"net/http"

	"github.com/itchan-dev/mediadesk/backend/internal/service"
)

type Handler struct {
	media          service.MediaService
	chat           service.ChatService
	maxUploadBytes int64
}

func New(media service.MediaService, chat service.ChatService, maxUploadBytes int64) *Handler {
	return &Handler{media: media, chat: chat, maxUploadBytes: maxUploadBytes}
}

// Health is a liveness probe endpoint.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
