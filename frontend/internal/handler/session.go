package handler

import (
	"net/http"

	"github.com/itchan-dev/mediadesk/shared/api"
	"github.com/itchan-dev/mediadesk/shared/domain"
	"github.com/itchan-dev/mediadesk/shared/errors"
	"github.com/itchan-dev/mediadesk/shared/logger"
	"github.com/itchan-dev/mediadesk/shared/utils"
)

// SendCommand hands the command to the session's dispatcher. The reply arrives
// later through the transcript and the event stream.
func (h *Handler) SendCommand(w http.ResponseWriter, r *http.Request) {
	var body api.SendCommandRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	s := h.session(w, r)
	var current domain.MediaContext
	if item, ok := s.Chat.CurrentPreviewItem(); ok {
		switch item.Type {
		case domain.Videos:
			current.Video = &item
		case domain.Audio:
			current.Audio = &item
		}
	}
	s.Chat.Send(body.Text, current)

	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) Transcript(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	utils.WriteJSON(w, http.StatusOK, api.TranscriptResponse{Messages: h.entries(s.Chat.Transcript())})
}

// GetPreview returns the active preview item or 204 when there is none.
func (h *Handler) GetPreview(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	item, ok := s.Chat.CurrentPreviewItem()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	utils.WriteJSON(w, http.StatusOK, item)
}

// PutPreview selects a catalog item by its server path.
func (h *Handler) PutPreview(w http.ResponseWriter, r *http.Request) {
	var body api.SelectPreviewRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	item, ok := h.catalog.Snapshot().FindByPath(body.Path)
	if !ok {
		// the file may be newer than the background snapshot
		if err := h.catalog.Update(r.Context()); err != nil {
			logger.Log.Warn("catalog update failed", "component", "catalog", "error", err)
		}
		item, ok = h.catalog.Snapshot().FindByPath(body.Path)
	}
	if !ok {
		utils.WriteErrorAndStatusCode(w, &errors.ErrorWithStatusCode{Message: "Media not found", StatusCode: http.StatusNotFound})
		return
	}

	s := h.session(w, r)
	s.Chat.SelectPreview(item)
	utils.WriteJSON(w, http.StatusOK, item)
}

// Catalog returns the shared snapshot; ?refresh=1 re-fetches it first.
func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") != "" {
		if err := h.catalog.Update(r.Context()); err != nil {
			utils.WriteErrorAndStatusCode(w, &errors.ErrorWithStatusCode{Message: "Media server unavailable", StatusCode: http.StatusBadGateway})
			return
		}
	}
	utils.WriteJSON(w, http.StatusOK, api.MediaListResponse(h.catalog.Snapshot()))
}

// DeleteSession tears the caller's session down and clears its cookie.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if id := sessionID(r); id != "" {
		h.sessions.Remove(id)
	}
	cookie := h.sessionCookie("")
	cookie.MaxAge = -1
	http.SetCookie(w, cookie)
	w.WriteHeader(http.StatusNoContent)
}
