package handler

import (
	"net/http"

	"github.com/itchan-dev/mediadesk/shared/api"
	"github.com/itchan-dev/mediadesk/shared/utils"
)

func (h *Handler) SendChat(w http.ResponseWriter, r *http.Request) {
	var body api.ChatRequest
	if err := utils.Decode(r.Body, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	reply, err := h.chat.Send(r.Context(), body)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, reply)
}

func (h *Handler) ChatHistory(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, h.chat.History())
}

// ChatResponse returns the latest assistant turn, or {"status":"waiting"} before the first one.
func (h *Handler) ChatResponse(w http.ResponseWriter, r *http.Request) {
	latest, ok := h.chat.Latest()
	if !ok {
		utils.WriteJSON(w, http.StatusOK, api.PendingResponse{Status: api.StatusWaiting})
		return
	}
	content := latest.Content
	utils.WriteJSON(w, http.StatusOK, api.PendingResponse{
		Role:      latest.Role,
		Content:   &content,
		RequestId: latest.RequestId,
		Timestamp: latest.Timestamp,
	})
}
