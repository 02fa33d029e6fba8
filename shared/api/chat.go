package api

import "github.com/itchan-dev/mediadesk/shared/domain"

// Request DTOs shared by backend and frontend

type ChatRequest struct {
	Message      string            `json:"message" validate:"required"`
	VideoContext *domain.MediaItem `json:"videoContext,omitempty"`
	AudioContext *domain.MediaItem `json:"audioContext,omitempty"`
	RequestId    domain.RequestId  `json:"request_id,omitempty"`
}

// ChatReply is the POST /api/chat body. Assistant is nil in the async case.
type ChatReply struct {
	User      *domain.ChatMessage `json:"user,omitempty"`
	Assistant *domain.ChatMessage `json:"assistant,omitempty"`
	Status    string              `json:"status,omitempty"`
}

// PendingResponse is the GET /api/chat/response body: either an assistant turn or {"status":"waiting"}.
type PendingResponse struct {
	Role      domain.Role        `json:"role,omitempty"`
	Content   *string            `json:"content,omitempty"`
	RequestId domain.RequestId   `json:"request_id,omitempty"`
	Timestamp domain.EpochMillis `json:"timestamp,omitempty"`
	Status    string             `json:"status,omitempty"`
}

const (
	StatusWaiting    = "waiting"
	StatusProcessing = "processing"
)
