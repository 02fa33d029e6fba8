package api

import "github.com/itchan-dev/mediadesk/shared/domain"

// UI-facing DTOs served by the frontend session server

type SendCommandRequest struct {
	Text string `json:"text" validate:"required"`
}

type SelectPreviewRequest struct {
	Path domain.MediaPath `json:"path" validate:"required"`
}

type TranscriptEntry struct {
	domain.ChatMessage
	HTML string `json:"html"`
}

type TranscriptResponse struct {
	Messages []TranscriptEntry `json:"messages"`
}

type EventType string

const (
	EventTranscript   EventType = "transcript"
	EventArtifact     EventType = "artifact"
	EventNotification EventType = "notification"
)

// Event is one frame pushed over the session websocket.
type Event struct {
	Type         EventType                `json:"type"`
	Transcript   []TranscriptEntry        `json:"transcript,omitempty"`
	Artifact     *domain.ResolvedArtifact `json:"artifact,omitempty"`
	Notification *domain.Notification     `json:"notification,omitempty"`
}
