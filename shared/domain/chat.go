package domain

// ChatMessage is one turn in the conversation.
// RequestId is empty on user turns and on legacy assistant replies.
type ChatMessage struct {
	Role      Role        `json:"role"`
	Content   string      `json:"content"`
	RequestId RequestId   `json:"request_id,omitempty"`
	Timestamp EpochMillis `json:"timestamp"`
}

type RequestStatus string

const (
	Awaiting  RequestStatus = "awaiting"
	Resolved  RequestStatus = "resolved"
	Abandoned RequestStatus = "abandoned"
)

// PendingRequest is the correlator's bookkeeping for one command.
type PendingRequest struct {
	RequestId   RequestId
	SubmittedAt EpochMillis
	Status      RequestStatus
}

type MatchTier string

const (
	TierExplicitPath       MatchTier = "explicit_path"
	TierFilenamePattern    MatchTier = "filename_pattern"
	TierMostRecentFallback MatchTier = "most_recent_fallback"
	TierNone               MatchTier = "none"
)

// ResolvedArtifact is the output of artifact resolution. MatchedItem is nil for TierNone.
type ResolvedArtifact struct {
	MatchedItem *MediaItem `json:"matchedItem"`
	MatchTier   MatchTier  `json:"matchTier"`
}

type NotificationSeverity string

const (
	SeverityInfo    NotificationSeverity = "info"
	SeveritySuccess NotificationSeverity = "success"
	SeverityError   NotificationSeverity = "error"
)

// Notification is a user-visible toast.
type Notification struct {
	Message  string               `json:"message"`
	Severity NotificationSeverity `json:"severity"`
}
