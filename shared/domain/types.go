package domain

type (
	MediaId   = string
	MediaPath = string
	RequestId = string

	// EpochMillis is a wall-clock instant in milliseconds since the Unix epoch.
	EpochMillis = int64
)

type MediaType string

const (
	Videos MediaType = "videos"
	Photos MediaType = "photos"
	Audio  MediaType = "audio"
)

func (t MediaType) Valid() bool {
	switch t {
	case Videos, Photos, Audio:
		return true
	}
	return false
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)
