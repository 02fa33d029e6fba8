package dispatcher

import (
	"regexp"
	"strings"

	"github.com/itchan-dev/mediadesk/shared/domain"
)

// Deterministic keyword classifier: substring checks on the lower-cased command.
var (
	videoKeywords = []string{
		"analyze", "get info", "trim", "extract", "split", "fade", "add watermark",
		"convert", "merge", "overlay", "transform", "process", "get video info",
		"filter", "apply filter", "batman filter", "apply batman filter", "blur", "sharpen", "rotate",
		"flip", "mirror", "crop", "resize", "adjust", "speed", "slow", "fast", "reverse",
		"effect", "color", "brightness", "contrast", "saturation", "hue",
		"keep", "remove", "segment", "cut", "keep segment", "remove segment", "extract segment",
		"keeper", "goalkeeper", "keep only", "remove except", "save segment", "section",
		"clip", "part", "portion", "scene", "include only", "exclude", "include", "cut out",
		"madmax", "mad max",
		"add audio", "add music", "add sound", "merge audio", "add soundtrack", "overlay audio",
		"combine audio", "combine with audio", "attach audio", "include audio",
	}

	// commands that never need a file even though they hit a video keyword
	excludedKeywords = []string{
		"list filter", "list filters", "list filter templates", "show filters",
		"available filters", "what filters", "list available filters",
		"list effects", "show effects", "available effects", "help",
	}

	audioKeywords = []string{
		"add audio", "add music", "add sound", "merge audio", "add soundtrack", "overlay audio",
	}

	audioRefPatterns = []*regexp.Regexp{
		regexp.MustCompile(`add\s+([\w-]+\.(?:mp3|wav|ogg|aac|m4a))`),
		regexp.MustCompile(`music\s+([\w-]+\.(?:mp3|wav|ogg|aac|m4a))`),
		regexp.MustCompile(`audio\s+([\w-]+\.(?:mp3|wav|ogg|aac|m4a))`),
		regexp.MustCompile(`sound\s+([\w-]+\.(?:mp3|wav|ogg|aac|m4a))`),
		regexp.MustCompile(`([\w-]+\.(?:mp3|wav|ogg|aac|m4a))`),
	}
)

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// WantsVideoContext reports whether a command operates on the video in the preview.
// The exclusion list wins over the keyword list.
func WantsVideoContext(text string) bool {
	lower := strings.ToLower(text)
	return containsAny(lower, videoKeywords) && !containsAny(lower, excludedKeywords)
}

func isAudioCommand(text string) bool {
	return containsAny(strings.ToLower(text), audioKeywords)
}

// audioReference extracts an audio filename mentioned in an audio command.
func audioReference(text string) (string, bool) {
	if !isAudioCommand(text) {
		return "", false
	}
	lower := strings.ToLower(text)
	for _, re := range audioRefPatterns {
		if m := re.FindStringSubmatch(lower); len(m) > 1 {
			return m[1], true
		}
	}
	return "", false
}

// FindAudio matches a mentioned filename against the audio catalog, case-insensitively:
// exact name first, then substring, then the name without its extension.
func FindAudio(items []domain.MediaItem, mention string) (domain.MediaItem, bool) {
	want := strings.ToLower(strings.TrimSpace(mention))
	if want == "" {
		return domain.MediaItem{}, false
	}
	checks := []func(name, stem string) bool{
		func(name, _ string) bool { return name == want },
		func(name, _ string) bool { return strings.Contains(name, want) },
		func(_, stem string) bool { return stem == want },
		func(_, stem string) bool { return strings.Contains(stem, want) },
	}
	for _, check := range checks {
		for _, it := range items {
			name := strings.ToLower(it.Name)
			stem, _, _ := strings.Cut(name, ".")
			if check(name, stem) {
				return it, true
			}
		}
	}
	return domain.MediaItem{}, false
}
