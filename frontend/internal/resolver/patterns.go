package resolver

import (
	"path"
	"regexp"
	"strings"

	"github.com/itchan-dev/mediadesk/shared/domain"
)

const (
	videoExt = `(?:mp4|mov|avi|webm|mkv)`
	audioExt = `(?:mp3|wav|ogg|aac|m4a)`
	mediaExt = `(?:mp4|mov|avi|webm|mkv|mp3|wav|ogg|aac|m4a)`

	// a filename token, optionally wrapped in backticks or quotes
	token = "`?\"?([^`\"\\s,()]+\\." + mediaExt + ")`?\"?"
)

var (
	serverPathRe = regexp.MustCompile("/api/(?:videos|photos|audio|temp)/[^\\s\"'`,()<>\\[\\]]+")

	audioExtRe = regexp.MustCompile(`(?i)\.` + audioExt + `$`)

	// upload timestamp the media server prepends to stored names
	timestampPrefixRe = regexp.MustCompile(`^\d{10,}-`)

	// Tried in order, first hit wins. Each pattern's first group is the candidate.
	filenamePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)output(?:Path|File)\s*:\s*"?([^"\s,]+)"?`),
		regexp.MustCompile(`(?i)saved(?:\s+(?:as|to|at))?\s*:?\s*` + token),
		regexp.MustCompile(`(?i)successfully\s+(?:created|generated|processed|trimmed|converted|saved|merged)\s+(?:as\s+|into\s+)?` + token),
		regexp.MustCompile(`(?i)(?:trimmed|processed|exported|created|merged).*?(?:saved\s+as|as|into)\s+` + token),
		regexp.MustCompile("(?i)output is in\\s+`([^`]+)`"),
		regexp.MustCompile("(?i)have been successfully merged.*?`([^`]+)`"),
		regexp.MustCompile("(?i)merged into\\s+`([^`]+)`"),
		regexp.MustCompile("(?i)into\\s+`([^`]+)`"),
		regexp.MustCompile(`(?i)\b(output\.mp4)\b`),
		regexp.MustCompile("(?i)([^\\s,\"'`()]+(?:_with_audio|-with-audio)\\." + mediaExt + ")"),
		regexp.MustCompile("(?i)([^\\s,\"'`()]*\\d{10,}_output[^\\s,\"'`()]*\\." + mediaExt + ")"),
		regexp.MustCompile("(?i)([^\\s,\"'`()]+[_-](?:audio_enhanced|filtered|processed|batman|madmax|rotated|flipped|cropped|resized|segmented|trimmed|instagram|output)\\." + mediaExt + ")"),
	}

	completionKeywords = []string{
		"processed", "created", "edited", "merged", "trimmed",
		"extracted", "saved to", "converted", "successfully",
	}

	// name fragments that mark a file as the output of an edit
	operationMarkers = []string{
		"output", "_processed", "_trimmed", "-trimmed", "_with_audio", "-with-audio",
		"_enhanced", "_filtered", "_batman", "_madmax", "_instagram",
		"_rotated", "_flipped", "_cropped", "_resized", "_segmented",
	}
)

func trimToken(s string) string {
	return strings.TrimRight(s, ".,;:!?")
}

// findServerPath returns the first server-relative media path in s.
func findServerPath(s string) (string, bool) {
	m := serverPathRe.FindString(s)
	if m == "" {
		return "", false
	}
	return trimToken(m), true
}

// extractCandidate runs the phrase patterns and returns the first candidate, reduced to a basename.
func extractCandidate(text string) (string, bool) {
	for _, re := range filenamePatterns {
		m := re.FindStringSubmatch(text)
		if len(m) < 2 || m[1] == "" {
			continue
		}
		if name := basename(trimToken(m[1])); name != "" {
			return name, true
		}
	}
	return "", false
}

func basename(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	b := path.Base(p)
	if b == "." || b == "/" {
		return ""
	}
	return b
}

func hasCompletionKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range completionKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func hasOperationMarker(name string) bool {
	lower := strings.ToLower(name)
	for _, m := range operationMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// relevantType picks the catalog bucket a candidate lives in. Unknown extensions default to videos.
func relevantType(candidate string) domain.MediaType {
	if audioExtRe.MatchString(candidate) {
		return domain.Audio
	}
	return domain.Videos
}

func stripTimestamp(name string) string {
	return timestampPrefixRe.ReplaceAllString(name, "")
}
