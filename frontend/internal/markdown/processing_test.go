package markdown

import (
	"testing"

	"github.com/itchan-dev/mediadesk/shared/domain"
	"github.com/stretchr/testify/assert"
)

func TestProcessMessage(t *testing.T) {
	tp := New()

	assistant := func(s string) domain.ChatMessage {
		return domain.ChatMessage{Role: domain.RoleAssistant, Content: s}
	}

	tests := []struct {
		name        string
		msg         domain.ChatMessage
		contains    []string
		notContains []string
	}{
		{
			name:     "bold text",
			msg:      assistant("**done**"),
			contains: []string{"<strong>done</strong>"},
		},
		{
			name:     "list",
			msg:      assistant("Filters:\n\n- blur\n- sharpen"),
			contains: []string{"<li>blur</li>", "<li>sharpen</li>"},
		},
		{
			name:        "raw html is dropped",
			msg:         assistant("<script>alert(1)</script>hi"),
			notContains: []string{"<script"},
		},
		{
			name:     "media path becomes a link",
			msg:      assistant("Saved to /api/videos/1712345678901-clip.mp4."),
			contains: []string{`href="/api/videos/1712345678901-clip.mp4"`, ">/api/videos/1712345678901-clip.mp4</a>."},
		},
		{
			name:        "path inside a code span stays code",
			msg:         assistant("see `/api/audio/1-a.mp3`"),
			contains:    []string{"<code>/api/audio/1-a.mp3</code>"},
			notContains: []string{"<a "},
		},
		{
			name:        "path glued to a word is left alone",
			msg:         assistant("http://host/api/videos/a.mp4"),
			notContains: []string{`href="/api/videos/a.mp4"`},
		},
		{
			name:        "user text is escaped, not rendered",
			msg:         domain.ChatMessage{Role: domain.RoleUser, Content: "<b>trim</b> **this**\nplease"},
			contains:    []string{"&lt;b&gt;trim&lt;/b&gt;", "**this**", "<br"},
			notContains: []string{"<b>", "<strong>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tp.ProcessMessage(tt.msg)
			for _, s := range tt.contains {
				assert.Contains(t, got, s)
			}
			for _, s := range tt.notContains {
				assert.NotContains(t, got, s)
			}
		})
	}
}
