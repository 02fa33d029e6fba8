// Package markdown renders transcript turns to sanitized HTML.
package markdown

import (
	"bytes"
	"html"
	"regexp"
	"strings"
	"unicode"

	"github.com/itchan-dev/mediadesk/shared/domain"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

var mediaPathRegex = regexp.MustCompile("^/api/(?:videos|photos|audio|temp)/[^\\s\"'`<>()\\[\\]]+")

type TextProcessor struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

func New() *TextProcessor {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(
			parser.WithInlineParsers(util.Prioritized(&mediaLinkParser{}, 50)),
		),
	)

	p := bluemonday.UGCPolicy()
	p.RequireNoFollowOnLinks(false)
	p.AllowRelativeURLs(true)

	return &TextProcessor{md: md, policy: p}
}

// ProcessMessage renders assistant turns as markdown and user turns as escaped
// plain text. Server media paths in assistant turns become links.
func (tp *TextProcessor) ProcessMessage(msg domain.ChatMessage) string {
	if msg.Role == domain.RoleUser {
		escaped := html.EscapeString(strings.TrimSpace(msg.Content))
		return tp.policy.Sanitize(strings.ReplaceAll(escaped, "\n", "<br>"))
	}
	rendered, err := tp.renderText(msg.Content)
	if err != nil {
		return tp.policy.Sanitize(html.EscapeString(msg.Content))
	}
	return tp.policy.Sanitize(rendered)
}

func (tp *TextProcessor) renderText(source string) (string, error) {
	var buf bytes.Buffer
	if err := tp.md.Convert([]byte(source), &buf); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// mediaLinkParser turns bare /api/{type}/{file} paths into links.
type mediaLinkParser struct{}

func (*mediaLinkParser) Trigger() []byte {
	return []byte{'/'}
}

func (*mediaLinkParser) Parse(parent ast.Node, block text.Reader, pc parser.Context) ast.Node {
	// only at the start of a word
	if prev := block.PrecendingCharacter(); !unicode.IsSpace(prev) && !strings.ContainsRune(`("'`, prev) {
		return nil
	}
	line, segment := block.PeekLine()
	m := mediaPathRegex.Find(line)
	if m == nil {
		return nil
	}
	n := len(bytes.TrimRight(m, ".,;:!?"))

	link := ast.NewLink()
	link.Destination = append([]byte(nil), line[:n]...)
	link.AppendChild(link, ast.NewTextSegment(segment.WithStop(segment.Start+n)))
	block.Advance(n)
	return link
}
