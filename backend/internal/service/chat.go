package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/itchan-dev/mediadesk/shared/api"
	"github.com/itchan-dev/mediadesk/shared/domain"
	internal_errors "github.com/itchan-dev/mediadesk/shared/errors"
	"github.com/itchan-dev/mediadesk/shared/logger"
)

// Apology is stored as the assistant turn when the agent fails.
const Apology = "I'm sorry, I couldn't process your request. Please try again."

type Agent interface {
	Run(ctx context.Context, prompt string) (string, error)
}

type MediaLocator interface {
	LocalPath(p domain.MediaPath) (string, error)
}

// to mock service in tests
type ChatService interface {
	Send(ctx context.Context, req api.ChatRequest) (api.ChatReply, error)
	History() []domain.ChatMessage
	Latest() (domain.ChatMessage, bool)
}

// Chat relays messages to the agent and keeps the conversation history.
// In async mode Send returns before the agent answers; the reply can only
// be collected through Latest.
type Chat struct {
	agent Agent
	media MediaLocator
	async bool
	now   func() time.Time

	mu      sync.Mutex
	history []domain.ChatMessage
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewChat(agent Agent, media MediaLocator, async bool) *Chat {
	ctx, cancel := context.WithCancel(context.Background())
	return &Chat{
		agent:   agent,
		media:   media,
		async:   async,
		now:     time.Now,
		history: []domain.ChatMessage{},
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (c *Chat) Send(ctx context.Context, req api.ChatRequest) (api.ChatReply, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return api.ChatReply{}, &internal_errors.ErrorWithStatusCode{Message: "Empty message", StatusCode: http.StatusBadRequest}
	}

	if c.async {
		// wg.Add under mu so it never races Close's Wait
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return api.ChatReply{}, &internal_errors.ErrorWithStatusCode{Message: "Chat is shutting down", StatusCode: http.StatusServiceUnavailable}
		}
		c.wg.Add(1)
		c.mu.Unlock()
	}

	user := c.append(domain.ChatMessage{Role: domain.RoleUser, Content: message})
	prompt := c.prompt(message, req.VideoContext, req.AudioContext)
	logger.Log.Info("chat message received", "component", "chat", "request_id", req.RequestId, "async", c.async)

	if c.async {
		go func() {
			defer c.wg.Done()
			c.answer(c.ctx, prompt, req.RequestId)
		}()
		return api.ChatReply{User: &user, Status: api.StatusProcessing}, nil
	}

	assistant := c.answer(ctx, prompt, req.RequestId)
	return api.ChatReply{User: &user, Assistant: &assistant}, nil
}

func (c *Chat) answer(ctx context.Context, prompt string, id domain.RequestId) domain.ChatMessage {
	content, err := c.agent.Run(ctx, prompt)
	if err != nil {
		logger.Log.Error("agent failed", "component", "chat", "request_id", id, "error", err)
		content = Apology
	}
	if strings.TrimSpace(content) == "" {
		content = Apology
	}
	return c.append(domain.ChatMessage{Role: domain.RoleAssistant, Content: content, RequestId: id})
}

// prompt adds the on-disk location of attached media so the agent can act on it.
func (c *Chat) prompt(message string, video, audio *domain.MediaItem) string {
	parts := []string{message}
	for _, attached := range []struct {
		label string
		item  *domain.MediaItem
	}{{"Video", video}, {"Audio", audio}} {
		if attached.item == nil {
			continue
		}
		location := attached.item.Path
		if local, err := c.media.LocalPath(attached.item.Path); err == nil {
			location = local
		} else {
			logger.Log.Warn("attached media not found locally", "component", "chat", "path", attached.item.Path, "error", err)
		}
		parts = append(parts, fmt.Sprintf("[%s context: %s (%s)]", attached.label, location, attached.item.Name))
	}
	return strings.Join(parts, " ")
}

func (c *Chat) append(msg domain.ChatMessage) domain.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg.Timestamp = c.now().UnixMilli()
	c.history = append(c.history, msg)
	return msg
}

func (c *Chat) History() []domain.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.ChatMessage, len(c.history))
	copy(out, c.history)
	return out
}

// Latest returns the most recent assistant turn.
func (c *Chat) Latest() (domain.ChatMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.history) - 1; i >= 0; i-- {
		if c.history[i].Role == domain.RoleAssistant {
			return c.history[i], true
		}
	}
	return domain.ChatMessage{}, false
}

// Close cancels in-flight async answers and waits for them to finish.
// Later async sends are refused with 503.
func (c *Chat) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
	c.wg.Wait()
}
