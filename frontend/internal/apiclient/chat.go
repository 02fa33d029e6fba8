package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/itchan-dev/mediadesk/shared/api"
	"github.com/itchan-dev/mediadesk/shared/domain"
	internal_errors "github.com/itchan-dev/mediadesk/shared/errors"
)

// === Chat ===

// SendChat posts a command. The reply may carry the assistant turn (sync backend) or only a status.
// An empty body is an async acceptance; any other undecodable body is ErrMalformedResponse.
func (c *APIClient) SendChat(ctx context.Context, data api.ChatRequest) (*api.ChatReply, error) {
	const op = "POST /api/chat"
	jsonBody, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/chat", "application/json", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}
	if err := expectStatus(resp, op, http.StatusOK, http.StatusAccepted); err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var reply api.ChatReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		if errors.Is(err, io.EOF) {
			return &api.ChatReply{}, nil
		}
		return nil, fmt.Errorf("%w: %v", internal_errors.ErrMalformedResponse, err)
	}
	if reply.Assistant != nil && reply.Assistant.Role == "" {
		reply.Assistant.Role = domain.RoleAssistant
	}
	return &reply, nil
}

// PendingResponse asks for the latest assistant turn.
// It returns (nil, nil) while the backend is still waiting and ErrMalformedResponse
// when the body lacks role or content.
func (c *APIClient) PendingResponse(ctx context.Context) (*domain.ChatMessage, error) {
	const op = "GET /api/chat/response"
	resp, err := c.do(ctx, http.MethodGet, "/api/chat/response", "", nil)
	if err != nil {
		return nil, err
	}
	if err := expectStatus(resp, op, http.StatusOK); err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body api.PendingResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", internal_errors.ErrMalformedResponse, err)
	}
	if body.Role == "" && body.Content == nil {
		if body.Status != "" {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: empty body", internal_errors.ErrMalformedResponse)
	}
	if body.Role == "" || body.Content == nil {
		return nil, fmt.Errorf("%w: missing role or content", internal_errors.ErrMalformedResponse)
	}

	return &domain.ChatMessage{
		Role:      body.Role,
		Content:   *body.Content,
		RequestId: body.RequestId,
		Timestamp: body.Timestamp,
	}, nil
}
