// Package telegram implements the "telegram.send" node: it sends a text
// message through the Telegram Bot API. A missing or placeholder bot token
// selects the mock path so graphs remain testable without credentials.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/relayflow-ai/relay"
	"github.com/relayflow-ai/relay/handler"
	"github.com/relayflow-ai/relay/retry"
)

const NodeType = "telegram.send"

var (
	DefaultBaseURL = "https://api.telegram.org"
	DefaultClient  = &http.Client{Timeout: 30 * time.Second}
)

// Handler sends messages through the Telegram Bot API.
type Handler struct {
	client  *http.Client
	baseURL string
	token   string
}

// Option configures a Handler.
type Option func(*Handler)

// WithToken sets the default bot token used when the node config has none.
func WithToken(token string) Option {
	return func(h *Handler) { h.token = token }
}

// WithBaseURL overrides the API base URL, used by tests.
func WithBaseURL(baseURL string) Option {
	return func(h *Handler) { h.baseURL = baseURL }
}

// WithClient overrides the HTTP client.
func WithClient(client *http.Client) Option {
	return func(h *Handler) { h.client = client }
}

// New returns a Handler.
func New(opts ...Option) *Handler {
	h := &Handler{client: DefaultClient, baseURL: DefaultBaseURL}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Name() string { return NodeType }

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

type apiError struct {
	statusCode  int
	description string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("telegram api error (status %d): %s", e.statusCode, e.description)
}

func (e *apiError) StatusCode() int { return e.statusCode }

// Execute sends the message. Config: "token" (falls back to the handler
// default), "chat_id" (falls back to the input's chat_id from the trigger),
// "text" template (falls back to the input's text).
func (h *Handler) Execute(ctx context.Context, req *relay.HandlerRequest) (*relay.HandlerResult, error) {
	chatID := req.ConfigString("chat_id")
	if chatID == "" {
		chatID = stringify(req.Input["chat_id"])
	}
	if chatID == "" {
		return nil, fmt.Errorf("telegram node %q has no chat_id", req.NodeID)
	}
	text := handler.Interpolate(req.ConfigString("text"), req.Input)
	if text == "" {
		text = req.InputString("text")
	}
	if text == "" {
		return nil, fmt.Errorf("telegram node %q has no message text", req.NodeID)
	}

	token := req.ConfigString("token")
	if token == "" {
		token = h.token
	}
	if handler.IsPlaceholder(token) {
		return &relay.HandlerResult{
			Data: map[string]any{
				"sent":    true,
				"chat_id": chatID,
				"text":    text,
				"mock":    true,
			},
			Mock: true,
		}, nil
	}

	body, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: text})
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", h.baseURL, token)

	var result sendMessageResponse
	err = retry.Do(ctx, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := h.client.Do(httpReq)
		if err != nil {
			return fmt.Errorf("error making request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			return &apiError{statusCode: resp.StatusCode, description: string(respBody)}
		}
		return json.NewDecoder(resp.Body).Decode(&result)
	})
	if err != nil {
		return nil, err
	}
	if !result.OK {
		return nil, fmt.Errorf("telegram rejected message: %s", result.Description)
	}
	return &relay.HandlerResult{
		Data: map[string]any{
			"sent":       true,
			"chat_id":    chatID,
			"text":       text,
			"message_id": result.Result.MessageID,
		},
	}, nil
}

func stringify(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		// JSON numbers decode as float64; chat ids are integral.
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
