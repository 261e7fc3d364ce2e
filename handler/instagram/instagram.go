// Package instagram implements the "instagram.send" node: it sends a direct
// message through the Instagram Graph API messaging endpoint.
package instagram

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

const NodeType = "instagram.send"

var (
	DefaultBaseURL = "https://graph.facebook.com/v19.0"
	DefaultClient  = &http.Client{Timeout: 30 * time.Second}
)

// Handler sends direct messages through the Instagram Graph API.
type Handler struct {
	client      *http.Client
	baseURL     string
	accessToken string
}

// Option configures a Handler.
type Option func(*Handler)

// WithAccessToken sets the default access token.
func WithAccessToken(token string) Option {
	return func(h *Handler) { h.accessToken = token }
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

type sendRequest struct {
	Recipient recipient   `json:"recipient"`
	Message   messageBody `json:"message"`
}

type recipient struct {
	ID string `json:"id"`
}

type messageBody struct {
	Text string `json:"text"`
}

type sendResponse struct {
	RecipientID string `json:"recipient_id"`
	MessageID   string `json:"message_id"`
}

type apiError struct {
	statusCode int
	body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("instagram api error (status %d): %s", e.statusCode, e.body)
}

func (e *apiError) StatusCode() int { return e.statusCode }

// Execute sends the message. Config: "access_token" (falls back to the
// handler default), "recipient_id" (falls back to the input's sender_id so
// replies go back to whoever messaged first), "text" template.
func (h *Handler) Execute(ctx context.Context, req *relay.HandlerRequest) (*relay.HandlerResult, error) {
	recipientID := req.ConfigString("recipient_id")
	if recipientID == "" {
		recipientID = req.InputString("sender_id")
	}
	if recipientID == "" {
		return nil, fmt.Errorf("instagram node %q has no recipient_id", req.NodeID)
	}
	text := handler.Interpolate(req.ConfigString("text"), req.Input)
	if text == "" {
		text = req.InputString("text")
	}
	if text == "" {
		return nil, fmt.Errorf("instagram node %q has no message text", req.NodeID)
	}

	token := req.ConfigString("access_token")
	if token == "" {
		token = h.accessToken
	}
	if handler.IsPlaceholder(token) {
		return &relay.HandlerResult{
			Data: map[string]any{
				"sent":         true,
				"recipient_id": recipientID,
				"text":         text,
				"mock":         true,
			},
			Mock: true,
		}, nil
	}

	body, err := json.Marshal(sendRequest{
		Recipient: recipient{ID: recipientID},
		Message:   messageBody{Text: text},
	})
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/me/messages?access_token=%s", h.baseURL, token)

	var result sendResponse
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
			return &apiError{statusCode: resp.StatusCode, body: string(respBody)}
		}
		return json.NewDecoder(resp.Body).Decode(&result)
	})
	if err != nil {
		return nil, err
	}
	return &relay.HandlerResult{
		Data: map[string]any{
			"sent":         true,
			"recipient_id": recipientID,
			"text":         text,
			"message_id":   result.MessageID,
		},
	}, nil
}
