// Package claude implements the "claude.respond" node: it sends the node's
// prompt to the Anthropic Messages API and outputs the model's reply. With
// no usable API key the handler produces a deterministic mock reply so
// workflow graphs can be validated without live credentials.
package claude

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/relayflow-ai/relay"
	"github.com/relayflow-ai/relay/handler"
	"github.com/relayflow-ai/relay/retry"
)

const NodeType = "claude.respond"

var (
	DefaultModel     = "claude-sonnet-4-20250514"
	DefaultEndpoint  = "https://api.anthropic.com/v1/messages"
	DefaultMaxTokens = 1024
	DefaultVersion   = "2023-06-01"
	DefaultClient    = &http.Client{Timeout: 120 * time.Second}
)

// Handler calls the Anthropic Messages API.
type Handler struct {
	client    *http.Client
	apiKey    string
	endpoint  string
	model     string
	maxTokens int
	version   string
}

// Option configures a Handler.
type Option func(*Handler)

// WithAPIKey overrides the ANTHROPIC_API_KEY environment fallback.
func WithAPIKey(key string) Option {
	return func(h *Handler) { h.apiKey = key }
}

// WithEndpoint overrides the API endpoint, used by tests.
func WithEndpoint(endpoint string) Option {
	return func(h *Handler) { h.endpoint = endpoint }
}

// WithClient overrides the HTTP client.
func WithClient(client *http.Client) Option {
	return func(h *Handler) { h.client = client }
}

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(h *Handler) { h.model = model }
}

// New returns a Handler.
func New(opts ...Option) *Handler {
	h := &Handler{
		client:    DefaultClient,
		apiKey:    os.Getenv("ANTHROPIC_API_KEY"),
		endpoint:  DefaultEndpoint,
		model:     DefaultModel,
		maxTokens: DefaultMaxTokens,
		version:   DefaultVersion,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Name() string { return NodeType }

// request and response mirror the slice of the Messages API this node uses.
type request struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type response struct {
	Content []contentBlock `json:"content"`
	Model   string         `json:"model"`
	Usage   usage          `json:"usage"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type apiError struct {
	statusCode int
	body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("anthropic api error (status %d): %s", e.statusCode, e.body)
}

func (e *apiError) StatusCode() int { return e.statusCode }

// Execute sends the prompt and returns the text reply under "text". Config:
// "prompt" (template, falls back to the input's "text"), "system", "model",
// "api_key".
func (h *Handler) Execute(ctx context.Context, req *relay.HandlerRequest) (*relay.HandlerResult, error) {
	prompt := handler.Interpolate(req.ConfigString("prompt"), req.Input)
	if prompt == "" {
		prompt = req.InputString("text")
	}
	if prompt == "" {
		return nil, fmt.Errorf("claude node %q has no prompt and no input text", req.NodeID)
	}
	system := handler.Interpolate(req.ConfigString("system"), req.Input)
	model := req.ConfigString("model")
	if model == "" {
		model = h.model
	}

	apiKey := req.ConfigString("api_key")
	if apiKey == "" {
		apiKey = h.apiKey
	}
	if handler.IsPlaceholder(apiKey) {
		return &relay.HandlerResult{
			Data: map[string]any{
				"text":  fmt.Sprintf("[mock ai reply] %s", prompt),
				"model": model,
				"mock":  true,
			},
			Mock: true,
		}, nil
	}

	body, err := json.Marshal(request{
		Model:     model,
		MaxTokens: h.maxTokens,
		System:    system,
		Messages:  []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	var result response
	err = retry.Do(ctx, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
		if err != nil {
			return err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-api-key", apiKey)
		httpReq.Header.Set("anthropic-version", h.version)

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

	var text string
	for _, block := range result.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return nil, fmt.Errorf("empty response from anthropic api")
	}
	return &relay.HandlerResult{
		Data: map[string]any{
			"text":          text,
			"model":         result.Model,
			"input_tokens":  result.Usage.InputTokens,
			"output_tokens": result.Usage.OutputTokens,
		},
	}, nil
}
