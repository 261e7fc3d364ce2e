// Package httprequest implements the generic "http.request" node for
// calling arbitrary HTTP endpoints from a workflow.
package httprequest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/relayflow-ai/relay"
	"github.com/relayflow-ai/relay/handler"
)

const NodeType = "http.request"

var DefaultClient = &http.Client{Timeout: 30 * time.Second}

// Handler performs one outbound HTTP request per node execution.
type Handler struct {
	client *http.Client
}

// New returns a Handler.
func New() *Handler {
	return &Handler{client: DefaultClient}
}

// NewWithClient returns a Handler using the given HTTP client.
func NewWithClient(client *http.Client) *Handler {
	return &Handler{client: client}
}

func (h *Handler) Name() string { return NodeType }

// Execute performs the request. Config: "url" (template, required),
// "method" (default GET), "headers" (map), "body" (template). A JSON
// response body is decoded into the output under "body"; anything else is
// passed through as a string. Non-2xx statuses are handler errors.
func (h *Handler) Execute(ctx context.Context, req *relay.HandlerRequest) (*relay.HandlerResult, error) {
	url := handler.Interpolate(req.ConfigString("url"), req.Input)
	if url == "" {
		return nil, fmt.Errorf("http node %q has no url", req.NodeID)
	}
	method := strings.ToUpper(req.ConfigString("method"))
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if raw := req.ConfigString("body"); raw != "" {
		body = strings.NewReader(handler.Interpolate(raw, req.Input))
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if headers, ok := req.Config["headers"].(map[string]any); ok {
		for k, v := range headers {
			httpReq.Header.Set(k, fmt.Sprintf("%v", v))
		}
	}
	if body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("http node %q: %s %s returned status %d",
			req.NodeID, method, url, resp.StatusCode)
	}

	output := map[string]any{
		"status": resp.StatusCode,
		"url":    url,
	}
	var decoded any
	if len(respBody) > 0 && json.Unmarshal(respBody, &decoded) == nil {
		output["body"] = decoded
	} else {
		output["body"] = string(respBody)
	}
	return &relay.HandlerResult{Data: output}, nil
}
