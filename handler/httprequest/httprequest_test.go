package httprequest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relayflow-ai/relay"
)

func TestExecuteRequiresURL(t *testing.T) {
	h := New()
	_, err := h.Execute(context.Background(), &relay.HandlerRequest{NodeID: "n1"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "no url")
}

func TestExecuteGetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/orders/A-17", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "shipped", "items": 2}`))
	}))
	defer server.Close()

	h := New()
	result, err := h.Execute(context.Background(), &relay.HandlerRequest{
		NodeID: "n1",
		Config: map[string]any{"url": server.URL + "/orders/${order_id}"},
		Input:  map[string]any{"order_id": "A-17"},
	})
	require.NoError(t, err)
	require.Equal(t, 200, result.Data["status"])
	body, ok := result.Data["body"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "shipped", body["status"])
	require.Equal(t, float64(2), body["items"])
}

func TestExecutePostWithBodyAndHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		payload, _ := io.ReadAll(r.Body)
		require.JSONEq(t, `{"text": "hello"}`, string(payload))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("created"))
	}))
	defer server.Close()

	h := New()
	result, err := h.Execute(context.Background(), &relay.HandlerRequest{
		NodeID: "n1",
		Config: map[string]any{
			"url":     server.URL,
			"method":  "post",
			"body":    `{"text": "${text}"}`,
			"headers": map[string]any{"Authorization": "Bearer tok"},
		},
		Input: map[string]any{"text": "hello"},
	})
	require.NoError(t, err)
	require.Equal(t, 201, result.Data["status"])
	require.Equal(t, "created", result.Data["body"])
}

func TestExecuteNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer server.Close()

	h := New()
	_, err := h.Execute(context.Background(), &relay.HandlerRequest{
		NodeID: "n1",
		Config: map[string]any{"url": server.URL},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 410")
}

func TestExecuteConnectionError(t *testing.T) {
	h := New()
	_, err := h.Execute(context.Background(), &relay.HandlerRequest{
		NodeID: "n1",
		Config: map[string]any{"url": "http://127.0.0.1:1/unreachable"},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "error making request")
}
