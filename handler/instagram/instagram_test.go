package instagram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relayflow-ai/relay"
)

func TestExecuteMissingFields(t *testing.T) {
	h := New()

	_, err := h.Execute(context.Background(), &relay.HandlerRequest{
		NodeID: "n1",
		Config: map[string]any{"text": "hi"},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "no recipient_id")

	_, err = h.Execute(context.Background(), &relay.HandlerRequest{
		NodeID: "n1",
		Config: map[string]any{"recipient_id": "ig-7"},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "no message text")
}

func TestExecuteMockWithoutToken(t *testing.T) {
	h := New()
	result, err := h.Execute(context.Background(), &relay.HandlerRequest{
		NodeID: "n1",
		Config: map[string]any{"text": "thanks ${sender_id}"},
		Input:  map[string]any{"sender_id": "ig-7"},
	})
	require.NoError(t, err)
	require.True(t, result.Mock)
	require.Equal(t, "ig-7", result.Data["recipient_id"])
	require.Equal(t, "thanks ig-7", result.Data["text"])
	require.Equal(t, true, result.Data["mock"])
}

func TestExecuteSendsMessage(t *testing.T) {
	var captured sendRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/me/messages", r.URL.Path)
		require.Equal(t, "live-token", r.URL.Query().Get("access_token"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(sendResponse{RecipientID: "ig-7", MessageID: "m.123"})
	}))
	defer server.Close()

	h := New(WithAccessToken("live-token"), WithBaseURL(server.URL))
	result, err := h.Execute(context.Background(), &relay.HandlerRequest{
		NodeID: "n1",
		Config: map[string]any{"text": "in stock"},
		Input:  map[string]any{"sender_id": "ig-7"},
	})
	require.NoError(t, err)
	require.False(t, result.Mock)
	require.Equal(t, "ig-7", captured.Recipient.ID)
	require.Equal(t, "in stock", captured.Message.Text)
	require.Equal(t, "m.123", result.Data["message_id"])
}

func TestExecuteAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "invalid token"}}`, http.StatusBadRequest)
	}))
	defer server.Close()

	h := New(WithAccessToken("live-token"), WithBaseURL(server.URL))
	_, err := h.Execute(context.Background(), &relay.HandlerRequest{
		NodeID: "n1",
		Config: map[string]any{"recipient_id": "ig-7", "text": "hi"},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 400")
}
