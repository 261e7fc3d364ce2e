package trigger

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func telegramUpdate() map[string]any {
	return map[string]any{
		"update_id": float64(9001),
		"message": map[string]any{
			"message_id": float64(42),
			"text":       "hello bot",
			"chat": map[string]any{
				"id":   float64(123456),
				"type": "private",
			},
			"from": map[string]any{
				"id":       float64(777),
				"username": "demo_user",
			},
		},
	}
}

func TestStandardizeTelegram(t *testing.T) {
	data := Standardize(SourceTelegram, telegramUpdate(), "node-1")
	require.Equal(t, SourceTelegram, data.Source)
	require.Equal(t, "node-1", data.NodeID)
	require.False(t, data.ProcessedAt.IsZero())
	require.Equal(t, float64(42), data.Fields["message_id"])
	require.Equal(t, "hello bot", data.Fields["text"])
	require.Equal(t, float64(123456), data.Fields["chat_id"])
	require.Equal(t, "demo_user", data.Fields["username"])
	require.Equal(t, float64(777), data.Fields["user_id"])
}

func TestStandardizeTelegramEditedMessage(t *testing.T) {
	raw := map[string]any{
		"edited_message": map[string]any{
			"text": "fixed typo",
			"chat": map[string]any{"id": float64(5)},
		},
	}
	data := Standardize(SourceTelegram, raw, "node-1")
	require.Equal(t, "fixed typo", data.Fields["text"])
	require.Equal(t, float64(5), data.Fields["chat_id"])
}

func TestStandardizeInstagram(t *testing.T) {
	raw := map[string]any{
		"object": "instagram",
		"entry": []any{
			map[string]any{
				"messaging": []any{
					map[string]any{
						"sender": map[string]any{"id": "ig-user-7"},
						"message": map[string]any{
							"mid":  "m.abc",
							"text": "is this in stock?",
						},
					},
				},
			},
		},
	}
	data := Standardize(SourceInstagram, raw, "node-2")
	require.Equal(t, "ig-user-7", data.Fields["sender_id"])
	require.Equal(t, "is this in stock?", data.Fields["text"])
	require.Equal(t, "m.abc", data.Fields["message_id"])
}

func TestStandardizeNeverFails(t *testing.T) {
	tests := []struct {
		name   string
		source string
		raw    map[string]any
	}{
		{"nil payload", SourceTelegram, nil},
		{"empty payload", SourceInstagram, map[string]any{}},
		{"wrong shapes", SourceTelegram, map[string]any{"message": "not a map"}},
		{"entry not a list", SourceInstagram, map[string]any{"entry": "nope"}},
		{"entry list of strings", SourceInstagram, map[string]any{"entry": []any{"nope"}}},
		{"unknown source", "carrier-pigeon", map[string]any{"note": "coo"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := Standardize(tt.source, tt.raw, "node-x")
			require.NotNil(t, data)
			require.NotNil(t, data.Fields)
			require.Equal(t, tt.source, data.Source)
		})
	}
}

func TestStandardizePassthroughSources(t *testing.T) {
	raw := map[string]any{"order_id": "A-17", "total": 99.5}

	manual := Standardize(SourceManual, raw, "node-3")
	require.Equal(t, "A-17", manual.Fields["order_id"])
	require.Equal(t, 99.5, manual.Fields["total"])

	webhook := Standardize(SourceWebhook, raw, "node-3")
	require.Equal(t, raw["order_id"], webhook.Fields["order_id"])
}

func TestStandardizeSchedule(t *testing.T) {
	raw := map[string]any{
		"scheduled_at":     "2026-08-29T10:00:00Z",
		"interval_minutes": 15.0,
		"description":      "daily digest",
		"extraneous":       true,
	}
	data := Standardize(SourceSchedule, raw, "node-4")
	require.Equal(t, "daily digest", data.Fields["description"])
	require.Equal(t, 15.0, data.Fields["interval_minutes"])
	require.NotContains(t, data.Fields, "extraneous")
}

func TestValidate(t *testing.T) {
	t.Run("valid telegram", func(t *testing.T) {
		data := Standardize(SourceTelegram, telegramUpdate(), "node-1")
		result := Validate(data)
		require.True(t, result.Valid)
		require.Empty(t, result.Problems)
	})

	t.Run("telegram without chat id", func(t *testing.T) {
		data := Standardize(SourceTelegram, map[string]any{}, "node-1")
		result := Validate(data)
		require.False(t, result.Valid)
		require.Contains(t, result.Problems, "telegram payload has no chat id")
	})

	t.Run("instagram without sender id", func(t *testing.T) {
		data := Standardize(SourceInstagram, map[string]any{}, "node-2")
		result := Validate(data)
		require.False(t, result.Valid)
		require.Contains(t, result.Problems, "instagram payload has no sender id")
	})

	t.Run("missing envelope fields", func(t *testing.T) {
		result := Validate(&Data{})
		require.False(t, result.Valid)
		require.Len(t, result.Problems, 2)
	})

	t.Run("nil data", func(t *testing.T) {
		result := Validate(nil)
		require.False(t, result.Valid)
	})
}

func TestExecutionFormat(t *testing.T) {
	data := Standardize(SourceTelegram, telegramUpdate(), "node-1")
	input := ExecutionFormat(data)

	require.Equal(t, SourceTelegram, input["source"])
	require.Equal(t, "node-1", input["node_id"])
	require.Equal(t, "hello bot", input["text"])
	require.Equal(t, data.Raw, input["raw"])
	require.IsType(t, time.Time{}, input["processed_at"])

	// Two projections of the same data agree on everything but the map identity.
	again := ExecutionFormat(data)
	require.Equal(t, input, again)
}

func TestExecutionFormatWithoutRaw(t *testing.T) {
	input := ExecutionFormat(&Data{Source: SourceManual, NodeID: "n"})
	require.NotContains(t, input, "raw")
}

func TestSummaryTruncatesText(t *testing.T) {
	long := strings.Repeat("x", 100)
	data := Standardize(SourceManual, map[string]any{"text": long}, "node-1")
	summary := Summary(data)
	require.Equal(t, long[:40]+"...", summary["text"])
	require.Equal(t, SourceManual, summary["source"])
	require.Equal(t, 1, summary["fields"])
}
