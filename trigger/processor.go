// Package trigger normalizes inbound trigger payloads into the canonical
// shape the engine consumes. Standardize never fails: malformed payloads
// produce a partially-empty normalized form, and callers decide whether to
// proceed by checking Validate separately.
package trigger

import (
	"fmt"
	"time"
)

// Trigger sources. Webhook payloads from known platforms get their own
// normalizer; everything else falls through to the generic webhook shape.
const (
	SourceTelegram  = "telegram"
	SourceInstagram = "instagram"
	SourceWebhook   = "webhook"
	SourceManual    = "manual"
	SourceSchedule  = "schedule"
)

// Data is the canonical trigger-data shape. Created once per inbound event,
// consumed once by the executor, then discarded.
type Data struct {
	// Source identifies the trigger type (telegram, manual, schedule, ...).
	Source string `json:"source"`

	// NodeID is the trigger node the event addresses.
	NodeID string `json:"node_id"`

	// Raw is the original payload, untouched.
	Raw map[string]any `json:"raw,omitempty"`

	// Fields is the normalized projection of Raw for the given source.
	Fields map[string]any `json:"fields"`

	// ProcessedAt is the only timestamp added during normalization.
	ProcessedAt time.Time `json:"processed_at"`
}

// ValidationResult reports whether trigger data is fit for execution.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Problems []string `json:"problems,omitempty"`
}

// Standardize converts a raw inbound payload into canonical trigger data.
// It accepts arbitrary or malformed payloads without error; missing fields
// simply stay absent from the normalized form.
func Standardize(source string, raw map[string]any, nodeID string) *Data {
	data := &Data{
		Source:      source,
		NodeID:      nodeID,
		Raw:         raw,
		Fields:      make(map[string]any),
		ProcessedAt: time.Now().UTC(),
	}
	switch source {
	case SourceTelegram:
		normalizeTelegram(raw, data.Fields)
	case SourceInstagram:
		normalizeInstagram(raw, data.Fields)
	case SourceSchedule:
		normalizeSchedule(raw, data.Fields)
	case SourceManual, SourceWebhook:
		for k, v := range raw {
			data.Fields[k] = v
		}
	default:
		// Unknown sources are treated like generic webhooks.
		for k, v := range raw {
			data.Fields[k] = v
		}
	}
	return data
}

// Validate performs shape checks on standardized trigger data. It is a
// separate step from Standardize so callers can reject invalid payloads
// before spending queue capacity.
func Validate(data *Data) *ValidationResult {
	result := &ValidationResult{Valid: true}
	fail := func(format string, args ...any) {
		result.Valid = false
		result.Problems = append(result.Problems, fmt.Sprintf(format, args...))
	}
	if data == nil {
		fail("trigger data is nil")
		return result
	}
	if data.Source == "" {
		fail("trigger source is empty")
	}
	if data.NodeID == "" {
		fail("trigger node id is empty")
	}
	switch data.Source {
	case SourceTelegram:
		if _, ok := data.Fields["chat_id"]; !ok {
			fail("telegram payload has no chat id")
		}
	case SourceInstagram:
		if _, ok := data.Fields["sender_id"]; !ok {
			fail("instagram payload has no sender id")
		}
	}
	return result
}

// ExecutionFormat projects trigger data into the flat input map node
// handlers consume. Normalized fields take precedence over the envelope
// keys; the raw payload stays reachable under "raw".
func ExecutionFormat(data *Data) map[string]any {
	input := map[string]any{
		"source":       data.Source,
		"node_id":      data.NodeID,
		"processed_at": data.ProcessedAt,
	}
	for k, v := range data.Fields {
		input[k] = v
	}
	if data.Raw != nil {
		input["raw"] = data.Raw
	}
	return input
}

// Summary returns a short descriptive map for logging. Never use it for
// execution semantics.
func Summary(data *Data) map[string]any {
	summary := map[string]any{
		"source":  data.Source,
		"node_id": data.NodeID,
		"fields":  len(data.Fields),
	}
	if text, ok := data.Fields["text"].(string); ok {
		if len(text) > 40 {
			text = text[:40] + "..."
		}
		summary["text"] = text
	}
	return summary
}

// normalizeTelegram extracts message fields from a Telegram Bot API update.
func normalizeTelegram(raw, fields map[string]any) {
	message := childMap(raw, "message")
	if message == nil {
		message = childMap(raw, "edited_message")
	}
	if message == nil {
		return
	}
	if id, ok := message["message_id"]; ok {
		fields["message_id"] = id
	}
	if text, ok := message["text"]; ok {
		fields["text"] = text
	}
	if chat := childMap(message, "chat"); chat != nil {
		if id, ok := chat["id"]; ok {
			fields["chat_id"] = id
		}
	}
	if from := childMap(message, "from"); from != nil {
		if username, ok := from["username"]; ok {
			fields["username"] = username
		}
		if id, ok := from["id"]; ok {
			fields["user_id"] = id
		}
	}
}

// normalizeInstagram extracts messaging fields from an Instagram Graph API
// webhook entry.
func normalizeInstagram(raw, fields map[string]any) {
	entries, ok := raw["entry"].([]any)
	if !ok || len(entries) == 0 {
		return
	}
	entry, ok := entries[0].(map[string]any)
	if !ok {
		return
	}
	messagings, ok := entry["messaging"].([]any)
	if !ok || len(messagings) == 0 {
		return
	}
	messaging, ok := messagings[0].(map[string]any)
	if !ok {
		return
	}
	if sender := childMap(messaging, "sender"); sender != nil {
		if id, ok := sender["id"]; ok {
			fields["sender_id"] = id
		}
	}
	if message := childMap(messaging, "message"); message != nil {
		if text, ok := message["text"]; ok {
			fields["text"] = text
		}
		if mid, ok := message["mid"]; ok {
			fields["message_id"] = mid
		}
	}
}

// normalizeSchedule carries through the synthetic fields the scheduler sets.
func normalizeSchedule(raw, fields map[string]any) {
	for _, key := range []string{"scheduled_at", "interval_minutes", "description"} {
		if v, ok := raw[key]; ok {
			fields[key] = v
		}
	}
}

func childMap(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	child, _ := m[key].(map[string]any)
	return child
}
