package usecase

import (
	"encoding/json"
	"fmt"
	"strings"

	"push-relay/internal/domain"
)

// MaxPayloadBytes is the FCM limit for the title, body and data of one message.
const MaxPayloadBytes = 4096

var reservedDataKeys = map[string]struct{}{
	"from":         {},
	"message_type": {},
	"collapse_key": {},
}

var reservedDataPrefixes = []string{"google.", "gcm."}

// BuildPushMessage assembles the provider payload. FCM only accepts string data values,
// so every data entry is coerced and the notification type is added under "type".
func BuildPushMessage(title, body, notificationType string, data map[string]any) domain.PushMessage {
	out := StringifyData(data)
	out["type"] = notificationType
	return domain.PushMessage{Title: title, Body: body, Data: out}
}

// StringifyData converts every value to its text form: strings pass through,
// everything else is JSON encoded (5 -> "5", true -> "true", nil -> "null").
func StringifyData(data map[string]any) map[string]string {
	out := make(map[string]string, len(data)+1)
	for k, v := range data {
		out[k] = stringify(v)
	}
	return out
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case []byte:
		return string(x)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// ValidatePushMessage rejects messages FCM would refuse as a whole. Such a
// rejection says nothing about the recipients' tokens.
func ValidatePushMessage(msg domain.PushMessage) error {
	size := len(msg.Title) + len(msg.Body)
	for k, v := range msg.Data {
		if _, reserved := reservedDataKeys[k]; reserved {
			return domain.NewValidationError("data", "data key %q is reserved", k)
		}
		for _, prefix := range reservedDataPrefixes {
			if strings.HasPrefix(k, prefix) {
				return domain.NewValidationError("data", "data key %q is reserved", k)
			}
		}
		size += len(k) + len(v)
	}
	if size > MaxPayloadBytes {
		return domain.NewValidationError("data", "notification payload is %d bytes, limit is %d", size, MaxPayloadBytes)
	}
	return nil
}

func normalizeType(t string) string {
	if t = strings.TrimSpace(t); t == "" {
		return domain.DefaultNotificationType
	}
	return t
}
