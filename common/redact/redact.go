// Package redact strips bind tokens and service keys from text and audit
// payloads before they are logged or persisted.
//
// Redaction works on string representations only. Call sites are still
// expected to keep credentials out of log arguments where they can.
package redact

import (
	"strings"
)

const placeholder = "[REDACTED]"

// minLength is the shortest value that will be redacted. Shorter values would
// match too many innocent substrings.
const minLength = 4

// String replaces every occurrence of each sensitive value in s.
//
//	slog.Info("bind failed", "body", redact.String(body, token, key))
func String(s string, sensitiveValues ...string) string {
	for _, v := range sensitiveValues {
		if len(v) < minLength {
			continue
		}
		s = strings.ReplaceAll(s, v, placeholder)
	}
	return s
}

// Map returns a shallow copy of m in which every non-empty string value
// stored under a credential-looking key is replaced.
func Map(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if str, ok := v.(string); ok && str != "" && isSensitiveKey(k) {
			out[k] = placeholder
			continue
		}
		out[k] = v
	}
	return out
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, word := range []string{"token", "key", "secret", "password", "auth", "base64"} {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}
