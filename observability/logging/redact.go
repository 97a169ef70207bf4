package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue is the canonical placeholder used for sensitive fields in logs.
const RedactedValue = "[REDACTED]"

// sensitiveKeys lists log keys that carry operator credentials and must never
// reach a sink in the clear.
var sensitiveKeys = map[string]struct{}{
	"operator_key":  {},
	"private_key":   {},
	"bearer_token":  {},
	"auth_token":    {},
	"rpc_endpoint":  {},
	"authorization": {},
}

// IsSensitive reports whether the provided key must be masked before logging.
func IsSensitive(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	_, ok := sensitiveKeys[normalized]
	return ok
}

// MaskField returns a slog.Attr that redacts the supplied value when the key
// is sensitive. The original key casing is preserved for readability.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || !IsSensitive(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}
