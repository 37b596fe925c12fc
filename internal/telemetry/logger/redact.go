package logger

import (
	"log/slog"
	"strings"
)

// Attribute names whose values are fully redacted.
var sensitiveKeyPatterns = []string{
	"password",
	"secret",
	"seed",
	"private_key",
	"encrypted_data",
	"token",
	"credential",
}

// Attribute names whose values are truncated.
var truncatedKeyPatterns = []string{
	"payload",
	"args",
	"kwargs",
}

// maxTruncatedLen is the number of bytes kept from a truncated value.
const maxTruncatedLen = 64

// redactedValue is the placeholder for redacted sensitive data.
const redactedValue = "***REDACTED***"

// redactSensitive redacts or truncates an attribute based on its key.
func redactSensitive(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}

	if isSensitiveKey(a.Key) {
		if a.Value.Kind() == slog.KindString && a.Value.String() == "" {
			return a
		}
		return slog.String(a.Key, redactedValue)
	}

	if a.Value.Kind() == slog.KindString && matchesAny(a.Key, truncatedKeyPatterns) {
		return slog.String(a.Key, truncate(a.Value.String()))
	}

	return a
}

// truncate shortens a value to maxTruncatedLen bytes.
func truncate(value string) string {
	if len(value) <= maxTruncatedLen {
		return value
	}
	return value[:maxTruncatedLen] + "...(truncated)"
}

// isSensitiveKey checks if a key name suggests sensitive content.
func isSensitiveKey(key string) bool {
	return matchesAny(key, sensitiveKeyPatterns)
}

func matchesAny(key string, patterns []string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range patterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}
