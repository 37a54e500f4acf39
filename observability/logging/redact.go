package logging

import (
	"log/slog"
	"sort"
	"strings"
)

// RedactedValue replaces sensitive values in log output.
const RedactedValue = "[REDACTED]"

// Keys emitted verbatim. Everything else passed through MaskField is masked.
var plainKeys = map[string]struct{}{
	"service":    {},
	"env":        {},
	"message":    {},
	"severity":   {},
	"timestamp":  {},
	"error":      {},
	"reason":     {},
	"component":  {},
	"op":         {},
	"kind":       {},
	"method":     {},
	"path":       {},
	"status":     {},
	"caller":     {},
	"intentid":   {},
	"positionid": {},
	"mm":         {},
	"user":       {},
}

// Credential headers keep their scheme so operators can tell a malformed
// header from a rejected token.
var schemeKeys = map[string]struct{}{
	"authorization":       {},
	"proxy-authorization": {},
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// IsAllowlisted reports whether key is logged without masking.
func IsAllowlisted(key string) bool {
	_, ok := plainKeys[normalizeKey(key)]
	return ok
}

// RedactionAllowlist returns the plain keys in sorted order.
func RedactionAllowlist() []string {
	keys := make([]string, 0, len(plainKeys))
	for key := range plainKeys {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// MaskField masks value unless key is allowlisted. Empty values are kept so
// a missing credential is visible as such.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	if _, ok := schemeKeys[normalizeKey(key)]; ok {
		return slog.String(key, maskCredential(value))
	}
	return slog.String(key, RedactedValue)
}

func maskCredential(value string) string {
	scheme, _, found := strings.Cut(strings.TrimSpace(value), " ")
	if !found {
		return RedactedValue
	}
	return scheme + " " + RedactedValue
}
