package log

import (
	"strings"
)

// sensitiveKeywords marks keys whose string values must never appear in
// logs unmasked. Matching is case-insensitive substring.
var sensitiveKeywords = []string{
	"password", "passwd", "pwd",
	"api_key", "apikey", "api-key",
	"token", "secret",
	"auth", "authorization",
	"credential", "private_key", "privatekey",
}

// SanitizeField masks the value when the key looks sensitive, returning
// the value unchanged otherwise.
func SanitizeField(key, value string) string {
	if value == "" {
		return value
	}

	lowerKey := strings.ToLower(key)

	if strings.Contains(lowerKey, "email") || strings.Contains(lowerKey, "mail") {
		return maskEmail(value)
	}

	for _, keyword := range sensitiveKeywords {
		if strings.Contains(lowerKey, keyword) {
			return maskSecret(value)
		}
	}

	return value
}

// maskSecret keeps the first and last 4 characters of long secrets so
// operators can still correlate keys, and masks short ones almost fully.
func maskSecret(value string) string {
	if len(value) > 8 {
		return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
	}
	if len(value) <= 2 {
		return strings.Repeat("*", len(value))
	}
	return value[:1] + strings.Repeat("*", len(value)-2) + value[len(value)-1:]
}

// maskEmail keeps at most 3 characters of the local part plus the domain.
func maskEmail(value string) string {
	at := strings.LastIndex(value, "@")
	if at <= 0 {
		return strings.Repeat("*", len(value))
	}

	local, domain := value[:at], value[at+1:]
	if len(local) <= 3 {
		return local[:1] + strings.Repeat("*", len(local)-1) + "@" + domain
	}
	return local[:3] + "***@" + domain
}
