package mask

import "strings"

var sensitiveKeys = []string{
	"sign",
	"key",
	"secret",
	"token",
	"nonce",
	"password",
}

// Params returns a copy of callback/form parameters with signing material masked.
func Params(input map[string]string) map[string]string {
	if input == nil {
		return nil
	}
	out := make(map[string]string, len(input))
	for key, value := range input {
		if isSensitiveKey(key) {
			out[key] = Last4(value)
			continue
		}
		out[key] = value
	}
	return out
}

// Last4 keeps only the last 4 characters.
func Last4(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if len(value) <= 4 {
		return "****"
	}
	return "****" + value[len(value)-4:]
}

func isSensitiveKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, needle := range sensitiveKeys {
		if strings.Contains(key, needle) {
			return true
		}
	}
	return false
}
