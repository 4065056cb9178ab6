package util

import (
	"os"
	"strings"
)

// GetOrDefault returns the value of the environment variable key, or def when it is unset
// or empty.
func GetOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func IsTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "t", "true", "y", "yes", "on":
		return true
	default:
		return false
	}
}
