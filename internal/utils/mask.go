package utils

import (
	"maps"
	"strings"
)

var secretKeyMarkers = []string{"pass", "secret", "token"}

func MaskSecret(s string) string {
	if len(s) <= 4 {
		return "*****"
	}
	return s[:4] + "*****"
}

// IsSecretKey reports whether an rclone option key carries a credential
func IsSecretKey(key string) bool {
	key = strings.ToLower(key)
	for _, marker := range secretKeyMarkers {
		if strings.Contains(key, marker) {
			return true
		}
	}
	return false
}

// MaskOptions returns a copy of opts that is safe to log
func MaskOptions(opts map[string]string) map[string]string {
	masked := maps.Clone(opts)
	for k := range masked {
		if IsSecretKey(k) {
			masked[k] = "***"
		}
	}
	return masked
}
