package utils

import "os"

// EnvOrDefault returns the named environment variable, or fallback when it
// is unset or empty.
func EnvOrDefault(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
