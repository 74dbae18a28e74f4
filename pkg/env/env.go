// Package env reads bootstrap-time knobs that live outside the
// envconfig-managed configuration.
package env

import "os"

// Get reads key from the environment, returning fallback when the variable
// is unset or empty.
func Get(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
