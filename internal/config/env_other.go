//go:build !windows

package config

// mapEnvKey is the identity outside windows.
func mapEnvKey(key string) string {
	return key
}
