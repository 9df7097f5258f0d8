//go:build windows

package config

// mapEnvKey translates unix variable names used in $(VAR) to their windows
// counterparts.
func mapEnvKey(key string) string {
	if key == "HOSTNAME" {
		return "COMPUTERNAME"
	}
	return key
}
