package env

import (
	"os"
	"sort"
	"strconv"
	"strings"
)

// Environment implements config.Environment for accessing environment variables
type Environment struct{}

// New creates a new environment accessor
func New() *Environment {
	return &Environment{}
}

// GetString returns an environment variable as a string
func (e *Environment) GetString(key string) string {
	return os.Getenv(key)
}

// GetBool returns an environment variable as a boolean
func (e *Environment) GetBool(key string) bool {
	return e.GetBoolWithDefault(key, false)
}

// GetStringWithDefault returns an environment variable as a string with a default value
func (e *Environment) GetStringWithDefault(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

// GetBoolWithDefault returns an environment variable as a boolean with a default value
func (e *Environment) GetBoolWithDefault(key string, defaultValue bool) bool {
	str := os.Getenv(key)
	if str == "" {
		return defaultValue
	}

	val, err := strconv.ParseBool(str)
	if err != nil {
		return defaultValue
	}
	return val
}

// Has returns true if an environment variable is set
func (e *Environment) Has(key string) bool {
	_, exists := os.LookupEnv(key)
	return exists
}

// Merge overlays vars on base, a KEY=VALUE list such as os.Environ().
// Overlaid keys keep their position in base and later duplicates of them
// are dropped; keys base does not have are appended in sorted order.
func Merge(base []string, vars map[string]string) []string {
	merged := make([]string, 0, len(base)+len(vars))
	seen := make(map[string]bool, len(vars))

	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		val, ok := vars[key]
		if !ok {
			merged = append(merged, kv)
			continue
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, key+"="+val)
	}

	extra := make([]string, 0, len(vars))
	for key := range vars {
		if !seen[key] {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	for _, key := range extra {
		merged = append(merged, key+"="+vars[key])
	}
	return merged
}
