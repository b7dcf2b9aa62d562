package config

// Environment defines the interface for environment variable access
type Environment interface {
	GetString(key string) string
	GetStringWithDefault(key string, defaultValue string) string
	GetBool(key string) bool
}

// Environment variables consulted for defaults
const (
	EnvConfig   = "PROCMUX_CONFIG"
	EnvLogLevel = "PROCMUX_LOG_LEVEL"
	EnvColor    = "PROCMUX_COLOR"
	EnvNoWatch  = "PROCMUX_NO_WATCH"
)

// Error types for config operations
var (
	ErrNotFound       = Error{"config file not found"}
	ErrInvalidConfig  = Error{"invalid configuration"}
	ErrInvalidCommand = Error{"invalid command line"}
	ErrExists         = Error{"config file already exists"}
)

// Error represents a configuration error
type Error struct {
	Message string
}

func (e Error) Error() string {
	return e.Message
}
