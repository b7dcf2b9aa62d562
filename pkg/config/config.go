package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cosiner/argv"
	"gopkg.in/yaml.v3"

	"github.com/butter-bot-machines/procmux/pkg/logging"
	"github.com/butter-bot-machines/procmux/pkg/output"
	"github.com/butter-bot-machines/procmux/pkg/process"
)

// DefaultFile is the config file looked up in the working directory
const DefaultFile = "procmux.yaml"

// Config represents the root configuration structure
type Config struct {
	Version   string          `yaml:"version"`
	LogLevel  string          `yaml:"log_level,omitempty"`
	Color     string          `yaml:"color,omitempty"`
	Processes []ProcessConfig `yaml:"processes"`
}

// ProcessConfig describes one process to launch. Exactly one of Command
// and Cmdline must be set.
type ProcessConfig struct {
	Name    string            `yaml:"name"`
	Command []string          `yaml:"command,omitempty"`
	Cmdline string            `yaml:"cmdline,omitempty"`
	Padding int               `yaml:"padding,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
	Delay   string            `yaml:"delay,omitempty"`
}

// Manager handles configuration loading and validation
type Manager struct {
	path   string
	config *Config
}

// NewManager creates a new configuration manager for the file at path
func NewManager(path string) *Manager {
	if path == "" {
		path = DefaultFile
	}
	return &Manager{path: path}
}

// Path returns the config file path
func (m *Manager) Path() string {
	return m.path
}

// Load reads, parses and validates the configuration file
func (m *Manager) Load() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, m.path)
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return fmt.Errorf("%s: %w", m.path, err)
	}
	m.config = cfg
	return nil
}

// GetConfig returns the loaded configuration
func (m *Manager) GetConfig() *Config {
	return m.config
}

// Parse decodes and validates YAML configuration data
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := validateVersion(cfg.Version); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validateVersion checks if the configuration version is supported
func validateVersion(version string) error {
	supportedVersions := map[string]bool{
		"1.0": true,
	}

	if !supportedVersions[version] {
		return fmt.Errorf("%w: unsupported version %q", ErrInvalidConfig, version)
	}
	return nil
}

// Validate checks the configuration without touching the file system
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level %q", ErrInvalidConfig, c.LogLevel)
	}
	if _, err := output.ParseColorMode(c.Color); err != nil {
		return fmt.Errorf("%w: color %q", ErrInvalidConfig, c.Color)
	}
	if len(c.Processes) == 0 {
		return fmt.Errorf("%w: at least one process is required", ErrInvalidConfig)
	}

	names := make(map[string]bool, len(c.Processes))
	for i, p := range c.Processes {
		if _, err := p.Descriptor(); err != nil {
			return fmt.Errorf("processes[%d]: %w", i, err)
		}
		if names[p.Name] {
			return fmt.Errorf("%w: processes[%d]: duplicate name %q", ErrInvalidConfig, i, p.Name)
		}
		names[p.Name] = true
	}
	return nil
}

// Descriptors converts every process entry to a descriptor, in file order
func (c *Config) Descriptors() ([]process.Descriptor, error) {
	descs := make([]process.Descriptor, 0, len(c.Processes))
	for i, p := range c.Processes {
		d, err := p.Descriptor()
		if err != nil {
			return nil, fmt.Errorf("processes[%d]: %w", i, err)
		}
		descs = append(descs, d)
	}
	return descs, nil
}

// Descriptor validates the entry and converts it to a process.Descriptor.
// ${VAR} references in arguments and env values are expanded against the
// current environment.
func (p ProcessConfig) Descriptor() (process.Descriptor, error) {
	d := process.Descriptor{
		Name:    p.Name,
		Padding: p.Padding,
	}

	if strings.TrimSpace(p.Name) == "" {
		return d, fmt.Errorf("%w: name is required", ErrInvalidConfig)
	}
	if p.Padding != 0 && p.Padding < 2 {
		return d, fmt.Errorf("%w: %s: padding must be at least 2", ErrInvalidConfig, p.Name)
	}
	if d.Padding == 0 {
		d.Padding = output.DefaultPadding
	}

	switch {
	case len(p.Command) > 0 && p.Cmdline != "":
		return d, fmt.Errorf("%w: %s: command and cmdline are mutually exclusive", ErrInvalidConfig, p.Name)
	case len(p.Command) > 0:
		for _, arg := range p.Command {
			d.Command = append(d.Command, os.ExpandEnv(arg))
		}
	case p.Cmdline != "":
		cmd, err := ParseCommand(p.Cmdline)
		if err != nil {
			return d, fmt.Errorf("%s: %w", p.Name, err)
		}
		d.Command = cmd
	}
	if len(d.Command) == 0 || d.Command[0] == "" {
		return d, fmt.Errorf("%w: %s: command is required", ErrInvalidConfig, p.Name)
	}

	if len(p.Env) > 0 {
		d.Env = make(map[string]string, len(p.Env))
		for k, v := range p.Env {
			d.Env[k] = os.ExpandEnv(v)
		}
	}

	if p.Delay != "" {
		delay, err := time.ParseDuration(p.Delay)
		if err != nil || delay < 0 {
			return d, fmt.Errorf("%w: %s: invalid delay %q", ErrInvalidConfig, p.Name, p.Delay)
		}
		d.Delay = delay
	}
	return d, nil
}

// ParseCommand splits a command line into arguments using shell quoting
// rules. Pipelines and backquotes are rejected.
func ParseCommand(cmdline string) ([]string, error) {
	if strings.TrimSpace(cmdline) == "" {
		return nil, fmt.Errorf("%w: empty command", ErrInvalidCommand)
	}
	v, err := argv.Argv(cmdline,
		func(s string) (string, error) {
			return "", fmt.Errorf("%w: backquote not supported in %q", ErrInvalidCommand, s)
		},
		func(s string) (string, error) {
			return os.ExpandEnv(s), nil
		})
	if err != nil {
		if errors.Is(err, ErrInvalidCommand) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidCommand, cmdline, err)
	}
	if len(v) != 1 {
		return nil, fmt.Errorf("%w: pipelines are not supported in %q", ErrInvalidCommand, cmdline)
	}
	if len(v[0]) == 0 {
		return nil, fmt.Errorf("%w: empty command", ErrInvalidCommand)
	}
	return v[0], nil
}

// ParseProcessFlag builds a descriptor from a NAME=COMMAND LINE flag value
func ParseProcessFlag(value string) (process.Descriptor, error) {
	name, cmdline, ok := strings.Cut(value, "=")
	if !ok {
		return process.Descriptor{}, fmt.Errorf("%w: %q is not NAME=COMMAND", ErrInvalidCommand, value)
	}
	return ProcessConfig{Name: strings.TrimSpace(name), Cmdline: cmdline}.Descriptor()
}

// DefaultYAML is the starter configuration written by `procmux init`
const DefaultYAML = `version: "1.0"

log_level: info
color: auto

processes:
  - name: SERVER
    command: [cargo, run, --, server]
    env:
      RUST_BACKTRACE: "1"
  - name: CLIENT
    command: [cargo, run, --, client]
    delay: 1s
    env:
      RUST_BACKTRACE: "1"
  # - name: CLIENT 2
  #   cmdline: cargo run --release -- client --ip 127.0.0.1 --port 1337
  #   env:
  #     RUST_BACKTRACE: "1"
`

// WriteDefault writes DefaultYAML to path. An existing file is only
// replaced when force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, []byte(DefaultYAML), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
