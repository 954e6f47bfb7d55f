// Package config provides configuration types and defaults for agentpanel.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zjrosen/agentpanel/internal/log"
	"github.com/zjrosen/agentpanel/internal/tracing"
)

// Config holds all configuration options for agentpanel.
type Config struct {
	Debug     bool            `mapstructure:"debug"`
	LogFile   string          `mapstructure:"log_file"`
	LogLevel  string          `mapstructure:"log_level"` // "debug", "info" (default), "warn", "error"
	Protocol  ProtocolConfig  `mapstructure:"protocol"`
	Tracing   tracing.Config  `mapstructure:"tracing"`
	Inspector InspectorConfig `mapstructure:"inspector"`
}

// ProtocolConfig tunes the envelope pipeline.
type ProtocolConfig struct {
	// QueueCapacity bounds the inbound event loop queue.
	// Default: 1000
	QueueCapacity int `mapstructure:"queue_capacity"`

	// BroadcastBuffer is the per-subscriber buffer of state change brokers.
	// Default: 64
	BroadcastBuffer int `mapstructure:"broadcast_buffer"`

	// SlowHandlerThreshold logs handlers that run longer than this.
	// Default: 100ms
	SlowHandlerThreshold time.Duration `mapstructure:"slow_handler_threshold"`

	// PendingTimeout is how long a request waits for its broadcast before it
	// is reported as expired.
	// Default: 30s
	PendingTimeout time.Duration `mapstructure:"pending_timeout"`

	// HostErrorHistory is how many host errors are kept.
	// Default: 50
	HostErrorHistory int `mapstructure:"host_error_history"`
}

// InspectorConfig holds options for the interactive inspector.
type InspectorConfig struct {
	MaxEvents    int  `mapstructure:"max_events"`    // Events kept in the scrollback (default: 500)
	ShowPayloads bool `mapstructure:"show_payloads"` // Render payloads under each event
}

// DefaultConfigDir returns ~/.config/agentpanel, or an empty string if the
// home directory is unavailable.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "agentpanel")
}

// DefaultTracesFilePath returns the default path for trace file export.
func DefaultTracesFilePath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "traces", "traces.jsonl")
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	tr := tracing.DefaultConfig()
	tr.FilePath = DefaultTracesFilePath()
	return Config{
		LogLevel: "info",
		Protocol: ProtocolConfig{
			QueueCapacity:        1000,
			BroadcastBuffer:      64,
			SlowHandlerThreshold: 100 * time.Millisecond,
			PendingTimeout:       30 * time.Second,
			HostErrorHistory:     50,
		},
		Tracing: tr,
		Inspector: InspectorConfig{
			MaxEvents:    500,
			ShowPayloads: true,
		},
	}
}

// Validate checks the whole configuration.
func (c Config) Validate() error {
	switch c.LogLevel {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log_level must be \"debug\", \"info\", \"warn\", or \"error\", got %q", c.LogLevel)
	}
	if err := ValidateProtocol(c.Protocol); err != nil {
		return err
	}
	if err := ValidateTracing(c.Tracing); err != nil {
		return err
	}
	if c.Inspector.MaxEvents < 0 {
		return fmt.Errorf("inspector.max_events must not be negative, got %d", c.Inspector.MaxEvents)
	}
	return nil
}

// ValidateProtocol checks protocol tuning. Zero values fall back to defaults.
func ValidateProtocol(p ProtocolConfig) error {
	if p.QueueCapacity < 0 {
		return fmt.Errorf("protocol.queue_capacity must not be negative, got %d", p.QueueCapacity)
	}
	if p.BroadcastBuffer < 0 {
		return fmt.Errorf("protocol.broadcast_buffer must not be negative, got %d", p.BroadcastBuffer)
	}
	if p.SlowHandlerThreshold < 0 {
		return fmt.Errorf("protocol.slow_handler_threshold must not be negative, got %s", p.SlowHandlerThreshold)
	}
	if p.PendingTimeout < 0 {
		return fmt.Errorf("protocol.pending_timeout must not be negative, got %s", p.PendingTimeout)
	}
	if p.HostErrorHistory < 0 {
		return fmt.Errorf("protocol.host_error_history must not be negative, got %d", p.HostErrorHistory)
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(tr tracing.Config) error {
	if tr.SampleRate < 0.0 || tr.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tr.SampleRate)
	}

	if tr.Exporter != "" {
		switch tr.Exporter {
		case "none", "file", "stdout", "otlp":
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tr.Exporter)
		}
	}

	// Path requirements only matter when tracing is on.
	if tr.Enabled {
		if tr.Exporter == "file" && tr.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if tr.Exporter == "otlp" && tr.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}
	return nil
}

// WithDefaults fills zero protocol and inspector values from Defaults.
func (c Config) WithDefaults() Config {
	d := Defaults()
	if c.Protocol.QueueCapacity == 0 {
		c.Protocol.QueueCapacity = d.Protocol.QueueCapacity
	}
	if c.Protocol.BroadcastBuffer == 0 {
		c.Protocol.BroadcastBuffer = d.Protocol.BroadcastBuffer
	}
	if c.Protocol.SlowHandlerThreshold == 0 {
		c.Protocol.SlowHandlerThreshold = d.Protocol.SlowHandlerThreshold
	}
	if c.Protocol.PendingTimeout == 0 {
		c.Protocol.PendingTimeout = d.Protocol.PendingTimeout
	}
	if c.Protocol.HostErrorHistory == 0 {
		c.Protocol.HostErrorHistory = d.Protocol.HostErrorHistory
	}
	if c.Inspector.MaxEvents == 0 {
		c.Inspector.MaxEvents = d.Inspector.MaxEvents
	}
	return c
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# agentpanel configuration

# Write debug logs (same as AGENTPANEL_DEBUG=1)
debug: false
# log_file: ./debug.log
log_level: info           # "debug", "info", "warn", or "error"

# Envelope pipeline tuning
protocol:
  queue_capacity: 1000          # Inbound envelopes buffered before new ones are dropped
  broadcast_buffer: 64          # Per-subscriber buffer for state change notifications
  slow_handler_threshold: 100ms # Handlers slower than this are logged
  pending_timeout: 30s          # Requests without a broadcast after this are reported
  host_error_history: 50        # Host errors kept for display

# Distributed tracing of envelope handling
tracing:
  enabled: false
  exporter: file                # "none", "file", "stdout", or "otlp"
  # file_path: ~/.config/agentpanel/traces/traces.jsonl
  otlp_endpoint: localhost:4317
  sample_rate: 1.0

# Interactive inspector (agentpanel watch)
inspector:
  max_events: 500
  show_payloads: true
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
