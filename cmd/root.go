package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/agentpanel/internal/config"
	"github.com/zjrosen/agentpanel/internal/log"
)

func init() {
	// Query the terminal background before any Bubble Tea program starts so
	// the OSC 11 response does not race the inspector's input loop.
	// See: https://github.com/charmbracelet/bubbletea/issues/1036
	_ = lipgloss.HasDarkBackground()
}

var (
	version   = "dev"
	cfgFile   string
	debugFlag bool
	cfg       config.Config

	logCleanup func()
)

var rootCmd = &cobra.Command{
	Use:   "agentpanel",
	Short: "Inspect and drive the agent panel message protocol",
	Long: `agentpanel works with the envelopes exchanged between the agent panel UI and
its extension host. Envelopes are newline-delimited JSON objects of the form
{"kind": "...", "payload": ...}.

Replay a capture through a UI session, follow a live capture in a terminal
inspector, send validated requests, or export the message catalog as JSON
Schema.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) {
		if logCleanup != nil {
			logCleanup()
			logCleanup = nil
		}
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/agentpanel/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false,
		"enable debug logging (also AGENTPANEL_DEBUG)")
}

func initConfig() {
	configErr = nil
	defaults := config.Defaults()
	viper.SetDefault("debug", defaults.Debug)
	viper.SetDefault("log_file", defaults.LogFile)
	viper.SetDefault("log_level", defaults.LogLevel)
	viper.SetDefault("protocol.queue_capacity", defaults.Protocol.QueueCapacity)
	viper.SetDefault("protocol.broadcast_buffer", defaults.Protocol.BroadcastBuffer)
	viper.SetDefault("protocol.slow_handler_threshold", defaults.Protocol.SlowHandlerThreshold)
	viper.SetDefault("protocol.pending_timeout", defaults.Protocol.PendingTimeout)
	viper.SetDefault("protocol.host_error_history", defaults.Protocol.HostErrorHistory)
	viper.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.file_path", defaults.Tracing.FilePath)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	viper.SetDefault("tracing.service_name", defaults.Tracing.ServiceName)
	viper.SetDefault("inspector.max_events", defaults.Inspector.MaxEvents)
	viper.SetDefault("inspector.show_payloads", defaults.Inspector.ShowPayloads)

	viper.SetEnvPrefix("AGENTPANEL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .agentpanel/config.yaml (current directory)
		// 2. ~/.config/agentpanel/config.yaml (user config)
		if _, err := os.Stat(localConfigPath); err == nil {
			viper.SetConfigFile(localConfigPath)
		} else if dir := config.DefaultConfigDir(); dir != "" {
			viper.AddConfigPath(dir)
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	// A missing config file is fine, defaults apply. Other read errors
	// surface in setup.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			configErr = fmt.Errorf("reading config %s: %w", viper.ConfigFileUsed(), err)
		}
	}

	if err := viper.Unmarshal(&cfg); err != nil && configErr == nil {
		configErr = fmt.Errorf("decoding config: %w", err)
	}
}

const localConfigPath = ".agentpanel/config.yaml"

var configErr error

// setup validates the loaded config and starts logging.
func setup(_ *cobra.Command, _ []string) error {
	if configErr != nil {
		err := configErr
		configErr = nil
		return err
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return initLogging()
}

func initLogging() error {
	debug := os.Getenv("AGENTPANEL_DEBUG") != "" || debugFlag || cfg.Debug
	logPath := os.Getenv("AGENTPANEL_LOG")
	if logPath == "" {
		logPath = cfg.LogFile
	}
	if !debug && logPath == "" {
		return nil
	}
	if logPath == "" {
		logPath = "debug.log"
	}
	if dir := filepath.Dir(logPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating log directory: %w", err)
		}
	}

	cleanup, err := log.InitWithTeaLog(logPath, "agentpanel")
	if err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	logCleanup = cleanup
	if !debug {
		log.SetMinLevel(log.ParseLevel(cfg.LogLevel))
	}

	log.Info(log.CatConfig, "agentpanel starting", "debug", debug, "logPath", logPath,
		"config", viper.ConfigFileUsed())
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
