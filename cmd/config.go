package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/agentpanel/internal/config"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create or edit the config file",
	// Editing must work even when the current file does not validate.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default config file",
	Long: `Write a commented default config. Without a path the file goes to
~/.config/agentpanel/config.yaml.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := filepath.Join(config.DefaultConfigDir(), "config.yaml")
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.WriteDefaultConfig(path); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set one value in the config file, keeping comments",
	Long: `Set a dotted key in the config file in use (or the one named by --config).
Comments and the order of existing keys are preserved.

Examples:
  agentpanel config set protocol.pending_timeout 10s
  agentpanel config set tracing.enabled true`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := viper.ConfigFileUsed()
		if path == "" {
			path = filepath.Join(config.DefaultConfigDir(), "config.yaml")
		}
		if err := config.SetValue(path, args[0], args[1]); err != nil {
			return err
		}

		// The edited file must still load.
		check := viper.New()
		check.SetConfigFile(path)
		if err := check.ReadInConfig(); err != nil {
			return fmt.Errorf("re-reading %s: %w", path, err)
		}
		var edited config.Config
		if err := check.Unmarshal(&edited); err != nil {
			return fmt.Errorf("decoding %s: %w", path, err)
		}
		if err := edited.WithDefaults().Validate(); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s no longer validates: %v\n", path, err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s = %s (%s)\n", args[0], args[1], path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd, configSetCmd)
	rootCmd.AddCommand(configCmd)
}
