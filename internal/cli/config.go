package cli

import (
	"fmt"

	"github.com/existflow/keepsession/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change client settings",
	Long: `Show the effective settings (file, environment, and flags combined).

Examples:
  keepsession config
  keepsession config set server_url https://auth.example.com
  keepsession config set request_timeout 20s`,
	RunE: runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Persist a setting to the config file",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.Path()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	// Start from the file, not the effective config, so env and flag
	// overrides are not persisted.
	path, err := config.Path()
	if err != nil {
		return err
	}
	onDisk, err := config.ReadFile(path)
	if err != nil {
		return err
	}
	if err := onDisk.Set(args[0], args[1]); err != nil {
		return err
	}
	if err := onDisk.SaveFile(path); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✅ %s = %s\n", args[0], args[1])
	return nil
}
