package cli

import (
	"fmt"

	"github.com/existflow/keepsession/internal/config"
	"github.com/existflow/keepsession/internal/logger"
	"github.com/spf13/cobra"
)

var (
	logLevel   string
	logFile    string
	logConsole bool
	serverURL  string

	// cfg is loaded once per invocation in PersistentPreRunE
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "keepsession",
	Short: "KeepSession - resilient sign-in for the terminal",
	Long: `KeepSession keeps you signed in to an auth server across restarts
and flaky networks. Sessions are cached locally and verified in the
background, so startup never waits on a slow server.

Run 'keepsession' without arguments to launch the interactive TUI.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load config from file (or defaults if not exists)
		loaded, err := config.Load()
		if err != nil {
			logger.Warn("Failed to load config, using defaults", logger.F("error", err))
			loaded = config.DefaultConfig()
		}
		cfg = loaded

		// Override with CLI flags if provided
		configChanged := false
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
			configChanged = true
		}
		if cmd.Flags().Changed("log-file") {
			cfg.LogFile = logFile
			configChanged = true
		}
		if cmd.Flags().Changed("log-console") {
			cfg.LogConsole = logConsole
			configChanged = true
		}

		// Save config if changed via CLI flags
		if configChanged {
			persistLogFlags()
		}

		// --server applies to this invocation only
		if cmd.Flags().Changed("server") {
			cfg.ServerURL = serverURL
		}

		logConfig := logger.Config{
			Level:      logger.ParseLevel(cfg.LogLevel),
			FilePath:   cfg.LogFile,
			MaxSize:    10 * 1024 * 1024, // 10MB
			MaxAge:     7,
			MaxBackups: 5,
			Console:    cfg.LogConsole,
		}

		if err := logger.Init(logConfig); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		logger.Info("KeepSession started", logger.F("command", cmd.Name()), logger.F("server", cfg.ServerURL))
		return nil
	},

	RunE: runTUI,

	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Info("KeepSession exiting", logger.F("command", cmd.Name()))
		logger.Close()
	},
}

// persistLogFlags writes the logging flags to the config file without
// persisting environment overrides
func persistLogFlags() {
	path, err := config.Path()
	if err != nil {
		logger.Warn("Failed to locate config", logger.F("error", err))
		return
	}
	onDisk, err := config.ReadFile(path)
	if err != nil {
		logger.Warn("Failed to read config", logger.F("error", err))
		return
	}
	onDisk.LogLevel = cfg.LogLevel
	onDisk.LogFile = cfg.LogFile
	onDisk.LogConsole = cfg.LogConsole
	if err := onDisk.SaveFile(path); err != nil {
		logger.Warn("Failed to save config", logger.F("error", err))
	}
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add logging flags
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (DEBUG, INFO, WARN, ERROR)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Path to log file")
	rootCmd.PersistentFlags().BoolVar(&logConsole, "log-console", false, "Enable console logging")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Auth server URL (overrides config for this run)")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while the TUI runs")

	// Add subcommands
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(signupCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(tuiCmd)
}
