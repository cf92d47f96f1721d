// internal/cli/root.go
package parachat

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mwiater/parachat/internal/appconfig"
	"github.com/mwiater/parachat/internal/logging"
)

var (
	cfgFile       string
	currentConfig *appconfig.Config
)

// Persistent settings shared by the flag set and config.json.
var (
	boolSettings   = []string{"debug"}
	intSettings    = []string{"timeout", "parallelism", "chunkDelayMs", "sampleIntervalMs"}
	stringSettings = []string{"export", "logFile", "defaultMode"}
)

var rootCmd = &cobra.Command{
	Use:           "parachat",
	Short:         "parachat: measured sequential and parallel inference against local model hosts",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 1) Read the config file, if any, so viper knows its values.
		if err := ensureConfigLoaded(); err != nil {
			return err
		}

		// 2) Copy config values into flags the user did not set so pflags and
		//    viper agree on the final value.
		for _, name := range append(append(append([]string{}, boolSettings...), intSettings...), stringSettings...) {
			flag := cmd.Flags().Lookup(name)
			if flag == nil || flag.Changed || !viper.InConfig(name) {
				continue
			}
			_ = cmd.Flags().Set(name, viper.GetString(name))
		}

		// 3) Materialize the merged configuration (flags > config > defaults).
		cfg, err := buildConfig()
		if err != nil {
			return err
		}
		currentConfig = cfg

		logging.SetDebug(cfg.Debug)
		if err := logging.Init(cfg.LogFilePath()); err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		logging.LogEvent("parachat %s starting (config=%q)", cmd.CommandPath(), cfg.ConfigPath)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logging.Close()
	},
}

// Execute runs the root command, cancelling in-flight work on SIGINT or SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", appconfig.DefaultConfigPath, "config file (e.g., config/config.json)")

	flags.Bool("debug", false, "enable debug logging")
	flags.Int("timeout", 0, "backend request timeout in seconds (default 600)")
	flags.Int("parallelism", 0, "worker count for the parallel pass (default: logical CPUs)")
	flags.Int("chunkDelayMs", 0, "simulated per-chunk cost in ms; negative disables (default 50)")
	flags.Int("sampleIntervalMs", 0, "resource sampling interval in ms (default 100)")
	flags.String("export", "", "append every chat message as a JSON line to this file")
	flags.String("logFile", "", "log file path (default parachat.log)")
	flags.String("defaultMode", "", "execution mode when --mode is not given: sequential or parallel")

	// Bind flags to Viper keys (flags override config)
	for _, name := range append(append(append([]string{}, boolSettings...), intSettings...), stringSettings...) {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		viper.SetConfigType("json")
	}
}

// ensureConfigLoaded reads the config file. A missing file leaves defaults and flags in effect.
func ensureConfigLoaded() error {
	viper.SetDefault("debug", false)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load config: %w", err)
	}
	return nil
}

// buildConfig decodes the schema-checked file and overlays the merged flag values.
func buildConfig() (*appconfig.Config, error) {
	cfg := appconfig.Config{}
	if file := viper.ConfigFileUsed(); file != "" {
		loaded, err := appconfig.LoadFile(file)
		switch {
		case err == nil:
			cfg = loaded
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("config %s: %w", file, err)
		}
	}

	cfg.Debug = viper.GetBool("debug")
	if v := viper.GetInt("timeout"); v > 0 {
		cfg.TimeoutSeconds = v
	}
	cfg.ParallelismHint = viper.GetInt("parallelism")
	cfg.ChunkDelayMs = viper.GetInt("chunkDelayMs")
	cfg.SampleIntervalMs = viper.GetInt("sampleIntervalMs")
	cfg.ExportPath = viper.GetString("export")
	cfg.LogFile = viper.GetString("logFile")
	cfg.DefaultMode = viper.GetString("defaultMode")

	if err := appconfig.Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// getConfig returns the loaded application configuration for subcommands.
func getConfig() *appconfig.Config {
	if currentConfig == nil {
		return &appconfig.Config{}
	}
	return currentConfig
}
