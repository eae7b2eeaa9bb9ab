package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pairmount/pairmount/internal/config"
	"github.com/pairmount/pairmount/internal/daemon"
	"github.com/pairmount/pairmount/internal/utils"
	"github.com/pairmount/pairmount/internal/version"
)

var (
	red  = color.New(color.FgHiRed, color.Bold).SprintFunc()
	cyan = color.New(color.FgHiCyan).SprintFunc()
)

var rootCmd = &cobra.Command{
	Use:     "pairmountd",
	Short:   "PairMount reconciliation daemon",
	Long:    "Keeps the merged view of each sync pair trustworthy by detecting and rebuilding stale tree versions.",
	Version: version.Detailed(),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig()
		if err != nil {
			return err
		}

		setLogLevel(cfg.LogLevel)

		cmd.SilenceUsage = true
		fmt.Println(cyan(version.ShortWithApp()))

		d, err := daemon.New(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		defer slog.Info("bye")
		return d.Start(ctx)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version info",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Detailed())
	},
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "config file")
	rootCmd.Flags().StringP("data-dir", "d", "", "daemon state directory")
	rootCmd.Flags().StringP("addr", "a", "", "control plane listen address")
	rootCmd.Flags().StringP("log-level", "l", "", "log level (debug|info|warn|error)")

	rootCmd.AddCommand(versionCmd)
}

func bindConfig(cmd *cobra.Command) error {
	viper.SetEnvPrefix("PAIRMOUNT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.BindPFlag("config", cmd.Flags().Lookup("config")); err != nil {
		return err
	}
	if err := viper.BindPFlag("data_dir", cmd.Flags().Lookup("data-dir")); err != nil {
		return err
	}
	if err := viper.BindPFlag("addr", cmd.Flags().Lookup("addr")); err != nil {
		return err
	}
	return viper.BindPFlag("log_level", cmd.Flags().Lookup("log-level"))
}

// resolveConfig loads the config file (if present) and applies flag/env
// overrides on top.
func resolveConfig() (*config.Config, error) {
	cfgPath := viper.GetString("config")

	var cfg *config.Config
	if utils.FileExists(cfgPath) {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		slog.Warn("config file not found, starting with no pairs", "path", cfgPath)
		cfg = &config.Config{Path: cfgPath}
	}

	if v := viper.GetString("data_dir"); v != "" {
		cfg.DataDir = v
	}
	if v := viper.GetString("addr"); v != "" {
		cfg.ControlPlaneAddr = v
	}
	if v := viper.GetString("log_level"); v != "" {
		cfg.LogLevel = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setLogLevel(level string) {
	switch strings.ToLower(level) {
	case "debug":
		logLevel.Set(slog.LevelDebug)
	case "warn":
		logLevel.Set(slog.LevelWarn)
	case "error":
		logLevel.Set(slog.LevelError)
	default:
		logLevel.Set(slog.LevelInfo)
	}
}
