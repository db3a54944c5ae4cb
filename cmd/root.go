// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/crashreporter/internal/config"
	"github.com/xkilldash9x/crashreporter/internal/crashlog"
	"github.com/xkilldash9x/crashreporter/internal/observability"
)

type contextKey string

const configKey contextKey = "config"

// crashDir is the first configured crash directory, kept for the panic sentinel.
var crashDir atomic.Value

// CrashDir returns the directory the panic sentinel writes into.
func CrashDir() string {
	if d, ok := crashDir.Load().(string); ok && d != "" {
		return d
	}
	defaults := config.NewDefaultConfig().Reporter().CrashDirs
	if dirs, err := crashlog.ExpandDirs(defaults[:1]); err == nil {
		return dirs[0]
	}
	return ""
}

// NewRootCommand builds the command tree. Each call returns a fresh tree so
// flags never leak between executions.
func NewRootCommand() *cobra.Command {
	var (
		cfgFile       string
		submissionURL string
		policy        string
		crashDirs     []string
	)

	cmd := &cobra.Command{
		Use:           "crashreporter",
		Short:         "Finds new crash logs and reports them to a collection endpoint.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(v, cfgFile); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}
			cfg, err := config.UnmarshalFromViper(v)
			if err != nil {
				return err
			}

			// Flags win over file and environment.
			if cmd.Flags().Changed("submission-url") {
				cfg.SetSubmissionURL(submissionURL)
			}
			if cmd.Flags().Changed("policy") {
				cfg.SetNonInteractivePolicy(config.NonInteractivePolicy(policy))
			}
			if cmd.Flags().Changed("crash-dir") {
				cfg.SetCrashDirs(crashDirs)
			}

			observability.InitializeLogger(cfg.Logger())
			if dirs, err := crashlog.ExpandDirs(cfg.Reporter().CrashDirs); err == nil && len(dirs) > 0 {
				crashDir.Store(dirs[0])
			}

			logger := observability.GetLogger()
			logger.Debug("Starting crashreporter", zap.String("version", Version), zap.String("command", cmd.Name()))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./crashreporter.yaml)")
	cmd.PersistentFlags().StringVar(&submissionURL, "submission-url", "", "collection endpoint (overrides reporter.submission_url)")
	cmd.PersistentFlags().StringVar(&policy, "policy", "", "non-interactive policy: submit or defer")
	cmd.PersistentFlags().StringSliceVar(&crashDirs, "crash-dir", nil, "crash log directory (repeatable, overrides reporter.crash_dirs)")
	cmd.SetVersionTemplate(`{{printf "crashreporter version %s\n" .Version}}`)

	cmd.AddCommand(
		newCheckCmd(),
		newPendingCmd(),
		newSendCmd(),
		newIgnoreCmd(),
		newCollectCmd(),
		newVersionCmd(),
	)
	return cmd
}

// Execute runs the command tree and logs a failure before returning it.
func Execute(ctx context.Context) error {
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			observability.GetLogger().Error("Command execution failed", zap.Error(err))
		}
		return err
	}
	return nil
}

// initializeConfig reads the config file and environment into v.
func initializeConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("crashreporter")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("CRASHREPORTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and environment apply.
	}
	return nil
}

// configFromContext returns the configuration stored by the root command.
func configFromContext(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return cfg, nil
}
