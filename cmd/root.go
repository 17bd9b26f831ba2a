package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aiphotofinder/photofinder/cmd/enrich"
	"github.com/aiphotofinder/photofinder/cmd/records"
	"github.com/aiphotofinder/photofinder/internal/conf"
	"github.com/aiphotofinder/photofinder/internal/logging"
	"github.com/aiphotofinder/photofinder/internal/telemetry"
)

// RootCommand creates and returns the root command
func RootCommand(ctx *conf.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "photofinder",
		Short:         "Tag images with keywords and descriptions from a local vision model",
		Version:       ctx.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, ctx); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		enrich.Command(ctx),
		records.Command(ctx),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return initialize(ctx)
	}

	return rootCmd
}

// initialize loads the configuration and sets up logging and telemetry
// before any subcommand runs.
func initialize(ctx *conf.Context) error {
	settings, err := conf.Load(ctx.ConfigFile)
	if err != nil {
		return err
	}
	*ctx.Settings = *settings

	if ctx.Settings.Debug {
		logging.SetLevel(slog.LevelDebug)
	}

	if logCfg := ctx.Settings.Main.Log; logCfg.Enabled {
		closeFn, err := logging.EnableFileMirror(conf.GetBasePath(logCfg.Path), logging.FileConfig{
			MaxSizeMB:  logCfg.MaxSize,
			MaxBackups: logCfg.MaxBackups,
			MaxAgeDays: logCfg.MaxAge,
		})
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		ctx.OnClose(closeFn)
	}

	if err := telemetry.InitSentry(ctx.Settings, ctx.Version); err != nil {
		return err
	}
	ctx.OnClose(func() error {
		telemetry.Shutdown()
		return nil
	})

	return nil
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, ctx *conf.Context) error {
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")
	rootCmd.PersistentFlags().StringVarP(&ctx.ConfigFile, "config", "c", "", "Path to the config file")

	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
