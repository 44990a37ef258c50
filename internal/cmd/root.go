// Package cmd wires the gantry command set.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gantry-sh/gantry/internal/config"
)

var (
	settings *config.Settings
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "gantry",
	Short: "One-shot build, publish and deploy pipeline for Cloud Run",
	Long: `Gantry builds a container image from a local context, publishes it to
Artifact Registry and deploys it to Cloud Run as a single sequential
pipeline, then verifies the service's health endpoint.

Deployment coordinates resolve from flags, then GANTRY_* environment
variables, then built-in defaults.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadSettings()
		if err != nil {
			return err
		}

		// Flags beat environment and defaults.
		applyFlag(cmd, "project", &loaded.Project)
		applyFlag(cmd, "region", &loaded.Region)
		applyFlag(cmd, "service", &loaded.Service)
		applyFlag(cmd, "repository", &loaded.Repository)
		if err := loaded.Validate(); err != nil {
			return err
		}

		if verbose {
			loaded.LogLevel = "debug"
		}
		config.SetupLogger(loaded.LogLevel)

		settings = loaded
		return nil
	},
}

func applyFlag(cmd *cobra.Command, name string, target *string) {
	if cmd.Flags().Changed(name) {
		*target, _ = cmd.Flags().GetString(name)
	}
}

// Execute runs the CLI with SIGINT/SIGTERM cancelling the context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().String("project", "", "Google Cloud project (default "+config.DefaultProject+")")
	rootCmd.PersistentFlags().String("region", "", "Cloud Run region (default "+config.DefaultRegion+")")
	rootCmd.PersistentFlags().String("service", "", "Cloud Run service name (default "+config.DefaultService+")")
	rootCmd.PersistentFlags().String("repository", "", "Artifact Registry repository (default "+config.DefaultRepository+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show verbose command output")
}
