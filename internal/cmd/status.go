package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gantry-sh/gantry/internal/deployer"
	"github.com/gantry-sh/gantry/internal/gcloud"
	"github.com/gantry-sh/gantry/internal/verifier"
)

var statusManifest string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the service endpoint and its current readiness",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		manifest, err := loadManifest(statusManifest)
		if err != nil {
			return err
		}

		cloud, err := gcloud.NewExecutor(verbose)
		if err != nil {
			return err
		}

		d := deployer.New(cloud, deployer.Target{
			Project: settings.Project,
			Region:  settings.Region,
			Service: settings.Service,
		}, nil)

		endpoint, err := d.ServiceURL(ctx)
		if err != nil {
			return err
		}

		probeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()

		if err := verifier.New(nil).Probe(probeCtx, endpoint, manifest.Verify.Path); err != nil {
			fmt.Printf("⚠️  %s is not ready: %v\n", settings.Service, err)
		} else {
			fmt.Printf("✅ %s is ready\n", settings.Service)
		}

		fmt.Println(endpoint)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVar(&statusManifest, "manifest", defaultManifestPath, "Deployment manifest path")
}
