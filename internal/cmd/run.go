package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gantry-sh/gantry/internal/docker"
	"github.com/gantry-sh/gantry/internal/verifier"
)

var (
	runManifest string
	runTag      string
	runPort     int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the locally built image for a smoke test",
	Long: `Starts the locally built image with the service port published on
localhost, waits for the health endpoint and keeps it running until
interrupted. The container is stopped and removed on exit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		manifest, err := loadManifest(runManifest)
		if err != nil {
			return err
		}

		ref, err := resolveRef(ctx, manifest.Build.Context, runTag)
		if err != nil {
			return err
		}

		engine, err := newDockerClient(ctx)
		if err != nil {
			return err
		}
		defer engine.Close()

		exists, err := engine.ImageExists(ctx, ref.String())
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("image %s not found locally, run 'gantry build' first", ref.String())
		}

		fmt.Printf("🚀 Starting %s on localhost:%d\n", ref.String(), runPort)
		containerID, err := engine.RunContainer(ctx, docker.RunSpec{
			Image:         ref.String(),
			Name:          settings.Service + "-local",
			ContainerPort: manifest.Deploy.Port,
			HostPort:      runPort,
			Env:           manifest.Deploy.Env,
		})
		if err != nil {
			return err
		}

		// Cleanup must survive a cancelled ctx.
		defer func() {
			stopCtx, cancel := contextWithoutCancel(5 * time.Second)
			defer cancel()
			if err := engine.StopContainer(stopCtx, containerID, 5*time.Second); err != nil {
				printErr("⚠️  Failed to stop container: %v", err)
			}
		}()

		endpoint := fmt.Sprintf("http://localhost:%d", runPort)
		err = verifier.New(nil).Wait(ctx, verifier.Options{
			Endpoint: endpoint,
			Path:     manifest.Verify.Path,
			Timeout:  time.Duration(manifest.Verify.TimeoutSeconds) * time.Second,
			Interval: time.Duration(manifest.Verify.IntervalSeconds) * time.Second,
		})
		if err != nil {
			return err
		}

		fmt.Printf("✅ %s is serving, press Ctrl-C to stop\n", endpoint)
		<-ctx.Done()
		fmt.Println("\n🛑 Stopping")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runManifest, "manifest", defaultManifestPath, "Deployment manifest path")
	runCmd.Flags().StringVar(&runTag, "tag", "", "Image tag (default: short git revision, or 'latest')")
	runCmd.Flags().IntVar(&runPort, "port", 8080, "Host port to publish the service on")
}
