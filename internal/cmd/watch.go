package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gantry-sh/gantry/internal/pipeline"
	"github.com/gantry-sh/gantry/internal/watch"
)

var (
	watchContext  string
	watchManifest string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Redeploy whenever the build context changes",
	Long: `Watches the build context and re-runs the full pipeline after each
burst of changes. Runs stay strictly sequential: changes arriving while
a run is in flight queue exactly one follow-up run. Stop with Ctrl-C.`,
	RunE: runWatchCmd,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchContext, "context", "", "Build context directory (default from manifest)")
	watchCmd.Flags().StringVar(&watchManifest, "manifest", defaultManifestPath, "Deployment manifest path")
}

func runWatchCmd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	manifest, err := loadManifest(watchManifest)
	if err != nil {
		return err
	}
	if watchContext != "" {
		manifest.Build.Context = watchContext
	}

	engine, err := newDockerClient(ctx)
	if err != nil {
		return err
	}
	defer engine.Close()

	flow, err := newPipeline(engine)
	if err != nil {
		return err
	}

	watcher, err := watch.New(watch.DefaultConfig(manifest.Build.Context))
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", manifest.Build.Context, err)
	}
	defer watcher.Close()
	watcher.Start(ctx)

	deploy := func() {
		// Each run re-derives the tag; the context may have a new commit.
		ref, err := resolveRef(ctx, manifest.Build.Context, "")
		if err != nil {
			printErr("❌ %v", err)
			return
		}

		result, err := flow.Run(ctx, pipeline.Options{
			Ref:      ref,
			Manifest: manifest,
			UseCache: true,
		})
		recordRun(ctx, result)
		if err != nil {
			if !errors.Is(err, ctx.Err()) {
				printErr("❌ %v", err)
			}
			return
		}
		fmt.Println(result.Endpoint)
	}

	fmt.Printf("👀 Watching %s, press Ctrl-C to stop\n", manifest.Build.Context)
	deploy()

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\n🛑 Stopping")
			return nil
		case err := <-watcher.Errors():
			printErr("⚠️  Watcher error: %v", err)
		case <-watcher.Changes():
			fmt.Println("🔁 Change detected, redeploying")
			deploy()
		}
	}
}
