package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gantry-sh/gantry/internal/pipeline"
	"github.com/gantry-sh/gantry/internal/ui"
)

var (
	deployContext    string
	deployManifest   string
	deployTag        string
	deploySkipVerify bool
	deployNoCache    bool
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Build, publish, deploy and verify in one shot",
	Long: `Runs the full pipeline: ensure the Artifact Registry repository
exists, build the image from the local context, push the versioned and
build-cache tags, deploy to Cloud Run and verify the health endpoint.

Stages run strictly in order and the first failure aborts the run.
Nothing is retried and nothing is rolled back automatically; a failed
verification leaves the new revision serving and exits non-zero.`,
	RunE: runDeployCmd,
}

func init() {
	rootCmd.AddCommand(deployCmd)
	deployCmd.Flags().StringVar(&deployContext, "context", "", "Build context directory (default from manifest)")
	deployCmd.Flags().StringVar(&deployManifest, "manifest", defaultManifestPath, "Deployment manifest path")
	deployCmd.Flags().StringVar(&deployTag, "tag", "", "Image tag (default: short git revision, or 'latest')")
	deployCmd.Flags().BoolVar(&deploySkipVerify, "skip-verify", false, "Skip the post-deploy health probe")
	deployCmd.Flags().BoolVar(&deployNoCache, "no-cache", false, "Do not pull layer cache from the buildcache tag")
}

func runDeployCmd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	manifest, err := loadManifest(deployManifest)
	if err != nil {
		return err
	}
	if deployContext != "" {
		manifest.Build.Context = deployContext
	}

	ref, err := resolveRef(ctx, manifest.Build.Context, deployTag)
	if err != nil {
		return err
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

	spinner := ui.Spinner("waiting for healthy response")
	result, err := flow.Run(ctx, pipeline.Options{
		Ref:        ref,
		Manifest:   manifest,
		UseCache:   !deployNoCache,
		SkipVerify: deploySkipVerify,
		OnProbe:    func(error) { spinner.Add(1) },
	})
	spinner.Finish()
	recordRun(ctx, result)

	if err != nil {
		var se *pipeline.StageError
		if errors.As(err, &se) && se.Stage == pipeline.StageVerify {
			// The deploy is done; report where it is and what failed.
			printErr("⚠️  Deployed but not ready: %v", se.Err)
			printErr("   Roll back manually with 'gantry rollback' if needed.")
			fmt.Println(result.Endpoint)
		}
		return err
	}

	fmt.Println(result.Endpoint)
	return nil
}
