package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gantry-sh/gantry/internal/builder"
)

var (
	buildContext  string
	buildManifest string
	buildTag      string
	buildNoCache  bool
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the image locally without publishing or deploying",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		manifest, err := loadManifest(buildManifest)
		if err != nil {
			return err
		}
		if buildContext != "" {
			manifest.Build.Context = buildContext
		}

		ref, err := resolveRef(ctx, manifest.Build.Context, buildTag)
		if err != nil {
			return err
		}

		engine, err := newDockerClient(ctx)
		if err != nil {
			return err
		}
		defer engine.Close()

		fmt.Printf("🔨 Building %s\n", ref.String())
		err = builder.New(engine).Build(ctx, builder.Options{
			ContextDir: manifest.Build.Context,
			Dockerfile: manifest.Build.Dockerfile,
			Ref:        ref,
			UseCache:   !buildNoCache,
		})
		if err != nil {
			return err
		}

		fmt.Printf("✅ Built %s\n", ref.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().StringVar(&buildContext, "context", "", "Build context directory (default from manifest)")
	buildCmd.Flags().StringVar(&buildManifest, "manifest", defaultManifestPath, "Deployment manifest path")
	buildCmd.Flags().StringVar(&buildTag, "tag", "", "Image tag (default: short git revision, or 'latest')")
	buildCmd.Flags().BoolVar(&buildNoCache, "no-cache", false, "Do not pull layer cache from the buildcache tag")
}
