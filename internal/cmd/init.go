package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gantry-sh/gantry/pkg/xos"
)

var initForce bool

// starterManifest carries the production deployment configuration as
// explicit values, so a fresh manifest documents what actually ships.
const starterManifest = `# Gantry deployment manifest.
# Every value shown is the default; delete anything you do not change.

build:
  context: .
  dockerfile: Dockerfile

deploy:
  port: 8080
  memory: 2Gi
  cpu: 1
  min_instances: 0
  max_instances: 10
  concurrency: 80
  timeout_seconds: 300
  access: public          # public or internal
  env:
    STREAMLIT_SERVER_PORT: "8080"
    STREAMLIT_SERVER_HEADLESS: "true"
    HF_HOME: /tmp/hf_cache

verify:
  path: /_stcore/health
  timeout_seconds: 120
  interval_seconds: 5
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter gantry.yaml",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(defaultManifestPath); err == nil && !initForce {
			return fmt.Errorf("%s already exists, use --force to overwrite", defaultManifestPath)
		}

		if err := xos.WriteFile(defaultManifestPath, []byte(starterManifest), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", defaultManifestPath, err)
		}

		fmt.Printf("✅ Wrote %s\n", defaultManifestPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing manifest")
}
