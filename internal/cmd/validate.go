package cmd

import (
	"embed"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/gantry-sh/gantry/internal/config"
)

//go:embed schemas/gantry.v1.schema.json
var schemaFS embed.FS

var validateManifest string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the deployment manifest",
	Long: `Validates gantry.yaml against the manifest JSON Schema, then checks
the semantic rules the platform enforces (resource bounds, scaling
bounds, port range).`,
	RunE: runValidateCmd,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVar(&validateManifest, "manifest", defaultManifestPath, "Deployment manifest path")
}

func runValidateCmd(cmd *cobra.Command, args []string) error {
	fmt.Printf("🔍 Validating %s\n", validateManifest)

	data, err := os.ReadFile(validateManifest)
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}

	result, err := validateAgainstSchema(data)
	if err != nil {
		return err
	}

	if !result.Valid() {
		fmt.Println("\n❌ Schema validation failed:")
		for i, desc := range result.Errors() {
			fmt.Printf("  %d. %s: %s\n", i+1, desc.Field(), desc.Description())
		}
		return fmt.Errorf("validation failed with %d errors", len(result.Errors()))
	}

	// The loader applies defaults and runs the semantic checks.
	if _, err := config.Load(validateManifest); err != nil {
		return err
	}

	fmt.Printf("✅ %s is valid\n", validateManifest)
	return nil
}

// validateAgainstSchema checks raw manifest YAML against the embedded
// JSON Schema. The YAML is decoded to plain Go values first; the schema
// library only speaks JSON shapes.
func validateAgainstSchema(data []byte) (*gojsonschema.Result, error) {
	var document map[string]any
	if err := yaml.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if document == nil {
		document = map[string]any{}
	}

	schemaBytes, err := schemaFS.ReadFile("schemas/gantry.v1.schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest schema: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaBytes),
		gojsonschema.NewGoLoader(document),
	)
	if err != nil {
		return nil, fmt.Errorf("schema validation error: %w", err)
	}
	return result, nil
}
