// Package config loads the gantry.yaml deployment manifest and the
// process-level settings that select the deployment target.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gantry-sh/gantry/pkg/xos"
)

// Access values for the deploy.access manifest field.
const (
	AccessPublic   = "public"
	AccessInternal = "internal"
)

// Config represents the gantry.yaml deployment manifest. The manifest
// describes how the service is built, deployed and verified; where it is
// deployed comes from Settings. A missing manifest means Default().
type Config struct {
	// Build configuration
	Build BuildConfig `yaml:"build"`

	// Deploy configuration applied to the service on every run
	Deploy DeployConfig `yaml:"deploy"`

	// Verify configuration for the post-deploy health probe
	Verify VerifyConfig `yaml:"verify"`
}

// BuildConfig holds image build settings.
type BuildConfig struct {
	Context    string `yaml:"context"`
	Dockerfile string `yaml:"dockerfile"`
}

// DeployConfig holds the full service configuration pushed to Cloud Run.
// Deploys replace the whole configuration; there are no partial updates.
type DeployConfig struct {
	Port           int               `yaml:"port"`
	Memory         string            `yaml:"memory"`
	CPU            int               `yaml:"cpu"`
	MinInstances   int               `yaml:"min_instances"`
	MaxInstances   int               `yaml:"max_instances"`
	Concurrency    int               `yaml:"concurrency"`
	TimeoutSeconds int               `yaml:"timeout_seconds"`
	Access         string            `yaml:"access"` // public, internal
	Env            map[string]string `yaml:"env,omitempty"`
}

// VerifyConfig holds health probe settings.
type VerifyConfig struct {
	Path            string `yaml:"path"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	IntervalSeconds int    `yaml:"interval_seconds"`
}

// Load reads and parses a gantry.yaml manifest.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	return &config, nil
}

// Default returns the manifest used when no gantry.yaml is present.
func Default() *Config {
	config := &Config{}
	config.applyDefaults()
	return config
}

// Save writes the manifest to a file atomically.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := xos.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	return nil
}

var memoryPattern = regexp.MustCompile(`^[1-9][0-9]*(Mi|Gi)$`)

// Validate checks the manifest against the platform's accepted ranges.
func (c *Config) Validate() error {
	if c.Deploy.Port < 1 || c.Deploy.Port > 65535 {
		return fmt.Errorf("deploy.port must be between 1 and 65535, got %d", c.Deploy.Port)
	}

	if !memoryPattern.MatchString(c.Deploy.Memory) {
		return fmt.Errorf("deploy.memory must be a positive Mi or Gi quantity, got %q", c.Deploy.Memory)
	}

	if c.Deploy.CPU < 1 || c.Deploy.CPU > 8 {
		return fmt.Errorf("deploy.cpu must be between 1 and 8, got %d", c.Deploy.CPU)
	}

	if c.Deploy.MinInstances < 0 {
		return fmt.Errorf("deploy.min_instances must not be negative, got %d", c.Deploy.MinInstances)
	}

	if c.Deploy.MaxInstances < 1 {
		return fmt.Errorf("deploy.max_instances must be at least 1, got %d", c.Deploy.MaxInstances)
	}

	if c.Deploy.MinInstances > c.Deploy.MaxInstances {
		return fmt.Errorf("deploy.min_instances (%d) must not exceed deploy.max_instances (%d)",
			c.Deploy.MinInstances, c.Deploy.MaxInstances)
	}

	if c.Deploy.Concurrency < 1 || c.Deploy.Concurrency > 1000 {
		return fmt.Errorf("deploy.concurrency must be between 1 and 1000, got %d", c.Deploy.Concurrency)
	}

	if c.Deploy.TimeoutSeconds < 1 || c.Deploy.TimeoutSeconds > 3600 {
		return fmt.Errorf("deploy.timeout_seconds must be between 1 and 3600, got %d", c.Deploy.TimeoutSeconds)
	}

	if c.Deploy.Access != AccessPublic && c.Deploy.Access != AccessInternal {
		return fmt.Errorf("deploy.access must be %q or %q, got %q", AccessPublic, AccessInternal, c.Deploy.Access)
	}

	for key := range c.Deploy.Env {
		if key == "" || strings.Contains(key, "=") {
			return fmt.Errorf("deploy.env contains invalid variable name %q", key)
		}
	}

	if !strings.HasPrefix(c.Verify.Path, "/") {
		return fmt.Errorf("verify.path must start with /, got %q", c.Verify.Path)
	}

	if c.Verify.TimeoutSeconds < 1 {
		return fmt.Errorf("verify.timeout_seconds must be positive, got %d", c.Verify.TimeoutSeconds)
	}

	if c.Verify.IntervalSeconds < 1 || c.Verify.IntervalSeconds > c.Verify.TimeoutSeconds {
		return fmt.Errorf("verify.interval_seconds must be between 1 and verify.timeout_seconds, got %d", c.Verify.IntervalSeconds)
	}

	return nil
}

// applyDefaults sets default values for missing fields. The deploy
// defaults are the service's production configuration; a manifest only
// needs to name the values it changes.
func (c *Config) applyDefaults() {
	if c.Build.Context == "" {
		c.Build.Context = "."
	}
	if c.Build.Dockerfile == "" {
		c.Build.Dockerfile = "Dockerfile"
	}

	if c.Deploy.Port == 0 {
		c.Deploy.Port = 8080
	}
	if c.Deploy.Memory == "" {
		c.Deploy.Memory = "2Gi"
	}
	if c.Deploy.CPU == 0 {
		c.Deploy.CPU = 1
	}
	if c.Deploy.MaxInstances == 0 {
		c.Deploy.MaxInstances = 10
	}
	if c.Deploy.Concurrency == 0 {
		c.Deploy.Concurrency = 80
	}
	if c.Deploy.TimeoutSeconds == 0 {
		c.Deploy.TimeoutSeconds = 300
	}
	if c.Deploy.Access == "" {
		c.Deploy.Access = AccessPublic
	}

	if c.Deploy.Env == nil {
		c.Deploy.Env = map[string]string{}
	}
	for key, value := range defaultEnv() {
		if _, ok := c.Deploy.Env[key]; !ok {
			c.Deploy.Env[key] = value
		}
	}

	if c.Verify.Path == "" {
		c.Verify.Path = "/_stcore/health"
	}
	if c.Verify.TimeoutSeconds == 0 {
		c.Verify.TimeoutSeconds = 120
	}
	if c.Verify.IntervalSeconds == 0 {
		c.Verify.IntervalSeconds = 5
	}
}

// defaultEnv returns the environment the Streamlit container needs: the
// server bound to the service port in headless mode, with the model cache
// on the only writable filesystem.
func defaultEnv() map[string]string {
	return map[string]string{
		"STREAMLIT_SERVER_PORT":     "8080",
		"STREAMLIT_SERVER_HEADLESS": "true",
		"HF_HOME":                   "/tmp/hf_cache",
	}
}
