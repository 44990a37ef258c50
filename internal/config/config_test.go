package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCarriesProductionConfiguration(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ".", cfg.Build.Context)
	assert.Equal(t, "Dockerfile", cfg.Build.Dockerfile)

	assert.Equal(t, 8080, cfg.Deploy.Port)
	assert.Equal(t, "2Gi", cfg.Deploy.Memory)
	assert.Equal(t, 1, cfg.Deploy.CPU)
	assert.Equal(t, 0, cfg.Deploy.MinInstances)
	assert.Equal(t, 10, cfg.Deploy.MaxInstances)
	assert.Equal(t, 80, cfg.Deploy.Concurrency)
	assert.Equal(t, 300, cfg.Deploy.TimeoutSeconds)
	assert.Equal(t, AccessPublic, cfg.Deploy.Access)

	assert.Equal(t, map[string]string{
		"STREAMLIT_SERVER_PORT":     "8080",
		"STREAMLIT_SERVER_HEADLESS": "true",
		"HF_HOME":                   "/tmp/hf_cache",
	}, cfg.Deploy.Env)

	assert.Equal(t, "/_stcore/health", cfg.Verify.Path)
	assert.Equal(t, 120, cfg.Verify.TimeoutSeconds)
	assert.Equal(t, 5, cfg.Verify.IntervalSeconds)

	assert.NoError(t, cfg.Validate())
}

func TestLoadAppliesDefaultsToPartialManifest(t *testing.T) {
	path := writeManifest(t, `
deploy:
  max_instances: 25
  env:
    GROQ_API_KEY: placeholder
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	// Overridden value
	assert.Equal(t, 25, cfg.Deploy.MaxInstances)

	// Defaults fill the rest
	assert.Equal(t, 8080, cfg.Deploy.Port)
	assert.Equal(t, "2Gi", cfg.Deploy.Memory)

	// User env is kept alongside the defaults
	assert.Equal(t, "placeholder", cfg.Deploy.Env["GROQ_API_KEY"])
	assert.Equal(t, "true", cfg.Deploy.Env["STREAMLIT_SERVER_HEADLESS"])
}

func TestLoadUserEnvWinsOverDefault(t *testing.T) {
	path := writeManifest(t, `
deploy:
  env:
    HF_HOME: /data/cache
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/cache", cfg.Deploy.Env["HF_HOME"])
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "gantry.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeManifest(t, "deploy: [not a map")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse manifest")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Deploy.Port = 70000 },
			wantErr: "deploy.port",
		},
		{
			name:    "negative port",
			mutate:  func(c *Config) { c.Deploy.Port = -1 },
			wantErr: "deploy.port",
		},
		{
			name:    "bad memory quantity",
			mutate:  func(c *Config) { c.Deploy.Memory = "2XL" },
			wantErr: "deploy.memory",
		},
		{
			name:    "memory without unit",
			mutate:  func(c *Config) { c.Deploy.Memory = "2048" },
			wantErr: "deploy.memory",
		},
		{
			name:    "cpu too large",
			mutate:  func(c *Config) { c.Deploy.CPU = 9 },
			wantErr: "deploy.cpu",
		},
		{
			name:    "negative min instances",
			mutate:  func(c *Config) { c.Deploy.MinInstances = -1 },
			wantErr: "deploy.min_instances",
		},
		{
			name: "min exceeds max",
			mutate: func(c *Config) {
				c.Deploy.MinInstances = 5
				c.Deploy.MaxInstances = 2
			},
			wantErr: "must not exceed",
		},
		{
			name:    "concurrency too large",
			mutate:  func(c *Config) { c.Deploy.Concurrency = 2000 },
			wantErr: "deploy.concurrency",
		},
		{
			name:    "timeout too large",
			mutate:  func(c *Config) { c.Deploy.TimeoutSeconds = 7200 },
			wantErr: "deploy.timeout_seconds",
		},
		{
			name:    "unknown access mode",
			mutate:  func(c *Config) { c.Deploy.Access = "vpn-only" },
			wantErr: "deploy.access",
		},
		{
			name:    "env name with equals sign",
			mutate:  func(c *Config) { c.Deploy.Env["BAD=NAME"] = "x" },
			wantErr: "deploy.env",
		},
		{
			name:    "relative verify path",
			mutate:  func(c *Config) { c.Verify.Path = "health" },
			wantErr: "verify.path",
		},
		{
			name: "interval exceeds timeout",
			mutate: func(c *Config) {
				c.Verify.IntervalSeconds = 600
				c.Verify.TimeoutSeconds = 60
			},
			wantErr: "verify.interval_seconds",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gantry.yaml")

	cfg := Default()
	cfg.Deploy.MaxInstances = 3
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gantry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
