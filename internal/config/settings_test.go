package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearSettingsEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"GANTRY_PROJECT", "GANTRY_REGION", "GANTRY_SERVICE", "GANTRY_REPOSITORY", "GANTRY_LOG_LEVEL"} {
		t.Setenv(key, "")
	}
}

func TestLoadSettingsDefaults(t *testing.T) {
	clearSettingsEnv(t)

	s, err := LoadSettings()
	require.NoError(t, err)

	assert.Equal(t, "zomato-insights", s.Project)
	assert.Equal(t, "asia-south1", s.Region)
	assert.Equal(t, "zomato-app", s.Service)
	assert.Equal(t, "zomato-apps", s.Repository)
	assert.Equal(t, "info", s.LogLevel)
}

func TestLoadSettingsEnvironmentOverrides(t *testing.T) {
	clearSettingsEnv(t)
	t.Setenv("GANTRY_PROJECT", "staging-project")
	t.Setenv("GANTRY_REGION", "europe-west1")
	t.Setenv("GANTRY_LOG_LEVEL", "debug")

	s, err := LoadSettings()
	require.NoError(t, err)

	assert.Equal(t, "staging-project", s.Project)
	assert.Equal(t, "europe-west1", s.Region)
	assert.Equal(t, "debug", s.LogLevel)

	// Untouched coordinates keep their defaults.
	assert.Equal(t, "zomato-app", s.Service)
	assert.Equal(t, "zomato-apps", s.Repository)
}

func TestSettingsValidateRejectsBlankCoordinates(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *Settings)
	}{
		{"blank project", func(s *Settings) { s.Project = "" }},
		{"blank region", func(s *Settings) { s.Region = "" }},
		{"blank service", func(s *Settings) { s.Service = "" }},
		{"blank repository", func(s *Settings) { s.Repository = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Settings{
				Project:    DefaultProject,
				Region:     DefaultRegion,
				Service:    DefaultService,
				Repository: DefaultRepository,
			}
			tt.mutate(s)
			assert.Error(t, s.Validate())
		})
	}
}
