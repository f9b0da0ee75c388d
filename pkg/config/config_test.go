package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDevelopmentDefaults(t *testing.T) {
	t.Setenv("ENV", EnvDevelopment)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/api", cfg.APIPrefix)
	assert.Equal(t, "dev_secret", cfg.JWT.Secret)
}

func TestLoadProductionRejectsDefaultSecrets(t *testing.T) {
	t.Setenv("ENV", EnvProduction)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be set in production")
}

func TestLoadProductionWithSecrets(t *testing.T) {
	t.Setenv("ENV", EnvProduction)
	t.Setenv("JWT_SECRET", "s3cr3t-jwt")
	t.Setenv("FILES_SIGNED_URL_SECRET", "s3cr3t-files")
	t.Setenv("REPORTS_SIGNED_URL_SECRET", "s3cr3t-reports")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t-jwt", cfg.JWT.Secret)
}
