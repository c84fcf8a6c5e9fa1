package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 24, cfg.JWT.ExpirationHours)
	assert.Equal(t, "notifications", cfg.Notify.Queue)
	assert.InDelta(t, 0.20, cfg.Billing.TVARate, 1e-9)
	assert.Equal(t, 30, cfg.Billing.DefaultDueDays)
	assert.Equal(t, 50, cfg.Matching.TopN)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	content := `
server:
  port: 9090
billing:
  tva_rate: 0.1
  default_due_days: 45
matching:
  top_n: 10
  experience_gate: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.InDelta(t, 0.1, cfg.Billing.TVARate, 1e-9)
	assert.Equal(t, 45, cfg.Billing.DefaultDueDays)
	assert.Equal(t, 10, cfg.Matching.TopN)
	assert.True(t, cfg.Matching.ExperienceGate)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PIPELINE_SERVER_PORT", "7000")
	t.Setenv("DATABASE_URL", "postgres://localhost/pipeline")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("PIPELINE_MATCHING_WORKERS", "8")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "postgres://localhost/pipeline", cfg.Database.URL)
	assert.Equal(t, "0123456789abcdef0123456789abcdef", cfg.JWT.Secret)
	assert.Equal(t, 8, cfg.Matching.Workers)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Server.Port = 0
	cfg.Billing.TVARate = 1.5
	cfg.Matching.TopN = 0

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "billing.tva_rate")
	assert.Contains(t, err.Error(), "matching.top_n")
}

func TestNewJWTConfig(t *testing.T) {
	tests := []struct {
		name     string
		settings JWTSettings
		wantErr  string
	}{
		{"valid", JWTSettings{Secret: "0123456789abcdef0123456789abcdef", ExpirationHours: 12}, ""},
		{"missing secret", JWTSettings{ExpirationHours: 12}, "required"},
		{"short secret", JWTSettings{Secret: "short", ExpirationHours: 12}, "at least 32 bytes"},
		{"zero expiration", JWTSettings{Secret: "0123456789abcdef0123456789abcdef"}, "at least 1 hour"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := NewJWTConfig(tt.settings)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.settings.Secret, cfg.Secret)
			assert.Equal(t, 12, cfg.ExpirationHours)
		})
	}
}

func TestLoad_RateLimit(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 1000, cfg.RateLimit.DefaultLimit)
	assert.Equal(t, time.Minute, cfg.RateLimit.DefaultWindow)

	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	content := `
rate_limit:
  default_limit: 50
  default_window: 30s
  whitelist: ["10.0.0.1", "10.0.0.2"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.RateLimit.DefaultLimit)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.DefaultWindow)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.RateLimit.Whitelist)

	cfg.RateLimit.DefaultLimit = 0
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate_limit.default_limit")

	cfg.RateLimit.Enabled = false
	assert.NoError(t, cfg.Validate())
}
