package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"port": "9000",
		"provider_base_url": "https://api.example.com/v1",
		"provider_model": "test-model",
		"workers": 8,
		"relaxation_order": "category,location"
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "9000", cfg.Port)
	require.Equal(t, 8, cfg.Workers)
	require.Equal(t, []string{"category", "location"}, cfg.RelaxationSteps())
	// незаданные поля остаются на значениях по умолчанию
	require.Equal(t, 15, cfg.RetrievalK)
	require.True(t, cfg.ProviderEnabled())
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"workers": 2}`), 0o644))

	t.Setenv("WORKERS", "16")
	t.Setenv("PROVIDER_TIMEOUT", "2m")
	t.Setenv("RETRIEVAL_FLOOR", "0.5")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 16, cfg.Workers)
	require.Equal(t, 2*time.Minute, cfg.ProviderTimeout)
	require.InDelta(t, 0.5, cfg.RetrievalFloor, 1e-9)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/config.json")
	require.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero workers", func(c *Config) { c.Workers = 0 }},
		{"negative retrieval k", func(c *Config) { c.RetrievalK = -1 }},
		{"floor above one", func(c *Config) { c.RetrievalFloor = 1.5 }},
		{"zero rate", func(c *Config) { c.RequestsPerSecond = 0 }},
		{"unknown relaxation step", func(c *Config) { c.RelaxationOrder = "location,price" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestProviderEnabled(t *testing.T) {
	cfg := DefaultConfig()
	require.False(t, cfg.ProviderEnabled())
	cfg.ProviderBaseURL = "https://api.example.com/v1"
	require.True(t, cfg.ProviderEnabled())
}
