package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-logr/logr"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.miloapis.com/email-provider-autosend/pkg/autosend"
)

func newFlagSet(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("AUTOSEND_API_KEY", "")
	t.Setenv("AUTOSEND_BASE_URL", "")
	t.Setenv("AUTOSEND_LOG_LEVEL", "")
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
}

func TestLoad_FromEnv(t *testing.T) {
	isolate(t)
	t.Setenv("AUTOSEND_API_KEY", " env-key ")

	cfg, err := Load(newFlagSet(t))
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.APIKey)
	assert.Equal(t, autosend.DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.Debug())
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	isolate(t)
	t.Setenv("AUTOSEND_API_KEY", "env-key")
	t.Setenv("AUTOSEND_BASE_URL", "https://env.example.com/v1")

	cfg, err := Load(newFlagSet(t, "--api-key", "flag-key", "--log-level", "debug"))
	require.NoError(t, err)
	assert.Equal(t, "flag-key", cfg.APIKey)
	assert.Equal(t, "https://env.example.com/v1", cfg.BaseURL)
	assert.True(t, cfg.Debug())
}

func TestLoad_FromFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api_key: file-key\nbase_url: http://localhost:8080/v1\n"), 0o600))

	cfg, err := Load(newFlagSet(t, "--config", path))
	require.NoError(t, err)
	assert.Equal(t, "file-key", cfg.APIKey)
	assert.Equal(t, "http://localhost:8080/v1", cfg.BaseURL)
}

func TestLoad_MissingNamedFile(t *testing.T) {
	isolate(t)
	t.Setenv("AUTOSEND_API_KEY", "env-key")

	_, err := Load(newFlagSet(t, "--config", filepath.Join(t.TempDir(), "missing.yaml")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config")
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		errMsg string
	}{
		{
			name:   "missing API key",
			errMsg: "api_key is required",
		},
		{
			name:   "relative base URL",
			args:   []string{"--api-key", "k", "--base-url", "api.autosend.com"},
			errMsg: "base_url must be an absolute",
		},
		{
			name:   "unknown log level",
			args:   []string{"--api-key", "k", "--log-level", "trace"},
			errMsg: "invalid log_level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			_, err := Load(newFlagSet(t, tt.args...))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfig_NewClient(t *testing.T) {
	cfg := &Config{APIKey: "k", BaseURL: "https://api.example.com/v1", LogLevel: "info"}

	client, err := cfg.NewClient(logr.Discard())
	require.NoError(t, err)
	assert.Equal(t, autosend.ClientConfig{APIKey: "k", BaseURL: "https://api.example.com/v1"}, client.Config())
}
