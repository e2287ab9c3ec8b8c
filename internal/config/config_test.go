package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Config_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.True(t, cfg.Fronting.Enabled)
	assert.Equal(t, "www.google.com", cfg.Fronting.FrontHost)
	assert.Equal(t, "216.239.36.36:443", cfg.Fronting.FrontAddr)
	assert.Equal(t, "google-public-dns-a.google.com", cfg.Fronting.ResolverHost)
	assert.Equal(t, []string{"googlevideo.com"}, cfg.Fronting.MediaDomains)
	assert.Equal(t, 30*time.Second, cfg.Transport.Timeout)
	assert.Equal(t, 2, cfg.Transport.MaxRetries)
	assert.Equal(t, "./downloads", cfg.Download.OutDir)
	assert.Equal(t, "8080", cfg.API.Port)
}

func Test_Config_EnvOverride(t *testing.T) {
	t.Setenv("VGET_TRANSPORT_MAX_RETRIES", "5")
	t.Setenv("VGET_FRONTING_ENABLED", "false")
	t.Setenv("VGET_DOWNLOAD_OUT_DIR", "/tmp/media")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Transport.MaxRetries)
	assert.False(t, cfg.Fronting.Enabled)
	assert.Equal(t, "/tmp/media", cfg.Download.OutDir)
}

func Test_Config_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
transport:
  timeout: 10s
  max_retries: 1
fronting:
  front_host: alt.front.example
  media_domains:
    - media.example
    - cdn.example
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.Transport.Timeout)
	assert.Equal(t, 1, cfg.Transport.MaxRetries)
	assert.Equal(t, "alt.front.example", cfg.Fronting.FrontHost)
	assert.Equal(t, []string{"media.example", "cdn.example"}, cfg.Fronting.MediaDomains)
	// Unset keys keep their defaults
	assert.Equal(t, "216.239.36.36:443", cfg.Fronting.FrontAddr)
}

func Test_Config_FileMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func Test_Config_Validation(t *testing.T) {
	t.Setenv("VGET_TRANSPORT_MAX_RETRIES", "-1")
	_, err := Load("")
	assert.Error(t, err)
}

func Test_Config_FrontingRequiredFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
fronting:
  enabled: true
  front_host: ""
`), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
