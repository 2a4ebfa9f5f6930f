package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arroweffect/imgapi/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
origin:
  base_url: https://origin.example.com
`

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load([]string{writeConfig(t, minimalConfig)}, nil)
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, int64(32<<20), cfg.Server.MaxBodySize)
	assert.Empty(t, cfg.Auth.Secret)
	assert.Equal(t, "https://origin.example.com", cfg.Origin.BaseURL)
	assert.Equal(t, config.StorageFilesystem, cfg.Storage.Type)
	assert.Equal(t, "./data", cfg.Storage.Path)
	assert.Equal(t, config.TransformLocal, cfg.Transform.Backend)
	assert.Equal(t, "imgapi/1.0", cfg.Transform.UserAgent)
	assert.Equal(t, 30*time.Second, cfg.Transform.Timeout)
	assert.Equal(t, "https://api.cloudflare.com/client/v4", cfg.Cloudflare.APIBase)
	assert.False(t, cfg.Cloudflare.PurgeEnabled())
	assert.False(t, cfg.CORS.Enabled)
	assert.Empty(t, cfg.Metrics.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := writeConfig(t, `
env: production
server:
  port: 9000
  max_body_size: 1048576
auth:
  secret: file-secret
origin:
  base_url: https://origin.example.com/images
storage:
  type: s3
  bucket: images
  endpoint: https://account.r2.cloudflarestorage.com
  region: auto
  use_path_style: true
transform:
  backend: cloudflare
  zone_host: images.example.com
  timeout: 5s
cloudflare:
  api_token: cf-token
  zone_id: zone-1
metrics:
  addr: ":9090"
log:
  level: debug
`)

	cfg, err := config.Load([]string{path}, nil)
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, int64(1<<20), cfg.Server.MaxBodySize)
	assert.Equal(t, "file-secret", cfg.Auth.Secret)
	assert.Equal(t, "https://origin.example.com/images", cfg.Origin.BaseURL)
	assert.Equal(t, config.StorageS3, cfg.Storage.Type)
	assert.Equal(t, "images", cfg.Storage.Bucket)
	assert.Equal(t, "auto", cfg.Storage.Region)
	assert.True(t, cfg.Storage.UsePathStyle)
	assert.Equal(t, config.TransformCloudflare, cfg.Transform.Backend)
	assert.Equal(t, "images.example.com", cfg.Transform.ZoneHost)
	assert.Equal(t, 5*time.Second, cfg.Transform.Timeout)
	assert.True(t, cfg.Cloudflare.PurgeEnabled())
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_ConfigFileMerge(t *testing.T) {
	base := writeConfig(t, `
server:
  port: 9000
origin:
  base_url: https://origin.example.com
log:
  level: warn
`)
	override := writeConfig(t, `
server:
  port: 9100
`)

	cfg, err := config.Load([]string{base, override}, nil)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("IMGAPI_ORIGIN_BASE_URL", "https://env-origin.example.com")
	t.Setenv("IMGAPI_AUTH_SECRET", "env-secret")
	t.Setenv("IMGAPI_SERVER_PORT", "7000")
	t.Setenv("IMGAPI_CLOUDFLARE_API_TOKEN", "env-token")
	t.Setenv("IMGAPI_CLOUDFLARE_ZONE_ID", "env-zone")

	cfg, err := config.Load([]string{writeConfig(t, "server:\n  port: 9000\n")}, nil)
	require.NoError(t, err)

	assert.Equal(t, "https://env-origin.example.com", cfg.Origin.BaseURL)
	assert.Equal(t, "env-secret", cfg.Auth.Secret)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.True(t, cfg.Cloudflare.PurgeEnabled())
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("IMGAPI_SERVER_PORT", "7000")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("port", 8080, "")
	flags.String("origin", "", "")
	flags.String("storage-type", "", "")
	require.NoError(t, flags.Parse([]string{
		"--port", "6000",
		"--origin", "https://flag-origin.example.com",
		"--storage-type", "memory",
	}))

	cfg, err := config.Load([]string{writeConfig(t, "")}, flags)
	require.NoError(t, err)

	assert.Equal(t, 6000, cfg.Server.Port)
	assert.Equal(t, "https://flag-origin.example.com", cfg.Origin.BaseURL)
	assert.Equal(t, config.StorageMemory, cfg.Storage.Type)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "missing origin",
			content: "server:\n  port: 8080\n",
		},
		{
			name:    "relative origin",
			content: "origin:\n  base_url: /images\n",
		},
		{
			name:    "invalid port",
			content: minimalConfig + "server:\n  port: 70000\n",
		},
		{
			name:    "unknown storage",
			content: minimalConfig + "storage:\n  type: ftp\n",
		},
		{
			name:    "s3 without bucket",
			content: minimalConfig + "storage:\n  type: s3\n",
		},
		{
			name:    "minio without endpoint",
			content: minimalConfig + "storage:\n  type: minio\n  bucket: images\n",
		},
		{
			name:    "filesystem without path",
			content: minimalConfig + "storage:\n  type: filesystem\n  path: \"\"\n",
		},
		{
			name:    "cloudflare without zone host",
			content: minimalConfig + "transform:\n  backend: cloudflare\n",
		},
		{
			name:    "unknown transform backend",
			content: minimalConfig + "transform:\n  backend: imgix\n",
		},
		{
			name:    "invalid log level",
			content: minimalConfig + "log:\n  level: verbose\n",
		},
		{
			name:    "invalid env",
			content: minimalConfig + "env: staging\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load([]string{writeConfig(t, tt.content)}, nil)
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "validate config")
		})
	}
}

func TestLoad_WithCORS(t *testing.T) {
	cfg, err := config.Load([]string{writeConfig(t, minimalConfig+`
cors:
  enabled: true
  allowed_origins:
    - https://app.example.com
  allowed_methods:
    - GET
  max_age: 600
`)}, nil)
	require.NoError(t, err)

	assert.True(t, cfg.CORS.Enabled)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, []string{"GET"}, cfg.CORS.AllowedMethods)
	assert.Equal(t, 600, cfg.CORS.MaxAge)
}

func TestContext(t *testing.T) {
	_, err := config.FromContext(context.Background())
	assert.Error(t, err)

	cfg := &config.Config{Env: "dev"}
	got, err := config.FromContext(config.WithContext(context.Background(), cfg))
	require.NoError(t, err)
	assert.Same(t, cfg, got)
}
