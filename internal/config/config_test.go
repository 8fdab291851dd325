package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
specs:
  petstore:
    url: ./petstore.yaml
    serverUrl: http://api.example.com
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 30*time.Second, cfg.HTTP.CallTimeout.Std())
	require.Equal(t, 256*1024, cfg.HTTP.MaxResponseLog)
	require.Equal(t, "info", cfg.Log.Level)
	require.Empty(t, cfg.Metrics.Addr)
}

func TestLoadParsesFullConfig(t *testing.T) {
	path := writeConfig(t, `
specs:
  petstore:
    url: http://example.com/petstore.yaml
    serverUrl: http://api.example.com
    apiKey: s3cret
  weather:
    url: ./weather.json
    serverUrl: https://weather.example.com
http:
  callTimeout: 45s
  maxResponseLog: 1024
log:
  level: debug
metrics:
  addr: ":9090"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 45*time.Second, cfg.HTTP.CallTimeout.Std())
	require.Equal(t, 1024, cfg.HTTP.MaxResponseLog)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, ":9090", cfg.Metrics.Addr)
	require.Equal(t, "s3cret", cfg.Specs["petstore"].APIKey)
	require.Equal(t, []string{"petstore", "weather"}, cfg.SortedSpecKeys())
}

func TestLoadFallsBackToEnvironment(t *testing.T) {
	path := writeConfig(t, `
specs:
  petstore:
    url: ./petstore.yaml
    serverUrl: http://api.example.com
`)
	t.Setenv(EnvConfigPath, path)

	cfg, err := Load("")
	require.NoError(t, err)
	require.Contains(t, cfg.Specs, "petstore")
}

func TestLoadErrors(t *testing.T) {
	t.Run("no path anywhere", func(t *testing.T) {
		t.Setenv(EnvConfigPath, "")
		_, err := Load("")
		require.Error(t, err)
		require.Contains(t, err.Error(), EnvConfigPath)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load("/does/not/exist.yaml")
		require.Error(t, err)
	})

	t.Run("no specs", func(t *testing.T) {
		_, err := Load(writeConfig(t, "log:\n  level: info\n"))
		require.Error(t, err)
		require.Contains(t, err.Error(), "specs")
	})

	t.Run("bad server url", func(t *testing.T) {
		_, err := Load(writeConfig(t, `
specs:
  petstore:
    url: ./petstore.yaml
    serverUrl: not-a-url
`))
		require.Error(t, err)
	})

	t.Run("bad log level", func(t *testing.T) {
		_, err := Load(writeConfig(t, `
specs:
  petstore:
    url: ./petstore.yaml
    serverUrl: http://api.example.com
log:
  level: loud
`))
		require.Error(t, err)
	})

	t.Run("bad duration", func(t *testing.T) {
		_, err := Load(writeConfig(t, `
specs:
  petstore:
    url: ./petstore.yaml
    serverUrl: http://api.example.com
http:
  callTimeout: soon
`))
		require.Error(t, err)
	})
}

func TestDurationUnmarshal(t *testing.T) {
	t.Parallel()

	var h HTTPConfig
	require.NoError(t, yaml.Unmarshal([]byte("callTimeout: 1500ms"), &h))
	require.Equal(t, 1500*time.Millisecond, h.CallTimeout.Std())

	h = HTTPConfig{}
	require.NoError(t, yaml.Unmarshal([]byte("callTimeout: 1000000"), &h))
	require.Equal(t, time.Millisecond, h.CallTimeout.Std())
}
