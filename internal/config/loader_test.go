package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
service:
  name: fleet-test
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "fleet-test", cfg.Service.Name)
	assert.Equal(t, "info", cfg.Service.LogLevel)
	assert.Equal(t, "json", cfg.Service.LogFormat)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "./data/jobs.db", cfg.Store.Path)
	assert.Equal(t, "redis", cfg.Broker.Backend)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Broker.RedisURL)
	assert.False(t, cfg.API.Enabled)
}

func TestLoadAcceptsDirectory(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "service:\n  name: dirmode\n")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "dirmode", cfg.Service.Name)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoadEnvInterpolation(t *testing.T) {
	t.Setenv("FLEET_TEST_REDIS", "redis://cache.internal:6379/2")
	path := writeConfig(t, t.TempDir(), `
broker:
  backend: redis
  redis_url: ${FLEET_TEST_REDIS}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "redis://cache.internal:6379/2", cfg.Broker.RedisURL)
}

func TestLoadUnresolvedEnvVarFails(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
broker:
  backend: redis
  redis_url: ${FLEET_TEST_UNSET_VAR}
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FLEET_TEST_UNSET_VAR")
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "bad log level",
			yaml:    "service:\n  log_level: loud\n",
			wantErr: "service.log_level",
		},
		{
			name:    "unknown store backend",
			yaml:    "store:\n  backend: etcd\n",
			wantErr: "store.backend",
		},
		{
			name:    "redis store without url",
			yaml:    "store:\n  backend: redis\n",
			wantErr: "store.redis_url",
		},
		{
			name:    "unknown broker backend",
			yaml:    "broker:\n  backend: rabbit\n",
			wantErr: "broker.backend",
		},
		{
			name:    "toolkit config with unresolved env var",
			yaml:    "toolkits:\n  zabbix:\n    enabled: true\n    config:\n      token: ${FLEET_TEST_UNSET_VAR}\n",
			wantErr: "FLEET_TEST_UNSET_VAR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.yaml)
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadInprocBrokerNeedsNoURL(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
broker:
  backend: inproc
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "inproc", cfg.Broker.Backend)
	assert.Empty(t, cfg.Broker.RedisURL)
}

func TestDiscoverConfigPrefersEnvDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TOOLFLEET_CONFIG_DIR", dir)

	got, err := DiscoverConfig()
	require.NoError(t, err)
	assert.Equal(t, dir, got)
}

func TestDiscoverConfigIgnoresMissingEnvDir(t *testing.T) {
	t.Setenv("TOOLFLEET_CONFIG_DIR", filepath.Join(t.TempDir(), "does-not-exist"))
	t.Setenv("HOME", t.TempDir())

	cwd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(cwd) })
	require.NoError(t, os.Chdir(t.TempDir()))

	_, err = DiscoverConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no config found")
}
