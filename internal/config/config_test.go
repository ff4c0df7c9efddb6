package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, env := range []string{
		EnvServerURL, EnvObjectInfoSource, EnvTimeoutS, EnvSubgraphMaxDepth,
		EnvClientID, EnvOutputPath, EnvIncludeMeta, EnvManifestDir,
		EnvCachePath, EnvCacheMaxAgeS, EnvLogLevel, EnvLogFormat,
	} {
		t.Setenv(env, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	s, err := Load(filepath.Join(t.TempDir(), "does-not-matter", "..", "nope.yaml"))
	require.Error(t, err, "an explicit path must exist")

	// Without an explicit path a missing default file is fine.
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { os.Chdir(cwd) })

	s, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), s)
	assert.Equal(t, 30, s.TimeoutS)
	assert.Equal(t, 99, s.SubgraphMaxDepth)
	assert.Equal(t, "autoflow", s.ClientID)
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "autoflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server_url: http://gpu-box:8188
timeout_s: 5
include_meta: true
log_level: debug
`), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://gpu-box:8188", s.ServerURL)
	assert.Equal(t, 5, s.TimeoutS)
	assert.True(t, s.IncludeMeta)
	assert.Equal(t, "debug", s.LogLevel)
	assert.Equal(t, 99, s.SubgraphMaxDepth, "unset keys keep their defaults")
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "autoflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_url: http://from-file:8188\ntimeout_s: 5\n"), 0o644))

	t.Setenv(EnvServerURL, "http://from-env:8188")
	t.Setenv(EnvTimeoutS, "60")
	t.Setenv(EnvIncludeMeta, "true")

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://from-env:8188", s.ServerURL)
	assert.Equal(t, 60, s.TimeoutS)
	assert.True(t, s.IncludeMeta)
}

func TestInvalidEnvValues(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvTimeoutS, "soon")
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	clearEnv(t)
	t.Setenv(EnvIncludeMeta, "maybe")
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { os.Chdir(cwd) })

	_, err = Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvIncludeMeta)
}

func TestDurations(t *testing.T) {
	s := Settings{TimeoutS: 45, CacheMaxAgeS: 3600}
	assert.Equal(t, "45s", s.Timeout().String())
	assert.Equal(t, "1h0m0s", s.CacheMaxAge().String())
}
