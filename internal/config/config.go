// Package config resolves tool settings from three layers: built-in
// defaults, an optional autoflow.yaml file, and AUTOFLOW_* environment
// variables, in that order of increasing precedence. Command-line flags sit
// on top and are applied by the CLI layer, not here.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the settings file looked up in the working directory when
// no explicit path is given.
const DefaultFile = "autoflow.yaml"

// Environment variable names. The schema package reads the first two itself
// for standalone use; the names must stay in sync.
const (
	EnvServerURL        = "AUTOFLOW_COMFYUI_SERVER_URL"
	EnvObjectInfoSource = "AUTOFLOW_OBJECT_INFO_SOURCE"
	EnvTimeoutS         = "AUTOFLOW_TIMEOUT_S"
	EnvSubgraphMaxDepth = "AUTOFLOW_SUBGRAPH_MAX_DEPTH"
	EnvClientID         = "AUTOFLOW_SUBMIT_CLIENT_ID"
	EnvOutputPath       = "AUTOFLOW_OUTPUT_PATH"
	EnvIncludeMeta      = "AUTOFLOW_INCLUDE_META"
	EnvManifestDir      = "AUTOFLOW_MANIFEST_DIR"
	EnvCachePath        = "AUTOFLOW_CACHE_PATH"
	EnvCacheMaxAgeS     = "AUTOFLOW_CACHE_MAX_AGE_S"
	EnvLogLevel         = "AUTOFLOW_LOG_LEVEL"
	EnvLogFormat        = "AUTOFLOW_LOG_FORMAT"
)

// Settings is the resolved tool configuration.
type Settings struct {
	ServerURL        string `yaml:"server_url"`
	ObjectInfoSource string `yaml:"object_info_source"`
	TimeoutS         int    `yaml:"timeout_s"`
	SubgraphMaxDepth int    `yaml:"subgraph_max_depth"`
	ClientID         string `yaml:"client_id"`
	OutputPath       string `yaml:"output_path"`
	IncludeMeta      bool   `yaml:"include_meta"`
	ManifestDir      string `yaml:"manifest_dir"`
	CachePath        string `yaml:"cache_path"`
	CacheMaxAgeS     int    `yaml:"cache_max_age_s"`
	LogLevel         string `yaml:"log_level"`
	LogFormat        string `yaml:"log_format"`
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	return Settings{
		TimeoutS:         30,
		SubgraphMaxDepth: 99,
		ClientID:         "autoflow",
		OutputPath:       "./",
		LogLevel:         "info",
		LogFormat:        "text",
	}
}

// Load resolves settings. An explicit path must exist; the default file is
// optional. Environment variables are applied on top of whatever the file
// set.
func Load(path string) (Settings, error) {
	s := Defaults()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &s); err != nil {
			return Settings{}, fmt.Errorf("parsing settings file %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// No settings file is fine.
	default:
		return Settings{}, fmt.Errorf("reading settings file %s: %w", path, err)
	}

	if err := s.applyEnv(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s *Settings) applyEnv() error {
	setStr := func(env string, dst *string) {
		if v, ok := os.LookupEnv(env); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	var firstErr error
	setInt := func(env string, dst *int) {
		v, ok := os.LookupEnv(env)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("invalid %s value %q: %w", env, v, err)
			}
			return
		}
		*dst = n
	}
	setBool := func(env string, dst *bool) {
		v, ok := os.LookupEnv(env)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "on":
			*dst = true
		case "0", "false", "no", "off":
			*dst = false
		default:
			if firstErr == nil {
				firstErr = fmt.Errorf("invalid %s value %q: want a boolean", env, v)
			}
		}
	}

	setStr(EnvServerURL, &s.ServerURL)
	setStr(EnvObjectInfoSource, &s.ObjectInfoSource)
	setInt(EnvTimeoutS, &s.TimeoutS)
	setInt(EnvSubgraphMaxDepth, &s.SubgraphMaxDepth)
	setStr(EnvClientID, &s.ClientID)
	setStr(EnvOutputPath, &s.OutputPath)
	setBool(EnvIncludeMeta, &s.IncludeMeta)
	setStr(EnvManifestDir, &s.ManifestDir)
	setStr(EnvCachePath, &s.CachePath)
	setInt(EnvCacheMaxAgeS, &s.CacheMaxAgeS)
	setStr(EnvLogLevel, &s.LogLevel)
	setStr(EnvLogFormat, &s.LogFormat)
	return firstErr
}

// Timeout returns the HTTP timeout as a duration.
func (s Settings) Timeout() time.Duration {
	return time.Duration(s.TimeoutS) * time.Second
}

// CacheMaxAge returns the schema cache freshness window; zero disables the
// age check.
func (s Settings) CacheMaxAge() time.Duration {
	return time.Duration(s.CacheMaxAgeS) * time.Second
}
