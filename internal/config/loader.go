package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads and parses configuration from a file or a directory
// containing config.yaml.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}

	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return nil, fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	// Apply environment variable interpolation
	interpolated := interpolateEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	applyDefaults(&cfg)

	// Hash-verify the configuration when a .checksums file is present
	if err := verifyConfigHash(absPath); err != nil {
		return nil, err
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// DiscoverConfig finds the config location by checking standard locations.
// Priority order: $TOOLFLEET_CONFIG_DIR, ~/.config/toolfleet, /etc/toolfleet,
// ./config.yaml
func DiscoverConfig() (string, error) {
	if dir := os.Getenv("TOOLFLEET_CONFIG_DIR"); dir != "" {
		if _, err := os.Stat(dir); err == nil {
			return dir, nil
		}
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		userConfigDir := filepath.Join(homeDir, ".config", "toolfleet")
		if _, err := os.Stat(userConfigDir); err == nil {
			return userConfigDir, nil
		}
	}

	systemConfigDir := "/etc/toolfleet"
	if _, err := os.Stat(systemConfigDir); err == nil {
		return systemConfigDir, nil
	}

	legacyConfigPath := "./config.yaml"
	if _, err := os.Stat(legacyConfigPath); err == nil {
		return legacyConfigPath, nil
	}

	return "", fmt.Errorf("no config found (checked: $TOOLFLEET_CONFIG_DIR, ~/.config/toolfleet, /etc/toolfleet, ./config.yaml)")
}

// applyDefaults merges default values into cfg where not explicitly set.
func applyDefaults(cfg *Config) {
	defaults := Defaults()

	if cfg.Service.Name == "" {
		cfg.Service.Name = defaults.Service.Name
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = defaults.Service.LogLevel
	}
	if cfg.Service.LogFormat == "" {
		cfg.Service.LogFormat = defaults.Service.LogFormat
	}

	if cfg.Store.Backend == "" {
		cfg.Store.Backend = defaults.Store.Backend
	}
	if cfg.Store.Backend == "sqlite" && cfg.Store.Path == "" {
		cfg.Store.Path = defaults.Store.Path
	}

	if cfg.Broker.Backend == "" {
		cfg.Broker.Backend = defaults.Broker.Backend
	}
	if cfg.Broker.Backend == "redis" && cfg.Broker.RedisURL == "" {
		cfg.Broker.RedisURL = defaults.Broker.RedisURL
	}

	if !cfg.API.Enabled && cfg.API.Listen == "" {
		cfg.API = defaults.API
	}

	if cfg.Toolkits == nil {
		cfg.Toolkits = make(map[string]ToolkitConf)
	}
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}

	switch cfg.Store.Backend {
	case "sqlite":
		if cfg.Store.Path == "" {
			return fmt.Errorf("store.path is required for the sqlite backend")
		}
	case "redis":
		if cfg.Store.RedisURL == "" {
			return fmt.Errorf("store.redis_url is required for the redis backend")
		}
		if envVarPattern.MatchString(cfg.Store.RedisURL) {
			return unresolvedEnvErr("store.redis_url", cfg.Store.RedisURL)
		}
	default:
		return fmt.Errorf("store.backend must be one of: sqlite, redis (got %q)", cfg.Store.Backend)
	}

	switch cfg.Broker.Backend {
	case "redis":
		if cfg.Broker.RedisURL == "" {
			return fmt.Errorf("broker.redis_url is required for the redis backend")
		}
		if envVarPattern.MatchString(cfg.Broker.RedisURL) {
			return unresolvedEnvErr("broker.redis_url", cfg.Broker.RedisURL)
		}
	case "inproc":
	default:
		return fmt.Errorf("broker.backend must be one of: redis, inproc (got %q)", cfg.Broker.Backend)
	}

	if cfg.API.Enabled {
		if cfg.API.Listen == "" {
			return fmt.Errorf("api.listen is required when the API is enabled")
		}
		if envVarPattern.MatchString(cfg.API.Auth.APIKey) {
			return unresolvedEnvErr("api.auth.api_key", cfg.API.Auth.APIKey)
		}
	}

	// Unresolved env vars in toolkit config leak placeholders into jobs
	for name, tk := range cfg.Toolkits {
		if !tk.Enabled {
			continue
		}
		if tk.Config != nil {
			if err := checkUnresolvedEnvVars(tk.Config, name); err != nil {
				return err
			}
		}
	}

	return nil
}

func unresolvedEnvErr(field, value string) error {
	matches := envVarPattern.FindStringSubmatch(value)
	if len(matches) > 1 {
		return fmt.Errorf("%s: environment variable ${%s} is not set", field, matches[1])
	}
	return fmt.Errorf("%s: unresolved environment variable", field)
}

// checkUnresolvedEnvVars recursively checks for ${VAR} placeholders in config values.
func checkUnresolvedEnvVars(data map[string]interface{}, toolkitName string) error {
	for key, value := range data {
		switch v := value.(type) {
		case string:
			if envVarPattern.MatchString(v) {
				matches := envVarPattern.FindStringSubmatch(v)
				if len(matches) > 1 {
					return fmt.Errorf("toolkit %q: environment variable ${%s} is not set", toolkitName, matches[1])
				}
				return fmt.Errorf("toolkit %q: unresolved environment variable in config.%s", toolkitName, key)
			}
		case map[string]interface{}:
			if err := checkUnresolvedEnvVars(v, toolkitName); err != nil {
				return err
			}
		}
	}
	return nil
}

func verifyConfigHash(configPath string) error {
	dir := filepath.Dir(configPath)
	checksums, err := LoadChecksums(dir)
	if err != nil {
		// No .checksums file means integrity checking is not enabled here.
		return nil
	}

	basename := filepath.Base(configPath)
	expectedHash, ok := checksums.Hashes[basename]
	if !ok {
		return fmt.Errorf("config file %s has no hash in checksums at %s\n"+
			"Run: toolfleet config lock --config %s", basename, dir, dir)
	}

	if err := VerifyFileHash(configPath, expectedHash); err != nil {
		return fmt.Errorf("config verification failed for %s: %w\n"+
			"This indicates tampering or unauthorized modification.\n"+
			"If you edited this file intentionally, run: toolfleet config lock --config %s", configPath, err, dir)
	}

	return nil
}
