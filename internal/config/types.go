package config

// Config represents the complete toolfleet configuration.
type Config struct {
	Service  ServiceConfig          `yaml:"service"`
	Store    StoreConfig            `yaml:"store"`
	Broker   BrokerConfig           `yaml:"broker"`
	API      APIConfig              `yaml:"api,omitempty"`
	Toolkits map[string]ToolkitConf `yaml:"toolkits"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// StoreConfig selects and configures the job store backend.
type StoreConfig struct {
	Backend  string `yaml:"backend"` // "sqlite" or "redis"
	Path     string `yaml:"path"`    // sqlite database file
	RedisURL string `yaml:"redis_url"`
}

// BrokerConfig selects and configures the task broker backend.
type BrokerConfig struct {
	Backend  string `yaml:"backend"` // "redis" or "inproc"
	RedisURL string `yaml:"redis_url"`
	Queue    string `yaml:"queue,omitempty"`
}

// APIConfig defines HTTP API server settings.
type APIConfig struct {
	Enabled bool          `yaml:"enabled"`
	Listen  string        `yaml:"listen"`
	Auth    APIAuthConfig `yaml:"auth"`
}

// APIAuthConfig defines API authentication settings.
type APIAuthConfig struct {
	APIKey string `yaml:"api_key"`
}

// ToolkitConf defines configuration for a single toolkit.
type ToolkitConf struct {
	Enabled bool                   `yaml:"enabled"`
	Config  map[string]interface{} `yaml:"config,omitempty"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "toolfleet",
			LogLevel:  "info",
			LogFormat: "json",
		},
		Store: StoreConfig{
			Backend: "sqlite",
			Path:    "./data/jobs.db",
		},
		Broker: BrokerConfig{
			Backend:  "redis",
			RedisURL: "redis://localhost:6379/0",
		},
		API: APIConfig{
			Enabled: false,
			Listen:  "127.0.0.1:8080",
		},
		Toolkits: make(map[string]ToolkitConf),
	}
}
