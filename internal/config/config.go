package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration, loaded from a YAML file with
// secrets overridable from the environment.
type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"server"`
	Database struct {
		Driver        string `yaml:"driver"` // "memory" or "postgres"
		URL           string `yaml:"url"`
		MigrationsDir string `yaml:"migrations_dir"`
	} `yaml:"database"`
	Redis struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr"`
	} `yaml:"redis"`
	AI struct {
		Provider string `yaml:"provider"` // "openai", "deepseek" or "gemini"
		APIKey   string `yaml:"api_key"`
	} `yaml:"ai"`
	Translation struct {
		APIKey string `yaml:"api_key"`
		AppID  string `yaml:"app_id"`
	} `yaml:"translation"`
	Triage struct {
		RulesFile string `yaml:"rules_file"`
	} `yaml:"triage"`
	Telephony struct {
		Enabled       bool   `yaml:"enabled"`
		Host          string `yaml:"host"`
		Port          int    `yaml:"port"`
		VoskServerURL string `yaml:"vosk_server_url"`
		SampleRate    int    `yaml:"sample_rate"`
		SourceLang    string `yaml:"source_lang"`
		TargetLang    string `yaml:"target_lang"`
	} `yaml:"telephony"`
}

// Load reads the configuration file, applies defaults and environment
// overrides, and validates the result.
func Load(filename string) (*Config, error) {
	cfg := &Config{}
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "memory"
	}
	if c.Database.MigrationsDir == "" {
		c.Database.MigrationsDir = "migrations"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.AI.Provider == "" {
		c.AI.Provider = "openai"
	}
	if c.Telephony.Port == 0 {
		c.Telephony.Port = 8090
	}
	if c.Telephony.SampleRate == 0 {
		c.Telephony.SampleRate = 8000
	}
	if c.Telephony.SourceLang == "" {
		c.Telephony.SourceLang = "en-US"
	}
	if c.Telephony.TargetLang == "" {
		c.Telephony.TargetLang = c.Telephony.SourceLang
	}
}

// applyEnv lets deployments keep secrets out of the config file.
func (c *Config) applyEnv() {
	if v := os.Getenv("AI_API_KEY"); v != "" {
		c.AI.APIKey = v
	}
	if v := os.Getenv("TRANSLATION_API_KEY"); v != "" {
		c.Translation.APIKey = v
	}
	if v := os.Getenv("TRANSLATION_APP_ID"); v != "" {
		c.Translation.AppID = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
}

// Validate checks settings that would otherwise fail deep inside startup.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "memory", "postgres":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Database.Driver == "postgres" && c.Database.URL == "" {
		return fmt.Errorf("database url required for postgres driver")
	}
	switch c.AI.Provider {
	case "openai", "deepseek", "gemini":
	default:
		return fmt.Errorf("unknown ai provider %q", c.AI.Provider)
	}
	if c.Telephony.Enabled && c.Telephony.VoskServerURL == "" {
		return fmt.Errorf("vosk server url required when telephony is enabled")
	}
	return nil
}
