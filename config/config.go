package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "llama3-8b-8192"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	LLM     LLMConfig     `yaml:"llm"`
	Archive ArchiveConfig `yaml:"archive"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Port    string `yaml:"port"`
	GinMode string `yaml:"gin_mode"`
}

type LLMConfig struct {
	APIKey       string        `yaml:"api_key"`
	BaseURL      string        `yaml:"base_url"`
	DefaultModel string        `yaml:"default_model"`
	Timeout      time.Duration `yaml:"timeout"`
	// Mock forces the canned completion client even when a key is present.
	Mock bool `yaml:"mock"`
}

type ArchiveConfig struct {
	Backend  string `yaml:"backend"` // "none" or "dynamodb"
	Table    string `yaml:"table"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:    "8080",
			GinMode: "debug",
		},
		LLM: LLMConfig{
			BaseURL:      DefaultBaseURL,
			DefaultModel: DefaultModel,
			Timeout:      2 * time.Minute,
		},
		Archive: ArchiveConfig{
			Backend: "none",
			Table:   "SalesAssistantArchive",
			Region:  "us-east-1",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at path (if
// path is non-empty), then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv reads the optional file named by ASSISTANT_CONFIG.
func LoadFromEnv() (*Config, error) {
	return Load(os.Getenv("ASSISTANT_CONFIG"))
}

func (c *Config) applyEnvOverrides() {
	if key := GetAPIKey(); key != "" {
		c.LLM.APIKey = key
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.LLM.DefaultModel = v
	}
	if v := os.Getenv("LLM_MOCK"); v != "" {
		c.LLM.Mock = parseBool(v)
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("GIN_MODE"); v != "" {
		c.Server.GinMode = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("ARCHIVE_BACKEND"); v != "" {
		c.Archive.Backend = v
	}
	if v := os.Getenv("ARCHIVE_TABLE"); v != "" {
		c.Archive.Table = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		c.Archive.Region = v
	}
	if v := os.Getenv("DYNAMODB_ENDPOINT"); v != "" {
		c.Archive.Endpoint = v
	}
}

func (c *Config) Validate() error {
	switch c.Archive.Backend {
	case "", "none", "dynamodb":
	default:
		return fmt.Errorf("unknown archive backend %q", c.Archive.Backend)
	}
	if c.Archive.Backend == "dynamodb" && c.Archive.Table == "" {
		return errors.New("archive.table is required for the dynamodb backend")
	}
	if c.LLM.Timeout < 0 {
		return errors.New("llm.timeout must not be negative")
	}
	return nil
}

// UseMockLLM reports whether the canned completion client should be used.
func (c *Config) UseMockLLM() bool {
	return c.LLM.Mock || c.LLM.APIKey == ""
}

func (c *Config) Addr() string {
	return ":" + strings.TrimPrefix(c.Server.Port, ":")
}

// GetAPIKey returns GROQ_API_KEY, falling back to OPENAI_API_KEY.
func GetAPIKey() string {
	if key := os.Getenv("GROQ_API_KEY"); key != "" {
		return key
	}
	return os.Getenv("OPENAI_API_KEY")
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
