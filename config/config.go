package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the main configuration
type Config struct {
	Version  string   `yaml:"version"`
	Corpus   string   `yaml:"corpus"`   // rule corpus JSON path
	Glossary string   `yaml:"glossary"` // terminology YAML path
	AuditDir string   `yaml:"audit_dir"`
	Database string   `yaml:"database"` // feature/scan DB path
	Model    Model    `yaml:"model,omitempty"`
	Pipeline Pipeline `yaml:"pipeline,omitempty"`
	Policies []string `yaml:"policies,omitempty"` // escalation policy files
}

// Model configures the external model capability.
type Model struct {
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// Pipeline configures classification behavior.
type Pipeline struct {
	ArbiterRuns  int           `yaml:"arbiter_runs"`
	TopK         int           `yaml:"top_k"`
	CallTimeout  time.Duration `yaml:"call_timeout"`
	BatchWorkers int           `yaml:"batch_workers"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Version:  "1",
		Corpus:   "data/legal_db.json",
		Glossary: "data/terminology.yaml",
		AuditDir: "audit",
		Database: "data/database.json",
		Model: Model{
			Temperature: 0.1,
			MaxTokens:   1200,
		},
		Pipeline: Pipeline{
			ArbiterRuns:  3,
			TopK:         25,
			CallTimeout:  60 * time.Second,
			BatchWorkers: 4,
		},
	}
}

// LoadConfig loads configuration from file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate ensures config has required fields
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("version is required")
	}
	if c.Corpus == "" {
		return fmt.Errorf("corpus path is required")
	}
	if c.AuditDir == "" {
		return fmt.Errorf("audit_dir is required")
	}
	if c.Pipeline.ArbiterRuns < 0 {
		return fmt.Errorf("arbiter_runs cannot be negative")
	}
	if c.Pipeline.BatchWorkers < 0 {
		return fmt.Errorf("batch_workers cannot be negative")
	}
	return nil
}
