// Package config provides the unified Config struct and the YAML/env
// loading pipeline used by cmd/quoracle: a single docker-compose-style
// entry point covering persistence, model providers, consensus profiles,
// executor adapters, and observability.
package config

import (
	"fmt"
	"time"
)

// Config is the complete runtime configuration, loaded from one YAML file
// and overridable via environment variables expanded into it.
type Config struct {
	Version string `yaml:"version,omitempty"`
	Name    string `yaml:"name,omitempty"`

	Logging       LoggingConfig               `yaml:"logging,omitempty"`
	Observability ObservabilityConfig         `yaml:"observability,omitempty"`
	Persistence   PersistenceConfig           `yaml:"persistence,omitempty"`
	Budget        BudgetConfig                `yaml:"budget,omitempty"`
	Models        map[string]ModelConfig      `yaml:"models,omitempty"`
	Embedders     map[string]EmbedderConfig   `yaml:"embedders,omitempty"`
	Profiles      map[string]ProfileConfig    `yaml:"profiles,omitempty"`
	Executors     ExecutorsConfig             `yaml:"executors,omitempty"`
	Secrets       map[string]SecretSeedConfig `yaml:"secrets,omitempty"`
}

// LoggingConfig configures the single log/slog handle threaded through the
// environment.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `yaml:"level,omitempty"`
	// Format is "text" or "json".
	Format string `yaml:"format,omitempty"`
}

// PersistenceConfig selects and configures the durability backend.
type PersistenceConfig struct {
	// Dialect is "memory", "sqlite", "postgres", or "mysql".
	Dialect string `yaml:"dialect,omitempty"`
	// DSN is the driver-specific connection string; unused for "memory".
	DSN string `yaml:"dsn,omitempty"`
}

// BudgetConfig holds process-wide budget defaults applied when a task's
// create request doesn't specify its own.
type BudgetConfig struct {
	// DefaultLimit is parsed from config; nothing outside this package
	// reads it, so it does not set any task's allocation.
	DefaultLimit *float64 `yaml:"default_limit,omitempty"`
	// WarningThreshold is parsed and validated here; nothing outside this
	// package reads it. budget.Tracker always uses its fixed 0.20 fraction.
	WarningThreshold float64 `yaml:"warning_threshold,omitempty"`
}

// ModelConfig describes one configured model endpoint, resolved through
// model.NewHTTPClient at startup.
type ModelConfig struct {
	// Provider labels the endpoint for operators; the runtime always
	// talks to it through the generic HTTP JSON contract.
	Provider string        `yaml:"provider,omitempty"`
	BaseURL  string        `yaml:"base_url"`
	APIKey   string        `yaml:"api_key,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
}

// EmbedderConfig describes one configured embedding endpoint.
type EmbedderConfig struct {
	Provider string        `yaml:"provider,omitempty"`
	BaseURL  string        `yaml:"base_url"`
	APIKey   string        `yaml:"api_key,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
}

// ProfileConfig names a reusable model set and consensus schedule a task
// can be created against by profile name instead of spelling out its
// model list every time.
type ProfileConfig struct {
	Models              []string `yaml:"models"`
	CapabilityGroups    []string `yaml:"capability_groups,omitempty"`
	MaxRefinementRounds int      `yaml:"max_refinement_rounds,omitempty"`
	StartTemp           float64  `yaml:"start_temp,omitempty"`
	FloorTemp           float64  `yaml:"floor_temp,omitempty"`
}

// ExecutorsConfig groups every adapter executor's own configuration block.
type ExecutorsConfig struct {
	File  FileExecutorConfig         `yaml:"file,omitempty"`
	Shell ShellExecutorConfig        `yaml:"shell,omitempty"`
	Web   WebExecutorConfig          `yaml:"web,omitempty"`
	MCP   map[string]MCPServerConfig `yaml:"mcp,omitempty"`
}

// FileExecutorConfig mirrors executor.FileConfig's fields.
type FileExecutorConfig struct {
	WorkingDirectory  string   `yaml:"working_directory,omitempty"`
	MaxFileSize       int64    `yaml:"max_file_size,omitempty"`
	AllowedExtensions []string `yaml:"allowed_extensions,omitempty"`
	BackupOnOverwrite *bool    `yaml:"backup_on_overwrite,omitempty"`
}

// ShellExecutorConfig mirrors executor.ShellConfig's fields.
type ShellExecutorConfig struct {
	AllowedCommands  []string      `yaml:"allowed_commands,omitempty"`
	WorkingDirectory string        `yaml:"working_directory,omitempty"`
	SyncThreshold    time.Duration `yaml:"sync_threshold,omitempty"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time,omitempty"`
}

// WebExecutorConfig mirrors executor.WebConfig's fields.
type WebExecutorConfig struct {
	Timeout         time.Duration `yaml:"timeout,omitempty"`
	MaxResponseSize int64         `yaml:"max_response_size,omitempty"`
	AllowedDomains  []string      `yaml:"allowed_domains,omitempty"`
	DeniedDomains   []string      `yaml:"denied_domains,omitempty"`
	UserAgent       string        `yaml:"user_agent,omitempty"`
}

// MCPServerConfig mirrors executor.MCPServerConfig's fields.
type MCPServerConfig struct {
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
}

// SecretSeedConfig describes one named entry of the config's secrets
// block. The block is parsed, but nothing reads it at startup, so no
// secret is created from it.
type SecretSeedConfig struct {
	Value   string `yaml:"value"`
	ModelID string `yaml:"model_id,omitempty"`
}

// SetDefaults fills every unset field with the runtime's defaults. Called
// after loading and before Validate.
func (c *Config) SetDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	if c.Persistence.Dialect == "" {
		c.Persistence.Dialect = "memory"
	}

	if c.Budget.WarningThreshold == 0 {
		c.Budget.WarningThreshold = 0.20
	}

	c.Observability.SetDefaults()

	for name, p := range c.Profiles {
		if p.MaxRefinementRounds == 0 {
			p.MaxRefinementRounds = 4
		}
		if p.StartTemp == 0 {
			p.StartTemp = 0.7
		}
		c.Profiles[name] = p
	}

	if c.Executors.File.WorkingDirectory == "" {
		c.Executors.File.WorkingDirectory = "./"
	}
	if c.Executors.File.MaxFileSize == 0 {
		c.Executors.File.MaxFileSize = 10 * 1024 * 1024
	}
	if c.Executors.File.BackupOnOverwrite == nil {
		backup := true
		c.Executors.File.BackupOnOverwrite = &backup
	}

	if c.Executors.Shell.WorkingDirectory == "" {
		c.Executors.Shell.WorkingDirectory = "./"
	}
	if c.Executors.Shell.SyncThreshold == 0 {
		c.Executors.Shell.SyncThreshold = 100 * time.Millisecond
	}
	if c.Executors.Shell.MaxExecutionTime == 0 {
		c.Executors.Shell.MaxExecutionTime = 5 * time.Minute
	}

	if c.Executors.Web.Timeout == 0 {
		c.Executors.Web.Timeout = 30 * time.Second
	}
	if c.Executors.Web.MaxResponseSize == 0 {
		c.Executors.Web.MaxResponseSize = 10 * 1024 * 1024
	}
	if c.Executors.Web.UserAgent == "" {
		c.Executors.Web.UserAgent = "quoracle/1.0"
	}

	for id, m := range c.Models {
		if m.Timeout == 0 {
			m.Timeout = 30 * time.Second
		}
		c.Models[id] = m
	}
	for id, e := range c.Embedders {
		if e.Timeout == 0 {
			e.Timeout = 30 * time.Second
		}
		c.Embedders[id] = e
	}
}

// Validate checks the structural invariants a loaded Config must satisfy.
func (c *Config) Validate() error {
	switch c.Persistence.Dialect {
	case "memory", "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("config: persistence.dialect %q is not one of memory/sqlite/postgres/mysql", c.Persistence.Dialect)
	}
	if c.Persistence.Dialect != "memory" && c.Persistence.DSN == "" {
		return fmt.Errorf("config: persistence.dsn is required for dialect %q", c.Persistence.Dialect)
	}

	if c.Budget.DefaultLimit != nil && *c.Budget.DefaultLimit < 0 {
		return fmt.Errorf("config: budget.default_limit must be non-negative")
	}
	if c.Budget.WarningThreshold < 0 || c.Budget.WarningThreshold > 1 {
		return fmt.Errorf("config: budget.warning_threshold must be between 0 and 1")
	}

	for id, m := range c.Models {
		if m.BaseURL == "" {
			return fmt.Errorf("config: model %q is missing base_url", id)
		}
	}
	for id, e := range c.Embedders {
		if e.BaseURL == "" {
			return fmt.Errorf("config: embedder %q is missing base_url", id)
		}
	}

	for name, p := range c.Profiles {
		if len(p.Models) == 0 {
			return fmt.Errorf("config: profile %q must list at least one model", name)
		}
		for _, id := range p.Models {
			if _, ok := c.Models[id]; !ok {
				return fmt.Errorf("config: profile %q references unconfigured model %q", name, id)
			}
		}
	}

	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("config: observability: %w", err)
	}

	return nil
}
