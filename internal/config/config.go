package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

const (
	defaultFuzzyMatchThreshold   = 0.5
	defaultAIConfidenceThreshold = 0.6
	defaultMaxContentLength      = 8000
	defaultAITimeoutSecs         = 120
)

func checkFilePermissions(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if perm := info.Mode().Perm(); perm&0077 != 0 {
		return fmt.Errorf("config file %s has insecure permissions %04o; should be 0600", path, perm)
	}
	return nil
}

type Config struct {
	// PlatformDomains are the email domains of the operating organization.
	// Addresses on these domains are internal staff, never the counterparty.
	PlatformDomains []string `yaml:"platform_domains"`

	Parsing  ParsingOptions `yaml:"parsing"`
	AI       AIConfig       `yaml:"ai,omitempty"`
	Inbox    InboxConfig    `yaml:"inbox,omitempty"`
	Registry RegistryConfig `yaml:"registry"`
}

// ParsingOptions tunes the extraction pipeline.
type ParsingOptions struct {
	EnableAI              bool    `yaml:"enable_ai"`
	FuzzyMatchThreshold   float64 `yaml:"fuzzy_match_threshold"`   // fuzzy distance score cutoff, [0,1]
	AIConfidenceThreshold float64 `yaml:"ai_confidence_threshold"` // minimum aggregate confidence for success, [0,1]
	MaxContentLength      int     `yaml:"max_content_length"`      // body truncation after normalization
}

// AIConfig holds the chat endpoint used for enrichment.
type AIConfig struct {
	Endpoint    string `yaml:"endpoint"` // base URL of an OpenAI-compatible API
	APIKey      string `yaml:"api_key"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// InboxConfig holds IMAP settings for pulling messages directly from a mailbox.
type InboxConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Server   string `yaml:"server"` // e.g., "imap.exmail.qq.com"
	Port     int    `yaml:"port"`   // e.g., 993
	Email    string `yaml:"email"`
	Password string `yaml:"password"` // app password
	Folder   string `yaml:"folder"`   // default: "INBOX"
	Days     int    `yaml:"days"`     // how far back to fetch
}

// RegistryConfig points at the project and stage registry files.
type RegistryConfig struct {
	ProjectsFile string `yaml:"projects_file"`
	StagesFile   string `yaml:"stages_file"`
}

func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".mailfacts", "config.yaml")
}

func Load(path string) (*Config, error) {
	if err := checkFilePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: %v\n", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Parsing.FuzzyMatchThreshold == 0 {
		c.Parsing.FuzzyMatchThreshold = defaultFuzzyMatchThreshold
	}
	if c.Parsing.AIConfidenceThreshold == 0 {
		c.Parsing.AIConfidenceThreshold = defaultAIConfidenceThreshold
	}
	if c.Parsing.MaxContentLength == 0 {
		c.Parsing.MaxContentLength = defaultMaxContentLength
	}
	if c.AI.TimeoutSecs == 0 {
		c.AI.TimeoutSecs = defaultAITimeoutSecs
	}
	if c.Registry.ProjectsFile == "" {
		c.Registry.ProjectsFile = "data/projects.yaml"
	}
	if c.Registry.StagesFile == "" {
		c.Registry.StagesFile = "data/stages.yaml"
	}
	if c.Inbox.Folder == "" {
		c.Inbox.Folder = "INBOX"
	}
	if c.Inbox.Days == 0 {
		c.Inbox.Days = 7
	}
}

func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

func (c *Config) Validate() error {
	if len(c.PlatformDomains) == 0 {
		return fmt.Errorf("platform_domains: at least one domain is required")
	}
	if c.Parsing.FuzzyMatchThreshold < 0 || c.Parsing.FuzzyMatchThreshold > 1 {
		return fmt.Errorf("parsing: fuzzy_match_threshold must be in [0,1], got %v", c.Parsing.FuzzyMatchThreshold)
	}
	if c.Parsing.AIConfidenceThreshold < 0 || c.Parsing.AIConfidenceThreshold > 1 {
		return fmt.Errorf("parsing: ai_confidence_threshold must be in [0,1], got %v", c.Parsing.AIConfidenceThreshold)
	}
	if c.Parsing.MaxContentLength < 0 {
		return fmt.Errorf("parsing: max_content_length must not be negative")
	}
	if c.Parsing.EnableAI {
		if c.AI.Endpoint == "" {
			return fmt.Errorf("ai: endpoint is required when parsing.enable_ai is set")
		}
		if c.AI.Model == "" {
			return fmt.Errorf("ai: model is required when parsing.enable_ai is set")
		}
	}
	return nil
}

// ValidateInbox validates inbox configuration (only called when the inbox source is used).
func (c *Config) ValidateInbox() error {
	if !c.Inbox.Enabled {
		return fmt.Errorf("inbox: fetching is not enabled in config")
	}
	if c.Inbox.Email == "" {
		return fmt.Errorf("inbox: email address is required")
	}
	if c.Inbox.Password == "" {
		return fmt.Errorf("inbox: password (app password) is required")
	}
	if c.Inbox.Server == "" {
		return fmt.Errorf("inbox: IMAP server is required")
	}
	if c.Inbox.Port == 0 {
		return fmt.Errorf("inbox: IMAP port is required")
	}
	return nil
}
