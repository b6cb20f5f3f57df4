package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the full runtime configuration, read from a YAML file with
// environment variable overrides.
type Config struct {
	Env string `yaml:"env" env:"APP_ENV" env-default:"production"`

	Log struct {
		Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
		Format string `yaml:"format" env:"LOG_FORMAT" env-default:"console"`
	} `yaml:"log"`

	Toggl struct {
		APIToken string `yaml:"api_token" env:"TOGGL_API_TOKEN"`
		BaseURL  string `yaml:"base_url" env:"TOGGL_BASE_URL"`
		Timeout  int    `yaml:"timeout" env:"TOGGL_TIMEOUT" env-default:"30"`
	} `yaml:"toggl"`

	Redmine struct {
		URL     string `yaml:"url" env:"REDMINE_URL"`
		APIKey  string `yaml:"api_key" env:"REDMINE_API_KEY"`
		Timeout int    `yaml:"timeout" env:"REDMINE_TIMEOUT" env-default:"30"`
	} `yaml:"redmine"`

	Sync struct {
		WorkspaceID     int64  `yaml:"workspace_id" env:"TOGGL_WORKSPACE_ID"`
		DefaultActivity string `yaml:"default_activity" env:"DEFAULT_ACTIVITY"`
		LedgerPageLimit int    `yaml:"ledger_page_limit" env:"LEDGER_PAGE_LIMIT" env-default:"100"`
	} `yaml:"sync"`

	JournalPath string `yaml:"journal_path" env:"JOURNAL_PATH" env-default:"toggl-redmine-sync.db"`
}

// LoadConfig reads the config file at path, falling back to environment
// variables only when the file does not exist.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		return &cfg, nil
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from environment: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings that have no workable default.
func (c *Config) Validate() error {
	if c.Toggl.APIToken == "" {
		return fmt.Errorf("toggl api token is not set")
	}
	if c.Redmine.URL == "" {
		return fmt.Errorf("redmine url is not set")
	}
	if c.Redmine.APIKey == "" {
		return fmt.Errorf("redmine api key is not set")
	}
	return nil
}
