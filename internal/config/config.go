// Package config loads service configuration from environment variables
// (prefix COACH_) with sane defaults for local development.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds everything the service needs at startup.
type Config struct {
	HTTPPort int `mapstructure:"http_port"`

	GCPProject      string `mapstructure:"gcp_project"`
	BigQueryDataset string `mapstructure:"bigquery_dataset"`
	GCSBucket       string `mapstructure:"gcs_bucket"`

	GeminiModel string `mapstructure:"gemini_model"`

	NotionToken    string `mapstructure:"notion_token"`
	NotionDatabase string `mapstructure:"notion_database"`

	QueueBuffer  int `mapstructure:"queue_buffer"`
	QueueWorkers int `mapstructure:"queue_workers"`
}

// Load reads configuration from the environment. COACH_HTTP_PORT overrides
// http_port and so on.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("http_port", 8080)
	v.SetDefault("gcp_project", "")
	v.SetDefault("bigquery_dataset", "coach")
	v.SetDefault("gcs_bucket", "coach-attachments")
	v.SetDefault("gemini_model", "gemini-2.0-flash")
	v.SetDefault("notion_token", "")
	v.SetDefault("notion_database", "")
	v.SetDefault("queue_buffer", 100)
	v.SetDefault("queue_workers", 2)

	v.SetEnvPrefix("COACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("Load: unmarshal config: %w", err)
	}
	// There is no sane default project: pointing at someone else's project
	// fails late and confusingly, so fail here instead.
	if cfg.GCPProject == "" {
		return nil, fmt.Errorf("Load: gcp_project is required (set COACH_GCP_PROJECT)")
	}
	return &cfg, nil
}
