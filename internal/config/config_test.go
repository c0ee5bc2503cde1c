package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("COACH_GCP_PROJECT", "test-project")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPPort != 8080 {
		t.Errorf("HTTPPort = %d, want 8080", cfg.HTTPPort)
	}
	if cfg.BigQueryDataset != "coach" {
		t.Errorf("BigQueryDataset = %q, want coach", cfg.BigQueryDataset)
	}
	if cfg.QueueWorkers != 2 {
		t.Errorf("QueueWorkers = %d, want 2", cfg.QueueWorkers)
	}
}

func TestLoad_MissingProjectFails(t *testing.T) {
	t.Setenv("COACH_GCP_PROJECT", "")

	if _, err := Load(); err == nil {
		t.Fatal("Load must fail without a GCP project")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("COACH_GCP_PROJECT", "test-project")
	t.Setenv("COACH_HTTP_PORT", "9090")
	t.Setenv("COACH_GEMINI_MODEL", "gemini-2.5-pro")
	t.Setenv("COACH_GCS_BUCKET", "my-bucket")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPPort != 9090 {
		t.Errorf("HTTPPort = %d, want 9090", cfg.HTTPPort)
	}
	if cfg.GeminiModel != "gemini-2.5-pro" {
		t.Errorf("GeminiModel = %q, want gemini-2.5-pro", cfg.GeminiModel)
	}
	if cfg.GCSBucket != "my-bucket" {
		t.Errorf("GCSBucket = %q, want my-bucket", cfg.GCSBucket)
	}
}
