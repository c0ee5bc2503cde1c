package main

import (
	"crypto/sha256"
	"fmt"
	"strconv"
	"testing"
)

func TestMigrationFilePattern(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  int
		name     string
	}{
		{"0001_init_tables.sql", true, 1, "init_tables"},
		{"0002_add_message_seq.sql", true, 2, "add_message_seq"},
		{"001_invalid.sql", false, 0, ""},        // wrong number format
		{"0001_test", false, 0, ""},              // missing .sql
		{"0001.sql", false, 0, ""},               // missing name
		{"invalid_0001_test.sql", false, 0, ""},  // wrong order
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			matches := migrationFilePattern.FindStringSubmatch(tt.filename)
			if !tt.valid {
				if matches != nil {
					t.Fatalf("filename %q must not match, got %v", tt.filename, matches)
				}
				return
			}
			if matches == nil {
				t.Fatalf("filename %q must match", tt.filename)
			}
			version, err := strconv.Atoi(matches[1])
			if err != nil || version != tt.version {
				t.Errorf("version = %s, want %d", matches[1], tt.version)
			}
			if matches[2] != tt.name {
				t.Errorf("name = %q, want %q", matches[2], tt.name)
			}
		})
	}
}

func TestMigrationChecksumIgnoresPlaceholders(t *testing.T) {
	// The checksum covers the file as written, placeholders included, so the
	// same migration applied to two projects records the same checksum.
	content := []byte("CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.budgets` (budget_id STRING);")

	a := fmt.Sprintf("%x", sha256.Sum256(content))
	b := fmt.Sprintf("%x", sha256.Sum256(content))
	if a != b {
		t.Error("checksum must be deterministic")
	}

	changed := []byte("CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.budgets` (budget_id INT64);")
	if a == fmt.Sprintf("%x", sha256.Sum256(changed)) {
		t.Error("different DDL must produce a different checksum")
	}
}
