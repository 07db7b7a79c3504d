package database

import (
	"testing"
)

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		name        string
		wantVersion string
		wantUp      bool
		wantOK      bool
	}{
		{"20260801_120000_initial_schema.up.sql", "20260801_120000", true, true},
		{"20260801_120000_initial_schema.down.sql", "20260801_120000", false, true},
		{"README.md", "", false, false},
		{"schema.sql", "", false, false},
		{"embed.go", "", false, false},
	}

	for _, tt := range tests {
		version, isUp, ok := parseMigrationFilename(tt.name)
		if version != tt.wantVersion || isUp != tt.wantUp || ok != tt.wantOK {
			t.Errorf("parseMigrationFilename(%q) = (%q, %v, %v), want (%q, %v, %v)",
				tt.name, version, isUp, ok, tt.wantVersion, tt.wantUp, tt.wantOK)
		}
	}
}

func TestExtractMigrationName(t *testing.T) {
	if got := extractMigrationName("20260801_120000_initial_schema.up.sql"); got != "initial_schema" {
		t.Errorf("extractMigrationName = %q, want initial_schema", got)
	}
}
