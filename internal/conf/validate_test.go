package conf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestSettings(t *testing.T) *Settings {
	t.Helper()

	dump := filepath.Join(t.TempDir(), "dump.json")
	require.NoError(t, os.WriteFile(dump, []byte("{}"), 0o644))

	s := &Settings{}
	s.Source.DumpPath = dump
	s.Database.SQLite.Enabled = true
	s.Database.SQLite.Path = filepath.Join(t.TempDir(), "target.db")
	s.Storage.Backend = "local"
	s.Storage.Local.Path = t.TempDir()
	s.Checkpoint.Dir = t.TempDir()
	return s
}

func TestValidateSettingsAcceptsValidConfig(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateSettings(validTestSettings(t)))
}

func TestValidateSettingsRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantMsg string
	}{
		{
			"missing dump path",
			func(s *Settings) { s.Source.DumpPath = "" },
			"dump path is required",
		},
		{
			"nonexistent dump file",
			func(s *Settings) { s.Source.DumpPath = "/nonexistent/dump.json" },
			"/nonexistent/dump.json",
		},
		{
			"no database enabled",
			func(s *Settings) { s.Database.SQLite.Enabled = false },
			"no target database enabled",
		},
		{
			"both databases enabled",
			func(s *Settings) { s.Database.MySQL.Enabled = true },
			"only one target database",
		},
		{
			"sqlite without path",
			func(s *Settings) { s.Database.SQLite.Path = "" },
			"sqlite path is required",
		},
		{
			"mysql without credentials",
			func(s *Settings) {
				s.Database.SQLite.Enabled = false
				s.Database.MySQL.Enabled = true
			},
			"mysql username and database",
		},
		{
			"unknown storage backend",
			func(s *Settings) { s.Storage.Backend = "carrier-pigeon" },
			"unknown storage backend",
		},
		{
			"http backend without service key",
			func(s *Settings) {
				s.Storage.Backend = "http"
				s.Storage.HTTP.BaseURL = "https://storage.example.com"
			},
			"service key is required",
		},
		{
			"sftp backend without host",
			func(s *Settings) { s.Storage.Backend = "sftp" },
			"sftp host and username",
		},
		{
			"missing checkpoint dir",
			func(s *Settings) { s.Checkpoint.Dir = "" },
			"checkpoint directory",
		},
		{
			"notify enabled without URL",
			func(s *Settings) { s.Notify.Enabled = true },
			"no service URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := validTestSettings(t)
			tt.mutate(s)
			err := ValidateSettings(s)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestValidateSettingsJoinsAllFailures(t *testing.T) {
	t.Parallel()

	s := validTestSettings(t)
	s.Source.DumpPath = ""
	s.Checkpoint.Dir = ""

	err := ValidateSettings(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dump path is required")
	assert.Contains(t, err.Error(), "checkpoint directory")
}
