package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"port": 8080,
		"jwt_secret": "secret",
		"ai": {"provider": "gemini", "model": "gemini-embedding-001", "dimension": 768}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "info", cfg.LogConfig.Level)
	require.Equal(t, 1800, cfg.Session.TTLSeconds)
	require.Equal(t, "*/30 * * * * *", cfg.Session.SweepSpec)
	require.Equal(t, 5000, cfg.Session.MaxChunks)
	require.Equal(t, 10000, cfg.Quota.Limit)
	require.Equal(t, 50, cfg.Query.MaxK)
	require.Equal(t, "none", cfg.Export.Type)
}

func TestLoad_RejectsMissingDimension(t *testing.T) {
	path := writeConfig(t, `{
		"port": 8080,
		"jwt_secret": "secret",
		"ai": {"provider": "gemini", "model": "gemini-embedding-001"}
	}`)
	_, err := Load(path)
	require.ErrorContains(t, err, "ai.dimension")
}

func TestLoad_RejectsLocalSinkWithoutDir(t *testing.T) {
	path := writeConfig(t, `{
		"port": 8080,
		"jwt_secret": "secret",
		"ai": {"provider": "openai", "model": "text-embedding-3-small", "dimension": 1536},
		"export": {"type": "local"}
	}`)
	_, err := Load(path)
	require.ErrorContains(t, err, "export.dir")
}

func TestLoad_RejectsUnknownSinkType(t *testing.T) {
	path := writeConfig(t, `{
		"port": 8080,
		"jwt_secret": "secret",
		"ai": {"provider": "openai", "model": "text-embedding-3-small", "dimension": 1536},
		"export": {"type": "ftp"}
	}`)
	_, err := Load(path)
	require.ErrorContains(t, err, "export.type")
}
