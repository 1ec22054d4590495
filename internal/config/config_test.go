package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, Config{
		Database:     "brickbook.db",
		Listen:       "127.0.0.1:8080",
		LikeRetries:  3,
		LogCacheSize: 4096,
		LogLevel:     "info",
	}, cfg)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brickbook.cue")
	require.NoError(t, os.WriteFile(path, []byte(`
database:       "/tmp/catalogue.db"
like_retries:   5
log_cache_size: 0
log_level:      "debug"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/catalogue.db", cfg.Database)
	assert.Equal(t, "127.0.0.1:8080", cfg.Listen)
	assert.Equal(t, 5, cfg.LikeRetries)
	assert.Equal(t, 0, cfg.LogCacheSize)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoad_EmptyPathIsDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.cue"))
	assert.Error(t, err)
}

func TestParse_Rejections(t *testing.T) {
	cases := map[string]string{
		"negative retries": `like_retries: -1`,
		"too many retries": `like_retries: 11`,
		"negative cache":   `log_cache_size: -5`,
		"unknown level":    `log_level: "trace"`,
		"unknown field":    `listen_port: 8080`,
		"wrong type":       `database: 42`,
		"empty database":   `database: ""`,
		"syntax error":     `database: "x`,
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(src), "bad.cue")
			assert.Error(t, err)
		})
	}
}

func TestParse_ErrorType(t *testing.T) {
	_, err := Parse([]byte("database: \"ok.db\"\nlike_retries: -1\n"), "bad.cue")
	require.Error(t, err)

	var cfgErr *Error
	assert.ErrorAs(t, err, &cfgErr)
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, Config{LogLevel: "info"}.SlogLevel())
	assert.Equal(t, slog.LevelWarn, Config{LogLevel: "warn"}.SlogLevel())
	assert.Equal(t, slog.LevelError, Config{LogLevel: "error"}.SlogLevel())
}
