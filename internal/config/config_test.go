package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FirstRunWritesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoad_PartialFileIsNormalized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timezone: America/New_York\nworkers: 4\ncache_ttl: 30s\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", cfg.Timezone)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, defaultListen, cfg.Listen)
	assert.Equal(t, defaultUIDDomain, cfg.UIDDomain)
	assert.Empty(t, cfg.RefreshCron)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", loc.String())
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"bad timezone":  func(c *Config) { c.Timezone = "Mars/Olympus" },
		"bad cron":      func(c *Config) { c.RefreshCron = "every hour" },
		"bad listen":    func(c *Config) { c.Listen = "nowhere" },
		"bad workers":   func(c *Config) { c.Workers = -1 },
		"bad log level": func(c *Config) { c.LogLevel = "chatty" },
		"bad domain":    func(c *Config) { c.UIDDomain = "not a domain" },
		"partial auth":  func(c *Config) { c.BasicAuth = &BasicAuthConfig{Username: "admin"} },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := DefaultConfig()
	cfg.BasicAuth = &BasicAuthConfig{Username: "admin", Password: "secret"}
	assert.NoError(t, cfg.Validate())
}

func TestLoad_RejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timezone: Nowhere/Land\n"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("listen: [\n"), 0o600))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestSave_RequiresPathAndConfig(t *testing.T) {
	assert.Error(t, Save("", DefaultConfig()))
	assert.Error(t, Save(filepath.Join(t.TempDir(), "c.yaml"), nil))
	_, err := Load("")
	assert.Error(t, err)
}
