package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username" validate:"required"`
	Password string `yaml:"password" json:"password" validate:"required"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen" validate:"required,hostname_port"`

	// Timezone is the IANA zone all rooms share (e.g. "America/New_York").
	Timezone string `yaml:"timezone" json:"timezone" validate:"required"`

	// ProductID is written as PRODID of every document.
	ProductID string `yaml:"product_id" json:"product_id" validate:"required"`

	// UIDDomain is the right-hand side of generated event UIDs.
	UIDDomain string `yaml:"uid_domain" json:"uid_domain" validate:"required,fqdn"`

	// Source is a path or HTTP(S) URL of the schedule dataset.
	Source string `yaml:"source" json:"source"`

	// CacheDir stores HTTP cache entries for remote sources.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// OutputDir receives the documents written by scheduled regeneration.
	OutputDir string `yaml:"output_dir" json:"output_dir" validate:"required"`

	// RefreshCron is a standard 5-field cron spec for regeneration
	// (e.g. "0 * * * *"). Empty disables scheduled regeneration.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// Terms regenerated on schedule. Empty means every term in the dataset.
	Terms []string `yaml:"terms,omitempty" json:"terms,omitempty"`

	// Workers bounds concurrent room generation. Zero means one per CPU.
	Workers int `yaml:"workers" json:"workers" validate:"gte=0,lte=256"`

	// VerifyOutput re-parses every generated document.
	VerifyOutput bool `yaml:"verify_output" json:"verify_output"`

	// CacheTTL is how long the API keeps a decoded dataset.
	CacheTTL time.Duration `yaml:"cache_ttl" json:"cache_ttl" validate:"gte=0"`

	LogLevel string `yaml:"log_level" json:"log_level" validate:"omitempty,oneof=debug info error DEBUG INFO ERROR"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen    = "127.0.0.1:8080"
	defaultTimezone  = "UTC"
	defaultProductID = "-//roomcal//Room Calendar Export//EN"
	defaultUIDDomain = "roomcal.invalid"
	defaultCacheDir  = "./var/source-cache"
	defaultOutputDir = "./var/calendars"
	defaultCacheTTL  = 5 * time.Minute
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       defaultListen,
		Timezone:     defaultTimezone,
		ProductID:    defaultProductID,
		UIDDomain:    defaultUIDDomain,
		Source:       "./schedule.yaml",
		CacheDir:     defaultCacheDir,
		OutputDir:    defaultOutputDir,
		RefreshCron:  "0 * * * *",
		VerifyOutput: true,
		CacheTTL:     defaultCacheTTL,
		LogLevel:     "info",
	}
}

// Normalize fills in zero values so that partially-filled configs still work.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.ProductID == "" {
		c.ProductID = defaultProductID
	}
	if c.UIDDomain == "" {
		c.UIDDomain = defaultUIDDomain
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.OutputDir == "" {
		c.OutputDir = defaultOutputDir
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = defaultCacheTTL
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

var validate = validator.New()

// Validate checks field constraints, the timezone and the cron spec.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	if c.RefreshCron != "" {
		if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
			return fmt.Errorf("config: refresh %q: %w", c.RefreshCron, err)
		}
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is read, normalized and validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes cfg to path atomically via a temp file + rename, with 0600
// permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".roomcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
