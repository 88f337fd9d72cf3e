package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed config.toml.sample
var configTemplate string

const (
	DefaultListen       = "localhost:8080"
	DefaultLocale       = "en"
	DefaultCurrency     = "EUR"
	DefaultMaxPerPage   = 20
	MaxMaxPerPage       = 100
	DefaultSessionTTL   = 30 * 24 * time.Hour
	DefaultImageFilter  = "listing_medium"
	DefaultImageFolder  = "uploads/listings/images/"
	DefaultDefaultImage = "default-listing.png"
)

type Config struct {
	StorageDir    string        `toml:"storage_dir"`
	Listen        string        `toml:"listen"`
	DefaultLocale string        `toml:"default_locale"`
	Locales       []string      `toml:"locales"`
	MaxPerPage    int           `toml:"max_per_page"`
	Session       SessionConfig `toml:"session"`
	Currency      CurrencyInfo  `toml:"currency"`
	Images        ImagesConfig  `toml:"images"`
}

type SessionConfig struct {
	Secret string   `toml:"secret"`
	TTL    Duration `toml:"ttl"`
	Cookie string   `toml:"cookie"`
}

type CurrencyInfo struct {
	// Default is the display currency used when the session has none.
	Default string `toml:"default"`
	// Base is the currency listing prices are stored in.
	Base string `toml:"base"`
	// Rates maps currency codes to the amount of that currency per base unit.
	Rates map[string]float64 `toml:"rates"`
	// RatesFile, when set, overrides Rates and is reloaded on change.
	RatesFile string `toml:"rates_file,omitempty"`
}

type ImagesConfig struct {
	PublicDir    string                 `toml:"public_dir"`
	CacheDir     string                 `toml:"cache_dir"`
	Folder       string                 `toml:"folder"`
	DefaultImage string                 `toml:"default_image"`
	Filters      map[string]ImageFilter `toml:"filters"`
}

type ImageFilter struct {
	Width  int `toml:"width"`
	Height int `toml:"height"`
}

type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func GetDefaultConfig() (*Config, error) {
	storageDir, err := GetDefaultStorageDir()
	if err != nil {
		return nil, fmt.Errorf("getting default storage directory: %w", err)
	}
	cfg := &Config{StorageDir: storageDir}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadConfig reads the TOML file at configPath (defaults when missing), then
// applies .env and ROOST_* environment overrides.
func LoadConfig(configPath string) (*Config, error) {
	// A missing .env is the normal case.
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(configPath)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshaling config: %w", err)
		}
	}

	cfg.applyEnv()

	if cfg.StorageDir == "" {
		storageDir, err := GetDefaultStorageDir()
		if err != nil {
			return nil, fmt.Errorf("getting default storage directory: %w", err)
		}
		cfg.StorageDir = storageDir
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("ROOST_STORAGE_DIR"); v != "" {
		c.StorageDir = v
	}
	if v := os.Getenv("ROOST_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("ROOST_SESSION_SECRET"); v != "" {
		c.Session.Secret = v
	}
	if v := os.Getenv("ROOST_DEFAULT_CURRENCY"); v != "" {
		c.Currency.Default = strings.ToUpper(v)
	}
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.DefaultLocale == "" {
		c.DefaultLocale = DefaultLocale
	}
	if len(c.Locales) == 0 {
		c.Locales = []string{c.DefaultLocale}
	}
	if c.MaxPerPage <= 0 {
		c.MaxPerPage = DefaultMaxPerPage
	}
	if c.MaxPerPage > MaxMaxPerPage {
		c.MaxPerPage = MaxMaxPerPage
	}
	if c.Session.TTL.Duration == 0 {
		c.Session.TTL = Duration{DefaultSessionTTL}
	}
	if c.Session.Cookie == "" {
		c.Session.Cookie = "roost_session"
	}
	if c.Currency.Base == "" {
		c.Currency.Base = DefaultCurrency
	}
	if c.Currency.Default == "" {
		c.Currency.Default = c.Currency.Base
	}
	if c.Currency.Rates == nil {
		c.Currency.Rates = make(map[string]float64)
	}
	if c.Images.PublicDir == "" {
		c.Images.PublicDir = filepath.Join(c.StorageDir, "public")
	}
	if c.Images.CacheDir == "" {
		c.Images.CacheDir = filepath.Join(c.Images.PublicDir, "media", "cache")
	}
	if c.Images.Folder == "" {
		c.Images.Folder = DefaultImageFolder
	}
	if c.Images.DefaultImage == "" {
		c.Images.DefaultImage = DefaultDefaultImage
	}
	if c.Images.Filters == nil {
		c.Images.Filters = make(map[string]ImageFilter)
	}
	if _, ok := c.Images.Filters[DefaultImageFilter]; !ok {
		c.Images.Filters[DefaultImageFilter] = ImageFilter{Width: 400, Height: 267}
	}
}

// Validate checks the settings the web server cannot run without.
func (c *Config) Validate() error {
	found := false
	for _, l := range c.Locales {
		if l == c.DefaultLocale {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("default_locale %q is not listed in locales %v", c.DefaultLocale, c.Locales)
	}
	if c.Currency.Default != c.Currency.Base {
		if _, ok := c.Currency.Rates[c.Currency.Default]; !ok && c.Currency.RatesFile == "" {
			return fmt.Errorf("no rate configured for default currency %s", c.Currency.Default)
		}
	}
	for name, f := range c.Images.Filters {
		if f.Width <= 0 || f.Height <= 0 {
			return fmt.Errorf("image filter %s: width and height must be positive", name)
		}
	}
	return nil
}

// DBPath is the SQLite database holding listings and sessions.
func (c *Config) DBPath() string {
	return filepath.Join(c.StorageDir, "roost.db")
}

func (c *Config) SaveConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}

// SaveTemplateConfig writes the commented sample configuration with the
// storage directory, locale and currency of c filled in.
func (c *Config) SaveTemplateConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	template := strings.NewReplacer(
		"/home/user/.local/share/roost", c.StorageDir,
		`default_locale = "en"`, fmt.Sprintf("default_locale = %q", c.DefaultLocale),
		`default = "EUR"`, fmt.Sprintf("default = %q", c.Currency.Default),
	).Replace(configTemplate)

	return os.WriteFile(configPath, []byte(template), 0644)
}

// GetDefaultStorageDir returns $XDG_DATA_HOME/roost, creating it if needed.
func GetDefaultStorageDir() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	dir := filepath.Join(dataDir, "roost")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating storage directory %s: %w", dir, err)
	}
	return dir, nil
}

// GetConfigDir returns $XDG_CONFIG_HOME/roost, creating it if needed.
func GetConfigDir() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	dir := filepath.Join(configDir, "roost")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	return dir, nil
}

// GetDefaultConfigPath returns the default configuration file path
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}
