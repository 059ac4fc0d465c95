// Package config loads application configuration with viper and sets up logging.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jantomson/steelbuckle-sub000/internal/contact"
	"github.com/jantomson/steelbuckle-sub000/internal/domain"
)

const (
	appName   = "steelbuckle"
	envPrefix = "STEELBUCKLE"
)

// Config holds all application configuration
type Config struct {
	Backend BackendConfig  `mapstructure:"backend"`
	Editor  EditorConfig   `mapstructure:"editor"`
	Cache   CacheConfig    `mapstructure:"cache"`
	Pages   []domain.Page  `mapstructure:"pages"`
	Logging LoggingConfig  `mapstructure:"logging"`
	Contact contact.Config `mapstructure:"contact"`
	Preview PreviewConfig  `mapstructure:"preview"`
}

// BackendConfig holds the content store connection
type BackendConfig struct {
	URL     string        `mapstructure:"url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// EditorConfig holds edit-mode settings
type EditorConfig struct {
	Privileged bool     `mapstructure:"privileged"` // edit rights; false gives a read-only session
	Language   string   `mapstructure:"language"`   // initial editing language
	Languages  []string `mapstructure:"languages"`  // languages the switcher cycles through
	PageID     string   `mapstructure:"page_id"`    // page opened at start
}

// CacheConfig holds cache and cross-tab settings
type CacheConfig struct {
	Capacity     int           `mapstructure:"capacity"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	Dir          string        `mapstructure:"dir"` // durable storage location, empty for the default
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	// File is a path, "-" for stderr, or empty to discard.
	File   string `mapstructure:"file"`
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// PreviewConfig selects the program that opens media URLs
type PreviewConfig struct {
	Command string   `mapstructure:"command"` // empty for the system default
	Args    []string `mapstructure:"args"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:     "http://localhost:3000",
			Timeout: 30 * time.Second,
		},
		Editor: EditorConfig{
			Privileged: false,
			Language:   "et",
			Languages:  []string{"et", "en", "ru"},
			PageID:     "home",
		},
		Cache: CacheConfig{
			Capacity:     20,
			PollInterval: 2 * time.Second,
			FetchTimeout: 15 * time.Second,
		},
		Pages: defaultPages(),
		Logging: LoggingConfig{
			File:   defaultLogPath(),
			Level:  "INFO",
			Format: "json",
		},
		Contact: contact.Config{
			MinFillTime: contact.DefaultMinFillTime,
			Rate:        contact.DefaultRate,
			Burst:       contact.DefaultBurst,
		},
	}
}

func defaultPages() []domain.Page {
	return []domain.Page{
		{
			ID:     "home",
			Prefix: "hero",
			Title:  "Home",
			Text:   []string{"hero.title_start", "hero.title_highlight", "hero.subtitle", "hero.cta"},
			Media:  map[string]string{"background": "", "logo": ""},
		},
		{
			ID:     "about",
			Prefix: "about",
			Title:  "About",
			Text:   []string{"about.title", "about.description", "about.mission"},
			Media:  map[string]string{"main_image": ""},
		},
	}
}

// Page returns the configured page with id.
func (c *Config) Page(id string) (domain.Page, bool) {
	for _, p := range c.Pages {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Page{}, false
}

// IsConfigured returns true if the backend URL is set
func (c *Config) IsConfigured() bool {
	return c.Backend.URL != ""
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), appName, appName+".log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", appName, appName+".log")
	}
}

// defaultConfigPath returns the default config directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), appName)
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", appName)
	}
}

// DefaultStorePath returns the default durable storage directory for the current OS
func DefaultStorePath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), appName, "store")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", appName, "store")
	}
}

// LoadConfig loads configuration from the default locations and environment
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(defaultConfigPath())
	v.AddConfigPath(".")
	return load(v)
}

// LoadFile loads configuration from one file plus the environment
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	// Decode into a zero struct: mapstructure merges into populated slices.
	setDefaults(v, DefaultConfig())
	cfg := &Config{}

	// Environment variable overrides, e.g. STEELBUCKLE_BACKEND_TOKEN
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	if len(cfg.Pages) == 0 {
		cfg.Pages = defaultPages()
	}
	return cfg, nil
}

// setDefaults registers scalar defaults so environment overrides apply to them.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("backend.url", cfg.Backend.URL)
	v.SetDefault("backend.token", cfg.Backend.Token)
	v.SetDefault("backend.timeout", cfg.Backend.Timeout)
	v.SetDefault("editor.privileged", cfg.Editor.Privileged)
	v.SetDefault("editor.language", cfg.Editor.Language)
	v.SetDefault("editor.languages", cfg.Editor.Languages)
	v.SetDefault("editor.page_id", cfg.Editor.PageID)
	v.SetDefault("cache.capacity", cfg.Cache.Capacity)
	v.SetDefault("cache.poll_interval", cfg.Cache.PollInterval)
	v.SetDefault("cache.fetch_timeout", cfg.Cache.FetchTimeout)
	v.SetDefault("cache.dir", cfg.Cache.Dir)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("contact.min_fill_time", cfg.Contact.MinFillTime)
	v.SetDefault("contact.rate", cfg.Contact.Rate)
	v.SetDefault("contact.burst", cfg.Contact.Burst)
	v.SetDefault("preview.command", cfg.Preview.Command)
	v.SetDefault("preview.args", cfg.Preview.Args)
}

// SaveConfig saves the configuration to the default location
func SaveConfig(cfg *Config) error {
	configPath := defaultConfigPath()

	// Ensure config directory exists
	if err := os.MkdirAll(configPath, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return SaveConfigTo(cfg, filepath.Join(configPath, "config.yaml"))
}

// SaveConfigTo writes the configuration to file
func SaveConfigTo(cfg *Config, file string) error {
	v := viper.New()

	// Set fields individually to ensure correct key names (snake_case)
	v.Set("backend.url", cfg.Backend.URL)
	v.Set("backend.token", cfg.Backend.Token)
	v.Set("backend.timeout", cfg.Backend.Timeout.String())

	v.Set("editor.privileged", cfg.Editor.Privileged)
	v.Set("editor.language", cfg.Editor.Language)
	v.Set("editor.languages", cfg.Editor.Languages)
	v.Set("editor.page_id", cfg.Editor.PageID)

	v.Set("cache.capacity", cfg.Cache.Capacity)
	v.Set("cache.poll_interval", cfg.Cache.PollInterval.String())
	v.Set("cache.fetch_timeout", cfg.Cache.FetchTimeout.String())
	v.Set("cache.dir", cfg.Cache.Dir)

	pages := make([]map[string]any, 0, len(cfg.Pages))
	for _, p := range cfg.Pages {
		pages = append(pages, map[string]any{
			"id":          p.ID,
			"prefix":      p.Prefix,
			"title":       p.Title,
			"text":        p.Text,
			"media":       p.Media,
			"last_resort": p.LastResort,
		})
	}
	v.Set("pages", pages)

	v.Set("logging.file", cfg.Logging.File)
	v.Set("logging.level", cfg.Logging.Level)
	v.Set("logging.format", cfg.Logging.Format)

	v.Set("contact.min_fill_time", cfg.Contact.MinFillTime.String())
	v.Set("contact.rate", cfg.Contact.Rate)
	v.Set("contact.burst", cfg.Contact.Burst)

	v.Set("preview.command", cfg.Preview.Command)
	v.Set("preview.args", cfg.Preview.Args)

	if err := v.WriteConfigAs(file); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
