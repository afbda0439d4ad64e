package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"

	"github.com/GriffinCanCode/filemanager/internal/domain/restriction"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server" toml:"server"`
	Logging   LogConfig       `json:"logging" yaml:"logging" toml:"logging"`
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit" toml:"rate_limit"`
	CORS      CORSConfig      `json:"cors" yaml:"cors" toml:"cors"`
	Storage   StorageConfig   `json:"storage" yaml:"storage" toml:"storage"`
	Upload    UploadConfig    `json:"upload" yaml:"upload" toml:"upload"`
	Images    ImageConfig     `json:"images" yaml:"images" toml:"images"`
	Security  SecurityConfig  `json:"security" yaml:"security" toml:"security"`

	// File names an optional YAML, TOML or JSON overlay.
	File string `envconfig:"FM_CONFIG_FILE" json:"-" yaml:"-" toml:"-"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string   `envconfig:"PORT" default:"8000" json:"port" yaml:"port" toml:"port"`
	Host            string   `envconfig:"HOST" default:"0.0.0.0" json:"host" yaml:"host" toml:"host"`
	MaxConnections  int      `envconfig:"MAX_CONNECTIONS" default:"1024" json:"max_connections" yaml:"max_connections" toml:"max_connections"`
	ShutdownTimeout Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s" json:"shutdown_timeout" yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" json:"level" yaml:"level" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" json:"development" yaml:"development" toml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100" json:"rps" yaml:"rps" toml:"rps"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200" json:"burst" yaml:"burst" toml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true" json:"enabled" yaml:"enabled" toml:"enabled"`
	// Global shares one bucket across all clients instead of one per IP.
	Global bool `envconfig:"RATE_LIMIT_GLOBAL" default:"false" json:"global" yaml:"global" toml:"global"`
}

// CORSConfig holds cross-origin configuration.
type CORSConfig struct {
	Origins []string `envconfig:"CORS_ORIGINS" default:"*" json:"origins" yaml:"origins" toml:"origins"`
}

// StorageConfig locates the sandbox and the thumbnail cache.
type StorageConfig struct {
	FileRoot      string `envconfig:"FM_FILE_ROOT" default:"./userfiles" json:"file_root" yaml:"file_root" toml:"file_root"`
	ThumbnailRoot string `envconfig:"FM_THUMBNAIL_ROOT" default:"./thumbnails" json:"thumbnail_root" yaml:"thumbnail_root" toml:"thumbnail_root"`
	PublicPrefix  string `envconfig:"FM_PUBLIC_PREFIX" default:"" json:"public_prefix" yaml:"public_prefix" toml:"public_prefix"`
}

// UploadConfig holds upload limits.
type UploadConfig struct {
	// Limit is in bytes.
	Limit int64 `envconfig:"FM_UPLOAD_LIMIT" default:"16000000" json:"limit" yaml:"limit" toml:"limit"`
}

// ImageConfig holds image and thumbnail settings.
type ImageConfig struct {
	Extensions       []string `envconfig:"FM_IMAGE_EXTENSIONS" default:"jpg,jpeg,gif,png,webp" json:"extensions" yaml:"extensions" toml:"extensions"`
	ThumbnailEnabled bool     `envconfig:"FM_THUMBNAIL_ENABLED" default:"true" json:"thumbnail_enabled" yaml:"thumbnail_enabled" toml:"thumbnail_enabled"`
	ThumbnailWidth   int      `envconfig:"FM_THUMBNAIL_MAX_WIDTH" default:"64" json:"thumbnail_max_width" yaml:"thumbnail_max_width" toml:"thumbnail_max_width"`
	ThumbnailHeight  int      `envconfig:"FM_THUMBNAIL_MAX_HEIGHT" default:"64" json:"thumbnail_max_height" yaml:"thumbnail_max_height" toml:"thumbnail_max_height"`
}

// SecurityConfig holds access rules. Rules can only come from the file.
type SecurityConfig struct {
	ReadOnly            bool               `envconfig:"FM_READ_ONLY" default:"false" json:"read_only" yaml:"read_only" toml:"read_only"`
	AllowFolderDownload bool               `envconfig:"FM_ALLOW_FOLDER_DOWNLOAD" default:"false" json:"allow_folder_download" yaml:"allow_folder_download" toml:"allow_folder_download"`
	DefaultPolicy       string             `envconfig:"FM_DEFAULT_POLICY" default:"allow" json:"default_policy" yaml:"default_policy" toml:"default_policy"`
	IgnoreCase          bool               `envconfig:"FM_RULES_IGNORE_CASE" default:"false" json:"ignore_case" yaml:"ignore_case" toml:"ignore_case"`
	ExtractMaxEntry     int64              `envconfig:"FM_EXTRACT_MAX_ENTRY" default:"0" json:"extract_max_entry" yaml:"extract_max_entry" toml:"extract_max_entry"`
	Rules               []restriction.Rule `ignored:"true" json:"rules" yaml:"rules" toml:"rules"`
}

// Duration is a time.Duration that reads "10s"-style text from the
// environment and from config files alike.
type Duration time.Duration

// UnmarshalText parses a Go duration string
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText renders the duration as a Go duration string
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the standard library duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Load loads configuration from environment variables, then overlays the
// file named by FM_CONFIG_FILE if any. File values win.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.File != "" {
		if err := cfg.Overlay(cfg.File); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Overlay decodes the file at path over cfg. The format follows the
// extension: .yaml/.yml, .toml or .json.
func (c *Config) Overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	case ".toml":
		err = toml.Unmarshal(data, c)
	case ".json":
		err = sonic.Unmarshal(data, c)
	default:
		return fmt.Errorf("unsupported config file format %q", ext)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Storage.FileRoot) == "" {
		errs = append(errs, errors.New("storage.file_root is empty"))
	}
	if strings.TrimSpace(c.Storage.ThumbnailRoot) == "" {
		errs = append(errs, errors.New("storage.thumbnail_root is empty"))
	}
	if c.sameOrAncestorRoots() {
		errs = append(errs, errors.New("storage.thumbnail_root must not contain the file root"))
	}
	if c.Upload.Limit <= 0 {
		errs = append(errs, fmt.Errorf("upload.limit must be positive, got %d", c.Upload.Limit))
	}
	if c.Images.ThumbnailWidth <= 0 || c.Images.ThumbnailHeight <= 0 {
		errs = append(errs, errors.New("thumbnail bounds must be positive"))
	}
	if c.Server.MaxConnections <= 0 {
		errs = append(errs, fmt.Errorf("server.max_connections must be positive, got %d", c.Server.MaxConnections))
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		errs = append(errs, errors.New("rate limit values must be positive"))
	}
	if c.Security.ExtractMaxEntry < 0 {
		errs = append(errs, errors.New("security.extract_max_entry must not be negative"))
	}

	switch restriction.Policy(c.Security.DefaultPolicy) {
	case restriction.PolicyAllow, restriction.PolicyDeny:
	default:
		errs = append(errs, fmt.Errorf("unknown default policy %q", c.Security.DefaultPolicy))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// sameOrAncestorRoots reports whether the thumbnail root equals or
// encloses the file root.
func (c *Config) sameOrAncestorRoots() bool {
	files, err := filepath.Abs(c.Storage.FileRoot)
	if err != nil {
		return false
	}
	thumbs, err := filepath.Abs(c.Storage.ThumbnailRoot)
	if err != nil {
		return false
	}
	if files == thumbs {
		return true
	}
	return strings.HasPrefix(files, thumbs+string(filepath.Separator))
}

// RestrictionConfig builds the restriction engine settings
func (c *Config) RestrictionConfig() restriction.Config {
	return restriction.Config{
		Rules:           c.Security.Rules,
		DefaultPolicy:   restriction.Policy(c.Security.DefaultPolicy),
		IgnoreCase:      c.Security.IgnoreCase,
		ImageExtensions: c.Images.Extensions,
	}
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8000",
			Host:            "0.0.0.0",
			MaxConnections:  1024,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		CORS: CORSConfig{
			Origins: []string{"*"},
		},
		Storage: StorageConfig{
			FileRoot:      "./userfiles",
			ThumbnailRoot: "./thumbnails",
		},
		Upload: UploadConfig{
			Limit: 16_000_000,
		},
		Images: ImageConfig{
			Extensions:       []string{"jpg", "jpeg", "gif", "png", "webp"},
			ThumbnailEnabled: true,
			ThumbnailWidth:   64,
			ThumbnailHeight:  64,
		},
		Security: SecurityConfig{
			DefaultPolicy: string(restriction.PolicyAllow),
		},
	}
}
