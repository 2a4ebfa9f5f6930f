package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Storage backends.
const (
	StorageFilesystem = "filesystem"
	StorageMemory     = "memory"
	StorageS3         = "s3"
	StorageMinIO      = "minio"
)

// Transformation backends.
const (
	TransformCloudflare = "cloudflare"
	TransformLocal      = "local"
)

// Config is the root configuration struct for imgapi.
type Config struct {
	Env        string           `mapstructure:"env" validate:"omitempty,oneof=dev development prod production"`
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Origin     OriginConfig     `mapstructure:"origin"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Transform  TransformConfig  `mapstructure:"transform"`
	Cloudflare CloudflareConfig `mapstructure:"cloudflare"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Log        LogConfig        `mapstructure:"log"`
}

// IsProduction reports whether Env names a production deployment.
func (c *Config) IsProduction() bool {
	return c.Env == "prod" || c.Env == "production"
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port        int   `mapstructure:"port" validate:"required,min=1,max=65535"`
	MaxBodySize int64 `mapstructure:"max_body_size" validate:"min=0"`
}

// AuthConfig holds the admin bearer secret. An empty secret disables the
// admin routes.
type AuthConfig struct {
	Secret string `mapstructure:"secret"`
}

// OriginConfig locates the untransformed images.
type OriginConfig struct {
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
}

// StorageConfig selects and configures the object store.
type StorageConfig struct {
	Type            string `mapstructure:"type" validate:"required,oneof=filesystem memory s3 minio"`
	Path            string `mapstructure:"path"`
	Bucket          string `mapstructure:"bucket"`
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

func (s StorageConfig) validate() error {
	switch s.Type {
	case StorageFilesystem:
		if s.Path == "" {
			return errors.New("storage.path is required for filesystem storage")
		}
	case StorageS3:
		if s.Bucket == "" {
			return errors.New("storage.bucket is required for s3 storage")
		}
	case StorageMinIO:
		if s.Bucket == "" || s.Endpoint == "" {
			return errors.New("storage.bucket and storage.endpoint are required for minio storage")
		}
	}
	return nil
}

// TransformConfig selects the image transformation backend.
type TransformConfig struct {
	Backend string `mapstructure:"backend" validate:"required,oneof=cloudflare local"`
	// ZoneHost is the Cloudflare hostname with Image Resizing enabled.
	ZoneHost  string        `mapstructure:"zone_host" validate:"required_if=Backend cloudflare"`
	UserAgent string        `mapstructure:"user_agent" validate:"required"`
	// Timeout bounds the wait for upstream response headers, not the body.
	Timeout   time.Duration `mapstructure:"timeout" validate:"min=0"`
}

// CloudflareConfig holds purge API credentials. Purging is disabled when
// APIToken or ZoneID is empty.
type CloudflareConfig struct {
	APIToken string `mapstructure:"api_token"`
	ZoneID   string `mapstructure:"zone_id"`
	APIBase  string `mapstructure:"api_base" validate:"required,url"`
}

// PurgeEnabled reports whether purge credentials are configured.
func (c CloudflareConfig) PurgeEnabled() bool {
	return c.APIToken != "" && c.ZoneID != ""
}

// CORSConfig holds cross-origin settings for the gateway.
type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age" validate:"min=0"`
}

// MetricsConfig holds the metrics listener address. Empty disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" validate:"omitempty,hostname_port"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"port":              "server.port",
	"origin":            "origin.base_url",
	"storage-type":      "storage.type",
	"storage-path":      "storage.path",
	"transform-backend": "transform.backend",
	"metrics-addr":      "metrics.addr",
	"log-level":         "log.level",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		// Use custom mapping if it exists, otherwise use flag name as-is
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults configures default values on the viper instance. Every key
// gets a default so AutomaticEnv can see it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_body_size", 32<<20)

	v.SetDefault("auth.secret", "")

	v.SetDefault("origin.base_url", "")

	v.SetDefault("storage.type", StorageFilesystem)
	v.SetDefault("storage.path", "./data")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.access_key_id", "")
	v.SetDefault("storage.secret_access_key", "")
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.use_path_style", false)

	v.SetDefault("transform.backend", TransformLocal)
	v.SetDefault("transform.zone_host", "")
	v.SetDefault("transform.user_agent", "imgapi/1.0")
	v.SetDefault("transform.timeout", 30*time.Second)

	v.SetDefault("cloudflare.api_token", "")
	v.SetDefault("cloudflare.zone_id", "")
	v.SetDefault("cloudflare.api_base", "https://api.cloudflare.com/client/v4")

	v.SetDefault("cors.enabled", false)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "HEAD", "POST", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Authorization", "Content-Type"})
	v.SetDefault("cors.exposed_headers", []string{})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 300)

	v.SetDefault("metrics.addr", "")

	v.SetDefault("log.level", "info")
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Read config files
	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	// 3. Bind environment variables
	v.SetEnvPrefix("IMGAPI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Bind flags (if provided)
	if flags != nil {
		bindFlags(v, flags)
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// 6. Validate using go-playground/validator
	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if err := cfg.Storage.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}
