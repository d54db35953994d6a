// Package config loads layered server configuration from CLI flags,
// environment variables, an optional config file, and defaults, in that
// order of precedence.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (TREASURY_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/pineappleswan/treasury/internal/bytesize"
)

// Config is the server's static configuration.
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Port is the HTTP listen port.
	Port int `mapstructure:"port" validate:"required,min=1,max=65535" yaml:"port"`

	// Secret is the server-instance secret bound into cover-traffic fake
	// salts and (in a full deployment) session-cookie signing. Must decode
	// to at least 64 bytes of hex.
	Secret string `mapstructure:"secret" validate:"required" yaml:"secret"`

	// SecureCookies controls the Secure flag on session cookies. Forced
	// off when DevelopmentMode is set.
	SecureCookies bool `mapstructure:"secure_cookies" yaml:"secure_cookies"`

	// DevelopmentMode relaxes cookie security and enables verbose logging
	// defaults suited to local iteration.
	DevelopmentMode bool `mapstructure:"development_mode" yaml:"development_mode"`

	// DatabasePath is the catalog's SQLite file path.
	DatabasePath string `mapstructure:"user_database_file_path" validate:"required" yaml:"user_database_file_path"`

	// StorageDir holds finalised .tef blobs.
	StorageDir string `mapstructure:"user_file_storage_path" validate:"required" yaml:"user_file_storage_path"`

	// UploadTempDir holds in-progress upload .tef blobs.
	UploadTempDir string `mapstructure:"user_upload_temporary_storage_path" validate:"required" yaml:"user_upload_temporary_storage_path"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	// SessionTTL is how long an idle session survives before the sweeper
	// evicts it.
	SessionTTL time.Duration `mapstructure:"session_ttl" yaml:"session_ttl"`

	// SessionSweepInterval is how often the session sweeper runs.
	SessionSweepInterval time.Duration `mapstructure:"session_sweep_interval" yaml:"session_sweep_interval"`

	// UploadIdleTimeout bounds how long an UploadSession may sit inactive
	// before the upload sweeper cancels it.
	UploadIdleTimeout time.Duration `mapstructure:"upload_idle_timeout" yaml:"upload_idle_timeout"`

	// UploadSweepInterval is how often the upload sweeper runs.
	UploadSweepInterval time.Duration `mapstructure:"upload_sweep_interval" yaml:"upload_sweep_interval"`

	// MaxJSONBodyBytes and MaxRawBodyBytes bound the gateway's body-size
	// limits (JSON requests vs. raw binary chunk uploads).
	MaxJSONBodyBytes bytesize.ByteSize `mapstructure:"max_json_body_bytes" yaml:"max_json_body_bytes"`
	MaxRawBodyBytes  bytesize.ByteSize `mapstructure:"max_raw_body_bytes" yaml:"max_raw_body_bytes"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive).
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format.
	// Valid values: text, json.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written: stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// SecretBytes decodes Secret from hex.
func (c *Config) SecretBytes() ([]byte, error) {
	return hex.DecodeString(c.Secret)
}

// ApplyDefaults fills unset fields with sane defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = "databases/userdata.db"
	}
	if cfg.StorageDir == "" {
		cfg.StorageDir = "userfiles"
	}
	if cfg.UploadTempDir == "" {
		cfg.UploadTempDir = "uploads"
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = time.Hour
	}
	if cfg.SessionSweepInterval == 0 {
		cfg.SessionSweepInterval = time.Hour
	}
	if cfg.UploadIdleTimeout == 0 {
		cfg.UploadIdleTimeout = 30 * time.Minute
	}
	if cfg.UploadSweepInterval == 0 {
		cfg.UploadSweepInterval = 5 * time.Minute
	}
	if cfg.MaxJSONBodyBytes == 0 {
		cfg.MaxJSONBodyBytes = 5 * bytesize.MiB
	}
	if cfg.MaxRawBodyBytes == 0 {
		cfg.MaxRawBodyBytes = 50 * bytesize.MiB
	}

	if cfg.DevelopmentMode {
		cfg.SecureCookies = false
	}
}

var structValidator = validator.New()

// Validate runs struct-tag validation plus the checks a tag can't express
// (the secret's decoded length).
func Validate(cfg *Config) error {
	if err := structValidator.Struct(cfg); err != nil {
		return err
	}

	secret, err := cfg.SecretBytes()
	if err != nil {
		return fmt.Errorf("secret must be valid hex: %w", err)
	}
	if len(secret) < 64 {
		return fmt.Errorf("secret must decode to at least 64 bytes, got %d", len(secret))
	}
	return nil
}

// Load loads configuration from file, environment, and defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	_ = found // informational only; defaults stand in for a missing file

	// Registering every known key lets AutomaticEnv's TREASURY_* overrides
	// reach Unmarshal even when no config file backs a given key.
	bindEnvKeys(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// SaveConfig writes cfg to path in YAML.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// setupViper configures environment-variable and config-file handling.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("TREASURY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if present. A missing file
// is not an error: defaults plus environment variables stand in its place.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read config file: %w", err)
	}
	return true, nil
}

// bareNameEnvKeys maps a config key to the bare (unprefixed) environment
// variable name the distilled spec's wire-level configuration surface uses
// directly. Bound alongside the TREASURY_* form, with TREASURY_* taking
// precedence, for compatibility with deployments that set these directly.
var bareNameEnvKeys = map[string]string{
	"port":                               "PORT",
	"secret":                             "SECRET",
	"secure_cookies":                     "SECURE_COOKIES",
	"development_mode":                   "DEVELOPMENT_MODE",
	"user_database_file_path":            "USER_DATABASE_FILE_PATH",
	"user_file_storage_path":             "USER_FILE_STORAGE_PATH",
	"user_upload_temporary_storage_path": "USER_UPLOAD_TEMPORARY_STORAGE_PATH",
}

// bindEnvKeys registers every known key with viper so AutomaticEnv picks up
// TREASURY_* overrides even without a backing config file, and additionally
// binds the bare spec-level names in bareNameEnvKeys as a compatibility
// layer, TREASURY_* taking precedence when both are set.
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"logging.level", "logging.format", "logging.output",
		"port", "secret", "secure_cookies", "development_mode",
		"user_database_file_path", "user_file_storage_path", "user_upload_temporary_storage_path",
		"shutdown_timeout", "session_ttl", "session_sweep_interval",
		"upload_idle_timeout", "upload_sweep_interval",
		"max_json_body_bytes", "max_raw_body_bytes",
	}
	for _, key := range keys {
		if bare, ok := bareNameEnvKeys[key]; ok {
			prefixed := "TREASURY_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
			_ = v.BindEnv(key, prefixed, bare)
			continue
		}
		_ = v.BindEnv(key)
	}
}

// configDecodeHooks composes the custom decode hooks for ByteSize and
// time.Duration fields.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}
