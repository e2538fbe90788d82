// Package config provides layered configuration loading for the peek client.
// Precedence (lowest → highest): defaults → optional YAML file (PEEK_CONFIG)
// → PEEK_* environment variables, with struct-tag validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"

	"github.com/haukened/peek/internal/domain"
)

// envPrefix namespaces every environment variable the client reads.
const envPrefix = "PEEK_"

// Config holds the merged runtime configuration.
type Config struct {
	Addr           string        `koanf:"addr" validate:"required"`
	BackendURL     string        `koanf:"backend_url" validate:"required,url"`
	RequestTimeout time.Duration `koanf:"request_timeout" validate:"required,gt=0"`
	MinTTL         time.Duration `koanf:"min_ttl" validate:"required,gt=0"`
	MaxTTL         time.Duration `koanf:"max_ttl" validate:"required,gtefield=MinTTL"`
	TTLOptions     []string      `koanf:"ttl_options" validate:"required,min=1,dive,required"`
	MaxBytes       int64         `koanf:"max_bytes" validate:"required,gt=0"`
	DataDir        string        `koanf:"data_dir" validate:"required"`
	MetricsToken   string        `koanf:"metrics_token"`
}

// DefaultAppConfig is the baseline every deployment starts from.
var DefaultAppConfig = Config{
	Addr:           ":8080",
	BackendURL:     "http://localhost:7143",
	RequestTimeout: 30 * time.Second,
	MinTTL:         domain.MinTTL,
	MaxTTL:         domain.MaxTTL,
	TTLOptions:     []string{"1h", "4h", "12h", "24h", "72h", "168h"},
	MaxBytes:       64 << 10, // 64 KiB of secret text is plenty
	DataDir:        "./data",
}

// Load builds the effective configuration. The file pointed to by PEEK_CONFIG
// (when set) overlays the defaults; PEEK_* variables overlay both.
func Load() (*Config, error) {
	cfg := DefaultAppConfig
	if path, ok := os.LookupEnv(envPrefix + "CONFIG"); ok && path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return nil, err
		}
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(cfg, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if err := k.Load(env.Provider(".", env.Opt{Prefix: envPrefix, TransformFunc: transformEnv}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
			Result:           &cfg,
			WeaklyTypedInput: true,
		},
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// transformEnv maps PEEK_BACKEND_URL style names to koanf keys and splits
// list-valued variables on commas. PEEK_CONFIG is handled before koanf runs,
// so it is dropped here.
func transformEnv(key, value string) (string, any) {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	if key == "config" {
		return "", nil
	}
	if key == "ttl_options" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return key, parts
	}
	return key, value
}

// fileConfig mirrors Config with raw string durations so a YAML file can say
// "30s" or "168h". Empty fields mean "not set" and leave the overlay alone.
type fileConfig struct {
	Addr           string   `yaml:"addr"`
	BackendURL     string   `yaml:"backend_url"`
	RequestTimeout string   `yaml:"request_timeout"`
	MinTTL         string   `yaml:"min_ttl"`
	MaxTTL         string   `yaml:"max_ttl"`
	TTLOptions     []string `yaml:"ttl_options"`
	MaxBytes       *int64   `yaml:"max_bytes"`
	DataDir        string   `yaml:"data_dir"`
	MetricsToken   string   `yaml:"metrics_token"`
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	strFields := []struct {
		val string
		dst *string
	}{
		{fc.Addr, &cfg.Addr},
		{fc.BackendURL, &cfg.BackendURL},
		{fc.DataDir, &cfg.DataDir},
		{fc.MetricsToken, &cfg.MetricsToken},
	}
	for _, f := range strFields {
		if f.val != "" {
			*f.dst = f.val
		}
	}
	durFields := []struct {
		raw   string
		label string
		dst   *time.Duration
	}{
		{fc.RequestTimeout, "request_timeout", &cfg.RequestTimeout},
		{fc.MinTTL, "min_ttl", &cfg.MinTTL},
		{fc.MaxTTL, "max_ttl", &cfg.MaxTTL},
	}
	for _, f := range durFields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", f.label, err)
		}
		*f.dst = d
	}
	if len(fc.TTLOptions) > 0 {
		cfg.TTLOptions = fc.TTLOptions
	}
	if fc.MaxBytes != nil {
		cfg.MaxBytes = *fc.MaxBytes
	}
	return nil
}

// Validate performs struct-tag validation plus the logical checks tags cannot
// express: TTL options must parse and fit the configured bounds, and the data
// dir must be a sane relative or absolute path with no traversal.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	if _, err := cfg.Options(); err != nil {
		return err
	}
	if err := validateDataDir(cfg.DataDir); err != nil {
		return err
	}
	return nil
}

// Options parses TTLOptions into domain options, enforcing the TTL bounds.
func (c *Config) Options() ([]domain.TTLOption, error) {
	opts := make([]domain.TTLOption, 0, len(c.TTLOptions))
	for _, label := range c.TTLOptions {
		opt, err := domain.NewTTLOption(label)
		if err != nil {
			return nil, fmt.Errorf("ttl option %q: %w", label, err)
		}
		if !domain.IsTTLValid(opt.Duration, c.MinTTL, c.MaxTTL) {
			return nil, fmt.Errorf("ttl option %q outside [%v, %v]: %w", label, c.MinTTL, c.MaxTTL, domain.ErrTTLInvalid)
		}
		opts = append(opts, opt)
	}
	return opts, nil
}

func validateDataDir(dir string) error {
	cleaned := filepath.Clean(dir)
	switch {
	case dir == "" || cleaned == "." || cleaned == string(filepath.Separator):
		return fmt.Errorf("data dir %q is not usable", dir)
	case cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)):
		return fmt.Errorf("data dir %q escapes the working directory", dir)
	}
	return nil
}
