package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment names read by Load.
const (
	EnvPrefix = "BOSSTL_"
	EnvConfig = EnvPrefix + "CONFIG"   // YAML config file path
	EnvFile   = EnvPrefix + "ENV_FILE" // dotenv file path, ".env" when unset
)

// Load builds a Config by layering sources.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. dotenv file, if present (BOSSTL_ENV_FILE or ./.env)
//  3. YAML file, if BOSSTL_CONFIG is set
//  4. env (prefix BOSSTL_)
func Load(ctx context.Context) (*Config, error) {
	cfg := New(ctx)

	k := koanf.New(".")

	envFile := os.Getenv(EnvFile)
	if envFile == "" {
		envFile = ".env"
	}
	if err := loadDotenv(k, envFile); err != nil {
		return nil, err
	}

	if path := os.Getenv(EnvConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// BOSSTL_QUEUE_SIZE -> queue_size. Keys stay flat to match the koanf tags.
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	// Comma-separated env values decode into list fields.
	conf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
				mapstructure.TextUnmarshallerHookFunc()),
			Result:           cfg,
			TagName:          "koanf",
			WeaklyTypedInput: true,
		},
	}
	if err := k.UnmarshalWithConf("", cfg, conf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envKey(s string) string {
	return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
}

// loadDotenv reads BOSSTL_ entries from a dotenv file without touching the
// process environment, so real env vars still win. A missing file is fine.
func loadDotenv(k *koanf.Koanf, path string) error {
	vals, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
	}
	for name, val := range vals {
		if !strings.HasPrefix(name, EnvPrefix) || name == EnvConfig || name == EnvFile {
			continue
		}
		if err := k.Set(envKey(name), val); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrLoadConfig, name, err)
		}
	}
	return nil
}
