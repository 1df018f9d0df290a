// Package config layers defaults, a config file, the environment and command
// line flags into one Config.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/ritzau/sbom-sunburst/pkg/logging"
	"github.com/ritzau/sbom-sunburst/pkg/sunburst"
)

// EnvPrefix prefixes environment overrides, e.g. SBOM_SUNBURST_MAX_DEPTH=6.
const EnvPrefix = "SBOM_SUNBURST_"

// DefaultFiles are tried in order when no config file is given explicitly.
var DefaultFiles = []string{"sbom-sunburst.toml", "sbom-sunburst.yaml", "sbom-sunburst.yml"}

// Config holds all configuration for the application
type Config struct {
	Port           int    `koanf:"port"`
	Input          string `koanf:"input"`       // saved decomposition JSON
	ServiceURL     string `koanf:"service-url"` // decomposition service base URL
	SBOM           string `koanf:"sbom"`        // SBOM to decompose at startup
	MaxDepth       int    `koanf:"max-depth"`
	OnlyVulnerable bool   `koanf:"only-vulnerable"`
	Watch          bool   `koanf:"watch"`
	OpenBrowser    bool   `koanf:"open"`
	Verbosity      string `koanf:"verbosity"`
	VerboseCnt     int    `koanf:"verbose"`
	LogFormat      string `koanf:"log-format"`
}

// Defaults returns the lowest configuration layer.
func Defaults() map[string]any {
	return map[string]any{
		"port":            8080,
		"input":           "",
		"service-url":     "",
		"sbom":            "",
		"max-depth":       sunburst.DefaultMaxDepth,
		"only-vulnerable": true,
		"watch":           false,
		"open":            false,
		"verbosity":       "",
		"verbose":         0,
		"log-format":      string(logging.FormatCompact),
	}
}

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults
//
// configFile names an explicit config file, which must exist. When empty,
// DefaultFiles are tried in the working directory and missing ones skipped.
func Load(f *pflag.FlagSet, configFile string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(makeMapProvider(Defaults()), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := loadFile(k, configFile); err != nil {
		return nil, err
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(
			strings.TrimPrefix(s, EnvPrefix)), "_", "-")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if f != nil {
		if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func loadFile(k *koanf.Koanf, configFile string) error {
	candidates := DefaultFiles
	if configFile != "" {
		candidates = []string{configFile}
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			if configFile == "" && errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config file: %w", err)
		}

		parser, err := parserFor(path)
		if err != nil {
			return err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		logging.Debug("loaded config file", "path", path)
		return nil
	}
	return nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Parser(), nil
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	default:
		return nil, fmt.Errorf("config file %s: unsupported format, use .toml or .yaml", path)
	}
}

// Validate rejects settings no command can work with.
func (c *Config) Validate() error {
	var errs *multierror.Error
	if c.Port < 1 || c.Port > 65535 {
		errs = multierror.Append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.MaxDepth < 0 {
		errs = multierror.Append(errs, fmt.Errorf("max-depth must not be negative, got %d", c.MaxDepth))
	}
	if c.SBOM != "" && c.ServiceURL == "" {
		errs = multierror.Append(errs, errors.New("sbom requires service-url"))
	}
	if c.Input != "" && c.SBOM != "" {
		errs = multierror.Append(errs, errors.New("input and sbom are mutually exclusive"))
	}
	switch logging.Format(c.LogFormat) {
	case logging.FormatCompact, logging.FormatJSON:
	default:
		errs = multierror.Append(errs, fmt.Errorf("unknown log-format %q", c.LogFormat))
	}
	return errs.ErrorOrNil()
}

// mapProvider feeds a plain map into koanf.
type mapProvider struct {
	m map[string]any
}

func makeMapProvider(m map[string]any) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]any, error) {
	return p.m, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("not implemented")
}
