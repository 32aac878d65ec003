// Package config resolves donorkit settings from config file, environment,
// and CLI flags, tracking where each value came from.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

// ResolvedValue is a setting plus its provenance.
type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

// ResolveOptions carries CLI-level overrides into resolution.
type ResolveOptions struct {
	ConfigPath    string
	CLIDBPath     string
	CLILocale     string
	CLIPlatforms  string // comma-separated
	CLIInactivity string // Go duration, e.g. "5m"
}

// ResolvedConfig is the fully resolved settings surface.
type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	DBPath     ResolvedValue `json:"db_path"`
	Locale     ResolvedValue `json:"locale"`
	Platforms  ResolvedValue `json:"platforms"`
	Inactivity ResolvedValue `json:"inactivity"`
	ChunkRows  ResolvedValue `json:"chunk_rows"`
	WindowFrom ResolvedValue `json:"window_from"`
	WindowTo   ResolvedValue `json:"window_to"`
}

type fileConfig struct {
	DBPath    string `yaml:"db_path"`
	Locale    string `yaml:"locale"`
	Platforms string `yaml:"platforms"`
	Flow      struct {
		Inactivity string `yaml:"inactivity"`
		ChunkRows  int    `yaml:"chunk_rows"`
	} `yaml:"flow"`
	Window struct {
		From string `yaml:"from"`
		To   string `yaml:"to"`
	} `yaml:"window"`
}

// Built-in defaults. The analysis window matches the study period the
// extractors were designed for.
const (
	DefaultDBPath     = "~/.donorkit/donorkit.db"
	DefaultLocale     = "en"
	DefaultPlatforms  = "tiktok,chatgpt"
	DefaultInactivity = "5m"
	DefaultChunkRows  = 5000
	DefaultWindowFrom = "2021-01-01"
	DefaultWindowTo   = "2025-01-01"
)

// DefaultConfigPath is where donorkit looks for its config file.
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".donorkit", "config.yaml")
}

// ResolveConfig loads the config file (missing file is fine) and applies
// env and CLI overrides in increasing precedence: default < config < env < cli.
func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{
		ConfigPath: path,
		DBPath:     defaultValue(DefaultDBPath),
		Locale:     defaultValue(DefaultLocale),
		Platforms:  defaultValue(DefaultPlatforms),
		Inactivity: defaultValue(DefaultInactivity),
		ChunkRows:  defaultValue(strconv.Itoa(DefaultChunkRows)),
		WindowFrom: defaultValue(DefaultWindowFrom),
		WindowTo:   defaultValue(DefaultWindowTo),
	}

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}
	if cfg != nil {
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		apply(&out.Locale, cfg.Locale, SourceConfig, path)
		apply(&out.Platforms, cfg.Platforms, SourceConfig, path)
		apply(&out.Inactivity, cfg.Flow.Inactivity, SourceConfig, path)
		if cfg.Flow.ChunkRows > 0 {
			out.ChunkRows = ResolvedValue{Value: strconv.Itoa(cfg.Flow.ChunkRows), Source: SourceConfig, From: path}
		}
		apply(&out.WindowFrom, cfg.Window.From, SourceConfig, path)
		apply(&out.WindowTo, cfg.Window.To, SourceConfig, path)
	}

	applyEnv(&out.DBPath, "DONORKIT_DB")
	applyEnv(&out.Locale, "DONORKIT_LOCALE")
	applyEnv(&out.Platforms, "DONORKIT_PLATFORMS")
	applyEnv(&out.Inactivity, "DONORKIT_INACTIVITY")
	applyEnv(&out.ChunkRows, "DONORKIT_CHUNK_ROWS")
	applyEnv(&out.WindowFrom, "DONORKIT_WINDOW_FROM")
	applyEnv(&out.WindowTo, "DONORKIT_WINDOW_TO")

	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")
	apply(&out.Locale, opts.CLILocale, SourceCLI, "--locale")
	apply(&out.Platforms, opts.CLIPlatforms, SourceCLI, "--platforms")
	apply(&out.Inactivity, opts.CLIInactivity, SourceCLI, "--inactivity")

	if out.DBPath.Value != "" {
		out.DBPath.Value = expandUserPath(out.DBPath.Value)
	}

	if err := out.validate(); err != nil {
		return out, err
	}
	return out, nil
}

// PlatformNames returns the enabled platform names in configured order.
func (r ResolvedConfig) PlatformNames() []string {
	var out []string
	for _, p := range strings.Split(r.Platforms.Value, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// InactivityDuration returns the session gap threshold.
func (r ResolvedConfig) InactivityDuration() time.Duration {
	d, err := time.ParseDuration(r.Inactivity.Value)
	if err != nil {
		d, _ = time.ParseDuration(DefaultInactivity)
	}
	return d
}

// ChunkRowCount returns the consent table chunk size.
func (r ResolvedConfig) ChunkRowCount() int {
	n, err := strconv.Atoi(r.ChunkRows.Value)
	if err != nil || n <= 0 {
		return DefaultChunkRows
	}
	return n
}

// Window returns the analysis window bounds.
func (r ResolvedConfig) Window() (time.Time, time.Time) {
	from, err := time.Parse("2006-01-02", r.WindowFrom.Value)
	if err != nil {
		from, _ = time.Parse("2006-01-02", DefaultWindowFrom)
	}
	to, err := time.Parse("2006-01-02", r.WindowTo.Value)
	if err != nil {
		to, _ = time.Parse("2006-01-02", DefaultWindowTo)
	}
	return from, to
}

func (r ResolvedConfig) validate() error {
	if _, err := time.ParseDuration(r.Inactivity.Value); err != nil {
		return fmt.Errorf("invalid inactivity %q (from %s): %w", r.Inactivity.Value, r.Inactivity.Source, err)
	}
	if _, err := time.Parse("2006-01-02", r.WindowFrom.Value); err != nil {
		return fmt.Errorf("invalid window from %q (from %s): %w", r.WindowFrom.Value, r.WindowFrom.Source, err)
	}
	if _, err := time.Parse("2006-01-02", r.WindowTo.Value); err != nil {
		return fmt.Errorf("invalid window to %q (from %s): %w", r.WindowTo.Value, r.WindowTo.Source, err)
	}
	return nil
}

func loadConfig(path string) (*fileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &cfg, nil
}

func defaultValue(v string) ResolvedValue {
	return ResolvedValue{Value: v, Source: SourceDefault, From: "built-in default"}
}

func apply(dst *ResolvedValue, value string, source ValueSource, from string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	*dst = ResolvedValue{Value: value, Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, env string) {
	apply(dst, os.Getenv(env), SourceEnv, env)
}

func expandUserPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
