package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestResolveConfig_Defaults(t *testing.T) {
	resolved, err := ResolveConfig(ResolveOptions{
		ConfigPath: filepath.Join(t.TempDir(), "missing.yaml"),
	})
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}

	if resolved.Locale.Value != "en" || resolved.Locale.Source != SourceDefault {
		t.Errorf("locale = %+v, want built-in default en", resolved.Locale)
	}
	if got := resolved.InactivityDuration(); got != 5*time.Minute {
		t.Errorf("inactivity = %v, want 5m", got)
	}
	if got := resolved.ChunkRowCount(); got != DefaultChunkRows {
		t.Errorf("chunk rows = %d, want %d", got, DefaultChunkRows)
	}
	if diff := cmp.Diff([]string{"tiktok", "chatgpt"}, resolved.PlatformNames()); diff != "" {
		t.Errorf("platforms mismatch (-want +got):\n%s", diff)
	}
	from, to := resolved.Window()
	if from.Year() != 2021 || to.Year() != 2025 {
		t.Errorf("window = %v..%v", from, to)
	}
}

func TestResolveConfig_Precedence_ConfigEnvCLI(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "config.yaml")
	yaml := `db_path: ~/.donorkit/from-config.db
locale: nl
platforms: tiktok
flow:
  inactivity: 10m
  chunk_rows: 100
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("DONORKIT_DB", "~/from-env.db")
	t.Setenv("DONORKIT_LOCALE", "en")

	resolved, err := ResolveConfig(ResolveOptions{
		ConfigPath: cfgPath,
		CLIDBPath:  "~/from-cli.db",
	})
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}

	if resolved.DBPath.Source != SourceCLI {
		t.Errorf("db path source = %s, want cli", resolved.DBPath.Source)
	}
	if resolved.Locale.Source != SourceEnv || resolved.Locale.Value != "en" {
		t.Errorf("locale = %+v, want env en", resolved.Locale)
	}
	if resolved.Platforms.Source != SourceConfig {
		t.Errorf("platforms source = %s, want config", resolved.Platforms.Source)
	}
	if got := resolved.InactivityDuration(); got != 10*time.Minute {
		t.Errorf("inactivity = %v, want 10m", got)
	}
	if got := resolved.ChunkRowCount(); got != 100 {
		t.Errorf("chunk rows = %d, want 100", got)
	}
}

func TestResolveConfig_ExpandsUserPath(t *testing.T) {
	resolved, err := ResolveConfig(ResolveOptions{
		ConfigPath: filepath.Join(t.TempDir(), "missing.yaml"),
		CLIDBPath:  "~/somewhere.db",
	})
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}
	home, _ := os.UserHomeDir()
	if want := filepath.Join(home, "somewhere.db"); resolved.DBPath.Value != want {
		t.Errorf("db path = %q, want %q", resolved.DBPath.Value, want)
	}
}

func TestResolveConfig_InvalidInactivity(t *testing.T) {
	_, err := ResolveConfig(ResolveOptions{
		ConfigPath:    filepath.Join(t.TempDir(), "missing.yaml"),
		CLIInactivity: "not-a-duration",
	})
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
}

func TestResolveConfig_BadYAML(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("{not yaml"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := ResolveConfig(ResolveOptions{ConfigPath: cfgPath}); err == nil {
		t.Fatal("expected parse error, got nil")
	}
}
