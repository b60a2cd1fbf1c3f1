package config

import (
	"reflect"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CHROMIUM_CDP_ADDRESS", "CHROMIUM_CDP_PORT", "TAB_GROUPER_EXTENSION_ID",
		"TAB_GROUPER_BIND_ADDR", "TAB_GROUPER_PORT_CANDIDATES", "TAB_GROUPER_PORT_AUTO_FALLBACK",
		"TAB_GROUPER_EVAL_TIMEOUT_MS", "TAB_GROUPER_LOG_LEVEL", "TAB_GROUPER_LOG_FILE",
		"TAB_GROUPER_SETTINGS_PATH", "TAB_GROUPER_PROVIDERS_FILE", "TAB_GROUPER_LAUNCH_BROWSER",
		"TAB_GROUPER_EXTENSION_DIR", "TAB_GROUPER_PROFILE_DIR",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CDPURL() != "http://127.0.0.1:9222" {
		t.Fatalf("CDPURL() = %q", cfg.CDPURL())
	}
	if cfg.BindAddr != "127.0.0.1:8765" {
		t.Fatalf("BindAddr = %q", cfg.BindAddr)
	}
	want := []string{"127.0.0.1:8766", "127.0.0.1:8767", "127.0.0.1:8768"}
	if !reflect.DeepEqual(cfg.PortCandidates, want) {
		t.Fatalf("PortCandidates = %v; want %v", cfg.PortCandidates, want)
	}
	if !cfg.PortAutoFallback || cfg.LaunchBrowser {
		t.Fatalf("flags = fallback %v launch %v", cfg.PortAutoFallback, cfg.LaunchBrowser)
	}
	if cfg.SettingsPath == "" {
		t.Fatal("SettingsPath is empty")
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHROMIUM_CDP_PORT", "9333")
	t.Setenv("TAB_GROUPER_EVAL_TIMEOUT_MS", "10")
	t.Setenv("TAB_GROUPER_LOG_LEVEL", "DEBUG")
	t.Setenv("TAB_GROUPER_SETTINGS_PATH", "/tmp/tg/settings.json")
	t.Setenv("TAB_GROUPER_PORT_CANDIDATES", "9001, 0.0.0.0:9002")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CDPPort != 9333 || cfg.EvalTimeoutMS != 1000 || cfg.LogLevel != "debug" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.SettingsPath != "/tmp/tg/settings.json" {
		t.Fatalf("SettingsPath = %q", cfg.SettingsPath)
	}
	if want := []string{"127.0.0.1:9001", "0.0.0.0:9002"}; !reflect.DeepEqual(cfg.PortCandidates, want) {
		t.Fatalf("PortCandidates = %v; want %v", cfg.PortCandidates, want)
	}
}

func TestLoadLaunchRequiresExtensionDir(t *testing.T) {
	clearEnv(t)
	t.Setenv("TAB_GROUPER_SETTINGS_PATH", "/tmp/tg/settings.json")
	t.Setenv("TAB_GROUPER_LAUNCH_BROWSER", "true")
	if _, err := Load(); err == nil {
		t.Fatal("Load() error = nil; want launch without extension dir rejected")
	}
}
