package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dgnsrekt/tabgrouper/internal/netutil"
	"github.com/dgnsrekt/tabgrouper/internal/settings"
	"github.com/joho/godotenv"
)

// Config holds configuration shared by the companion server and tabctl.
type Config struct {
	// CDP connection settings
	CDPAddress  string
	CDPPort     int
	ExtensionID string

	// HTTP API
	BindAddr         string
	PortCandidates   []string
	PortAutoFallback bool

	EvalTimeoutMS int
	LogLevel      string
	LogFile       string

	SettingsPath  string
	ProvidersFile string

	// Browser launch
	LaunchBrowser bool
	ExtensionDir  string
	ProfileDir    string
}

// Load reads configuration from environment variables and an optional .env
// file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	bind := getEnvOrDefault("TAB_GROUPER_BIND_ADDR", "127.0.0.1:8765")
	host, _, err := splitHost(bind)
	if err != nil {
		return nil, fmt.Errorf("TAB_GROUPER_BIND_ADDR: %w", err)
	}

	cfg := &Config{
		CDPAddress:       getEnvOrDefault("CHROMIUM_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:          getEnvIntOrDefault("CHROMIUM_CDP_PORT", 9222),
		ExtensionID:      getEnvOrDefault("TAB_GROUPER_EXTENSION_ID", ""),
		BindAddr:         bind,
		PortCandidates:   netutil.ParseCandidates(host, getEnvOrDefault("TAB_GROUPER_PORT_CANDIDATES", "8766,8767,8768")),
		PortAutoFallback: getEnvBoolOrDefault("TAB_GROUPER_PORT_AUTO_FALLBACK", true),
		EvalTimeoutMS:    getEnvIntOrDefault("TAB_GROUPER_EVAL_TIMEOUT_MS", 5000),
		LogLevel:         strings.ToLower(getEnvOrDefault("TAB_GROUPER_LOG_LEVEL", "info")),
		LogFile:          getEnvOrDefault("TAB_GROUPER_LOG_FILE", "logs/tab_grouper.log"),
		SettingsPath:     getEnvOrDefault("TAB_GROUPER_SETTINGS_PATH", settings.DefaultPath()),
		ProvidersFile:    getEnvOrDefault("TAB_GROUPER_PROVIDERS_FILE", ""),
		LaunchBrowser:    getEnvBoolOrDefault("TAB_GROUPER_LAUNCH_BROWSER", false),
		ExtensionDir:     getEnvOrDefault("TAB_GROUPER_EXTENSION_DIR", ""),
		ProfileDir:       getEnvOrDefault("TAB_GROUPER_PROFILE_DIR", filepath.Join(os.TempDir(), "tab_grouper_profile")),
	}
	if cfg.EvalTimeoutMS < 1000 {
		cfg.EvalTimeoutMS = 1000
	}
	if cfg.LaunchBrowser && cfg.ExtensionDir == "" {
		return nil, fmt.Errorf("TAB_GROUPER_LAUNCH_BROWSER requires TAB_GROUPER_EXTENSION_DIR")
	}
	return cfg, nil
}

// CDPURL returns the CDP HTTP endpoint.
func (c *Config) CDPURL() string {
	return "http://" + c.CDPAddress + ":" + strconv.Itoa(c.CDPPort)
}

func splitHost(addr string) (string, string, error) {
	i := strings.LastIndex(addr, ":")
	if i < 0 {
		return "", "", fmt.Errorf("missing port in %q", addr)
	}
	return addr[:i], addr[i+1:], nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
