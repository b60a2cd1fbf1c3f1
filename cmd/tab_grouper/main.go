package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dgnsrekt/tabgrouper/internal/api"
	"github.com/dgnsrekt/tabgrouper/internal/browser"
	"github.com/dgnsrekt/tabgrouper/internal/config"
	"github.com/dgnsrekt/tabgrouper/internal/controller"
	"github.com/dgnsrekt/tabgrouper/internal/events"
	"github.com/dgnsrekt/tabgrouper/internal/netutil"
	"github.com/dgnsrekt/tabgrouper/internal/settings"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		if _, writeErr := io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n"); writeErr != nil {
			slog.Debug("logger setup stderr write failed", "error", writeErr)
		}
		os.Exit(1)
	}

	slog.Info("tab_grouper config loaded",
		"cdp_url", cfg.CDPURL(),
		"extension_id", cfg.ExtensionID,
		"bind_addr", cfg.BindAddr,
		"eval_timeout_ms", cfg.EvalTimeoutMS,
		"port_auto_fallback", cfg.PortAutoFallback,
		"port_candidates", cfg.PortCandidates,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
		"settings_path", cfg.SettingsPath,
		"providers_file", cfg.ProvidersFile,
		"launch_browser", cfg.LaunchBrowser,
	)

	bindAddr, err := netutil.SelectBindAddr(cfg.BindAddr, cfg.PortCandidates, cfg.PortAutoFallback)
	if err != nil {
		slog.Error("failed to select bind address", "preferred", cfg.BindAddr, "error", err)
		os.Exit(1)
	}

	if cfg.LaunchBrowser {
		launcher := browser.NewLauncher(browser.LaunchConfig{
			CDPAddress:   cfg.CDPAddress,
			CDPPort:      cfg.CDPPort,
			ProfileDir:   cfg.ProfileDir,
			ExtensionDir: cfg.ExtensionDir,
		})
		if err := launcher.Launch(context.Background()); err != nil {
			slog.Error("failed to launch browser", "error", err)
			os.Exit(1)
		}
		defer launcher.Stop()
	}

	cdpBrowser := browser.NewCDPBrowser(cfg.CDPURL(), cfg.ExtensionID, time.Duration(cfg.EvalTimeoutMS)*time.Millisecond)
	if err := cdpBrowser.Connect(context.Background()); err != nil {
		slog.Error("failed to connect to browser", "cdp_url", cfg.CDPURL(), "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := cdpBrowser.Close(); err != nil {
			slog.Debug("CDP browser close failed", "error", err)
		}
	}()
	if extID, err := cdpBrowser.Probe(context.Background()); err != nil {
		slog.Warn("extension probe failed", "error", err)
	} else {
		slog.Info("extension worker ready", "extension_id", extID)
	}

	store, err := settings.NewStore(cfg.SettingsPath)
	if err != nil {
		slog.Error("failed to open settings store", "path", cfg.SettingsPath, "error", err)
		os.Exit(1)
	}
	providers, err := controller.LoadProviders(cfg.ProvidersFile)
	if err != nil {
		slog.Error("failed to load provider table", "path", cfg.ProvidersFile, "error", err)
		os.Exit(1)
	}

	broker := events.NewBroker()
	svc := controller.NewService(cdpBrowser, store, providers, controller.Options{Publisher: broker})
	h := api.NewServer(svc, broker)

	srv := &http.Server{Addr: bindAddr, Handler: h}

	go func() {
		slog.Info("tab_grouper listening", "addr", bindAddr, "docs", "http://"+bindAddr+"/docs")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("tab_grouper server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("tab_grouper shutdown failed", "error", err)
	}
}

// setupLogger logs to stdout and to a rotated file, creating the file's
// directory first.
func setupLogger(level, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
