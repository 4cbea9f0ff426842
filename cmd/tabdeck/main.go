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

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/tabdeck/internal/api"
	"github.com/dgnsrekt/tabdeck/internal/browser"
	"github.com/dgnsrekt/tabdeck/internal/cardgrid"
	"github.com/dgnsrekt/tabdeck/internal/config"
	"github.com/dgnsrekt/tabdeck/internal/engine/chromium"
	"github.com/dgnsrekt/tabdeck/internal/netutil"
	"github.com/dgnsrekt/tabdeck/internal/persist"
	"github.com/dgnsrekt/tabdeck/internal/relay"
	"github.com/dgnsrekt/tabdeck/internal/shell"
	"github.com/dgnsrekt/tabdeck/internal/tabs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, filepath.Join(cfg.LogFileDir, "tabdeck.log")); err != nil {
		if _, writeErr := io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n"); writeErr != nil {
			slog.Debug("logger setup stderr write failed", "error", writeErr)
		}
		os.Exit(1)
	}

	slog.Info("tabdeck config loaded",
		"cdp_url", cfg.CDPURL(),
		"bind_addr", cfg.BindAddr(),
		"data_dir", cfg.DataDir,
		"max_engines", cfg.MaxEngines,
		"launch_browser", cfg.LaunchBrowser,
		"log_level", cfg.LogLevel,
	)

	ctx := context.Background()

	var launcher *browser.Launcher
	if cfg.LaunchBrowser {
		launcher = browser.NewLauncher(browser.Config{
			CDPAddress: cfg.CDPAddress,
			CDPPort:    cfg.CDPPort,
			ProfileDir: cfg.ProfileDir,
			LogFileDir: cfg.LogFileDir,
			WindowSize: cfg.WindowSize,
		})
		if err := launcher.Launch(ctx); err != nil {
			slog.Error("failed to launch browser", "error", err)
			os.Exit(1)
		}
		defer launcher.Stop()
	}

	factory, err := chromium.NewFactory(ctx, cfg.CDPURL())
	if err != nil {
		slog.Error("failed to connect to browser", "cdp_url", cfg.CDPURL(), "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := factory.Close(); err != nil {
			slog.Debug("engine factory close failed", "error", err)
		}
	}()

	blobs, err := persist.NewBlobStore(cfg.BlobDir())
	if err != nil {
		slog.Error("failed to create blob store", "dir", cfg.BlobDir(), "error", err)
		os.Exit(1)
	}

	persister, err := persist.New(cfg.SessionPath(), cfg.Debounce())
	if err != nil {
		slog.Error("failed to create persister", "path", cfg.SessionPath(), "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := persister.Close(); err != nil {
			slog.Warn("persister close failed", "error", err)
		}
	}()

	broker := relay.NewBroker()

	coord, err := shell.New(shell.Config{
		Factory:         factory,
		Persister:       persister,
		Blobs:           blobs,
		MaxEngines:      cfg.MaxEngines,
		SnapshotTimeout: cfg.SnapshotTimeout(),
		StaleAfter:      cfg.StaleAfter(),
		SearchEndpoint:  cfg.SearchEndpoint,
		Viewport: cardgrid.Viewport{
			Width:        cfg.ViewportWidth,
			Spacing:      cfg.ViewportSpacing,
			MinCardWidth: cfg.ViewportMinCard,
		},
		OnChange: func(c tabs.Change) { relay.PublishChange(broker, c) },
	})
	if err != nil {
		slog.Error("failed to start shell", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := coord.Close(); err != nil {
			slog.Warn("shell close failed", "error", err)
		}
	}()

	if snap, ok := persist.Load(cfg.SessionPath()); ok {
		if err := coord.RestoreSession(ctx, snap); err != nil {
			slog.Warn("session restore failed, starting fresh", "error", err)
		} else {
			slog.Info("session restored", "tabs", len(snap.Tabs), "selected", snap.Selected)
		}
	}

	candidates := make([]string, 0, 5)
	for p := cfg.BindPort; p < cfg.BindPort+5; p++ {
		candidates = append(candidates, fmt.Sprintf("%s:%d", cfg.BindAddress, p))
	}
	bindAddr, err := netutil.SelectBindAddr(cfg.BindAddr(), candidates, true)
	if err != nil {
		slog.Error("failed to select bind address", "preferred", cfg.BindAddr(), "error", err)
		os.Exit(1)
	}

	h := api.NewServer(coord, blobs, broker)
	srv := &http.Server{Addr: bindAddr, Handler: h}

	go func() {
		slog.Info("tabdeck listening", "addr", bindAddr, "docs", "http://"+bindAddr+"/docs")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("tabdeck server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("tabdeck shutdown failed", "error", err)
	}
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
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
