package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/yieldview/internal/api"
	"github.com/dgnsrekt/yieldview/internal/apiclient"
	"github.com/dgnsrekt/yieldview/internal/config"
	"github.com/dgnsrekt/yieldview/internal/controller"
	"github.com/dgnsrekt/yieldview/internal/journal"
	"github.com/dgnsrekt/yieldview/internal/netutil"
	"github.com/dgnsrekt/yieldview/internal/relay"
	"github.com/dgnsrekt/yieldview/internal/render"
	"github.com/dgnsrekt/yieldview/internal/snapshot"
	"github.com/dgnsrekt/yieldview/internal/ui"
)

func main() {
	cfg, err := config.LoadConsole()
	if err != nil {
		slog.Error("failed to load console config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		if _, writeErr := io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n"); writeErr != nil {
			slog.Debug("logger setup stderr write failed", "error", writeErr)
		}
		os.Exit(1)
	}

	slog.Info("yieldview config loaded",
		"backend_url", cfg.BackendURL,
		"analysis_id", cfg.AnalysisID,
		"bind_addr", cfg.BindAddr,
		"port_auto_fallback", cfg.PortAutoFallback,
		"port_candidates", cfg.PortCandidates,
		"request_timeout_ms", cfg.RequestTimeoutMS,
		"cdp_enabled", cfg.CDPEnabled,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
		"snapshot_dir", cfg.SnapshotDir,
		"journal_dir", cfg.JournalDir,
	)

	style, err := config.LoadChartStyle(cfg.ChartStylePath)
	if err != nil {
		slog.Error("failed to load chart style", "path", cfg.ChartStylePath, "error", err)
		os.Exit(1)
	}

	ln, err := netutil.Listen(cfg.BindAddr, cfg.PortCandidates, cfg.PortAutoFallback)
	if err != nil {
		slog.Error("failed to bind", "preferred", cfg.BindAddr, "error", err)
		os.Exit(1)
	}

	client, err := apiclient.New(cfg.BackendURL, &http.Client{Timeout: cfg.RequestTimeout()})
	if err != nil {
		slog.Error("invalid backend url", "backend_url", cfg.BackendURL, "error", err)
		os.Exit(1)
	}

	snapStore, err := snapshot.NewStore(cfg.SnapshotDir)
	if err != nil {
		slog.Error("failed to create snapshot store", "dir", cfg.SnapshotDir, "error", err)
		os.Exit(1)
	}

	broker := relay.NewBroker()
	opts := controller.Options{
		Client:     client,
		AnalysisID: cfg.AnalysisID,
		Style:      style,
		Broker:     broker,
		Snapshots:  snapStore,
	}
	if cfg.CDPEnabled {
		browser := render.NewBrowser(cfg.CDPURL(), cfg.TabURLFilter, cfg.EvalTimeout(), style)
		connectCtx, cancelConnect := context.WithTimeout(context.Background(), cfg.EvalTimeout())
		if err := browser.Connect(connectCtx); err != nil {
			slog.Warn("chart tab not attached; retrying on first render", "cdp_url", cfg.CDPURL(), "error", err)
		}
		cancelConnect()
		opts.Browser = browser
	}
	if cfg.NtfyURL != "" {
		opts.Alerter = ui.NotifyAlerter{Client: &http.Client{}, Endpoint: cfg.NtfyURL, Timeout: 10 * time.Second}
	}

	if cfg.JournalDir != "" {
		jw := journal.New(cfg.JournalDir, cfg.AnalysisID, 256, 25)
		defer func() {
			if err := jw.Close(); err != nil {
				slog.Debug("journal close failed", "error", err)
			}
		}()
		opts.Journal = jw
	}

	svc, err := controller.NewService(opts)
	if err != nil {
		slog.Error("failed to wire console", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			slog.Debug("console close failed", "error", err)
		}
	}()

	startCtx, cancelStart := context.WithTimeout(context.Background(), 2*cfg.RequestTimeout())
	if err := svc.Start(startCtx); err != nil {
		slog.Error("initial page load failed; POST /api/v1/page/reload to retry", "analysis_id", cfg.AnalysisID, "error", err)
	}
	cancelStart()

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	srv := &http.Server{
		Handler:           api.NewServer(svc, api.Options{Broker: broker, CORSOrigins: cfg.CORSOrigins}),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	// Streaming clients hold their request open; end them when shutdown starts.
	srv.RegisterOnShutdown(cancelBase)

	bindAddr := ln.Addr().String()
	go func() {
		slog.Info("yieldview listening", "addr", bindAddr, "docs", "http://"+bindAddr+"/docs")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("yieldview server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("yieldview shutdown failed", "error", err)
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

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: parseLevel(level)})
	slog.SetDefault(slog.New(h))
	return nil
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
