// Command tacmap serves the tactical operation map engine to host map surfaces
// over WebSocket, one mission view per connection.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/OCAP2/tacmap/internal/config"
	"github.com/OCAP2/tacmap/internal/influx"
	"github.com/OCAP2/tacmap/internal/logging"
	"github.com/OCAP2/tacmap/internal/monitor"
	intOtel "github.com/OCAP2/tacmap/internal/otel"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.0.1"
	BuildDate      string = "unknown"

	ServiceName string = "tacmap"

	// openViews counts live host connections across the process
	openViews atomic.Int64
)

const shutdownTimeout = 10 * time.Second

func main() {
	configDir := "."
	if len(os.Args) > 1 {
		configDir = os.Args[1]
	}
	if err := run(configDir); err != nil {
		fmt.Fprintf(os.Stderr, "tacmap: %v\n", err)
		os.Exit(1)
	}
}

func run(configDir string) error {
	sessionStart := time.Now()

	// console logging until the config is read
	slogManager := logging.NewSlogManager()
	slogManager.Setup(nil, "info", nil)
	logger := slogManager.Logger()

	if err := config.Load(configDir); err != nil {
		logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		logger.Info("Loaded config", "dir", configDir)
	}

	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create logs dir: %w", err)
	}
	logFile := logging.NewRotatingFile(logsDir, ServiceName, sessionStart)
	defer logFile.Close()
	logOut := io.MultiWriter(os.Stdout, logFile)
	if addr := viper.GetString("graylogAddr"); addr != "" {
		gw, err := logging.NewGraylogWriter(addr)
		if err != nil {
			logger.Warn("Graylog output disabled", "error", err)
		} else {
			defer gw.Close()
			logOut = io.MultiWriter(os.Stdout, logFile, gw)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var otelProvider *intOtel.Provider
	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		var err error
		otelProvider, err = intOtel.New(ctx, intOtel.Config{
			Enabled:      otelCfg.Enabled,
			ServiceName:  otelCfg.ServiceName,
			BatchTimeout: otelCfg.BatchTimeout,
			LogWriter:    logFile,
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
		})
		if err != nil {
			logger.Error("Failed to initialize OTel provider", "error", err)
		} else {
			logger.Info("OTel provider initialized", "endpoint", otelCfg.Endpoint)
		}
	}

	slogManager.SetStatsProvider(func() []slog.Attr {
		return []slog.Attr{slog.Int64("openViews", openViews.Load())}
	})

	// Re-setup logging with file output and optional OTel
	var otelLogProvider *sdklog.LoggerProvider
	if otelProvider != nil {
		otelLogProvider = otelProvider.LoggerProvider()
	}
	slogManager.Setup(logOut, viper.GetString("logLevel"), otelLogProvider)
	logger = slogManager.Logger()
	logger.Info("Starting tacmap", "version", CurrentVersion, "buildDate", BuildDate,
		"logFile", filepath.Clean(logFile.Filename))

	dbLog := zerolog.New(logFile).With().Timestamp().Str("component", "database").Logger()

	svc, err := newServices(ctx, logger, dbLog)
	if err != nil {
		return err
	}
	defer svc.Close()

	monitorDeps := monitor.Dependencies{
		OpenViews:  openViews.Load,
		StatusFile: config.GetMonitorConfig().StatusFile,
		Interval:   config.GetMonitorConfig().Interval,
		Logger:     logger,
	}
	influxCfg := config.GetInfluxConfig()
	if influxCfg.Enabled {
		influxLog := zerolog.New(logFile).With().Timestamp().Str("component", "influx").Logger()
		im := influx.NewManager(influxCfg, influxLog)
		if err := im.Connect(ctx); err != nil {
			logger.Warn("Performance points disabled", "error", err)
		} else {
			defer im.Close()
			monitorDeps.Points = im
		}
	}
	statusMonitor := monitor.NewService(monitorDeps)
	statusMonitor.Start(ctx)
	defer statusMonitor.Stop()

	srv := newServer(ctx, svc, logger)

	httpServer := &http.Server{
		Addr:              viper.GetString("listenAddr"),
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Listening", "addr", httpServer.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	srv.Wait()

	if err := slogManager.Flush(shutdownCtx); err != nil {
		logger.Warn("Failed to flush logs", "error", err)
	}
	if otelProvider != nil {
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Failed to shut down OTel provider", "error", err)
		}
	}
	return nil
}
