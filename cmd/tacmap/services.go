package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/OCAP2/tacmap/internal/blob/apiblob"
	"github.com/OCAP2/tacmap/internal/blob/fileblob"
	"github.com/OCAP2/tacmap/internal/blob/s3blob"
	"github.com/OCAP2/tacmap/internal/config"
	"github.com/OCAP2/tacmap/internal/database"
	"github.com/OCAP2/tacmap/internal/geo"
	"github.com/OCAP2/tacmap/internal/snapshot"
	"github.com/OCAP2/tacmap/internal/storage"
	gormstorage "github.com/OCAP2/tacmap/internal/storage/gorm"
	"github.com/OCAP2/tacmap/internal/storage/memory"
	"github.com/OCAP2/tacmap/internal/telemetry"
	"github.com/OCAP2/tacmap/internal/telemetry/natschannel"
	"github.com/OCAP2/tacmap/internal/telemetry/redisstate"
	"github.com/OCAP2/tacmap/pkg/core"
	"github.com/rs/zerolog"
)

// publisher feeds records into the telemetry channel for the ingest endpoint.
type publisher interface {
	Publish(topic string, rec core.TelemetryRecord) error
}

type localPublisher struct {
	b *telemetry.Broadcaster
}

func (p localPublisher) Publish(topic string, rec core.TelemetryRecord) error {
	p.b.Publish(topic, rec)
	return nil
}

// services are shared by every mission view the server opens.
type services struct {
	backend   storage.Backend
	channel   telemetry.Channel
	publisher publisher
	lastKnown telemetry.LastKnown
	blobs     snapshot.BlobStore
	fileDir   string // served under fileBase when set
	fileBase  string

	closers []func()
}

func (s *services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func newServices(ctx context.Context, logger *slog.Logger, dbLog zerolog.Logger) (*services, error) {
	s := &services{}

	backend, err := createStorageBackend(config.GetStorageConfig(), logger, dbLog)
	if err != nil {
		return nil, err
	}
	if err := backend.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	s.backend = backend
	s.closers = append(s.closers, func() { _ = backend.Close() })

	if err := s.initTelemetry(ctx, config.GetTelemetryConfig(), logger); err != nil {
		s.Close()
		return nil, err
	}

	if err := s.initBlobs(ctx, config.GetBlobConfig(), logger); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func createStorageBackend(cfg config.StorageConfig, logger *slog.Logger, dbLog zerolog.Logger) (storage.Backend, error) {
	switch cfg.Type {
	case "postgres", "sqlite":
		logger.Info("GORM storage backend selected", "type", cfg.Type)
		return gormstorage.New(gormstorage.Dependencies{
			Manager: database.NewManager(cfg, dbLog),
			Logger:  logger,
		}), nil

	case "memory", "":
		b := memory.New()
		demo, err := seedDemo(b, cfg.Memory.DemoOrigin)
		if err != nil {
			return nil, err
		}
		logger.Info("Memory storage backend initialized", "demoMission", demo.ID, "origin", demo.Origin.String())
		return b, nil

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

var defaultDemoOrigin = core.LatLng{Lat: 45.4642, Lng: 9.19}

// seedDemo adds the demo mission. origin is a "lat,lng" string.
func seedDemo(b *memory.Backend, origin string) (core.Mission, error) {
	pos := defaultDemoOrigin
	if origin != "" {
		p, err := geo.LatLngFromString(origin)
		if err != nil {
			return core.Mission{}, fmt.Errorf("invalid storage.memory.demoOrigin %q: %w", origin, err)
		}
		pos = p
	}
	return b.AddMission(core.Mission{Name: "Demo", Origin: pos}), nil
}

func (s *services) initTelemetry(ctx context.Context, cfg config.TelemetryConfig, logger *slog.Logger) error {
	switch cfg.Type {
	case "nats":
		ch, err := natschannel.Connect(cfg.NatsURL, cfg.SubjectPrefix, cfg.DialTimeout, logger)
		if err != nil {
			return err
		}
		s.channel, s.publisher = ch, ch
		s.closers = append(s.closers, ch.Close)
		logger.Info("NATS telemetry channel connected", "url", cfg.NatsURL)

	case "local":
		b := telemetry.NewBroadcaster(0)
		s.channel, s.publisher = b, localPublisher{b: b}
		s.closers = append(s.closers, b.Close)
		logger.Info("Local telemetry channel initialized")

	case "none", "":
		logger.Info("Live telemetry disabled")

	default:
		return fmt.Errorf("unsupported telemetry type: %s", cfg.Type)
	}

	if cfg.Redis.Enabled {
		st, err := redisstate.New(ctx, cfg.Redis.Addr, cfg.Redis.TTL)
		if err != nil {
			// positions still arrive live; only the reopen seed is lost
			logger.Warn("Last-known telemetry cache unavailable", "addr", cfg.Redis.Addr, "error", err)
			return nil
		}
		s.lastKnown = st
		s.closers = append(s.closers, func() { _ = st.Close() })
		logger.Info("Last-known telemetry cache connected", "addr", cfg.Redis.Addr)
	}
	return nil
}

func (s *services) initBlobs(ctx context.Context, cfg config.BlobConfig, logger *slog.Logger) error {
	switch cfg.Type {
	case "s3":
		st, err := s3blob.New(ctx, cfg.S3)
		if err != nil {
			return err
		}
		s.blobs = st
		logger.Info("S3 snapshot store initialized", "bucket", cfg.S3.Bucket)

	case "api":
		c := apiblob.New(cfg.API.ServerURL, cfg.API.APIKey)
		if err := c.Healthcheck(ctx); err != nil {
			logger.Warn("Snapshot API healthcheck failed", "url", cfg.API.ServerURL, "error", err)
		}
		s.blobs = c
		logger.Info("API snapshot store initialized", "url", cfg.API.ServerURL)

	case "file":
		if cfg.File.Dir == "" {
			return errors.New("file snapshot store needs a directory")
		}
		s.blobs = fileblob.New(cfg.File.Dir, cfg.File.PublicBaseURL)
		s.fileDir, s.fileBase = cfg.File.Dir, cfg.File.PublicBaseURL
		logger.Info("File snapshot store initialized", "dir", cfg.File.Dir)

	case "none", "":
		logger.Info("Snapshot capture disabled")

	default:
		return fmt.Errorf("unsupported blob type: %s", cfg.Type)
	}
	return nil
}
