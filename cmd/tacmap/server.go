package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/OCAP2/tacmap/internal/config"
	"github.com/OCAP2/tacmap/internal/dispatcher"
	"github.com/OCAP2/tacmap/internal/handlers"
	"github.com/OCAP2/tacmap/internal/hostmap"
	"github.com/OCAP2/tacmap/internal/logging"
	"github.com/OCAP2/tacmap/internal/mission"
	"github.com/OCAP2/tacmap/internal/pip"
	"github.com/OCAP2/tacmap/pkg/core"
	"github.com/OCAP2/tacmap/pkg/streaming"
	ws "github.com/gorilla/websocket"
)

// server accepts host connections and opens one mission view per connection.
type server struct {
	ctx      context.Context
	svc      *services
	mapCfg   config.MapConfig
	guard    bool
	upgrader ws.Upgrader
	logger   *slog.Logger

	wg sync.WaitGroup
}

func newServer(ctx context.Context, svc *services, logger *slog.Logger) *server {
	return &server{
		ctx:    ctx,
		svc:    svc,
		mapCfg: config.GetMapConfig(),
		guard:  config.GetTelemetryConfig().SequenceGuard,
		upgrader: ws.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.svc.publisher != nil {
		mux.HandleFunc("POST /api/v1/telemetry/{mission}", s.handleTelemetry)
	}
	if s.svc.fileDir != "" && strings.HasPrefix(s.svc.fileBase, "/") {
		prefix := strings.TrimRight(s.svc.fileBase, "/") + "/"
		mux.Handle("GET "+prefix, http.StripPrefix(prefix, http.FileServer(http.Dir(s.svc.fileDir))))
	}
	return mux
}

// Wait blocks until every open view has exited.
func (s *server) Wait() {
	s.wg.Wait()
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"version":   CurrentVersion,
		"openViews": openViews.Load(),
	})
}

// handleTelemetry publishes one record onto a mission's live channel.
func (s *server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	missionID := r.PathValue("mission")
	var rec core.TelemetryRecord
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&rec); err != nil {
		http.Error(w, "invalid telemetry record", http.StatusBadRequest)
		return
	}
	if rec.Serial == "" {
		http.Error(w, "aircraftSerial is required", http.StatusBadRequest)
		return
	}
	if err := s.svc.publisher.Publish(missionID, rec); err != nil {
		s.logger.Error("Failed to publish telemetry", "mission", missionID, "error", err)
		http.Error(w, "publish failed", http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *server) handleWS(w http.ResponseWriter, r *http.Request) {
	missionID := r.URL.Query().Get("mission")
	if missionID == "" {
		http.Error(w, "mission is required", http.StatusBadRequest)
		return
	}
	viewport := pip.Size{W: queryFloat(r, "width"), H: queryFloat(r, "height")}

	c, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	s.wg.Add(1)
	defer s.wg.Done()
	openViews.Add(1)
	defer openViews.Add(-1)

	s.serve(hostmap.New(c, s.logger), missionID, viewport)
}

// serve runs one mission view for the lifetime of its host connection.
func (s *server) serve(conn *hostmap.Conn, missionID string, viewport pip.Size) {
	logger := s.logger.With("mission", missionID)
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	renderer := handlers.NewRenderer(conn, logger)

	deps := mission.Dependencies{
		Backend:       s.svc.backend,
		Telemetry:     s.svc.channel,
		LastKnown:     s.svc.lastKnown,
		Tools:         conn,
		Map:           s.mapCfg,
		SequenceGuard: s.guard,
		Viewport:      viewport,
		Logger:        logger,
		OnChange:      renderer.Mark,
	}
	if s.svc.blobs != nil {
		deps.Rasterizer = conn
		deps.Blobs = s.svc.blobs
	}

	view, err := mission.New(missionID, deps)
	if err != nil {
		logger.Error("Failed to build mission view", "error", err)
		_ = conn.Close()
		return
	}
	defer view.Exit()

	disp, err := dispatcher.New(logging.NewDispatcherLogger(logger))
	if err != nil {
		logger.Error("Failed to create dispatcher", "error", err)
		_ = conn.Close()
		return
	}
	defer disp.Close()

	go renderer.Run(ctx)

	if err := view.Enter(ctx); err != nil {
		// the host still gets the error notification; nothing else is accepted
		logger.Error("Mission view failed to load", "error", err)
	} else {
		handlers.NewService(ctx, handlers.Dependencies{
			View:   view,
			Host:   conn,
			Logger: logger,
		}).Register(disp)
	}
	renderer.Bind(view)

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	err = conn.Run(func(env streaming.Envelope) {
		if !disp.HasHandler(env.Type) {
			logger.Debug("Ignoring host message", "type", env.Type)
			return
		}
		if err := disp.Dispatch(env); err != nil {
			logger.Debug("Host message failed", "type", env.Type, "error", err)
		}
	})
	if err != nil {
		logger.Warn("Host connection ended", "error", err)
	}
	logger.Info("Mission view closed")
}

func queryFloat(r *http.Request, key string) float64 {
	v, err := strconv.ParseFloat(r.URL.Query().Get(key), 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
