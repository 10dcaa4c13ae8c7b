package logging

import (
	"context"
	"log/slog"
)

// StatsProvider returns engine gauges, such as the open map view count,
// read fresh for every record that passes the level check.
type StatsProvider func() []slog.Attr

// statsHandler stamps each record with the current gauges.
type statsHandler struct {
	slog.Handler
	stats StatsProvider
}

func withStats(h slog.Handler, stats StatsProvider) slog.Handler {
	if stats == nil {
		return h
	}
	return &statsHandler{Handler: h, stats: stats}
}

func (h *statsHandler) Handle(ctx context.Context, r slog.Record) error {
	r = r.Clone()
	r.AddAttrs(h.stats()...)
	return h.Handler.Handle(ctx, r)
}

func (h *statsHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &statsHandler{Handler: h.Handler.WithAttrs(attrs), stats: h.stats}
}

func (h *statsHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &statsHandler{Handler: h.Handler.WithGroup(name), stats: h.stats}
}
