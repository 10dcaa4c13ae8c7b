package handlers

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/OCAP2/tacmap/internal/mission"
	"github.com/OCAP2/tacmap/pkg/streaming"
)

// Renderer pushes the view's render payload and pending notifications to
// the host. Marks that arrive while a push is pending coalesce into one.
type Renderer struct {
	host   Host
	view   atomic.Pointer[mission.View]
	kick   chan struct{}
	logger *slog.Logger
}

// NewRenderer creates a renderer sending on host.
func NewRenderer(host Host, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		host:   host,
		kick:   make(chan struct{}, 1),
		logger: logger,
	}
}

// Bind sets the view to render. Marks before Bind are kept and rendered
// once the view is bound.
func (r *Renderer) Bind(v *mission.View) {
	r.view.Store(v)
	r.Mark()
}

// Mark requests a push. It never blocks.
func (r *Renderer) Mark() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// Run pushes on every mark until ctx ends.
func (r *Renderer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.kick:
			r.Flush()
		}
	}
}

// Flush pushes the current render and drains notifications now.
func (r *Renderer) Flush() {
	v := r.view.Load()
	if v == nil {
		return
	}
	if err := r.host.Send(streaming.TypeRender, v.Render()); err != nil {
		r.logger.Debug("Render not sent", "error", err)
		return
	}
	for _, n := range v.Notifications() {
		if err := r.host.Send(streaming.TypeNotify, n); err != nil {
			r.logger.Debug("Notification not sent", "error", err)
		}
	}
}
