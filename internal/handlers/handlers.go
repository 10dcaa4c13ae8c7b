package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/OCAP2/tacmap/internal/dispatcher"
	"github.com/OCAP2/tacmap/internal/draw"
	"github.com/OCAP2/tacmap/internal/mission"
	"github.com/OCAP2/tacmap/internal/panel"
	"github.com/OCAP2/tacmap/internal/pip"
	"github.com/OCAP2/tacmap/pkg/core"
	"github.com/OCAP2/tacmap/pkg/streaming"
)

// DefaultActionTimeout bounds one store round trip started by a host message.
const DefaultActionTimeout = 15 * time.Second

// Host is the connection the handlers answer on.
type Host interface {
	Send(msgType string, payload any) error
	SetDrawReady(ready bool)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	View          *mission.View
	Host          Host
	Logger        *slog.Logger
	ActionTimeout time.Duration
}

// Service turns host messages into mission view actions
type Service struct {
	deps Dependencies
	ctx  context.Context
}

// NewService creates a new handler service. ctx ends with the host connection.
func NewService(ctx context.Context, deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.ActionTimeout <= 0 {
		deps.ActionTimeout = DefaultActionTimeout
	}
	return &Service{deps: deps, ctx: ctx}
}

// Register wires every host message type into d. Store round trips run on
// their own queues so the read loop stays responsive.
func (s *Service) Register(d *dispatcher.Dispatcher) {
	d.Register(streaming.TypeDrawReady, s.handleDrawReady, dispatcher.Logged())
	d.Register(streaming.TypeSetDrawMode, s.handleSetDrawMode, dispatcher.Logged())
	d.Register(streaming.TypeShapeCreated, s.handleShapeCreated, dispatcher.Logged())
	d.Register(streaming.TypeSelect, s.handleSelect, dispatcher.Logged())
	d.Register(streaming.TypeCancel, s.handleCancel)
	d.Register(streaming.TypeCollapse, s.handleCollapse)
	d.Register(streaming.TypeToggleVideo, s.handleToggleVideo, dispatcher.Logged())
	d.Register(streaming.TypeOverlayPointer, s.handleOverlayPointer)
	d.Register(streaming.TypeResize, s.handleResize)

	d.Register(streaming.TypeSave, s.handleSave, dispatcher.Buffered(16), dispatcher.Blocking(), dispatcher.Logged())
	d.Register(streaming.TypeRemove, s.handleRemove, dispatcher.Buffered(16), dispatcher.Blocking(), dispatcher.Logged())
	d.Register(streaming.TypeDispatch, s.handleDispatch, dispatcher.Buffered(16), dispatcher.Blocking(), dispatcher.Logged())
	d.Register(streaming.TypeAttachVideo, s.handleAttachVideo, dispatcher.Buffered(16), dispatcher.Blocking(), dispatcher.Logged())
	d.Register(streaming.TypeMarkerDrag, s.handleMarkerDrag, dispatcher.Buffered(64), dispatcher.Logged())
	// capture waits on a capture_result read by the same connection
	d.Register(streaming.TypeCapture, s.handleCapture, dispatcher.Buffered(1), dispatcher.Logged())
}

func (s *Service) action() (context.Context, context.CancelFunc) {
	return context.WithTimeout(s.ctx, s.deps.ActionTimeout)
}

func (s *Service) handleDrawReady(streaming.Envelope) error {
	s.deps.Host.SetDrawReady(true)
	return s.deps.View.DrawReady()
}

func (s *Service) handleSetDrawMode(env streaming.Envelope) error {
	p, err := streaming.Decode[streaming.SetDrawModePayload](env)
	if err != nil {
		return err
	}
	return s.deps.View.SetDrawMode(draw.Mode(p.Mode))
}

func (s *Service) handleShapeCreated(env streaming.Envelope) error {
	p, err := streaming.Decode[streaming.ShapeCreatedPayload](env)
	if err != nil {
		return err
	}
	return s.deps.View.ShapeCreated(p.Kind, p.Shape)
}

func (s *Service) handleSelect(env streaming.Envelope) error {
	ref, err := streaming.Decode[core.EntityRef](env)
	if err != nil {
		return err
	}
	return s.deps.View.Select(ref)
}

func (s *Service) handleCancel(streaming.Envelope) error {
	s.deps.View.Cancel()
	return nil
}

func (s *Service) handleCollapse(env streaming.Envelope) error {
	p, err := streaming.Decode[streaming.CollapsePayload](env)
	if err != nil {
		return err
	}
	s.deps.View.SetCollapsed(p.Collapsed)
	return nil
}

func (s *Service) handleToggleVideo(env streaming.Envelope) error {
	p, err := streaming.Decode[streaming.ToggleVideoPayload](env)
	if err != nil {
		return err
	}
	s.deps.View.ToggleVideo(p.ID, p.Name, p.Src)
	return nil
}

func (s *Service) handleOverlayPointer(env streaming.Envelope) error {
	p, err := streaming.Decode[streaming.OverlayPointerPayload](env)
	if err != nil {
		return err
	}
	switch p.Phase {
	case "down", "move", "up":
	default:
		return fmt.Errorf("unknown pointer phase %q", p.Phase)
	}
	s.deps.View.OverlayPointer(p.ID, p.Phase, pip.Point{X: p.X, Y: p.Y})
	return nil
}

func (s *Service) handleResize(env streaming.Envelope) error {
	p, err := streaming.Decode[streaming.ResizePayload](env)
	if err != nil {
		return err
	}
	s.deps.View.Resize(pip.Size{W: p.Width, H: p.Height})
	return nil
}

func (s *Service) handleSave(env streaming.Envelope) error {
	form, err := streaming.Decode[panel.Form](env)
	if err != nil {
		return err
	}
	ctx, cancel := s.action()
	defer cancel()
	return s.deps.View.Save(ctx, form)
}

func (s *Service) handleRemove(streaming.Envelope) error {
	ctx, cancel := s.action()
	defer cancel()
	return s.deps.View.Remove(ctx)
}

func (s *Service) handleDispatch(env streaming.Envelope) error {
	form, err := streaming.Decode[panel.DispatchForm](env)
	if err != nil {
		return err
	}
	ctx, cancel := s.action()
	defer cancel()
	_, err = s.deps.View.Dispatch(ctx, form)
	return err
}

func (s *Service) handleAttachVideo(env streaming.Envelope) error {
	p, err := streaming.Decode[streaming.AttachVideoPayload](env)
	if err != nil {
		return err
	}
	ctx, cancel := s.action()
	defer cancel()
	return s.deps.View.AttachVideo(ctx, p.URL)
}

func (s *Service) handleMarkerDrag(env streaming.Envelope) error {
	p, err := streaming.Decode[streaming.MarkerDragPayload](env)
	if err != nil {
		return err
	}
	ctx, cancel := s.action()
	defer cancel()
	return s.deps.View.MoveDrone(ctx, p.ID, core.LatLng{Lat: p.Lat, Lng: p.Lng})
}

func (s *Service) handleCapture(streaming.Envelope) error {
	_, err := s.deps.View.Capture(s.ctx)
	return err
}
