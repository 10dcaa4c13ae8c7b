// Package mission composes the map engine for one open mission view.
package mission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/OCAP2/tacmap/internal/config"
	"github.com/OCAP2/tacmap/internal/draw"
	"github.com/OCAP2/tacmap/internal/icon"
	"github.com/OCAP2/tacmap/internal/overlay"
	"github.com/OCAP2/tacmap/internal/panel"
	"github.com/OCAP2/tacmap/internal/pip"
	"github.com/OCAP2/tacmap/internal/queue"
	"github.com/OCAP2/tacmap/internal/snapshot"
	"github.com/OCAP2/tacmap/internal/storage"
	"github.com/OCAP2/tacmap/internal/telemetry"
	"github.com/OCAP2/tacmap/pkg/core"
)

// NotificationLimit bounds the pending notification queue.
const NotificationLimit = 64

var (
	// ErrCaptureUnavailable is returned when no rasterizer or blob store is wired.
	ErrCaptureUnavailable = errors.New("snapshot capture not configured")
	// ErrExited is returned by actions after Exit.
	ErrExited = errors.New("mission view closed")
)

// Dependencies holds everything a View is built from. Only Backend is required.
type Dependencies struct {
	Backend    storage.Backend
	Telemetry  telemetry.Channel
	LastKnown  telemetry.LastKnown
	Tools      draw.Tools
	Rasterizer snapshot.Rasterizer
	Blobs      snapshot.BlobStore
	Map        config.MapConfig
	// SequenceGuard drops telemetry older than the stored record for the same aircraft.
	SequenceGuard bool
	Viewport      pip.Size
	Logger        *slog.Logger
	// OnChange is called whenever the rendered view may have changed.
	OnChange func()
}

// View owns one mission's store, live telemetry, draw bridge, panel, video
// overlays, capturer and icons. Every action catches its own failure and
// pushes a notification; the error is also returned to the caller.
type View struct {
	missionID string
	deps      Dependencies
	logger    *slog.Logger

	store    *overlay.Store
	live     *telemetry.Bridge
	draw     *draw.Bridge
	panel    *panel.Machine
	pips     *pip.Manager
	capturer *snapshot.Capturer
	icons    *icon.Synth
	notes    *queue.Queue[core.Notification]
	now      func() time.Time

	mu     sync.Mutex
	exited bool
}

// New builds a view for missionID. Nothing is loaded until Enter.
func New(missionID string, deps Dependencies) (*View, error) {
	if deps.Backend == nil {
		return nil, errors.New("mission view needs a storage backend")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("mission", missionID)

	cacheSize := deps.Map.IconCacheSize
	if cacheSize <= 0 {
		cacheSize = icon.DefaultCacheSize
	}
	icons, err := icon.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("icon cache: %w", err)
	}

	v := &View{
		missionID: missionID,
		deps:      deps,
		logger:    logger,
		icons:     icons,
		notes:     queue.NewBounded[core.Notification](NotificationLimit),
		now:       time.Now,
	}

	v.store = overlay.New(deps.Backend, logger)

	drawOpts := []draw.Option{draw.WithLogger(logger)}
	if deps.Map.CircleSegments > 0 {
		drawOpts = append(drawOpts, draw.WithCircleSegments(deps.Map.CircleSegments))
	}
	v.draw = draw.NewBridge(deps.Tools, drawOpts...)

	liveOpts := []telemetry.Option{
		telemetry.WithSequenceGuard(deps.SequenceGuard),
		telemetry.WithOnUpdate(func(core.TelemetryRecord) { v.changed() }),
		telemetry.WithLogger(logger),
	}
	if deps.LastKnown != nil {
		liveOpts = append(liveOpts, telemetry.WithLastKnown(deps.LastKnown, v.store.References().Serials))
	}
	v.live = telemetry.NewBridge(deps.Telemetry, liveOpts...)

	v.pips = pip.New(deps.Viewport)

	v.panel = panel.New(v.store,
		panel.WithDrawMode(v.draw),
		panel.WithOverlays(v.pips),
		panel.WithOnChange(func(panel.State) { v.changed() }),
		panel.WithLogger(logger),
	)

	if deps.Rasterizer != nil && deps.Blobs != nil {
		capOpts := []snapshot.Option{snapshot.WithLogger(logger)}
		if deps.Map.SettleDelay > 0 {
			capOpts = append(capOpts, snapshot.WithSettleDelay(deps.Map.SettleDelay))
		}
		if deps.Map.CaptureTimeout > 0 {
			capOpts = append(capOpts, snapshot.WithTimeout(deps.Map.CaptureTimeout))
		}
		if rec, ok := deps.Backend.(storage.SnapshotRecorder); ok {
			capOpts = append(capOpts, snapshot.WithRecorder(rec))
		}
		v.capturer = snapshot.New(deps.Rasterizer, deps.Blobs, capOpts...)
	}

	return v, nil
}

// MissionID returns the mission this view shows.
func (v *View) MissionID() string {
	return v.missionID
}

// Enter loads the mission and opens live telemetry. A load failure is
// terminal for the view; a telemetry failure only leaves live markers out.
func (v *View) Enter(ctx context.Context) error {
	if v.isExited() {
		return ErrExited
	}
	if err := v.store.Load(ctx, v.missionID); err != nil {
		v.notify(core.NotifyError, "Mission could not be loaded")
		return err
	}

	if err := v.live.Open(ctx, v.missionID); err != nil {
		if errors.Is(err, telemetry.ErrNoChannel) {
			v.logger.Info("Live telemetry not configured")
		} else {
			v.logger.Warn("Live telemetry unavailable", "error", err)
			v.notify(core.NotifyInfo, "Live drone positions are unavailable")
		}
	}

	v.logger.Info("Mission view entered")
	v.changed()
	return nil
}

// Exit releases telemetry and disposes the store. It is safe to call more than once.
func (v *View) Exit() {
	v.mu.Lock()
	if v.exited {
		v.mu.Unlock()
		return
	}
	v.exited = true
	v.mu.Unlock()

	if err := v.live.Close(); err != nil {
		v.logger.Warn("Failed to release telemetry", "error", err)
	}
	v.store.Dispose()
	v.pips.Reset()
	v.logger.Info("Mission view exited")
}

func (v *View) isExited() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.exited
}

func (v *View) changed() {
	if v.deps.OnChange != nil && !v.isExited() {
		v.deps.OnChange()
	}
}

func (v *View) notify(level core.NotificationLevel, msg string) {
	v.notes.Push(core.Notification{Level: level, Message: msg, Time: v.now()})
}

// fail records err as a user notification and returns it.
func (v *View) fail(action string, err error) error {
	v.logger.Warn("Action failed", "action", action, "error", err)
	v.notify(core.NotifyError, describe(action, err))
	v.changed()
	return err
}

func describe(action string, err error) string {
	var mf *core.MutationFailure
	var cf *core.CaptureFailure
	switch {
	case errors.Is(err, overlay.ErrProtectedEntity):
		return "The command post cannot be changed from the map"
	case errors.Is(err, panel.ErrInvalidForm):
		return "Please check the form: " + err.Error()
	case errors.As(err, &cf):
		return "Snapshot failed"
	case errors.Is(err, snapshot.ErrCaptureInProgress):
		return "A snapshot is already being taken"
	case errors.As(err, &mf):
		return fmt.Sprintf("Could not %s %s", mf.Op, entityNoun(mf.Ref.Kind))
	}
	return "Could not " + action
}

func entityNoun(k core.EntityKind) string {
	switch k {
	case core.KindSector:
		return "sector"
	case core.KindPOI:
		return "point of interest"
	case core.KindDrone:
		return "drone"
	}
	return "entity"
}

// Notifications drains the pending notifications, oldest first.
func (v *View) Notifications() []core.Notification {
	return v.notes.Drain()
}

// Store exposes the entity overlay store.
func (v *View) Store() *overlay.Store { return v.store }

// Panel exposes the panel state machine.
func (v *View) Panel() *panel.Machine { return v.panel }

// Overlays exposes the video overlay manager.
func (v *View) Overlays() *pip.Manager { return v.pips }

// Live exposes the telemetry bridge.
func (v *View) Live() *telemetry.Bridge { return v.live }

// SetDrawMode activates a drawing tool, or none.
func (v *View) SetDrawMode(mode draw.Mode) error {
	if err := v.draw.SetMode(mode); err != nil {
		return v.fail("change draw mode", err)
	}
	v.changed()
	return nil
}

// DrawReady re-applies the current draw mode once the host's tools exist.
func (v *View) DrawReady() error {
	return v.draw.SetMode(v.draw.Mode())
}

// ShapeCreated classifies a completed host shape and opens the create panel.
// The shape's transient layer is removed on every path.
func (v *View) ShapeCreated(kind string, raw json.RawMessage) error {
	shape, layerID, err := draw.DecodeShape(kind, raw)
	if err != nil {
		v.draw.Discard(layerID)
		return v.fail("read drawn shape", err)
	}
	created, err := v.draw.Complete(shape)
	if err != nil {
		return v.fail("use drawn shape", err)
	}
	if err := v.panel.DrawCompleted(created); err != nil {
		return v.fail("use drawn shape", err)
	}
	return nil
}

// Select opens the manage panel for an entity.
func (v *View) Select(ref core.EntityRef) error {
	if err := v.panel.Select(ref); err != nil {
		return v.fail("open "+entityNoun(ref.Kind), err)
	}
	return nil
}

// Cancel closes the panel.
func (v *View) Cancel() {
	v.panel.Cancel()
}

// SetCollapsed hides or shows the panel.
func (v *View) SetCollapsed(c bool) {
	v.panel.SetCollapsed(c)
	v.changed()
}

// Save persists the panel form.
func (v *View) Save(ctx context.Context, form panel.Form) error {
	if v.isExited() {
		return ErrExited
	}
	if err := v.panel.Save(ctx, form); err != nil {
		return v.fail("save", err)
	}
	v.notify(core.NotifySuccess, "Saved")
	v.changed()
	return nil
}

// Remove deletes the managed entity.
func (v *View) Remove(ctx context.Context) error {
	if v.isExited() {
		return ErrExited
	}
	if err := v.panel.Remove(ctx); err != nil {
		return v.fail("remove", err)
	}
	v.notify(core.NotifySuccess, "Removed")
	v.changed()
	return nil
}

// Dispatch assigns a drone to the mission map.
func (v *View) Dispatch(ctx context.Context, form panel.DispatchForm) (core.DroneAssignment, error) {
	if v.isExited() {
		return core.DroneAssignment{}, ErrExited
	}
	d, err := v.panel.Dispatch(ctx, form)
	if err != nil {
		return core.DroneAssignment{}, v.fail("dispatch drone", err)
	}
	v.notify(core.NotifySuccess, "Drone dispatched")
	v.changed()
	return d, nil
}

// AttachVideo sets the video source of the managed entity.
func (v *View) AttachVideo(ctx context.Context, url string) error {
	if v.isExited() {
		return ErrExited
	}
	if err := v.panel.AttachVideo(ctx, url); err != nil {
		return v.fail("attach video", err)
	}
	v.changed()
	return nil
}

// MoveDrone persists a dragged drone marker.
func (v *View) MoveDrone(ctx context.Context, id string, pos core.LatLng) error {
	if v.isExited() {
		return ErrExited
	}
	if err := v.store.MoveDrone(ctx, id, pos); err != nil {
		return v.fail("move drone", err)
	}
	v.panel.Refresh(core.EntityRef{Kind: core.KindDrone, ID: id})
	v.changed()
	return nil
}

// ToggleVideo opens or closes an entity's video overlay.
func (v *View) ToggleVideo(id, name, src string) bool {
	open := v.pips.Toggle(id, name, src)
	v.changed()
	return open
}

// OverlayPointer feeds one pointer event to an overlay's drag machine.
func (v *View) OverlayPointer(id, phase string, p pip.Point) bool {
	var moved bool
	switch phase {
	case "down":
		moved = v.pips.PointerDown(id, p)
	case "move":
		moved = v.pips.PointerMove(id, p)
	case "up":
		moved = v.pips.PointerUp(id, p)
	}
	if moved {
		v.changed()
	}
	return moved
}

// Resize updates the viewport the overlays are kept inside.
func (v *View) Resize(size pip.Size) {
	v.pips.Resize(size)
	v.changed()
}

// Capture takes a snapshot of the visible map and stores it for the mission.
func (v *View) Capture(ctx context.Context) (string, error) {
	if v.isExited() {
		return "", ErrExited
	}
	if v.capturer == nil {
		return "", v.fail("take snapshot", ErrCaptureUnavailable)
	}
	v.changed()
	ref, err := v.capturer.Capture(ctx, v.missionID)
	if err != nil {
		return "", v.fail("take snapshot", err)
	}
	v.notify(core.NotifySuccess, "Snapshot saved")
	v.changed()
	return ref, nil
}

// Capturing reports whether a snapshot is being taken.
func (v *View) Capturing() bool {
	return v.capturer != nil && v.capturer.InProgress()
}
