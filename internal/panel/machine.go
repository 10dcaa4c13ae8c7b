package panel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/OCAP2/tacmap/internal/draw"
	"github.com/OCAP2/tacmap/pkg/core"
)

var (
	// ErrInvalidTransition is returned for an action the current state does not allow.
	ErrInvalidTransition = errors.New("action not allowed in current panel state")
	// ErrUnknownEntity is returned when selecting an entity that is not loaded.
	ErrUnknownEntity = errors.New("entity not found")
)

// Store is the part of the entity overlay store the panel writes through.
type Store interface {
	CreateSector(ctx context.Context, sec core.Sector) (core.Sector, error)
	UpdateSector(ctx context.Context, sec core.Sector) error
	CreatePOI(ctx context.Context, p core.POI) (core.POI, error)
	UpdatePOI(ctx context.Context, p core.POI) error
	CreateDrone(ctx context.Context, d core.DroneAssignment) (core.DroneAssignment, error)
	UpdateDrone(ctx context.Context, d core.DroneAssignment) error
	Delete(ctx context.Context, ref core.EntityRef) error
	Entity(ref core.EntityRef) (any, bool)
}

// DrawMode clears the host's draw mode once a shape has been completed.
type DrawMode interface {
	SetMode(mode draw.Mode) error
}

// Overlays opens video overlays for selected entities.
type Overlays interface {
	Open(id, name, src string) bool
}

// Option configures a Machine.
type Option func(*Machine)

// WithDrawMode sets the draw bridge cleared on draw completion.
func WithDrawMode(d DrawMode) Option {
	return func(m *Machine) {
		m.draw = d
	}
}

// WithOverlays sets the video overlay manager opened on selection.
func WithOverlays(o Overlays) Option {
	return func(m *Machine) {
		m.overlays = o
	}
}

// WithOnChange registers a callback invoked after every state change.
func WithOnChange(fn func(State)) Option {
	return func(m *Machine) {
		m.onChange = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) {
		m.logger = l
	}
}

// Machine is safe for concurrent use. Store calls run without the lock held,
// so the view stays interactive while a save is pending. A pending action
// only moves the machine to Idle if nothing else changed the state meanwhile.
type Machine struct {
	store    Store
	draw     DrawMode
	overlays Overlays
	onChange func(State)
	logger   *slog.Logger

	mu        sync.Mutex
	state     State
	epoch     uint64
	collapsed bool
}

// New creates an idle machine over store.
func New(store Store, opts ...Option) *Machine {
	m := &Machine{
		store:  store,
		state:  Idle{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Collapsed reports whether the panel is hidden.
func (m *Machine) Collapsed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.collapsed
}

// SetCollapsed hides or shows the panel without changing its state.
func (m *Machine) SetCollapsed(c bool) {
	m.mu.Lock()
	m.collapsed = c
	m.mu.Unlock()
}

func (m *Machine) current() (State, uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.epoch
}

// transition sets next unless epoch is stale. force skips the epoch check.
func (m *Machine) transition(next State, epoch uint64, force bool) bool {
	m.mu.Lock()
	if !force && epoch != m.epoch {
		m.mu.Unlock()
		return false
	}
	m.epoch++
	m.state = next
	if _, idle := next.(Idle); !idle {
		m.collapsed = false
	}
	fn := m.onChange
	m.mu.Unlock()

	if fn != nil {
		fn(next)
	}
	return true
}

// DrawCompleted moves to Creating with the classified geometry and clears draw mode.
func (m *Machine) DrawCompleted(created draw.Created) error {
	next, err := NewCreating(created)
	if err != nil {
		return err
	}
	if m.draw != nil {
		if err := m.draw.SetMode(draw.ModeNone); err != nil {
			m.logger.Warn("Failed to clear draw mode", "error", err)
		}
	}
	m.transition(next, 0, true)
	return nil
}

// Select moves to Managing for ref. An entity with a video source also gets
// its overlay opened.
func (m *Machine) Select(ref core.EntityRef) error {
	entity, ok := m.store.Entity(ref)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, ref)
	}
	next, err := NewManaging(ref, entity)
	if err != nil {
		return err
	}
	m.transition(next, 0, true)

	if m.overlays != nil {
		if name, src := videoOf(entity); src != "" {
			m.overlays.Open(ref.ID, name, src)
		}
	}
	return nil
}

// Cancel returns to Idle from any state.
func (m *Machine) Cancel() {
	m.transition(Idle{}, 0, true)
}

// Save persists the form. In Creating it creates the drawn entity; in
// Managing it updates the selected one. Success returns to Idle; failure
// keeps the state and returns a *core.MutationFailure.
func (m *Machine) Save(ctx context.Context, form Form) error {
	st, epoch := m.current()

	var err error
	switch s := st.(type) {
	case Creating:
		err = m.create(ctx, s.Pending, form)
	case Managing:
		err = m.update(ctx, s, form)
	default:
		return fmt.Errorf("%w: save in %s", ErrInvalidTransition, st.Name())
	}
	if err != nil {
		return err
	}
	m.transition(Idle{}, epoch, false)
	return nil
}

func (m *Machine) create(ctx context.Context, pending draw.Created, form Form) error {
	ref := core.EntityRef{Kind: pending.Kind}
	if err := validateForm(form); err != nil {
		return &core.MutationFailure{Op: "create", Ref: ref, Err: err}
	}

	switch pending.Kind {
	case core.KindSector:
		color := form.Color
		if color == "" {
			color = DefaultSectorColor
		}
		_, err := m.store.CreateSector(ctx, core.Sector{
			Name:     form.Name,
			Kind:     pending.Geometry,
			Color:    color,
			Geometry: append(core.Ring(nil), pending.Ring...),
			Notes:    form.Notes,
		})
		return err
	case core.KindPOI:
		_, err := m.store.CreatePOI(ctx, core.POI{
			Name:        form.Name,
			Type:        core.ParsePOIType(form.Type),
			Position:    pending.Position,
			Description: form.Description,
			VideoURL:    form.VideoURL,
		})
		return err
	}
	return &core.MutationFailure{Op: "create", Ref: ref, Err: ErrInvalidPending}
}

func (m *Machine) update(ctx context.Context, s Managing, form Form) error {
	if err := validateForm(form); err != nil {
		return &core.MutationFailure{Op: "update", Ref: s.Ref, Err: err}
	}
	entity, err := m.latest(s.Ref)
	if err != nil {
		return err
	}

	switch e := entity.(type) {
	case core.Sector:
		e.Name = form.Name
		e.Notes = form.Notes
		if form.Color != "" {
			e.Color = form.Color
		}
		return m.store.UpdateSector(ctx, e)
	case core.POI:
		e.Name = form.Name
		e.Description = form.Description
		e.VideoURL = form.VideoURL
		if form.Type != "" {
			e.Type = core.ParsePOIType(form.Type)
		}
		return m.store.UpdatePOI(ctx, e)
	case core.DroneAssignment:
		e.VideoURL = form.VideoURL
		if form.Status != "" {
			e.Status = core.DroneStatus(form.Status)
		}
		return m.store.UpdateDrone(ctx, e)
	}
	return &core.MutationFailure{Op: "update", Ref: s.Ref, Err: ErrNoEntity}
}

// latest re-reads ref so writes start from the current stored record rather
// than the copy taken at selection.
func (m *Machine) latest(ref core.EntityRef) (any, error) {
	entity, ok := m.store.Entity(ref)
	if !ok {
		return nil, &core.MutationFailure{Op: "update", Ref: ref, Err: fmt.Errorf("%w: %s", ErrUnknownEntity, ref)}
	}
	return entity, nil
}

// Refresh reloads the managed entity if it is ref. The epoch is kept, so a
// pending save still completes against the refreshed state.
func (m *Machine) Refresh(ref core.EntityRef) {
	entity, ok := m.store.Entity(ref)
	if !ok {
		return
	}
	next, err := NewManaging(ref, entity)
	if err != nil {
		return
	}

	m.mu.Lock()
	s, managing := m.state.(Managing)
	if !managing || s.Ref != ref {
		m.mu.Unlock()
		return
	}
	m.state = next
	fn := m.onChange
	m.mu.Unlock()

	if fn != nil {
		fn(next)
	}
}

// Remove deletes the managed entity and returns to Idle.
func (m *Machine) Remove(ctx context.Context) error {
	st, epoch := m.current()
	s, ok := st.(Managing)
	if !ok {
		return fmt.Errorf("%w: remove in %s", ErrInvalidTransition, st.Name())
	}
	if err := m.store.Delete(ctx, s.Ref); err != nil {
		return err
	}
	m.transition(Idle{}, epoch, false)
	return nil
}

// Dispatch creates an active drone assignment from the browse list. The
// panel state is left as it is. Without a position the drone starts at the
// command post.
func (m *Machine) Dispatch(ctx context.Context, form DispatchForm) (core.DroneAssignment, error) {
	ref := core.EntityRef{Kind: core.KindDrone}
	if err := validateForm(form); err != nil {
		return core.DroneAssignment{}, &core.MutationFailure{Op: "create", Ref: ref, Err: err}
	}
	status := core.DroneStatus(form.Status)
	if status == "" {
		status = core.DroneActive
	}
	return m.store.CreateDrone(ctx, core.DroneAssignment{
		AircraftID: form.AircraftID,
		PilotID:    form.PilotID,
		Status:     status,
		Position:   m.dispatchPosition(form),
		SectorID:   form.SectorID,
		VideoURL:   form.VideoURL,
	})
}

// AttachVideo sets the video source of the managed point of interest or
// drone and refreshes the selection from the reloaded store.
func (m *Machine) AttachVideo(ctx context.Context, url string) error {
	st, epoch := m.current()
	s, ok := st.(Managing)
	if !ok {
		return fmt.Errorf("%w: attach video in %s", ErrInvalidTransition, st.Name())
	}
	check := struct {
		URL string `validate:"omitempty,url"`
	}{url}
	if err := validateForm(check); err != nil {
		return &core.MutationFailure{Op: "update", Ref: s.Ref, Err: err}
	}

	entity, err := m.latest(s.Ref)
	if err != nil {
		return err
	}
	switch e := entity.(type) {
	case core.POI:
		e.VideoURL = url
		err = m.store.UpdatePOI(ctx, e)
	case core.DroneAssignment:
		e.VideoURL = url
		err = m.store.UpdateDrone(ctx, e)
	default:
		return fmt.Errorf("%w: %s has no video", ErrInvalidTransition, s.Ref.Kind)
	}
	if err != nil {
		return err
	}

	if entity, ok := m.store.Entity(s.Ref); ok {
		if next, err := NewManaging(s.Ref, entity); err == nil {
			m.transition(next, epoch, false)
		}
	}
	return nil
}

func (m *Machine) dispatchPosition(form DispatchForm) core.LatLng {
	var pos core.LatLng
	if cp, ok := m.store.Entity(core.EntityRef{Kind: core.KindPOI, ID: core.CommandPostID}); ok {
		if p, ok := cp.(core.POI); ok {
			pos = p.Position
		}
	}
	if form.Lat != nil {
		pos.Lat = *form.Lat
	}
	if form.Lng != nil {
		pos.Lng = *form.Lng
	}
	return pos
}
