// Package overlay holds the authoritative sectors, points of interest and
// drone assignments of one mission. Every mutation is followed by a full
// reload from the backend; nothing is patched locally.
package overlay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/OCAP2/tacmap/internal/cache"
	"github.com/OCAP2/tacmap/internal/geo"
	"github.com/OCAP2/tacmap/internal/storage"
	"github.com/OCAP2/tacmap/pkg/core"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrProtectedEntity is returned when deleting the command post.
	ErrProtectedEntity = errors.New("entity cannot be deleted")
	// ErrDisposed is returned by calls made after Dispose.
	ErrDisposed = errors.New("store disposed")
	// ErrNotLoaded is returned by mutations before the first successful load.
	ErrNotLoaded = errors.New("mission not loaded")
	// ErrInvalidGeometry is returned for sectors whose geometry does not match their kind.
	ErrInvalidGeometry = errors.New("invalid sector geometry")
)

// Store is safe for concurrent use. Results of a load that has been
// overtaken by a newer one, or that finishes after Dispose, are dropped.
type Store struct {
	backend storage.Backend
	refs    *cache.ReferenceCache
	logger  *slog.Logger

	mu        sync.RWMutex
	missionID string
	state     State
	gen       uint64
	disposed  bool
}

// New creates an empty store over backend.
func New(backend storage.Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		backend: backend,
		refs:    cache.NewReferenceCache(),
		logger:  logger,
	}
}

// References exposes the reference cache filled by the last load.
func (s *Store) References() *cache.ReferenceCache {
	return s.refs
}

// MissionID returns the mission the store is bound to.
func (s *Store) MissionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.missionID
}

// Snapshot returns a copy of the current collections.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Dispose tears the store down. In-flight loads and mutations complete
// against the backend but their results are discarded.
func (s *Store) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposed = true
	s.state = State{}
}

// Disposed reports whether Dispose has been called.
func (s *Store) Disposed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.disposed
}

// Load fetches every collection of missionID concurrently and replaces the
// store's state. A change of mission clears the previous state first.
func (s *Store) Load(ctx context.Context, missionID string) error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrDisposed
	}
	if s.missionID != missionID {
		s.missionID = missionID
		s.state = State{}
	}
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	next, err := s.fetch(ctx, missionID)
	if err != nil {
		s.logger.Error("Failed to load mission", "mission", missionID, "error", err)
		return &core.LoadFailure{MissionID: missionID, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed || gen != s.gen {
		s.logger.Debug("Discarding stale load", "mission", missionID, "gen", gen)
		return nil
	}
	s.state = next
	s.logger.Debug("Mission loaded",
		"mission", missionID,
		"sectors", len(next.Sectors),
		"pois", len(next.POIs),
		"drones", len(next.Drones))
	return nil
}

func (s *Store) fetch(ctx context.Context, missionID string) (State, error) {
	var next State
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		m, err := s.backend.GetMission(gctx, missionID)
		if err != nil {
			return fmt.Errorf("mission: %w", err)
		}
		next.Mission = m
		return nil
	})
	g.Go(func() error {
		list, err := s.backend.ListSectors(gctx, missionID)
		if err != nil {
			return fmt.Errorf("sectors: %w", err)
		}
		next.Sectors = list
		return nil
	})
	g.Go(func() error {
		list, err := s.backend.ListPOIs(gctx, missionID)
		if err != nil {
			return fmt.Errorf("pois: %w", err)
		}
		next.POIs = list
		return nil
	})
	g.Go(func() error {
		list, err := s.backend.ListDrones(gctx, missionID)
		if err != nil {
			return fmt.Errorf("drones: %w", err)
		}
		next.Drones = list
		return nil
	})
	g.Go(func() error {
		list, err := s.backend.ListAircraft(gctx)
		if err != nil {
			return fmt.Errorf("aircraft: %w", err)
		}
		next.Aircraft = list
		return nil
	})
	g.Go(func() error {
		list, err := s.backend.ListPilots(gctx)
		if err != nil {
			return fmt.Errorf("pilots: %w", err)
		}
		next.Pilots = list
		return nil
	})

	if err := g.Wait(); err != nil {
		return State{}, err
	}

	s.refs.Replace(next.Aircraft, next.Pilots)
	for i := range next.Drones {
		next.Drones[i] = s.refs.Enrich(next.Drones[i])
	}
	next.Loaded = true
	return next, nil
}

// begin returns the bound mission for a mutation.
func (s *Store) begin() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.disposed {
		return "", ErrDisposed
	}
	if !s.state.Loaded {
		return "", ErrNotLoaded
	}
	return s.missionID, nil
}

// finish reloads after a successful backend write. A reload that fails is
// reported as a failure of the mutation's follow-up; the write itself stands.
func (s *Store) finish(ctx context.Context, missionID, op string, ref core.EntityRef) error {
	if s.Disposed() {
		return nil
	}
	if err := s.Load(ctx, missionID); err != nil && !errors.Is(err, ErrDisposed) {
		return &core.MutationFailure{Op: op + "-reload", Ref: ref, Err: err}
	}
	return nil
}

func (s *Store) fail(op string, ref core.EntityRef, err error) error {
	s.logger.Warn("Mutation failed", "op", op, "ref", ref.String(), "error", err)
	return &core.MutationFailure{Op: op, Ref: ref, Err: err}
}

func validateSector(sec core.Sector) error {
	switch sec.Kind {
	case core.GeometryPolygon:
		if !sec.Geometry.Closed() {
			return fmt.Errorf("%w: polygon ring must be closed", ErrInvalidGeometry)
		}
		if _, err := geo.Polygon(sec.Geometry); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
		}
	case core.GeometryLine:
		if len(sec.Geometry) < 2 {
			return fmt.Errorf("%w: route needs at least 2 points", ErrInvalidGeometry)
		}
		if _, err := geo.LineString(sec.Geometry); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
		}
	default:
		return fmt.Errorf("%w: kind %q", ErrInvalidGeometry, sec.Kind)
	}
	return nil
}

// CreateSector persists sec under the bound mission and reloads.
func (s *Store) CreateSector(ctx context.Context, sec core.Sector) (core.Sector, error) {
	ref := core.EntityRef{Kind: core.KindSector}
	missionID, err := s.begin()
	if err != nil {
		return core.Sector{}, s.fail("create", ref, err)
	}
	if err := validateSector(sec); err != nil {
		return core.Sector{}, s.fail("create", ref, err)
	}
	sec.MissionID = missionID
	if err := s.backend.CreateSector(ctx, &sec); err != nil {
		return core.Sector{}, s.fail("create", ref, err)
	}
	ref.ID = sec.ID
	return sec, s.finish(ctx, missionID, "create", ref)
}

// UpdateSector overwrites a sector and reloads.
func (s *Store) UpdateSector(ctx context.Context, sec core.Sector) error {
	ref := core.EntityRef{Kind: core.KindSector, ID: sec.ID}
	missionID, err := s.begin()
	if err != nil {
		return s.fail("update", ref, err)
	}
	if err := validateSector(sec); err != nil {
		return s.fail("update", ref, err)
	}
	sec.MissionID = missionID
	if err := s.backend.UpdateSector(ctx, sec); err != nil {
		return s.fail("update", ref, err)
	}
	return s.finish(ctx, missionID, "update", ref)
}

// CreatePOI persists p under the bound mission and reloads.
func (s *Store) CreatePOI(ctx context.Context, p core.POI) (core.POI, error) {
	ref := core.EntityRef{Kind: core.KindPOI}
	missionID, err := s.begin()
	if err != nil {
		return core.POI{}, s.fail("create", ref, err)
	}
	if !p.Position.Valid() {
		return core.POI{}, s.fail("create", ref, fmt.Errorf("invalid position %s", p.Position))
	}
	p.MissionID = missionID
	p.Type = core.ParsePOIType(string(p.Type))
	if err := s.backend.CreatePOI(ctx, &p); err != nil {
		return core.POI{}, s.fail("create", ref, err)
	}
	ref.ID = p.ID
	return p, s.finish(ctx, missionID, "create", ref)
}

// UpdatePOI overwrites a point of interest and reloads. The command post
// is derived from the mission and cannot be edited here.
func (s *Store) UpdatePOI(ctx context.Context, p core.POI) error {
	ref := core.EntityRef{Kind: core.KindPOI, ID: p.ID}
	missionID, err := s.begin()
	if err != nil {
		return s.fail("update", ref, err)
	}
	if p.IsCommandPost() {
		return s.fail("update", ref, ErrProtectedEntity)
	}
	p.MissionID = missionID
	if err := s.backend.UpdatePOI(ctx, p); err != nil {
		return s.fail("update", ref, err)
	}
	return s.finish(ctx, missionID, "update", ref)
}

// CreateDrone persists a drone assignment and reloads. An empty status is active.
func (s *Store) CreateDrone(ctx context.Context, d core.DroneAssignment) (core.DroneAssignment, error) {
	ref := core.EntityRef{Kind: core.KindDrone}
	missionID, err := s.begin()
	if err != nil {
		return core.DroneAssignment{}, s.fail("create", ref, err)
	}
	if d.Status == "" {
		d.Status = core.DroneActive
	}
	if !d.Status.Valid() {
		return core.DroneAssignment{}, s.fail("create", ref, fmt.Errorf("invalid status %q", d.Status))
	}
	d.MissionID = missionID
	if err := s.backend.CreateDrone(ctx, &d); err != nil {
		return core.DroneAssignment{}, s.fail("create", ref, err)
	}
	ref.ID = d.ID
	return s.refs.Enrich(d), s.finish(ctx, missionID, "create", ref)
}

// UpdateDrone overwrites a drone assignment and reloads.
func (s *Store) UpdateDrone(ctx context.Context, d core.DroneAssignment) error {
	ref := core.EntityRef{Kind: core.KindDrone, ID: d.ID}
	missionID, err := s.begin()
	if err != nil {
		return s.fail("update", ref, err)
	}
	if !d.Status.Valid() {
		return s.fail("update", ref, fmt.Errorf("invalid status %q", d.Status))
	}
	d.MissionID = missionID
	if err := s.backend.UpdateDrone(ctx, d); err != nil {
		return s.fail("update", ref, err)
	}
	return s.finish(ctx, missionID, "update", ref)
}

// MoveDrone persists a dragged drone marker's new position.
func (s *Store) MoveDrone(ctx context.Context, id string, pos core.LatLng) error {
	ref := core.EntityRef{Kind: core.KindDrone, ID: id}
	if !pos.Valid() {
		return s.fail("move", ref, fmt.Errorf("invalid position %s", pos))
	}
	d, ok := s.Drone(id)
	if !ok {
		return s.fail("move", ref, storage.ErrNotFound)
	}
	d.Position = pos
	return s.UpdateDrone(ctx, d)
}

// Delete removes one entity and reloads.
func (s *Store) Delete(ctx context.Context, ref core.EntityRef) error {
	missionID, err := s.begin()
	if err != nil {
		return s.fail("delete", ref, err)
	}

	switch ref.Kind {
	case core.KindSector:
		err = s.backend.DeleteSector(ctx, ref.ID)
	case core.KindPOI:
		if ref.ID == core.CommandPostID {
			return s.fail("delete", ref, ErrProtectedEntity)
		}
		err = s.backend.DeletePOI(ctx, ref.ID)
	case core.KindDrone:
		err = s.backend.DeleteDrone(ctx, ref.ID)
	default:
		err = fmt.Errorf("unknown entity kind %q", ref.Kind)
	}
	if err != nil {
		return s.fail("delete", ref, err)
	}
	return s.finish(ctx, missionID, "delete", ref)
}

// Sector looks up a loaded sector.
func (s *Store) Sector(id string) (core.Sector, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sec := range s.state.Sectors {
		if sec.ID == id {
			sec.Geometry = append(core.Ring(nil), sec.Geometry...)
			return sec, true
		}
	}
	return core.Sector{}, false
}

// POI looks up a loaded point of interest, including the command post.
func (s *Store) POI(id string) (core.POI, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.state.Loaded {
		return core.POI{}, false
	}
	if id == core.CommandPostID {
		return s.state.Mission.CommandPost(), true
	}
	for _, p := range s.state.POIs {
		if p.ID == id {
			return p, true
		}
	}
	return core.POI{}, false
}

// Drone looks up a loaded, enriched drone assignment.
func (s *Store) Drone(id string) (core.DroneAssignment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.state.Drones {
		if d.ID == id {
			return cloneDrone(d), true
		}
	}
	return core.DroneAssignment{}, false
}

// Entity resolves a reference to its loaded entity: core.Sector, core.POI
// or core.DroneAssignment.
func (s *Store) Entity(ref core.EntityRef) (any, bool) {
	switch ref.Kind {
	case core.KindSector:
		return s.Sector(ref.ID)
	case core.KindPOI:
		return s.POI(ref.ID)
	case core.KindDrone:
		return s.Drone(ref.ID)
	}
	return nil, false
}
