// internal/storage/memory/memory.go
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/OCAP2/tacmap/internal/storage"
	"github.com/OCAP2/tacmap/pkg/core"
	"github.com/google/uuid"
)

// SnapshotRecord is one captured image reference.
type SnapshotRecord struct {
	MissionID string
	Ref       string
}

// Backend keeps every entity in process memory. Lists preserve insertion order.
type Backend struct {
	missions  map[string]core.Mission
	sectors   []core.Sector
	pois      []core.POI
	drones    []core.DroneAssignment
	aircraft  []core.Aircraft
	pilots    []core.Pilot
	snapshots []SnapshotRecord

	mu sync.RWMutex
}

// New creates a new memory backend
func New() *Backend {
	return &Backend{
		missions: make(map[string]core.Mission),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// AddMission seeds a mission. An empty ID is assigned.
func (b *Backend) AddMission(m core.Mission) core.Mission {
	b.mu.Lock()
	defer b.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	b.missions[m.ID] = m
	return m
}

// AddAircraft seeds a reference aircraft record.
func (b *Backend) AddAircraft(a core.Aircraft) core.Aircraft {
	b.mu.Lock()
	defer b.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	b.aircraft = append(b.aircraft, a)
	return a
}

// AddPilot seeds a reference pilot record.
func (b *Backend) AddPilot(p core.Pilot) core.Pilot {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	b.pilots = append(b.pilots, p)
	return p
}

// GetMission returns the mission with the given id.
func (b *Backend) GetMission(_ context.Context, id string) (core.Mission, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	m, ok := b.missions[id]
	if !ok {
		return core.Mission{}, fmt.Errorf("mission %s: %w", id, storage.ErrNotFound)
	}
	return m, nil
}

// ListSectors returns the sectors of one mission.
func (b *Backend) ListSectors(_ context.Context, missionID string) ([]core.Sector, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := []core.Sector{}
	for _, s := range b.sectors {
		if s.MissionID == missionID {
			s.Geometry = append(core.Ring(nil), s.Geometry...)
			out = append(out, s)
		}
	}
	return out, nil
}

// CreateSector stores a new sector and assigns its ID.
func (b *Backend) CreateSector(_ context.Context, s *core.Sector) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s.ID = uuid.NewString()
	stored := *s
	stored.Geometry = append(core.Ring(nil), s.Geometry...)
	b.sectors = append(b.sectors, stored)
	return nil
}

// UpdateSector replaces a stored sector.
func (b *Backend) UpdateSector(_ context.Context, s core.Sector) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.sectors {
		if b.sectors[i].ID == s.ID {
			s.Geometry = append(core.Ring(nil), s.Geometry...)
			b.sectors[i] = s
			return nil
		}
	}
	return fmt.Errorf("sector %s: %w", s.ID, storage.ErrNotFound)
}

// DeleteSector removes a sector.
func (b *Backend) DeleteSector(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.sectors {
		if b.sectors[i].ID == id {
			b.sectors = append(b.sectors[:i], b.sectors[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("sector %s: %w", id, storage.ErrNotFound)
}

// ListPOIs returns the points of interest of one mission.
func (b *Backend) ListPOIs(_ context.Context, missionID string) ([]core.POI, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := []core.POI{}
	for _, p := range b.pois {
		if p.MissionID == missionID {
			out = append(out, p)
		}
	}
	return out, nil
}

// CreatePOI stores a new point of interest and assigns its ID.
func (b *Backend) CreatePOI(_ context.Context, p *core.POI) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	p.ID = uuid.NewString()
	b.pois = append(b.pois, *p)
	return nil
}

// UpdatePOI replaces a stored point of interest.
func (b *Backend) UpdatePOI(_ context.Context, p core.POI) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.pois {
		if b.pois[i].ID == p.ID {
			b.pois[i] = p
			return nil
		}
	}
	return fmt.Errorf("poi %s: %w", p.ID, storage.ErrNotFound)
}

// DeletePOI removes a point of interest.
func (b *Backend) DeletePOI(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.pois {
		if b.pois[i].ID == id {
			b.pois = append(b.pois[:i], b.pois[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("poi %s: %w", id, storage.ErrNotFound)
}

// ListDrones returns the drone assignments of one mission, without enrichment.
func (b *Backend) ListDrones(_ context.Context, missionID string) ([]core.DroneAssignment, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := []core.DroneAssignment{}
	for _, d := range b.drones {
		if d.MissionID == missionID {
			out = append(out, d)
		}
	}
	return out, nil
}

// CreateDrone stores a new drone assignment and assigns its ID.
func (b *Backend) CreateDrone(_ context.Context, d *core.DroneAssignment) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	d.ID = uuid.NewString()
	b.drones = append(b.drones, stripRefs(*d))
	return nil
}

// UpdateDrone replaces a stored drone assignment.
func (b *Backend) UpdateDrone(_ context.Context, d core.DroneAssignment) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.drones {
		if b.drones[i].ID == d.ID {
			b.drones[i] = stripRefs(d)
			return nil
		}
	}
	return fmt.Errorf("drone %s: %w", d.ID, storage.ErrNotFound)
}

// DeleteDrone removes a drone assignment.
func (b *Backend) DeleteDrone(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.drones {
		if b.drones[i].ID == id {
			b.drones = append(b.drones[:i], b.drones[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("drone %s: %w", id, storage.ErrNotFound)
}

// ListAircraft returns every seeded aircraft.
func (b *Backend) ListAircraft(_ context.Context) ([]core.Aircraft, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]core.Aircraft{}, b.aircraft...), nil
}

// ListPilots returns every seeded pilot.
func (b *Backend) ListPilots(_ context.Context) ([]core.Pilot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]core.Pilot{}, b.pilots...), nil
}

// RecordSnapshot keeps a captured image reference.
func (b *Backend) RecordSnapshot(_ context.Context, missionID, ref string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshots = append(b.snapshots, SnapshotRecord{MissionID: missionID, Ref: ref})
	return nil
}

// Snapshots returns the recorded snapshot references.
func (b *Backend) Snapshots() []SnapshotRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]SnapshotRecord{}, b.snapshots...)
}

// enrichment is never stored
func stripRefs(d core.DroneAssignment) core.DroneAssignment {
	d.Aircraft = nil
	d.Pilot = nil
	return d
}
