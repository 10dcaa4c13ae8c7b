// internal/storage/storage.go
package storage

import (
	"context"
	"errors"

	"github.com/OCAP2/tacmap/pkg/core"
)

// ErrNotFound is returned when a referenced row does not exist.
var ErrNotFound = errors.New("not found")

// Backend is the entity store the map reads from and writes to.
// Create methods assign the ID on the passed pointer.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Missions
	GetMission(ctx context.Context, id string) (core.Mission, error)

	// Sectors
	ListSectors(ctx context.Context, missionID string) ([]core.Sector, error)
	CreateSector(ctx context.Context, s *core.Sector) error
	UpdateSector(ctx context.Context, s core.Sector) error
	DeleteSector(ctx context.Context, id string) error

	// Points of interest
	ListPOIs(ctx context.Context, missionID string) ([]core.POI, error)
	CreatePOI(ctx context.Context, p *core.POI) error
	UpdatePOI(ctx context.Context, p core.POI) error
	DeletePOI(ctx context.Context, id string) error

	// Drone assignments
	ListDrones(ctx context.Context, missionID string) ([]core.DroneAssignment, error)
	CreateDrone(ctx context.Context, d *core.DroneAssignment) error
	UpdateDrone(ctx context.Context, d core.DroneAssignment) error
	DeleteDrone(ctx context.Context, id string) error

	// Reference data, owned elsewhere
	ListAircraft(ctx context.Context) ([]core.Aircraft, error)
	ListPilots(ctx context.Context) ([]core.Pilot, error)
}

// SnapshotRecorder is an optional interface for backends that keep a
// history of captured map images.
type SnapshotRecorder interface {
	RecordSnapshot(ctx context.Context, missionID, ref string) error
}
