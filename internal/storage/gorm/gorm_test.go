package gormstorage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/OCAP2/tacmap/internal/config"
	"github.com/OCAP2/tacmap/internal/database"
	"github.com/OCAP2/tacmap/internal/storage"
	"github.com/OCAP2/tacmap/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time interface check
var (
	_ storage.Backend          = (*Backend)(nil)
	_ storage.SnapshotRecorder = (*Backend)(nil)
)

var square = core.Ring{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}, {Lat: 1, Lng: 1}, {Lat: 0, Lng: 0}}

// newTestBackend opens a private in-memory SQLite database per test.
func newTestBackend(t *testing.T) (*Backend, core.Mission) {
	t.Helper()
	db, err := database.GetSqliteDB(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	b := New(Dependencies{DB: db})
	require.NoError(t, b.Init())

	m, err := b.SaveMission(context.Background(), core.Mission{Name: "Flood", Origin: core.LatLng{Lat: 39.47, Lng: -0.37}})
	require.NoError(t, err)
	return b, m
}

func TestInit_RequiresDBOrManager(t *testing.T) {
	b := New(Dependencies{})
	require.Error(t, b.Init())
}

func TestInit_WithManager(t *testing.T) {
	mgr := database.NewManager(config.StorageConfig{
		Type:   "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "t.db")},
	}, zerolog.Nop())
	b := New(Dependencies{Manager: mgr})
	require.NoError(t, b.Init())
	require.NoError(t, b.Close())
}

func TestGetMission(t *testing.T) {
	b, m := newTestBackend(t)
	ctx := context.Background()

	got, err := b.GetMission(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m, got)

	_, err = b.GetMission(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSectorLifecycle(t *testing.T) {
	b, m := newTestBackend(t)
	ctx := context.Background()

	s := &core.Sector{MissionID: m.ID, Name: "ALFA", Kind: core.GeometryPolygon, Color: "#f97316", Geometry: square}
	require.NoError(t, b.CreateSector(ctx, s))
	require.NotEmpty(t, s.ID)

	route := &core.Sector{
		MissionID: m.ID,
		Name:      "Route 1",
		Kind:      core.GeometryLine,
		Geometry:  core.Ring{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 1}},
	}
	require.NoError(t, b.CreateSector(ctx, route))

	list, err := b.ListSectors(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	byName := map[string]core.Sector{list[0].Name: list[0], list[1].Name: list[1]}
	assert.Equal(t, square, byName["ALFA"].Geometry)
	assert.Equal(t, core.GeometryLine, byName["Route 1"].Kind)

	updated := *s
	updated.Notes = "perimeter"
	require.NoError(t, b.UpdateSector(ctx, updated))
	list, _ = b.ListSectors(ctx, m.ID)
	for _, got := range list {
		if got.ID == s.ID {
			assert.Equal(t, "perimeter", got.Notes)
		}
	}

	require.NoError(t, b.DeleteSector(ctx, s.ID))
	assert.ErrorIs(t, b.DeleteSector(ctx, s.ID), storage.ErrNotFound)
	assert.ErrorIs(t, b.UpdateSector(ctx, updated), storage.ErrNotFound)
}

func TestCreateSector_RejectsOpenPolygon(t *testing.T) {
	b, m := newTestBackend(t)
	err := b.CreateSector(context.Background(), &core.Sector{
		MissionID: m.ID,
		Kind:      core.GeometryPolygon,
		Geometry:  square[:3],
	})
	require.Error(t, err)
}

func TestPOILifecycle(t *testing.T) {
	b, m := newTestBackend(t)
	ctx := context.Background()

	p := &core.POI{MissionID: m.ID, Name: "Victim", Type: core.POIVictim, Position: core.LatLng{Lat: 39.5, Lng: -0.4}}
	require.NoError(t, b.CreatePOI(ctx, p))

	p.VideoURL = "rtsp://cam"
	require.NoError(t, b.UpdatePOI(ctx, *p))

	list, err := b.ListPOIs(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, *p, list[0])

	// clearing a field writes the zero value
	p.VideoURL = ""
	require.NoError(t, b.UpdatePOI(ctx, *p))
	list, _ = b.ListPOIs(ctx, m.ID)
	assert.Empty(t, list[0].VideoURL)

	require.NoError(t, b.DeletePOI(ctx, p.ID))
	assert.ErrorIs(t, b.DeletePOI(ctx, p.ID), storage.ErrNotFound)
}

func TestDroneLifecycle(t *testing.T) {
	b, m := newTestBackend(t)
	ctx := context.Background()

	a, err := b.SaveAircraft(ctx, core.Aircraft{Serial: "XYZ123", Callsign: "HALCON"})
	require.NoError(t, err)
	pl, err := b.SavePilot(ctx, core.Pilot{Name: "Laura", ShortName: "LGZ"})
	require.NoError(t, err)

	battery := 80.0
	d := &core.DroneAssignment{
		MissionID:  m.ID,
		AircraftID: a.ID,
		PilotID:    pl.ID,
		Status:     core.DroneActive,
		Position:   core.LatLng{Lat: 39.5, Lng: -0.4},
		Battery:    &battery,
		Aircraft:   &a,
	}
	require.NoError(t, b.CreateDrone(ctx, d))

	list, err := b.ListDrones(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, core.DroneActive, list[0].Status)
	assert.Nil(t, list[0].Aircraft)
	require.NotNil(t, list[0].Battery)
	assert.Equal(t, 80.0, *list[0].Battery)

	d.Position = core.LatLng{Lat: 40, Lng: -1}
	require.NoError(t, b.UpdateDrone(ctx, *d))
	list, _ = b.ListDrones(ctx, m.ID)
	assert.Equal(t, core.LatLng{Lat: 40, Lng: -1}, list[0].Position)

	require.NoError(t, b.DeleteDrone(ctx, d.ID))
	assert.ErrorIs(t, b.DeleteDrone(ctx, d.ID), storage.ErrNotFound)
}

func TestReferenceLists(t *testing.T) {
	b, _ := newTestBackend(t)
	ctx := context.Background()

	_, err := b.SaveAircraft(ctx, core.Aircraft{Serial: "B", Callsign: "BRAVO"})
	require.NoError(t, err)
	_, err = b.SaveAircraft(ctx, core.Aircraft{Serial: "A", Callsign: "ALFA", IsMain: true})
	require.NoError(t, err)
	_, err = b.SavePilot(ctx, core.Pilot{Name: "Ana"})
	require.NoError(t, err)

	aircraft, err := b.ListAircraft(ctx)
	require.NoError(t, err)
	require.Len(t, aircraft, 2)
	assert.Equal(t, "ALFA", aircraft[0].Callsign)
	assert.True(t, aircraft[0].IsMain)

	pilots, err := b.ListPilots(ctx)
	require.NoError(t, err)
	assert.Len(t, pilots, 1)
}

func TestRecordSnapshot(t *testing.T) {
	b, m := newTestBackend(t)
	require.NoError(t, b.RecordSnapshot(context.Background(), m.ID, "/snapshots/x.png"))
}

func TestListScopedByMission(t *testing.T) {
	b, m := newTestBackend(t)
	ctx := context.Background()
	other, err := b.SaveMission(ctx, core.Mission{Name: "Other"})
	require.NoError(t, err)

	require.NoError(t, b.CreatePOI(ctx, &core.POI{MissionID: m.ID, Name: "a"}))
	require.NoError(t, b.CreatePOI(ctx, &core.POI{MissionID: other.ID, Name: "b"}))

	list, err := b.ListPOIs(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a", list[0].Name)
}
