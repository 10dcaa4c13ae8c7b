// Package gormstorage implements storage.Backend on GORM, against PostgreSQL or SQLite.
package gormstorage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/OCAP2/tacmap/internal/database"
	"github.com/OCAP2/tacmap/internal/model"
	"github.com/OCAP2/tacmap/internal/model/convert"
	"github.com/OCAP2/tacmap/internal/storage"
	"github.com/OCAP2/tacmap/pkg/core"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	// DB is used as-is when set; otherwise Manager connects.
	DB      *gorm.DB
	Manager *database.Manager
	Logger  *slog.Logger
}

// Backend implements storage.Backend using GORM.
type Backend struct {
	deps Dependencies
	db   *gorm.DB
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Backend{deps: deps}
}

// Init connects if needed and migrates the schema.
func (b *Backend) Init() error {
	if b.deps.DB != nil {
		b.db = b.deps.DB
		return database.Migrate(b.db)
	}
	if b.deps.Manager == nil {
		return errors.New("gorm backend needs a DB or a database manager")
	}
	if err := b.deps.Manager.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	if err := b.deps.Manager.Setup(); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}
	b.db = b.deps.Manager.DB
	b.deps.Logger.Info("GORM storage ready", "dialect", b.db.Dialector.Name())
	return nil
}

// Close releases the connection when the backend opened it.
func (b *Backend) Close() error {
	if b.deps.Manager != nil && b.deps.DB == nil {
		return b.deps.Manager.Close()
	}
	return nil
}

func (b *Backend) conn(ctx context.Context) *gorm.DB {
	return b.db.WithContext(ctx)
}

// SaveMission upserts a mission row. Missions are owned by the operations app;
// this exists for seeding.
func (b *Backend) SaveMission(ctx context.Context, m core.Mission) (core.Mission, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	row := convert.MissionToGorm(m)
	if err := b.conn(ctx).Save(&row).Error; err != nil {
		return core.Mission{}, fmt.Errorf("failed to save mission: %w", err)
	}
	return m, nil
}

// SaveAircraft upserts a reference aircraft row.
func (b *Backend) SaveAircraft(ctx context.Context, a core.Aircraft) (core.Aircraft, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	row := convert.AircraftToGorm(a)
	if err := b.conn(ctx).Save(&row).Error; err != nil {
		return core.Aircraft{}, fmt.Errorf("failed to save aircraft: %w", err)
	}
	return a, nil
}

// SavePilot upserts a reference pilot row.
func (b *Backend) SavePilot(ctx context.Context, p core.Pilot) (core.Pilot, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	row := convert.PilotToGorm(p)
	if err := b.conn(ctx).Save(&row).Error; err != nil {
		return core.Pilot{}, fmt.Errorf("failed to save pilot: %w", err)
	}
	return p, nil
}

// GetMission returns the mission with the given id.
func (b *Backend) GetMission(ctx context.Context, id string) (core.Mission, error) {
	var row model.Mission
	err := b.conn(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.Mission{}, fmt.Errorf("mission %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return core.Mission{}, fmt.Errorf("failed to get mission: %w", err)
	}
	return convert.MissionToCore(row), nil
}

// ListSectors returns the sectors of one mission in creation order.
func (b *Backend) ListSectors(ctx context.Context, missionID string) ([]core.Sector, error) {
	var rows []model.Sector
	if err := b.conn(ctx).Where("mission_id = ?", missionID).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list sectors: %w", err)
	}
	out := make([]core.Sector, 0, len(rows))
	for _, r := range rows {
		s, err := convert.SectorToCore(r)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// CreateSector inserts a sector and assigns its ID.
func (b *Backend) CreateSector(ctx context.Context, s *core.Sector) error {
	row, err := convert.SectorToGorm(*s)
	if err != nil {
		return err
	}
	row.ID = uuid.NewString()
	if err := b.conn(ctx).Omit(clause.Associations).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to create sector: %w", err)
	}
	s.ID = row.ID
	return nil
}

// UpdateSector overwrites every mutable column of a sector.
func (b *Backend) UpdateSector(ctx context.Context, s core.Sector) error {
	row, err := convert.SectorToGorm(s)
	if err != nil {
		return err
	}
	return b.update(ctx, "sector", &row, row.ID)
}

// DeleteSector removes a sector.
func (b *Backend) DeleteSector(ctx context.Context, id string) error {
	return b.delete(ctx, "sector", &model.Sector{}, id)
}

// ListPOIs returns the points of interest of one mission in creation order.
func (b *Backend) ListPOIs(ctx context.Context, missionID string) ([]core.POI, error) {
	var rows []model.PointOfInterest
	if err := b.conn(ctx).Where("mission_id = ?", missionID).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list pois: %w", err)
	}
	out := make([]core.POI, 0, len(rows))
	for _, r := range rows {
		out = append(out, convert.POIToCore(r))
	}
	return out, nil
}

// CreatePOI inserts a point of interest and assigns its ID.
func (b *Backend) CreatePOI(ctx context.Context, p *core.POI) error {
	row := convert.POIToGorm(*p)
	row.ID = uuid.NewString()
	if err := b.conn(ctx).Omit(clause.Associations).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to create poi: %w", err)
	}
	p.ID = row.ID
	return nil
}

// UpdatePOI overwrites every mutable column of a point of interest.
func (b *Backend) UpdatePOI(ctx context.Context, p core.POI) error {
	row := convert.POIToGorm(p)
	return b.update(ctx, "poi", &row, row.ID)
}

// DeletePOI removes a point of interest.
func (b *Backend) DeletePOI(ctx context.Context, id string) error {
	return b.delete(ctx, "poi", &model.PointOfInterest{}, id)
}

// ListDrones returns the drone assignments of one mission, without enrichment.
func (b *Backend) ListDrones(ctx context.Context, missionID string) ([]core.DroneAssignment, error) {
	var rows []model.DroneAssignment
	if err := b.conn(ctx).Where("mission_id = ?", missionID).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list drones: %w", err)
	}
	out := make([]core.DroneAssignment, 0, len(rows))
	for _, r := range rows {
		out = append(out, convert.DroneToCore(r))
	}
	return out, nil
}

// CreateDrone inserts a drone assignment and assigns its ID.
func (b *Backend) CreateDrone(ctx context.Context, d *core.DroneAssignment) error {
	row := convert.DroneToGorm(*d)
	row.ID = uuid.NewString()
	if err := b.conn(ctx).Omit(clause.Associations).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to create drone: %w", err)
	}
	d.ID = row.ID
	return nil
}

// UpdateDrone overwrites every mutable column of a drone assignment.
func (b *Backend) UpdateDrone(ctx context.Context, d core.DroneAssignment) error {
	row := convert.DroneToGorm(d)
	return b.update(ctx, "drone", &row, row.ID)
}

// DeleteDrone removes a drone assignment.
func (b *Backend) DeleteDrone(ctx context.Context, id string) error {
	return b.delete(ctx, "drone", &model.DroneAssignment{}, id)
}

// ListAircraft returns the fleet.
func (b *Backend) ListAircraft(ctx context.Context) ([]core.Aircraft, error) {
	var rows []model.Aircraft
	if err := b.conn(ctx).Order("callsign, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list aircraft: %w", err)
	}
	out := make([]core.Aircraft, 0, len(rows))
	for _, r := range rows {
		out = append(out, convert.AircraftToCore(r))
	}
	return out, nil
}

// ListPilots returns every pilot.
func (b *Backend) ListPilots(ctx context.Context) ([]core.Pilot, error) {
	var rows []model.Pilot
	if err := b.conn(ctx).Order("name, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list pilots: %w", err)
	}
	out := make([]core.Pilot, 0, len(rows))
	for _, r := range rows {
		out = append(out, convert.PilotToCore(r))
	}
	return out, nil
}

// RecordSnapshot appends a captured image reference.
func (b *Backend) RecordSnapshot(ctx context.Context, missionID, ref string) error {
	row := model.Snapshot{MissionID: missionID, URL: ref}
	if err := b.conn(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to record snapshot: %w", err)
	}
	return nil
}

// update writes all columns except the primary key, creation time and the
// mission association. Zero values are written too.
func (b *Backend) update(ctx context.Context, what string, row any, id string) error {
	res := b.conn(ctx).Model(row).
		Select("*").
		Omit("id", "created_at", clause.Associations).
		Where("id = ?", id).
		Updates(row)
	if res.Error != nil {
		return fmt.Errorf("failed to update %s: %w", what, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s %s: %w", what, id, storage.ErrNotFound)
	}
	return nil
}

func (b *Backend) delete(ctx context.Context, what string, row any, id string) error {
	res := b.conn(ctx).Where("id = ?", id).Delete(row)
	if res.Error != nil {
		return fmt.Errorf("failed to delete %s: %w", what, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s %s: %w", what, id, storage.ErrNotFound)
	}
	return nil
}
