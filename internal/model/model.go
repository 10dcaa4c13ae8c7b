package model

import (
	"time"

	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Mission{},
	&Aircraft{},
	&Pilot{},
	&Sector{},
	&PointOfInterest{},
	&DroneAssignment{},
	&Snapshot{},
}

// Mission is an operation; its origin is where the command post is drawn.
type Mission struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt time.Time `json:"createdAt"`
	Name      string    `json:"name" gorm:"size:128"`
	OriginLat float64   `json:"originLat"`
	OriginLng float64   `json:"originLng"`
}

func (*Mission) TableName() string {
	return "missions"
}

// Aircraft is a fleet aircraft. The inventory module owns these rows; the map only reads them.
type Aircraft struct {
	ID       string `json:"id" gorm:"primaryKey;size:36"`
	Serial   string `json:"serial" gorm:"size:64;uniqueIndex:idx_aircraft_serial"`
	Model    string `json:"model" gorm:"size:128"`
	Callsign string `json:"callsign" gorm:"size:64"`
	IsMain   bool   `json:"isMain" gorm:"default:false"`
}

func (*Aircraft) TableName() string {
	return "aircraft"
}

// Pilot is read-only from the map's perspective.
type Pilot struct {
	ID        string `json:"id" gorm:"primaryKey;size:36"`
	Name      string `json:"name" gorm:"size:128"`
	ShortName string `json:"shortName" gorm:"size:32"`
}

func (*Pilot) TableName() string {
	return "pilots"
}

// Sector is a drawn zone or route. Geometry is a GeoJSON Polygon or LineString.
type Sector struct {
	ID        string         `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt time.Time      `json:"createdAt"`
	MissionID string         `json:"missionId" gorm:"size:36;index:idx_sector_mission_id"`
	Mission   Mission        `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:MissionID;"`
	Name      string         `json:"name" gorm:"size:128"`
	Kind      string         `json:"kind" gorm:"size:16"` // polygon, line
	Color     string         `json:"color" gorm:"size:16"`
	Geometry  datatypes.JSON `json:"geometry"`
	Notes     string         `json:"notes" gorm:"size:1024"`
}

func (*Sector) TableName() string {
	return "sectors"
}

// PointOfInterest is a typed point marker.
type PointOfInterest struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt   time.Time `json:"createdAt"`
	MissionID   string    `json:"missionId" gorm:"size:36;index:idx_poi_mission_id"`
	Mission     Mission   `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:MissionID;"`
	Name        string    `json:"name" gorm:"size:128"`
	Type        string    `json:"type" gorm:"size:32"`
	Lat         float64   `json:"lat"`
	Lng         float64   `json:"lng"`
	Description string    `json:"description" gorm:"size:1024"`
	VideoURL    string    `json:"videoUrl" gorm:"size:512"`
}

func (*PointOfInterest) TableName() string {
	return "points_of_interest"
}

// DroneAssignment binds an aircraft and a pilot to a mission map.
type DroneAssignment struct {
	ID         string    `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	MissionID  string    `json:"missionId" gorm:"size:36;index:idx_drone_mission_id"`
	Mission    Mission   `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:MissionID;"`
	AircraftID string    `json:"aircraftId" gorm:"size:36;index:idx_drone_aircraft_id"`
	PilotID    string    `json:"pilotId" gorm:"size:36"`
	Status     string    `json:"status" gorm:"size:16"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	SectorID   *string   `json:"sectorId" gorm:"size:36"`
	Altitude   *float64  `json:"altitude"`
	Battery    *float64  `json:"battery"`
	VideoURL   string    `json:"videoUrl" gorm:"size:512"`
}

func (*DroneAssignment) TableName() string {
	return "tactical_drones"
}

// Snapshot records a captured map image reference for a mission.
type Snapshot struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	CreatedAt time.Time `json:"createdAt"`
	MissionID string    `json:"missionId" gorm:"size:36;index:idx_snapshot_mission_id"`
	URL       string    `json:"url" gorm:"size:1024"`
}

func (*Snapshot) TableName() string {
	return "map_snapshots"
}
