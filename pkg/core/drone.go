// pkg/core/drone.go
package core

// DroneStatus is the lifecycle status of a tactical drone assignment.
type DroneStatus string

const (
	DroneActive    DroneStatus = "active"
	DroneStandby   DroneStatus = "standby"
	DroneReturning DroneStatus = "returning"
	DroneOffline   DroneStatus = "offline"
)

// Valid reports whether s is one of the known statuses.
func (s DroneStatus) Valid() bool {
	switch s {
	case DroneActive, DroneStandby, DroneReturning, DroneOffline:
		return true
	}
	return false
}

// Aircraft is a fleet aircraft record owned by the inventory system.
type Aircraft struct {
	ID       string `json:"id"`
	Serial   string `json:"serial"`
	Model    string `json:"model"`
	Callsign string `json:"callsign"`
	IsMain   bool   `json:"isMain"` // the unit's distinguished main drone
}

// Pilot is a pilot record owned by the personnel system.
type Pilot struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"shortName"`
}

// DroneAssignment binds an aircraft and pilot to a mission map.
type DroneAssignment struct {
	ID         string      `json:"id"`
	MissionID  string      `json:"missionId"`
	AircraftID string      `json:"aircraftId"`
	PilotID    string      `json:"pilotId"`
	Status     DroneStatus `json:"status"`
	Position   LatLng      `json:"position"`
	SectorID   string      `json:"sectorId,omitempty"`
	Altitude   *float64    `json:"altitude,omitempty"`
	Battery    *float64    `json:"battery,omitempty"`
	VideoURL   string      `json:"videoUrl,omitempty"`

	// Filled in from reference lists at load time.
	Aircraft *Aircraft `json:"aircraft,omitempty"`
	Pilot    *Pilot    `json:"pilot,omitempty"`
}
