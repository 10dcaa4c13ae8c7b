// pkg/core/telemetry.go
package core

import "time"

// TelemetryRecord is one pushed position/status snapshot for an aircraft, keyed by Serial.
type TelemetryRecord struct {
	Serial    string    `json:"aircraftSerial"`
	Position  LatLng    `json:"position"`
	Altitude  *float64  `json:"altitude,omitempty"`
	Battery   *float64  `json:"battery,omitempty"`
	Speed     *float64  `json:"speed,omitempty"`
	Heading   *float64  `json:"heading,omitempty"`
	Status    string    `json:"status,omitempty"`
	VideoURL  string    `json:"videoUrl,omitempty"`
	Seq       uint64    `json:"seq,omitempty"` // optional, 0 when the feed is unsequenced
	Timestamp time.Time `json:"timestamp,omitempty"`
}
