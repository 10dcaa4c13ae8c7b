// Package panel is the selection and side-panel state machine of the map view.
package panel

import (
	"errors"

	"github.com/OCAP2/tacmap/internal/draw"
	"github.com/OCAP2/tacmap/pkg/core"
)

var (
	// ErrInvalidPending is returned when a Creating state would carry no usable geometry.
	ErrInvalidPending = errors.New("pending geometry is not valid")
	// ErrNoEntity is returned when a Managing state would carry no entity.
	ErrNoEntity = errors.New("no entity to manage")
)

// State is one of Idle, Creating or Managing.
type State interface {
	Name() string
	isState()
}

// Idle shows the browse list.
type Idle struct{}

// Creating holds a freshly drawn geometry waiting for its details.
type Creating struct {
	Pending draw.Created
}

// Managing shows one selected entity. Entity is a core.Sector, core.POI or
// core.DroneAssignment.
type Managing struct {
	Ref    core.EntityRef
	Entity any
}

func (Idle) Name() string     { return "idle" }
func (Creating) Name() string { return "creating" }
func (Managing) Name() string { return "managing" }

func (Idle) isState()     {}
func (Creating) isState() {}
func (Managing) isState() {}

// NewCreating refuses a completion without geometry.
func NewCreating(c draw.Created) (Creating, error) {
	if !c.Valid() {
		return Creating{}, ErrInvalidPending
	}
	return Creating{Pending: c}, nil
}

// NewManaging refuses a nil entity or one whose type does not match ref.Kind.
func NewManaging(ref core.EntityRef, entity any) (Managing, error) {
	ok := false
	switch entity.(type) {
	case core.Sector:
		ok = ref.Kind == core.KindSector
	case core.POI:
		ok = ref.Kind == core.KindPOI
	case core.DroneAssignment:
		ok = ref.Kind == core.KindDrone
	}
	if !ok || ref.ID == "" {
		return Managing{}, ErrNoEntity
	}
	return Managing{Ref: ref, Entity: entity}, nil
}

// videoOf returns the overlay name and video source an entity carries, if any.
func videoOf(entity any) (name, src string) {
	switch e := entity.(type) {
	case core.POI:
		return e.Name, e.VideoURL
	case core.DroneAssignment:
		name = e.ID
		if e.Aircraft != nil {
			name = e.Aircraft.Callsign
			if name == "" {
				name = e.Aircraft.Serial
			}
		}
		return name, e.VideoURL
	}
	return "", ""
}
