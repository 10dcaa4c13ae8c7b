package cache

import (
	"sync"

	"github.com/OCAP2/tacmap/pkg/core"
)

// ReferenceCache indexes the aircraft and pilot reference lists of one load
// so each drone assignment can be enriched without scanning.
type ReferenceCache struct {
	m        sync.RWMutex
	aircraft map[string]core.Aircraft
	pilots   map[string]core.Pilot
}

func NewReferenceCache() *ReferenceCache {
	return &ReferenceCache{
		aircraft: make(map[string]core.Aircraft),
		pilots:   make(map[string]core.Pilot),
	}
}

// Replace swaps in fresh reference lists. Later duplicates win.
func (c *ReferenceCache) Replace(aircraft []core.Aircraft, pilots []core.Pilot) {
	a := make(map[string]core.Aircraft, len(aircraft))
	for _, x := range aircraft {
		a[x.ID] = x
	}
	p := make(map[string]core.Pilot, len(pilots))
	for _, x := range pilots {
		p[x.ID] = x
	}
	c.m.Lock()
	defer c.m.Unlock()
	c.aircraft = a
	c.pilots = p
}

func (c *ReferenceCache) Reset() {
	c.Replace(nil, nil)
}

func (c *ReferenceCache) GetAircraft(id string) (core.Aircraft, bool) {
	c.m.RLock()
	defer c.m.RUnlock()
	a, ok := c.aircraft[id]
	return a, ok
}

func (c *ReferenceCache) GetPilot(id string) (core.Pilot, bool) {
	c.m.RLock()
	defer c.m.RUnlock()
	p, ok := c.pilots[id]
	return p, ok
}

// AircraftBySerial finds the fleet record a telemetry feed refers to.
func (c *ReferenceCache) AircraftBySerial(serial string) (core.Aircraft, bool) {
	c.m.RLock()
	defer c.m.RUnlock()
	for _, a := range c.aircraft {
		if a.Serial == serial {
			return a, true
		}
	}
	return core.Aircraft{}, false
}

// Serials lists the serial of every cached aircraft.
func (c *ReferenceCache) Serials() []string {
	c.m.RLock()
	defer c.m.RUnlock()
	out := make([]string, 0, len(c.aircraft))
	for _, a := range c.aircraft {
		if a.Serial != "" {
			out = append(out, a.Serial)
		}
	}
	return out
}

// Enrich fills Aircraft and Pilot on d from the cache. Unknown references stay nil.
func (c *ReferenceCache) Enrich(d core.DroneAssignment) core.DroneAssignment {
	c.m.RLock()
	defer c.m.RUnlock()
	d.Aircraft = nil
	d.Pilot = nil
	if a, ok := c.aircraft[d.AircraftID]; ok {
		d.Aircraft = &a
	}
	if p, ok := c.pilots[d.PilotID]; ok {
		d.Pilot = &p
	}
	return d
}

// Lens returns the number of cached aircraft and pilots.
func (c *ReferenceCache) Lens() (aircraft, pilots int) {
	c.m.RLock()
	defer c.m.RUnlock()
	return len(c.aircraft), len(c.pilots)
}
