// Package pip tracks the floating picture-in-picture video overlays of a view.
package pip

import (
	"sync"
)

// Point is a position in viewport pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a width and height in viewport pixels.
type Size struct {
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// DefaultOverlaySize is the size of a newly opened overlay.
var DefaultOverlaySize = Size{W: 320, H: 200}

const cascadeStep = 24

// Overlay is one open video window. Fields are a copy; mutate through the Manager.
type Overlay struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Source   string `json:"src"`
	Position Point  `json:"position"`
	Size     Size   `json:"size"`
	Dragging bool   `json:"dragging"`
}

// Manager maps entity ids to open overlays. Overlays are independent of the
// entity they were opened for and survive its deletion.
type Manager struct {
	mu       sync.Mutex
	viewport Size
	overlays map[string]*window
	order    []string
}

// New creates a manager for a viewport of the given size.
func New(viewport Size) *Manager {
	return &Manager{
		viewport: viewport,
		overlays: make(map[string]*window),
	}
}

// Toggle closes the overlay for id when open, and opens it when closed and
// src is set. It reports whether the overlay is open afterwards.
func (m *Manager) Toggle(id, name, src string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.overlays[id]; ok {
		m.remove(id)
		return false
	}
	if src == "" {
		return false
	}
	m.add(id, name, src)
	return true
}

// Open opens the overlay for id unless it is already open. An empty src is ignored.
func (m *Manager) Open(id, name, src string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.overlays[id]; ok {
		return true
	}
	if src == "" {
		return false
	}
	m.add(id, name, src)
	return true
}

// Close closes the overlay for id. It reports whether one was open.
func (m *Manager) Close(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.overlays[id]; !ok {
		return false
	}
	m.remove(id)
	return true
}

// IsOpen reports whether an overlay is open for id.
func (m *Manager) IsOpen(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.overlays[id]
	return ok
}

// List returns the open overlays in the order they were opened.
func (m *Manager) List() []Overlay {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Overlay, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.overlays[id].snapshot())
	}
	return out
}

// Reset closes every overlay.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overlays = make(map[string]*window)
	m.order = nil
}

// Resize changes the viewport and pulls every overlay back inside it.
func (m *Manager) Resize(viewport Size) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.viewport = viewport
	for _, w := range m.overlays {
		w.pos = clamp(w.pos, w.size, viewport)
	}
}

// PointerDown starts dragging overlay id from viewport point p.
func (m *Manager) PointerDown(id string, p Point) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.overlays[id]
	if !ok {
		return false
	}
	return w.pointerDown(p)
}

// PointerMove moves overlay id while it is being dragged.
func (m *Manager) PointerMove(id string, p Point) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.overlays[id]
	if !ok {
		return false
	}
	return w.pointerMove(p, m.viewport)
}

// PointerUp ends the drag session of overlay id.
func (m *Manager) PointerUp(id string, p Point) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.overlays[id]
	if !ok {
		return false
	}
	return w.pointerUp(p, m.viewport)
}

func (m *Manager) add(id, name, src string) {
	n := float64(len(m.order))
	start := Point{X: 16 + n*cascadeStep, Y: 16 + n*cascadeStep}
	size := DefaultOverlaySize
	m.overlays[id] = &window{
		id:   id,
		name: name,
		src:  src,
		size: size,
		pos:  clamp(start, size, m.viewport),
	}
	m.order = append(m.order, id)
}

func (m *Manager) remove(id string) {
	delete(m.overlays, id)
	for i, o := range m.order {
		if o == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}
