package pip

// DragState is the state of one overlay's drag machine.
type DragState int

const (
	DragIdle DragState = iota
	Dragging
)

func (s DragState) String() string {
	if s == Dragging {
		return "dragging"
	}
	return "idle"
}

type window struct {
	id, name, src string
	pos           Point
	size          Size

	state DragState
	grab  Point // pointer offset from the window origin, valid while dragging
}

func (w *window) snapshot() Overlay {
	return Overlay{
		ID:       w.id,
		Name:     w.name,
		Source:   w.src,
		Position: w.pos,
		Size:     w.size,
		Dragging: w.state == Dragging,
	}
}

func (w *window) pointerDown(p Point) bool {
	if w.state == Dragging {
		return false
	}
	w.state = Dragging
	w.grab = Point{X: p.X - w.pos.X, Y: p.Y - w.pos.Y}
	return true
}

func (w *window) pointerMove(p Point, viewport Size) bool {
	if w.state != Dragging {
		return false
	}
	w.pos = clamp(Point{X: p.X - w.grab.X, Y: p.Y - w.grab.Y}, w.size, viewport)
	return true
}

func (w *window) pointerUp(p Point, viewport Size) bool {
	if w.state != Dragging {
		return false
	}
	w.pointerMove(p, viewport)
	w.state = DragIdle
	w.grab = Point{}
	return true
}

// clamp keeps a window of size sz fully inside viewport. A window larger
// than the viewport is pinned to the top-left corner.
func clamp(p Point, sz Size, viewport Size) Point {
	if viewport.W <= 0 || viewport.H <= 0 {
		return p
	}
	maxX := viewport.W - sz.W
	maxY := viewport.H - sz.H
	p.X = min(max(p.X, 0), max(maxX, 0))
	p.Y = min(max(p.Y, 0), max(maxY, 0))
	return p
}
