package ax

// Rect represents element position and size in screen coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the center point of the rect.
func (r Rect) Center() (float64, float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Contains checks if a point is within the rect.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// ContainsRect checks if other lies entirely within the rect.
func (r Rect) ContainsRect(other Rect) bool {
	return other.X >= r.X && other.Y >= r.Y &&
		other.X+other.Width <= r.X+r.Width &&
		other.Y+other.Height <= r.Y+r.Height
}

// Empty reports whether the rect has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// HorizontalOverlap returns the width of the horizontal intersection of
// the two rects divided by the width of the narrower one, in [0, 1].
func (r Rect) HorizontalOverlap(other Rect) float64 {
	if r.Empty() || other.Empty() {
		return 0
	}
	left := r.X
	if other.X > left {
		left = other.X
	}
	right := r.X + r.Width
	if o := other.X + other.Width; o < right {
		right = o
	}
	if right <= left {
		return 0
	}
	narrower := r.Width
	if other.Width < narrower {
		narrower = other.Width
	}
	return (right - left) / narrower
}
