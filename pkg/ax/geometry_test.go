package ax

import "testing"

func TestRect_Center(t *testing.T) {
	r := Rect{X: 100, Y: 200, Width: 200, Height: 50}
	x, y := r.Center()
	if x != 200 || y != 225 {
		t.Errorf("Center() = (%v, %v), want (200, 225)", x, y)
	}
}

func TestRect_Contains(t *testing.T) {
	r := Rect{X: 10, Y: 10, Width: 100, Height: 100}

	if !r.Contains(10, 10) {
		t.Error("Contains should include the top-left corner")
	}
	if r.Contains(110, 50) {
		t.Error("Contains should exclude the right edge")
	}
}

func TestRect_ContainsRect(t *testing.T) {
	outer := Rect{X: 0, Y: 0, Width: 100, Height: 100}
	inner := Rect{X: 10, Y: 10, Width: 50, Height: 50}
	straddling := Rect{X: 90, Y: 10, Width: 50, Height: 20}

	if !outer.ContainsRect(inner) {
		t.Error("ContainsRect(inner) = false")
	}
	if outer.ContainsRect(straddling) {
		t.Error("ContainsRect(straddling) = true")
	}
}

func TestRect_HorizontalOverlap(t *testing.T) {
	tests := []struct {
		name string
		a, b Rect
		want float64
	}{
		{"identical", Rect{0, 0, 100, 10}, Rect{0, 0, 100, 10}, 1},
		{"half", Rect{0, 0, 100, 10}, Rect{50, 0, 100, 10}, 0.5},
		{"disjoint", Rect{0, 0, 100, 10}, Rect{200, 0, 100, 10}, 0},
		{"narrow inside wide", Rect{0, 0, 400, 10}, Rect{100, 0, 100, 10}, 1},
		{"empty", Rect{0, 0, 0, 0}, Rect{0, 0, 100, 10}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.HorizontalOverlap(tt.b); got != tt.want {
				t.Errorf("HorizontalOverlap = %v, want %v", got, tt.want)
			}
		})
	}
}
