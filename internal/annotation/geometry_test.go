package annotation

import (
	"math"
	"testing"
)

func TestClamp01(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.25, 0.25},
		{1, 1},
		{1.7, 1},
		{math.NaN(), 0},
	}
	for _, tc := range cases {
		if got := Clamp01(tc.in); got != tc.want {
			t.Fatalf("Clamp01(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestBBoxPixelsClampsBeforeDenormalizing(t *testing.T) {
	box := BBox{CX: 0.5, CY: 0.5, W: 1.4, H: 0.5}
	px := box.Pixels(200, 100)
	if px.W != 200 {
		t.Fatalf("expected width clamped to image width, got %v", px.W)
	}
	if px.XMin != 0 || px.YMin != 25 || px.H != 50 {
		t.Fatalf("unexpected pixel box: %+v", px)
	}
	if px.XMax() != 200 || px.YMax() != 75 {
		t.Fatalf("unexpected max edges: %v %v", px.XMax(), px.YMax())
	}
}

func TestPolygonBounds(t *testing.T) {
	poly := Polygon{ClassID: 3, Points: []Point{{0.1, 0.2}, {0.5, 0.1}, {0.4, 0.6}, {0.2, 0.5}}}
	box := poly.Bounds()
	if box.ClassID != 3 {
		t.Fatalf("class id not carried: %d", box.ClassID)
	}
	approx(t, "cx", box.CX, 0.3)
	approx(t, "cy", box.CY, 0.35)
	approx(t, "w", box.W, 0.4)
	approx(t, "h", box.H, 0.5)
}

func TestPolygonPixelArea(t *testing.T) {
	square := Polygon{Points: []Point{{0, 0}, {0.5, 0}, {0.5, 0.5}, {0, 0.5}}}
	approx(t, "area", square.PixelArea(100, 200), 50*100)

	line := Polygon{Points: []Point{{0, 0}, {1, 1}}}
	if got := line.PixelArea(10, 10); got != 0 {
		t.Fatalf("expected zero area for degenerate polygon, got %v", got)
	}
}

func TestBoundsOfKeypointsIgnoresAbsent(t *testing.T) {
	box := BoundsOfKeypoints([]Keypoint{
		{X: 0.2, Y: 0.2, V: VisibilityVisible},
		{X: 0, Y: 0, V: VisibilityAbsent},
		{X: 0.6, Y: 0.4, V: VisibilityOccluded},
	})
	approx(t, "cx", box.CX, 0.4)
	approx(t, "cy", box.CY, 0.3)
	approx(t, "w", box.W, 0.4)
	approx(t, "h", box.H, 0.2)
}

func approx(t *testing.T, label string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("%s = %v, want %v", label, got, want)
	}
}
