package annotation

import "math"

// Clamp01 limits v to [0,1]. NaN collapses to 0.
func Clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Clamped returns the box with every coordinate limited to [0,1].
func (b BBox) Clamped() BBox {
	return BBox{
		ClassID: b.ClassID,
		CX:      Clamp01(b.CX),
		CY:      Clamp01(b.CY),
		W:       Clamp01(b.W),
		H:       Clamp01(b.H),
	}
}

// Clamped returns the point limited to [0,1].
func (p Point) Clamped() Point {
	return Point{X: Clamp01(p.X), Y: Clamp01(p.Y)}
}

// PixelBox is a corner-based box in absolute pixels.
type PixelBox struct {
	XMin float64
	YMin float64
	W    float64
	H    float64
}

// XMax returns the right edge.
func (p PixelBox) XMax() float64 { return p.XMin + p.W }

// YMax returns the bottom edge.
func (p PixelBox) YMax() float64 { return p.YMin + p.H }

// Area returns W*H.
func (p PixelBox) Area() float64 { return p.W * p.H }

// Pixels denormalizes the clamped box against the image size.
func (b BBox) Pixels(width, height int) PixelBox {
	c := b.Clamped()
	w := float64(width)
	h := float64(height)
	return PixelBox{
		XMin: (c.CX - c.W/2) * w,
		YMin: (c.CY - c.H/2) * h,
		W:    c.W * w,
		H:    c.H * h,
	}
}

// Pixels denormalizes the clamped point against the image size.
func (p Point) Pixels(width, height int) (float64, float64) {
	c := p.Clamped()
	return c.X * float64(width), c.Y * float64(height)
}

// BoundsOf returns the minimal normalized box enclosing points. The result
// carries class id 0; callers set it.
func BoundsOf(points []Point) BBox {
	if len(points) == 0 {
		return BBox{}
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, raw := range points {
		p := raw.Clamped()
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return BBox{
		CX: (minX + maxX) / 2,
		CY: (minY + maxY) / 2,
		W:  maxX - minX,
		H:  maxY - minY,
	}
}

// Bounds returns the polygon's enclosing box tagged with its class.
func (p Polygon) Bounds() BBox {
	box := BoundsOf(p.Points)
	box.ClassID = p.ClassID
	return box
}

// PixelArea returns the shoelace area of the polygon in absolute pixels.
func (p Polygon) PixelArea(width, height int) float64 {
	n := len(p.Points)
	if n < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		x1, y1 := p.Points[i].Pixels(width, height)
		x2, y2 := p.Points[(i+1)%n].Pixels(width, height)
		sum += x1*y2 - x2*y1
	}
	return math.Abs(sum) / 2
}

// BoundsOfKeypoints encloses the keypoints that are not absent.
func BoundsOfKeypoints(points []Keypoint) BBox {
	pts := make([]Point, 0, len(points))
	for _, kp := range points {
		if kp.V == VisibilityAbsent {
			continue
		}
		pts = append(pts, Point{X: kp.X, Y: kp.Y})
	}
	return BoundsOf(pts)
}
