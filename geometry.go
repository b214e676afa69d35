package main

import "math"

// Point is a position in game-world units. Y grows downwards.
type Point struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

// Dist returns the euclidean distance to q
func (p Point) Dist(q Point) float64 {
	return Distance(p.X, p.Y, q.X, q.Y)
}

// unit returns p scaled to length 1. ok is false for a zero, infinite or
// NaN vector.
func (p Point) unit() (Point, bool) {
	l := math.Hypot(p.X, p.Y)
	if l == 0 || math.IsInf(l, 0) || math.IsNaN(l) {
		return Point{}, false
	}
	return Point{p.X / l, p.Y / l}, true
}

// Polygon is an ordered vertex list, implicitly closed.
type Polygon []Point

// Edges returns the polygon's edges including the closing one.
func (poly Polygon) Edges() [][2]Point {
	n := len(poly)
	if n < 2 {
		return nil
	}
	edges := make([][2]Point, 0, n)
	for i := 0; i < n; i++ {
		a, b := poly[i], poly[(i+1)%n]
		if a == b {
			continue
		}
		edges = append(edges, [2]Point{a, b})
	}
	return edges
}

// Orientation of an ordered point triple
type Orientation int

const (
	Collinear Orientation = iota
	Clockwise
	CounterClockwise
)

// orientation classifies the turn p -> q -> r by the sign of the cross
// product. With y pointing down a positive cross product is a clockwise turn
// on screen.
func orientation(p, q, r Point) Orientation {
	cross := (q.X-p.X)*(r.Y-p.Y) - (q.Y-p.Y)*(r.X-p.X)
	if math.Abs(cross) < 1e-10 {
		return Collinear
	}
	if cross > 0 {
		return Clockwise
	}
	return CounterClockwise
}

// onSegment reports whether q, known to be collinear with p and r, lies in
// the bounding box of segment pr.
func onSegment(p, q, r Point) bool {
	return q.X <= math.Max(p.X, r.X) && q.X >= math.Min(p.X, r.X) &&
		q.Y <= math.Max(p.Y, r.Y) && q.Y >= math.Min(p.Y, r.Y)
}

// segmentsIntersect reports whether segment p1p2 touches segment q1q2.
func segmentsIntersect(p1, p2, q1, q2 Point) bool {
	o1 := orientation(p1, p2, q1)
	o2 := orientation(p1, p2, q2)
	o3 := orientation(q1, q2, p1)
	o4 := orientation(q1, q2, p2)

	if o1 != o2 && o3 != o4 {
		return true
	}

	// collinear overlaps
	if o1 == Collinear && onSegment(p1, q1, p2) {
		return true
	}
	if o2 == Collinear && onSegment(p1, q2, p2) {
		return true
	}
	if o3 == Collinear && onSegment(q1, p1, q2) {
		return true
	}
	if o4 == Collinear && onSegment(q1, p2, q2) {
		return true
	}
	return false
}

// pointInPolygon is a ray-casting parity test.
func pointInPolygon(pt Point, poly Polygon) bool {
	inside := false
	n := len(poly)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := poly[i], poly[j]
		if (a.Y > pt.Y) != (b.Y > pt.Y) {
			xCross := (b.X-a.X)*(pt.Y-a.Y)/(b.Y-a.Y) + a.X
			if pt.X < xCross {
				inside = !inside
			}
		}
	}
	return inside
}

// polygonsIntersect reports overlap of a and b: any pair of edges crossing,
// or any vertex of one inside the other.
//
// This is not a robust boolean overlap test. It relies on at least one
// vertex probe landing inside when one polygon swallows the other, which
// holds for the hand drawn shapes it is used on. Do not reuse it for general
// polygons.
func polygonsIntersect(a, b Polygon) bool {
	for _, ea := range a.Edges() {
		for _, eb := range b.Edges() {
			if segmentsIntersect(ea[0], ea[1], eb[0], eb[1]) {
				return true
			}
		}
	}
	for _, p := range a {
		if pointInPolygon(p, b) {
			return true
		}
	}
	for _, p := range b {
		if pointInPolygon(p, a) {
			return true
		}
	}
	return false
}

// polygonContained reports whether every vertex of inner lies inside outer.
func polygonContained(inner, outer Polygon) bool {
	if len(inner) == 0 {
		return false
	}
	for _, p := range inner {
		if !pointInPolygon(p, outer) {
			return false
		}
	}
	return true
}

// segmentHitsPolygon reports whether segment ab crosses any edge of poly.
func segmentHitsPolygon(a, b Point, poly Polygon) bool {
	for _, e := range poly.Edges() {
		if segmentsIntersect(a, b, e[0], e[1]) {
			return true
		}
	}
	return false
}

// rectPolygon returns the four corners of an axis-aligned rectangle centered
// on (cx, cy) and grown by pad on every side.
func rectPolygon(cx, cy, w, h, pad float64) Polygon {
	hw, hh := w/2+pad, h/2+pad
	return Polygon{
		{cx - hw, cy - hh},
		{cx + hw, cy - hh},
		{cx + hw, cy + hh},
		{cx - hw, cy + hh},
	}
}

// polygonArea returns the unsigned area enclosed by poly. A repeated closing
// vertex contributes nothing.
func polygonArea(poly Polygon) float64 {
	if len(poly) < 3 {
		return 0
	}
	sum := 0.0
	for i, p := range poly {
		q := poly[(i+1)%len(poly)]
		sum += p.X*q.Y - q.X*p.Y
	}
	return math.Abs(sum) / 2
}

// distinctVertices counts the different points in poly
func distinctVertices(poly Polygon) int {
	seen := make(map[Point]struct{}, len(poly))
	for _, p := range poly {
		seen[p] = struct{}{}
	}
	return len(seen)
}

// pathPolygon turns a closed segment path into its vertex list. The first
// vertex is repeated at the end so callers can rely on first == last.
func pathPolygon(path []Segment) Polygon {
	if len(path) == 0 {
		return nil
	}
	poly := make(Polygon, 0, len(path)+1)
	poly = append(poly, path[0].From)
	for _, s := range path {
		poly = append(poly, s.To)
	}
	if poly[len(poly)-1] != poly[0] {
		poly = append(poly, poly[0])
	}
	return poly
}
