// Package geom models room geometry for acoustic simulation.
//
// A room is described by a simple 2D floor polygon extruded to a prism:
// one vertical wall per polygon edge plus a floor and a ceiling. Walls are
// planar, carry an outward unit normal, and are immutable once the room is
// built. All coordinates are in meters.
package geom

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Geometric tolerances.
const (
	// epsArea is the minimum polygon area considered non-degenerate.
	epsArea = 1e-9

	// epsParallel rejects ray/plane intersections with near-parallel rays.
	epsParallel = 1e-12

	// epsOnPlane is the slack used when testing whether a point lies on a
	// wall's bounded face.
	epsOnPlane = 1e-7

	// epsAdvance is the minimum ray advance accepted as a forward hit,
	// preventing immediate re-intersection with the wall just left.
	epsAdvance = 1e-9

	// epsBoundary is the distance from a wall within which a point no
	// longer counts as strictly inside the room.
	epsBoundary = 1e-9

	minPolygonVertices = 3
)

// ErrInvalidGeometry indicates a malformed floor polygon or room height.
var ErrInvalidGeometry = errors.New("invalid room geometry")

// Vertex is a 2D floor-plan point in meters.
type Vertex struct {
	X, Y float64
}

// WallKind distinguishes extruded side walls from floor and ceiling.
type WallKind int

const (
	// WallSide is a vertical wall extruded from one polygon edge.
	WallSide WallKind = iota

	// WallFloor is the horizontal wall at z = 0.
	WallFloor

	// WallCeiling is the horizontal wall at z = height.
	WallCeiling
)

// Wall is one planar, convex-or-polygonal room surface.
//
// For side walls the bounded face is the rectangle spanned by the source
// edge and the room height. For floor and ceiling the face is the floor
// polygon itself. Normal is unit length and points out of the room.
type Wall struct {
	Kind   WallKind
	Index  int // position in Room.Walls; side walls first, in edge order
	Normal r3.Vec
	Point  r3.Vec // any point on the wall plane
	Area   float64

	// MaterialIndex keys into the material assignment held by the caller.
	// Walls never own materials; many walls may share one.
	MaterialIndex int

	// Side-wall extent: the 2D edge and the vertical span [0, height].
	edgeA, edgeB Vertex
	edgeLen      float64
	height       float64

	// Floor/ceiling extent: the owning room's polygon.
	polygon []Vertex
}

// Room is a frozen extruded floor polygon. All fields are populated at
// construction and never mutated afterwards; concurrent readers need no
// locking.
type Room struct {
	Polygon []Vertex // validated simple polygon, in input vertex order
	Height  float64
	Walls   []Wall // len(Polygon) side walls, then floor, then ceiling

	floorArea float64
}

// NumWalls returns the total wall count including floor and ceiling.
func (r *Room) NumWalls() int { return len(r.Walls) }

// Volume returns the prism volume in cubic meters.
func (r *Room) Volume() float64 { return r.floorArea * r.Height }

// FloorArea returns the floor polygon area in square meters.
func (r *Room) FloorArea() float64 { return r.floorArea }

// Build validates the floor polygon and extrudes it into a Room.
//
// The polygon must be simple (non-self-intersecting) with at least three
// vertices and nonzero area, and height must be positive. Vertex order may
// be clockwise or counter-clockwise on input; it is preserved, so side
// wall i always corresponds to input edge i (vertices i and i+1), and
// outward normals are derived from the winding.
func Build(polygon []Vertex, height float64) (*Room, error) {
	if len(polygon) < minPolygonVertices {
		return nil, fmt.Errorf("%w: polygon has %d vertices (minimum %d)",
			ErrInvalidGeometry, len(polygon), minPolygonVertices)
	}

	if height <= 0 || math.IsNaN(height) || math.IsInf(height, 0) {
		return nil, fmt.Errorf("%w: height %v must be positive and finite",
			ErrInvalidGeometry, height)
	}

	for i, v := range polygon {
		if math.IsNaN(v.X) || math.IsNaN(v.Y) || math.IsInf(v.X, 0) || math.IsInf(v.Y, 0) {
			return nil, fmt.Errorf("%w: vertex %d (%v, %v) is not finite",
				ErrInvalidGeometry, i, v.X, v.Y)
		}
	}

	area := signedArea(polygon)
	if math.Abs(area) < epsArea {
		return nil, fmt.Errorf("%w: polygon area %v is degenerate", ErrInvalidGeometry, math.Abs(area))
	}

	verts := make([]Vertex, len(polygon))
	copy(verts, polygon)

	if i, j, crossing := selfIntersects(verts); crossing {
		return nil, fmt.Errorf("%w: edges %d and %d intersect", ErrInvalidGeometry, i, j)
	}

	room := &Room{
		Polygon:   verts,
		Height:    height,
		floorArea: math.Abs(area),
	}
	room.Walls = extrudeWalls(verts, height, area > 0)

	return room, nil
}

// extrudeWalls creates one vertical wall per polygon edge, then the floor
// and ceiling. ccw tells which side of each edge faces the interior.
func extrudeWalls(verts []Vertex, height float64, ccw bool) []Wall {
	n := len(verts)
	walls := make([]Wall, 0, n+2)

	for i := range n {
		a := verts[i]
		b := verts[(i+1)%n]

		ex := b.X - a.X
		ey := b.Y - a.Y
		edgeLen := math.Hypot(ex, ey)

		// Interior lies to the left of a CCW edge, so the outward normal
		// is the edge direction rotated clockwise; CW winding flips it.
		normal := r3.Unit(r3.Vec{X: ey, Y: -ex})
		if !ccw {
			normal = r3.Scale(-1, normal)
		}

		walls = append(walls, Wall{
			Kind:    WallSide,
			Index:   i,
			Normal:  normal,
			Point:   r3.Vec{X: a.X, Y: a.Y},
			Area:    edgeLen * height,
			edgeA:   a,
			edgeB:   b,
			edgeLen: edgeLen,
			height:  height,
		})
	}

	floorArea := math.Abs(signedArea(verts))

	walls = append(walls, Wall{
		Kind:    WallFloor,
		Index:   n,
		Normal:  r3.Vec{Z: -1},
		Point:   r3.Vec{},
		Area:    floorArea,
		polygon: verts,
		height:  height,
	})

	walls = append(walls, Wall{
		Kind:    WallCeiling,
		Index:   n + 1,
		Normal:  r3.Vec{Z: 1},
		Point:   r3.Vec{Z: height},
		Area:    floorArea,
		polygon: verts,
		height:  height,
	})

	return walls
}

// Contains reports whether p lies strictly inside the room volume. Points
// on or within epsBoundary of a wall count as outside.
func (r *Room) Contains(p r3.Vec) bool {
	if p.Z <= 0 || p.Z >= r.Height {
		return false
	}

	v := Vertex{X: p.X, Y: p.Y}
	if !pointInPolygon(v, r.Polygon) {
		return false
	}

	// The even-odd cast is ambiguous on the boundary itself; reject
	// points touching any side wall explicitly.
	n := len(r.Polygon)
	for i := range n {
		if distToSegment(v, r.Polygon[i], r.Polygon[(i+1)%n]) <= epsBoundary {
			return false
		}
	}
	return true
}

// ContainsXY reports whether the 2D point lies inside the floor polygon.
func (r *Room) ContainsXY(v Vertex) bool {
	return pointInPolygon(v, r.Polygon)
}

// Reflect mirrors point p across the wall plane.
func (w *Wall) Reflect(p r3.Vec) r3.Vec {
	d := r3.Dot(w.Normal, r3.Sub(p, w.Point))
	return r3.Sub(p, r3.Scale(2*d, w.Normal))
}

// ReflectDir mirrors direction d across the wall plane (specular bounce).
func (w *Wall) ReflectDir(d r3.Vec) r3.Vec {
	return r3.Sub(d, r3.Scale(2*r3.Dot(w.Normal, d), w.Normal))
}

// SignedDistance returns the signed distance from p to the wall plane,
// positive on the exterior side.
func (w *Wall) SignedDistance(p r3.Vec) float64 {
	return r3.Dot(w.Normal, r3.Sub(p, w.Point))
}

// IntersectRay intersects the ray origin+t*dir with the bounded wall face.
// It returns the hit parameter t > epsAdvance and true on a hit. dir need
// not be normalized; t is in units of |dir|.
func (w *Wall) IntersectRay(origin, dir r3.Vec) (float64, bool) {
	denom := r3.Dot(w.Normal, dir)
	if math.Abs(denom) < epsParallel {
		return 0, false
	}

	t := r3.Dot(w.Normal, r3.Sub(w.Point, origin)) / denom
	if t <= epsAdvance {
		return 0, false
	}

	hit := r3.Add(origin, r3.Scale(t, dir))
	if !w.containsPoint(hit) {
		return 0, false
	}

	return t, true
}

// IntersectSegment intersects the segment a→b with the bounded wall face,
// returning the hit point and true when the crossing lies within (0, 1)
// of the segment.
func (w *Wall) IntersectSegment(a, b r3.Vec) (r3.Vec, bool) {
	dir := r3.Sub(b, a)
	denom := r3.Dot(w.Normal, dir)
	if math.Abs(denom) < epsParallel {
		return r3.Vec{}, false
	}

	t := r3.Dot(w.Normal, r3.Sub(w.Point, a)) / denom
	if t <= epsAdvance || t >= 1-epsAdvance {
		return r3.Vec{}, false
	}

	hit := r3.Add(a, r3.Scale(t, dir))
	if !w.containsPoint(hit) {
		return r3.Vec{}, false
	}

	return hit, true
}

// containsPoint reports whether a point already on the wall plane lies
// within the bounded face, with epsOnPlane slack at the edges.
func (w *Wall) containsPoint(p r3.Vec) bool {
	switch w.Kind {
	case WallFloor, WallCeiling:
		return pointInPolygonEps(Vertex{X: p.X, Y: p.Y}, w.polygon, epsOnPlane)

	default:
		if p.Z < -epsOnPlane || p.Z > w.height+epsOnPlane {
			return false
		}
		// Project onto the edge and check the parametric coordinate.
		ex := w.edgeB.X - w.edgeA.X
		ey := w.edgeB.Y - w.edgeA.Y
		s := ((p.X-w.edgeA.X)*ex + (p.Y-w.edgeA.Y)*ey) / (w.edgeLen * w.edgeLen)
		return s >= -epsOnPlane && s <= 1+epsOnPlane
	}
}

// NearestHit finds the closest bounded wall intersection along origin+t*dir.
// It returns the wall index, hit parameter and true when any wall is hit.
func (r *Room) NearestHit(origin, dir r3.Vec) (int, float64, bool) {
	best := math.Inf(1)
	bestWall := -1

	for i := range r.Walls {
		if t, ok := r.Walls[i].IntersectRay(origin, dir); ok && t < best {
			best = t
			bestWall = i
		}
	}

	if bestWall < 0 {
		return 0, 0, false
	}
	return bestWall, best, true
}

// signedArea returns the shoelace area, positive for CCW winding.
func signedArea(polygon []Vertex) float64 {
	var sum float64
	n := len(polygon)
	for i := range n {
		a := polygon[i]
		b := polygon[(i+1)%n]
		sum += a.X*b.Y - b.X*a.Y
	}
	return sum / 2
}

// selfIntersects checks every non-adjacent edge pair for a proper crossing.
// O(n²) is acceptable: floor plans have tens of vertices, not thousands.
func selfIntersects(polygon []Vertex) (int, int, bool) {
	n := len(polygon)
	for i := range n {
		a1 := polygon[i]
		a2 := polygon[(i+1)%n]
		for j := i + 1; j < n; j++ {
			// Skip adjacent edges (shared endpoint is not a crossing).
			if j == i || (j+1)%n == i || (i+1)%n == j {
				continue
			}
			b1 := polygon[j]
			b2 := polygon[(j+1)%n]
			if segmentsCross(a1, a2, b1, b2) {
				return i, j, true
			}
		}
	}
	return 0, 0, false
}

// segmentsCross reports a proper intersection of segments a1a2 and b1b2.
func segmentsCross(a1, a2, b1, b2 Vertex) bool {
	d1 := cross2(b1, b2, a1)
	d2 := cross2(b1, b2, a2)
	d3 := cross2(a1, a2, b1)
	d4 := cross2(a1, a2, b2)

	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

// cross2 returns the z component of (b-a) × (p-a).
func cross2(a, b, p Vertex) float64 {
	return (b.X-a.X)*(p.Y-a.Y) - (b.Y-a.Y)*(p.X-a.X)
}

// pointInPolygon is a standard even-odd ray cast.
func pointInPolygon(p Vertex, polygon []Vertex) bool {
	inside := false
	n := len(polygon)
	j := n - 1
	for i := range n {
		a := polygon[i]
		b := polygon[j]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			xCross := (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y) + a.X
			if p.X < xCross {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// pointInPolygonEps accepts points within eps of the boundary as inside,
// used for wall-face containment where hits land exactly on edges.
func pointInPolygonEps(p Vertex, polygon []Vertex, eps float64) bool {
	if pointInPolygon(p, polygon) {
		return true
	}

	// Boundary check: distance from p to each edge segment.
	n := len(polygon)
	for i := range n {
		a := polygon[i]
		b := polygon[(i+1)%n]
		if distToSegment(p, a, b) <= eps {
			return true
		}
	}
	return false
}

func distToSegment(p, a, b Vertex) float64 {
	ex := b.X - a.X
	ey := b.Y - a.Y
	lenSq := ex*ex + ey*ey
	if lenSq == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}

	s := ((p.X-a.X)*ex + (p.Y-a.Y)*ey) / lenSq
	if s < 0 {
		s = 0
	} else if s > 1 {
		s = 1
	}

	cx := a.X + s*ex
	cy := a.Y + s*ey
	return math.Hypot(p.X-cx, p.Y-cy)
}
