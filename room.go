package roomsim

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/tphakala/go-room-acoustics/internal/geom"
	"github.com/tphakala/go-room-acoustics/internal/material"
)

// NumBands is the number of octave bands carried by every material.
const NumBands = material.NumBands

// BandCenters returns the octave band center frequencies in Hz, low to
// high. Per-band absorption slices follow this ordering.
func BandCenters() []float64 {
	centers := make([]float64, NumBands)
	copy(centers, material.BandCenters[:])
	return centers
}

// Vertex is a 2D floor-plan point in meters.
type Vertex struct {
	X, Y float64
}

// Source is an acoustic emitter: a position strictly inside the room, an
// optional input signal, and a gain applied when rendering. A nil Signal
// renders as a unit impulse probe, which reproduces the impulse response
// itself. Multiple sources contribute additive, independent wavefronts.
type Source struct {
	Position r3.Vec
	Signal   []float64
	Gain     float64 // 0 means unity
}

// Microphone is a measurement position strictly inside the room.
type Microphone struct {
	Position r3.Vec
}

// Material describes one wall finish: per-band energy absorption in
// [0, 1] (band order per BandCenters) and a scattering coefficient in
// [0, 1] splitting specular from diffuse reflection.
type Material struct {
	Name       string
	Absorption [NumBands]float64
	Scattering float64
}

// MaterialTable is an immutable name-to-material lookup injected into
// rooms. Tables are safe for concurrent use and sharable across rooms.
type MaterialTable struct {
	inner *material.Table
}

// NewMaterialTable builds a table from the given materials, validating
// every coefficient eagerly.
func NewMaterialTable(materials []Material) (*MaterialTable, error) {
	converted := make([]material.Material, len(materials))
	for i, m := range materials {
		converted[i] = material.Material{
			Name:       m.Name,
			Absorption: m.Absorption,
			Scattering: m.Scattering,
		}
	}

	inner, err := material.NewTable(converted)
	if err != nil {
		return nil, err
	}
	return &MaterialTable{inner: inner}, nil
}

// BuiltinMaterials returns the default table of common architectural
// finishes (hard_surface, brick, carpet, curtains, glass, ...).
func BuiltinMaterials() *MaterialTable {
	return &MaterialTable{inner: material.BuiltinTable()}
}

// Names lists the registered material names in sorted order.
func (t *MaterialTable) Names() []string { return t.inner.Names() }

// Lookup returns the material registered under name, or an error wrapping
// ErrUnknownMaterial.
func (t *MaterialTable) Lookup(name string) (Material, error) {
	m, err := t.inner.Lookup(name)
	if err != nil {
		return Material{}, err
	}
	return Material{Name: m.Name, Absorption: m.Absorption, Scattering: m.Scattering}, nil
}

// Room is a frozen simulation scene: extruded geometry, per-wall
// materials, sources and microphones. Geometry and materials are
// immutable once assigned; changing the scene means building a new Room
// and rerunning the simulation.
type Room struct {
	geo       *geom.Room
	table     *MaterialTable
	materials []material.Material
	assigned  bool
	sources   []Source
	mics      []Microphone
}

// NewRoom validates and extrudes the floor polygon into a room of the
// given height, using the builtin material table for name lookups. It
// fails with ErrInvalidGeometry for degenerate or self-intersecting
// polygons, fewer than 3 vertices, or non-positive height.
//
// Wall ordering matters for material assignment: wall i is the extrusion
// of the polygon edge from vertex i to vertex i+1 (wrapping), followed by
// the floor and then the ceiling.
func NewRoom(vertices []Vertex, height float64) (*Room, error) {
	return NewRoomWithTable(vertices, height, BuiltinMaterials())
}

// NewRoomWithTable is NewRoom with an injected material table, letting
// tests and callers supply synthetic materials.
func NewRoomWithTable(vertices []Vertex, height float64, table *MaterialTable) (*Room, error) {
	if table == nil {
		table = BuiltinMaterials()
	}

	polygon := make([]geom.Vertex, len(vertices))
	for i, v := range vertices {
		polygon[i] = geom.Vertex{X: v.X, Y: v.Y}
	}

	geo, err := geom.Build(polygon, height)
	if err != nil {
		return nil, err
	}

	return &Room{geo: geo, table: table}, nil
}

// NumWalls returns the wall count: one per polygon edge plus floor and
// ceiling.
func (r *Room) NumWalls() int { return r.geo.NumWalls() }

// Height returns the extrusion height in meters.
func (r *Room) Height() float64 { return r.geo.Height }

// Volume returns the room volume in cubic meters.
func (r *Room) Volume() float64 { return r.geo.Volume() }

// NumSources and NumMicrophones report the scene population.
func (r *Room) NumSources() int     { return len(r.sources) }
func (r *Room) NumMicrophones() int { return len(r.mics) }

// AssignMaterials assigns one named material per wall, positionally:
// names[i] goes to wall i (edge walls in vertex order, then floor, then
// ceiling). It fails with ErrMaterialCountMismatch unless every wall is
// covered exactly once, and with ErrUnknownMaterial for unregistered
// names.
func (r *Room) AssignMaterials(names []string) error {
	if len(names) != r.NumWalls() {
		return fmt.Errorf("%w: %d names for %d walls (%d edges + floor + ceiling)",
			ErrMaterialCountMismatch, len(names), r.NumWalls(), len(r.geo.Polygon))
	}

	materials := make([]material.Material, len(names))
	for i, name := range names {
		m, err := r.table.inner.Lookup(name)
		if err != nil {
			return fmt.Errorf("wall %d: %w", i, err)
		}
		materials[i] = m
	}

	if err := material.CheckAssignment(materials, r.NumWalls()); err != nil {
		return err
	}

	r.materials = materials
	r.assigned = true
	return nil
}

// AssignUniformMaterial assigns the same named material to every wall
// including floor and ceiling.
func (r *Room) AssignUniformMaterial(name string) error {
	m, err := r.table.inner.Lookup(name)
	if err != nil {
		return err
	}

	r.materials = material.Uniform(m, r.NumWalls())
	r.assigned = true
	return nil
}

// WallMaterial returns the material assigned to wall index i.
func (r *Room) WallMaterial(i int) (Material, error) {
	if !r.assigned {
		return Material{}, fmt.Errorf("%w: no materials assigned", ErrSceneIncomplete)
	}
	if i < 0 || i >= len(r.materials) {
		return Material{}, fmt.Errorf("wall index %d out of range [0, %d)", i, len(r.materials))
	}
	m := r.materials[i]
	return Material{Name: m.Name, Absorption: m.Absorption, Scattering: m.Scattering}, nil
}

// AddSource places a source in the room. The position must lie strictly
// inside the room volume; violations fail with ErrOutOfBounds at
// placement, not mid-simulation.
func (r *Room) AddSource(src Source) error {
	if !r.geo.Contains(src.Position) {
		return fmt.Errorf("%w: source %d at (%.3f, %.3f, %.3f)",
			ErrOutOfBounds, len(r.sources), src.Position.X, src.Position.Y, src.Position.Z)
	}
	r.sources = append(r.sources, src)
	return nil
}

// AddMicrophone places a measurement position in the room, with the same
// strict containment requirement as AddSource.
func (r *Room) AddMicrophone(pos r3.Vec) error {
	if !r.geo.Contains(pos) {
		return fmt.Errorf("%w: microphone %d at (%.3f, %.3f, %.3f)",
			ErrOutOfBounds, len(r.mics), pos.X, pos.Y, pos.Z)
	}
	r.mics = append(r.mics, Microphone{Position: pos})
	return nil
}

// AddMicrophoneArray places an ordered set of measurement positions.
// Placement is atomic: if any position is outside the room, none are
// added.
func (r *Room) AddMicrophoneArray(positions []r3.Vec) error {
	for i, pos := range positions {
		if !r.geo.Contains(pos) {
			return fmt.Errorf("%w: array microphone %d at (%.3f, %.3f, %.3f)",
				ErrOutOfBounds, i, pos.X, pos.Y, pos.Z)
		}
	}
	for _, pos := range positions {
		r.mics = append(r.mics, Microphone{Position: pos})
	}
	return nil
}

// SabineRT60 returns the classical Sabine reverberation estimate
// 0.161·V/A seconds, using band-averaged absorption. It needs assigned
// materials; without them it returns 0. The estimate guides automatic
// time budgets and is no substitute for RT60 on a simulated response.
func (r *Room) SabineRT60() float64 {
	if !r.assigned {
		return 0
	}

	var absArea float64
	for i := range r.geo.Walls {
		var mean float64
		for _, a := range r.materials[i].Absorption {
			mean += a
		}
		mean /= NumBands
		absArea += r.geo.Walls[i].Area * mean
	}

	if absArea <= 0 {
		return maxAutoMaxTime
	}
	return sabineConstant * r.geo.Volume() / absArea
}

// meanFreePath returns the classical 4V/S estimate of the average
// distance between reflections.
func (r *Room) meanFreePath() float64 {
	var surface float64
	for i := range r.geo.Walls {
		surface += r.geo.Walls[i].Area
	}
	if surface <= 0 {
		return 1
	}
	return 4 * r.geo.Volume() / surface
}

// ready reports whether the scene can be simulated.
func (r *Room) ready() error {
	if !r.assigned {
		return fmt.Errorf("%w: no materials assigned", ErrSceneIncomplete)
	}
	if len(r.sources) == 0 {
		return fmt.Errorf("%w: no sources", ErrSceneIncomplete)
	}
	if len(r.mics) == 0 {
		return fmt.Errorf("%w: no microphones", ErrSceneIncomplete)
	}
	return nil
}
