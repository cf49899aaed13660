package imagesource

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/tphakala/go-room-acoustics/internal/geom"
	"github.com/tphakala/go-room-acoustics/internal/material"
)

const (
	// Test room: 5 x 4 x 3 m shoebox.
	testWidth  = 5.0
	testLength = 4.0
	testHeight = 3.0

	testAbsorption = 0.3
	testTolerance  = 1e-9
)

func testRoom(t *testing.T) *geom.Room {
	t.Helper()
	room, err := geom.Build([]geom.Vertex{
		{X: 0, Y: 0},
		{X: testWidth, Y: 0},
		{X: testWidth, Y: testLength},
		{X: 0, Y: testLength},
	}, testHeight)
	require.NoError(t, err)
	return room
}

func uniformMaterials(room *geom.Room, absorption float64) []material.Material {
	m := material.Material{Name: "test"}
	for band := range m.Absorption {
		m.Absorption[band] = absorption
	}
	return material.Uniform(m, room.NumWalls())
}

func TestGenerate_DirectPathOnly(t *testing.T) {
	room := testRoom(t)
	source := r3.Vec{X: 1, Y: 1, Z: 1.5}
	mic := r3.Vec{X: 4, Y: 3, Z: 1.5}

	paths := Generate(room, uniformMaterials(room, testAbsorption), source, mic, 0, 0)

	require.Len(t, paths, 1)
	p := paths[0]
	assert.Equal(t, 0, p.Order)
	assert.Empty(t, p.Walls)
	assert.InDelta(t, r3.Norm(r3.Sub(mic, source)), p.Distance, testTolerance)
	for band, a := range p.Attenuation {
		assert.InDelta(t, 1.0, a, testTolerance, "direct path band %d is unattenuated", band)
	}
}

// In an L-shaped room a source and microphone in different legs have no
// line of sight: the inner walls of the notch must occlude the direct path.
func TestGenerate_DirectPathOccludedInLShape(t *testing.T) {
	room, err := geom.Build([]geom.Vertex{
		{X: 0, Y: 0}, {X: 6, Y: 0}, {X: 6, Y: 3},
		{X: 3, Y: 3}, {X: 3, Y: 5}, {X: 0, Y: 5},
	}, testHeight)
	require.NoError(t, err)
	materials := uniformMaterials(room, testAbsorption)

	source := r3.Vec{X: 5, Y: 2, Z: 1.5}

	hidden := Generate(room, materials, source, r3.Vec{X: 1.5, Y: 4.5, Z: 1.5}, 0, 0)
	assert.Empty(t, hidden, "no direct path around the notch")

	visible := Generate(room, materials, source, r3.Vec{X: 1, Y: 1, Z: 1.5}, 0, 0)
	require.Len(t, visible, 1)
	assert.Equal(t, 0, visible[0].Order)
}

func TestGenerate_FirstOrderImagePositions(t *testing.T) {
	room := testRoom(t)
	source := r3.Vec{X: 1, Y: 1, Z: 1.5}
	mic := r3.Vec{X: 4, Y: 3, Z: 1.5}

	paths := Generate(room, uniformMaterials(room, testAbsorption), source, mic, 1, 0)

	// Shoebox: direct path plus one visible image per wall.
	require.Len(t, paths, 7)

	first := make(map[int]Path)
	for _, p := range paths {
		if p.Order == 1 {
			require.Len(t, p.Walls, 1)
			first[p.Walls[0]] = p
		}
	}
	require.Len(t, first, 6)

	// Mirror positions follow directly from the plan: wall 0 is y=0,
	// wall 1 is x=width, wall 4 the floor, wall 5 the ceiling.
	assert.InDelta(t, -1.0, first[0].Image.Y, testTolerance)
	assert.InDelta(t, 2*testWidth-1, first[1].Image.X, testTolerance)
	assert.InDelta(t, -1.5, first[4].Image.Z, testTolerance)
	assert.InDelta(t, 2*testHeight-1.5, first[5].Image.Z, testTolerance)

	for wall, p := range first {
		expected := r3.Norm(r3.Sub(mic, p.Image))
		assert.InDelta(t, expected, p.Distance, testTolerance, "wall %d", wall)
		for band, a := range p.Attenuation {
			assert.InDelta(t, 1-testAbsorption, a, testTolerance, "wall %d band %d", wall, band)
		}
	}
}

func TestGenerate_SecondOrderAttenuation(t *testing.T) {
	room := testRoom(t)
	source := r3.Vec{X: 1, Y: 1, Z: 1.5}
	mic := r3.Vec{X: 4, Y: 3, Z: 1.5}

	paths := Generate(room, uniformMaterials(room, testAbsorption), source, mic, 2, 0)

	refl := 1 - testAbsorption
	for _, p := range paths {
		expected := math.Pow(refl, float64(p.Order))
		for band, a := range p.Attenuation {
			assert.InDelta(t, expected, a, testTolerance,
				"order %d walls %v band %d", p.Order, p.Walls, band)
		}
	}
}

func TestGenerate_SortedByDistance(t *testing.T) {
	room := testRoom(t)
	paths := Generate(room, uniformMaterials(room, testAbsorption),
		r3.Vec{X: 1, Y: 1, Z: 1.5}, r3.Vec{X: 4, Y: 3, Z: 1.5}, 3, 0)

	require.NotEmpty(t, paths)
	assert.Equal(t, 0, paths[0].Order, "direct path is shortest")
	for i := 1; i < len(paths); i++ {
		assert.GreaterOrEqual(t, paths[i].Distance, paths[i-1].Distance)
	}
}

func TestGenerate_FullAbsorptionPrunesReflections(t *testing.T) {
	room := testRoom(t)
	paths := Generate(room, uniformMaterials(room, 1.0),
		r3.Vec{X: 1, Y: 1, Z: 1.5}, r3.Vec{X: 4, Y: 3, Z: 1.5}, 3, 0)

	// Fully absorptive walls leave only the direct path.
	require.Len(t, paths, 1)
	assert.Equal(t, 0, paths[0].Order)
}

func TestGenerate_ThresholdPrunesDeepOrders(t *testing.T) {
	room := testRoom(t)
	source := r3.Vec{X: 1, Y: 1, Z: 1.5}
	mic := r3.Vec{X: 4, Y: 3, Z: 1.5}

	// Reflection coefficient 0.1 per bounce: order 3 carries 1e-3.
	materials := uniformMaterials(room, 0.9)

	all := Generate(room, materials, source, mic, 3, 1e-9)
	pruned := Generate(room, materials, source, mic, 3, 2e-2)

	assert.Greater(t, len(all), len(pruned))
	for _, p := range pruned {
		assert.LessOrEqual(t, p.Order, 1, "only direct and first-order survive a 2e-2 threshold")
	}
}

func TestGenerate_NoSameWallTwiceInARow(t *testing.T) {
	room := testRoom(t)
	paths := Generate(room, uniformMaterials(room, testAbsorption),
		r3.Vec{X: 1, Y: 1, Z: 1.5}, r3.Vec{X: 4, Y: 3, Z: 1.5}, 3, 0)

	for _, p := range paths {
		for i := 1; i < len(p.Walls); i++ {
			assert.NotEqual(t, p.Walls[i-1], p.Walls[i],
				"consecutive reflections off wall %d in %v", p.Walls[i], p.Walls)
		}
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	room := testRoom(t)
	source := r3.Vec{X: 1.2, Y: 2.3, Z: 0.9}
	mic := r3.Vec{X: 3.7, Y: 1.1, Z: 2.1}
	materials := uniformMaterials(room, testAbsorption)

	a := Generate(room, materials, source, mic, 3, 0)
	b := Generate(room, materials, source, mic, 3, 0)

	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i], b[i])
	}
}

func TestMaxDistance(t *testing.T) {
	assert.Zero(t, MaxDistance(nil))

	paths := []Path{{Distance: 2}, {Distance: 7}, {Distance: 3}}
	assert.InDelta(t, 7.0, MaxDistance(paths), testTolerance)
}

func TestPeakAttenuation(t *testing.T) {
	assert.Zero(t, PeakAttenuation(nil))

	paths := []Path{
		{Attenuation: [material.NumBands]float64{0.1, 0.2, 0.3, 0.1, 0.1, 0.1}},
		{Attenuation: [material.NumBands]float64{0.5, 0.1, 0.1, 0.1, 0.1, 0.1}},
	}
	assert.InDelta(t, 0.5, PeakAttenuation(paths), testTolerance)
}
