package roomsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	testWidth  = 5.0
	testLength = 4.0
	testHeight = 3.0

	roomTolerance = 1e-9
)

func testShoebox(t *testing.T) *Room {
	t.Helper()
	room, err := NewShoeboxRoom(testWidth, testLength, testHeight, "wood_panel")
	require.NoError(t, err)
	return room
}

func TestNewRoom(t *testing.T) {
	room, err := NewRoom([]Vertex{
		{0, 0}, {testWidth, 0}, {testWidth, testLength}, {0, testLength},
	}, testHeight)
	require.NoError(t, err)

	assert.Equal(t, 6, room.NumWalls())
	assert.InDelta(t, testHeight, room.Height(), roomTolerance)
	assert.InDelta(t, testWidth*testLength*testHeight, room.Volume(), roomTolerance)
}

func TestNewRoom_InvalidGeometry(t *testing.T) {
	tests := []struct {
		name     string
		vertices []Vertex
		height   float64
	}{
		{"two_vertices", []Vertex{{0, 0}, {1, 0}}, 3},
		{"zero_height", []Vertex{{0, 0}, {1, 0}, {1, 1}}, 0},
		{"self_intersecting", []Vertex{{0, 0}, {2, 2}, {2, 0}, {0, 2}}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRoom(tt.vertices, tt.height)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidGeometry)
		})
	}
}

func TestNewShoeboxRoom_InvalidDimensions(t *testing.T) {
	_, err := NewShoeboxRoom(0, 4, 3, "brick")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}

func TestNewShoeboxRoom_UnknownMaterial(t *testing.T) {
	_, err := NewShoeboxRoom(5, 4, 3, "velvet")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownMaterial)
}

func TestAssignMaterials(t *testing.T) {
	room, err := NewRoom([]Vertex{
		{0, 0}, {testWidth, 0}, {testWidth, testLength}, {0, testLength},
	}, testHeight)
	require.NoError(t, err)

	err = room.AssignMaterials([]string{
		"brick", "glass", "brick", "curtains", "carpet", "acoustic_tile",
	})
	require.NoError(t, err)

	m, err := room.WallMaterial(1)
	require.NoError(t, err)
	assert.Equal(t, "glass", m.Name)

	floor, err := room.WallMaterial(4)
	require.NoError(t, err)
	assert.Equal(t, "carpet", floor.Name)
}

func TestAssignMaterials_CountMismatch(t *testing.T) {
	room, err := NewRoom([]Vertex{
		{0, 0}, {testWidth, 0}, {testWidth, testLength}, {0, testLength},
	}, testHeight)
	require.NoError(t, err)

	err = room.AssignMaterials([]string{"brick", "brick"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMaterialCountMismatch)
}

func TestAssignMaterials_UnknownName(t *testing.T) {
	room, err := NewRoom([]Vertex{
		{0, 0}, {testWidth, 0}, {testWidth, testLength}, {0, testLength},
	}, testHeight)
	require.NoError(t, err)

	err = room.AssignMaterials([]string{
		"brick", "velvet", "brick", "brick", "carpet", "carpet",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownMaterial)
}

func TestAddSource_Bounds(t *testing.T) {
	room := testShoebox(t)

	assert.NoError(t, room.AddSource(Source{Position: r3.Vec{X: 1, Y: 1, Z: 1.5}}))
	assert.Equal(t, 1, room.NumSources())

	err := room.AddSource(Source{Position: r3.Vec{X: 10, Y: 1, Z: 1.5}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOutOfBounds)
	assert.Equal(t, 1, room.NumSources(), "rejected source is not added")

	// On a wall counts as outside.
	err = room.AddSource(Source{Position: r3.Vec{X: 0, Y: 1, Z: 1.5}})
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestAddMicrophone_Bounds(t *testing.T) {
	room := testShoebox(t)

	assert.NoError(t, room.AddMicrophone(r3.Vec{X: 4, Y: 3, Z: 1.5}))
	err := room.AddMicrophone(r3.Vec{X: 4, Y: 3, Z: -1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOutOfBounds)
	assert.Equal(t, 1, room.NumMicrophones())
}

func TestAddMicrophoneArray_Atomic(t *testing.T) {
	room := testShoebox(t)

	err := room.AddMicrophoneArray([]r3.Vec{
		{X: 1, Y: 1, Z: 1},
		{X: 99, Y: 1, Z: 1},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOutOfBounds)
	assert.Zero(t, room.NumMicrophones(), "partial arrays are not placed")

	require.NoError(t, room.AddMicrophoneArray([]r3.Vec{
		{X: 1, Y: 1, Z: 1},
		{X: 2, Y: 2, Z: 2},
	}))
	assert.Equal(t, 2, room.NumMicrophones())
}

func TestSabineRT60(t *testing.T) {
	// hard_surface (absorption 0.02) gives a much livelier room than
	// audience seating.
	live, err := NewShoeboxRoom(testWidth, testLength, testHeight, "hard_surface")
	require.NoError(t, err)
	dead, err := NewShoeboxRoom(testWidth, testLength, testHeight, "audience")
	require.NoError(t, err)

	assert.Greater(t, live.SabineRT60(), dead.SabineRT60())
	assert.Positive(t, dead.SabineRT60())

	// Unassigned rooms have no estimate.
	bare, err := NewRoom([]Vertex{
		{0, 0}, {testWidth, 0}, {testWidth, testLength}, {0, testLength},
	}, testHeight)
	require.NoError(t, err)
	assert.Zero(t, bare.SabineRT60())
}

func TestSabineRT60_MatchesFormula(t *testing.T) {
	room, err := NewShoeboxRoom(testWidth, testLength, testHeight, "hard_surface")
	require.NoError(t, err)

	volume := testWidth * testLength * testHeight
	surface := 2 * (testWidth*testLength + testWidth*testHeight + testLength*testHeight)
	expected := sabineConstant * volume / (surface * 0.02)

	assert.InDelta(t, expected, room.SabineRT60(), 1e-9)
}

func TestMaterialTable(t *testing.T) {
	table := BuiltinMaterials()
	assert.NotEmpty(t, table.Names())

	m, err := table.Lookup("carpet")
	require.NoError(t, err)
	assert.Equal(t, "carpet", m.Name)

	_, err = table.Lookup("nope")
	assert.ErrorIs(t, err, ErrUnknownMaterial)
}

func TestNewMaterialTable_Custom(t *testing.T) {
	table, err := NewMaterialTable([]Material{
		{Name: "synthetic", Absorption: [NumBands]float64{0.1, 0.1, 0.1, 0.1, 0.1, 0.1}, Scattering: 0.2},
	})
	require.NoError(t, err)

	room, err := NewRoomWithTable([]Vertex{
		{0, 0}, {testWidth, 0}, {testWidth, testLength}, {0, testLength},
	}, testHeight, table)
	require.NoError(t, err)

	assert.NoError(t, room.AssignUniformMaterial("synthetic"))
	assert.ErrorIs(t, room.AssignUniformMaterial("brick"), ErrUnknownMaterial)
}

func TestNewMaterialTable_InvalidCoefficient(t *testing.T) {
	_, err := NewMaterialTable([]Material{
		{Name: "bad", Absorption: [NumBands]float64{2, 0, 0, 0, 0, 0}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidCoefficient)
}

func TestBandCenters(t *testing.T) {
	centers := BandCenters()
	require.Len(t, centers, NumBands)
	assert.InDelta(t, 125.0, centers[0], 1e-12)
	assert.InDelta(t, 4000.0, centers[NumBands-1], 1e-12)
	for i := 1; i < len(centers); i++ {
		assert.InDelta(t, 2.0, centers[i]/centers[i-1], 1e-12, "octave spacing")
	}
}
