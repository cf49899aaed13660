package main

import (
	"encoding/json"
	"fmt"
	"os"

	"gonum.org/v1/gonum/spatial/r3"

	roomsim "github.com/tphakala/go-room-acoustics"
)

// sceneFile is the JSON scene description.
//
// Walls are listed in floor-plan vertex order followed by floor and
// ceiling. Either "material" (uniform) or "materials" (one per wall)
// must be present.
type sceneFile struct {
	// Vertices are the floor polygon corners in meters, [x, y] pairs.
	Vertices [][2]float64 `json:"vertices"`

	// Height is the extrusion height in meters.
	Height float64 `json:"height"`

	// Material assigns one builtin material to every wall.
	Material string `json:"material,omitempty"`

	// Materials assigns one builtin material per wall: edge walls in
	// vertex order, then floor, then ceiling.
	Materials []string `json:"materials,omitempty"`

	// Sources are emitter positions, [x, y, z] in meters.
	Sources []sceneSource `json:"sources"`

	// Microphones are measurement positions, [x, y, z] in meters.
	Microphones [][3]float64 `json:"microphones"`
}

type sceneSource struct {
	Position [3]float64 `json:"position"`
	Gain     float64    `json:"gain,omitempty"`
}

// loadScene reads and parses a scene JSON file.
func loadScene(path string) (*sceneFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scene file: %w", err)
	}

	var scene sceneFile
	if err := json.Unmarshal(data, &scene); err != nil {
		return nil, fmt.Errorf("failed to parse scene file %s: %w", path, err)
	}

	if err := scene.validate(); err != nil {
		return nil, fmt.Errorf("scene file %s: %w", path, err)
	}
	return &scene, nil
}

func (s *sceneFile) validate() error {
	if len(s.Vertices) < 3 {
		return fmt.Errorf("need at least 3 vertices, got %d", len(s.Vertices))
	}
	if s.Material == "" && len(s.Materials) == 0 {
		return fmt.Errorf("either \"material\" or \"materials\" is required")
	}
	if s.Material != "" && len(s.Materials) > 0 {
		return fmt.Errorf("\"material\" and \"materials\" are mutually exclusive")
	}
	if len(s.Sources) == 0 {
		return fmt.Errorf("at least one source is required")
	}
	if len(s.Microphones) == 0 {
		return fmt.Errorf("at least one microphone is required")
	}
	return nil
}

// buildRoom turns a parsed scene into a simulatable room. signal, when
// non-nil, becomes every source's input for auralization.
func buildRoom(scene *sceneFile, signal []float64) (*roomsim.Room, error) {
	vertices := make([]roomsim.Vertex, len(scene.Vertices))
	for i, v := range scene.Vertices {
		vertices[i] = roomsim.Vertex{X: v[0], Y: v[1]}
	}

	room, err := roomsim.NewRoom(vertices, scene.Height)
	if err != nil {
		return nil, err
	}

	if scene.Material != "" {
		err = room.AssignUniformMaterial(scene.Material)
	} else {
		err = room.AssignMaterials(scene.Materials)
	}
	if err != nil {
		return nil, err
	}

	for _, src := range scene.Sources {
		err := room.AddSource(roomsim.Source{
			Position: r3.Vec{X: src.Position[0], Y: src.Position[1], Z: src.Position[2]},
			Signal:   signal,
			Gain:     src.Gain,
		})
		if err != nil {
			return nil, err
		}
	}

	for _, m := range scene.Microphones {
		if err := room.AddMicrophone(r3.Vec{X: m[0], Y: m[1], Z: m[2]}); err != nil {
			return nil, err
		}
	}

	return room, nil
}
