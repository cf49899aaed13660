package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"gonum.org/v1/gonum/spatial/r3"

	roomsim "github.com/tphakala/go-room-acoustics"
)

const (
	bitsPerSample16 = 16
	bitsPerSample24 = 24
	bitsPerSample32 = 32

	maxInt16 = 32767.0
	maxInt24 = 8388607.0
	maxInt32 = 2147483647.0
)

// readWAVChannels decodes a WAV file into per-channel normalized float64
// samples in [-1, 1].
func readWAVChannels(path string) ([][]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open input file: %w", err)
	}
	defer func() { _ = f.Close() }()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, 0, fmt.Errorf("invalid WAV file: %s", path)
	}

	var buf *audio.IntBuffer
	buf, err = decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	numChannels := buf.Format.NumChannels
	if numChannels < 1 {
		return nil, 0, fmt.Errorf("no channels in %s", path)
	}

	var maxVal float64
	switch int(decoder.BitDepth) {
	case bitsPerSample24:
		maxVal = maxInt24
	case bitsPerSample32:
		maxVal = maxInt32
	default:
		maxVal = maxInt16
	}

	frames := len(buf.Data) / numChannels
	channels := make([][]float64, numChannels)
	for ch := range numChannels {
		channels[ch] = make([]float64, frames)
	}
	for i := range frames {
		base := i * numChannels
		for ch := range numChannels {
			channels[ch][i] = float64(buf.Data[base+ch]) / maxVal
		}
	}

	return channels, buf.Format.SampleRate, nil
}

// sceneFile mirrors the room-render scene schema; only geometry,
// materials and positions matter for RT60 estimation.
type sceneFile struct {
	Vertices    [][2]float64  `json:"vertices"`
	Height      float64       `json:"height"`
	Material    string        `json:"material,omitempty"`
	Materials   []string      `json:"materials,omitempty"`
	Sources     []sceneSource `json:"sources"`
	Microphones [][3]float64  `json:"microphones"`
}

type sceneSource struct {
	Position [3]float64 `json:"position"`
	Gain     float64    `json:"gain,omitempty"`
}

func loadScene(path string) (*sceneFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scene file: %w", err)
	}

	var scene sceneFile
	if err := json.Unmarshal(data, &scene); err != nil {
		return nil, fmt.Errorf("failed to parse scene file %s: %w", path, err)
	}
	return &scene, nil
}

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
