package roomsim

import (
	"errors"

	"github.com/tphakala/go-room-acoustics/internal/analysis"
	"github.com/tphakala/go-room-acoustics/internal/geom"
	"github.com/tphakala/go-room-acoustics/internal/material"
	"github.com/tphakala/go-room-acoustics/internal/render"
)

// Sentinel errors returned by the package. All are wrapped with context
// naming the offending input; match with errors.Is.
var (
	// ErrInvalidConfig indicates out-of-range simulation parameters.
	ErrInvalidConfig = errors.New("invalid simulation configuration")

	// ErrInvalidGeometry indicates a malformed floor polygon or height.
	ErrInvalidGeometry = geom.ErrInvalidGeometry

	// ErrUnknownMaterial indicates a material name missing from the table.
	ErrUnknownMaterial = material.ErrUnknownMaterial

	// ErrInvalidCoefficient indicates an absorption or scattering value
	// outside [0, 1].
	ErrInvalidCoefficient = material.ErrInvalidCoefficient

	// ErrMaterialCountMismatch indicates an assignment that does not
	// cover every wall (including floor and ceiling) exactly once.
	ErrMaterialCountMismatch = material.ErrCountMismatch

	// ErrOutOfBounds indicates a source or microphone position outside
	// the room volume.
	ErrOutOfBounds = errors.New("position outside room")

	// ErrSceneIncomplete indicates a simulation attempted before
	// materials, sources and microphones were all supplied.
	ErrSceneIncomplete = errors.New("scene incomplete")

	// ErrInsufficientDecayRange indicates an impulse response too short
	// or too noisy for RT60 estimation.
	ErrInsufficientDecayRange = analysis.ErrInsufficientDecayRange

	// ErrClipping indicates unnormalized output exceeding full scale.
	ErrClipping = render.ErrClipping
)
