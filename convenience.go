package roomsim

import (
	"fmt"
)

// NewShoeboxRoom builds a rectangular width x length x height room with a
// single builtin material on every wall. Width runs along X, length along
// Y. It is the quickest way to a simulatable scene; non-rectangular floor
// plans go through NewRoom.
func NewShoeboxRoom(width, length, height float64, materialName string) (*Room, error) {
	if width <= 0 || length <= 0 {
		return nil, fmt.Errorf("%w: shoebox dimensions %v x %v must be positive",
			ErrInvalidGeometry, width, length)
	}

	room, err := NewRoom([]Vertex{
		{0, 0},
		{width, 0},
		{width, length},
		{0, length},
	}, height)
	if err != nil {
		return nil, err
	}

	if err := room.AssignUniformMaterial(materialName); err != nil {
		return nil, err
	}
	return room, nil
}
