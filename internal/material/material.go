// Package material defines frequency-dependent surface properties and the
// name-keyed lookup table used to assign them to walls.
//
// Absorption is specified per octave band on a fixed band grid; the
// scattering coefficient splits reflected energy between the specular and
// diffuse components in the ray tracer. Tables are immutable after
// construction and safe for concurrent readers; they are injected into the
// geometry builder rather than accessed through a package-level global so
// tests can supply synthetic tables.
package material

import (
	"errors"
	"fmt"
	"sort"
)

// NumBands is the number of octave bands carried by every material.
const NumBands = 6

// BandCenters lists the octave band center frequencies in Hz, ordered
// low to high. All per-band slices in this module follow this ordering.
var BandCenters = [NumBands]float64{125, 250, 500, 1000, 2000, 4000}

// Errors reported during lookup and assignment.
var (
	// ErrUnknownMaterial indicates a lookup by a name not in the table.
	ErrUnknownMaterial = errors.New("unknown material")

	// ErrInvalidCoefficient indicates an absorption or scattering value
	// outside [0, 1].
	ErrInvalidCoefficient = errors.New("invalid material coefficient")

	// ErrCountMismatch indicates a wall/material assignment that does not
	// cover every wall exactly once.
	ErrCountMismatch = errors.New("material count mismatch")
)

// Material holds the acoustic surface properties for one wall finish.
// Materials are shared by value across walls; they carry no identity
// beyond their name in the owning table.
type Material struct {
	Name string

	// Absorption holds the energy absorption coefficient per band, each
	// in [0, 1]. 0 is fully reflective, 1 fully absorptive.
	Absorption [NumBands]float64

	// Scattering is the fraction of reflected energy redirected diffusely
	// rather than specularly, in [0, 1].
	Scattering float64
}

// Validate checks every coefficient range eagerly so assignment failures
// name the offending band rather than surfacing mid-simulation.
func (m *Material) Validate() error {
	for band, a := range m.Absorption {
		if a < 0 || a > 1 {
			return fmt.Errorf("%w: material %q absorption[%d] = %v (must be in [0, 1])",
				ErrInvalidCoefficient, m.Name, band, a)
		}
	}

	if m.Scattering < 0 || m.Scattering > 1 {
		return fmt.Errorf("%w: material %q scattering = %v (must be in [0, 1])",
			ErrInvalidCoefficient, m.Name, m.Scattering)
	}

	return nil
}

// Reflection returns the per-band reflection coefficient 1 - absorption.
func (m *Material) Reflection() [NumBands]float64 {
	var r [NumBands]float64
	for band, a := range m.Absorption {
		r[band] = 1 - a
	}
	return r
}

// Table is an immutable name-to-material lookup.
type Table struct {
	byName map[string]Material
}

// NewTable builds a table from the given materials, validating every
// coefficient. Duplicate names are rejected so a typo cannot silently
// shadow an earlier entry.
func NewTable(materials []Material) (*Table, error) {
	byName := make(map[string]Material, len(materials))

	for _, m := range materials {
		if m.Name == "" {
			return nil, fmt.Errorf("%w: material with empty name", ErrInvalidCoefficient)
		}
		if _, dup := byName[m.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate material name %q", ErrInvalidCoefficient, m.Name)
		}
		if err := m.Validate(); err != nil {
			return nil, err
		}
		byName[m.Name] = m
	}

	return &Table{byName: byName}, nil
}

// Lookup returns the material registered under name.
func (t *Table) Lookup(name string) (Material, error) {
	m, ok := t.byName[name]
	if !ok {
		return Material{}, fmt.Errorf("%w: %q (known: %v)", ErrUnknownMaterial, name, t.Names())
	}
	return m, nil
}

// Names returns all registered material names in sorted order.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.byName))
	for name := range t.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered materials.
func (t *Table) Len() int { return len(t.byName) }

// Uniform builds a per-wall material slice assigning the same material to
// every one of wallCount walls.
func Uniform(m Material, wallCount int) []Material {
	ms := make([]Material, wallCount)
	for i := range ms {
		ms[i] = m
	}
	return ms
}

// CheckAssignment verifies that the assignment covers every wall exactly
// once and that every assigned material is valid.
func CheckAssignment(materials []Material, wallCount int) error {
	if len(materials) != wallCount {
		return fmt.Errorf("%w: %d materials assigned to %d walls (including floor and ceiling)",
			ErrCountMismatch, len(materials), wallCount)
	}

	for i := range materials {
		if err := materials[i].Validate(); err != nil {
			return fmt.Errorf("wall %d: %w", i, err)
		}
	}

	return nil
}
