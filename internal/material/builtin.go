package material

// flat returns an absorption vector with the same coefficient in every band.
func flat(a float64) [NumBands]float64 {
	return [NumBands]float64{a, a, a, a, a, a}
}

// builtinMaterials lists common architectural finishes with octave-band
// absorption (125 Hz - 4 kHz) drawn from standard published tables,
// rounded to two digits.
var builtinMaterials = []Material{
	{Name: "hard_surface", Absorption: flat(0.02), Scattering: 0.05},
	{Name: "brick", Absorption: [NumBands]float64{0.02, 0.02, 0.03, 0.04, 0.05, 0.07}, Scattering: 0.10},
	{Name: "concrete", Absorption: [NumBands]float64{0.01, 0.01, 0.02, 0.02, 0.02, 0.03}, Scattering: 0.05},
	{Name: "plaster", Absorption: [NumBands]float64{0.14, 0.10, 0.06, 0.05, 0.04, 0.03}, Scattering: 0.05},
	{Name: "glass", Absorption: [NumBands]float64{0.35, 0.25, 0.18, 0.12, 0.07, 0.04}, Scattering: 0.05},
	{Name: "wood_panel", Absorption: [NumBands]float64{0.30, 0.25, 0.20, 0.17, 0.15, 0.10}, Scattering: 0.10},
	{Name: "parquet", Absorption: [NumBands]float64{0.04, 0.04, 0.07, 0.06, 0.06, 0.07}, Scattering: 0.10},
	{Name: "carpet", Absorption: [NumBands]float64{0.08, 0.24, 0.57, 0.69, 0.71, 0.73}, Scattering: 0.20},
	{Name: "curtains", Absorption: [NumBands]float64{0.07, 0.31, 0.49, 0.75, 0.70, 0.60}, Scattering: 0.30},
	{Name: "acoustic_tile", Absorption: [NumBands]float64{0.50, 0.70, 0.60, 0.70, 0.70, 0.50}, Scattering: 0.15},
	{Name: "audience", Absorption: [NumBands]float64{0.52, 0.64, 0.75, 0.80, 0.82, 0.83}, Scattering: 0.50},
	{Name: "anechoic", Absorption: flat(1.0), Scattering: 0.0},
}

// BuiltinTable returns the default material table. The table is rebuilt on
// every call so callers can never mutate shared state.
func BuiltinTable() *Table {
	t, err := NewTable(builtinMaterials)
	if err != nil {
		// The builtin data is validated by tests; a failure here is a
		// programming error, not an input error.
		panic(err)
	}
	return t
}
