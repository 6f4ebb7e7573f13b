package models

import "math"

// Sample is a single raw reading from the rotating-beam detector
type Sample struct {
	// Angle is the incidence angle in degrees as recorded by the stage
	Angle float64

	// Current is the raw detector signal at that angle
	Current float64
}

// Measurement represents one measurement file with metadata
type Measurement struct {
	// Samples holds the readings in file order
	Samples []Sample

	// WavelengthNM is the illumination wavelength in nanometers
	WavelengthNM int

	// Source is the path of the file the samples were read from
	Source string
}

// WavelengthUM returns the measurement wavelength in microns, the unit used
// by the optical model and the index tables.
func (m Measurement) WavelengthUM() float64 {
	return float64(m.WavelengthNM) / 1000.0
}

// Curve is an angular transmission curve ready for comparison with the model.
// Angles and Values are co-indexed.
type Curve struct {
	// Angles holds incidence angles in radians
	Angles []float64

	// Values holds the normalized intensity at each angle
	Values []float64
}

// Len returns the number of samples in the curve
func (c Curve) Len() int {
	return len(c.Angles)
}

// Degrees returns the curve angles converted back to degrees, for reporting
func (c Curve) Degrees() []float64 {
	out := make([]float64, len(c.Angles))
	for i, a := range c.Angles {
		out[i] = a * 180 / math.Pi
	}
	return out
}
