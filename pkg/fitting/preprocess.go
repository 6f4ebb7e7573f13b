package fitting

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"filmfit/internal/models"
)

// Preprocessing controls how a raw measurement is turned into a curve.
type Preprocessing struct {
	// SubtractBaseline removes the mean of the first and last raw current
	// before trimming. One recorded procedure applies it and another does
	// not, so it stays opt-in.
	SubtractBaseline bool `yaml:"subtractBaseline"`

	// TrimLeading is the number of samples dropped from the start
	TrimLeading int `yaml:"trimLeading"`

	// TrimTrailing is the number of samples dropped from the end
	TrimTrailing int `yaml:"trimTrailing"`
}

// DefaultPreprocessing drops the first sample and the last two, which carry
// stage start/stop artifacts, and leaves the baseline untouched.
func DefaultPreprocessing() Preprocessing {
	return Preprocessing{
		SubtractBaseline: false,
		TrimLeading:      1,
		TrimTrailing:     2,
	}
}

// Preprocess converts raw samples into a normalized curve: optional baseline
// subtraction, edge trimming, degrees to radians, and division by the peak
// current. The input is not modified.
func Preprocess(samples []models.Sample, opts Preprocessing) (models.Curve, error) {
	if len(samples) == 0 {
		return models.Curve{}, fmt.Errorf("%w: measurement is empty", ErrInsufficientData)
	}
	if opts.TrimLeading < 0 || opts.TrimTrailing < 0 {
		return models.Curve{}, fmt.Errorf("%w: negative trim (%d, %d)", ErrInsufficientData, opts.TrimLeading, opts.TrimTrailing)
	}

	var baseline float64
	if opts.SubtractBaseline {
		baseline = stat.Mean([]float64{samples[0].Current, samples[len(samples)-1].Current}, nil)
	}

	end := len(samples) - opts.TrimTrailing
	if end-opts.TrimLeading < 2 {
		return models.Curve{}, fmt.Errorf("%w: %d samples leave %d after trimming %d+%d",
			ErrInsufficientData, len(samples), max(end-opts.TrimLeading, 0), opts.TrimLeading, opts.TrimTrailing)
	}
	kept := samples[opts.TrimLeading:end]

	curve := models.Curve{
		Angles: make([]float64, len(kept)),
		Values: make([]float64, len(kept)),
	}
	for i, s := range kept {
		curve.Angles[i] = s.Angle * math.Pi / 180
		curve.Values[i] = s.Current - baseline
	}

	peak := floats.Max(curve.Values)
	if !(peak > 0) || math.IsInf(peak, 0) {
		return models.Curve{}, fmt.Errorf("%w: peak current %g cannot be normalized", ErrInsufficientData, peak)
	}
	floats.Scale(1/peak, curve.Values)

	return curve, nil
}

// CurveFromDegrees builds an already-normalized curve from angles in degrees
// and intensities, without trimming. Values are divided by their maximum.
func CurveFromDegrees(anglesDeg, values []float64) (models.Curve, error) {
	samples := make([]models.Sample, len(anglesDeg))
	if len(values) != len(anglesDeg) {
		return models.Curve{}, fmt.Errorf("%w: %d angles but %d values", ErrInsufficientData, len(anglesDeg), len(values))
	}
	for i := range anglesDeg {
		samples[i] = models.Sample{Angle: anglesDeg[i], Current: values[i]}
	}
	return Preprocess(samples, Preprocessing{})
}
