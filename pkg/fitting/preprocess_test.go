package fitting

import (
	"errors"
	"math"
	"testing"

	"filmfit/internal/models"
)

func samplesFrom(angles, currents []float64) []models.Sample {
	out := make([]models.Sample, len(angles))
	for i := range angles {
		out[i] = models.Sample{Angle: angles[i], Current: currents[i]}
	}
	return out
}

// TestPreprocessDefault verifies trimming, radians and peak normalization
func TestPreprocessDefault(t *testing.T) {
	samples := samplesFrom(
		[]float64{-10, 0, 10, 20, 30, 40},
		[]float64{9, 4, 8, 2, 7, 7},
	)
	curve, err := Preprocess(samples, DefaultPreprocessing())
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}

	wantAngles := []float64{0, 10 * math.Pi / 180, 20 * math.Pi / 180}
	wantValues := []float64{0.5, 1, 0.25}
	if curve.Len() != 3 {
		t.Fatalf("Expected 3 samples after trimming, got %d", curve.Len())
	}
	for i := range wantAngles {
		if math.Abs(curve.Angles[i]-wantAngles[i]) > 1e-12 {
			t.Errorf("Angle %d: expected %g, got %g", i, wantAngles[i], curve.Angles[i])
		}
		if math.Abs(curve.Values[i]-wantValues[i]) > 1e-12 {
			t.Errorf("Value %d: expected %g, got %g", i, wantValues[i], curve.Values[i])
		}
	}
	if samples[1].Current != 4 || samples[1].Angle != 0 {
		t.Error("Preprocess modified its input")
	}
}

// TestPreprocessBaseline verifies subtraction of the first/last mean
func TestPreprocessBaseline(t *testing.T) {
	samples := samplesFrom(
		[]float64{0, 5, 10, 15, 20, 25},
		[]float64{1, 5, 9, 3, 0, 3},
	)
	opts := DefaultPreprocessing()
	opts.SubtractBaseline = true

	curve, err := Preprocess(samples, opts)
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}
	// baseline (1+3)/2 = 2 leaves 3, 7, 1 normalized by 7
	want := []float64{3.0 / 7, 1, 1.0 / 7}
	for i := range want {
		if math.Abs(curve.Values[i]-want[i]) > 1e-12 {
			t.Errorf("Value %d: expected %g, got %g", i, want[i], curve.Values[i])
		}
	}
}

// TestPreprocessInsufficientData verifies the minimum sample requirements
func TestPreprocessInsufficientData(t *testing.T) {
	tests := []struct {
		name    string
		samples []models.Sample
		opts    Preprocessing
	}{
		{"empty", nil, DefaultPreprocessing()},
		{"four samples", samplesFrom([]float64{0, 1, 2, 3}, []float64{1, 2, 3, 4}), DefaultPreprocessing()},
		{"three samples", samplesFrom([]float64{0, 10, 20}, []float64{1, 0.95, 0.8}), DefaultPreprocessing()},
		{"single sample untrimmed", samplesFrom([]float64{0}, []float64{1}), Preprocessing{}},
		{"negative trim", samplesFrom([]float64{0, 1, 2}, []float64{1, 2, 3}), Preprocessing{TrimLeading: -1}},
		{"no signal", samplesFrom([]float64{0, 1, 2}, []float64{0, 0, 0}), Preprocessing{}},
		{"negative signal", samplesFrom([]float64{0, 1, 2}, []float64{-1, -2, -3}), Preprocessing{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Preprocess(tt.samples, tt.opts); !errors.Is(err, ErrInsufficientData) {
				t.Errorf("Expected ErrInsufficientData, got %v", err)
			}
		})
	}
}

// TestCurveFromDegrees verifies untrimmed curve construction
func TestCurveFromDegrees(t *testing.T) {
	curve, err := CurveFromDegrees([]float64{0, 10, 20}, []float64{2, 1.9, 1.6})
	if err != nil {
		t.Fatalf("CurveFromDegrees failed: %v", err)
	}
	if curve.Len() != 3 || curve.Values[0] != 1 || math.Abs(curve.Values[2]-0.8) > 1e-12 {
		t.Errorf("Unexpected curve: %+v", curve)
	}
	deg := curve.Degrees()
	if math.Abs(deg[1]-10) > 1e-12 {
		t.Errorf("Expected 10 degrees back, got %g", deg[1])
	}

	if _, err := CurveFromDegrees([]float64{0, 1}, []float64{1}); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("Expected ErrInsufficientData for ragged input, got %v", err)
	}
}
