// Package fitting estimates layer thickness by grid search. A measured angular
// transmission curve is compared with the thin-film model over a grid of
// candidate thicknesses (and optionally wavelengths); the sum of squared
// residuals at every grid point forms an error surface whose row minima are
// the best fits.
package fitting

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/floats"

	"filmfit/internal/models"
	"filmfit/pkg/material"
	"filmfit/pkg/optics"
)

var (
	// ErrInsufficientData is returned when a curve has too few usable samples
	// or its wavelength is not positive.
	ErrInsufficientData = errors.New("fitting: insufficient data")

	// ErrInvalidGrid is returned for empty or malformed thickness and
	// wavelength grids.
	ErrInvalidGrid = errors.New("fitting: invalid grid")
)

// chunkSize is the number of thickness columns handed to a worker at once
const chunkSize = 256

// IndexProvider looks up the refractive index of a material at a wavelength
// in microns. *material.Provider satisfies it.
type IndexProvider interface {
	IndexAt(name string, wavelength float64) (float64, error)
}

// ProgressCallback receives the number of completed and total grid cells
type ProgressCallback func(completed, total int)

// Params configures a Fitter.
type Params struct {
	// Layer is the material of the thin film
	Layer string

	// Substrate is the material under the film
	Substrate string

	// AmbientIndex is the index of the incidence medium, 1.0 for vacuum or air
	AmbientIndex float64

	// NumWorkers is the number of goroutines used for the sweep
	NumWorkers int
}

// DefaultParams returns quartz on silicon in vacuum using all CPU cores.
func DefaultParams() Params {
	return Params{
		Layer:        material.Quartz,
		Substrate:    material.Silicon,
		AmbientIndex: 1.0,
		NumWorkers:   runtime.NumCPU(),
	}
}

// Job is one row of a sweep: a preprocessed curve and the wavelength (microns)
// at which it is modeled.
type Job struct {
	Wavelength float64
	Curve      models.Curve
}

// Fitter evaluates error surfaces for a fixed optical configuration.
type Fitter struct {
	provider IndexProvider
	params   Params
	progress ProgressCallback
}

// NewFitter creates a fitter. Zero-valued fields of params fall back to
// DefaultParams.
func NewFitter(provider IndexProvider, params Params) *Fitter {
	def := DefaultParams()
	if params.Layer == "" {
		params.Layer = def.Layer
	}
	if params.Substrate == "" {
		params.Substrate = def.Substrate
	}
	if params.AmbientIndex == 0 {
		params.AmbientIndex = def.AmbientIndex
	}
	if params.NumWorkers < 1 {
		params.NumWorkers = def.NumWorkers
	}
	return &Fitter{provider: provider, params: params}
}

// SetProgressCallback sets a function called as grid cells complete.
// Calls come from a single goroutine.
func (f *Fitter) SetProgressCallback(callback ProgressCallback) {
	f.progress = callback
}

// Params returns the fitter configuration after defaults were applied
func (f *Fitter) Params() Params {
	return f.params
}

// ErrorCurve returns the squared error of curve against the model at each
// thickness, for a single wavelength.
func (f *Fitter) ErrorCurve(curve models.Curve, wavelength float64, thicknesses []float64) ([]float64, error) {
	s, err := f.Sweep([]Job{{Wavelength: wavelength, Curve: curve}}, thicknesses)
	if err != nil {
		return nil, err
	}
	return s.Row(0), nil
}

// WavelengthSweep crosses one curve with a list of candidate wavelengths.
func (f *Fitter) WavelengthSweep(curve models.Curve, wavelengths, thicknesses []float64) (*ErrorSurface, error) {
	if len(wavelengths) == 0 {
		return nil, fmt.Errorf("%w: wavelength list is empty", ErrInvalidGrid)
	}
	jobs := make([]Job, len(wavelengths))
	for i, wl := range wavelengths {
		jobs[i] = Job{Wavelength: wl, Curve: curve}
	}
	return f.Sweep(jobs, thicknesses)
}

// row holds everything a worker needs for one wavelength
type row struct {
	n2, n3 float64
	k0     float64
	curve  models.Curve
}

// Sweep evaluates the error surface with one row per job and one column per
// thickness. Every cell is computed independently and written to its own
// position, so the result does not depend on the number of workers.
func (f *Fitter) Sweep(jobs []Job, thicknesses []float64) (*ErrorSurface, error) {
	if err := validateGrid(thicknesses); err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("%w: no wavelengths to sweep", ErrInvalidGrid)
	}

	// Resolve indices before any worker starts; workers only read rows.
	rows := make([]row, len(jobs))
	wavelengths := make([]float64, len(jobs))
	for i, job := range jobs {
		r, err := f.prepareRow(job)
		if err != nil {
			return nil, err
		}
		rows[i] = r
		wavelengths[i] = job.Wavelength
	}

	surface := newErrorSurface(wavelengths, thicknesses)
	cols := len(thicknesses)

	type task struct {
		row, start, end int
	}
	tasks := make(chan task)
	done := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < f.params.NumWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				out := surface.values.RawRowView(t.row)
				for j := t.start; j < t.end; j++ {
					out[j] = f.cellError(rows[t.row], thicknesses[j])
				}
				done <- t.end - t.start
			}
		}()
	}

	go func() {
		for i := range rows {
			for start := 0; start < cols; start += chunkSize {
				tasks <- task{row: i, start: start, end: min(start+chunkSize, cols)}
			}
		}
		close(tasks)
		wg.Wait()
		close(done)
	}()

	total := len(rows) * cols
	completed := 0
	for n := range done {
		completed += n
		if f.progress != nil {
			f.progress(completed, total)
		}
	}

	return surface, nil
}

// Predict returns the model transmittance at the curve angles for the given
// wavelength and thickness, normalized to its maximum.
func (f *Fitter) Predict(curve models.Curve, wavelength, thickness float64) ([]float64, error) {
	r, err := f.prepareRow(Job{Wavelength: wavelength, Curve: curve})
	if err != nil {
		return nil, err
	}
	return f.predict(r, thickness), nil
}

func (f *Fitter) prepareRow(job Job) (row, error) {
	wl := job.Wavelength
	if !(wl > 0) || math.IsInf(wl, 0) {
		return row{}, fmt.Errorf("%w: wavelength %g um", ErrInsufficientData, wl)
	}
	if job.Curve.Len() < 2 {
		return row{}, fmt.Errorf("%w: curve at %g um has %d samples", ErrInsufficientData, wl, job.Curve.Len())
	}
	if len(job.Curve.Values) != job.Curve.Len() {
		return row{}, fmt.Errorf("%w: curve at %g um has %d angles but %d values",
			ErrInsufficientData, wl, job.Curve.Len(), len(job.Curve.Values))
	}

	n2, err := f.provider.IndexAt(f.params.Layer, wl)
	if err != nil {
		return row{}, fmt.Errorf("layer index at %g um: %w", wl, err)
	}
	n3, err := f.provider.IndexAt(f.params.Substrate, wl)
	if err != nil {
		return row{}, fmt.Errorf("substrate index at %g um: %w", wl, err)
	}
	return row{n2: n2, n3: n3, k0: optics.Wavenumber(wl), curve: job.Curve}, nil
}

func (f *Fitter) predict(r row, d float64) []float64 {
	_, _, tavg := optics.Transmission(f.params.AmbientIndex, r.n2, r.n3, r.curve.Angles, r.k0, d)
	floats.Scale(1/floats.Max(tavg), tavg)
	return tavg
}

// cellError is the sum of squared residuals between the measured curve and
// the normalized model. NaN in the model propagates into the result.
func (f *Fitter) cellError(r row, d float64) float64 {
	predicted := f.predict(r, d)
	floats.Sub(predicted, r.curve.Values)
	return floats.Dot(predicted, predicted)
}

// LinearGrid returns n evenly spaced values from min to max inclusive.
func LinearGrid(min, max float64, n int) ([]float64, error) {
	switch {
	case n < 1:
		return nil, fmt.Errorf("%w: %d grid points", ErrInvalidGrid, n)
	case math.IsNaN(min) || math.IsNaN(max) || math.IsInf(min, 0) || math.IsInf(max, 0):
		return nil, fmt.Errorf("%w: bounds [%g, %g] are not finite", ErrInvalidGrid, min, max)
	case max < min:
		return nil, fmt.Errorf("%w: max %g below min %g", ErrInvalidGrid, max, min)
	case n == 1:
		return []float64{min}, nil
	}
	grid := floats.Span(make([]float64, n), min, max)
	grid[n-1] = max
	return grid, nil
}

func validateGrid(thicknesses []float64) error {
	if len(thicknesses) == 0 {
		return fmt.Errorf("%w: thickness grid is empty", ErrInvalidGrid)
	}
	for i, d := range thicknesses {
		if !(d >= 0) || math.IsInf(d, 0) {
			return fmt.Errorf("%w: thickness %g at position %d", ErrInvalidGrid, d, i)
		}
	}
	return nil
}
