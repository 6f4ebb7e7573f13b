package optics

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/floats"
)

// ErrInvalidStack is returned by NewStack for physically meaningless parameters.
var ErrInvalidStack = errors.New("optics: invalid optical stack")

// Wavenumber returns the free-space wavenumber 2π/wavelength. The result is in
// inverse units of the wavelength.
func Wavenumber(wavelength float64) float64 {
	return 2 * math.Pi / wavelength
}

// ThicknessPeriod returns the layer thickness over which the transmittance at
// incidence angle theta1 repeats: wavelength / (2·n2·cos(theta2)).
func ThicknessPeriod(n1, n2, theta1, wavelength float64) float64 {
	theta2 := Snell(n1, n2, theta1)
	return wavelength / (2 * n2 * math.Cos(theta2))
}

// AngleSweep returns n evenly spaced incidence angles on [0, max].
func AngleSweep(n int, max float64) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{0}
	}
	out := floats.Span(make([]float64, n), 0, max)
	out[n-1] = max
	return out
}

// Transmittance is the power transmittance through the stack at one angle.
type Transmittance struct {
	P, S float64
	// Avg is the unpolarized transmittance (P+S)/2
	Avg float64
}

// Stack describes ambient (N1), layer (N2) and substrate (N3) media, the
// free-space wavenumber K0 and the layer thickness. K0 and Thickness must use
// reciprocal length units (e.g. 1/µm and µm).
type Stack struct {
	N1, N2, N3 float64
	K0         float64
	Thickness  float64
}

// NewStack validates and returns a stack for the given wavelength.
func NewStack(n1, n2, n3, wavelength, thickness float64) (*Stack, error) {
	switch {
	case !(n1 > 0):
		return nil, fmt.Errorf("%w: ambient index %g", ErrInvalidStack, n1)
	case !(n2 > 0):
		return nil, fmt.Errorf("%w: layer index %g", ErrInvalidStack, n2)
	case !(n3 > 0):
		return nil, fmt.Errorf("%w: substrate index %g", ErrInvalidStack, n3)
	case !(wavelength > 0) || math.IsInf(wavelength, 0):
		return nil, fmt.Errorf("%w: wavelength %g", ErrInvalidStack, wavelength)
	case !(thickness >= 0) || math.IsInf(thickness, 0):
		return nil, fmt.Errorf("%w: thickness %g", ErrInvalidStack, thickness)
	}
	return &Stack{N1: n1, N2: n2, N3: n3, K0: Wavenumber(wavelength), Thickness: thickness}, nil
}

// Transmittance evaluates the stack at a single incidence angle.
func (s *Stack) Transmittance(theta1 float64) Transmittance {
	return transmittance(s.N1, s.N2, s.N3, theta1, s.K0, s.Thickness)
}

// Transmission evaluates the stack at every angle of theta1.
func (s *Stack) Transmission(theta1 []float64) (tp, ts, tavg []float64) {
	return Transmission(s.N1, s.N2, s.N3, theta1, s.K0, s.Thickness)
}

// Transmission returns the p, s and unpolarized power transmittance through
// an ambient/layer/substrate stack, co-indexed with theta1.
//
// Each polarization uses the Airy sum over multiple reflections inside the
// layer,
//
//	t = t12·t23 / (1 + r12·r23·exp(i·delta)),  delta = 2·k0·n2·d·cos(theta2)
//
// and is converted to power with the n3·cos(theta3) / n1·cos(theta1) factor.
func Transmission(n1, n2, n3 float64, theta1 []float64, k0, d float64) (tp, ts, tavg []float64) {
	tp = make([]float64, len(theta1))
	ts = make([]float64, len(theta1))
	tavg = make([]float64, len(theta1))
	for i, th := range theta1 {
		t := transmittance(n1, n2, n3, th, k0, d)
		tp[i], ts[i], tavg[i] = t.P, t.S, t.Avg
	}
	return tp, ts, tavg
}

func transmittance(n1, n2, n3, theta1, k0, d float64) Transmittance {
	theta2 := Snell(n1, n2, theta1)
	theta3 := Snell(n1, n3, theta1)

	delta := 2 * k0 * n2 * d * math.Cos(theta2)
	phase := cmplx.Exp(complex(0, delta))

	c12 := Fresnel(n1, n2, theta1, theta2)
	c23 := Fresnel(n2, n3, theta2, theta3)

	tEffP := (c12.Tp * c23.Tp) / (1 + c12.Rp*c23.Rp*phase)
	tEffS := (c12.Ts * c23.Ts) / (1 + c12.Rs*c23.Rs*phase)

	ratio := (n3 * math.Cos(theta3)) / (n1 * math.Cos(theta1))
	p := ratio * sqAbs(tEffP)
	s := ratio * sqAbs(tEffS)

	return Transmittance{P: p, S: s, Avg: (p + s) / 2}
}
