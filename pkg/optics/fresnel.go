// Package optics implements the optical model of an ambient / thin layer /
// substrate stack: Fresnel coefficients at a single planar interface and the
// Airy multiple-beam transmission through the layer.
//
// All angles are in radians. Indices are real; intermediate quantities are
// complex because of the phase accumulated inside the layer. Degenerate
// configurations (grazing incidence, Snell's law outside the arcsine domain)
// are not special-cased and surface as NaN or Inf in the results.
package optics

import (
	"math"
	"math/cmplx"
)

// Coefficients holds the amplitude reflection and transmission coefficients
// of one interface for s (perpendicular) and p (parallel) polarization.
type Coefficients struct {
	Rs, Rp complex128
	Ts, Tp complex128
}

// Power holds intensity reflectance and transmittance of one interface.
type Power struct {
	Rs, Rp float64
	Ts, Tp float64
}

// Snell returns the refraction angle for a ray going from index nFrom to nTo
// at incidence angle theta. The result is NaN when nFrom·sin(theta)/nTo lies
// outside [-1, 1] (total internal reflection is not modeled).
func Snell(nFrom, nTo, theta float64) float64 {
	return math.Asin(nFrom * math.Sin(theta) / nTo)
}

// Fresnel computes the amplitude coefficients at the interface from medium
// nFrom to medium nTo, with thetaFrom the incidence angle and thetaTo the
// refraction angle.
func Fresnel(nFrom, nTo, thetaFrom, thetaTo float64) Coefficients {
	c1 := complex(math.Cos(thetaFrom), 0)
	c2 := complex(math.Cos(thetaTo), 0)
	n1 := complex(nFrom, 0)
	n2 := complex(nTo, 0)

	sDen := n1*c1 + n2*c2
	pDen := n2*c1 + n1*c2

	return Coefficients{
		Rs: (n1*c1 - n2*c2) / sDen,
		Rp: (n2*c1 - n1*c2) / pDen,
		Ts: 2 * n1 * c1 / sDen,
		Tp: 2 * n1 * c1 / pDen,
	}
}

// FresnelAll evaluates Fresnel element-wise over co-indexed angle slices.
func FresnelAll(nFrom, nTo float64, thetaFrom, thetaTo []float64) []Coefficients {
	if len(thetaFrom) != len(thetaTo) {
		panic("optics: angle slices have different lengths")
	}
	out := make([]Coefficients, len(thetaFrom))
	for i := range thetaFrom {
		out[i] = Fresnel(nFrom, nTo, thetaFrom[i], thetaTo[i])
	}
	return out
}

// Power converts amplitude coefficients into reflectance and transmittance.
// Transmittance carries the n·cos(theta) ratio between the two media so that
// R + T = 1 for a lossless interface.
func (c Coefficients) Power(nFrom, nTo, thetaFrom, thetaTo float64) Power {
	ratio := (nTo * math.Cos(thetaTo)) / (nFrom * math.Cos(thetaFrom))
	return Power{
		Rs: sqAbs(c.Rs),
		Rp: sqAbs(c.Rp),
		Ts: ratio * sqAbs(c.Ts),
		Tp: ratio * sqAbs(c.Tp),
	}
}

func sqAbs(z complex128) float64 {
	a := cmplx.Abs(z)
	return a * a
}
