// Package visualization renders error surfaces and transmission curves to
// image files and prints best-fit summaries. Output format follows the file
// extension (.png, .svg, .pdf, ...).
package visualization

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"text/tabwriter"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"filmfit/pkg/fitting"
)

// Default image size
const (
	DefaultWidth  = 12 * vg.Inch
	DefaultHeight = 8 * vg.Inch
)

// Viewer renders one error surface.
type Viewer struct {
	surface *fitting.ErrorSurface

	// width and height of saved images
	width  vg.Length
	height vg.Length
}

// NewViewer creates a viewer for surface with the default image size
func NewViewer(surface *fitting.ErrorSurface) *Viewer {
	return &Viewer{
		surface: surface,
		width:   DefaultWidth,
		height:  DefaultHeight,
	}
}

// SetSize changes the size of saved images
func (v *Viewer) SetSize(width, height vg.Length) {
	v.width = width
	v.height = height
}

// SaveHeatmap saves the wavelength × thickness surface as a heat map, hot
// colors for large errors. NaN cells are drawn black.
func (v *Viewer) SaveHeatmap(filename string) error {
	g, err := v.grid()
	if err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = "Error Squared: Wavelength vs Thickness"
	p.X.Label.Text = "Thickness (µm)"
	p.Y.Label.Text = "Wavelength (nm)"

	hm := plotter.NewHeatMap(g, palette.Heat(64, 1))
	hm.Min, hm.Max = g.Min(), g.Max()
	if hm.Max == hm.Min {
		// a flat surface still needs a non-empty color scale
		hm.Max = hm.Min + 1
	}
	hm.NaN = color.Black
	hm.Underflow = color.Black
	hm.Overflow = color.White
	p.Add(hm)

	return p.Save(v.width, v.height, filename)
}

// SaveContour saves the surface as contour lines at the given number of
// evenly spaced error levels.
func (v *Viewer) SaveContour(filename string, levels int) error {
	if levels < 1 {
		return fmt.Errorf("contour needs at least one level, got %d", levels)
	}
	g, err := v.grid()
	if err != nil {
		return err
	}

	lo, hi := g.Min(), g.Max()
	heights := make([]float64, levels)
	for i := range heights {
		heights[i] = lo + (hi-lo)*float64(i+1)/float64(levels+1)
	}

	p := plot.New()
	p.Title.Text = "Error Squared Contours: Wavelength vs Thickness"
	p.X.Label.Text = "Thickness (µm)"
	p.Y.Label.Text = "Wavelength (nm)"
	p.Add(plotter.NewContour(g, heights, palette.Heat(levels, 1)))

	return p.Save(v.width, v.height, filename)
}

// SaveErrorCurve saves the error against thickness for one wavelength row and
// marks its minimum. NaN cells are left out of the line.
func (v *Viewer) SaveErrorCurve(row int, filename string) error {
	rows, _ := v.surface.Dims()
	if row < 0 || row >= rows {
		return fmt.Errorf("row %d outside surface with %d rows", row, rows)
	}

	pts := finiteXYs(v.surface.Thicknesses(), v.surface.Row(row))
	if len(pts) == 0 {
		return fmt.Errorf("row %d has no finite errors to plot", row)
	}
	fit := v.surface.BestFit(row)

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Squared error at %.0f nm", fit.Wavelength*1000)
	p.X.Label.Text = "Thickness (µm)"
	p.Y.Label.Text = "Error Squared"
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("error creating error curve: %w", err)
	}
	p.Add(line)

	if fit.Index >= 0 {
		best, err := plotter.NewScatter(plotter.XYs{{X: fit.Thickness, Y: fit.Error}})
		if err != nil {
			return fmt.Errorf("error marking minimum: %w", err)
		}
		best.GlyphStyle.Color = color.RGBA{R: 200, A: 255}
		best.GlyphStyle.Radius = vg.Points(4)
		p.Add(best)
		p.Legend.Add(fmt.Sprintf("d = %.4f µm", fit.Thickness), best)
	}

	return p.Save(v.width, v.height, filename)
}

// WriteSummary prints the best thickness for every wavelength row.
func (v *Viewer) WriteSummary(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Wavelength\tThickness (µm)\tError²")
	for _, fit := range v.surface.BestFits() {
		if fit.Index < 0 {
			fmt.Fprintf(tw, "%.0fnm\t-\tNaN\n", fit.Wavelength*1000)
			continue
		}
		fmt.Fprintf(tw, "%.0fnm\t%.3f\t%.6f\n", fit.Wavelength*1000, fit.Thickness, fit.Error)
	}
	return tw.Flush()
}

func (v *Viewer) grid() (*surfaceGrid, error) {
	rows, cols := v.surface.Dims()
	if rows < 2 || cols < 2 {
		return nil, fmt.Errorf("surface of %dx%d is too small for a 2D plot", rows, cols)
	}
	return newSurfaceGrid(v.surface), nil
}

// surfaceGrid adapts an error surface to plotter.GridXYZ with thickness on
// the X axis and wavelength in nanometers on the Y axis.
type surfaceGrid struct {
	s           *fitting.ErrorSurface
	thicknesses []float64
	wavelengths []float64
}

func newSurfaceGrid(s *fitting.ErrorSurface) *surfaceGrid {
	wls := s.Wavelengths()
	for i := range wls {
		wls[i] *= 1000
	}
	return &surfaceGrid{s: s, thicknesses: s.Thicknesses(), wavelengths: wls}
}

func (g *surfaceGrid) Dims() (c, r int)   { return len(g.thicknesses), len(g.wavelengths) }
func (g *surfaceGrid) Z(c, r int) float64 { return g.s.At(r, c) }
func (g *surfaceGrid) X(c int) float64    { return g.thicknesses[c] }
func (g *surfaceGrid) Y(r int) float64    { return g.wavelengths[r] }

// Min returns the smallest finite error
func (g *surfaceGrid) Min() float64 {
	lo, _ := g.extrema()
	return lo
}

// Max returns the largest finite error
func (g *surfaceGrid) Max() float64 {
	_, hi := g.extrema()
	return hi
}

func (g *surfaceGrid) extrema() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	c, r := g.Dims()
	for i := 0; i < c; i++ {
		for j := 0; j < r; j++ {
			z := g.Z(i, j)
			if math.IsNaN(z) || math.IsInf(z, 0) {
				continue
			}
			lo = math.Min(lo, z)
			hi = math.Max(hi, z)
		}
	}
	if lo > hi {
		return 0, 0
	}
	return lo, hi
}

// finiteXYs pairs xs and ys, dropping points plotter cannot draw
func finiteXYs(xs, ys []float64) plotter.XYs {
	pts := make(plotter.XYs, 0, len(xs))
	for i := range xs {
		if math.IsNaN(ys[i]) || math.IsInf(ys[i], 0) || math.IsNaN(xs[i]) {
			continue
		}
		pts = append(pts, plotter.XY{X: xs[i], Y: ys[i]})
	}
	return pts
}
