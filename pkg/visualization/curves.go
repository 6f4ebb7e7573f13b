package visualization

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"filmfit/internal/models"
)

var (
	dataColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	fitColor  = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	avgColor  = color.RGBA{G: 128, A: 255}
)

// SaveFitOverlay plots a measured curve against the model prediction at the
// same angles, both against incidence angle in degrees.
func SaveFitOverlay(curve models.Curve, predicted []float64, title, filename string) error {
	if len(predicted) != curve.Len() {
		return fmt.Errorf("prediction has %d points but curve has %d", len(predicted), curve.Len())
	}
	deg := curve.Degrees()

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Angle of Incidence (deg)"
	p.Y.Label.Text = "Normalized Transmission"
	p.Add(plotter.NewGrid())

	if err := addLine(p, "Data", deg, curve.Values, dataColor, false); err != nil {
		return err
	}
	if err := addLine(p, "Fit", deg, predicted, fitColor, true); err != nil {
		return err
	}

	return p.Save(DefaultWidth, DefaultHeight, filename)
}

// SaveModelCurves plots polarized and unpolarized model transmittance against
// incidence angle (radians in, degrees on the axis).
func SaveModelCurves(angles, tp, ts, tavg []float64, title, filename string) error {
	if len(tp) != len(angles) || len(ts) != len(angles) || len(tavg) != len(angles) {
		return fmt.Errorf("transmission curves are not co-indexed with %d angles", len(angles))
	}
	deg := make([]float64, len(angles))
	for i, a := range angles {
		deg[i] = a * 180 / math.Pi
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Angle of Incidence (deg)"
	p.Y.Label.Text = "Transmission"
	p.Add(plotter.NewGrid())

	if err := addLine(p, "T_p", deg, tp, dataColor, false); err != nil {
		return err
	}
	if err := addLine(p, "T_s", deg, ts, fitColor, false); err != nil {
		return err
	}
	if err := addLine(p, "T_avg", deg, tavg, avgColor, true); err != nil {
		return err
	}

	return p.Save(DefaultWidth, DefaultHeight, filename)
}

func addLine(p *plot.Plot, label string, xs, ys []float64, c color.Color, dashed bool) error {
	pts := finiteXYs(xs, ys)
	if len(pts) == 0 {
		return fmt.Errorf("%s has no finite points to plot", label)
	}
	l, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("error creating %s line: %w", label, err)
	}
	l.LineStyle.Color = c
	l.LineStyle.Width = vg.Points(1.5)
	if dashed {
		l.LineStyle.Dashes = []vg.Length{vg.Points(6), vg.Points(3)}
	}
	p.Add(l)
	p.Legend.Add(label, l)
	p.Legend.Top = true
	p.Legend.Left = false
	return nil
}
