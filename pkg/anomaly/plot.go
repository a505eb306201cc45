package anomaly

import (
	"image/color"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Plot renders the decision score per window, with outliers highlighted, to
// an image file. The format follows the file extension (png, svg, pdf).
func Plot(res *Result, filename string) error {
	p := plot.New()
	p.Title.Text = "Window anomaly scores"
	p.X.Label.Text = "time_bin"
	p.Y.Label.Text = "decision score (higher is more normal)"

	all := make(plotter.XYs, len(res.Scores))
	var outliers plotter.XYs
	for i, s := range res.Scores {
		all[i].X = float64(s.Window)
		all[i].Y = s.Decision
		if s.Outlier {
			outliers = append(outliers, plotter.XY{X: float64(s.Window), Y: s.Decision})
		}
	}

	line, err := plotter.NewLine(all)
	if err != nil {
		return errors.Wrap(err, "score line")
	}
	line.LineStyle.Width = vg.Points(1)
	p.Add(line, plotter.NewGrid())

	if len(outliers) > 0 {
		scatter, err := plotter.NewScatter(outliers)
		if err != nil {
			return errors.Wrap(err, "outlier scatter")
		}
		scatter.GlyphStyle.Shape = draw.CircleGlyph{}
		scatter.GlyphStyle.Color = color.RGBA{R: 220, A: 255}
		scatter.GlyphStyle.Radius = vg.Points(3)
		p.Add(scatter)
		p.Legend.Add("outlier", scatter)
	}

	zero := plotter.NewFunction(func(float64) float64 { return 0 })
	zero.Color = color.Gray{Y: 128}
	zero.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	p.Add(zero)

	if err := p.Save(10*vg.Inch, 4*vg.Inch, filename); err != nil {
		return errors.Wrapf(err, "save %s", filename)
	}
	return nil
}
