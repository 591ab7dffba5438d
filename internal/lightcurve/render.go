package lightcurve

import (
	"errors"
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"keplerhub/pkg/models"
)

// Renderer draws a light curve and writes the encoded image to w.
type Renderer interface {
	Render(w io.Writer, lc *models.LightCurve, title string) error
}

// PNGRenderer plots flux against time as a PNG.
type PNGRenderer struct {
	Width  vg.Length
	Height vg.Length
	DPI    int
}

// NewPNGRenderer returns a 10x4 inch, 150 DPI renderer.
func NewPNGRenderer() *PNGRenderer {
	return &PNGRenderer{Width: 10 * vg.Inch, Height: 4 * vg.Inch, DPI: 150}
}

var errEmptySeries = errors.New("empty series")

func (p *PNGRenderer) Render(w io.Writer, lc *models.LightCurve, title string) error {
	n := lc.Len()
	if n == 0 {
		return errEmptySeries
	}

	pl := plot.New()
	pl.Title.Text = title
	pl.X.Label.Text = labelOr(lc.TimeLabel, "Time - 2454833 [BKJD days]")
	pl.Y.Label.Text = labelOr(lc.FluxLabel, "Flux [e-/s]")
	pl.Add(plotter.NewGrid())

	pts := make(plotter.XYs, n)
	for i := 0; i < n; i++ {
		pts[i].X = lc.Time[i]
		pts[i].Y = lc.Flux[i]
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("build line: %w", err)
	}
	line.LineStyle.Width = vg.Points(0.5)
	line.LineStyle.Color = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	pl.Add(line)

	canvas := vgimg.NewWith(
		vgimg.UseWH(p.Width, p.Height),
		vgimg.UseDPI(p.DPI),
		vgimg.UseBackgroundColor(color.White),
	)
	pl.Draw(draw.New(canvas))

	if _, err := (vgimg.PngCanvas{Canvas: canvas}).WriteTo(w); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

func labelOr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
