package main

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/line-detector/internal/linepattern"
)

var (
	lineColor       = color.RGBA{R: 40, G: 90, B: 200, A: 255}
	transitionColor = color.RGBA{R: 200, G: 60, B: 40, A: 255}
)

// plotReplay draws every line offset against scan distance and marks each
// transition with a labelled vertical rule.
func plotReplay(path, title string, scans []linepattern.Scan, res replayResult) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Session %s (%s)", title, res.Domain)
	p.X.Label.Text = "Distance (mm)"
	p.Y.Label.Text = "Offset (mm)"

	pts := make(plotter.XYs, 0, len(scans)*2)
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range scans {
		for _, l := range s.Lines {
			if math.IsNaN(l.Offset) || math.IsInf(l.Offset, 0) {
				continue
			}
			pts = append(pts, plotter.XY{X: s.Distance, Y: l.Offset})
			lo, hi = math.Min(lo, l.Offset), math.Max(hi, l.Offset)
		}
	}
	if len(pts) == 0 {
		lo, hi = -1, 1
	}

	if len(pts) > 0 {
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = lineColor
		sc.GlyphStyle.Radius = vg.Points(1)
		p.Add(sc)
		p.Legend.Add("line", sc)
	}

	if len(res.Transitions) > 0 {
		labels := plotter.XYLabels{
			XYs:    make(plotter.XYs, 0, len(res.Transitions)),
			Labels: make([]string, 0, len(res.Transitions)),
		}
		for _, t := range res.Transitions {
			rule, err := plotter.NewLine(plotter.XYs{{X: t.Distance, Y: lo}, {X: t.Distance, Y: hi}})
			if err != nil {
				return err
			}
			rule.Color = transitionColor
			rule.Width = vg.Points(0.5)
			rule.Dashes = []vg.Length{vg.Points(2), vg.Points(2)}
			p.Add(rule)

			labels.XYs = append(labels.XYs, plotter.XY{X: t.Distance, Y: hi})
			labels.Labels = append(labels.Labels, t.Pattern.Type.String())
		}
		lb, err := plotter.NewLabels(labels)
		if err != nil {
			return err
		}
		p.Add(lb)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	return p.Save(14*vg.Inch, 6*vg.Inch, path)
}
