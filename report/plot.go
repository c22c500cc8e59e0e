package report

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// SavePlotPNG は 1 列目を横軸、残りの列を折れ線にしたグラフを保存する。
// 系列が 2 本以上なら凡例を付ける。
func SavePlotPNG(filename string, t Table) error {
	if len(t.Columns) < 2 {
		return fmt.Errorf("plot %s: need at least 2 columns", t.Name)
	}

	p := plot.New()
	p.Title.Text = t.Title
	p.X.Label.Text = t.XLabel
	p.Y.Label.Text = t.YLabel
	p.Add(plotter.NewGrid())

	for j := 1; j < len(t.Columns); j++ {
		pts := make(plotter.XYs, len(t.Rows))
		for i, row := range t.Rows {
			pts[i].X = row[0]
			pts[i].Y = row[j]
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("plot %s: %w", t.Name, err)
		}
		line.LineStyle.Width = vg.Points(1.5)
		line.LineStyle.Color = plotutil.Color(j - 1)
		p.Add(line)
		if len(t.Columns) > 2 {
			p.Legend.Add(t.Columns[j], line)
		}
	}
	p.Legend.Top = true

	if err := p.Save(6*vg.Inch, 4*vg.Inch, filename); err != nil {
		return fmt.Errorf("plot %s: %w", t.Name, err)
	}
	return nil
}
