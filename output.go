// output.go
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/ichijohodaka/spiral-shim/report"
	"github.com/ichijohodaka/spiral-shim/residual"
)

func fmt4(x float64) string { return fmt.Sprintf("%.4g", x) }

// emit は結果をコンソールに表示し、設定されたファイルと履歴に書く
func emit(ctx context.Context, w io.Writer, cfg Config, r *report.Report, log *slog.Logger) error {
	report.PrintSummary(w, r)
	for _, t := range r.Tables {
		report.PrintTable(w, t, cfg.Output.MaxPrint)
	}

	paths, err := report.Write(r, cfg.ReportOptions())
	for _, p := range paths {
		log.Info("saved", "path", p)
	}
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if cfg.Output.History == "" {
		return nil
	}
	h, err := report.OpenHistory(cfg.Output.History)
	if err != nil {
		return err
	}
	defer h.Close()
	if err := h.Record(ctx, r); err != nil {
		return fmt.Errorf("record history: %w", err)
	}
	log.Info("recorded", "run", r.ID, "history", cfg.Output.History)
	return nil
}

// solenoidReport は設定のソレノイドの軸上磁場を表にする（最適化はしない）
func solenoidReport(cfg Config) (*report.Report, error) {
	sc := cfg.Solenoid
	s := sc.solenoid()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if sc.MaxZ <= 0 {
		return nil, fmt.Errorf("solenoid: max_z=%g must be positive", sc.MaxZ)
	}
	z, h, oe := s.Profile(sc.MaxZ)
	b := make([]float64, len(z))
	for i := range z {
		b[i] = s.Field(z[i])
	}

	r := report.New(report.Solenoid)
	r.Status = "n/a"
	r.Converged = true
	r.Add("solenoid length", sc.L, "m")
	r.Add("solenoid internal radius", sc.R, "m")
	r.Add("wire diameter without isolation", sc.D0, "m")
	r.Add("wire isolation thickness", sc.Delta, "m")
	r.Add("number of winding layers", float64(sc.Layers), "")
	r.Add("number of turns per layer", float64(s.TurnsPerLayer()), "")
	r.Add("current", sc.Current, "A")
	r.Add("field at the centre", s.H(0), "A/m")
	r.Add("field at the centre in Oe", residual.Oersted(s.H(0)), "Oe")

	r.AddTable(report.NewTable("solenoid_field", "Solenoid axial field", "z0, m", "H, A/m",
		[]string{"z0(m)", "H(A/m)"}, z, h))
	r.AddTable(report.NewTable("solenoid_field_oe", "Solenoid axial field in Oe", "z0, m", "H, Oe",
		[]string{"z0(m)", "H(Oe)"}, z, oe))
	r.AddTable(report.NewTable("solenoid_induction", "Solenoid axial induction", "z0, m", "B, T",
		[]string{"z0(m)", "B(T)"}, z, b))
	return r, nil
}

// printRuns は履歴の一覧を表示する
func printRuns(w io.Writer, runs []report.Run) {
	fmt.Fprintln(w, "=== runs ===")
	if len(runs) == 0 {
		fmt.Fprintln(w, "(none)")
		return
	}
	headers := []string{"No", "id", "kind", "created", "method", "status", "converged", "fun"}
	rows := make([][]string, len(runs))
	for i, r := range runs {
		rows[i] = []string{
			fmt.Sprintf("%d", i+1),
			r.ID,
			r.Kind,
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			r.Method,
			r.Status,
			fmt.Sprintf("%t", r.Converged),
			fmt4(r.Objective),
		}
	}
	report.PrintBox(w, headers, rows)
	fmt.Fprintln(w)
}

// printQuantities は1回分の設計値を表示する
func printQuantities(w io.Writer, id string, qs []report.Quantity) {
	fmt.Fprintf(w, "=== run %s ===\n", id)
	if len(qs) == 0 {
		fmt.Fprintln(w, "(none)")
		return
	}
	for _, q := range qs {
		fmt.Fprintln(w, q.String())
	}
	fmt.Fprintln(w)
}

// seriesTable は履歴の1列を行番号つきの表にする
func seriesTable(id, table, column string, vs []float64) report.Table {
	idx := make([]float64, len(vs))
	for i := range idx {
		idx[i] = float64(i)
	}
	return report.NewTable(table, fmt.Sprintf("run %s %s", id, table), "row", column,
		[]string{"row", column}, idx, vs)
}
