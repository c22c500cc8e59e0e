package shim

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/ichijohodaka/spiral-shim/coupling"
	"github.com/ichijohodaka/spiral-shim/geometry"
	"github.com/ichijohodaka/spiral-shim/objective"
	"github.com/ichijohodaka/spiral-shim/postproc"
	"github.com/ichijohodaka/spiral-shim/report"
	"github.com/ichijohodaka/spiral-shim/residual"
	"github.com/ichijohodaka/spiral-shim/solver"
)

// TurnsParams は巻数最適化の入力。全コイル直列で共通電流 I を流す。
type TurnsParams struct {
	Tolerance float64
	Layout
	Geometry geometry.Params // Rs は使わない

	A float64 // tanh 緩和の鋭さ
	I float64 // 全コイル共通の電流 [A]
	N float64 // 初期の巻数（正）

	// MaxAngle は想定する |x| の上限 [rad]。0 なら 2·N·2π。
	MaxAngle      float64
	Method        solver.Method
	Hessian       objective.HessianForm
	Quantize      postproc.Policy
	MaxIterations int
}

func (p TurnsParams) maxAngle() float64 {
	if p.MaxAngle > 0 {
		return p.MaxAngle
	}
	return 2.0 * p.N * 2.0 * math.Pi
}

func (p TurnsParams) validate() error {
	if err := positive("tolerance", p.Tolerance); err != nil {
		return err
	}
	if err := positive("I", p.I); err != nil {
		return err
	}
	if err := positive("N", p.N); err != nil {
		return err
	}
	return nonNegative("max angle", p.MaxAngle)
}

// RunTurns は各コイルの巻数を求める。緩和モデルで最適化し、
// 整数化した巻数をステップ関数モデルで評価し直す。
func RunTurns(ctx context.Context, p TurnsParams, b0f residual.Func, log *slog.Logger) (Result, error) {
	log = logger(log).With("kind", report.Turns)

	if err := p.validate(); err != nil {
		return Result{}, err
	}
	g, err := geometry.NewTurns(p.Geometry)
	if err != nil {
		return Result{}, fmt.Errorf("geometry: %w", err)
	}
	relaxed := coupling.Relaxed{G: g, A: p.A}
	if err := relaxed.Validate(p.maxAngle()); err != nil {
		return Result{}, fmt.Errorf("sharpness: %w", err)
	}
	st, err := geometry.Layout(p.L, p.L0, p.W)
	if err != nil {
		return Result{}, fmt.Errorf("layout: %w", err)
	}
	log.Info("geometry", "d", g.D, "R", g.R, "coils", st.M(), "samples", st.Q(),
		"a", p.A, "method", p.Method.String(), "hessian", p.Hessian.String())

	b0, err := sample(ctx, b0f, st)
	if err != nil {
		return Result{}, err
	}

	obj := objective.NewNonlinear(relaxed, st, b0, p.I, p.Hessian)
	x0 := obj.InitialGuess(p.N)

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	res, err := solver.Minimize(objective.Problem(obj), x0, p.Method,
		solver.Settings{Tol: p.Tolerance, MaxIterations: p.MaxIterations})
	if err != nil {
		return Result{}, fmt.Errorf("minimize: %w", err)
	}
	logSolver(log, res)
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	turns, adjusted, err := postproc.Quantize(res.X, p.Quantize)
	if err != nil {
		return Result{}, fmt.Errorf("quantize: %w", err)
	}
	errs := postproc.ErrorCurve(coupling.Step{G: g}, obj.ScaleFactor(), adjusted, st, b0)
	log.Info("quantized", "policy", p.Quantize.String(), "turns", turns,
		"improved", postproc.ImprovedFraction(errs, b0))

	ws := postproc.Windings(g, adjusted)
	total := postproc.Total(ws)
	pw := postproc.StackPower(total, p.I)

	r := report.New(report.Turns)
	finishReport(r, res)
	r.Add("total current through all spiral coils", p.I, "A")
	designInputs(r, g, p.W, p.L0, p.L)
	r.Add("total length of the spirals", total.Length, "m")
	r.Add("total wire resistance", total.WireR, "Ohms")
	r.Add("total strip resistance", total.StripR, "Ohms")
	r.Add("power dissipated in the whole wire stack", pw.Wire, "W")
	r.Add("power dissipated in the whole strip stack", pw.Strip, "W")
	r.Add("number of spiral coils", float64(st.M()), "")
	r.Add("number of induction sampling points", float64(st.Q()), "")
	r.Add("relaxation sharpness a", p.A, "")
	r.Add("initial number of turns", p.N, "")

	tf := make([]float64, len(turns))
	lengths := make([]float64, len(ws))
	wireR := make([]float64, len(ws))
	stripR := make([]float64, len(ws))
	for m := range turns {
		tf[m] = float64(turns[m])
		lengths[m] = ws[m].Length
		wireR[m] = ws[m].WireR
		stripR[m] = ws[m].StripR
	}

	r.AddTable(residualTable(st, b0))
	r.AddTable(report.NewTable("turns_profile", "Turns profile", "z0, m", "Full turns",
		[]string{"zm(m)", "turns"}, st.Zm, tf))
	r.AddTable(report.NewTable("angle_profile", "Turn angle before and after quantization", "z0, m", "Angle, rad",
		[]string{"zm(m)", "x(rad)", "x_adj(rad)"}, st.Zm, res.X, adjusted))
	r.AddTable(report.NewTable("error_profile", "Error profile", "z0, m", "Error, T",
		[]string{"z0(m)", "Error(T)"}, st.Zq, errs))
	r.AddTable(inductionTable("induction_profile",
		"Induction profile before and after optimization", st, b0, errs))
	r.AddTable(report.NewTable("length_resistance_profiles", "Spiral length and resistance", "z0, m", "Length, m / Resistance, Ohms",
		[]string{"zm(m)", "Length(m)", "R_wires(Ohms)", "R_strips(Ohms)"}, st.Zm, lengths, wireR, stripR))

	return Result{Report: r, Solver: res, Stack: st, B0: b0}, nil
}
