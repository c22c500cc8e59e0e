package shim

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/ichijohodaka/spiral-shim/coupling"
	"github.com/ichijohodaka/spiral-shim/geometry"
	"github.com/ichijohodaka/spiral-shim/objective"
	"github.com/ichijohodaka/spiral-shim/postproc"
	"github.com/ichijohodaka/spiral-shim/report"
	"github.com/ichijohodaka/spiral-shim/residual"
	"github.com/ichijohodaka/spiral-shim/solver"
)

// CurrentParams は電流最適化の入力
type CurrentParams struct {
	Tolerance float64
	Layout
	Geometry geometry.Params

	// Inoise は電流源の誤差 ±Inoise [A]
	Inoise float64
	// InitialCurrent は全コイル共通の初期電流 [A]。NaN なら解析的に決める。
	InitialCurrent float64
	Seed           int64
	MaxIterations  int
}

func (p CurrentParams) validate() error {
	if err := positive("tolerance", p.Tolerance); err != nil {
		return err
	}
	if err := nonNegative("inoise", p.Inoise); err != nil {
		return err
	}
	if math.IsInf(p.InitialCurrent, 0) {
		return fmt.Errorf("%w: initial current is infinite", ErrInvalidParameter)
	}
	return nil
}

// RunCurrent は各コイルの電流を Newton-CG で求める（スパイラル形状は全コイル共通）
func RunCurrent(ctx context.Context, p CurrentParams, b0f residual.Func, log *slog.Logger) (Result, error) {
	log = logger(log).With("kind", report.Current)

	if err := p.validate(); err != nil {
		return Result{}, err
	}
	g, err := geometry.New(p.Geometry)
	if err != nil {
		return Result{}, fmt.Errorf("geometry: %w", err)
	}
	st, err := geometry.Layout(p.L, p.L0, p.W)
	if err != nil {
		return Result{}, fmt.Errorf("layout: %w", err)
	}
	log.Info("geometry",
		"d", g.D, "R", g.R, "Rs", g.Rs, "turns", g.Turns(),
		"coils", st.M(), "samples", st.Q())

	b0, err := sample(ctx, b0f, st)
	if err != nil {
		return Result{}, err
	}

	obj := objective.NewLinear(g, st, b0)
	x0 := obj.InitialGuess()
	if !math.IsNaN(p.InitialCurrent) {
		for i := range x0 {
			x0[i] = p.InitialCurrent
		}
	}
	log.Info("initial current", "I0", x0[0])

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	res, err := solver.Minimize(objective.Problem(obj), x0, solver.NewtonCG,
		solver.Settings{Tol: p.Tolerance, MaxIterations: p.MaxIterations})
	if err != nil {
		return Result{}, fmt.Errorf("minimize: %w", err)
	}
	logSolver(log, res)
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	current := res.X
	rng := rand.New(rand.NewSource(p.Seed))
	noisy := postproc.Perturb(current, p.Inoise, rng)

	lin := coupling.Linear{G: g}
	scale := obj.ScaleFactor()
	errs := postproc.ErrorCurve(lin, scale, current, st, b0)
	noisyErrs := postproc.ErrorCurve(lin, scale, noisy, st, b0)

	spiral := postproc.Spiral(g)
	pw := postproc.CurrentPower(spiral, current)

	r := report.New(report.Current)
	finishReport(r, res)
	designInputs(r, g, p.W, p.L0, p.L)
	r.Add("adjusted external radius", g.Rs, "m")
	r.Add("number of spiral turns", float64(g.Turns()), "")
	r.Add("each spiral length", spiral.Length, "m")
	r.Add("wire spiral resistance", spiral.WireR, "Ohms")
	r.Add("strip spiral resistance", spiral.StripR, "Ohms")
	r.Add("power dissipated in the whole wire stack", pw.Wire, "W")
	r.Add("power dissipated in the whole strip stack", pw.Strip, "W")
	r.Add("number of spiral coils", float64(st.M()), "")
	r.Add("number of induction sampling points", float64(st.Q()), "")
	r.Add("initial current", x0[0], "A")
	r.Add("current uncertainty", p.Inoise, "A")

	r.AddTable(residualTable(st, b0))
	r.AddTable(report.NewTable("current_profile", "Current profile", "z0, m", "I, A",
		[]string{"zm(m)", "I(A)"}, st.Zm, current))
	r.AddTable(report.NewTable("error_profile", "Error profile", "z0, m", "Error, T",
		[]string{"z0(m)", "Error(T)"}, st.Zq, errs))
	r.AddTable(inductionTable("induction_profile",
		"Induction profile before and after optimization", st, b0, errs))
	r.AddTable(inductionTable("induction_profile_with_uncertainty",
		"Induction profile before and after optimization: with the current uncertainty", st, b0, noisyErrs))

	return Result{Report: r, Solver: res, Stack: st, B0: b0}, nil
}
