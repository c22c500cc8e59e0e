// Package shim はパラメータから結果レポートまでの一連の処理
// （幾何 → 残留磁場のサンプリング → 目的関数 → 最小化 → 後処理）をつなぐ。
//
// 致命的な入力エラーは行列を作る前に返す。最小化が収束しなくてもエラーにはせず、
// Report.Converged=false の完全なレポートを返す。
package shim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/ichijohodaka/spiral-shim/geometry"
	"github.com/ichijohodaka/spiral-shim/report"
	"github.com/ichijohodaka/spiral-shim/residual"
	"github.com/ichijohodaka/spiral-shim/solver"
)

// ErrInvalidParameter は幾何以外の入力（許容誤差・電流など）が不正なとき
var ErrInvalidParameter = errors.New("invalid parameter")

// Layout はスタックの長さとコイル間隔 [m]
type Layout struct {
	L0 float64 // 残留磁場を測った長さ
	L  float64 // 最適化する長さ（L ≥ L0 を推奨）
	W  float64 // 基板幅（コイル間隔）
}

// Result は1回の実行結果
type Result struct {
	Report *report.Report
	Solver solver.Result
	Stack  geometry.Stack
	B0     []float64
}

// Err は最小化が収束しなかったとき solver.ErrDidNotConverge を返す
func (r Result) Err() error { return r.Solver.Err() }

func positive(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return fmt.Errorf("%w: %s=%g must be positive", ErrInvalidParameter, name, v)
	}
	return nil
}

func nonNegative(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("%w: %s=%g must be non-negative", ErrInvalidParameter, name, v)
	}
	return nil
}

func logger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

// sample は残留磁場をサンプル点で1回だけ評価する
func sample(ctx context.Context, f residual.Func, st geometry.Stack) ([]float64, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: no residual field", ErrInvalidParameter)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b0 := residual.Sample(f, st.Zq)
	for q, v := range b0 {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: residual field at z=%g is %g", ErrInvalidParameter, st.Zq[q], v)
		}
	}
	return b0, nil
}

// designInputs は両モデル共通の設計値（元の出力と同じラベル）
func designInputs(r *report.Report, g geometry.Context, w, l0, l float64) {
	r.Add("strip thickness", g.H, "m")
	r.Add("conductor diameter/width without isolation/gap", g.D0, "m")
	r.Add("total conductor diameter/width", g.D, "m")
	r.Add("total substrate width, including the wire diameter", w, "m")
	r.Add("residual induction length", l0, "m")
	r.Add("total optimisation length", l, "m")
	r.Add("adjusted internal radius", g.R, "m")
}

func residualTable(st geometry.Stack, b0 []float64) report.Table {
	return report.NewTable("residual_induction", "Residual induction", "z0, m", "B0, T",
		[]string{"z0(m)", "B0(T)"}, st.Zq, b0)
}

func inductionTable(name, title string, st geometry.Stack, b0, after []float64) report.Table {
	return report.NewTable(name, title, "z0, m", "Induction, T",
		[]string{"z0(m)", "B0", "B0 + Bz"}, st.Zq, b0, after)
}

func finishReport(r *report.Report, res solver.Result) {
	r.Method = res.Method.String()
	r.Status = res.Status.String()
	r.Converged = res.Converged()
	r.Objective = res.F
}

func logSolver(log *slog.Logger, res solver.Result) {
	attrs := []any{
		"method", res.Method.String(),
		"status", res.Status.String(),
		"iterations", res.Iterations,
		"fun", res.F,
		"grad_norm", res.GradNorm,
		"nfev", res.FuncEvals,
		"ngev", res.GradEvals,
		"nhev", res.HessEvals,
	}
	if res.Converged() {
		log.Info("optimization finished", attrs...)
	} else {
		log.Warn("optimization did not converge", attrs...)
	}
}
