package solver

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

const eps = 2.220446049250313e-16

// newtonCG は打ち切り共役勾配法で Newton 方向を求め、More-Thuente の直線探索で進む。
// 平均ステップ長 Σ|Δx|/n が Tol 以下になったら収束。
// 直線探索が進めないときは stalled で収束・精度限界・失敗を分ける。
func newtonCG(e *evaluator, x []float64, s Settings) {
	n := len(x)
	g := make([]float64, n)
	hess := mat.NewSymDense(n, nil)

	f := e.f(x)
	e.g(g, x)
	if !finite(f) || !finiteSlice(g) {
		e.finish(x, f, g, 0, NotFinite)
		return
	}

	xtol := float64(n) * s.Tol
	update := 2.0 * xtol
	cgMax := 20 * n
	k := 0
	for update > xtol {
		if floats.Norm(g, math.Inf(1)) == 0 {
			break
		}
		if k >= s.MaxIterations {
			e.finish(x, f, g, k, IterationLimit)
			return
		}

		e.h(hess, x)
		dir := cgDirection(hess, g, cgMax)
		if floats.Dot(dir, g) >= 0 {
			// CG が方向を作れなかったときは最急降下
			floats.ScaleTo(dir, -1, g)
			if floats.Dot(dir, g) >= 0 {
				// 勾配がアンダーフローするほど小さい
				break
			}
		}

		step, fNew, gNew, ok := lineSearch(e, x, f, g, dir)
		if !ok {
			e.finish(x, f, g, k, stalled(f, g, dir, xtol, s.Tol))
			return
		}
		xNew := make([]float64, n)
		floats.AddScaledTo(xNew, x, step, dir)
		update = step * floats.Norm(dir, 1)
		x, f, g = xNew, fNew, gNew
		k++
		if !finite(f) || !finiteSlice(g) {
			e.finish(x, f, g, k, NotFinite)
			return
		}
	}
	e.finish(x, f, g, k, Converged)
}

// precisionFloor: |gᵀdir| がこの倍数·eps·|f| 以下なら f の差は丸め誤差に埋もれる
const precisionFloor = 100.0

// stalled は直線探索が進めなかったときの終了理由。
// 勾配ノルムが tol 未満か、残りの Newton ステップ全体が xtol 以内なら収束。
// 期待される減少量が f の丸め誤差に埋もれるなら精度限界。
func stalled(f float64, g, dir []float64, xtol, tol float64) Status {
	switch {
	case floats.Norm(g, 2) < tol, floats.Norm(dir, 1) <= xtol:
		return Converged
	case math.Abs(floats.Dot(g, dir)) <= precisionFloor*eps*math.Abs(f):
		return PrecisionLimit
	}
	return LineSearchFailure
}

// cgDirection は H·p = −g を CG で近似的に解く。
// 停止条件 Σ|r| ≤ min(0.5, √Σ|g|)·Σ|g|、負の曲率で打ち切る。
func cgDirection(h mat.Symmetric, g []float64, maxIter int) []float64 {
	n := len(g)
	maggrad := floats.Norm(g, 1)
	termcond := math.Min(0.5, math.Sqrt(maggrad)) * maggrad

	xs := make([]float64, n)
	r := append([]float64(nil), g...)
	p := make([]float64, n)
	floats.ScaleTo(p, -1, r)
	dri0 := floats.Dot(r, r)

	for i := 0; i < maxIter; i++ {
		if floats.Norm(r, 1) <= termcond {
			break
		}
		ap := mulVec(h, p)
		curv := floats.Dot(p, ap)
		if curv >= 0 && curv <= 3*eps {
			break
		}
		if curv < 0 {
			if i == 0 {
				// 最初から負の曲率：最急降下方向を曲率でスケール
				floats.ScaleTo(xs, -dri0/(-curv), g)
			}
			break
		}
		alpha := dri0 / curv
		floats.AddScaled(xs, alpha, p)
		floats.AddScaled(r, alpha, ap)
		dri1 := floats.Dot(r, r)
		beta := dri1 / dri0
		for j := range p {
			p[j] = -r[j] + beta*p[j]
		}
		dri0 = dri1
	}
	return xs
}

// lineSearch は φ(t) = f(x + t·dir) を gonum の MoreThuente で探索する。
// dir は降下方向であること。
func lineSearch(e *evaluator, x []float64, f float64, g, dir []float64) (step, fNew float64, gNew []float64, ok bool) {
	const maxEvals = 100
	n := len(x)
	ls := &optimize.MoreThuente{}
	xt := make([]float64, n)
	gt := make([]float64, n)

	cur := 1.0
	op := ls.Init(f, floats.Dot(g, dir), cur)
	for i := 0; i < maxEvals; i++ {
		floats.AddScaledTo(xt, x, cur, dir)
		var v, d float64
		haveF, haveG := false, false
		if op&optimize.FuncEvaluation != 0 {
			v = e.f(xt)
			haveF = true
		}
		if op&optimize.GradEvaluation != 0 {
			e.g(gt, xt)
			d = floats.Dot(gt, dir)
			haveG = true
		}
		if !finite(v, d) {
			return 0, f, g, false
		}

		next, nextStep, err := ls.Iterate(v, d)
		if err != nil {
			return 0, f, g, false
		}
		if next == optimize.MajorIteration {
			// 直前に評価した点を採用。足りない評価を補う。
			if !haveF {
				v = e.f(xt)
			}
			if !haveG {
				e.g(gt, xt)
			}
			return cur, v, append([]float64(nil), gt...), true
		}
		op, cur = next, nextStep
	}
	return 0, f, g, false
}
