package solver

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// exactSubproblem は固有値分解で部分問題をほぼ厳密に解く。
// 小さな次元（コイル数程度）向け。
type exactSubproblem struct{}

func (exactSubproblem) solve(g []float64, h mat.Symmetric, radius float64) ([]float64, bool) {
	return solveEigen(g, h, radius)
}

// solveEigen は H = QΛQᵀ として
//
//	p(λ) = −Σ_i (q_iᵀg)/(λ_i+λ)·q_i,  ‖p(λ)‖ = radius
//
// を λ ≥ max(0, −λ_min) で解く。q_min 方向の勾配成分が 0 のときは hard case。
func solveEigen(g []float64, h mat.Symmetric, radius float64) ([]float64, bool) {
	n := len(g)
	var es mat.EigenSym
	if ok := es.Factorize(h, true); !ok {
		// 分解できなければ Cauchy 点
		return cauchyPoint(g, h, radius)
	}
	lam := es.Values(nil)
	var q mat.Dense
	es.VectorsTo(&q)

	gt := make([]float64, n)
	mat.NewVecDense(n, gt).MulVec(q.T(), mat.NewVecDense(n, g))

	// 固有値は昇順
	lmin := lam[0]
	scale := math.Max(1, math.Max(math.Abs(lam[0]), math.Abs(lam[n-1])))
	gnorm := floats.Norm(g, 2)

	norm := func(shift float64) float64 {
		s := 0.0
		for i := range lam {
			den := lam[i] + shift
			s += gt[i] * gt[i] / (den * den)
		}
		return math.Sqrt(s)
	}
	build := func(shift float64, skip func(int) bool) []float64 {
		coef := make([]float64, n)
		for i := range lam {
			if skip != nil && skip(i) {
				continue
			}
			coef[i] = -gt[i] / (lam[i] + shift)
		}
		p := mat.NewVecDense(n, nil)
		p.MulVec(&q, mat.NewVecDense(n, coef))
		return p.RawVector().Data
	}

	// 正定値で Newton ステップが領域内なら内点解
	if lmin > 1e-14*scale {
		if norm(0) <= radius {
			return build(0, nil), false
		}
	}

	lo := math.Max(0, -lmin)

	// hard case：最小固有空間への勾配成分が無い
	low := func(i int) bool { return lam[i]-lmin <= 1e-10*scale }
	proj := 0.0
	for i := range lam {
		if low(i) {
			proj += gt[i] * gt[i]
		}
	}
	if math.Sqrt(proj) <= 1e-12*math.Max(gnorm, 1e-300) {
		p := build(lo, low)
		pn := floats.Norm(p, 2)
		if pn <= radius {
			tau := math.Sqrt(radius*radius - pn*pn)
			floats.AddScaled(p, tau, mat.Col(nil, 0, &q))
			return p, true
		}
	}

	if gnorm == 0 {
		return make([]float64, n), false
	}

	// ‖p(hi)‖ ≤ ‖g‖/(hi−lo) = radius
	hi := lo + gnorm/radius
	lambda := 0.5 * (lo + hi)
	for iter := 0; iter < 200; iter++ {
		pn := norm(lambda)
		if math.Abs(pn-radius) <= 1e-10*radius {
			break
		}
		if pn > radius {
			lo = lambda
		} else {
			hi = lambda
		}
		// 1/‖p‖ − 1/radius に対する Newton
		d3 := 0.0
		for i := range lam {
			den := lam[i] + lambda
			d3 += gt[i] * gt[i] / (den * den * den)
		}
		next := lambda
		if d3 > 0 && finite(pn) {
			phi := 1/pn - 1/radius
			dphi := d3 / (pn * pn * pn)
			next = lambda - phi/dphi
		}
		if !(next > lo && next < hi) {
			next = 0.5 * (lo + hi)
		}
		if hi-lo <= 1e-15*math.Max(1, hi) {
			lambda = next
			break
		}
		lambda = next
	}
	return build(lambda, nil), true
}

// cauchyPoint はモデルの最急降下方向の最小点（境界で打ち切り）
func cauchyPoint(g []float64, h mat.Symmetric, radius float64) ([]float64, bool) {
	n := len(g)
	gnorm := floats.Norm(g, 2)
	p := make([]float64, n)
	if gnorm == 0 {
		return p, false
	}
	curv := floats.Dot(g, mulVec(h, g))
	t := radius / gnorm
	hits := true
	if curv > 0 {
		if tc := gnorm * gnorm / curv; tc < t {
			t, hits = tc, false
		}
	}
	floats.ScaleTo(p, -t, g)
	return p, hits
}
