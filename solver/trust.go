package solver

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// subproblem は信頼領域の部分問題 min gᵀp + ½pᵀHp, ‖p‖ ≤ radius を解く。
// hits は解が境界上にあるかどうか。
type subproblem interface {
	solve(g []float64, h mat.Symmetric, radius float64) (p []float64, hits bool)
}

// trustRegion は信頼領域法の外側ループ。‖g‖₂ < Tol で収束。
//
//	rho < 0.25          → radius ×0.25
//	rho > 0.75 かつ境界 → radius ×2（MaxTrustRadius まで）
//	rho > Eta           → ステップ受理
func trustRegion(e *evaluator, x []float64, s Settings, sub subproblem) {
	n := len(x)
	radius := s.InitialTrustRadius
	g := make([]float64, n)
	hess := mat.NewSymDense(n, nil)

	f := e.f(x)
	e.g(g, x)
	if !finite(f) || !finiteSlice(g) {
		e.finish(x, f, g, 0, NotFinite)
		return
	}
	needHess := true

	k := 0
	for floats.Norm(g, 2) >= s.Tol {
		if k >= s.MaxIterations {
			e.finish(x, f, g, k, IterationLimit)
			return
		}
		if needHess {
			e.h(hess, x)
			needHess = false
		}

		p, hits := sub.solve(g, hess, radius)
		predicted := -quadratic(g, hess, p)
		if !(predicted > 0) {
			e.finish(x, f, g, k, PredictionFailure)
			return
		}

		xp := make([]float64, n)
		floats.AddTo(xp, x, p)
		fp := e.f(xp)
		rho := (f - fp) / predicted
		if math.IsNaN(rho) || math.IsInf(fp, 0) {
			rho = -1
		}

		switch {
		case rho < 0.25:
			radius *= 0.25
		case rho > 0.75 && hits:
			radius = math.Min(2*radius, s.MaxTrustRadius)
		}

		if rho > s.Eta {
			gp := make([]float64, n)
			e.g(gp, xp)
			if !finiteSlice(gp) {
				e.finish(xp, fp, gp, k+1, NotFinite)
				return
			}
			x, f, g = xp, fp, gp
			needHess = true
		}
		k++
	}
	e.finish(x, f, g, k, Converged)
}

// steihaugSubproblem は打ち切り CG（Steihaug）。負の曲率か境界で止まる。
type steihaugSubproblem struct{}

func (steihaugSubproblem) solve(g []float64, h mat.Symmetric, radius float64) ([]float64, bool) {
	n := len(g)
	z := make([]float64, n)
	gmag := floats.Norm(g, 2)
	if gmag == 0 {
		return z, false
	}
	tol := math.Min(0.5, math.Sqrt(gmag)) * gmag

	r := append([]float64(nil), g...)
	d := make([]float64, n)
	floats.ScaleTo(d, -1, r)

	for iter := 0; iter < 10*n+10; iter++ {
		bd := mulVec(h, d)
		dbd := floats.Dot(d, bd)
		if dbd <= 0 {
			// 負の曲率：境界上の2点のうちモデル値の小さい方
			ta, tb := boundaryIntersections(z, d, radius)
			pa := make([]float64, n)
			pb := make([]float64, n)
			floats.AddScaledTo(pa, z, ta, d)
			floats.AddScaledTo(pb, z, tb, d)
			if quadratic(g, h, pa) < quadratic(g, h, pb) {
				return pa, true
			}
			return pb, true
		}

		rsq := floats.Dot(r, r)
		alpha := rsq / dbd
		zn := make([]float64, n)
		floats.AddScaledTo(zn, z, alpha, d)
		if floats.Norm(zn, 2) >= radius {
			_, tb := boundaryIntersections(z, d, radius)
			p := make([]float64, n)
			floats.AddScaledTo(p, z, tb, d)
			return p, true
		}

		floats.AddScaled(r, alpha, bd)
		rnsq := floats.Dot(r, r)
		if math.Sqrt(rnsq) < tol {
			return zn, false
		}
		beta := rnsq / rsq
		for i := range d {
			d[i] = -r[i] + beta*d[i]
		}
		z = zn
	}
	return z, false
}

// boundaryIntersections は ‖z + t·d‖ = radius の2根 ta ≤ tb
func boundaryIntersections(z, d []float64, radius float64) (ta, tb float64) {
	a := floats.Dot(d, d)
	b := 2 * floats.Dot(z, d)
	c := floats.Dot(z, z) - radius*radius
	disc := math.Sqrt(math.Max(b*b-4*a*c, 0))
	aux := b + math.Copysign(disc, b)
	if aux == 0 {
		return 0, 0
	}
	ta = -aux / (2 * a)
	tb = -2 * c / aux
	if ta > tb {
		ta, tb = tb, ta
	}
	return ta, tb
}
