package solver

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// krylovSubproblem は Lanczos 法で張った Krylov 部分空間に部分問題を射影し、
// 三重対角行列 T 上で厳密解を求める（GLTR）。
type krylovSubproblem struct{}

func (krylovSubproblem) solve(g []float64, h mat.Symmetric, radius float64) ([]float64, bool) {
	n := len(g)
	gnorm := floats.Norm(g, 2)
	if gnorm == 0 {
		return solveEigen(g, h, radius)
	}
	tol := math.Min(0.5, math.Sqrt(gnorm)) * gnorm

	basis := make([][]float64, 0, n)
	alpha := make([]float64, 0, n)
	beta := make([]float64, 0, n)

	qk := make([]float64, n)
	floats.ScaleTo(qk, 1/gnorm, g)
	var prev []float64
	prevBeta := 0.0

	var y []float64
	hits := false
	for k := 0; k < n; k++ {
		basis = append(basis, qk)
		w := mulVec(h, qk)
		if prev != nil {
			floats.AddScaled(w, -prevBeta, prev)
		}
		a := floats.Dot(qk, w)
		floats.AddScaled(w, -a, qk)
		// 完全再直交化
		for _, v := range basis {
			floats.AddScaled(w, -floats.Dot(v, w), v)
		}
		b := floats.Norm(w, 2)
		alpha = append(alpha, a)
		beta = append(beta, b)

		dim := k + 1
		t := mat.NewSymDense(dim, nil)
		for i := 0; i < dim; i++ {
			t.SetSym(i, i, alpha[i])
			if i+1 < dim {
				t.SetSym(i, i+1, beta[i])
			}
		}
		gt := make([]float64, dim)
		gt[0] = gnorm
		y, hits = solveEigen(gt, t, radius)

		// (H+λI)p + g の残差は |β_k·y_k|
		if math.Abs(b*y[dim-1]) <= tol || b <= 1e-12*gnorm || dim == n {
			break
		}
		prev, prevBeta = qk, b
		qk = make([]float64, n)
		floats.ScaleTo(qk, 1/b, w)
	}

	p := make([]float64, n)
	for i, v := range basis {
		floats.AddScaled(p, y[i], v)
	}
	return p, hits
}
