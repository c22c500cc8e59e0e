// Package objective は最小二乗の目的関数 fun(x) = Σ_q (Bz(x,q) + b0[q])² と
// その勾配・ヘッセ行列を組み立てる。
package objective

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/ichijohodaka/spiral-shim/geometry"
)

// Mu0 は真空の透磁率 [H/m]
const Mu0 = 4.0 * math.Pi * 1.0e-7

// ErrSingular: 正規方程式が解けない（コイル配置が退化している）
var ErrSingular = errors.New("singular normal equations")

// Objective は最適化ドライバに渡すもの一式
type Objective interface {
	Dim() int
	Func(x []float64) float64
	Grad(grad, x []float64)
	Hess(hess *mat.SymDense, x []float64)
	// Field は各サンプル点の Bz(x, q) [T]
	Field(x []float64) []float64
	// Residuals は Bz(x, q) + b0[q]
	Residuals(x []float64) []float64
}

// Problem は gonum の optimize.Problem に詰め替える
func Problem(o Objective) optimize.Problem {
	return optimize.Problem{
		Func: o.Func,
		Grad: o.Grad,
		Hess: o.Hess,
	}
}

// Scale: mu0/(4π·gamma)。巻数モデルではさらに全電流 I を掛ける。
func Scale(g geometry.Context) float64 {
	return Mu0 / (4.0 * math.Pi * g.Gamma)
}

func checkDims(st geometry.Stack, b0 []float64) {
	if len(b0) != st.Q() {
		panic(fmt.Sprintf("objective: %d targets for %d sample points", len(b0), st.Q()))
	}
}

func sumSquares(r []float64) float64 {
	s := 0.0
	for _, v := range r {
		s += v * v
	}
	return s
}

func addTargets(bz, b0 []float64) []float64 {
	r := make([]float64, len(bz))
	for q := range bz {
		r[q] = bz[q] + b0[q]
	}
	return r
}
