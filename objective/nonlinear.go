package objective

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/ichijohodaka/spiral-shim/coupling"
	"github.com/ichijohodaka/spiral-shim/geometry"
)

// HessianForm は巻数モデルのヘッセ行列の作り方
type HessianForm int

const (
	// GaussNewton: HM[m][n] = 2·Σ_q dBz_m·dBz_n（密行列）
	GaussNewton HessianForm = iota
	// Exact: GaussNewton に対角項 2·Σ_q r_q·∂²Bz/∂x_m² を足したもの
	Exact
)

func (f HessianForm) String() string {
	switch f {
	case GaussNewton:
		return "gauss-newton"
	case Exact:
		return "exact"
	default:
		return fmt.Sprintf("HessianForm(%d)", int(f))
	}
}

// ParseHessianForm は設定値の文字列を HessianForm にする
func ParseHessianForm(s string) (HessianForm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "gauss-newton", "gaussnewton", "gn":
		return GaussNewton, nil
	case "exact":
		return Exact, nil
	}
	return 0, fmt.Errorf("unknown hessian form %q", s)
}

// Nonlinear は巻数最適化の目的関数。コイルごとの外径が x_m に依存するので
// 係数と微分は評価のたびに計算し直す。
type Nonlinear struct {
	strategy coupling.Smooth
	stack    geometry.Stack
	b0       []float64
	scale    float64
	form     HessianForm
}

// NewNonlinear: scale = mu0·I/(4π·gamma)。I は全コイル共通の電流（最適化しない）。
func NewNonlinear(r coupling.Relaxed, st geometry.Stack, b0 []float64, current float64, form HessianForm) *Nonlinear {
	checkDims(st, b0)
	return &Nonlinear{
		strategy: r,
		stack:    st,
		b0:       append([]float64(nil), b0...),
		scale:    Scale(r.G) * current,
		form:     form,
	}
}

func (n *Nonlinear) Dim() int { return n.stack.M() }

// ScaleFactor は mu0·I/(4π·gamma)
func (n *Nonlinear) ScaleFactor() float64 { return n.scale }

// InitialGuess は全コイル N 回巻き（N·2π rad）の一様ベクトル
func (n *Nonlinear) InitialGuess(turns float64) []float64 {
	x0 := make([]float64, n.Dim())
	for i := range x0 {
		x0[i] = turns * 2.0 * math.Pi
	}
	return x0
}

func (n *Nonlinear) Field(x []float64) []float64 {
	if len(x) != n.Dim() {
		panic("objective: decision vector length mismatch")
	}
	bz := make([]float64, n.stack.Q())
	for q := range bz {
		bz[q] = n.scale * coupling.Sum(n.strategy, x, n.stack, q)
	}
	return bz
}

func (n *Nonlinear) Residuals(x []float64) []float64 {
	return addTargets(n.Field(x), n.b0)
}

func (n *Nonlinear) Func(x []float64) float64 {
	return sumSquares(n.Residuals(x))
}

// Jacobian は dBz(x_m, m, q) を M×Q 行列で返す。
// Bz(·,q) の x_m 微分はコイル m の項だけから来る。
func (n *Nonlinear) Jacobian(x []float64) *mat.Dense {
	j := mat.NewDense(n.Dim(), n.stack.Q(), nil)
	for m, zm := range n.stack.Zm {
		for q, zq := range n.stack.Zq {
			j.Set(m, q, n.scale*n.strategy.Derivative(x[m], zq-zm))
		}
	}
	return j
}

// Grad: jac[m] = 2·Σ_q (Bz(x,q)+b0[q])·dBz(x_m,m,q)
func (n *Nonlinear) Grad(grad, x []float64) {
	r := n.Residuals(x)
	g := mat.NewVecDense(len(grad), grad)
	g.MulVec(n.Jacobian(x), mat.NewVecDense(len(r), r))
	g.ScaleVec(2.0, g)
}

func (n *Nonlinear) Hess(hess *mat.SymDense, x []float64) {
	j := n.Jacobian(x)
	var hm mat.SymDense
	hm.SymOuterK(2.0, j)
	if n.form == Exact {
		r := n.Residuals(x)
		for m, zm := range n.stack.Zm {
			d := 0.0
			for q, zq := range n.stack.Zq {
				d += r[q] * n.scale * n.strategy.Curvature(x[m], zq-zm)
			}
			hm.SetSym(m, m, hm.At(m, m)+2.0*d)
		}
	}
	hess.CopySym(&hm)
}
