package objective

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/ichijohodaka/spiral-shim/coupling"
	"github.com/ichijohodaka/spiral-shim/geometry"
)

// Linear は電流最適化の目的関数。Bz は x について線形なので
// ヘッセ行列 HM = 2·dBz·dBzᵀ は最初に1回だけ計算する。
type Linear struct {
	stack geometry.Stack
	b0    []float64
	scale float64

	coef *mat.Dense    // C[m][q]
	dbz  *mat.Dense    // scale·C[m][q]
	hm   *mat.SymDense // 2·Σ_q dBz[m][q]·dBz[n][q]
}

// NewLinear は係数行列とヘッセ行列を作る
func NewLinear(g geometry.Context, st geometry.Stack, b0 []float64) *Linear {
	checkDims(st, b0)
	ones := make([]float64, st.M())
	for i := range ones {
		ones[i] = 1
	}
	l := &Linear{
		stack: st,
		b0:    append([]float64(nil), b0...),
		scale: Scale(g),
		coef:  coupling.Matrix(coupling.Linear{G: g}, ones, st),
	}
	l.dbz = mat.DenseCopyOf(l.coef)
	l.dbz.Scale(l.scale, l.dbz)

	hm := mat.NewSymDense(st.M(), nil)
	hm.SymOuterK(2.0, l.dbz)
	l.hm = hm
	return l
}

func (l *Linear) Dim() int { return l.stack.M() }

// ScaleFactor は mu0/(4π·gamma)
func (l *Linear) ScaleFactor() float64 { return l.scale }

func (l *Linear) Field(x []float64) []float64 {
	if len(x) != l.Dim() {
		panic("objective: decision vector length mismatch")
	}
	bz := mat.NewVecDense(l.stack.Q(), nil)
	bz.MulVec(l.dbz.T(), mat.NewVecDense(len(x), x))
	return bz.RawVector().Data
}

func (l *Linear) Residuals(x []float64) []float64 {
	return addTargets(l.Field(x), l.b0)
}

func (l *Linear) Func(x []float64) float64 {
	return sumSquares(l.Residuals(x))
}

// Grad: GJ[m] = Σ_q 2·(Bz(x,q)+b0[q])·dBz[m][q]
func (l *Linear) Grad(grad, x []float64) {
	r := l.Residuals(x)
	g := mat.NewVecDense(len(grad), grad)
	g.MulVec(l.dbz, mat.NewVecDense(len(r), r))
	g.ScaleVec(2.0, g)
}

// Hess は定数行列をコピーするだけ（x は使わない）
func (l *Linear) Hess(hess *mat.SymDense, _ []float64) {
	hess.CopySym(l.hm)
}

// InitialGuess は中央サンプル点の平均残留磁場を打ち消す一様電流
//
//	I0 = −4π·gamma·avg(b0) / (mu0·Σ_m C[m][q0])
func (l *Linear) InitialGuess() []float64 {
	avg := 0.0
	for _, v := range l.b0 {
		avg += v
	}
	avg /= float64(len(l.b0))

	q0 := l.stack.Center()
	field := 0.0
	for m := 0; m < l.stack.M(); m++ {
		field += l.coef.At(m, q0)
	}
	x0 := make([]float64, l.stack.M())
	if field == 0 {
		return x0
	}
	v := -avg / (l.scale * field)
	for i := range x0 {
		x0[i] = v
	}
	return x0
}

// LeastSquares は正規方程式 (AᵀA)x = −Aᵀb を Cholesky で直接解く。
// A[q][m] = dBz[m][q]。ソルバーを使わない閉形式の答え。
func (l *Linear) LeastSquares(b0 []float64) ([]float64, error) {
	checkDims(l.stack, b0)
	normal := mat.NewSymDense(l.Dim(), nil)
	normal.SymOuterK(1.0, l.dbz)

	var ch mat.Cholesky
	if ok := ch.Factorize(normal); !ok {
		return nil, fmt.Errorf("%w: normal matrix is not positive definite", ErrSingular)
	}
	rhs := mat.NewVecDense(l.Dim(), nil)
	rhs.MulVec(l.dbz, mat.NewVecDense(len(b0), append([]float64(nil), b0...)))
	rhs.ScaleVec(-1.0, rhs)

	x := mat.NewVecDense(l.Dim(), nil)
	if err := ch.SolveVecTo(x, rhs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}
	return x.RawVector().Data, nil
}
