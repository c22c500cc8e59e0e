package solver

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/optimize/functions"
)

var allMethods = []Method{TrustExact, TrustKrylov, TrustNCG, NewtonCG}

// f(x) = ½xᵀAx − bᵀx
func quadraticProblem(a *mat.SymDense, b []float64) optimize.Problem {
	n := len(b)
	return optimize.Problem{
		Func: func(x []float64) float64 {
			ax := mulVec(a, x)
			return 0.5*floats.Dot(x, ax) - floats.Dot(b, x)
		},
		Grad: func(grad, x []float64) {
			ax := mulVec(a, x)
			floats.SubTo(grad, ax, b)
		},
		Hess: func(hess *mat.SymDense, _ []float64) {
			if hess.SymmetricDim() != n {
				panic("bad hessian size")
			}
			hess.CopySym(a)
		},
	}
}

func spd() (*mat.SymDense, []float64) {
	a := mat.NewSymDense(3, []float64{
		4, 1, 0.5,
		1, 3, 0.2,
		0.5, 0.2, 2,
	})
	return a, []float64{1, -2, 0.5}
}

// rosenbrockHess は Σ 100(x_{i+1}−x_i²)² + (1−x_i)² の Hessian
func rosenbrockHess(h *mat.SymDense, x []float64) {
	n := len(x)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			h.SetSym(i, j, 0)
		}
	}
	for i := 0; i < n-1; i++ {
		h.SetSym(i, i, h.At(i, i)+1200*x[i]*x[i]-400*x[i+1]+2)
		h.SetSym(i+1, i+1, h.At(i+1, i+1)+200)
		h.SetSym(i, i+1, h.At(i, i+1)-400*x[i])
	}
}

func rosenbrock() optimize.Problem {
	var r functions.ExtendedRosenbrock
	return optimize.Problem{Func: r.Func, Grad: r.Grad, Hess: rosenbrockHess}
}

func TestRosenbrockHessMatchesFiniteDifference(t *testing.T) {
	var r functions.ExtendedRosenbrock
	for _, x := range [][]float64{{-1.2, 1}, {0.3, -0.7, 2}, {1, 1, 1, 1}} {
		n := len(x)
		h := mat.NewSymDense(n, nil)
		rosenbrockHess(h, x)
		want := mat.NewDense(n, n, nil)
		fd.Jacobian(want, r.Grad, x, &fd.JacobianSettings{Formula: fd.Central})
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				assert.InDelta(t, want.At(i, j), h.At(i, j), 1e-4*(1+math.Abs(want.At(i, j))), "x=%v (%d,%d)", x, i, j)
			}
		}
	}
}

func TestQuadraticAllMethods(t *testing.T) {
	a, b := spd()
	var ch mat.Cholesky
	require.True(t, ch.Factorize(a))
	want := mat.NewVecDense(3, nil)
	require.NoError(t, ch.SolveVecTo(want, mat.NewVecDense(3, b)))

	for _, m := range allMethods {
		t.Run(m.String(), func(t *testing.T) {
			res, err := Minimize(quadraticProblem(a, b), []float64{3, 3, 3}, m, Settings{Tol: 1e-10})
			require.NoError(t, err)
			assert.True(t, res.Converged(), res.Status.String())
			assert.NoError(t, res.Err())
			assert.Equal(t, m, res.Method)
			for i := range res.X {
				assert.InDelta(t, want.AtVec(i), res.X[i], 1e-7)
			}
			assert.Positive(t, res.FuncEvals)
			assert.Positive(t, res.HessEvals)
		})
	}
}

func TestRosenbrockAllMethods(t *testing.T) {
	for _, m := range allMethods {
		t.Run(m.String(), func(t *testing.T) {
			res, err := Minimize(rosenbrock(), []float64{-1.2, 1}, m, Settings{Tol: 1e-8})
			require.NoError(t, err)
			require.True(t, res.Converged(), res.Status.String())
			assert.InDelta(t, 1, res.X[0], 1e-4)
			assert.InDelta(t, 1, res.X[1], 1e-4)
			assert.Less(t, res.F, 1e-8)
		})
	}
}

func TestAgreesWithGonumNewton(t *testing.T) {
	a, b := spd()
	p := quadraticProblem(a, b)
	x0 := []float64{-1, 2, 0}
	ref, err := optimize.Minimize(p, x0, nil, &optimize.Newton{})
	require.NoError(t, err)

	for _, m := range allMethods {
		res, err := Minimize(p, x0, m, Settings{Tol: 1e-10})
		require.NoError(t, err)
		for i := range x0 {
			assert.InDelta(t, ref.X[i], res.X[i], 1e-6, "%s", m)
		}
	}
}

func TestIterationLimit(t *testing.T) {
	for _, m := range allMethods {
		res, err := Minimize(rosenbrock(), []float64{-1.2, 1}, m, Settings{Tol: 1e-8, MaxIterations: 1})
		require.NoError(t, err)
		assert.Equal(t, IterationLimit, res.Status, "%s", m)
		assert.False(t, res.Converged())
		assert.True(t, errors.Is(res.Err(), ErrDidNotConverge))
		// 収束しなくても最後の点を返す
		require.Len(t, res.X, 2)
		assert.Equal(t, 1, res.Iterations)
	}
}

func TestNewtonCGUnreachableTolerance(t *testing.T) {
	// ステップが Tol に届く前に f の差が丸め誤差に埋もれても、失敗にはしない
	a, b := spd()
	var ch mat.Cholesky
	require.True(t, ch.Factorize(a))
	want := mat.NewVecDense(3, nil)
	require.NoError(t, ch.SolveVecTo(want, mat.NewVecDense(3, b)))

	for _, tol := range []float64{1e-10, 1e-14} {
		res, err := Minimize(quadraticProblem(a, b), []float64{3, 3, 3}, NewtonCG, Settings{Tol: tol})
		require.NoError(t, err)
		require.True(t, res.Converged(), "tol=%g: %s", tol, res.Status)
		assert.NoError(t, res.Err())
		for i := range res.X {
			assert.InDelta(t, want.AtVec(i), res.X[i], 1e-7, "tol=%g", tol)
		}
	}
}

func TestStalledLineSearch(t *testing.T) {
	// 勾配が Tol 未満
	assert.Equal(t, Converged, stalled(1, []float64{1e-12, 0}, []float64{-1, 0}, 1e-20, 1e-8))
	// 残りの Newton ステップが xtol 以内
	assert.Equal(t, Converged, stalled(1, []float64{1, 0}, []float64{-1e-9, 0}, 2e-8, 1e-12))
	// 期待される減少が丸め誤差以下
	assert.Equal(t, PrecisionLimit, stalled(1, []float64{1e-8, 0}, []float64{-1e-8, 0}, 1e-20, 1e-12))
	// 本当に進めない
	assert.Equal(t, LineSearchFailure, stalled(1, []float64{1, 0}, []float64{-1, 0}, 1e-8, 1e-8))

	r := Result{Status: PrecisionLimit, Method: NewtonCG}
	assert.True(t, r.Converged())
	assert.NoError(t, r.Err())
	r.Status = LineSearchFailure
	assert.False(t, r.Converged())
	assert.True(t, errors.Is(r.Err(), ErrDidNotConverge))
}

func TestFatalArguments(t *testing.T) {
	a, b := spd()
	p := quadraticProblem(a, b)

	_, err := Minimize(p, nil, NewtonCG, Settings{Tol: 1e-8})
	assert.Error(t, err)

	_, err = Minimize(optimize.Problem{Func: p.Func, Grad: p.Grad}, []float64{0, 0, 0}, TrustExact, Settings{Tol: 1e-8})
	assert.Error(t, err)

	_, err = Minimize(p, []float64{0, 0, 0}, TrustNCG, Settings{})
	assert.Error(t, err)

	_, err = Minimize(p, []float64{0, 0, 0}, TrustNCG, Settings{Tol: math.NaN()})
	assert.Error(t, err)
}

func TestStartAtMinimum(t *testing.T) {
	a := mat.NewSymDense(2, []float64{2, 0, 0, 2})
	p := quadraticProblem(a, []float64{0, 0})
	for _, m := range allMethods {
		res, err := Minimize(p, []float64{0, 0}, m, Settings{Tol: 1e-8})
		require.NoError(t, err)
		assert.True(t, res.Converged(), "%s", m)
		assert.Zero(t, res.Iterations)
	}
}

func TestTrustExactEscapesSaddle(t *testing.T) {
	// f = x² + (y²−1)²。(0.5, 0) では勾配が y 成分を持たず、
	// y 方向は負の曲率（hard case）。
	p := optimize.Problem{
		Func: func(x []float64) float64 {
			return x[0]*x[0] + (x[1]*x[1]-1)*(x[1]*x[1]-1)
		},
		Grad: func(g, x []float64) {
			g[0] = 2 * x[0]
			g[1] = 4 * x[1] * (x[1]*x[1] - 1)
		},
		Hess: func(h *mat.SymDense, x []float64) {
			h.SetSym(0, 0, 2)
			h.SetSym(0, 1, 0)
			h.SetSym(1, 1, 12*x[1]*x[1]-4)
		},
	}
	res, err := Minimize(p, []float64{0.5, 0}, TrustExact, Settings{Tol: 1e-9})
	require.NoError(t, err)
	require.True(t, res.Converged())
	assert.InDelta(t, 0, res.X[0], 1e-6)
	assert.InDelta(t, 1, math.Abs(res.X[1]), 1e-6)
}

func TestSubproblemsStayInRegion(t *testing.T) {
	h := mat.NewSymDense(3, []float64{
		1, 2, 0,
		2, -1, 0.5,
		0, 0.5, -3,
	})
	g := []float64{0.3, -1, 2}
	for name, sub := range map[string]subproblem{
		"exact":    exactSubproblem{},
		"krylov":   krylovSubproblem{},
		"steihaug": steihaugSubproblem{},
	} {
		for _, radius := range []float64{0.1, 1, 10} {
			p, hits := sub.solve(g, h, radius)
			assert.LessOrEqual(t, floats.Norm(p, 2), radius*(1+1e-8), "%s r=%g", name, radius)
			assert.True(t, hits, "%s r=%g", name, radius)
			assert.Negative(t, quadratic(g, h, p), "%s r=%g", name, radius)
		}
	}
}

func TestExactSubproblemIsOptimal(t *testing.T) {
	// 境界上の解は全方位探索より悪くないこと
	h := mat.NewSymDense(2, []float64{1, 0.5, 0.5, -2})
	g := []float64{0.4, 0.1}
	const radius = 0.7
	p, hits := exactSubproblem{}.solve(g, h, radius)
	require.True(t, hits)
	best := quadratic(g, h, p)
	for k := 0; k < 720; k++ {
		th := float64(k) * math.Pi / 360
		q := []float64{radius * math.Cos(th), radius * math.Sin(th)}
		assert.GreaterOrEqual(t, quadratic(g, h, q), best-1e-9)
	}
}

func TestBoundaryIntersections(t *testing.T) {
	ta, tb := boundaryIntersections([]float64{0, 0}, []float64{1, 0}, 2)
	assert.InDelta(t, -2, ta, 1e-12)
	assert.InDelta(t, 2, tb, 1e-12)

	ta, tb = boundaryIntersections([]float64{0.5, 0}, []float64{0, 2}, 1)
	want := math.Sqrt(0.75) / 2
	assert.InDelta(t, -want, ta, 1e-12)
	assert.InDelta(t, want, tb, 1e-12)
}

func TestMethodFromCode(t *testing.T) {
	for code, want := range map[int]Method{
		1: TrustExact,
		2: TrustKrylov,
		3: TrustNCG,
		4: NewtonCG,
		0: NewtonCG,
		7: NewtonCG,
	} {
		assert.Equal(t, want, MethodFromCode(code), "code %d", code)
	}
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("trust-krylov")
	require.NoError(t, err)
	assert.Equal(t, TrustKrylov, m)

	m, err = ParseMethod(" newton-cg ")
	require.NoError(t, err)
	assert.Equal(t, NewtonCG, m)

	m, err = ParseMethod("3")
	require.NoError(t, err)
	assert.Equal(t, TrustNCG, m)

	_, err = ParseMethod("bfgs")
	assert.Error(t, err)
}
