// Package solver はヘッセ行列を使うニュートン系の無制約最小化。
// Newton-CG と信頼領域法3種（exact / Krylov / Steihaug-CG）を持つ。
//
// 収束判定はソルバー内部で行う：Newton-CG は平均ステップ長、
// 信頼領域法は勾配ノルム。収束しなくても最後の反復点を返す。
package solver

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// ErrDidNotConverge は Result.Err が返す。致命的ではない。
var ErrDidNotConverge = errors.New("optimization did not converge")

// Method は最小化アルゴリズム
type Method int

const (
	TrustExact  Method = 1
	TrustKrylov Method = 2
	TrustNCG    Method = 3
	NewtonCG    Method = 4
)

// MethodFromCode: 1=trust-exact, 2=trust-krylov, 3=trust-ncg, それ以外は Newton-CG
func MethodFromCode(code int) Method {
	switch Method(code) {
	case TrustExact, TrustKrylov, TrustNCG:
		return Method(code)
	}
	return NewtonCG
}

// ParseMethod は番号または名前（"trust-exact" など）を受け付ける
func ParseMethod(s string) (Method, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		return MethodFromCode(n), nil
	}
	for _, m := range []Method{TrustExact, TrustKrylov, TrustNCG, NewtonCG} {
		if strings.ToLower(m.String()) == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown method %q", s)
}

func (m Method) String() string {
	switch m {
	case TrustExact:
		return "trust-exact"
	case TrustKrylov:
		return "trust-krylov"
	case TrustNCG:
		return "trust-ncg"
	case NewtonCG:
		return "Newton-CG"
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// Status は終了理由
type Status int

const (
	Converged Status = iota
	IterationLimit
	LineSearchFailure
	PredictionFailure
	NotFinite
	// PrecisionLimit: 期待される減少量が f の丸め誤差より小さく、これ以上進めない。
	// 収束として扱う。
	PrecisionLimit
)

func (s Status) String() string {
	switch s {
	case Converged:
		return "converged"
	case IterationLimit:
		return "iteration limit"
	case LineSearchFailure:
		return "line search failure"
	case PredictionFailure:
		return "model failed to predict improvement"
	case NotFinite:
		return "non-finite value"
	case PrecisionLimit:
		return "converged (precision limit)"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Settings はソルバー設定。0 の項目は既定値になる。
type Settings struct {
	// Tol: Newton-CG では平均ステップ長、信頼領域法では勾配ノルムの閾値
	Tol float64
	// MaxIterations: 既定 200·n
	MaxIterations int

	InitialTrustRadius float64 // 既定 1
	MaxTrustRadius     float64 // 既定 1000
	Eta                float64 // ステップ受理の閾値、既定 0.15
}

func (s Settings) withDefaults(n int) Settings {
	if s.MaxIterations <= 0 {
		s.MaxIterations = 200 * n
	}
	if s.InitialTrustRadius <= 0 {
		s.InitialTrustRadius = 1.0
	}
	if s.MaxTrustRadius <= 0 {
		s.MaxTrustRadius = 1000.0
	}
	if s.Eta <= 0 {
		s.Eta = 0.15
	}
	return s
}

// Result は最小化の結果。収束しなかった場合も X は最後の反復点。
type Result struct {
	X          []float64
	F          float64
	GradNorm   float64
	Status     Status
	Method     Method
	Iterations int
	FuncEvals  int
	GradEvals  int
	HessEvals  int
}

func (r Result) Converged() bool { return r.Status == Converged || r.Status == PrecisionLimit }

// Err は収束しなかったとき ErrDidNotConverge を包んで返す
func (r Result) Err() error {
	if r.Converged() {
		return nil
	}
	return fmt.Errorf("%w: %s: %s after %d iterations", ErrDidNotConverge, r.Method, r.Status, r.Iterations)
}

// Minimize は p を x0 から最小化する。
// error を返すのは呼び出し側の誤り（次元・関数の欠落・Tol）のときだけ。
func Minimize(p optimize.Problem, x0 []float64, m Method, s Settings) (Result, error) {
	n := len(x0)
	if n == 0 {
		return Result{}, errors.New("solver: empty initial guess")
	}
	if p.Func == nil || p.Grad == nil || p.Hess == nil {
		return Result{}, errors.New("solver: problem needs Func, Grad and Hess")
	}
	if !(s.Tol > 0) {
		return Result{}, fmt.Errorf("solver: tolerance must be positive, got %g", s.Tol)
	}
	s = s.withDefaults(n)

	e := &evaluator{p: p, res: &Result{Method: m}}
	x := append([]float64(nil), x0...)
	switch m {
	case TrustExact:
		trustRegion(e, x, s, exactSubproblem{})
	case TrustKrylov:
		trustRegion(e, x, s, krylovSubproblem{})
	case TrustNCG:
		trustRegion(e, x, s, steihaugSubproblem{})
	default:
		e.res.Method = NewtonCG
		newtonCG(e, x, s)
	}
	return *e.res, nil
}

// evaluator は評価回数を数えながら Problem を呼ぶ
type evaluator struct {
	p   optimize.Problem
	res *Result
}

func (e *evaluator) f(x []float64) float64 {
	e.res.FuncEvals++
	return e.p.Func(x)
}

func (e *evaluator) g(dst, x []float64) {
	e.res.GradEvals++
	e.p.Grad(dst, x)
}

func (e *evaluator) h(dst *mat.SymDense, x []float64) {
	e.res.HessEvals++
	e.p.Hess(dst, x)
}

// finish は結果を書き込む
func (e *evaluator) finish(x []float64, f float64, g []float64, iters int, st Status) {
	e.res.X = x
	e.res.F = f
	e.res.GradNorm = floats.Norm(g, 2)
	e.res.Iterations = iters
	e.res.Status = st
}

func finite(v ...float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func finiteSlice(v []float64) bool {
	return finite(v...)
}

// mulVec: H·v
func mulVec(h mat.Symmetric, v []float64) []float64 {
	out := mat.NewVecDense(len(v), nil)
	out.MulVec(h, mat.NewVecDense(len(v), v))
	return out.RawVector().Data
}

// quadratic: gᵀp + ½·pᵀHp（モデルの減少量の符号反転）
func quadratic(g []float64, h mat.Symmetric, p []float64) float64 {
	return floats.Dot(g, p) + 0.5*floats.Dot(p, mulVec(h, p))
}
