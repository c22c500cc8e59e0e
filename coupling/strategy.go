package coupling

import (
	"errors"
	"fmt"
	"math"

	"github.com/ichijohodaka/spiral-shim/geometry"
)

// ErrNumericOverflow: 緩和の鋭さ a と想定角度の組み合わせで cosh² が float64 を超える
var ErrNumericOverflow = errors.New("numeric overflow")

// MaxSharpnessProduct は a·|x| の上限。cosh(a·x)² が有限に収まる範囲。
var MaxSharpnessProduct = math.Log(math.MaxFloat64) / 2.0

// Linear は電流モデル。外側の角度は Rs で固定なので係数は x によらない。
type Linear struct {
	G geometry.Context
}

// Coefficient は単位電流あたりの係数 C[m][q]
func (l Linear) Coefficient(dz float64) float64 {
	return Coefficient(l.G.Gtd1, l.G.Gtd2, dz)
}

func (l Linear) Field(x, dz float64) float64      { return x * l.Coefficient(dz) }
func (l Linear) Derivative(_, dz float64) float64 { return l.Coefficient(dz) }
func (l Linear) Curvature(_, _ float64) float64   { return 0 }

// Relaxed は巻数モデル。符号付き巻数の不連続を tanh(a·x) でなめらかにしたもの。
//
// A が大きいほどステップ関数に近づくが、a·|x| が MaxSharpnessProduct を
// 超えると微分式の cosh² がオーバーフローする。Validate で事前に確認すること。
type Relaxed struct {
	G geometry.Context
	A float64
}

// Validate は想定する最大角度 maxAngle [rad] に対して A が使えるか確認する
func (r Relaxed) Validate(maxAngle float64) error {
	if math.IsNaN(r.A) || math.IsInf(r.A, 0) || r.A <= 0 {
		return fmt.Errorf("%w: sharpness a=%g must be positive", ErrNumericOverflow, r.A)
	}
	if p := r.A * math.Abs(maxAngle); !(p <= MaxSharpnessProduct) {
		return fmt.Errorf("%w: a·|x| = %g·%g = %g exceeds %g", ErrNumericOverflow, r.A, maxAngle, p, MaxSharpnessProduct)
	}
	return nil
}

// EffectiveAngle: theta2(x) = theta1 + x·tanh(a·x)
func (r Relaxed) EffectiveAngle(x float64) float64 {
	return r.G.Theta1 + x*math.Tanh(r.A*x)
}

func (r Relaxed) Field(x, dz float64) float64 {
	g2 := r.G.Diameter(r.EffectiveAngle(x))
	return math.Tanh(r.A*x) * Coefficient(r.G.Gtd1, g2, dz)
}

// relaxation は tanh(a·x), sech²(a·x), gtd2 とその1階・2階微分をまとめて返す
func (r Relaxed) relaxation(x float64) (t, sech2, u, du, ddu float64) {
	a := r.A
	t = math.Tanh(a * x)
	ch := math.Cosh(a * x)
	sech2 = 1.0 / (ch * ch)
	u = r.G.Diameter(r.G.Theta1 + x*t)
	du = 2.0 * r.G.Gamma * (t + a*x*sech2)
	ddu = 4.0 * r.G.Gamma * a * sech2 * (1.0 - a*x*t)
	return
}

// Derivative: a·sech²(a·x)·C + tanh(a·x)·∂C/∂g·dg/dx
func (r Relaxed) Derivative(x, dz float64) float64 {
	t, sech2, u, du, _ := r.relaxation(x)
	c := Coefficient(r.G.Gtd1, u, dz)
	c1, _ := dCoefficient(u, dz)
	return r.A*sech2*c + t*c1*du
}

func (r Relaxed) Curvature(x, dz float64) float64 {
	a := r.A
	t, sech2, u, du, ddu := r.relaxation(x)
	c := Coefficient(r.G.Gtd1, u, dz)
	c1, c2 := dCoefficient(u, dz)
	return -2.0*a*a*sech2*t*c + 2.0*a*sech2*c1*du + t*(c2*du*du+c1*ddu)
}

// Step は符号付き巻数そのもの（緩和なし）。x=0 で微分できないので
// 最適化後の評価専用。
type Step struct {
	G geometry.Context
}

func (s Step) Field(x, dz float64) float64 {
	v := Coefficient(s.G.Gtd1, s.G.Diameter(s.G.Theta1+math.Abs(x)), dz)
	if x < 0 {
		return -v
	}
	return v
}
