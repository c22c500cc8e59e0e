// Package postproc は最適化後の処理：電流ノイズの付加、誤差曲線、
// 巻数の整数化、各コイルの長さ・抵抗・消費電力。
package postproc

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/ichijohodaka/spiral-shim/coupling"
	"github.com/ichijohodaka/spiral-shim/geometry"
)

// Perturb は各要素に [−inoise, +inoise] の一様乱数を足したコピーを返す
func Perturb(x []float64, inoise float64, rng *rand.Rand) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = v + inoise*(2.0*rng.Float64()-1.0)
	}
	return out
}

// ErrorCurve: err[q] = scale·Σ_m Field(x_m, zq−zm) + b0[q]
func ErrorCurve(s coupling.Strategy, scale float64, x []float64, st geometry.Stack, b0 []float64) []float64 {
	if len(b0) != st.Q() {
		panic(fmt.Sprintf("postproc: %d targets for %d sample points", len(b0), st.Q()))
	}
	e := make([]float64, st.Q())
	for q := range e {
		e[q] = scale*coupling.Sum(s, x, st, q) + b0[q]
	}
	return e
}

// ImprovedFraction は |err[q]| < |b0[q]| となるサンプル点の割合
func ImprovedFraction(errs, b0 []float64) float64 {
	if len(b0) == 0 {
		return 0
	}
	n := 0
	for q := range b0 {
		if math.Abs(errs[q]) < math.Abs(b0[q]) {
			n++
		}
	}
	return float64(n) / float64(len(b0))
}

// Policy は角度から整数巻数への丸め方
type Policy int

const (
	// Truncate は 0 方向への切り捨て
	Truncate Policy = iota
	// Round は最も近い整数
	Round
)

func (p Policy) String() string {
	switch p {
	case Truncate:
		return "truncate"
	case Round:
		return "round"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// ParsePolicy は "truncate"（既定）か "round"
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "truncate", "trunc":
		return Truncate, nil
	case "round", "nearest":
		return Round, nil
	}
	return 0, fmt.Errorf("unknown quantization policy %q", s)
}

const snapTol = 1e-9

// MaxTurns は1コイルあたりの巻数の絶対値の上限
const MaxTurns = math.MaxInt32

// ErrTurnsOutOfRange: 角度が非有限、または巻数が MaxTurns を超える
var ErrTurnsOutOfRange = errors.New("turns out of range")

// Quantize は角度 x [rad] をフルターン数にし、整数化した角度 turns·2π も返す。
// 整数から相対 1e-9 以内の値は先にその整数に寄せるので、
// Quantize(adjusted) は同じ turns を返す。符号は反転しない。
func Quantize(x []float64, p Policy) (turns []int, adjusted []float64, err error) {
	turns = make([]int, len(x))
	adjusted = make([]float64, len(x))
	for i, v := range x {
		n := v / (2.0 * math.Pi)
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, nil, fmt.Errorf("%w: coil %d angle %g", ErrTurnsOutOfRange, i, v)
		}
		if r := math.Round(n); math.Abs(n-r) <= snapTol*math.Max(1, math.Abs(r)) {
			n = r
		}
		switch p {
		case Round:
			n = math.Round(n)
		default:
			n = math.Trunc(n)
		}
		if math.Abs(n) > MaxTurns {
			return nil, nil, fmt.Errorf("%w: coil %d needs %g turns", ErrTurnsOutOfRange, i, n)
		}
		turns[i] = int(n)
		adjusted[i] = float64(turns[i]) * 2.0 * math.Pi
	}
	return turns, adjusted, nil
}

// Winding はコイル1個の導体長と抵抗
type Winding struct {
	Length float64 // [m]
	WireR  float64 // 丸線 [Ω]
	StripR float64 // PCB ストリップ [Ω]
}

// Windings は整数化した角度からコイルごとの長さ・抵抗を求める。
// 負の角度は逆巻きなので theta2 = theta1 + |x|。
func Windings(g geometry.Context, adjusted []float64) []Winding {
	ws := make([]Winding, len(adjusted))
	for m, x := range adjusted {
		l := g.Length(g.Theta1 + math.Abs(x))
		ws[m] = Winding{Length: l, WireR: g.WireResistance(l), StripR: g.StripResistance(l)}
	}
	return ws
}

// Spiral は電流最適化の（全コイル共通の）スパイラル1個
func Spiral(g geometry.Context) Winding {
	l := g.SpiralLength(g.Gtd1, g.Gtd2)
	return Winding{Length: l, WireR: g.WireResistance(l), StripR: g.StripResistance(l)}
}

// Total はスタック全体（直列）の長さと抵抗
func Total(ws []Winding) Winding {
	var t Winding
	for _, w := range ws {
		t.Length += w.Length
		t.WireR += w.WireR
		t.StripR += w.StripR
	}
	return t
}

// Power は消費電力 [W]
type Power struct {
	Wire  float64
	Strip float64
}

// CurrentPower: 各コイルに別々の電流 I_m を流すとき P = Σ_m R·I_m²
func CurrentPower(spiral Winding, currents []float64) Power {
	var p Power
	for _, i := range currents {
		p.Wire += spiral.WireR * i * i
		p.Strip += spiral.StripR * i * i
	}
	return p
}

// StackPower: 全コイル直列に電流 I を流すとき P = R_total·I²
func StackPower(total Winding, current float64) Power {
	return Power{
		Wire:  total.WireR * current * current,
		Strip: total.StripR * current * current,
	}
}
