// Package geometry はスパイラルコイルの寸法（ピッチ・補正半径・角度範囲）と
// 長さ・抵抗の計算をまとめる。
package geometry

import (
	"errors"
	"fmt"
	"math"
)

// ErrDegenerateGeometry: ピッチや半径が 0・負・非有限、または巻数 0 のとき
var ErrDegenerateGeometry = errors.New("degenerate geometry")

// Params は物理パラメータ（単位はすべて m, Ω·m）
type Params struct {
	D0    float64 // 導体径（絶縁なし）またはストリップ幅
	Delta float64 // 絶縁厚またはストリップ間ギャップの半分
	H     float64 // ストリップ厚
	R     float64 // 内半径
	Rs    float64 // 外半径（電流最適化のみ）
	Rho   float64 // 抵抗率
}

// Context は一度だけ計算して以後は読み取り専用で使う幾何定数。
// 値渡しで使う（ポインタで共有しない）。
type Context struct {
	D0    float64
	H     float64
	Rho   float64
	D     float64 // d = d0 + 2·delta
	R     float64 // 補正後の内半径
	Rs    float64 // 補正後の外半径（巻数最適化では 0）
	Gamma float64 // d/(2π)

	Theta1 float64
	Theta2 float64
	Gtd1   float64
	Gtd2   float64
}

// snap: R' = d·⌊R/d⌋ + d/2
func snap(r, d float64) float64 {
	return d*math.Floor(r/d) + d/2.0
}

func checkParams(p Params) error {
	vals := []struct {
		name string
		v    float64
	}{
		{"d0", p.D0}, {"delta", p.Delta}, {"h", p.H}, {"R", p.R}, {"rho", p.Rho},
	}
	for _, x := range vals {
		if math.IsNaN(x.v) || math.IsInf(x.v, 0) || x.v < 0 {
			return fmt.Errorf("%w: %s=%g", ErrDegenerateGeometry, x.name, x.v)
		}
	}
	if p.D0 == 0 {
		return fmt.Errorf("%w: zero conductor diameter", ErrDegenerateGeometry)
	}
	if p.H == 0 {
		return fmt.Errorf("%w: zero strip thickness", ErrDegenerateGeometry)
	}
	return nil
}

func newContext(p Params) Context {
	d := p.D0 + 2.0*p.Delta
	c := Context{
		D0:    p.D0,
		H:     p.H,
		Rho:   p.Rho,
		D:     d,
		R:     snap(p.R, d),
		Gamma: d / (2.0 * math.Pi),
	}
	c.Theta1 = c.angle(c.R)
	c.Gtd1 = c.Diameter(c.Theta1)
	return c
}

// New は電流最適化用（内外半径とも固定）の Context を作る
func New(p Params) (Context, error) {
	if err := checkParams(p); err != nil {
		return Context{}, err
	}
	if math.IsNaN(p.Rs) || math.IsInf(p.Rs, 0) || p.Rs < 0 {
		return Context{}, fmt.Errorf("%w: Rs=%g", ErrDegenerateGeometry, p.Rs)
	}
	c := newContext(p)
	c.Rs = snap(p.Rs, c.D)
	if c.Rs <= c.R {
		return Context{}, fmt.Errorf("%w: adjusted radii R=%g Rs=%g give no turns", ErrDegenerateGeometry, c.R, c.Rs)
	}
	c.Theta2 = c.angle(c.Rs)
	c.Gtd2 = c.Diameter(c.Theta2)
	return c, nil
}

// NewTurns は巻数最適化用。外側は最適化変数で決まるので Rs は使わない。
func NewTurns(p Params) (Context, error) {
	if err := checkParams(p); err != nil {
		return Context{}, err
	}
	return newContext(p), nil
}

// theta = 2πR/d − π
func (c Context) angle(r float64) float64 {
	return (2.0*math.Pi*r)/c.D - math.Pi
}

// Diameter: gtd = 2·gamma·theta + d
func (c Context) Diameter(theta float64) float64 {
	return 2.0*c.Gamma*theta + c.D
}

// Turns はスパイラル1個あたりのフルターン数（電流最適化）
func (c Context) Turns() int {
	return int(math.Floor(c.Rs/c.D)) - int(math.Floor(c.R/c.D))
}

// SpiralLength は角度範囲 gtd1..gtd2 のアルキメデススパイラルの長さ
func (c Context) SpiralLength(gtd1, gtd2 float64) float64 {
	g := c.Gamma
	v1 := math.Sqrt(4.0*g*g + gtd1*gtd1)
	v2 := math.Sqrt(4.0*g*g + gtd2*gtd2)
	return (gtd2/(8.0*g))*v2 - (gtd1/(8.0*g))*v1 + (g/2.0)*math.Log((gtd2+v2)/(gtd1+v1))
}

// Length は theta1 から theta2 までの長さ
func (c Context) Length(theta2 float64) float64 {
	return c.SpiralLength(c.Gtd1, c.Diameter(theta2))
}

// WireResistance: 丸線 rho·L/((π/4)·d0²)
func (c Context) WireResistance(length float64) float64 {
	return c.Rho * length / ((math.Pi / 4.0) * c.D0 * c.D0)
}

// StripResistance: PCB ストリップ rho·L/(d0·h)
func (c Context) StripResistance(length float64) float64 {
	return c.Rho * length / (c.D0 * c.H)
}
