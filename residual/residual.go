// Package residual は補正対象の残留磁場 B0(z) [T] を与える。
//
// 最適化側は Func（z [m] → B0 [T] の純関数）しか見ない。
// 既定は St Andrews の測定値に合わせた 8 次多項式。
package residual

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Func は軸上の位置 z [m] での残留磁束密度 [T]
type Func func(z float64) float64

// ErrUnknownSampler は名前から Func を作れないとき
var ErrUnknownSampler = errors.New("unknown residual field")

// StAndrews は mmWave lab (University of St Andrews) の残留磁場の当てはめ係数。
// 定数項から昇順。
var StAndrews = []float64{
	-5.859e-6,
	4.766114e-3,
	-0.486506371,
	-1.4609783504e1,
	4.2600403748e2,
	3.04437e4,
	-8.75637e5,
	-7.65903e6,
	1.46997e8,
}

// Polynomial は Σ_k c_k·z^k（係数は昇順）
type Polynomial []float64

// Eval は Horner 法で評価する
func (p Polynomial) Eval(z float64) float64 {
	v := 0.0
	for k := len(p) - 1; k >= 0; k-- {
		v = v*z + p[k]
	}
	return v
}

// Constant は一様な残留磁場
func Constant(b float64) Func {
	return func(float64) float64 { return b }
}

// Sample は各サンプル点での残留磁場 b0[q] = f(zq[q])
func Sample(f Func, zq []float64) []float64 {
	b0 := make([]float64, len(zq))
	for q, z := range zq {
		b0[q] = f(z)
	}
	return b0
}

// ByName は設定値から Func を選ぶ。
// "standrews"（既定）, "zero", "solenoid"。polynomial は coeffs を使う。
func ByName(name string, coeffs []float64, sol Solenoid) (Func, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "standrews", "st-andrews":
		return Polynomial(StAndrews).Eval, nil
	case "polynomial":
		if len(coeffs) == 0 {
			return nil, fmt.Errorf("%w: polynomial needs coefficients", ErrUnknownSampler)
		}
		return Polynomial(append([]float64(nil), coeffs...)).Eval, nil
	case "zero":
		return Constant(0), nil
	case "solenoid":
		if err := sol.Validate(); err != nil {
			return nil, err
		}
		return sol.Field, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSampler, name)
}

// Solenoid は多層ソレノイドの軸上磁場。合成した残留磁場として使う。
type Solenoid struct {
	L       float64 // 長さ [m]
	R       float64 // 内半径 [m]
	D0      float64 // 線径（被覆なし）[m]
	Delta   float64 // 被覆の厚さ [m]
	Layers  int     // 巻き層の数
	Current float64 // [A]
}

// Validate は形状が意味を持つか確認する
func (s Solenoid) Validate() error {
	for _, v := range []float64{s.L, s.R, s.D0, s.Delta, s.Current} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("solenoid: non-finite parameter")
		}
	}
	if s.L <= 0 || s.R < 0 || s.D0 <= 0 || s.Delta < 0 || s.Layers < 1 {
		return fmt.Errorf("solenoid: invalid geometry L=%g R=%g d0=%g layers=%d", s.L, s.R, s.D0, s.Layers)
	}
	return nil
}

func (s Solenoid) pitch() float64 { return s.D0 + 2.0*s.Delta }

// TurnsPerLayer: N = int(L/d) + 1
func (s Solenoid) TurnsPerLayer() int {
	return int(s.L/s.pitch()) + 1
}

// H は軸上の磁界の強さ [A/m]
//
//	H(z) = I/(4π·gamma) · Σ_m [ (z+gamma·psi)/√(r_m²+(z+gamma·psi)²) − (z−gamma·psi)/√(r_m²+(z−gamma·psi)²) ]
//
// r_m = R + d·(2m−1)/2, psi = π·N
func (s Solenoid) H(z float64) float64 {
	d := s.pitch()
	gamma := d / (2.0 * math.Pi)
	half := gamma * math.Pi * float64(s.TurnsPerLayer())
	v := 0.0
	for m := 1; m <= s.Layers; m++ {
		r := s.R + d*float64(2*m-1)/2.0
		v += (z + half) / math.Hypot(r, z+half)
		v -= (z - half) / math.Hypot(r, z-half)
	}
	return v * s.Current / (4.0 * math.Pi * gamma)
}

// Field は軸上の磁束密度 mu0·H [T]
func (s Solenoid) Field(z float64) float64 {
	return 4.0 * math.Pi * 1.0e-7 * s.H(z)
}

// Oersted は A/m を Oe に換算する
func Oersted(h float64) float64 {
	return h * 4.0 * math.Pi / 1000.0
}

// Profile は [−maxZ, maxZ] を TurnsPerLayer 等分した点で z, H [A/m], H [Oe] を返す
func (s Solenoid) Profile(maxZ float64) (z, h, oe []float64) {
	k := s.TurnsPerLayer()
	dz := 2.0 * maxZ / float64(k)
	for i := 0; i <= k; i++ {
		zi := -maxZ + dz*float64(i)
		hi := s.H(zi)
		z = append(z, zi)
		h = append(h, hi)
		oe = append(oe, Oersted(hi))
	}
	return z, h, oe
}
