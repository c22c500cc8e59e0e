// Package coupling はコイル1個がサンプル点に作る軸方向磁場（単位パラメータあたり）の
// 係数を計算する。線形モデル・tanh 緩和モデル・ステップ関数モデルの3つの戦略を持つ。
package coupling

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ichijohodaka/spiral-shim/geometry"
)

// Coefficient: ln((g2+s2)/(g1+s1)) + g1/s1 − g2/s2, s = √(g² + 4·dz²)
//
// dz の2乗にしか依存しない。g2 ≥ g1 なら非負。
func Coefficient(gtd1, gtd2, dz float64) float64 {
	c := 4.0 * dz * dz
	s1 := math.Sqrt(gtd1*gtd1 + c)
	s2 := math.Sqrt(gtd2*gtd2 + c)
	return math.Log((gtd2+s2)/(gtd1+s1)) + gtd1/s1 - gtd2/s2
}

// dCoefficient は Coefficient の gtd2 による1階・2階微分
//
//	∂C/∂g = g²/s³,  ∂²C/∂g² = g·(2c − g²)/s⁵
func dCoefficient(gtd2, dz float64) (d1, d2 float64) {
	c := 4.0 * dz * dz
	s2 := gtd2*gtd2 + c
	s := math.Sqrt(s2)
	s3 := s2 * s
	d1 = gtd2 * gtd2 / s3
	d2 = gtd2 * (2.0*c - gtd2*gtd2) / (s3 * s2)
	return d1, d2
}

// Strategy はコイル1個（決定変数 x）が距離 dz の点に作る磁場（スケール前）
type Strategy interface {
	Field(x, dz float64) float64
}

// Smooth は最適化で使える（微分可能な）戦略
type Smooth interface {
	Strategy
	// Derivative は ∂Field/∂x
	Derivative(x, dz float64) float64
	// Curvature は ∂²Field/∂x²
	Curvature(x, dz float64) float64
}

// Matrix は (m, q) ごとの Field(x[m], zq[q]-zm[m]) を M×Q 行列で返す
func Matrix(s Strategy, x []float64, st geometry.Stack) *mat.Dense {
	if len(x) != st.M() {
		panic("coupling: decision vector length mismatch")
	}
	out := mat.NewDense(st.M(), st.Q(), nil)
	for m, zm := range st.Zm {
		for q, zq := range st.Zq {
			out.Set(m, q, s.Field(x[m], zq-zm))
		}
	}
	return out
}

// Sum はサンプル点 q での全コイルの合計磁場（スケール前）
func Sum(s Strategy, x []float64, st geometry.Stack, q int) float64 {
	v := 0.0
	for m, zm := range st.Zm {
		v += s.Field(x[m], st.Zq[q]-zm)
	}
	return v
}
