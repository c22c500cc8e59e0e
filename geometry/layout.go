package geometry

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidSampleCount: コイル数・サンプル点数が 1 未満になる入力
var ErrInvalidSampleCount = errors.New("invalid sample count")

// Stack はコイル位置 Zm とサンプル点位置 Zq（どちらも 0 に対して対称）
type Stack struct {
	W  float64
	Zm []float64
	Zq []float64
}

// M はコイル数
func (s Stack) M() int { return len(s.Zm) }

// Q はサンプル点数
func (s Stack) Q() int { return len(s.Zq) }

// Center は中央サンプル点（z=0）の添字
func (s Stack) Center() int { return (len(s.Zq) - 1) / 2 }

// OddCount: n = int(length/w)。偶数なら +1、奇数なら +2（元の計算式どおり）
func OddCount(length, w float64) (int, error) {
	if math.IsNaN(length) || math.IsInf(length, 0) || length < 0 {
		return 0, fmt.Errorf("%w: length=%g", ErrInvalidSampleCount, length)
	}
	if math.IsNaN(w) || math.IsInf(w, 0) || w <= 0 {
		return 0, fmt.Errorf("%w: spacing w=%g", ErrInvalidSampleCount, w)
	}
	r := length / w
	if r > float64(math.MaxInt32) {
		return 0, fmt.Errorf("%w: %g/%g is too many points", ErrInvalidSampleCount, length, w)
	}
	n := int(r)
	if n%2 == 0 {
		n++
	} else {
		n += 2
	}
	if n < 1 {
		return 0, fmt.Errorf("%w: n=%d", ErrInvalidSampleCount, n)
	}
	return n, nil
}

// Positions: z_i = -((n-1)/2)·w + i·w
func Positions(n int, w float64) []float64 {
	z := make([]float64, n)
	half := float64(n-1) / 2.0
	for i := range z {
		z[i] = -half*w + w*float64(i)
	}
	return z
}

// Layout は最適化長 L（コイル）と測定長 L0（サンプル点）から Stack を作る
func Layout(l, l0, w float64) (Stack, error) {
	m, err := OddCount(l, w)
	if err != nil {
		return Stack{}, fmt.Errorf("coils: %w", err)
	}
	q, err := OddCount(l0, w)
	if err != nil {
		return Stack{}, fmt.Errorf("samples: %w", err)
	}
	return Stack{W: w, Zm: Positions(m, w), Zq: Positions(q, w)}, nil
}
