package postproc

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ichijohodaka/spiral-shim/coupling"
	"github.com/ichijohodaka/spiral-shim/geometry"
)

func TestPerturbBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	x := []float64{-1, 0, 0.5, 3}
	const inoise = 0.01
	for i := 0; i < 200; i++ {
		y := Perturb(x, inoise, rng)
		require.Len(t, y, len(x))
		for j := range x {
			assert.LessOrEqual(t, math.Abs(y[j]-x[j]), inoise)
		}
	}
	// 元の配列は変えない
	assert.Equal(t, []float64{-1, 0, 0.5, 3}, x)
}

func TestPerturbZeroNoise(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	x := []float64{0.1, 0.2}
	assert.Equal(t, x, Perturb(x, 0, rng))
}

func TestQuantizeTruncate(t *testing.T) {
	x := []float64{2.7 * 2 * math.Pi, -1.5 * 2 * math.Pi, 0.4 * 2 * math.Pi, 0, -0.2}
	turns, adj, err := Quantize(x, Truncate)
	require.NoError(t, err)
	assert.Equal(t, []int{2, -1, 0, 0, 0}, turns)
	for i := range turns {
		assert.InDelta(t, float64(turns[i])*2*math.Pi, adj[i], 1e-12)
	}
}

func TestQuantizeRound(t *testing.T) {
	x := []float64{2.7 * 2 * math.Pi, -1.5001 * 2 * math.Pi, 0.4 * 2 * math.Pi}
	turns, _, err := Quantize(x, Round)
	require.NoError(t, err)
	assert.Equal(t, []int{3, -2, 0}, turns)
}

func TestQuantizeIdempotentAndSignPreserving(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	for _, p := range []Policy{Truncate, Round} {
		for i := 0; i < 500; i++ {
			x := []float64{(rng.Float64() - 0.5) * 400}
			turns, adj, err := Quantize(x, p)
			require.NoError(t, err)
			again, adj2, err := Quantize(adj, p)
			require.NoError(t, err)
			assert.Equal(t, turns, again, "%s x=%g", p, x[0])
			assert.Equal(t, adj, adj2)
			if turns[0] != 0 {
				assert.Equal(t, math.Signbit(x[0]), turns[0] < 0, "%s x=%g", p, x[0])
			}
		}
	}
}

func TestQuantizeSnapsNearIntegers(t *testing.T) {
	// 3 回巻きを少しだけ下回る値
	x := []float64{3*2*math.Pi - 1e-12}
	turns, _, err := Quantize(x, Truncate)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, turns)
}

func TestQuantizeRejectsUnrepresentableAngles(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), 1e12, -1e12} {
		for _, p := range []Policy{Truncate, Round} {
			turns, adj, err := Quantize([]float64{2 * math.Pi, v}, p)
			assert.ErrorIs(t, err, ErrTurnsOutOfRange, "%s x=%g", p, v)
			assert.Nil(t, turns)
			assert.Nil(t, adj)
		}
	}
	// 上限ちょうどは通る
	turns, _, err := Quantize([]float64{MaxTurns * 2 * math.Pi}, Truncate)
	require.NoError(t, err)
	assert.Equal(t, []int{MaxTurns}, turns)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, Truncate, p)
	p, err = ParsePolicy("Round")
	require.NoError(t, err)
	assert.Equal(t, Round, p)
	_, err = ParsePolicy("ceil")
	assert.Error(t, err)
}

func turnsGeometry(t *testing.T) geometry.Context {
	t.Helper()
	g, err := geometry.NewTurns(geometry.Params{D0: 1e-3, H: 35e-6, R: 0.01, Rho: 1.68e-8})
	require.NoError(t, err)
	return g
}

func TestWindings(t *testing.T) {
	g := turnsGeometry(t)
	_, adj, err := Quantize([]float64{0, 5 * 2 * math.Pi, -5 * 2 * math.Pi, 10 * 2 * math.Pi}, Truncate)
	require.NoError(t, err)
	ws := Windings(g, adj)
	require.Len(t, ws, 4)

	assert.InDelta(t, 0, ws[0].Length, 1e-15)
	assert.Zero(t, ws[0].WireR)
	// 逆巻きでも長さは同じ
	assert.InDelta(t, ws[1].Length, ws[2].Length, 1e-15)
	assert.Greater(t, ws[3].Length, ws[1].Length)

	// 5 回巻きの長さは半径 R..R+5d の円周の和に近い
	rings := 0.0
	for k := 0; k < 5; k++ {
		rings += 2 * math.Pi * (g.R + (float64(k)+0.5)*g.D)
	}
	assert.InEpsilon(t, rings, ws[1].Length, 1e-2)
	assert.InEpsilon(t, g.WireResistance(ws[1].Length), ws[1].WireR, 1e-12)
	assert.InEpsilon(t, g.StripResistance(ws[1].Length), ws[1].StripR, 1e-12)

	tot := Total(ws)
	assert.InDelta(t, ws[1].Length+ws[2].Length+ws[3].Length, tot.Length, 1e-12)
}

func TestPower(t *testing.T) {
	w := Winding{Length: 1, WireR: 2, StripR: 5}
	p := CurrentPower(w, []float64{1, -2, 0.5})
	assert.InDelta(t, 2*(1+4+0.25), p.Wire, 1e-12)
	assert.InDelta(t, 5*(1+4+0.25), p.Strip, 1e-12)

	s := StackPower(Winding{WireR: 3, StripR: 7}, 0.5)
	assert.InDelta(t, 0.75, s.Wire, 1e-12)
	assert.InDelta(t, 1.75, s.Strip, 1e-12)
}

func TestSpiral(t *testing.T) {
	g, err := geometry.New(geometry.Params{D0: 1e-3, H: 35e-6, R: 0.01, Rs: 0.02, Rho: 1.68e-8})
	require.NoError(t, err)
	sp := Spiral(g)
	assert.InDelta(t, g.SpiralLength(g.Gtd1, g.Gtd2), sp.Length, 0)
	assert.Positive(t, sp.WireR)
}

func TestErrorCurve(t *testing.T) {
	g := turnsGeometry(t)
	st, err := geometry.Layout(0.04, 0.04, 0.02)
	require.NoError(t, err)
	b0 := []float64{1e-4, 2e-4, 3e-4}

	// 巻数 0 なら残留磁場そのまま
	e := ErrorCurve(coupling.Step{G: g}, 1, make([]float64, st.M()), st, b0)
	assert.InDeltaSlice(t, b0, e, 1e-18)

	// 全コイルを逆巻きにすると場の符号が反転する
	x := []float64{20, 20, 20}
	neg := []float64{-20, -20, -20}
	ep := ErrorCurve(coupling.Step{G: g}, 1e-6, x, st, make([]float64, 3))
	en := ErrorCurve(coupling.Step{G: g}, 1e-6, neg, st, make([]float64, 3))
	for q := range ep {
		assert.InDelta(t, -ep[q], en[q], 1e-18)
		assert.Positive(t, ep[q])
	}

	assert.InDelta(t, 1.0, ImprovedFraction([]float64{0, 0, 0}, b0), 0)
	assert.InDelta(t, 1.0/3, ImprovedFraction([]float64{0, 5, 5}, b0), 1e-12)
}
