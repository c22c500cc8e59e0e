package residual

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStAndrewsPolynomial(t *testing.T) {
	p := Polynomial(StAndrews)
	assert.InDelta(t, -5.859e-6, p.Eval(0), 1e-18)

	z := 0.03
	want := 0.0
	for k, c := range StAndrews {
		want += c * math.Pow(z, float64(k))
	}
	assert.InDelta(t, want, p.Eval(z), 1e-15)
}

func TestSample(t *testing.T) {
	zq := []float64{-0.02, 0, 0.02}
	b0 := Sample(Polynomial{1, 2}.Eval, zq)
	assert.InDeltaSlice(t, []float64{0.96, 1, 1.04}, b0, 1e-15)
	assert.Empty(t, Sample(Constant(3), nil))
}

func TestByName(t *testing.T) {
	f, err := ByName("", nil, Solenoid{})
	require.NoError(t, err)
	assert.Equal(t, StAndrews[0], f(0))

	f, err = ByName("zero", nil, Solenoid{})
	require.NoError(t, err)
	assert.Zero(t, f(0.1))

	f, err = ByName("polynomial", []float64{0, 1}, Solenoid{})
	require.NoError(t, err)
	assert.Equal(t, 0.5, f(0.5))

	_, err = ByName("polynomial", nil, Solenoid{})
	assert.True(t, errors.Is(err, ErrUnknownSampler))

	_, err = ByName("dipole", nil, Solenoid{})
	assert.True(t, errors.Is(err, ErrUnknownSampler))

	_, err = ByName("solenoid", nil, Solenoid{})
	assert.Error(t, err)
}

func testSolenoid() Solenoid {
	return Solenoid{L: 0.2, R: 0.01, D0: 1e-3, Layers: 6, Current: 1}
}

func TestSolenoidLongCoilLimit(t *testing.T) {
	// 長いソレノイドの中心では H ≈ n·I·layers（n = 1/d）
	s := testSolenoid()
	require.NoError(t, s.Validate())
	assert.Equal(t, 201, s.TurnsPerLayer())

	want := float64(s.Layers) * s.Current / s.D0
	assert.InEpsilon(t, want, s.H(0), 0.02)
	assert.InEpsilon(t, 4*math.Pi*1e-7*s.H(0), s.Field(0), 1e-12)
}

func TestSolenoidSymmetricAndDecays(t *testing.T) {
	s := testSolenoid()
	for _, z := range []float64{0.01, 0.05, 0.09, 0.2} {
		assert.InDelta(t, s.H(z), s.H(-z), 1e-9*s.H(0))
	}
	assert.Less(t, s.H(0.1), s.H(0))
	assert.Less(t, s.H(0.3), s.H(0.1))
}

func TestSolenoidProfile(t *testing.T) {
	s := testSolenoid()
	z, h, oe := s.Profile(0.1)
	require.Len(t, z, s.TurnsPerLayer()+1)
	require.Len(t, h, len(z))
	require.Len(t, oe, len(z))
	assert.InDelta(t, -0.1, z[0], 1e-15)
	assert.InDelta(t, 0.1, z[len(z)-1], 1e-12)
	assert.InDelta(t, Oersted(h[3]), oe[3], 1e-12)
}

func TestSolenoidValidate(t *testing.T) {
	s := testSolenoid()
	s.Layers = 0
	assert.Error(t, s.Validate())
	s = testSolenoid()
	s.L = math.NaN()
	assert.Error(t, s.Validate())
}
