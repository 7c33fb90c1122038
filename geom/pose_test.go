package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeAngle(t *testing.T) {
	require.Equal(t, 0.0, NormalizeAngle(0))
	require.InDelta(t, math.Pi/2, NormalizeAngle(math.Pi/2), 1e-12)
	require.InDelta(t, -math.Pi/2, NormalizeAngle(3*math.Pi/2), 1e-12)
	require.InDelta(t, 0.0, NormalizeAngle(4*math.Pi), 1e-12)
	require.LessOrEqual(t, NormalizeAngle(7.5), math.Pi)
	require.Greater(t, NormalizeAngle(-7.5), -math.Pi)

	// both half-turn representations land on the canonical +pi.
	require.Equal(t, math.Pi, NormalizeAngle(math.Pi))
	require.Equal(t, math.Pi, NormalizeAngle(-math.Pi))
}

func TestComposeTranslation(t *testing.T) {
	a := Pose{X: 1, Y: 2, Z: 3}
	b := Pose{X: 10, Y: 20, Z: 30}

	c := Compose(a, b)
	require.Equal(t, Pose{X: 11, Y: 22, Z: 33}, c)
}

func TestComposeRotation(t *testing.T) {
	// a quarter turn maps the child's +x onto the parent's +y.
	a := Pose{A: math.Pi / 2}
	b := Pose{X: 1}

	c := Compose(a, b)
	require.InDelta(t, 0, c.X, 1e-12)
	require.InDelta(t, 1, c.Y, 1e-12)
	require.InDelta(t, math.Pi/2, c.A, 1e-12)
}

func TestComposeNormalizesHeading(t *testing.T) {
	c := Compose(Pose{A: 3}, Pose{A: 3})
	require.LessOrEqual(t, c.A, math.Pi)
	require.Greater(t, c.A, -math.Pi)
}

func TestInverseRoundTrip(t *testing.T) {
	poses := []Pose{
		{},
		{X: 1, Y: -2, Z: 0.5, A: 0.3},
		{X: -4.2, Y: 7, Z: -1, A: -2.9},
		{X: 0, Y: 0, Z: 0, A: math.Pi / 3},
	}

	for _, p := range poses {
		id := Compose(p, p.Inverse())
		require.InDelta(t, 0, id.X, 1e-12)
		require.InDelta(t, 0, id.Y, 1e-12)
		require.InDelta(t, 0, id.Z, 1e-12)
		require.InDelta(t, 0, id.A, 1e-12)
	}
}

func TestToLocalInvertsCompose(t *testing.T) {
	frame := Pose{X: 3, Y: -1, Z: 2, A: 0.7}
	local := Pose{X: 0.5, Y: 0.25, Z: 0.1, A: -1.2}

	global := Compose(frame, local)
	back := ToLocal(global, frame)

	require.InDelta(t, local.X, back.X, 1e-12)
	require.InDelta(t, local.Y, back.Y, 1e-12)
	require.InDelta(t, local.Z, back.Z, 1e-12)
	require.InDelta(t, local.A, back.A, 1e-12)
}

func TestVelocityIsZero(t *testing.T) {
	require.True(t, Velocity{}.IsZero())
	require.False(t, Velocity{X: 0.1}.IsZero())
	require.False(t, Velocity{A: -0.1}.IsZero())
}
