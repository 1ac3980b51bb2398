package ripple

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubastard/liquid/engine/core"
)

// gridSampler is a nearest-texel sampler over a w x h field.
type gridSampler struct {
	w, h int
	px   [][4]float32
}

func (g *gridSampler) Size() (int, int) { return g.w, g.h }

func (g *gridSampler) At(x, y int) [4]float32 {
	x = min(max(x, 0), g.w-1)
	y = min(max(y, 0), g.h-1)
	return g.px[y*g.w+x]
}

func (g *gridSampler) Sample(u, v float32) [4]float32 {
	return g.At(int(u*float32(g.w)), int(v*float32(g.h)))
}

func uniformField(w, h int, p float32) *gridSampler {
	g := &gridSampler{w: w, h: h, px: make([][4]float32, w*h)}
	for i := range g.px {
		g.px[i] = [4]float32{p, 0, 0, 0}
	}
	return g
}

func simulateAll(t *testing.T, field *gridSampler, u SimulationUniforms) [][4]float32 {
	t.Helper()
	in := core.FragmentInput{
		Width: field.w, Height: field.h,
		Uniforms: u.values(),
		Samplers: map[string]core.Sampler{"uField": field},
	}
	out := make([][4]float32, field.w*field.h)
	for y := 0; y < field.h; y++ {
		for x := 0; x < field.w; x++ {
			in.X, in.Y = x, y
			out[y*field.w+x] = simulateFragment(&in)
		}
	}
	return out
}

func TestSimulateFrameZeroIsNeutral(t *testing.T) {
	out := simulateAll(t, uniformField(3, 3, 5), SimulationUniforms{Frame: 0})
	for _, c := range out {
		assert.Equal(t, [4]float32{}, c)
	}
}

func TestSimulateEdgesReflect(t *testing.T) {
	// a flat field has no curvature anywhere, borders included
	out := simulateAll(t, uniformField(5, 4, 1), SimulationUniforms{Frame: 1})

	vel := float32(0) - waveSpring*waveDelta*1
	vel *= 1 - waveVelDamping*waveDelta
	for i, c := range out {
		assert.InDelta(t, waveDecay, c[0], 1e-6, "texel %d", i)
		assert.InDelta(t, vel, c[1], 1e-6, "texel %d", i)
		assert.Zero(t, c[2])
		assert.Zero(t, c[3])
	}
}

func TestSimulateGradient(t *testing.T) {
	f := uniformField(3, 1, 0)
	f.px[0][0], f.px[2][0] = 1, 3
	out := simulateAll(t, f, SimulationUniforms{Frame: 2})
	assert.InDelta(t, 1.0, out[1][2], 1e-6, "(right - left) / 2")
	assert.Zero(t, out[1][3])
}

func TestSimulateIgnoresInactivePointer(t *testing.T) {
	out := simulateAll(t, uniformField(4, 4, 0), SimulationUniforms{
		Frame:    3,
		Pointer:  PointerState{X: 2, Y: 2},
		Radius:   10,
		Strength: 1,
	})
	for _, c := range out {
		assert.Equal(t, [4]float32{}, c)
	}
}

func TestRenderUndisturbedShowsImage(t *testing.T) {
	img := &gridSampler{w: 1, h: 1, px: [][4]float32{{0.2, 0.4, 0.6, 1}}}
	in := core.FragmentInput{
		Width: 2, Height: 2,
		Samplers: map[string]core.Sampler{
			"uField": uniformField(2, 2, 0),
			"uImage": img,
		},
	}
	c := renderFragment(&in)
	require.Equal(t, float32(1), c[3])
	// only the faint flat-surface highlight is added
	assert.InDelta(t, 0.2, c[0], 0.02)
	assert.InDelta(t, c[0]-0.2, c[2]-0.6, 1e-6)
}

func TestRenderTransparentStaysTransparent(t *testing.T) {
	in := core.FragmentInput{
		Width: 2, Height: 2,
		Samplers: map[string]core.Sampler{
			"uField": uniformField(2, 2, 0),
			"uImage": &gridSampler{w: 1, h: 1, px: [][4]float32{{}}},
		},
	}
	assert.Zero(t, renderFragment(&in)[3])
}
