package soft

import (
	"math"

	"github.com/hubastard/liquid/engine/core"
)

// buffer holds RGBA float texels, bottom row first.
type buffer struct {
	w, h int
	pix  []float32
}

func newBuffer(w, h int) *buffer {
	return &buffer{w: w, h: h, pix: make([]float32, w*h*4)}
}

func (b *buffer) fill(c [4]float32) {
	for i := 0; i < len(b.pix); i += 4 {
		copy(b.pix[i:i+4], c[:])
	}
}

func (b *buffer) at(x, y int) [4]float32 {
	x = min(max(x, 0), b.w-1)
	y = min(max(y, 0), b.h-1)
	i := (y*b.w + x) * 4
	return [4]float32{b.pix[i], b.pix[i+1], b.pix[i+2], b.pix[i+3]}
}

type texture struct {
	id  uint32
	buf *buffer
}

func (t *texture) ID() uint32       { return t.id }
func (t *texture) Size() (int, int) { return t.buf.w, t.buf.h }

type renderTarget struct {
	id  uint32
	tex *texture
}

func (rt *renderTarget) ID() uint32            { return rt.id }
func (rt *renderTarget) Size() (int, int)      { return rt.tex.Size() }
func (rt *renderTarget) Texture() core.Texture { return rt.tex }

type pipeline struct {
	id    uint32
	name  string
	frag  core.FragmentFunc
	blend bool
}

func (p *pipeline) ID() uint32 { return p.id }

type mesh struct{ id uint32 }

func (m *mesh) ID() uint32 { return m.id }

type sampler struct{ buf *buffer }

func (s *sampler) Size() (int, int)       { return s.buf.w, s.buf.h }
func (s *sampler) At(x, y int) [4]float32 { return s.buf.at(x, y) }

// Sample filters bilinearly between the four texels around (u, v), matching
// GL_LINEAR with GL_CLAMP_TO_EDGE.
func (s *sampler) Sample(u, v float32) [4]float32 {
	fx := float64(u)*float64(s.buf.w) - 0.5
	fy := float64(v)*float64(s.buf.h) - 0.5
	x0, y0 := math.Floor(fx), math.Floor(fy)
	tx, ty := float32(fx-x0), float32(fy-y0)
	ix, iy := int(x0), int(y0)

	c00 := s.buf.at(ix, iy)
	c10 := s.buf.at(ix+1, iy)
	c01 := s.buf.at(ix, iy+1)
	c11 := s.buf.at(ix+1, iy+1)
	var out [4]float32
	for k := 0; k < 4; k++ {
		top := c00[k]*(1-tx) + c10[k]*tx
		bot := c01[k]*(1-tx) + c11[k]*tx
		out[k] = top*(1-ty) + bot*ty
	}
	return out
}
