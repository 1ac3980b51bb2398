// Package soft is a CPU implementation of core.Renderer. It runs the
// FragmentFunc of each pipeline for every pixel of the bound target and
// treats every mesh as a full-screen quad.
package soft

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/hubastard/liquid/engine/core"
)

// ErrOutOfMemory is returned when an allocation would exceed the texel budget.
var ErrOutOfMemory = errors.New("soft: out of texture memory")

type Stats struct {
	Created   int
	Destroyed int
	Redundant int // Destroy calls on resources already released
	Draws     int
}

type Device struct {
	// MaxTexels caps the texels held by live textures and targets; 0 means unlimited.
	MaxTexels int

	screen *buffer
	bound  *renderTarget

	nextID uint32
	live   map[uint32]core.Resource
	dead   map[uint32]bool
	texels int
	stats  Stats
}

func New() *Device {
	return &Device{
		screen: newBuffer(1, 1),
		live:   map[uint32]core.Resource{},
		dead:   map[uint32]bool{},
	}
}

func (d *Device) Init() error { return nil }

func (d *Device) Resize(w, h int) {
	if w < 1 || h < 1 {
		return
	}
	d.screen = newBuffer(w, h)
}

func (d *Device) Clear(r, g, b, a float32) {
	d.target().fill([4]float32{r, g, b, a})
}

func (d *Device) CreateTexture(desc core.TextureDesc) (core.Texture, error) {
	if desc.Width < 1 || desc.Height < 1 {
		return nil, fmt.Errorf("soft: invalid texture size %dx%d", desc.Width, desc.Height)
	}
	if err := d.reserve(desc.Width * desc.Height); err != nil {
		return nil, err
	}
	buf := newBuffer(desc.Width, desc.Height)
	n := desc.Width * desc.Height * 4
	switch desc.Format {
	case core.TextureRGBA8:
		if desc.Pixels != nil {
			if len(desc.Pixels) < n {
				d.texels -= desc.Width * desc.Height
				return nil, fmt.Errorf("soft: texture needs %d bytes, got %d", n, len(desc.Pixels))
			}
			for i := 0; i < n; i++ {
				buf.pix[i] = float32(desc.Pixels[i]) / 255
			}
		}
	case core.TextureRGBA32F:
		if desc.Floats != nil {
			copy(buf.pix, desc.Floats)
		}
	}
	t := &texture{id: d.id(), buf: buf}
	d.live[t.id] = t
	d.stats.Created++
	return t, nil
}

func (d *Device) CreateRenderTarget(desc core.RenderTargetDesc) (core.RenderTarget, error) {
	if desc.Width < 1 || desc.Height < 1 {
		return nil, fmt.Errorf("soft: invalid render target size %dx%d", desc.Width, desc.Height)
	}
	if err := d.reserve(desc.Width * desc.Height); err != nil {
		return nil, err
	}
	rt := &renderTarget{id: d.id(), tex: &texture{buf: newBuffer(desc.Width, desc.Height)}}
	rt.tex.id = rt.id
	d.live[rt.id] = rt
	d.stats.Created++
	return rt, nil
}

func (d *Device) CreatePipeline(desc core.PipelineDesc) (core.Pipeline, error) {
	if desc.Fragment == nil {
		return nil, fmt.Errorf("soft: pipeline %q has no fragment function", desc.Name)
	}
	p := &pipeline{id: d.id(), name: desc.Name, frag: desc.Fragment, blend: desc.Blend}
	d.live[p.id] = p
	d.stats.Created++
	return p, nil
}

func (d *Device) CreateMesh(desc core.MeshDesc) (core.Mesh, error) {
	if len(desc.Vertices) == 0 {
		return nil, errors.New("soft: empty mesh")
	}
	m := &mesh{id: d.id()}
	d.live[m.id] = m
	d.stats.Created++
	return m, nil
}

func (d *Device) BindRenderTarget(rt core.RenderTarget) {
	if rt == nil {
		d.bound = nil
		return
	}
	d.bound = rt.(*renderTarget)
}

func (d *Device) Draw(cmd core.DrawCmd) error {
	p, ok := cmd.Pipe.(*pipeline)
	if !ok || d.dead[p.id] {
		return errors.New("soft: draw with invalid pipeline")
	}
	if m, ok := cmd.Mesh.(*mesh); !ok || d.dead[m.id] {
		return errors.New("soft: draw with invalid mesh")
	}
	if d.bound != nil && d.dead[d.bound.id] {
		return errors.New("soft: draw into released render target")
	}
	samplers := make(map[string]core.Sampler, len(cmd.Samplers))
	for name, t := range cmd.Samplers {
		s, err := d.sampler(t)
		if err != nil {
			return fmt.Errorf("soft: sampler %q: %w", name, err)
		}
		samplers[name] = s
	}

	// Writes go to a fresh slice, so a target sampled by its own draw is
	// read with its previous contents.
	dst := d.target()
	out := make([]float32, len(dst.pix))
	in := core.FragmentInput{Width: dst.w, Height: dst.h, Uniforms: cmd.Uniforms, Samplers: samplers}
	for y := 0; y < dst.h; y++ {
		for x := 0; x < dst.w; x++ {
			in.X, in.Y = x, y
			c := p.frag(&in)
			i := (y*dst.w + x) * 4
			if p.blend {
				a := c[3]
				for k := 0; k < 3; k++ {
					out[i+k] = c[k]*a + dst.pix[i+k]*(1-a)
				}
				out[i+3] = a + dst.pix[i+3]*(1-a)
			} else {
				copy(out[i:i+4], c[:])
			}
		}
	}
	dst.pix = out
	d.stats.Draws++
	return nil
}

func (d *Device) Destroy(res core.Resource) {
	if res == nil {
		return
	}
	id := res.ID()
	if _, ok := d.live[id]; !ok {
		d.stats.Redundant++
		return
	}
	switch r := res.(type) {
	case *texture:
		d.texels -= r.buf.w * r.buf.h
	case *renderTarget:
		d.texels -= r.tex.buf.w * r.tex.buf.h
		if d.bound == r {
			d.bound = nil
		}
	}
	delete(d.live, id)
	d.dead[id] = true
	d.stats.Destroyed++
}

func (d *Device) GPUVendor() string   { return "liquid" }
func (d *Device) GPURenderer() string { return "software" }
func (d *Device) GPUVersion() string  { return "1.0" }

func (d *Device) Shutdown() {
	for _, r := range d.live {
		d.Destroy(r)
	}
}

// Stats returns allocation and draw counters.
func (d *Device) Stats() Stats { return d.stats }

// Live reports how many resources are currently allocated.
func (d *Device) Live() int { return len(d.live) }

// IsLive reports whether res is allocated on this device.
func (d *Device) IsLive(res core.Resource) bool {
	if res == nil {
		return false
	}
	_, ok := d.live[res.ID()]
	return ok
}

// ScreenSize returns the default framebuffer size.
func (d *Device) ScreenSize() (int, int) { return d.screen.w, d.screen.h }

// ReadPixels copies the RGBA floats of rt, or of the screen when rt is nil.
// Rows are bottom first.
func (d *Device) ReadPixels(rt core.RenderTarget) []float32 {
	b := d.screen
	if rt != nil {
		b = rt.(*renderTarget).tex.buf
	}
	return append([]float32(nil), b.pix...)
}

// Snapshot converts the screen to an image with the top row first.
func (d *Device) Snapshot() *image.NRGBA {
	b := d.screen
	img := image.NewNRGBA(image.Rect(0, 0, b.w, b.h))
	for y := 0; y < b.h; y++ {
		for x := 0; x < b.w; x++ {
			c := b.at(x, y)
			img.SetNRGBA(x, b.h-1-y, color.NRGBA{R: to8(c[0]), G: to8(c[1]), B: to8(c[2]), A: to8(c[3])})
		}
	}
	return img
}

func (d *Device) id() uint32 {
	d.nextID++
	return d.nextID
}

func (d *Device) reserve(texels int) error {
	if d.MaxTexels > 0 && d.texels+texels > d.MaxTexels {
		return fmt.Errorf("%w: %d texels requested, %d of %d in use", ErrOutOfMemory, texels, d.texels, d.MaxTexels)
	}
	d.texels += texels
	return nil
}

func (d *Device) target() *buffer {
	if d.bound != nil {
		return d.bound.tex.buf
	}
	return d.screen
}

func (d *Device) sampler(t core.Texture) (core.Sampler, error) {
	var buf *buffer
	switch v := t.(type) {
	case *texture:
		buf = v.buf
	case *renderTarget:
		buf = v.tex.buf
	default:
		return nil, fmt.Errorf("foreign texture %T", t)
	}
	if d.dead[t.ID()] {
		return nil, errors.New("texture released")
	}
	return &sampler{buf: buf}, nil
}

func to8(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	}
	return uint8(v*255 + 0.5)
}
