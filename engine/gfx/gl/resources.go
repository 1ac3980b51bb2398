package glbackend

import (
	"github.com/go-gl/gl/v3.3-core/gl"

	"github.com/hubastard/liquid/engine/core"
)

type texture struct {
	id   uint32
	w, h int
}

func (t *texture) ID() uint32       { return t.id }
func (t *texture) Size() (int, int) { return t.w, t.h }

func (t *texture) release() {
	if t.id != 0 {
		gl.DeleteTextures(1, &t.id)
		t.id = 0
	}
}

type renderTarget struct {
	fbo uint32
	tex *texture
}

func (rt *renderTarget) ID() uint32            { return rt.fbo }
func (rt *renderTarget) Size() (int, int)      { return rt.tex.Size() }
func (rt *renderTarget) Texture() core.Texture { return rt.tex }

func (rt *renderTarget) release() {
	if rt.fbo != 0 {
		gl.DeleteFramebuffers(1, &rt.fbo)
		rt.fbo = 0
	}
	rt.tex.release()
}

type pipeline struct {
	id        uint32
	name      string
	blend     bool
	depthTest bool
	locs      map[string]int32
}

func (p *pipeline) ID() uint32 { return p.id }

// loc caches uniform locations; -1 marks names the driver does not know.
func (p *pipeline) loc(name string) int32 {
	if l, ok := p.locs[name]; ok {
		return l
	}
	l := gl.GetUniformLocation(p.id, gl.Str(name+"\x00"))
	p.locs[name] = l
	return l
}

func (p *pipeline) release() {
	if p.id != 0 {
		gl.DeleteProgram(p.id)
		p.id = 0
	}
}

type mesh struct {
	vao, vbo, ebo uint32
	count         int32
}

func (m *mesh) ID() uint32 { return m.vao }

func (m *mesh) release() {
	if m.ebo != 0 {
		gl.DeleteBuffers(1, &m.ebo)
		m.ebo = 0
	}
	if m.vbo != 0 {
		gl.DeleteBuffers(1, &m.vbo)
		m.vbo = 0
	}
	if m.vao != 0 {
		gl.DeleteVertexArrays(1, &m.vao)
		m.vao = 0
	}
}
