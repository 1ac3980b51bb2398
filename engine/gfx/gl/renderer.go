package glbackend

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v3.3-core/gl"
	"go.uber.org/zap"

	"github.com/hubastard/liquid/engine/core"
)

type RendererGL struct {
	win   core.Window
	log   *zap.Logger
	bound *renderTarget
	// resources alive on this context, keyed by handle identity
	live  map[core.Resource]struct{}
	fbW   int
	fbH   int
	units int32
}

func NewRendererGL(win core.Window, _ core.Config, log *zap.Logger) (*RendererGL, error) {
	if log == nil {
		log = zap.NewNop()
	}
	r := &RendererGL{win: win, log: log, live: map[core.Resource]struct{}{}}
	if err := r.Init(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *RendererGL) Init() error {
	gl.GetIntegerv(gl.MAX_TEXTURE_IMAGE_UNITS, &r.units)
	if r.units <= 0 {
		return errors.New("gl: no texture units")
	}
	gl.Disable(gl.DEPTH_TEST)
	r.log.Info("gl device ready",
		zap.String("vendor", r.GPUVendor()),
		zap.String("renderer", r.GPURenderer()),
		zap.String("version", r.GPUVersion()),
		zap.Int32("textureUnits", r.units))
	return nil
}

func (r *RendererGL) Shutdown() {
	for res := range r.live {
		r.Destroy(res)
	}
}

func (r *RendererGL) Resize(w, h int) {
	r.fbW, r.fbH = w, h
	if r.bound == nil {
		gl.Viewport(0, 0, int32(w), int32(h))
	}
}

func (r *RendererGL) Clear(rf, gf, bf, af float32) {
	gl.ClearColor(rf, gf, bf, af)
	gl.Clear(gl.COLOR_BUFFER_BIT)
}

func (r *RendererGL) CreateTexture(desc core.TextureDesc) (core.Texture, error) {
	if desc.Width < 1 || desc.Height < 1 {
		return nil, fmt.Errorf("gl: invalid texture size %dx%d", desc.Width, desc.Height)
	}
	t := &texture{w: desc.Width, h: desc.Height}
	gl.GenTextures(1, &t.id)
	gl.BindTexture(gl.TEXTURE_2D, t.id)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, filter(desc.MinFilter))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, filter(desc.MagFilter))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, wrap(desc.WrapU))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, wrap(desc.WrapV))
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)

	w, h := int32(desc.Width), int32(desc.Height)
	switch desc.Format {
	case core.TextureRGBA32F:
		var ptr unsafe.Pointer
		if len(desc.Floats) > 0 {
			ptr = gl.Ptr(desc.Floats)
		}
		gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA32F, w, h, 0, gl.RGBA, gl.FLOAT, ptr)
	default:
		var ptr unsafe.Pointer
		if len(desc.Pixels) > 0 {
			ptr = gl.Ptr(desc.Pixels)
		}
		gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, w, h, 0, gl.RGBA, gl.UNSIGNED_BYTE, ptr)
	}
	gl.BindTexture(gl.TEXTURE_2D, 0)

	if err := glError("create texture"); err != nil {
		gl.DeleteTextures(1, &t.id)
		return nil, err
	}
	r.live[t] = struct{}{}
	return t, nil
}

func (r *RendererGL) CreateRenderTarget(desc core.RenderTargetDesc) (core.RenderTarget, error) {
	tex, err := r.CreateTexture(core.TextureDesc{
		Width: desc.Width, Height: desc.Height,
		Format:    desc.Format,
		MinFilter: desc.Filter, MagFilter: desc.Filter,
		WrapU: "clamp", WrapV: "clamp",
	})
	if err != nil {
		return nil, err
	}
	rt := &renderTarget{tex: tex.(*texture)}
	delete(r.live, tex) // owned by the target from now on

	gl.GenFramebuffers(1, &rt.fbo)
	gl.BindFramebuffer(gl.FRAMEBUFFER, rt.fbo)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, rt.tex.id, 0)
	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	if status == gl.FRAMEBUFFER_COMPLETE {
		gl.Viewport(0, 0, int32(desc.Width), int32(desc.Height))
		gl.ClearColor(0, 0, 0, 0)
		gl.Clear(gl.COLOR_BUFFER_BIT)
	}
	r.rebind()

	if status != gl.FRAMEBUFFER_COMPLETE {
		rt.release()
		return nil, fmt.Errorf("gl: framebuffer incomplete (0x%x) for %dx%d target", status, desc.Width, desc.Height)
	}
	if err := glError("create render target"); err != nil {
		rt.release()
		return nil, err
	}
	r.live[rt] = struct{}{}
	return rt, nil
}

func (r *RendererGL) CreatePipeline(desc core.PipelineDesc) (core.Pipeline, error) {
	prog, err := makeProgram(desc.VertexSource, desc.FragmentSource)
	if err != nil {
		return nil, fmt.Errorf("pipeline %q: %w", desc.Name, err)
	}
	p := &pipeline{
		id:        prog,
		name:      desc.Name,
		blend:     desc.Blend,
		depthTest: desc.DepthTest,
		locs:      map[string]int32{},
	}
	r.live[p] = struct{}{}
	return p, nil
}

func (r *RendererGL) CreateMesh(desc core.MeshDesc) (core.Mesh, error) {
	if len(desc.Vertices) == 0 {
		return nil, errors.New("gl: empty mesh")
	}
	m := &mesh{count: int32(len(desc.Indices))}
	gl.GenVertexArrays(1, &m.vao)
	gl.BindVertexArray(m.vao)

	gl.GenBuffers(1, &m.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, m.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(desc.Vertices)*4, gl.Ptr(desc.Vertices), gl.STATIC_DRAW)

	if len(desc.Indices) > 0 {
		gl.GenBuffers(1, &m.ebo)
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, m.ebo)
		gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(desc.Indices)*4, gl.Ptr(desc.Indices), gl.STATIC_DRAW)
	} else {
		m.count = int32(len(desc.Vertices) * 4 / max(desc.Layout.Stride, 1))
	}

	for _, a := range desc.Layout.Attributes {
		gl.EnableVertexAttribArray(uint32(a.Location))
		gl.VertexAttribPointerWithOffset(uint32(a.Location), int32(a.Size), gl.FLOAT, false, int32(desc.Layout.Stride), uintptr(a.Offset))
	}

	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)

	if err := glError("create mesh"); err != nil {
		m.release()
		return nil, err
	}
	r.live[m] = struct{}{}
	return m, nil
}

func (r *RendererGL) BindRenderTarget(rt core.RenderTarget) {
	if rt == nil {
		r.bound = nil
	} else {
		r.bound = rt.(*renderTarget)
	}
	r.rebind()
}

func (r *RendererGL) rebind() {
	if r.bound == nil {
		gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
		gl.Viewport(0, 0, int32(r.fbW), int32(r.fbH))
		return
	}
	gl.BindFramebuffer(gl.FRAMEBUFFER, r.bound.fbo)
	gl.Viewport(0, 0, int32(r.bound.tex.w), int32(r.bound.tex.h))
}

func (r *RendererGL) Draw(cmd core.DrawCmd) error {
	p, ok := cmd.Pipe.(*pipeline)
	if !ok || p.id == 0 {
		return errors.New("gl: draw with invalid pipeline")
	}
	m, ok := cmd.Mesh.(*mesh)
	if !ok || m.vao == 0 {
		return errors.New("gl: draw with invalid mesh")
	}

	if p.blend {
		gl.Enable(gl.BLEND)
		gl.BlendFuncSeparate(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA, gl.ONE, gl.ONE_MINUS_SRC_ALPHA)
	} else {
		gl.Disable(gl.BLEND)
	}
	if p.depthTest {
		gl.Enable(gl.DEPTH_TEST)
	} else {
		gl.Disable(gl.DEPTH_TEST)
	}

	gl.UseProgram(p.id)
	for name, v := range cmd.Uniforms {
		if err := setUniform(p.loc(name), v); err != nil {
			return fmt.Errorf("uniform %q: %w", name, err)
		}
	}
	var unit int32
	for name, t := range cmd.Samplers {
		if unit >= r.units {
			return fmt.Errorf("gl: %d samplers exceed %d texture units", len(cmd.Samplers), r.units)
		}
		id, err := textureID(t)
		if err != nil {
			return fmt.Errorf("sampler %q: %w", name, err)
		}
		gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
		gl.BindTexture(gl.TEXTURE_2D, id)
		gl.Uniform1i(p.loc(name), unit)
		unit++
	}

	gl.BindVertexArray(m.vao)
	if m.ebo != 0 {
		gl.DrawElements(gl.TRIANGLES, m.count, gl.UNSIGNED_INT, nil)
	} else {
		gl.DrawArrays(gl.TRIANGLE_STRIP, 0, m.count)
	}
	gl.BindVertexArray(0)
	gl.UseProgram(0)
	gl.ActiveTexture(gl.TEXTURE0)

	return glError("draw " + p.name)
}

func (r *RendererGL) Destroy(res core.Resource) {
	if res == nil {
		return
	}
	if _, ok := r.live[res]; !ok {
		return
	}
	delete(r.live, res)
	switch v := res.(type) {
	case *texture:
		v.release()
	case *renderTarget:
		if r.bound == v {
			r.BindRenderTarget(nil)
		}
		v.release()
	case *pipeline:
		v.release()
	case *mesh:
		v.release()
	}
}

func (r *RendererGL) GPUVendor() string   { return gl.GoStr(gl.GetString(gl.VENDOR)) }
func (r *RendererGL) GPURenderer() string { return gl.GoStr(gl.GetString(gl.RENDERER)) }
func (r *RendererGL) GPUVersion() string  { return gl.GoStr(gl.GetString(gl.VERSION)) }

func filter(s string) int32 {
	if s == "nearest" {
		return gl.NEAREST
	}
	return gl.LINEAR
}

func wrap(s string) int32 {
	if s == "repeat" {
		return gl.REPEAT
	}
	return gl.CLAMP_TO_EDGE
}

func textureID(t core.Texture) (uint32, error) {
	switch v := t.(type) {
	case *texture:
		return v.id, nil
	case *renderTarget:
		return v.tex.id, nil
	}
	return 0, fmt.Errorf("gl: foreign texture %T", t)
}

func setUniform(loc int32, v any) error {
	if loc < 0 {
		// optimized out by the driver
		return nil
	}
	switch u := v.(type) {
	case float32:
		gl.Uniform1f(loc, u)
	case int32:
		gl.Uniform1i(loc, u)
	case [2]float32:
		gl.Uniform2f(loc, u[0], u[1])
	case [3]float32:
		gl.Uniform3f(loc, u[0], u[1], u[2])
	case [4]float32:
		gl.Uniform4f(loc, u[0], u[1], u[2], u[3])
	case [16]float32:
		gl.UniformMatrix4fv(loc, 1, false, &u[0])
	default:
		return fmt.Errorf("unsupported uniform type %T", v)
	}
	return nil
}

func glError(op string) error {
	if code := gl.GetError(); code != gl.NO_ERROR {
		if code == gl.OUT_OF_MEMORY {
			return fmt.Errorf("gl: %s: out of memory", op)
		}
		return fmt.Errorf("gl: %s: error 0x%x", op, code)
	}
	return nil
}
