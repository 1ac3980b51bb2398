package ripple

import (
	"embed"
	"fmt"
	"math"

	"github.com/hubastard/liquid/engine/assets"
	"github.com/hubastard/liquid/engine/core"
)

//go:embed shaders
var shaderFS embed.FS

// Wave constants shared by simulation.frag and simulateFragment.
const (
	waveDelta      = 1.4
	waveSpring     = 0.005
	waveVelDamping = 0.002
	waveDecay      = 0.999

	displacement = 0.3
)

var lightDir = normalize3([3]float32{-3, 10, 3})

// SimulationUniforms is rebuilt every tick from the current frame state.
type SimulationUniforms struct {
	Field      core.Texture // read buffer
	Pointer    PointerState
	Frame      uint64
	Time       float32 // seconds since start
	Resolution [2]float32
	Radius     float32 // device pixels
	Strength   float32
}

func (u SimulationUniforms) values() map[string]any {
	frame := int32(math.MaxInt32)
	if u.Frame < math.MaxInt32 {
		frame = int32(u.Frame)
	}
	var pressed float32
	if u.Pointer.Active {
		pressed = 1
	}
	return map[string]any{
		"uPointer":    [3]float32{u.Pointer.X, u.Pointer.Y, pressed},
		"uResolution": u.Resolution,
		"uTime":       u.Time,
		"uFrame":      frame,
		"uRadius":     u.Radius,
		"uStrength":   u.Strength,
	}
}

// RenderUniforms binds the freshly written field and the base image.
type RenderUniforms struct {
	Field core.Texture
	Image core.Texture
}

type stage struct {
	r    core.Renderer
	pipe core.Pipeline
	quad core.Mesh
}

func newStage(r core.Renderer, quad core.Mesh, name, frag string, fn core.FragmentFunc, blend bool) (stage, error) {
	vs, err := assets.LoadShader(shaderFS, "shaders/quad.vert")
	if err != nil {
		return stage{}, err
	}
	fs, err := assets.LoadShader(shaderFS, "shaders/"+frag)
	if err != nil {
		return stage{}, err
	}
	pipe, err := r.CreatePipeline(core.PipelineDesc{
		Name:           name,
		VertexSource:   vs,
		FragmentSource: fs,
		Fragment:       fn,
		Blend:          blend,
	})
	if err != nil {
		return stage{}, fmt.Errorf("create %s pipeline: %w", name, err)
	}
	return stage{r: r, pipe: pipe, quad: quad}, nil
}

func (s *stage) release() {
	if s.pipe != nil {
		s.r.Destroy(s.pipe)
		s.pipe = nil
	}
}

// SimulationStage advances the field by one step into the write buffer.
type SimulationStage struct{ stage }

func NewSimulationStage(r core.Renderer, quad core.Mesh) (*SimulationStage, error) {
	s, err := newStage(r, quad, "simulation", "simulation.frag", simulateFragment, false)
	if err != nil {
		return nil, err
	}
	return &SimulationStage{s}, nil
}

// Run draws one simulation step from u.Field into dst. dst must not be
// the target behind u.Field.
func (s *SimulationStage) Run(u SimulationUniforms, dst core.RenderTarget) error {
	s.r.BindRenderTarget(dst)
	return s.r.Draw(core.DrawCmd{
		Pipe:     s.pipe,
		Mesh:     s.quad,
		Uniforms: u.values(),
		Samplers: map[string]core.Texture{"uField": u.Field},
	})
}

func (s *SimulationStage) Release() { s.release() }

// RenderStage composites the displaced image over the bound target.
type RenderStage struct{ stage }

func NewRenderStage(r core.Renderer, quad core.Mesh) (*RenderStage, error) {
	s, err := newStage(r, quad, "render", "render.frag", renderFragment, true)
	if err != nil {
		return nil, err
	}
	return &RenderStage{s}, nil
}

// Run draws to the screen.
func (s *RenderStage) Run(u RenderUniforms) error {
	s.r.BindRenderTarget(nil)
	return s.r.Draw(core.DrawCmd{
		Pipe: s.pipe,
		Mesh: s.quad,
		Samplers: map[string]core.Texture{
			"uField": u.Field,
			"uImage": u.Image,
		},
	})
}

func (s *RenderStage) Release() { s.release() }

// newQuad builds the two-triangle mesh covering clip space.
func newQuad(r core.Renderer) (core.Mesh, error) {
	return r.CreateMesh(core.MeshDesc{
		Vertices: []float32{
			-1, -1,
			1, -1,
			-1, 1,
			1, 1,
		},
		Indices: []uint32{0, 1, 2, 1, 3, 2},
		Layout: core.VertexLayout{
			Stride: 8,
			Attributes: []core.VertexAttrib{
				{Location: 0, Size: 2, Type: core.AttribFloat32},
			},
		},
	})
}

func simulateFragment(in *core.FragmentInput) [4]float32 {
	if in.Int32("uFrame") == 0 {
		return [4]float32{}
	}
	field := in.Samplers["uField"]
	w, h := field.Size()
	x, y := in.X, in.Y

	data := field.At(x, y)
	pressure, pVel := data[0], data[1]

	pRight := field.At(min(x+1, w-1), y)[0]
	pLeft := field.At(max(x-1, 0), y)[0]
	pUp := field.At(x, min(y+1, h-1))[0]
	pDown := field.At(x, max(y-1, 0))[0]

	if x == 0 {
		pLeft = pRight
	}
	if x == w-1 {
		pRight = pLeft
	}
	if y == 0 {
		pDown = pUp
	}
	if y == h-1 {
		pUp = pDown
	}

	pVel += waveDelta * (-2*pressure + pRight + pLeft) / 4
	pVel += waveDelta * (-2*pressure + pUp + pDown) / 4
	pressure += waveDelta * pVel
	pVel -= waveSpring * waveDelta * pressure
	pVel *= 1 - waveVelDamping*waveDelta
	pressure *= waveDecay

	ptr := in.Vec3("uPointer")
	radius := in.Float32("uRadius")
	if ptr[2] > 0 && radius > 0 {
		dx := float64(x) + 0.5 - float64(ptr[0])
		dy := float64(y) + 0.5 - float64(ptr[1])
		dist := float32(math.Hypot(dx, dy))
		if dist <= radius {
			pressure += in.Float32("uStrength") * (1 - dist/radius)
		}
	}

	return [4]float32{pressure, pVel, (pRight - pLeft) / 2, (pUp - pDown) / 2}
}

func renderFragment(in *core.FragmentInput) [4]float32 {
	u, v := in.UV()
	data := in.Samplers["uField"].Sample(u, v)
	gx, gy := data[2], data[3]
	color := in.Samplers["uImage"].Sample(u+displacement*gx, v+displacement*gy)

	normal := normalize3([3]float32{-gx * 2, 0.5, -gy * 2})
	d := normal[0]*lightDir[0] + normal[1]*lightDir[1] + normal[2]*lightDir[2]
	specular := float32(math.Pow(float64(max(0, d)), 60)) * 1.5

	coverage := min(max(float32(math.Hypot(float64(gx), float64(gy)))*8, 0), 1)
	return [4]float32{
		color[0] + specular,
		color[1] + specular,
		color[2] + specular,
		max(color[3], specular*coverage),
	}
}

func normalize3(v [3]float32) [3]float32 {
	l := float32(math.Sqrt(float64(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])))
	if l == 0 {
		return v
	}
	return [3]float32{v[0] / l, v[1] / l, v[2] / l}
}
