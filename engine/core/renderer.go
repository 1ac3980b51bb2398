package core

// Renderer abstraction over a graphics device. All methods must be called on
// the thread that owns the graphics context.
type Renderer interface {
	Init() error
	Resize(w, h int)
	Clear(r, g, b, a float32)

	CreateTexture(desc TextureDesc) (Texture, error)
	CreateRenderTarget(desc RenderTargetDesc) (RenderTarget, error)
	CreatePipeline(desc PipelineDesc) (Pipeline, error)
	CreateMesh(desc MeshDesc) (Mesh, error)

	// BindRenderTarget redirects draws and clears to rt; nil selects the screen.
	BindRenderTarget(rt RenderTarget)
	Draw(cmd DrawCmd) error
	// Destroy releases a resource created by this renderer. Destroying a
	// resource twice is a no-op.
	Destroy(res Resource)

	GPUVendor() string
	GPURenderer() string
	GPUVersion() string
	Shutdown()
}

// Resource is any device object with an identity.
type Resource interface {
	ID() uint32
}

type Texture interface {
	Resource
	Size() (int, int)
}

type RenderTarget interface {
	Resource
	Size() (int, int)
	Texture() Texture
}

type Pipeline interface{ Resource }

type Mesh interface{ Resource }

type TextureFormat int

const (
	TextureRGBA8 TextureFormat = iota
	TextureRGBA32F
)

// TextureDesc describes a sampled texture. Pixels are tightly packed rows,
// bottom row first. RGBA8 expects bytes, RGBA32F expects Floats.
type TextureDesc struct {
	Width, Height int
	Format        TextureFormat
	Pixels        []byte
	Floats        []float32
	MinFilter     string // "linear" | "nearest"
	MagFilter     string
	WrapU, WrapV  string // "clamp" | "repeat"
}

// RenderTargetDesc describes an offscreen color target. Targets are cleared
// to transparent black on creation.
type RenderTargetDesc struct {
	Width, Height int
	Format        TextureFormat
	Filter        string
}

// PipelineDesc pairs GLSL programs with an equivalent CPU fragment function.
// Devices able to run GLSL use the sources; software devices run Fragment.
type PipelineDesc struct {
	Name           string
	VertexSource   string
	FragmentSource string
	Fragment       FragmentFunc
	DepthTest      bool
	Blend          bool
}

type AttribType int

const (
	AttribFloat32 AttribType = iota
)

type VertexAttrib struct {
	Location int
	Size     int
	Type     AttribType
	Offset   int
}

type VertexLayout struct {
	Stride     int
	Attributes []VertexAttrib
}

type MeshDesc struct {
	Vertices []float32
	Indices  []uint32
	Layout   VertexLayout
}

// DrawCmd draws a mesh with a pipeline into the bound render target.
// Uniform values may be float32, int32, [2]float32, [3]float32,
// [4]float32 or [16]float32.
type DrawCmd struct {
	Pipe     Pipeline
	Mesh     Mesh
	Uniforms map[string]any
	Samplers map[string]Texture
}

// FragmentFunc computes the RGBA output of one pixel.
type FragmentFunc func(in *FragmentInput) [4]float32

// FragmentInput is what a CPU fragment function sees for one pixel.
// X and Y count from the bottom-left corner of the target.
type FragmentInput struct {
	X, Y          int
	Width, Height int
	Uniforms      map[string]any
	Samplers      map[string]Sampler
}

// UV returns the normalized coordinate of the pixel center.
func (in *FragmentInput) UV() (float32, float32) {
	return (float32(in.X) + 0.5) / float32(in.Width), (float32(in.Y) + 0.5) / float32(in.Height)
}

// Sampler reads texels of a bound texture.
type Sampler interface {
	Size() (int, int)
	// At reads a texel, clamping coordinates to the edge.
	At(x, y int) [4]float32
	// Sample reads with bilinear filtering at normalized coordinates, clamped.
	Sample(u, v float32) [4]float32
}

// Float32 reads a float uniform, returning 0 when absent.
func (in *FragmentInput) Float32(name string) float32 {
	switch v := in.Uniforms[name].(type) {
	case float32:
		return v
	case int32:
		return float32(v)
	}
	return 0
}

// Int32 reads an int uniform, returning 0 when absent.
func (in *FragmentInput) Int32(name string) int32 {
	switch v := in.Uniforms[name].(type) {
	case int32:
		return v
	case float32:
		return int32(v)
	}
	return 0
}

// Vec3 reads a vec3 uniform.
func (in *FragmentInput) Vec3(name string) [3]float32 {
	v, _ := in.Uniforms[name].([3]float32)
	return v
}
