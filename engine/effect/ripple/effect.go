// Package ripple renders an interactive liquid displacement over an image.
// A damped wave field is simulated in a pair of float render targets that
// swap roles every tick; the field gradient then offsets the image lookup.
package ripple

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hubastard/liquid/engine/assets"
	"github.com/hubastard/liquid/engine/core"
	"github.com/hubastard/liquid/engine/profiler"
)

const (
	DefaultRadius   = 20 // CSS pixels
	DefaultStrength = 2
)

// ErrNotActive is returned by operations that need an activated effect.
var ErrNotActive = errors.New("ripple: effect not active")

type LoadState int

const (
	LoadPending LoadState = iota
	LoadReady
	LoadFailed
)

func (s LoadState) String() string {
	switch s {
	case LoadPending:
		return "pending"
	case LoadReady:
		return "ready"
	case LoadFailed:
		return "failed"
	}
	return "unknown"
}

// LoadError reports an image that could not be loaded.
type LoadError struct {
	URL string
	Err error
}

func (e *LoadError) Error() string { return fmt.Sprintf("load image %q: %v", e.URL, e.Err) }
func (e *LoadError) Unwrap() error { return e.Err }

type Options struct {
	ImageURL string
	// OnLoad runs on the render thread once per activation, when the image
	// is first uploaded.
	OnLoad func()
	// OnError receives load failures and errors that stopped the ticks.
	OnError func(error)

	Loader assets.Loader    // defaults to assets.NewURLLoader
	Frames core.FrameSource // required
	Log    *zap.Logger

	Radius   float32 // CSS pixels
	Strength float32
}

type loadResult struct {
	img *assets.Image
	err error
}

// Effect owns every device resource of one ripple instance. All methods
// must be called on the render thread.
type Effect struct {
	id   string
	opts Options
	r    core.Renderer
	log  *zap.Logger

	vp      core.Viewport
	active  bool
	tracker Tracker

	buffers *BufferPair
	quad    core.Mesh
	sim     *SimulationStage
	render  *RenderStage
	base    core.Texture
	sched   *core.FrameScheduler

	load       LoadState
	loads      chan loadResult
	loadCancel context.CancelFunc
	notified   bool
	err        error
}

func New(r core.Renderer, opts Options) *Effect {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Loader == nil {
		opts.Loader = assets.NewURLLoader(opts.Log)
	}
	if opts.Radius <= 0 {
		opts.Radius = DefaultRadius
	}
	if opts.Strength == 0 {
		opts.Strength = DefaultStrength
	}
	id := uuid.NewString()
	return &Effect{
		id:   id,
		opts: opts,
		r:    r,
		log:  opts.Log.With(zap.String("effect", id)),
	}
}

func (e *Effect) ID() string                { return e.id }
func (e *Effect) Active() bool              { return e.active }
func (e *Effect) ImageURL() string          { return e.opts.ImageURL }
func (e *Effect) Viewport() core.Viewport   { return e.vp }
func (e *Effect) LoadState() LoadState      { return e.load }
func (e *Effect) Pointer() PointerState     { return e.tracker.State() }
func (e *Effect) Buffers() *BufferPair      { return e.buffers }
func (e *Effect) BaseTexture() core.Texture { return e.base }

// Ticks reports the ticks completed since the last activation.
func (e *Effect) Ticks() uint64 {
	if e.sched == nil {
		return 0
	}
	return e.sched.Ticks()
}

// Err returns the last load failure or the error that stopped the ticks.
func (e *Effect) Err() error { return e.err }

// Activate allocates the field buffers, programs, geometry and a transparent
// placeholder image, starts loading the image and starts ticking. On error
// nothing stays allocated.
func (e *Effect) Activate(vp core.Viewport) error {
	if e.active {
		return nil
	}
	if e.opts.ImageURL == "" {
		return errors.New("activate ripple effect: no image url")
	}
	if e.opts.Frames == nil {
		return errors.New("activate ripple effect: no frame source")
	}
	if err := e.allocate(vp); err != nil {
		e.release()
		return fmt.Errorf("activate ripple effect: %w", err)
	}

	e.vp = vp
	e.tracker = Tracker{}
	e.tracker.SetViewport(vp)
	e.err = nil
	e.notified = false
	e.active = true

	w, h := vp.DeviceSize()
	sched := core.NewFrameScheduler(e.opts.Frames, e.tick)
	sched.OnError = func(err error) {
		// a host callback may have replaced or torn down this activation
		if e.sched == sched {
			e.tickFailed(err)
		}
	}
	sched.SetResolution(w, h)
	e.sched = sched

	e.startLoad()
	if err := e.sched.Start(); err != nil {
		e.Teardown()
		return fmt.Errorf("activate ripple effect: %w", err)
	}
	e.log.Info("ripple effect activated",
		zap.String("url", e.opts.ImageURL),
		zap.Int("width", w),
		zap.Int("height", h),
		zap.Float64("dpr", vp.DPR))
	return nil
}

func (e *Effect) allocate(vp core.Viewport) error {
	w, h := vp.DeviceSize()
	e.buffers = NewBufferPair(e.r)
	if err := e.buffers.Allocate(w, h); err != nil {
		return err
	}
	quad, err := newQuad(e.r)
	if err != nil {
		return fmt.Errorf("create quad: %w", err)
	}
	e.quad = quad
	if e.sim, err = NewSimulationStage(e.r, quad); err != nil {
		return err
	}
	if e.render, err = NewRenderStage(e.r, quad); err != nil {
		return err
	}
	e.base, err = e.r.CreateTexture(core.TextureDesc{
		Width: 1, Height: 1,
		Format:    core.TextureRGBA8,
		Pixels:    []byte{0, 0, 0, 0},
		MinFilter: "linear", MagFilter: "linear",
		WrapU: "clamp", WrapV: "clamp",
	})
	if err != nil {
		return fmt.Errorf("create placeholder texture: %w", err)
	}
	return nil
}

// release frees whatever is allocated. Each resource is destroyed once.
func (e *Effect) release() {
	if e.sched != nil {
		e.sched.Stop()
		e.sched = nil
	}
	if e.loadCancel != nil {
		e.loadCancel()
		e.loadCancel = nil
	}
	e.loads = nil
	if e.buffers != nil {
		e.buffers.Release()
		e.buffers = nil
	}
	if e.sim != nil {
		e.sim.Release()
		e.sim = nil
	}
	if e.render != nil {
		e.render.Release()
		e.render = nil
	}
	if e.quad != nil {
		e.r.Destroy(e.quad)
		e.quad = nil
	}
	if e.base != nil {
		e.r.Destroy(e.base)
		e.base = nil
	}
}

// Teardown stops ticking, cancels a pending load and releases every
// resource. Calling it again does nothing.
func (e *Effect) Teardown() {
	if !e.active {
		return
	}
	ticks := e.sched.Ticks()
	e.release()
	e.active = false
	e.log.Info("ripple effect torn down", zap.Uint64("ticks", ticks))
}

// SetImageURL tears the effect down and activates it again with url and
// the current viewport. Nothing is reused across the change.
func (e *Effect) SetImageURL(url string) error {
	if url == e.opts.ImageURL && e.active {
		return nil
	}
	wasActive := e.active
	e.Teardown()
	e.opts.ImageURL = url
	if !wasActive {
		return nil
	}
	return e.Activate(e.vp)
}

// Reload re-activates the effect with the same image url.
func (e *Effect) Reload() error {
	if !e.active {
		return ErrNotActive
	}
	e.Teardown()
	return e.Activate(e.vp)
}

// Resize reallocates the field buffers at the new device size. The image
// and its load state are left alone.
func (e *Effect) Resize(vp core.Viewport) error {
	e.vp = vp
	e.tracker.SetViewport(vp)
	if !e.active {
		return nil
	}
	w, h := vp.DeviceSize()
	e.sched.SetResolution(w, h)
	if bw, bh := e.buffers.Size(); bw == w && bh == h {
		return nil
	}
	if err := e.buffers.Resize(w, h); err != nil {
		e.Teardown()
		return fmt.Errorf("resize ripple effect to %dx%d: %w", w, h, err)
	}
	e.log.Debug("ripple effect resized", zap.Int("width", w), zap.Int("height", h))
	return nil
}

// HandleEvent feeds pointer events to the tracker and reports whether ev
// was consumed.
func (e *Effect) HandleEvent(ev core.Event) bool { return e.tracker.Handle(ev) }

// Retry restarts loading after a failure.
func (e *Effect) Retry() error {
	if !e.active {
		return ErrNotActive
	}
	if e.load != LoadFailed {
		return nil
	}
	e.err = nil
	e.startLoad()
	return nil
}

func (e *Effect) startLoad() {
	if e.loadCancel != nil {
		e.loadCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan loadResult, 1)
	e.loadCancel = cancel
	e.loads = ch
	e.load = LoadPending

	loader, url := e.opts.Loader, e.opts.ImageURL
	go func() {
		img, err := loader.Load(ctx, url)
		ch <- loadResult{img: img, err: err}
	}()
}

// pollLoad uploads a finished load. It never blocks. The returned func
// notifies the host and must run after the tick is done with its resources.
func (e *Effect) pollLoad() func() {
	var res loadResult
	select {
	case res = <-e.loads:
	default:
		return nil
	}
	e.loadCancel()
	e.loadCancel = nil

	if res.err == nil {
		res.err = e.upload(res.img)
	}
	if res.err != nil {
		e.load = LoadFailed
		e.err = &LoadError{URL: e.opts.ImageURL, Err: res.err}
		e.log.Error("image load failed", zap.String("url", e.opts.ImageURL), zap.Error(res.err))
		if onError, err := e.opts.OnError, e.err; onError != nil {
			return func() { onError(err) }
		}
		return nil
	}

	e.load = LoadReady
	e.log.Info("image loaded",
		zap.String("url", e.opts.ImageURL),
		zap.Int("width", res.img.Width),
		zap.Int("height", res.img.Height))
	if e.notified {
		return nil
	}
	e.notified = true
	return e.opts.OnLoad
}

func (e *Effect) upload(img *assets.Image) error {
	tex, err := e.r.CreateTexture(core.TextureDesc{
		Width: img.Width, Height: img.Height,
		Format:    core.TextureRGBA8,
		Pixels:    img.Pix,
		MinFilter: "linear", MagFilter: "linear",
		WrapU: "clamp", WrapV: "clamp",
	})
	if err != nil {
		return fmt.Errorf("upload %dx%d image: %w", img.Width, img.Height, err)
	}
	e.r.Destroy(e.base)
	e.base = tex
	return nil
}

// tick runs one simulate, render, swap cycle. Host callbacks run last, so a
// callback that tears the effect down or replaces its image never sees a
// half-finished tick.
func (e *Effect) tick(fc core.FrameContext) error {
	defer profiler.Start("ripple.tick")()

	notify := e.pollLoad()
	err := e.step(fc)
	if notify != nil {
		notify()
	}
	return err
}

func (e *Effect) step(fc core.FrameContext) error {
	ptr := e.tracker.State()
	read, write := e.buffers.Read(), e.buffers.Write()

	endSim := profiler.Start("ripple.simulate")
	err := e.sim.Run(SimulationUniforms{
		Field:      read.Texture(),
		Pointer:    ptr,
		Frame:      fc.Frame,
		Time:       float32(fc.Elapsed.Seconds()),
		Resolution: [2]float32{float32(fc.Width), float32(fc.Height)},
		Radius:     e.opts.Radius * float32(e.dpr()),
		Strength:   e.opts.Strength,
	}, write)
	endSim()
	if err != nil {
		return fmt.Errorf("simulate frame %d: %w", fc.Frame, err)
	}

	endRender := profiler.Start("ripple.render")
	err = e.render.Run(RenderUniforms{Field: write.Texture(), Image: e.base})
	endRender()
	if err != nil {
		return fmt.Errorf("render frame %d: %w", fc.Frame, err)
	}

	e.buffers.Swap()
	return nil
}

func (e *Effect) tickFailed(err error) {
	e.err = err
	e.log.Error("ripple effect stopped", zap.Error(err))
	if e.opts.OnError != nil {
		e.opts.OnError(err)
	}
}

func (e *Effect) dpr() float64 {
	if e.vp.DPR <= 0 {
		return 1
	}
	return e.vp.DPR
}
