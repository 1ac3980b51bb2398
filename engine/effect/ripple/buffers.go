package ripple

import (
	"errors"
	"fmt"

	"github.com/hubastard/liquid/engine/core"
)

// BufferPair holds the two field targets. The parity picks which one is
// read; the other is written. Swapping flips the parity, never the contents.
type BufferPair struct {
	r       core.Renderer
	targets [2]core.RenderTarget
	read    int
	w, h    int
}

func NewBufferPair(r core.Renderer) *BufferPair { return &BufferPair{r: r} }

// Role returns the index of the read target at frame n for a pair that swaps
// once per tick from frame 0.
func Role(n uint64) int { return int(n & 1) }

// Allocate creates both targets at w x h device pixels, cleared to the
// neutral field. Nothing stays allocated if either creation fails.
func (b *BufferPair) Allocate(w, h int) error {
	if b.Allocated() {
		return errors.New("ripple: buffer pair already allocated")
	}
	for i := range b.targets {
		rt, err := b.r.CreateRenderTarget(core.RenderTargetDesc{
			Width: w, Height: h,
			Format: core.TextureRGBA32F,
			Filter: "linear",
		})
		if err != nil {
			b.Release()
			return fmt.Errorf("allocate field buffer %d (%dx%d): %w", i, w, h, err)
		}
		b.targets[i] = rt
	}
	b.w, b.h = w, h
	return nil
}

// Resize replaces both targets; the field restarts from neutral.
func (b *BufferPair) Resize(w, h int) error {
	b.Release()
	return b.Allocate(w, h)
}

// Release destroys both targets. Safe to call repeatedly.
func (b *BufferPair) Release() {
	for i, rt := range b.targets {
		if rt != nil {
			b.r.Destroy(rt)
			b.targets[i] = nil
		}
	}
	b.w, b.h = 0, 0
}

func (b *BufferPair) Allocated() bool { return b.targets[0] != nil && b.targets[1] != nil }

func (b *BufferPair) Size() (int, int) { return b.w, b.h }

// Parity is the index of the current read target.
func (b *BufferPair) Parity() int { return b.read }

func (b *BufferPair) Read() core.RenderTarget  { return b.targets[b.read] }
func (b *BufferPair) Write() core.RenderTarget { return b.targets[b.read^1] }

func (b *BufferPair) Swap() { b.read ^= 1 }
