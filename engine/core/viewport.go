package core

import "math"

// Viewport is the drawable surface: its size in CSS pixels (window screen
// coordinates) and the device pixel ratio mapping those to framebuffer pixels.
type Viewport struct {
	Width, Height float64
	DPR           float64
}

// ViewportFromSizes builds a viewport from a window size and its framebuffer size.
func ViewportFromSizes(w, h, fbW, fbH int) Viewport {
	dpr := 1.0
	if w > 0 && fbW > 0 {
		dpr = float64(fbW) / float64(w)
	}
	return Viewport{Width: float64(w), Height: float64(h), DPR: dpr}
}

// DeviceSize returns the viewport size in device pixels, at least 1x1.
func (v Viewport) DeviceSize() (int, int) {
	dpr := v.DPR
	if dpr <= 0 {
		dpr = 1
	}
	w := int(math.Round(v.Width * dpr))
	h := int(math.Round(v.Height * dpr))
	return max(w, 1), max(h, 1)
}
