package colors

import (
	"fmt"
	"strconv"
	"strings"
)

// Color is straight (non-premultiplied) RGBA in [0, 1].
type Color [4]float32

var Transparent = Color{0, 0, 0, 0}

// Hex formats c as #rrggbbaa.
func (c Color) Hex() string {
	var b [4]uint8
	for i, v := range c {
		b[i] = uint8(min(max(v, 0), 1)*255 + 0.5)
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", b[0], b[1], b[2], b[3])
}

// Parse reads #rgb, #rrggbb or #rrggbbaa. The leading # is optional and
// alpha defaults to opaque.
func Parse(s string) (Color, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) == 6 {
		h += "ff"
	}
	if len(h) != 8 {
		return Color{}, fmt.Errorf("colors: invalid color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("colors: invalid color %q: %w", s, err)
	}
	return Color{
		float32(v>>24&0xff) / 255,
		float32(v>>16&0xff) / 255,
		float32(v>>8&0xff) / 255,
		float32(v&0xff) / 255,
	}, nil
}

// UnmarshalText lets colors be written as hex strings in config files.
func (c *Color) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

func (c Color) MarshalText() ([]byte, error) { return []byte(c.Hex()), nil }
