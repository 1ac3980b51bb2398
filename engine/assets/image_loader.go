package assets

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Image is tightly packed RGBA8, bottom row first to match OpenGL's origin.
type Image struct {
	Width, Height int
	Pix           []byte
}

// Loader fetches and decodes the image behind a URL.
type Loader interface {
	Load(ctx context.Context, rawURL string) (*Image, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, rawURL string) (*Image, error)

func (f LoaderFunc) Load(ctx context.Context, rawURL string) (*Image, error) { return f(ctx, rawURL) }

// URLLoader loads file paths, file:// and http(s):// URLs. Transient
// failures are retried with exponential backoff; missing files, client
// errors and undecodable data are not.
type URLLoader struct {
	Client          *http.Client
	Timeout         time.Duration // per attempt; 0 disables
	InitialInterval time.Duration
	MaxElapsed      time.Duration // 0 tries once
	Log             *zap.Logger
}

func NewURLLoader(log *zap.Logger) *URLLoader {
	if log == nil {
		log = zap.NewNop()
	}
	return &URLLoader{
		Client:          http.DefaultClient,
		Timeout:         15 * time.Second,
		InitialInterval: 250 * time.Millisecond,
		MaxElapsed:      10 * time.Second,
		Log:             log,
	}
}

func (l *URLLoader) Load(ctx context.Context, rawURL string) (*Image, error) {
	var img *Image
	attempt := 0
	op := func() error {
		attempt++
		actx := ctx
		if l.Timeout > 0 {
			var cancel context.CancelFunc
			actx, cancel = context.WithTimeout(ctx, l.Timeout)
			defer cancel()
		}
		rc, err := l.open(actx, rawURL)
		if err != nil {
			return err
		}
		defer rc.Close()
		img, err = DecodeImage(rc)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("decode %q: %w", rawURL, err))
		}
		return nil
	}

	var b backoff.BackOff = &backoff.StopBackOff{}
	if l.MaxElapsed > 0 {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = l.InitialInterval
		eb.MaxElapsedTime = l.MaxElapsed
		b = eb
	}
	err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		l.Log.Warn("image load failed, retrying",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	})
	if err != nil {
		return nil, err
	}
	return img, nil
}

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string { return fmt.Sprintf("GET %s: status %d", e.URL, e.Code) }

func (l *URLLoader) open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 { // "C:\..." parses with scheme "c"
		return openFile(rawURL)
	}
	switch strings.ToLower(u.Scheme) {
	case "file":
		return openFile(u.Path)
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		client := l.Client
		if client == nil {
			client = http.DefaultClient
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode/100 != 2 {
			resp.Body.Close()
			serr := &StatusError{URL: rawURL, Code: resp.StatusCode}
			if resp.StatusCode/100 == 4 && resp.StatusCode != http.StatusTooManyRequests {
				return nil, backoff.Permanent(serr)
			}
			return nil, serr
		}
		return resp.Body, nil
	}
	return nil, backoff.Permanent(fmt.Errorf("unsupported image url scheme %q", u.Scheme))
}

func openFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return nil, backoff.Permanent(fmt.Errorf("open %q: %w", path, err))
		}
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	return f, nil
}

// LocalPath returns the file path behind rawURL, or "" for remote URLs.
func LocalPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		return filepath.Clean(rawURL)
	}
	if strings.EqualFold(u.Scheme, "file") {
		return filepath.Clean(u.Path)
	}
	return ""
}

// DecodeImage decodes any registered format into a bottom-up RGBA8 Image.
func DecodeImage(r io.Reader) (*Image, error) {
	src, _, err := image.Decode(r)
	if err != nil {
		return nil, err
	}
	rgba := imageToRGBA(src)
	w, h := rgba.Bounds().Dx(), rgba.Bounds().Dy()
	if w == 0 || h == 0 {
		return nil, errors.New("empty image")
	}

	// Repack in tight rows (stride == 4*w), flipping to bottom-up.
	out := make([]byte, w*h*4)
	row := w * 4
	for y := 0; y < h; y++ {
		dst := (h - 1 - y) * row
		copy(out[dst:dst+row], rgba.Pix[y*rgba.Stride:y*rgba.Stride+row])
	}
	return &Image{Width: w, Height: h, Pix: out}, nil
}

func imageToRGBA(img image.Image) *image.NRGBA {
	if m, ok := img.(*image.NRGBA); ok && m.Rect.Min == (image.Point{}) {
		return m
	}
	dst := image.NewNRGBA(image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy()))
	draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Src)
	return dst
}
