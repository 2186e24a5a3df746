// Package heatmap renders a Grad-CAM map onto the image it explains.
package heatmap

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"sort"

	"github.com/Brownie44l1/leuko-api/internal/gradcam"
	"github.com/Brownie44l1/leuko-api/internal/preprocess"
	"golang.org/x/image/draw"
)

const (
	OriginalWeight = 0.6
	HeatmapWeight  = 0.4
)

var ErrCompositing = errors.New("heatmap compositing failed")

// Compositor blends a saliency map onto the original upload. The result
// has exactly the original's width and height.
type Compositor interface {
	Composite(original image.Image, m *gradcam.Map) (*image.RGBA, error)
}

var backends = map[string]Compositor{
	"default": Blender{},
}

// New returns the named compositor backend.
func New(name string) (Compositor, error) {
	if name == "" {
		name = "default"
	}
	c, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("unknown heatmap backend %q (available: %v)", name, Backends())
	}
	return c, nil
}

func Backends() []string {
	names := make([]string, 0, len(backends))
	for n := range backends {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Blender is the pure Go compositor: bilinear upscale, jet colour map,
// fixed-weight blend.
type Blender struct{}

func (Blender) Composite(original image.Image, m *gradcam.Map) (out *image.RGBA, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("%w: %v", ErrCompositing, r)
		}
	}()

	if original == nil {
		return nil, fmt.Errorf("%w: no original image", ErrCompositing)
	}
	bounds := original.Bounds()
	heat, err := Upscale(m, bounds.Dx(), bounds.Dy())
	if err != nil {
		return nil, err
	}

	out = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			level := Quantize(heat.Gray16At(x, y))
			c := jetLUT[level]
			r, g, b := preprocess.RGB(original.At(bounds.Min.X+x, bounds.Min.Y+y))
			out.SetRGBA(x, y, color.RGBA{
				R: blend(r, c.R),
				G: blend(g, c.G),
				B: blend(b, c.B),
				A: 255,
			})
		}
	}
	return out, nil
}

// Upscale resizes m to width x height with bilinear interpolation. Values
// are carried at 16-bit precision.
func Upscale(m *gradcam.Map, width, height int) (*image.Gray16, error) {
	if m == nil || m.Width <= 0 || m.Height <= 0 || len(m.Values) != m.Width*m.Height {
		return nil, fmt.Errorf("%w: malformed saliency map", ErrCompositing)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: empty target %dx%d", ErrCompositing, width, height)
	}

	src := image.NewGray16(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			v := math.Min(1, math.Max(0, m.At(y, x)))
			src.SetGray16(x, y, color.Gray16{Y: uint16(math.Round(v * 0xffff))})
		}
	}

	dst := image.NewGray16(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst, nil
}

// Quantize maps a 16-bit saliency value to 8 bits, truncating like a
// uint8 cast of 255*v.
func Quantize(c color.Gray16) uint8 {
	return uint8(255 * float64(c.Y) / 0xffff)
}

func blend(orig, heat uint8) uint8 {
	v := math.Round(OriginalWeight*float64(orig) + HeatmapWeight*float64(heat))
	if v > 255 {
		return 255
	}
	return uint8(v)
}

var jetLUT = buildJet()

// Jet returns the jet colour for level: dark blue at 0 through cyan,
// yellow and red to dark red at 255.
func Jet(level uint8) color.RGBA { return jetLUT[level] }

func buildJet() [256]color.RGBA {
	var lut [256]color.RGBA
	for i := range lut {
		x := float64(i) / 255
		lut[i] = color.RGBA{
			R: channel(math.Min(4*x-1.5, -4*x+4.5)),
			G: channel(math.Min(4*x-0.5, -4*x+3.5)),
			B: channel(math.Min(4*x+0.5, -4*x+2.5)),
			A: 255,
		}
	}
	return lut
}

func channel(v float64) uint8 {
	return uint8(math.Round(255 * math.Min(1, math.Max(0, v))))
}

// EncodePNG serializes a composite for storage.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: png encode: %v", ErrCompositing, err)
	}
	return buf.Bytes(), nil
}
