package preprocess

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/Brownie44l1/leuko-api/internal/tensor"
	"github.com/nfnt/resize"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const channels = 3

// ErrDecode is returned when the upload is not a readable image.
var ErrDecode = errors.New("image decode failed")

// Size is the square (or rectangular) resolution a classifier was trained on.
type Size struct {
	Width  int
	Height int
}

func Square(n int) Size { return Size{Width: n, Height: n} }

// Decode turns raw upload bytes into an image.
func Decode(raw []byte) (image.Image, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty upload", ErrDecode)
	}
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: zero-sized %s image", ErrDecode, format)
	}
	log.Debug().Msgf("Decoded %s image %dx%d", format, b.Dx(), b.Dy())
	return img, nil
}

// Prepare converts img to the NHWC tensor a classifier expects: RGB,
// resized to size, values scaled into [0,1], batch of one.
func Prepare(img image.Image, size Size) (*tensor.Tensor, error) {
	if size.Width <= 0 || size.Height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", size.Width, size.Height)
	}
	resized := resize.Resize(uint(size.Width), uint(size.Height), img, resize.Bilinear)

	bounds := resized.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width != size.Width || height != size.Height {
		return nil, fmt.Errorf("resize produced %dx%d, want %dx%d", width, height, size.Width, size.Height)
	}

	data := make([]float32, height*width*channels)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b := RGB(resized.At(bounds.Min.X+x, bounds.Min.Y+y))

			i := (y*width + x) * channels
			data[i] = float32(r) / 255.0
			data[i+1] = float32(g) / 255.0
			data[i+2] = float32(b) / 255.0
		}
	}

	return tensor.New(data, 1, height, width, channels)
}

// RGB returns the 8-bit colour channels of c with alpha discarded. Values
// are not premultiplied, so a translucent white pixel stays white.
func RGB(c color.Color) (r, g, b uint8) {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return n.R, n.G, n.B
}

// PrepareBytes decodes raw and prepares it for one classifier.
func PrepareBytes(raw []byte, size Size) (*tensor.Tensor, error) {
	img, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	return Prepare(img, size)
}
