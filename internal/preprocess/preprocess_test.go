package preprocess

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func uniform(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("definitely not an image"))
	assert.ErrorIs(t, err, ErrDecode)

	_, err = Decode(nil)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestPrepareShapeAndRange(t *testing.T) {
	raw := encodePNG(t, uniform(40, 30, color.RGBA{R: 255, G: 0, B: 51, A: 255}))

	tt, err := PrepareBytes(raw, Square(227))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 227, 227, 3}, tt.Shape())

	data := tt.Data()
	for _, v := range data {
		assert.GreaterOrEqual(t, v, float32(0))
		assert.LessOrEqual(t, v, float32(1))
	}
	assert.InDelta(t, 1.0, data[0], 0.01)
	assert.InDelta(t, 0.0, data[1], 0.01)
	assert.InDelta(t, 0.2, data[2], 0.01)
}

func TestPrepareIsPerModelSize(t *testing.T) {
	img := uniform(10, 10, color.Gray{Y: 128})

	a, err := Prepare(img, Square(8))
	require.NoError(t, err)
	b, err := Prepare(img, Size{Width: 16, Height: 12})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 8, 8, 3}, a.Shape())
	assert.Equal(t, []int{1, 12, 16, 3}, b.Shape())
}

func TestPrepareDropsAlpha(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 128})
		}
	}
	tt, err := Prepare(img, Square(4))
	require.NoError(t, err)
	assert.Equal(t, 4*4*3, tt.Len())
	for _, v := range tt.Data() {
		assert.InDelta(t, 1.0, v, 0.01)
	}
}

func TestRGBIgnoresAlpha(t *testing.T) {
	r, g, b := RGB(color.NRGBA{R: 200, G: 100, B: 50, A: 64})
	assert.Equal(t, [3]uint8{200, 100, 50}, [3]uint8{r, g, b})

	r, g, b = RGB(color.RGBA{R: 100, G: 50, B: 25, A: 128})
	assert.InDelta(t, 199, int(r), 1)
	assert.InDelta(t, 99, int(g), 1)
	assert.InDelta(t, 49, int(b), 1)
}

func TestPrepareInvalidSize(t *testing.T) {
	_, err := Prepare(uniform(2, 2, color.White), Size{})
	assert.Error(t, err)
}
