//go:build gocv

package heatmap

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/Brownie44l1/leuko-api/internal/gradcam"
	"gocv.io/x/gocv"
)

func init() {
	backends["opencv"] = OpenCV{}
}

// OpenCV composites with the OpenCV primitives: linear resize,
// COLORMAP_JET and addWeighted.
type OpenCV struct{}

func (OpenCV) Composite(original image.Image, m *gradcam.Map) (*image.RGBA, error) {
	if original == nil || m == nil || m.Width <= 0 || m.Height <= 0 || len(m.Values) != m.Width*m.Height {
		return nil, fmt.Errorf("%w: invalid inputs", ErrCompositing)
	}

	orig, err := gocv.ImageToMatRGB(original)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompositing, err)
	}
	defer orig.Close()

	small := gocv.NewMatWithSize(m.Height, m.Width, gocv.MatTypeCV32F)
	defer small.Close()
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			small.SetFloatAt(y, x, float32(m.At(y, x)))
		}
	}

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(small, &resized, image.Pt(orig.Cols(), orig.Rows()), 0, 0, gocv.InterpolationLinear)
	resized.MultiplyFloat(255)

	levels := gocv.NewMat()
	defer levels.Close()
	resized.ConvertTo(&levels, gocv.MatTypeCV8U)

	colored := gocv.NewMat()
	defer colored.Close()
	gocv.ApplyColorMap(levels, &colored, gocv.ColormapJet)

	blended := gocv.NewMat()
	defer blended.Close()
	gocv.AddWeighted(orig, OriginalWeight, colored, HeatmapWeight, 0, &blended)

	img, err := blended.ToImage()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompositing, err)
	}
	out := image.NewRGBA(img.Bounds())
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
	return out, nil
}
