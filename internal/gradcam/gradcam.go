// Package gradcam computes Grad-CAM saliency maps: the activations of a
// model's last convolution layer weighted by the spatially pooled gradient
// of the positive-class output.
package gradcam

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/Brownie44l1/leuko-api/internal/model"
	"github.com/Brownie44l1/leuko-api/internal/tensor"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrUnavailable wraps every reason a saliency map could not be produced.
	ErrUnavailable = errors.New("saliency unavailable")
	ErrNoConvLayer = fmt.Errorf("%w: model has no convolution layer", ErrUnavailable)
	ErrDegenerate  = fmt.Errorf("%w: heatmap maximum is zero", ErrUnavailable)
)

// GradientEngine is the differentiable view of a classifier.
type GradientEngine interface {
	Layers() []model.Layer
	Forward(ctx context.Context, in *tensor.Tensor, layer string) (*model.Pass, error)
	Backward(ctx context.Context, pass *model.Pass, target model.Target) (*tensor.Tensor, error)
}

// Map is a single-channel saliency map with values in [0,1], laid out row
// by row at the resolution of the convolution feature map.
type Map struct {
	Height int
	Width  int
	Values []float64
}

func (m *Map) At(y, x int) float64 { return m.Values[y*m.Width+x] }

// LastConvLayer scans layers from output to input and returns the first
// convolution it meets.
func LastConvLayer(layers []model.Layer) (model.Layer, bool) {
	for i := len(layers) - 1; i >= 0; i-- {
		if layers[i].Kind == model.KindConv2D {
			return layers[i], true
		}
	}
	return model.Layer{}, false
}

// positiveClass is output 0, channel 0.
var positiveClass = model.Target{Output: 0, Channel: 0}

// Compute runs Grad-CAM for in on engine. Every failure, including panics
// from inconsistent shapes, is returned as an error wrapping ErrUnavailable.
func Compute(ctx context.Context, engine GradientEngine, in *tensor.Tensor) (m *Map, err error) {
	defer func() {
		if r := recover(); r != nil {
			m = nil
			err = fmt.Errorf("%w: %v", ErrUnavailable, r)
		}
	}()

	layer, ok := LastConvLayer(engine.Layers())
	if !ok {
		return nil, ErrNoConvLayer
	}

	pass, err := engine.Forward(ctx, in, layer.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: forward through %s: %w", ErrUnavailable, layer.Name, err)
	}
	if len(pass.Outputs) == 0 || pass.Outputs[0] == nil || pass.Outputs[0].Len() <= positiveClass.Channel {
		return nil, fmt.Errorf("%w: model produced no output for channel %d", ErrUnavailable, positiveClass.Channel)
	}

	grads, err := engine.Backward(ctx, pass, positiveClass)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if grads == nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, model.ErrNoGradient)
	}
	if !tensor.SameShape(grads, pass.Activations) {
		return nil, fmt.Errorf("%w: gradient shape %v does not match activations %v",
			ErrUnavailable, grads.Shape(), pass.Activations.Shape())
	}

	_, h, w, c, err := pass.Activations.NHWC()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	weights := mat.NewVecDense(c, pooledGradients(grads, c))
	acts := mat.NewDense(h*w, c, firstBatch(pass.Activations, h*w*c))

	var heat mat.VecDense
	heat.MulVec(acts, weights)
	values := make([]float64, h*w)
	copy(values, heat.RawVector().Data)

	for i, v := range values {
		if v < 0 || math.IsNaN(v) {
			values[i] = 0
		}
	}
	peak := floats.Max(values)
	if peak == 0 || math.IsInf(peak, 0) {
		return nil, ErrDegenerate
	}
	floats.Scale(1/peak, values)

	return &Map{Height: h, Width: w, Values: values}, nil
}

// pooledGradients averages grads over batch, height and width, leaving
// one weight per channel.
func pooledGradients(grads *tensor.Tensor, channels int) []float64 {
	data := grads.Data()
	pooled := make([]float64, channels)
	for i, g := range data {
		pooled[i%channels] += float64(g)
	}
	floats.Scale(float64(channels)/float64(len(data)), pooled)
	return pooled
}

func firstBatch(t *tensor.Tensor, n int) []float64 {
	out := make([]float64, n)
	for i, v := range t.Data()[:n] {
		out[i] = float64(v)
	}
	return out
}
