package gradcam

import (
	"context"
	"testing"

	"github.com/Brownie44l1/leuko-api/internal/model"
	"github.com/Brownie44l1/leuko-api/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	layers      []model.Layer
	activations *tensor.Tensor
	grads       *tensor.Tensor
	outputs     []*tensor.Tensor
	backwardErr error

	forwardLayer string
	forwardCalls int
	target       model.Target
}

func (f *fakeEngine) Layers() []model.Layer { return f.layers }

func (f *fakeEngine) Forward(_ context.Context, in *tensor.Tensor, layer string) (*model.Pass, error) {
	f.forwardCalls++
	f.forwardLayer = layer
	outputs := f.outputs
	if outputs == nil {
		out, _ := tensor.New([]float32{0.9}, 1, 1)
		outputs = []*tensor.Tensor{out}
	}
	return &model.Pass{Layer: layer, Input: in, Activations: f.activations, Outputs: outputs}, nil
}

func (f *fakeEngine) Backward(_ context.Context, _ *model.Pass, target model.Target) (*tensor.Tensor, error) {
	f.target = target
	if f.backwardErr != nil {
		return nil, f.backwardErr
	}
	return f.grads, nil
}

func mustTensor(t *testing.T, data []float32, shape ...int) *tensor.Tensor {
	t.Helper()
	tt, err := tensor.New(data, shape...)
	require.NoError(t, err)
	return tt
}

var convLayers = []model.Layer{
	{Name: "conv1", Kind: model.KindConv2D},
	{Name: "pool1", Kind: model.KindPool},
	{Name: "conv2", Kind: model.KindConv2D},
	{Name: "gap", Kind: model.KindPool},
	{Name: "fc", Kind: model.KindDense},
}

// 2x2 feature map, 2 channels, NHWC.
func twoByTwo(t *testing.T) *tensor.Tensor {
	return mustTensor(t, []float32{
		1, 0, 0, 1,
		2, 2, 0, 0,
	}, 1, 2, 2, 2)
}

func TestLastConvLayer(t *testing.T) {
	layer, ok := LastConvLayer(convLayers)
	require.True(t, ok)
	assert.Equal(t, "conv2", layer.Name)

	_, ok = LastConvLayer([]model.Layer{{Name: "fc", Kind: model.KindDense}})
	assert.False(t, ok)

	_, ok = LastConvLayer(nil)
	assert.False(t, ok)
}

func TestComputeWeightsChannelsByPooledGradient(t *testing.T) {
	engine := &fakeEngine{
		layers:      convLayers,
		activations: twoByTwo(t),
		// channel 0 gradient 2, channel 1 gradient -0.5 everywhere
		grads: mustTensor(t, []float32{
			2, -0.5, 2, -0.5,
			2, -0.5, 2, -0.5,
		}, 1, 2, 2, 2),
	}

	m, err := Compute(context.Background(), engine, tensor.Zeros(1, 4, 4, 3))
	require.NoError(t, err)

	assert.Equal(t, "conv2", engine.forwardLayer)
	assert.Equal(t, model.Target{Output: 0, Channel: 0}, engine.target)
	assert.Equal(t, 2, m.Height)
	assert.Equal(t, 2, m.Width)
	// raw map: [2, -0.5, 3, 0] -> relu -> / 3
	assert.InDeltaSlice(t, []float64{2.0 / 3.0, 0, 1, 0}, m.Values, 1e-9)
	assert.InDelta(t, 1.0, m.At(1, 0), 1e-9)
	for _, v := range m.Values {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestComputeWithoutConvLayer(t *testing.T) {
	engine := &fakeEngine{layers: []model.Layer{{Name: "fc", Kind: model.KindDense}}}

	m, err := Compute(context.Background(), engine, tensor.Zeros(1, 2, 2, 3))
	assert.Nil(t, m)
	assert.ErrorIs(t, err, ErrNoConvLayer)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Zero(t, engine.forwardCalls)
}

func TestComputeWithoutGradient(t *testing.T) {
	engine := &fakeEngine{layers: convLayers, activations: twoByTwo(t), backwardErr: model.ErrNoGradient}

	m, err := Compute(context.Background(), engine, tensor.Zeros(1, 2, 2, 3))
	assert.Nil(t, m)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, model.ErrNoGradient)

	engine = &fakeEngine{layers: convLayers, activations: twoByTwo(t)}
	_, err = Compute(context.Background(), engine, tensor.Zeros(1, 2, 2, 3))
	assert.ErrorIs(t, err, model.ErrNoGradient)
}

func TestComputeDegenerateMap(t *testing.T) {
	engine := &fakeEngine{
		layers:      convLayers,
		activations: twoByTwo(t),
		grads:       mustTensor(t, []float32{-1, -1, -1, -1, -1, -1, -1, -1}, 1, 2, 2, 2),
	}

	m, err := Compute(context.Background(), engine, tensor.Zeros(1, 2, 2, 3))
	assert.Nil(t, m)
	assert.ErrorIs(t, err, ErrDegenerate)

	engine.grads = tensor.Zeros(1, 2, 2, 2)
	_, err = Compute(context.Background(), engine, tensor.Zeros(1, 2, 2, 3))
	assert.ErrorIs(t, err, ErrDegenerate)
}

func TestComputeShapeMismatch(t *testing.T) {
	engine := &fakeEngine{
		layers:      convLayers,
		activations: twoByTwo(t),
		grads:       tensor.Zeros(1, 2, 2, 3),
	}

	_, err := Compute(context.Background(), engine, tensor.Zeros(1, 2, 2, 3))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestComputeMissingOutput(t *testing.T) {
	engine := &fakeEngine{
		layers:      convLayers,
		activations: twoByTwo(t),
		grads:       twoByTwo(t),
		outputs:     []*tensor.Tensor{},
	}

	_, err := Compute(context.Background(), engine, tensor.Zeros(1, 2, 2, 3))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestComputeRecoversFromPanics(t *testing.T) {
	// rank-2 activations with a matching gradient shape make NHWC fail and
	// must not escape as a panic.
	acts := tensor.Zeros(4, 2)
	engine := &fakeEngine{layers: convLayers, activations: acts, grads: tensor.Zeros(4, 2)}

	assert.NotPanics(t, func() {
		_, err := Compute(context.Background(), engine, tensor.Zeros(1, 2, 2, 3))
		assert.ErrorIs(t, err, ErrUnavailable)
	})
}
