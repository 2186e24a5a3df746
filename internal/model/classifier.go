package model

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/Brownie44l1/leuko-api/internal/preprocess"
	"github.com/Brownie44l1/leuko-api/internal/tensor"
	"github.com/rs/zerolog/log"
	ort "github.com/yalue/onnxruntime_go"
)

// Classifier wraps one ONNX binary classifier. The sessions are shared by
// all requests; mu serializes runs on this model only.
type Classifier struct {
	name      string
	modelPath string
	Metadata  Metadata

	mu       sync.Mutex
	predict  *ort.DynamicAdvancedSession
	forward  map[string]*ort.DynamicAdvancedSession
	backward map[string]*ort.DynamicAdvancedSession
}

// Load builds the prediction session for modelPath using its metadata.
func Load(name, modelPath, metadataPath string) (*Classifier, error) {
	meta, err := LoadMetadata(metadataPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelUnavailable, name, err)
	}

	outputs := make([]string, len(meta.Outputs))
	for i, o := range meta.Outputs {
		outputs[i] = o.Name
	}
	session, err := ort.NewDynamicAdvancedSession(modelPath, []string{meta.InputName}, outputs, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: failed to create ONNX session: %v", ErrModelUnavailable, name, err)
	}

	log.Info().Msgf("Loaded %s classifier from %s (%d layers, input %v)", name, modelPath, len(meta.Layers), meta.InputShape)
	return &Classifier{
		name:      name,
		modelPath: modelPath,
		Metadata:  *meta,
		predict:   session,
		forward:   map[string]*ort.DynamicAdvancedSession{},
		backward:  map[string]*ort.DynamicAdvancedSession{},
	}, nil
}

func (c *Classifier) Name() string { return c.name }

func (c *Classifier) InputSize() preprocess.Size {
	return preprocess.Square(c.Metadata.ImageSize)
}

func (c *Classifier) Layers() []Layer {
	out := make([]Layer, len(c.Metadata.Layers))
	copy(out, c.Metadata.Layers)
	return out
}

// Predict returns the positive-class probability: first output, batch 0,
// channel 0.
func (c *Classifier) Predict(ctx context.Context, in *tensor.Tensor) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	outs, err := c.run(c.predict, in, c.outputShapes())
	if err != nil {
		return 0, fmt.Errorf("%s inference failed: %w", c.name, err)
	}
	p := float64(outs[0].Data()[0])
	if math.IsNaN(p) {
		return 0, fmt.Errorf("%s inference produced NaN", c.name)
	}
	return p, nil
}

// Forward runs the explanation graph for layer, returning its activations
// and every model output.
func (c *Classifier) Forward(ctx context.Context, in *tensor.Tensor, layer string) (*Pass, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ex, ok := c.Metadata.Explain[layer]
	if !ok {
		return nil, fmt.Errorf("%w: layer %q is not exported by %s", ErrNoGradient, layer, c.name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	session, err := c.session(c.forward, layer, append([]string{ex.Activation}, c.outputNames()...))
	if err != nil {
		return nil, err
	}
	shapes := append([][]int64{ex.Shape}, c.outputShapes()...)
	outs, err := c.run(session, in, shapes)
	if err != nil {
		return nil, fmt.Errorf("%s forward failed: %w", c.name, err)
	}
	return &Pass{
		Layer:       layer,
		Input:       in,
		Activations: outs[0],
		Outputs:     outs[1:],
	}, nil
}

// Backward returns the exported gradient of output 0, channel 0 with
// respect to the pass's activations. Other targets have no exported graph.
func (c *Classifier) Backward(ctx context.Context, pass *Pass, target Target) (*tensor.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if pass == nil {
		return nil, fmt.Errorf("%w: nil forward pass", ErrNoGradient)
	}
	ex, ok := c.Metadata.Explain[pass.Layer]
	if !ok || ex.Gradient == "" {
		return nil, fmt.Errorf("%w: no gradient output for layer %q", ErrNoGradient, pass.Layer)
	}
	if target != (Target{}) {
		return nil, fmt.Errorf("%w: only output 0 channel 0 is exported, got %+v", ErrNoGradient, target)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	session, err := c.session(c.backward, pass.Layer, []string{ex.Gradient})
	if err != nil {
		return nil, err
	}
	outs, err := c.run(session, pass.Input, [][]int64{ex.Shape})
	if err != nil {
		return nil, fmt.Errorf("%s backward failed: %w", c.name, err)
	}
	return outs[0], nil
}

// session returns the cached session for layer, creating it on first use.
// Callers hold c.mu.
func (c *Classifier) session(cache map[string]*ort.DynamicAdvancedSession, layer string, outputs []string) (*ort.DynamicAdvancedSession, error) {
	if s, ok := cache[layer]; ok {
		return s, nil
	}
	s, err := ort.NewDynamicAdvancedSession(c.modelPath, []string{c.Metadata.InputName}, outputs, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create session for %v: %v", ErrNoGradient, outputs, err)
	}
	cache[layer] = s
	return s, nil
}

func (c *Classifier) run(session *ort.DynamicAdvancedSession, in *tensor.Tensor, shapes [][]int64) ([]*tensor.Tensor, error) {
	if !shapeMatches(c.Metadata.InputShape, in.Int64Shape()) {
		return nil, fmt.Errorf("%w: input %v, model expects %v", tensor.ErrShape, in.Shape(), c.Metadata.InputShape)
	}

	input, err := ort.NewTensor(ort.NewShape(in.Int64Shape()...), in.Data())
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer input.Destroy()

	outputs := make([]ort.Value, len(shapes))
	typed := make([]*ort.Tensor[float32], len(shapes))
	defer func() {
		for _, t := range typed {
			if t != nil {
				t.Destroy()
			}
		}
	}()
	for i, s := range shapes {
		t, err := ort.NewEmptyTensor[float32](ort.NewShape(s...))
		if err != nil {
			return nil, fmt.Errorf("failed to create output tensor: %w", err)
		}
		typed[i] = t
		outputs[i] = t
	}

	if err := session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, err
	}

	result := make([]*tensor.Tensor, len(typed))
	for i, t := range typed {
		data := make([]float32, len(t.GetData()))
		copy(data, t.GetData())
		dims := make([]int, len(shapes[i]))
		for j, d := range shapes[i] {
			dims[j] = int(d)
		}
		out, err := tensor.New(data, dims...)
		if err != nil {
			return nil, err
		}
		result[i] = out
	}
	return result, nil
}

func (c *Classifier) outputNames() []string {
	names := make([]string, len(c.Metadata.Outputs))
	for i, o := range c.Metadata.Outputs {
		names[i] = o.Name
	}
	return names
}

func (c *Classifier) outputShapes() [][]int64 {
	shapes := make([][]int64, len(c.Metadata.Outputs))
	for i, o := range c.Metadata.Outputs {
		shapes[i] = o.Shape
	}
	return shapes
}

// shapeMatches treats non-positive expected dims as dynamic.
func shapeMatches(expected, got []int64) bool {
	if len(expected) != len(got) {
		return false
	}
	for i := range expected {
		if expected[i] > 0 && expected[i] != got[i] {
			return false
		}
	}
	return true
}

func (c *Classifier) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.predict != nil {
		c.predict.Destroy()
		c.predict = nil
	}
	for _, s := range c.forward {
		s.Destroy()
	}
	for _, s := range c.backward {
		s.Destroy()
	}
	c.forward = map[string]*ort.DynamicAdvancedSession{}
	c.backward = map[string]*ort.DynamicAdvancedSession{}
}
