package model

import (
	"errors"

	"github.com/Brownie44l1/leuko-api/internal/tensor"
)

var (
	// ErrModelUnavailable marks a classifier that could not be loaded.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrNoGradient is returned when the graph cannot provide the
	// requested gradient.
	ErrNoGradient = errors.New("no gradient available")
)

type LayerKind string

const (
	KindConv2D        LayerKind = "conv2d"
	KindPool          LayerKind = "pool"
	KindDense         LayerKind = "dense"
	KindActivation    LayerKind = "activation"
	KindNormalization LayerKind = "normalization"
	KindOther         LayerKind = "other"
)

// Layer describes one entry of a model's ordered layer sequence.
type Layer struct {
	Name string    `json:"name" yaml:"name"`
	Kind LayerKind `json:"kind" yaml:"kind"`
}

type Output struct {
	Name  string  `json:"name" yaml:"name"`
	Shape []int64 `json:"shape" yaml:"shape"`
}

// Explain names the extra graph outputs exported for one layer: its
// activations and the gradient of output 0, channel 0 with respect to them.
type Explain struct {
	Activation string  `json:"activation" yaml:"activation"`
	Gradient   string  `json:"gradient" yaml:"gradient"`
	Shape      []int64 `json:"shape" yaml:"shape"`
}

type Metadata struct {
	Name       string             `json:"name" yaml:"name"`
	InputName  string             `json:"input_name" yaml:"input_name"`
	InputShape []int64            `json:"input_shape" yaml:"input_shape"`
	Outputs    []Output           `json:"outputs" yaml:"outputs"`
	ImageSize  int                `json:"image_size" yaml:"image_size"`
	Layers     []Layer            `json:"layers" yaml:"layers"`
	Explain    map[string]Explain `json:"explain" yaml:"explain"`
}

// Pass is the result of a forward run that exposes one layer's activations.
type Pass struct {
	Layer       string
	Input       *tensor.Tensor
	Activations *tensor.Tensor
	Outputs     []*tensor.Tensor
}

// Target selects the scalar to differentiate: Outputs[Output][0, Channel].
type Target struct {
	Output  int
	Channel int
}
