// Package tensor holds the dense float32 arrays exchanged between the
// preprocessor, the classifiers and the Grad-CAM step.
package tensor

import (
	"errors"
	"fmt"
)

var ErrShape = errors.New("tensor shape mismatch")

// Tensor is a row-major float32 array. Image tensors are NHWC with N=1.
type Tensor struct {
	shape []int
	data  []float32
}

// New wraps data with the given shape. The element count must match.
func New(data []float32, shape ...int) (*Tensor, error) {
	n := 1
	for _, d := range shape {
		if d <= 0 {
			return nil, fmt.Errorf("%w: non-positive dimension in %v", ErrShape, shape)
		}
		n *= d
	}
	if len(shape) == 0 || n != len(data) {
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrShape, len(data), shape)
	}
	s := make([]int, len(shape))
	copy(s, shape)
	return &Tensor{shape: s, data: data}, nil
}

// Zeros allocates a zero-filled tensor.
func Zeros(shape ...int) *Tensor {
	n := 1
	for _, d := range shape {
		n *= d
	}
	t, err := New(make([]float32, n), shape...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Tensor) Shape() []int {
	s := make([]int, len(t.shape))
	copy(s, t.shape)
	return s
}

func (t *Tensor) Rank() int { return len(t.shape) }

func (t *Tensor) Len() int { return len(t.data) }

// Data exposes the backing slice. Callers must not modify it once the
// tensor has been handed to a classifier.
func (t *Tensor) Data() []float32 { return t.data }

// Int64Shape is the shape in the form ONNX Runtime expects.
func (t *Tensor) Int64Shape() []int64 {
	s := make([]int64, len(t.shape))
	for i, d := range t.shape {
		s[i] = int64(d)
	}
	return s
}

// NHWC returns the four dimensions of a rank-4 tensor.
func (t *Tensor) NHWC() (n, h, w, c int, err error) {
	if len(t.shape) != 4 {
		return 0, 0, 0, 0, fmt.Errorf("%w: want rank 4, got %v", ErrShape, t.shape)
	}
	return t.shape[0], t.shape[1], t.shape[2], t.shape[3], nil
}

// SameShape reports whether both tensors have identical dimensions.
func SameShape(a, b *Tensor) bool {
	if a == nil || b == nil || len(a.shape) != len(b.shape) {
		return false
	}
	for i := range a.shape {
		if a.shape[i] != b.shape[i] {
			return false
		}
	}
	return true
}
