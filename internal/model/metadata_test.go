package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlMetadata = `
name: aml
input_name: input_1
input_shape: [1, 227, 227, 3]
outputs:
  - name: dense_out
    shape: [1, 1]
layers:
  - {name: conv1, kind: Conv2D}
  - {name: pool1, kind: pool}
  - {name: conv5, kind: conv2d}
  - {name: fc, kind: dense}
explain:
  conv5:
    activation: conv5_out
    gradient: conv5_grad
    shape: [1, 13, 13, 256]
`

func TestParseMetadataYAML(t *testing.T) {
	meta, err := ParseMetadata([]byte(yamlMetadata), ".yaml")
	require.NoError(t, err)

	assert.Equal(t, "input_1", meta.InputName)
	assert.Equal(t, 227, meta.ImageSize)
	assert.Equal(t, KindConv2D, meta.Layers[0].Kind)
	assert.Equal(t, "conv5_grad", meta.Explain["conv5"].Gradient)
	assert.Equal(t, []int64{1, 13, 13, 256}, meta.Explain["conv5"].Shape)
}

func TestParseMetadataJSONDefaults(t *testing.T) {
	meta, err := ParseMetadata([]byte(`{"image_size": 224}`), ".json")
	require.NoError(t, err)

	assert.Equal(t, "input", meta.InputName)
	assert.Equal(t, []int64{1, 224, 224, 3}, meta.InputShape)
	assert.Equal(t, []Output{{Name: "output", Shape: []int64{1, 1}}}, meta.Outputs)
}

func TestParseMetadataInvalid(t *testing.T) {
	_, err := ParseMetadata([]byte(`{"input_shape": [1, 3]}`), ".json")
	assert.Error(t, err)

	_, err = ParseMetadata([]byte(`{"explain": {"c": {"activation": "a", "shape": [1, 2]}}}`), ".json")
	assert.Error(t, err)

	_, err = ParseMetadata([]byte(`not json`), ".json")
	assert.Error(t, err)
}

func TestLoadMetadataFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aml.yml")
	require.NoError(t, os.WriteFile(path, []byte(yamlMetadata), 0o644))

	meta, err := LoadMetadata(path)
	require.NoError(t, err)
	assert.Equal(t, "aml", meta.Name)

	_, err = LoadMetadata(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestShapeMatches(t *testing.T) {
	assert.True(t, shapeMatches([]int64{1, 227, 227, 3}, []int64{1, 227, 227, 3}))
	assert.True(t, shapeMatches([]int64{-1, 227, 227, 3}, []int64{1, 227, 227, 3}))
	assert.False(t, shapeMatches([]int64{1, 224, 224, 3}, []int64{1, 227, 227, 3}))
	assert.False(t, shapeMatches([]int64{1, 3}, []int64{1, 227, 227, 3}))
}
