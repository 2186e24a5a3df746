package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultImageSize = 227

// LoadMetadata reads a model's metadata file. The format follows the
// extension: .yaml/.yml is YAML, anything else JSON.
func LoadMetadata(path string) (*Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	return ParseMetadata(raw, filepath.Ext(path))
}

func ParseMetadata(raw []byte, ext string) (*Metadata, error) {
	var meta Metadata
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &meta); err != nil {
			return nil, fmt.Errorf("failed to parse metadata: %w", err)
		}
	default:
		if err := json.Unmarshal(raw, &meta); err != nil {
			return nil, fmt.Errorf("failed to parse metadata: %w", err)
		}
	}
	applyDefaults(&meta)
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	return &meta, nil
}

func applyDefaults(m *Metadata) {
	if m.InputName == "" {
		m.InputName = "input"
	}
	if m.ImageSize == 0 {
		m.ImageSize = defaultImageSize
	}
	if len(m.InputShape) == 0 {
		m.InputShape = []int64{1, int64(m.ImageSize), int64(m.ImageSize), 3}
	}
	if len(m.Outputs) == 0 {
		m.Outputs = []Output{{Name: "output", Shape: []int64{1, 1}}}
	}
	for i := range m.Layers {
		m.Layers[i].Kind = LayerKind(strings.ToLower(string(m.Layers[i].Kind)))
	}
}

// Validate checks the fields needed to build sessions.
func (m *Metadata) Validate() error {
	if len(m.InputShape) != 4 {
		return fmt.Errorf("input_shape must be NHWC, got %v", m.InputShape)
	}
	for _, o := range m.Outputs {
		if o.Name == "" {
			return fmt.Errorf("output with empty name")
		}
		if len(o.Shape) == 0 {
			return fmt.Errorf("output %q has no shape", o.Name)
		}
	}
	for layer, e := range m.Explain {
		if e.Activation == "" || len(e.Shape) != 4 {
			return fmt.Errorf("explain entry for %q needs activation name and NHWC shape", layer)
		}
	}
	return nil
}
