package model

import "path/filepath"

// Spec locates one classifier on disk.
type Spec struct {
	Name         string
	ModelPath    string
	MetadataPath string
}

// Registry holds the two process-wide classifiers. It is built once at
// startup and only read afterwards.
type Registry struct {
	AML *Classifier
	ALL *Classifier
}

// LoadRegistry initializes the runtime and loads both classifiers. Any
// failure wraps ErrModelUnavailable.
func LoadRegistry(libPath string, aml, all Spec) (*Registry, error) {
	if err := InitRuntime(libPath, filepath.Dir(aml.ModelPath)); err != nil {
		return nil, err
	}

	amlModel, err := Load(aml.Name, aml.ModelPath, aml.MetadataPath)
	if err != nil {
		return nil, err
	}
	allModel, err := Load(all.Name, all.ModelPath, all.MetadataPath)
	if err != nil {
		amlModel.Close()
		return nil, err
	}
	return &Registry{AML: amlModel, ALL: allModel}, nil
}

func (r *Registry) Close() {
	if r.AML != nil {
		r.AML.Close()
	}
	if r.ALL != nil {
		r.ALL.Close()
	}
	DestroyRuntime()
}
