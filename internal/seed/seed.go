// Package seed ships the sample model used when no model file is configured
// and written out by "stockflow init".
package seed

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/nvandessel/stockflow/internal/model"
)

//go:embed sample.yaml
var sample []byte

// SampleName is the file name used when the sample is written to disk.
const SampleName = "model.yaml"

// SampleModel returns a copy of the embedded sample model file.
func SampleModel() []byte {
	out := make([]byte, len(sample))
	copy(out, sample)
	return out
}

// SampleRegistry parses the embedded sample model.
func SampleRegistry() (*model.Registry, error) {
	reg, err := model.Parse(sample)
	if err != nil {
		return nil, fmt.Errorf("parse sample model: %w", err)
	}
	return reg, nil
}

// WriteResult reports what WriteSample did.
type WriteResult struct {
	Path    string
	Written bool
}

// WriteSample writes the sample model into dir unless a model file already
// exists there. It never overwrites.
func WriteSample(dir string) (WriteResult, error) {
	path := filepath.Join(dir, SampleName)
	if _, err := os.Stat(path); err == nil {
		return WriteResult{Path: path}, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return WriteResult{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return WriteResult{}, fmt.Errorf("create %s: %w", dir, err)
	}
	if err := os.WriteFile(path, sample, 0644); err != nil {
		return WriteResult{}, fmt.Errorf("write %s: %w", path, err)
	}
	return WriteResult{Path: path, Written: true}, nil
}

// LoadRegistry loads the model file at path, or the sample when path is
// empty. separator applies to files that declare none.
func LoadRegistry(path, separator string) (*model.Registry, error) {
	if path == "" {
		reg, err := model.ParseWithSeparator(sample, separator)
		if err != nil {
			return nil, fmt.Errorf("parse sample model: %w", err)
		}
		return reg, nil
	}
	return model.LoadWithSeparator(path, separator)
}
