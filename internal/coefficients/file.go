package coefficients

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// FileStore loads coefficients from a YAML file.
//
//	beta: 0.42
//	regression:
//	  intercept: -0.4
//	  signal: 0.4
//	traffic_means:
//	  bopal: 1200000
type FileStore struct {
	Path string
}

type fileDocument struct {
	Beta         *float64           `yaml:"beta"`
	Regression   Regression         `yaml:"regression"`
	TrafficMeans map[string]float64 `yaml:"traffic_means"`
}

// Load implements Store. A missing beta uses DefaultBeta.
func (f FileStore) Load(_ context.Context) (*Set, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, f.Path)
		}
		return nil, fmt.Errorf("read coefficients: %w", err)
	}

	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode coefficients: %w", err)
	}

	beta := DefaultBeta
	if doc.Beta != nil {
		beta = *doc.Beta
	}

	return NewSet(beta, doc.Regression, doc.TrafficMeans, "file:"+f.Path)
}
