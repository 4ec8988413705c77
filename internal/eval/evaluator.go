package eval

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/apple/pkl-go/pkl"
	"github.com/picklr-io/ocrstack/internal/ir"
)

// Evaluator evaluates pkl modules into IR types.
type Evaluator struct {
	properties map[string]string
}

// NewEvaluator returns an evaluator that exposes properties to modules as
// read("prop:<name>").
func NewEvaluator(properties map[string]string) *Evaluator {
	return &Evaluator{properties: properties}
}

// LoadOverrides evaluates a topology overrides module.
func (e *Evaluator) LoadOverrides(ctx context.Context, path string) (*ir.Overrides, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	opts := []func(*pkl.EvaluatorOptions){pkl.PreconfiguredOptions}
	if len(e.properties) > 0 {
		opts = append(opts, func(o *pkl.EvaluatorOptions) {
			if o.Properties == nil {
				o.Properties = make(map[string]string)
			}
			for k, v := range e.properties {
				o.Properties[k] = v
			}
		})
	}

	evaluator, err := pkl.NewEvaluator(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create PKL evaluator: %w", err)
	}
	defer evaluator.Close()

	var overrides ir.Overrides
	if err := evaluator.EvaluateModule(ctx, pkl.FileSource(abs), &overrides); err != nil {
		return nil, fmt.Errorf("failed to evaluate %s: %w", path, err)
	}
	return &overrides, nil
}
