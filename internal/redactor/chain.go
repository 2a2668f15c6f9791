package redactor

import (
	"context"
	"fmt"

	"imageeditor/internal/domain"
	"imageeditor/internal/imatrix"
)

// Step is one stage of the editing pipeline.
type Step interface {
	Name() string
	ShouldRun(p domain.EditorParams) bool
	Apply(ctx context.Context, img imatrix.Image, p domain.EditorParams) (imatrix.Image, error)
}

type Chain struct {
	steps []Step
}

func NewChain(steps ...Step) *Chain {
	return &Chain{steps: steps}
}

// Execute runs every enabled step in order and reports which ones ran.
// Cancellation is checked between steps.
func (c *Chain) Execute(ctx context.Context, input imatrix.Image, p domain.EditorParams) (imatrix.Image, []string, error) {
	current := input
	applied := make([]string, 0, len(c.steps))

	for _, step := range c.steps {
		if err := ctx.Err(); err != nil {
			return imatrix.Image{}, applied, err
		}
		if !step.ShouldRun(p) {
			continue
		}

		next, err := step.Apply(ctx, current, p)
		if err != nil {
			return imatrix.Image{}, applied, fmt.Errorf("step %s failed: %w", step.Name(), err)
		}
		current = next
		applied = append(applied, step.Name())
	}

	return current, applied, nil
}

func (c *Chain) StepNames() []string {
	names := make([]string, len(c.steps))
	for i, step := range c.steps {
		names[i] = step.Name()
	}
	return names
}
