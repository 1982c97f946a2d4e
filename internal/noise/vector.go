// Package noise derives the per-variable perturbation amplitudes used to seed
// an ensemble forecast from historical forecast skill.
package noise

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/i474232898/hens-workflow/internal/common"
)

// Rank is the number of axes of the forecast state tensor the vector is
// broadcast against.
const Rank = 6

// VariableAxis is the axis of the forecast state tensor that indexes model
// variables. All other axes of the noise vector have length one.
const VariableAxis = 3

// ErrSkillNotFound is returned when a perturbed variable has no skill score
// at the requested lead time.
var ErrSkillNotFound = errors.New("no skill score for variable")

// Vector holds one amplitude per model variable, in the model's variable order.
type Vector struct {
	values []float64
}

// Len returns the number of variables.
func (v Vector) Len() int { return len(v.values) }

// Values returns a copy of the amplitudes.
func (v Vector) Values() []float64 {
	return append([]float64(nil), v.values...)
}

// Shape returns the broadcast shape (1, 1, 1, n, 1, 1).
func (v Vector) Shape() [Rank]int {
	var s [Rank]int
	for i := range s {
		s[i] = 1
	}
	s[VariableAxis] = len(v.values)
	return s
}

// At indexes the vector as a rank-6 tensor of shape Shape().
func (v Vector) At(idx [Rank]int) (float64, error) {
	shape := v.Shape()
	for axis, i := range idx {
		if i < 0 || i >= shape[axis] {
			return 0, fmt.Errorf("index %v out of range for shape %v", idx, shape)
		}
	}
	return v.values[idx[VariableAxis]], nil
}

// MarshalJSON encodes the vector with its broadcast shape.
func (v Vector) MarshalJSON() ([]byte, error) {
	values := v.values
	if values == nil {
		values = []float64{}
	}
	return json.Marshal(struct {
		Shape  [Rank]int `json:"shape"`
		Values []float64 `json:"values"`
	}{Shape: v.Shape(), Values: values})
}

type buildOptions struct {
	perturbed     []string
	perturbAll    bool
	amplification float64
}

// Option tunes Build.
type Option func(*buildOptions)

// WithPerturbed restricts perturbation to vars. Calling it with no variables
// perturbs nothing; not calling it perturbs every model variable.
func WithPerturbed(vars ...string) Option {
	return func(o *buildOptions) {
		o.perturbAll = false
		o.perturbed = append([]string(nil), vars...)
	}
}

// WithAmplification scales every entry by factor. The default is 1.
func WithAmplification(factor float64) Option {
	return func(o *buildOptions) {
		o.amplification = factor
	}
}

// Build returns the noise vector for variables: the skill score of each
// perturbed variable at leadTime, zero for the rest, times the amplification.
func Build(variables []string, skill *SkillTable, leadTime int, opts ...Option) (Vector, error) {
	if skill == nil {
		return Vector{}, fmt.Errorf("%w: provide a data set containing %dh deterministic [r]mse", common.ErrConfiguration, leadTime)
	}

	o := buildOptions{perturbAll: true, amplification: 1}
	for _, opt := range opts {
		opt(&o)
	}
	perturbed := make(map[string]struct{}, len(o.perturbed))
	for _, name := range o.perturbed {
		perturbed[name] = struct{}{}
	}

	values := make([]float64, len(variables))
	for i, name := range variables {
		if _, ok := perturbed[name]; !o.perturbAll && !ok {
			continue
		}
		score, ok := skill.Lookup(name, leadTime)
		if !ok {
			return Vector{}, fmt.Errorf("%w: %s at %dh", ErrSkillNotFound, name, leadTime)
		}
		values[i] = score * o.amplification
	}
	return Vector{values: values}, nil
}

// PerturbedFromList maps a configured variable list onto Build options: an
// unset list perturbs everything.
func PerturbedFromList(vars []string, set bool) []Option {
	if !set {
		return nil
	}
	return []Option{WithPerturbed(vars...)}
}
