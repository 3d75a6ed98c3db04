package policy

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"trader/env"
)

var ErrInputShape = errors.New("observation does not match model input")

// Model is the trainable estimator consulted by the search. Training and persistence
// live outside this module.
type Model interface {
	Predict(obs env.Observation) (priors []float64, value float64, err error)
}

// ModelPolicy evaluates states with a model and, as an action policy, exploits its
// most probable action.
type ModelPolicy struct {
	model Model
}

func NewModelPolicy(model Model) *ModelPolicy {
	return &ModelPolicy{model: model}
}

func (p *ModelPolicy) Evaluate(obs env.Observation) ([]float64, float64, error) {
	priors, value, err := p.model.Predict(obs)
	if err != nil {
		return nil, 0, fmt.Errorf("model predict: %w", err)
	}
	return priors, value, nil
}

func (p *ModelPolicy) Action(obs env.Observation) (int, error) {
	priors, _, err := p.Evaluate(obs)
	if err != nil {
		return 0, err
	}
	return Table(priors).Action(obs)
}

// LinearModel is a softmax policy head and a linear value head over the flattened
// observation. It is read-only once built.
type LinearModel struct {
	policy     *mat.Dense
	policyBias []float64
	value      []float64
	valueBias  float64
}

// NewLinearModel builds a model for `actions` outputs over `inputs` features. Weights
// are row-major actions×inputs; nil weights start at zero, which yields uniform priors.
func NewLinearModel(actions, inputs int, weights []float64, valueWeights []float64) (*LinearModel, error) {
	if actions <= 0 || inputs <= 0 {
		return nil, fmt.Errorf("invalid linear model shape %dx%d", actions, inputs)
	}
	if weights != nil && len(weights) != actions*inputs {
		return nil, fmt.Errorf("policy weights: want %d values, got %d", actions*inputs, len(weights))
	}
	if valueWeights == nil {
		valueWeights = make([]float64, inputs)
	}
	if len(valueWeights) != inputs {
		return nil, fmt.Errorf("value weights: want %d values, got %d", inputs, len(valueWeights))
	}
	return &LinearModel{
		policy:     mat.NewDense(actions, inputs, weights),
		policyBias: make([]float64, actions),
		value:      valueWeights,
	}, nil
}

func (m *LinearModel) SetBias(policyBias []float64, valueBias float64) error {
	if len(policyBias) != len(m.policyBias) {
		return fmt.Errorf("policy bias: want %d values, got %d", len(m.policyBias), len(policyBias))
	}
	copy(m.policyBias, policyBias)
	m.valueBias = valueBias
	return nil
}

func (m *LinearModel) Predict(obs env.Observation) ([]float64, float64, error) {
	actions, inputs := m.policy.Dims()
	if len(obs) != inputs {
		return nil, 0, fmt.Errorf("%w: want %d values, got %d", ErrInputShape, inputs, len(obs))
	}

	x := mat.NewVecDense(inputs, []float64(obs))
	var logits mat.VecDense
	logits.MulVec(m.policy, x)

	priors := make([]float64, actions)
	for i := range priors {
		priors[i] = logits.AtVec(i) + m.policyBias[i]
	}
	softmax(priors)

	value := floats.Dot(m.value, obs) + m.valueBias
	return priors, value, nil
}

func softmax(x []float64) {
	peak := floats.Max(x)
	for i := range x {
		x[i] = math.Exp(x[i] - peak)
	}
	floats.Scale(1/floats.Sum(x), x)
}
