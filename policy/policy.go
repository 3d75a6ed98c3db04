package policy

import (
	"errors"

	"trader/env"
)

var ErrEmptyTable = errors.New("empty action table")

// ActionPolicy picks an action directly from a state.
type ActionPolicy interface {
	Action(obs env.Observation) (int, error)
}

// Evaluator supplies per-action priors and a state value for node expansion. Priors
// need not sum to one. Implementations shared between workers must be safe for
// concurrent use.
type Evaluator interface {
	Evaluate(obs env.Observation) (priors []float64, value float64, err error)
}

// Guide is implemented by evaluators that also dictate which action the search takes,
// bypassing PUCT selection.
type Guide interface {
	Evaluator
	GuideAction(obs env.Observation) (int, error)
}

type guided struct {
	ActionPolicy
	Evaluator
}

// Guided drives the search with an action policy while expanding with an evaluator.
func Guided(actions ActionPolicy, evaluator Evaluator) Guide {
	return guided{ActionPolicy: actions, Evaluator: evaluator}
}

func (g guided) GuideAction(obs env.Observation) (int, error) {
	return g.Action(obs)
}
