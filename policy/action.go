package policy

import (
	"fmt"
	"sync"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"

	"trader/env"
)

// Random picks uniformly among the legal actions.
type Random struct {
	mu      sync.Mutex
	actions []int
	rng     *rand.Rand
}

func NewRandom(actions []int, seed uint64) *Random {
	return &Random{
		actions: actions,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

func (r *Random) Action(env.Observation) (int, error) {
	if len(r.actions) == 0 {
		return 0, fmt.Errorf("random policy: no legal actions")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.actions[r.rng.Intn(len(r.actions))], nil
}

// Fixed always returns the same action (e.g. hold LONG).
type Fixed int

func (f Fixed) Action(env.Observation) (int, error) {
	return int(f), nil
}

// Table is a previously computed action-probability table, e.g. a q-table.
type Table []float64

// Action returns the most probable action; the lowest index wins ties.
func (t Table) Action(env.Observation) (int, error) {
	if len(t) == 0 {
		return 0, ErrEmptyTable
	}
	return floats.MaxIdx(t), nil
}

// Uniform evaluates every state as neutral: equal priors and zero value.
type Uniform int

func (u Uniform) Evaluate(env.Observation) ([]float64, float64, error) {
	priors := make([]float64, int(u))
	for i := range priors {
		priors[i] = 1 / float64(u)
	}
	return priors, 0, nil
}
