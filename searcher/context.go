package searcher

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"

	"trader/env"
	"trader/policy"
)

var (
	ErrPriorShape = errors.New("evaluator returned priors of the wrong length")
	ErrPriorValue = errors.New("evaluator returned invalid priors")
	ErrValueRange = errors.New("evaluator returned a value out of range")
)

// Context is the per-engine search state threaded through node operations. It is never
// shared between engines, so independent trees cannot cross-contaminate counters.
type Context struct {
	env        env.Environment
	actions    int
	cPuct      float64
	valueBound float64
	rng        *rand.Rand
	metrics    Collector

	episodes int
	rollouts int

	// Set once the running episode has backed up a value
	backedUp bool
	ties     []int
}

func newContext(environment env.Environment) *Context {
	return &Context{
		env:        environment,
		actions:    len(environment.Actions()),
		cPuct:      CPuct,
		valueBound: ValueBound,
		rng:        rand.New(rand.NewSource(1)),
		metrics:    NewDummyCollector(),
	}
}

func (c *Context) Env() env.Environment {
	return c.env
}

// Episodes counts episodes that reached the environment's terminal step.
func (c *Context) Episodes() int {
	return c.episodes
}

// Rollouts counts episodes driven to completion by the engine.
func (c *Context) Rollouts() int {
	return c.rollouts
}

// ResetCounters clears the episode and rollout counters.
func (c *Context) ResetCounters() {
	c.episodes = 0
	c.rollouts = 0
}

func (c *Context) beginEpisode() {
	c.backedUp = false
}

// evaluate consults the evaluator and validates its output before anything in the tree
// changes. Returned priors are normalized.
func (c *Context) evaluate(evaluator policy.Evaluator, obs env.Observation) ([]float64, float64, error) {
	priors, value, err := evaluator.Evaluate(obs)
	if err != nil {
		return nil, 0, fmt.Errorf("evaluate: %w", err)
	}
	if len(priors) != c.actions {
		return nil, 0, fmt.Errorf("%w: want %d, got %d", ErrPriorShape, c.actions, len(priors))
	}
	for a, p := range priors {
		if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
			return nil, 0, fmt.Errorf("%w: prior[%d]=%v", ErrPriorValue, a, p)
		}
	}
	sum := floats.Sum(priors)
	if sum <= 0 || math.IsInf(sum, 0) {
		return nil, 0, fmt.Errorf("%w: priors sum to %v", ErrPriorValue, sum)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) || math.Abs(value) > c.valueBound {
		return nil, 0, fmt.Errorf("%w: %v", ErrValueRange, value)
	}

	normalized := make([]float64, len(priors))
	floats.ScaleTo(normalized, 1/sum, priors)
	return normalized, value, nil
}
