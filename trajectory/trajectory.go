package trajectory

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"

	"trader/env"
	"trader/policy"
	"trader/searcher"
)

const (
	RoundsPerStep = 23
	ExploreRate   = 0.1
	Temperature   = 1.0
)

var ErrNoRecords = errors.New("trajectory produced no records")

// Record is one simulated step of a trajectory, the unit consumed by training.
type Record struct {
	Step        int
	Observation env.Observation // At the decision point
	QTable      []float64
	Action      int
	Reward      float64
	FinalReward float64
}

type Option func(t *Trajectory)

func WithRoundsPerStep(rounds int) Option {
	return func(t *Trajectory) {
		if rounds > 0 {
			t.roundsPerStep = rounds
		}
	}
}

func WithExploreRate(rate float64) Option {
	return func(t *Trajectory) {
		if rate >= 0 && rate <= 1 {
			t.exploreRate = rate
		}
	}
}

func WithTemperature(temperature float64) Option {
	return func(t *Trajectory) {
		if temperature > 0 {
			t.temperature = temperature
		}
	}
}

func WithCPuct(c float64) Option {
	return func(t *Trajectory) {
		if c >= 0 {
			t.cPuct = c
		}
	}
}

func WithSeed(seed uint64) Option {
	return func(t *Trajectory) {
		t.rng = rand.New(rand.NewSource(seed))
	}
}

// WithMetrics shares a search collector with every engine the trajectory creates.
func WithMetrics(collector searcher.Collector) Option {
	return func(t *Trajectory) {
		if collector != nil {
			t.metrics = collector
		}
	}
}

// Trajectory plays one episode on a main environment. Every decision is made by a fresh
// search over a scratch environment restored from the main environment's snapshot; the
// subtree under the chosen action seeds the next search.
type Trajectory struct {
	main    env.Environment
	factory env.Factory
	policy  policy.Evaluator

	roundsPerStep int
	exploreRate   float64
	temperature   float64
	cPuct         float64
	rng           *rand.Rand
	metrics       searcher.Collector

	history []Record
}

// New binds a trajectory to a main environment positioned at its start state. The factory
// builds the scratch environments searched at each step.
func New(main env.Environment, factory env.Factory, p policy.Evaluator, options ...Option) *Trajectory {
	t := &Trajectory{ // Default values
		main:          main,
		factory:       factory,
		policy:        p,
		roundsPerStep: RoundsPerStep,
		exploreRate:   ExploreRate,
		temperature:   Temperature,
		cPuct:         searcher.CPuct,
		rng:           rand.New(rand.NewSource(1)),
		metrics:       searcher.NewDummyCollector(),
	}
	for _, option := range options {
		option(t)
	}
	return t
}

func (t *Trajectory) History() []Record {
	return t.history
}

// Run plays the main environment to completion and returns its records, each carrying
// the reward of the final step. Cancellation is observed between decision points only.
func (t *Trajectory) Run(ctx context.Context) ([]Record, error) {
	t.history = nil
	var root *searcher.Node
	for step := 0; ; step++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("step %d: %w", step, err)
		}

		node, err := t.search(root)
		if err != nil {
			return nil, fmt.Errorf("search at step %d: %w", step, err)
		}

		obs := t.main.Observe()
		q := node.QTable(t.temperature)
		action, err := t.chooseAction(q)
		if err != nil {
			return nil, fmt.Errorf("choose action at step %d: %w", step, err)
		}

		_, reward, done, _, err := t.main.Step(action)
		if err != nil {
			return nil, fmt.Errorf("step main environment: %w", err)
		}
		t.history = append(t.history, Record{
			Step:        step,
			Observation: obs,
			QTable:      q,
			Action:      action,
			Reward:      reward,
		})
		log.Debug().Msgf("step %d: action=%d reward=%.4f qtable=%v", step, action, reward, q)

		if done {
			break
		}
		// The chosen child becomes the next root, or a fresh tree when it was never expanded
		root = node.Child(action)
	}

	if len(t.history) == 0 {
		return nil, ErrNoRecords
	}
	final := t.history[len(t.history)-1].Reward
	for i := range t.history {
		t.history[i].FinalReward = final
	}
	return t.history, nil
}

func (t *Trajectory) search(root *searcher.Node) (*searcher.Node, error) {
	scratch, err := t.factory()
	if err != nil {
		return nil, fmt.Errorf("create environment: %w", err)
	}
	m := searcher.NewMCTS(scratch,
		searcher.WithCPuct(t.cPuct),
		searcher.WithSeed(t.rng.Uint64()),
		searcher.WithMetrics(t.metrics),
		searcher.WithRoot(root),
	)
	return m.RunBatch(t.policy, t.roundsPerStep, t.main.Snapshot())
}

// chooseAction exploits the q-table, sampling from it with probability exploreRate.
func (t *Trajectory) chooseAction(q []float64) (int, error) {
	if t.exploreRate > 0 && t.rng.Float64() < t.exploreRate {
		return policy.Sample(t.rng, q), nil
	}
	return policy.Table(q).Action(nil)
}
