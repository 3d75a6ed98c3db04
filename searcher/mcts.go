package searcher

import (
	"fmt"

	"golang.org/x/exp/rand"

	"trader/env"
	"trader/policy"
)

type Option func(m *MCTS)

func WithCPuct(c float64) Option {
	return func(m *MCTS) {
		if c >= 0 {
			m.ctx.cPuct = c
		}
	}
}

func WithSeed(seed uint64) Option {
	return func(m *MCTS) {
		m.ctx.rng = rand.New(rand.NewSource(seed))
	}
}

func WithValueBound(bound float64) Option {
	return func(m *MCTS) {
		if bound > 0 {
			m.ctx.valueBound = bound
		}
	}
}

func WithMetrics(collector Collector) Option {
	return func(m *MCTS) {
		if collector != nil {
			m.ctx.metrics = collector
		}
	}
}

// WithRoot continues the search from a previously built subtree, which becomes the root.
func WithRoot(root *Node) Option {
	return func(m *MCTS) {
		if root != nil {
			root.Detach()
			m.root = root
			m.ctx.metrics.ReusedTree()
		}
	}
}

// MCTS owns one search tree and the context its episodes run in. Episodes against one
// tree are sequential; run independent engines for parallelism.
type MCTS struct {
	ctx  *Context
	root *Node
}

// NewMCTS binds a search engine to an environment. WithMetrics must precede WithRoot
// for the reuse to be recorded.
func NewMCTS(environment env.Environment, options ...Option) *MCTS {
	m := &MCTS{ctx: newContext(environment)}
	for _, option := range options {
		option(m)
	}
	return m
}

func (m *MCTS) Context() *Context {
	return m.ctx
}

func (m *MCTS) Root() *Node {
	return m.root
}

func (m *MCTS) Episodes() int {
	return m.ctx.episodes
}

func (m *MCTS) Rollouts() int {
	return m.ctx.rollouts
}

// RunOnce restores the environment (recover from snapshot, or reset when snapshot is
// nil), creates the root if absent and drives one episode to completion. A failed
// episode is discarded and its error returned; the tree is only changed by backups of
// values that passed validation.
func (m *MCTS) RunOnce(p policy.Evaluator, snapshot env.Snapshot) (*Node, error) {
	if snapshot != nil {
		if err := m.ctx.env.Recover(snapshot); err != nil {
			return m.root, fmt.Errorf("recover environment: %w", err)
		}
	} else {
		if _, err := m.ctx.env.Reset(); err != nil {
			return m.root, fmt.Errorf("reset environment: %w", err)
		}
	}

	if m.root == nil {
		obs := m.ctx.env.Observe()
		priors, _, err := m.ctx.evaluate(p, obs)
		if err != nil {
			m.ctx.metrics.AddAbort()
			return nil, fmt.Errorf("evaluate root: %w", err)
		}
		m.root = newNode(obs, nil, priors)
	}

	m.ctx.beginEpisode()
	node := m.root
	for node != nil {
		next, err := node.Step(m.ctx, p)
		if err != nil {
			m.ctx.metrics.AddAbort()
			return m.root, err
		}
		node = next
	}
	m.ctx.rollouts++
	return m.root, nil
}

// RunBatch runs episodes against the same root, accumulating statistics, and stops at
// the first failed episode.
func (m *MCTS) RunBatch(p policy.Evaluator, episodes int, snapshot env.Snapshot) (*Node, error) {
	if episodes <= 0 {
		panic("must run at least one episode")
	}
	for i := 0; i < episodes; i++ {
		if _, err := m.RunOnce(p, snapshot); err != nil {
			return m.root, fmt.Errorf("episode %d of %d: %w", i+1, episodes, err)
		}
	}
	return m.root, nil
}

// CleanUp drops the tree; its memory is reclaimed by the garbage collector.
func (m *MCTS) CleanUp() {
	m.root = nil
}
