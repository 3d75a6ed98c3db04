package searcher

import (
	"trader/env"
)

// Edge links a node to the child reached by one action. It is owned by its parent's edge
// array; the child pointer only reaches the subtree.
type Edge struct {
	action int
	prior  float64
	visits int
	total  float64
	mean   float64
	parent *Node // weak back-reference
	child  *Node
}

func (e *Edge) Action() int {
	return e.action
}

func (e *Edge) Prior() float64 {
	return e.prior
}

func (e *Edge) Visits() int {
	return e.visits
}

func (e *Edge) TotalReward() float64 {
	return e.total
}

// MeanReward is zero while the edge is unvisited.
func (e *Edge) MeanReward() float64 {
	return e.mean
}

func (e *Edge) Parent() *Node {
	return e.parent
}

func (e *Edge) Child() *Node {
	return e.child
}

func (e *Edge) update(value float64) {
	e.visits++
	e.total += value
	e.mean = e.total / float64(e.visits)
}

// Node is one simulated state reached from the root by a sequence of actions.
type Node struct {
	obs    env.Observation
	parent *Edge
	edges  []Edge
	// Transient nodes belong to the rollout tail of an episode and are never attached
	transient bool
}

// newNode seeds one edge per action with the given (normalized) priors.
func newNode(obs env.Observation, parent *Edge, priors []float64) *Node {
	n := &Node{
		obs:    obs,
		parent: parent,
		edges:  make([]Edge, len(priors)),
	}
	for a, p := range priors {
		n.edges[a] = Edge{action: a, prior: p, parent: n}
	}
	return n
}

func newTransient(obs env.Observation, parent *Edge, actions int) *Node {
	priors := make([]float64, actions)
	for i := range priors {
		priors[i] = 1 / float64(actions)
	}
	n := newNode(obs, parent, priors)
	n.transient = true
	return n
}

func (n *Node) Observation() env.Observation {
	return n.obs
}

func (n *Node) Parent() *Edge {
	return n.parent
}

func (n *Node) Edges() []Edge {
	return n.edges
}

func (n *Node) Edge(action int) *Edge {
	return &n.edges[action]
}

// Child returns the node reached by action, or nil if it was never expanded.
func (n *Node) Child(action int) *Node {
	if action < 0 || action >= len(n.edges) {
		return nil
	}
	return n.edges[action].child
}

func (n *Node) IsRoot() bool {
	return n.parent == nil
}

func (n *Node) IsLeaf() bool {
	for i := range n.edges {
		if n.edges[i].child != nil {
			return false
		}
	}
	return true
}

// Visits returns the per-action visit counts of the outgoing edges.
func (n *Node) Visits() []int {
	visits := make([]int, len(n.edges))
	for i := range n.edges {
		visits[i] = n.edges[i].visits
	}
	return visits
}

// Detach turns the node into the root of its own subtree so it can seed a new search.
func (n *Node) Detach() {
	n.parent = nil
}

// backup walks the parent edges up to the root, recording value on each of them.
func backup(node *Node, value float64) {
	for n := node; n.parent != nil; n = n.parent.parent {
		n.parent.update(value)
	}
}
