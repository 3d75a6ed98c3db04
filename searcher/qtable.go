package searcher

import "trader/policy"

// QTable derives an action distribution from visit counts, p(a) ∝ visits(a)^(1/T).
// Temperatures near zero approach a hard argmax; T = 1 gives the raw visit
// distribution. A node without visits yields a uniform distribution.
func (n *Node) QTable(temperature float64) []float64 {
	visits := make([]float64, len(n.edges))
	for i := range n.edges {
		visits[i] = float64(n.edges[i].visits)
	}
	return policy.AdjustTemperature(visits, temperature)
}

// Policy returns the raw visit distribution of the node's edges.
func (n *Node) Policy() []float64 {
	return n.QTable(1.0)
}
