package searcher

import "math"

type puct struct {
	numerator float64
}

// newPUCT precomputes the exploration numerator c * sqrt(N) shared by sibling edges.
func newPUCT(c float64, sumVisits int) puct {
	return puct{numerator: c * math.Sqrt(float64(sumVisits))}
}

// PUCT = q + c*p*sqrt(N)/(1+n)
func (u puct) evaluate(q, p float64, n int) float64 {
	return q + u.numerator*p/float64(1+n)
}

// selectAction picks the action with the maximum PUCT score, breaking exact ties
// uniformly at random.
func (n *Node) selectAction(ctx *Context) int {
	if len(n.edges) == 0 {
		panic("cannot select on a node without edges")
	}

	sum := 0
	for i := range n.edges {
		sum += n.edges[i].visits
	}
	u := newPUCT(ctx.cPuct, sum)

	best := math.Inf(-1)
	ties := ctx.ties[:0]
	for i := range n.edges {
		e := &n.edges[i]
		score := u.evaluate(e.mean, e.prior, e.visits)
		if score > best {
			best = score
			ties = append(ties[:0], i)
		} else if score == best {
			ties = append(ties, i)
		}
	}
	ctx.ties = ties

	if len(ties) == 0 {
		panic("no comparable PUCT score")
	}
	if len(ties) == 1 {
		return ties[0]
	}
	return ties[ctx.rng.Intn(len(ties))]
}
