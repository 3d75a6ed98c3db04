package searcher

import (
	"fmt"
	"math"

	"trader/env"
	"trader/policy"
)

// Step drives one move of an episode: choose an action (PUCT, or the guide's action),
// advance the environment and descend. The first unexpanded edge an episode meets is
// expanded with the evaluator and its value backed up at once; later frontier steps of
// the same episode descend into transient nodes that are never attached. An episode that
// completes without expanding backs up its terminal reward instead, so every completed
// episode records exactly one backup. A nil node signals the end of the episode.
func (n *Node) Step(ctx *Context, p policy.Evaluator) (*Node, error) {
	action, err := n.chooseAction(ctx, p)
	if err != nil {
		return nil, err
	}

	obs, reward, done, _, err := ctx.env.Step(action)
	if err != nil {
		return nil, fmt.Errorf("step action %d: %w", action, err)
	}

	edge := &n.edges[action]
	if done {
		if !ctx.backedUp {
			if math.IsNaN(reward) || math.IsInf(reward, 0) || math.Abs(reward) > ctx.valueBound {
				return nil, fmt.Errorf("terminal reward: %w: %v", ErrValueRange, reward)
			}
			edge.update(reward)
			backup(n, reward)
			ctx.backedUp = true
			ctx.metrics.AddTerminalBackup()
		}
		ctx.episodes++
		ctx.metrics.AddEpisode()
		return nil, nil
	}

	if edge.child != nil {
		return edge.child, nil
	}
	if ctx.backedUp {
		return newTransient(obs, edge, ctx.actions), nil
	}

	priors, value, err := ctx.evaluate(p, obs)
	if err != nil {
		return nil, err
	}
	child := newNode(obs, edge, priors)
	edge.child = child
	backup(child, value)
	ctx.backedUp = true
	ctx.metrics.AddExpansion()
	return child, nil
}

func (n *Node) chooseAction(ctx *Context, p policy.Evaluator) (int, error) {
	if len(n.edges) == 0 {
		panic("cannot step from a node without edges")
	}

	if guide, ok := p.(policy.Guide); ok {
		action, err := guide.GuideAction(n.obs)
		if err != nil {
			return 0, fmt.Errorf("guide action: %w", err)
		}
		if action < 0 || action >= len(n.edges) {
			return 0, fmt.Errorf("guide chose action %d of %d: %w", action, len(n.edges), env.ErrIllegalAction)
		}
		return action, nil
	}

	if n.transient {
		// Random rollout policy
		return ctx.rng.Intn(len(n.edges)), nil
	}
	return n.selectAction(ctx), nil
}
