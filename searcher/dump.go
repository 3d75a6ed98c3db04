package searcher

import (
	"fmt"
	"io"
	"strings"
)

// Dump writes a human-readable view of the subtree, one expanded edge per line, down
// to maxDepth levels (all levels when maxDepth <= 0).
func (n *Node) Dump(w io.Writer, maxDepth int) error {
	return n.dump(w, 0, maxDepth)
}

func (n *Node) dump(w io.Writer, depth, maxDepth int) error {
	if maxDepth > 0 && depth >= maxDepth {
		return nil
	}
	indent := strings.Repeat("  ", depth)
	for i := range n.edges {
		e := &n.edges[i]
		if e.visits == 0 && e.child == nil {
			continue
		}
		_, err := fmt.Fprintf(w, "%s[%d] visits=%d mean=%.4f prior=%.3f\n", indent, e.action, e.visits, e.mean, e.prior)
		if err != nil {
			return fmt.Errorf("failed to dump tree: %w", err)
		}
		if e.child != nil {
			if err := e.child.dump(w, depth+1, maxDepth); err != nil {
				return err
			}
		}
	}
	return nil
}

func (n *Node) String() string {
	var b strings.Builder
	_ = n.Dump(&b, 1)
	return b.String()
}
