package mcts

import (
	"fmt"

	"github.com/awalterschulze/gographviz"
	"github.com/corvid-chess/azcore/mctsnode"
)

// DumpTree renders the principal variation and, at each PV ply, the
// visited alternatives to the PV move as a Graphviz graph (supplemented
// feature, not present in the distilled spec — see SPEC_FULL.md §4).
// depth bounds how many plies of the PV are expanded past the root.
func DumpTree(root *mctsnode.Node, color mctsnode.Color, depth int) (string, error) {
	g := gographviz.NewGraph()
	if err := g.SetName("pv"); err != nil {
		return "", err
	}
	if err := g.SetDir(true); err != nil {
		return "", err
	}

	rootName := "root"
	if err := addNode(g, rootName, root, color); err != nil {
		return "", err
	}

	n := root
	c := color
	parent := rootName
	for i := 0; i < depth; i++ {
		children := n.Children()
		if len(children) == 0 {
			break
		}
		best := children[0]
		for _, ch := range children {
			if ch.Visits() > best.Visits() {
				best = ch
			}
		}
		name := fmt.Sprintf("n%d_%s", i, best.Move())
		if err := addNode(g, name, best, c.Other()); err != nil {
			return "", err
		}
		if err := g.AddEdge(parent, name, true, nil); err != nil {
			return "", err
		}
		for _, ch := range children {
			if ch == best || ch.Visits() == 0 {
				continue
			}
			altName := fmt.Sprintf("n%d_%s", i, ch.Move())
			if err := addNode(g, altName, ch, c.Other()); err != nil {
				return "", err
			}
			if err := g.AddEdge(parent, altName, true, nil); err != nil {
				return "", err
			}
		}
		parent = name
		n = best
		c = c.Other()
	}

	return g.String(), nil
}

func addNode(g *gographviz.Graph, name string, n *mctsnode.Node, color mctsnode.Color) error {
	label := fmt.Sprintf("\"%s\\nv=%d q=%.3f p=%.3f\"", n.Move(), n.Visits(), n.Eval(color), n.Prior())
	return g.AddNode("pv", name, map[string]string{"label": label})
}
