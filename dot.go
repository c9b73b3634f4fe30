package contree

import (
	"fmt"
	"strings"
)

// Dot renders the tree as a Graphviz digraph. Handy when eyeballing growth
// and address recycling; not meant for large trees.
func (t *Contree) Dot() string {
	var b strings.Builder
	b.WriteString("digraph {\n\tnewrank=true;\n\trankdir=LR;\n")

	stack := []Addr{t.root}
	for len(stack) > 0 {
		addr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node := t.arena.inner(addr)
		for i := 0; i < 64; i++ {
			if !node.has(i) {
				continue
			}
			child := node.Children[i]
			if node.leafAt(i) {
				fmt.Fprintf(&b, "\t%d -> \"leaf %d\" [label=<%d>]\n", addr, child, i)
				leaf := t.arena.leaf(child)
				for j := 0; j < 64; j++ {
					if mat, ok := leaf.Material(j); ok {
						fmt.Fprintf(&b, "\t\"leaf %d\" -> \"mat %d\" [label=<%d>]\n", child, mat, j)
					}
				}
			} else {
				fmt.Fprintf(&b, "\t%d -> %d [label=<%d>]\n", addr, child, i)
				stack = append(stack, child)
			}
		}
	}

	b.WriteString("}\n")
	return b.String()
}
