//go:build property
// +build property

package build

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestGraphOrderingProperties checks that in random DAGs every task starts
// only after all of its predecessors have finished.
func TestGraphOrderingProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(4242)
	parameters.MinSuccessfulTests = 60

	properties := gopter.NewProperties(parameters)

	properties.Property("predecessors finish before successors start", prop.ForAll(
		func(edges []int) bool {
			n := len(edges)
			if n == 0 {
				return true
			}

			var (
				mu       sync.Mutex
				clock    int
				started  = make(map[string]int)
				finished = make(map[string]int)
			)
			tick := func(m map[string]int, name string) {
				mu.Lock()
				defer mu.Unlock()
				clock++
				m[name] = clock
			}

			// Node i may depend on any earlier node, which keeps the graph acyclic.
			nodes := make([]Node, n)
			for i := 0; i < n; i++ {
				name := fmt.Sprintf("t%d", i)
				var after []string
				for j := 0; j < i; j++ {
					if edges[i]&(1<<uint(j%16)) != 0 {
						after = append(after, fmt.Sprintf("t%d", j))
					}
				}
				nodes[i] = Node{
					Task: NewTask(name, func(context.Context) error {
						tick(started, name)
						tick(finished, name)
						return nil
					}),
					After: after,
				}
			}

			g, err := NewGraph(nodes)
			if err != nil {
				return false
			}
			report, err := g.Run(context.Background())
			if err != nil || len(report.Tasks) != n {
				return false
			}

			for _, node := range nodes {
				for _, dep := range node.After {
					if finished[dep] >= started[node.Task.Name()] {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOfN(12, gen.IntRange(0, 1<<16-1)),
	))

	properties.Property("depth exceeds every predecessor depth", prop.ForAll(
		func(edges []int) bool {
			nodes := make([]Node, len(edges))
			for i := range edges {
				var after []string
				for j := 0; j < i; j++ {
					if edges[i]&(1<<uint(j%16)) != 0 {
						after = append(after, fmt.Sprintf("t%d", j))
					}
				}
				nodes[i] = Node{Task: NewTask(fmt.Sprintf("t%d", i), func(context.Context) error { return nil }), After: after}
			}
			if len(nodes) == 0 {
				return true
			}

			g, err := NewGraph(nodes)
			if err != nil {
				return false
			}
			for _, node := range nodes {
				d, _ := g.Depth(node.Task.Name())
				for _, dep := range node.After {
					pd, _ := g.Depth(dep)
					if pd >= d {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 1<<16-1)),
	))

	properties.TestingRun(t)
}
