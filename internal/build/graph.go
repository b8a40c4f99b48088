package build

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/logging"
)

// Node places a task in a graph after the named predecessors.
type Node struct {
	Task  Task
	After []string
}

// Status is the outcome of one task in a run.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// TaskReport records how one task fared.
type TaskReport struct {
	Name     string
	Depth    int
	Status   Status
	Duration time.Duration
	Err      error
}

// Report summarises a graph run. Tasks are in topological order.
type Report struct {
	Tasks    []TaskReport
	Duration time.Duration
}

// Failed returns the reports of failed tasks.
func (r *Report) Failed() []TaskReport {
	var out []TaskReport
	for _, t := range r.Tasks {
		if t.Status == StatusFailed {
			out = append(out, t)
		}
	}
	return out
}

// Task returns the report for name.
func (r *Report) Task(name string) (TaskReport, bool) {
	for _, t := range r.Tasks {
		if t.Name == name {
			return t, true
		}
	}
	return TaskReport{}, false
}

// Graph is a validated, immutable task DAG. It is safe to Run concurrently.
type Graph struct {
	nodes    []Node
	index    map[string]int
	incoming [][]int
	outgoing [][]int
	depth    []int
	order    []int

	logger  logging.Logger
	metrics *Metrics
}

// GraphOption configures a Graph.
type GraphOption func(*Graph)

// WithLogger logs task starts and completions.
func WithLogger(l logging.Logger) GraphOption {
	return func(g *Graph) { g.logger = l }
}

// WithMetrics records every task run into m.
func WithMetrics(m *Metrics) GraphOption {
	return func(g *Graph) { g.metrics = m }
}

// NewGraph validates nodes and builds a Graph. It rejects empty and
// duplicate names, unknown predecessors, self-loops and cycles.
func NewGraph(nodes []Node, opts ...GraphOption) (*Graph, error) {
	if len(nodes) == 0 {
		return nil, graphError("no tasks")
	}

	g := &Graph{
		nodes:    nodes,
		index:    make(map[string]int, len(nodes)),
		incoming: make([][]int, len(nodes)),
		outgoing: make([][]int, len(nodes)),
		logger:   logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}

	for i, n := range nodes {
		if n.Task == nil || n.Task.Name() == "" {
			return nil, graphError("task name is required")
		}
		name := n.Task.Name()
		if _, ok := g.index[name]; ok {
			return nil, graphError(fmt.Sprintf("duplicate task name %q", name))
		}
		g.index[name] = i
	}

	for i, n := range nodes {
		seen := make(map[int]bool, len(n.After))
		for _, dep := range n.After {
			j, ok := g.index[dep]
			if !ok {
				return nil, graphError(fmt.Sprintf("task %q depends on unknown task %q", n.Task.Name(), dep))
			}
			if j == i {
				return nil, graphError(fmt.Sprintf("task %q depends on itself", dep))
			}
			if seen[j] {
				continue
			}
			seen[j] = true
			g.incoming[i] = append(g.incoming[i], j)
			g.outgoing[j] = append(g.outgoing[j], i)
		}
	}

	order := g.topoOrder()
	if len(order) != len(nodes) {
		return nil, graphError("cycle: " + strings.Join(g.findCycle(), " -> "))
	}
	g.order = order
	g.depth = make([]int, len(nodes))
	for _, u := range order {
		for _, p := range g.incoming[u] {
			if d := g.depth[p] + 1; d > g.depth[u] {
				g.depth[u] = d
			}
		}
	}

	return g, nil
}

func graphError(msg string) error {
	return errors.NewConfigError(errors.ErrCodeGraphInvalid, "invalid task graph: "+msg)
}

// topoOrder is Kahn's algorithm with ties broken by declaration order.
func (g *Graph) topoOrder() []int {
	indeg := make([]int, len(g.nodes))
	var ready []int
	for i := range g.nodes {
		indeg[i] = len(g.incoming[i])
		if indeg[i] == 0 {
			ready = append(ready, i)
		}
	}

	out := make([]int, 0, len(g.nodes))
	for len(ready) > 0 {
		sort.Ints(ready)
		n := ready[0]
		ready = ready[1:]
		out = append(out, n)
		for _, m := range g.outgoing[n] {
			indeg[m]--
			if indeg[m] == 0 {
				ready = append(ready, m)
			}
		}
	}
	return out
}

// findCycle returns one cycle as task names, first name repeated at the end.
func (g *Graph) findCycle() []string {
	const (
		white = iota
		gray
		black
	)
	color := make([]int, len(g.nodes))
	stack := make([]int, 0, len(g.nodes))
	var cycle []int

	var visit func(u int) bool
	visit = func(u int) bool {
		color[u] = gray
		stack = append(stack, u)
		for _, v := range g.outgoing[u] {
			switch color[v] {
			case white:
				if visit(v) {
					return true
				}
			case gray:
				for i, s := range stack {
					if s == v {
						cycle = append(append(cycle, stack[i:]...), v)
						return true
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[u] = black
		return false
	}

	for i := range g.nodes {
		if color[i] == white && visit(i) {
			break
		}
	}

	names := make([]string, 0, len(cycle))
	for _, i := range cycle {
		names = append(names, g.nodes[i].Task.Name())
	}
	return names
}

// Names returns the task names in topological order.
func (g *Graph) Names() []string {
	names := make([]string, 0, len(g.order))
	for _, i := range g.order {
		names = append(names, g.nodes[i].Task.Name())
	}
	return names
}

// Depth returns the length of the longest predecessor chain above name.
func (g *Graph) Depth(name string) (int, bool) {
	i, ok := g.index[name]
	if !ok {
		return 0, false
	}
	return g.depth[i], true
}

// Run starts each task once all its predecessors have succeeded, running
// independent tasks concurrently. A failed task never cancels its siblings:
// only the tasks depending on it, directly or not, are skipped. Run waits for
// every started task and returns the failures joined in topological order.
// Canceling ctx stops tasks from starting.
func (g *Graph) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	var eg errgroup.Group

	var mu sync.Mutex
	reports := make([]*TaskReport, len(g.nodes))
	remaining := make([]int, len(g.nodes))
	for i := range g.nodes {
		remaining[i] = len(g.incoming[i])
	}

	var launch func(i int)
	launch = func(i int) {
		eg.Go(func() error {
			task := g.nodes[i].Task
			if ctx.Err() != nil {
				return nil
			}

			logger := g.logger.With("task", task.Name())
			logger.Debug(ctx, "Starting task")
			perf := logging.StartOperation(logger, task.Name())

			t0 := time.Now()
			err := task.Run(ctx)
			report := &TaskReport{
				Name:     task.Name(),
				Depth:    g.depth[i],
				Status:   StatusSucceeded,
				Duration: time.Since(t0),
				Err:      err,
			}
			if err != nil {
				report.Status = StatusFailed
				perf.EndWithError(ctx, err)
			} else {
				perf.End(ctx)
			}
			if g.metrics != nil {
				g.metrics.Record(*report)
			}

			mu.Lock()
			reports[i] = report
			var ready []int
			if err == nil {
				for _, next := range g.outgoing[i] {
					remaining[next]--
					if remaining[next] == 0 {
						ready = append(ready, next)
					}
				}
			}
			mu.Unlock()

			for _, next := range ready {
				launch(next)
			}
			return nil
		})
	}

	for i := range g.nodes {
		if remaining[i] == 0 {
			launch(i)
		}
	}
	_ = eg.Wait()

	report := &Report{Duration: time.Since(start)}
	var errs []error
	for _, i := range g.order {
		if r := reports[i]; r != nil {
			report.Tasks = append(report.Tasks, *r)
			if r.Err != nil {
				errs = append(errs, r.Err)
			}
			continue
		}
		report.Tasks = append(report.Tasks, TaskReport{
			Name:   g.nodes[i].Task.Name(),
			Depth:  g.depth[i],
			Status: StatusSkipped,
		})
	}

	if len(errs) == 0 {
		return report, ctx.Err()
	}
	return report, errors.Join(errs...)
}
