//go:build property
// +build property

package errors

import (
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestErrorCollectorProperties validates the per-task last-error store
func TestErrorCollectorProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(2468)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("concurrent recording keeps one entry per task", prop.ForAll(
		func(goroutineCount int, tasks int) bool {
			collector := NewErrorCollector()

			var wg sync.WaitGroup
			for g := 0; g < goroutineCount; g++ {
				wg.Add(1)
				go func(id int) {
					defer wg.Done()
					for task := 0; task < tasks; task++ {
						collector.Record(fmt.Sprintf("task%02d", task), fmt.Errorf("failure from %d", id))
					}
				}(g)
			}
			wg.Wait()

			return len(collector.GetErrors()) == tasks && collector.HasErrors()
		},
		gen.IntRange(1, 20),
		gen.IntRange(1, 30),
	))

	properties.Property("a nil error clears only its task", prop.ForAll(
		func(failing []bool) bool {
			collector := NewErrorCollector()
			for i := range failing {
				collector.Record(fmt.Sprintf("task%02d", i), fmt.Errorf("boom"))
			}
			want := 0
			for i, fail := range failing {
				if !fail {
					collector.Record(fmt.Sprintf("task%02d", i), nil)
				} else {
					want++
				}
			}
			return len(collector.GetErrors()) == want && collector.HasErrors() == (want > 0)
		},
		gen.SliceOf(gen.Bool()),
	))

	properties.Property("errors are sorted by task", prop.ForAll(
		func(names []string) bool {
			collector := NewErrorCollector()
			for _, name := range names {
				collector.Record(name, fmt.Errorf("failed"))
			}
			got := collector.GetErrors()
			return sort.SliceIsSorted(got, func(i, j int) bool { return got[i].Task < got[j].Task })
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}

// TestPipelineErrorProperties validates wrapping and matching
func TestPipelineErrorProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1357)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	errorTypes := []ErrorType{ErrorTypeIO, ErrorTypeTransform, ErrorTypeConfig, ErrorTypeServer, ErrorTypeInternal}

	properties.Property("wrapping keeps the inner location", prop.ForAll(
		func(file string, line, column int, depth int) bool {
			var err error = NewTransformError(ErrCodeTransformFailed, "bad input", nil).WithLocation(file, line, column)
			for i := 0; i < depth; i++ {
				err = Wrap(err, errorTypes[i%len(errorTypes)], ErrCodeTransformFailed, fmt.Sprintf("layer %d", i))
			}
			var pe *PipelineError
			if !As(err, &pe) {
				return false
			}
			return pe.FilePath == file && pe.Line == line && pe.Column == column
		},
		gen.AlphaString(),
		gen.IntRange(0, 10000),
		gen.IntRange(0, 200),
		gen.IntRange(0, 5),
	))

	properties.Property("TypeOf reports the outermost type", prop.ForAll(
		func(outer, inner int) bool {
			base := Wrap(fmt.Errorf("cause"), errorTypes[inner], "ERR_A", "inner")
			err := Wrap(base, errorTypes[outer], "ERR_B", "outer")
			return TypeOf(err) == errorTypes[outer]
		},
		gen.IntRange(0, len(errorTypes)-1),
		gen.IntRange(0, len(errorTypes)-1),
	))

	properties.Property("Is matches by type and code", prop.ForAll(
		func(a, b int, sameCode bool) bool {
			codeB := "ERR_X"
			if !sameCode {
				codeB = "ERR_Y"
			}
			err := Wrap(fmt.Errorf("cause"), errorTypes[a], "ERR_X", "m")
			target := &PipelineError{Type: errorTypes[b], Code: codeB}
			return Is(err, target) == (a == b && sameCode)
		},
		gen.IntRange(0, len(errorTypes)-1),
		gen.IntRange(0, len(errorTypes)-1),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
