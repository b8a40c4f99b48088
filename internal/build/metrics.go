package build

import (
	"sort"
	"sync"
	"time"
)

// TaskMetrics accumulates the runs of one task.
type TaskMetrics struct {
	Name            string        `json:"name"`
	Runs            int64         `json:"runs"`
	Failures        int64         `json:"failures"`
	TotalDuration   time.Duration `json:"total_duration"`
	AverageDuration time.Duration `json:"average_duration"`
	LastDuration    time.Duration `json:"last_duration"`
	LastRun         time.Time     `json:"last_run"`
}

// Metrics tracks task runs across graph executions and watcher rebuilds.
type Metrics struct {
	tasks map[string]*TaskMetrics
	mutex sync.RWMutex
}

func NewMetrics() *Metrics {
	return &Metrics{tasks: make(map[string]*TaskMetrics)}
}

// Record adds a finished run. Skipped tasks are ignored.
func (m *Metrics) Record(r TaskReport) {
	if r.Status == StatusSkipped {
		return
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	tm, ok := m.tasks[r.Name]
	if !ok {
		tm = &TaskMetrics{Name: r.Name}
		m.tasks[r.Name] = tm
	}
	tm.Runs++
	if r.Status == StatusFailed {
		tm.Failures++
	}
	tm.TotalDuration += r.Duration
	tm.AverageDuration = tm.TotalDuration / time.Duration(tm.Runs)
	tm.LastDuration = r.Duration
	tm.LastRun = time.Now()
}

// Snapshot returns a copy of every task's metrics sorted by name.
func (m *Metrics) Snapshot() []TaskMetrics {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	out := make([]TaskMetrics, 0, len(m.tasks))
	for _, tm := range m.tasks {
		out = append(out, *tm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SuccessRate returns the share of successful runs as a percentage.
func (m *Metrics) SuccessRate() float64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var runs, failures int64
	for _, tm := range m.tasks {
		runs += tm.Runs
		failures += tm.Failures
	}
	if runs == 0 {
		return 0.0
	}
	return float64(runs-failures) / float64(runs) * 100.0
}

// Reset clears all metrics.
func (m *Metrics) Reset() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.tasks = make(map[string]*TaskMetrics)
}
