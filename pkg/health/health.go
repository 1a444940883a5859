// Package health runs the readiness checks behind the management /ready endpoint.
package health

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// severity orders statuses; a report takes the worst of its checks.
var severity = map[Status]int{StatusHealthy: 0, StatusDegraded: 1, StatusUnhealthy: 2}

// CheckResult is one checker's verdict as served on /ready.
type CheckResult struct {
	Name      string         `json:"name"`
	Status    Status         `json:"status"`
	Message   string         `json:"message,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Duration  time.Duration  `json:"duration"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Report is the outcome of one Registry.Check. Checks are ordered by name.
type Report struct {
	Status    Status        `json:"status"`
	Checks    []CheckResult `json:"checks"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
}

// Ready is false only when some check is unhealthy. Degraded still serves.
func (r Report) Ready() bool {
	return r.Status != StatusUnhealthy
}

// Registry holds checkers by name. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	checkers []Checker // sorted by name
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds c, replacing a checker of the same name.
func (r *Registry) Register(c Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, found := slices.BinarySearchFunc(r.checkers, c.Name(), func(e Checker, name string) int {
		return strings.Compare(e.Name(), name)
	})
	if found {
		r.checkers[i] = c
		return
	}
	r.checkers = slices.Insert(r.checkers, i, c)
}

// Names lists the registered checkers in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.checkers))
	for i, c := range r.checkers {
		names[i] = c.Name()
	}
	return names
}

// Check runs every checker concurrently and waits for all of them.
func (r *Registry) Check(ctx context.Context) Report {
	r.mu.RLock()
	checkers := slices.Clone(r.checkers)
	r.mu.RUnlock()

	start := time.Now()
	results := make([]CheckResult, len(checkers))
	var wg sync.WaitGroup
	for i, c := range checkers {
		wg.Go(func() { results[i] = c.Check(ctx) })
	}
	wg.Wait()

	status := StatusHealthy
	for _, res := range results {
		if severity[res.Status] > severity[status] {
			status = res.Status
		}
	}
	return Report{Status: status, Checks: results, Timestamp: time.Now(), Duration: time.Since(start)}
}
