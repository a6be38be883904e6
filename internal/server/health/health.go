// Package health aggregates dependency probes (database, cache) behind one
// Checker shared by the HTTP and gRPC health endpoints.
package health

import (
	"context"
	"sync"
	"time"
)

// Probe reports whether a dependency is reachable.
type Probe func(ctx context.Context) error

// Report is the outcome of one Check run. Checks maps probe name to "ok" or
// the error text.
type Report struct {
	Healthy bool              `json:"healthy"`
	Checks  map[string]string `json:"checks"`
}

// Checker runs named probes concurrently with a per-run timeout.
type Checker struct {
	names   []string
	probes  map[string]Probe
	timeout time.Duration
}

func NewChecker(timeout time.Duration) *Checker {
	return &Checker{probes: map[string]Probe{}, timeout: timeout}
}

// Add registers a probe. A later probe with the same name replaces the earlier.
func (c *Checker) Add(name string, p Probe) *Checker {
	if _, ok := c.probes[name]; !ok {
		c.names = append(c.names, name)
	}
	c.probes[name] = p
	return c
}

// Check runs every probe and reports "ok" or the error text per probe.
func (c *Checker) Check(ctx context.Context) Report {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		report = Report{Healthy: true, Checks: make(map[string]string, len(c.names))}
	)
	for _, name := range c.names {
		wg.Add(1)
		go func(name string, p Probe) {
			defer wg.Done()
			err := p(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Healthy = false
				report.Checks[name] = err.Error()
				return
			}
			report.Checks[name] = "ok"
		}(name, c.probes[name])
	}
	wg.Wait()
	return report
}
