package health

import (
	"context"
	"sync"
	"time"
)

type ReadinessCheck interface {
	IsReady(ctx context.Context) error
	Name() string
}

type Status struct {
	Ready  bool              `json:"ready"`
	Checks map[string]string `json:"checks"`
}

// Monitor re-runs every check on a ticker and keeps the last result, so
// readiness checks never block on a slow dependency.
type Monitor struct {
	checks   []ReadinessCheck
	interval time.Duration
	timeout  time.Duration

	mu     sync.RWMutex
	status Status
}

func NewMonitor(interval, timeout time.Duration, checks ...ReadinessCheck) *Monitor {
	return &Monitor{
		checks:   checks,
		interval: interval,
		timeout:  timeout,
		// start pessimistic
		status: Status{Ready: false, Checks: map[string]string{}},
	}
}

func (m *Monitor) Run(ctx context.Context) {
	m.CheckNow(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckNow(ctx)
		}
	}
}

func (m *Monitor) CheckNow(ctx context.Context) Status {
	st := Status{Ready: true, Checks: make(map[string]string, len(m.checks))}
	for _, c := range m.checks {
		cctx, cancel := context.WithTimeout(ctx, m.timeout)
		err := c.IsReady(cctx)
		cancel()

		if err != nil {
			st.Ready = false
			st.Checks[c.Name()] = err.Error()
			continue
		}
		st.Checks[c.Name()] = "ok"
	}

	m.mu.Lock()
	m.status = st
	m.mu.Unlock()
	return st
}

func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}
