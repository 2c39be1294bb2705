package analysis

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/pavelanni/assessor/internal/metrics"
)

// Coordinator runs analyses with at most one in flight per result.
type Coordinator struct {
	analyzer Analyzer
	timeout  time.Duration

	mu       sync.Mutex
	inflight map[string]*run
}

type run struct {
	cancel context.CancelFunc
}

// NewCoordinator wraps analyzer. A nil analyzer behaves like Disabled. A
// positive timeout bounds every run.
func NewCoordinator(analyzer Analyzer, timeout time.Duration) *Coordinator {
	if analyzer == nil {
		analyzer = Disabled{}
	}
	return &Coordinator{
		analyzer: analyzer,
		timeout:  timeout,
		inflight: make(map[string]*run),
	}
}

// Enabled reports whether an analysis backend is configured.
func (c *Coordinator) Enabled() bool {
	_, disabled := c.analyzer.(Disabled)
	return !disabled
}

// Run analyzes req on behalf of resultID. It returns ErrInProgress when
// another run for the same result has not finished, and the context error
// when the run is cancelled.
func (c *Coordinator) Run(ctx context.Context, resultID string, req Request) (*Response, error) {
	if !c.Enabled() {
		metrics.AnalysisOutcomes.WithLabelValues("unavailable").Inc()
		return nil, ErrUnavailable
	}

	var cancel context.CancelFunc
	if c.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	r := &run{cancel: cancel}
	c.mu.Lock()
	if _, busy := c.inflight[resultID]; busy {
		c.mu.Unlock()
		metrics.AnalysisOutcomes.WithLabelValues("in_progress").Inc()
		return nil, ErrInProgress
	}
	c.inflight[resultID] = r
	c.mu.Unlock()

	metrics.AnalysesInFlight.Inc()
	defer func() {
		metrics.AnalysesInFlight.Dec()
		c.mu.Lock()
		if c.inflight[resultID] == r {
			delete(c.inflight, resultID)
		}
		c.mu.Unlock()
	}()

	start := time.Now()
	resp, err := c.analyzer.Analyze(ctx, req)
	if err == nil && ctx.Err() != nil {
		// Cancelled after the analyzer returned; the answer is no longer wanted.
		resp, err = nil, ctx.Err()
	}
	outcome := outcomeOf(err)
	metrics.AnalysisOutcomes.WithLabelValues(outcome).Inc()
	slog.Info("analysis finished", "result_id", resultID, "outcome", outcome,
		"duration", time.Since(start))
	return resp, err
}

// Cancel stops the in-flight analysis for resultID and frees the slot
// immediately. It reports whether one was running.
func (c *Coordinator) Cancel(resultID string) bool {
	c.mu.Lock()
	r, ok := c.inflight[resultID]
	if ok {
		delete(c.inflight, resultID)
	}
	c.mu.Unlock()
	if ok {
		r.cancel()
		slog.Info("analysis cancelled", "result_id", resultID)
	}
	return ok
}

// InFlight reports whether an analysis for resultID is running.
func (c *Coordinator) InFlight(resultID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inflight[resultID]
	return ok
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
