package llm

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/pavelanni/assessor/internal/metrics"
)

// LoggingProvider logs every call with slog and records latency, outcome
// and token usage in Prometheus.
type LoggingProvider struct {
	inner Provider
}

// WithLogging wraps p with call logging and metrics.
func WithLogging(p Provider) Provider {
	return &LoggingProvider{inner: p}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	purpose := PurposeFrom(ctx)
	model := l.inner.ModelID()

	resp, err := l.inner.Generate(ctx, req)
	elapsed := time.Since(start)

	metrics.LLMRequests.WithLabelValues(model, purpose, strconv.FormatBool(err == nil)).Inc()
	metrics.LLMDuration.WithLabelValues(model).Observe(elapsed.Seconds())

	if err != nil {
		slog.Warn("LLM request failed",
			"model", model, "purpose", purpose, "latency_ms", elapsed.Milliseconds(), "error", err)
		return nil, err
	}

	metrics.LLMTokens.WithLabelValues(model, "input").Add(float64(resp.Usage.InputTokens))
	metrics.LLMTokens.WithLabelValues(model, "output").Add(float64(resp.Usage.OutputTokens))
	slog.Debug("LLM request",
		"model", resp.Model,
		"purpose", purpose,
		"latency_ms", elapsed.Milliseconds(),
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"raw", string(resp.Content),
	)
	return resp, nil
}

func (l *LoggingProvider) ModelID() string { return l.inner.ModelID() }
