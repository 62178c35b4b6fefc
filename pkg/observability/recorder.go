package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	globalMetrics Metrics
	metricsMu     sync.RWMutex
)

// Metrics records the runtime signals of the agent loop. Implementations
// must tolerate nil receivers and partial initialization so call sites never
// need guards.
type Metrics interface {
	RecordRun(ctx context.Context, reason string, duration time.Duration)
	RecordStep(ctx context.Context, outcome string, duration time.Duration)
	RecordAction(ctx context.Context, action, status string, retries int, duration time.Duration)
	RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error)
	RecordSnapshot(ctx context.Context, cacheHit bool, duration time.Duration, elements int)
	RecordCompaction(ctx context.Context)
	RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, duration time.Duration, responseSize int)
}

type PrometheusMetrics struct {
	runDuration metric.Float64Histogram
	runsTotal   metric.Int64Counter

	stepDuration metric.Float64Histogram
	stepsTotal   metric.Int64Counter

	actionDuration     metric.Float64Histogram
	actionsTotal       metric.Int64Counter
	actionRetriesTotal metric.Int64Counter

	llmDuration     metric.Float64Histogram
	llmInputTokens  metric.Int64Counter
	llmOutputTokens metric.Int64Counter
	llmErrorsTotal  metric.Int64Counter

	snapshotDuration    metric.Float64Histogram
	snapshotCacheHits   metric.Int64Counter
	snapshotCacheMisses metric.Int64Counter
	snapshotElements    metric.Int64Histogram

	compactionsTotal metric.Int64Counter

	httpDuration      metric.Float64Histogram
	httpRequestsTotal metric.Int64Counter
}

func NewPrometheusMetrics(
	runDuration metric.Float64Histogram,
	runsTotal metric.Int64Counter,
	stepDuration metric.Float64Histogram,
	stepsTotal metric.Int64Counter,
	actionDuration metric.Float64Histogram,
	actionsTotal metric.Int64Counter,
	actionRetriesTotal metric.Int64Counter,
	llmDuration metric.Float64Histogram,
	llmInputTokens metric.Int64Counter,
	llmOutputTokens metric.Int64Counter,
	llmErrorsTotal metric.Int64Counter,
	snapshotDuration metric.Float64Histogram,
	snapshotCacheHits metric.Int64Counter,
	snapshotCacheMisses metric.Int64Counter,
	snapshotElements metric.Int64Histogram,
	compactionsTotal metric.Int64Counter,
	httpDuration metric.Float64Histogram,
	httpRequestsTotal metric.Int64Counter,
) *PrometheusMetrics {
	return &PrometheusMetrics{
		runDuration:         runDuration,
		runsTotal:           runsTotal,
		stepDuration:        stepDuration,
		stepsTotal:          stepsTotal,
		actionDuration:      actionDuration,
		actionsTotal:        actionsTotal,
		actionRetriesTotal:  actionRetriesTotal,
		llmDuration:         llmDuration,
		llmInputTokens:      llmInputTokens,
		llmOutputTokens:     llmOutputTokens,
		llmErrorsTotal:      llmErrorsTotal,
		snapshotDuration:    snapshotDuration,
		snapshotCacheHits:   snapshotCacheHits,
		snapshotCacheMisses: snapshotCacheMisses,
		snapshotElements:    snapshotElements,
		compactionsTotal:    compactionsTotal,
		httpDuration:        httpDuration,
		httpRequestsTotal:   httpRequestsTotal,
	}
}

func (m *PrometheusMetrics) RecordRun(ctx context.Context, reason string, duration time.Duration) {
	if m == nil || m.runDuration == nil || m.runsTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("reason", reason),
	}

	m.runDuration.Record(ctx, duration.Seconds())
	m.runsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *PrometheusMetrics) RecordStep(ctx context.Context, outcome string, duration time.Duration) {
	if m == nil || m.stepDuration == nil || m.stepsTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("outcome", outcome),
	}

	m.stepDuration.Record(ctx, duration.Seconds())
	m.stepsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *PrometheusMetrics) RecordAction(ctx context.Context, action, status string, retries int, duration time.Duration) {
	if m == nil || m.actionDuration == nil || m.actionsTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("action", action),
		attribute.String("status", status),
	}

	m.actionDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("action", action)))
	m.actionsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	if retries > 0 && m.actionRetriesTotal != nil {
		m.actionRetriesTotal.Add(ctx, int64(retries), metric.WithAttributes(attribute.String("action", action)))
	}
}

func (m *PrometheusMetrics) RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error) {
	if m == nil || m.llmDuration == nil || m.llmInputTokens == nil || m.llmOutputTokens == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("model", model),
	}

	m.llmDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.llmInputTokens.Add(ctx, int64(inputTokens), metric.WithAttributes(attrs...))
	m.llmOutputTokens.Add(ctx, int64(outputTokens), metric.WithAttributes(attrs...))

	if err != nil && m.llmErrorsTotal != nil {
		m.llmErrorsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func (m *PrometheusMetrics) RecordSnapshot(ctx context.Context, cacheHit bool, duration time.Duration, elements int) {
	if m == nil || m.snapshotCacheHits == nil || m.snapshotCacheMisses == nil {
		return
	}

	if cacheHit {
		m.snapshotCacheHits.Add(ctx, 1)
		return
	}

	m.snapshotCacheMisses.Add(ctx, 1)
	if m.snapshotDuration != nil {
		m.snapshotDuration.Record(ctx, duration.Seconds())
	}
	if m.snapshotElements != nil {
		m.snapshotElements.Record(ctx, int64(elements))
	}
}

func (m *PrometheusMetrics) RecordCompaction(ctx context.Context) {
	if m == nil || m.compactionsTotal == nil {
		return
	}

	m.compactionsTotal.Add(ctx, 1)
}

func (m *PrometheusMetrics) RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, duration time.Duration, responseSize int) {
	if m == nil || m.httpDuration == nil || m.httpRequestsTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", statusCode),
	}

	m.httpDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
	))
	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func SetGlobalMetrics(m Metrics) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	globalMetrics = m
}

func GetGlobalMetrics() Metrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return globalMetrics
}
