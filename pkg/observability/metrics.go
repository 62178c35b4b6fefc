package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// InitMetrics wires the OpenTelemetry meter to the Prometheus exporter and
// creates the argus instrument set. When disabled, all recorders are no-ops.
func InitMetrics(ctx context.Context, cfg MetricsConfig) (*PrometheusMetrics, error) {
	if !cfg.Enabled {
		return &PrometheusMetrics{}, nil
	}

	promExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(promExporter),
	)

	meter := meterProvider.Meter("argus")

	runDuration, err := meter.Float64Histogram(
		"argus_run_duration_seconds",
		metric.WithDescription("Agent run duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run duration histogram: %w", err)
	}

	runsTotal, err := meter.Int64Counter(
		"argus_runs_total",
		metric.WithDescription("Total agent runs by terminal reason"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create runs counter: %w", err)
	}

	stepDuration, err := meter.Float64Histogram(
		"argus_step_duration_seconds",
		metric.WithDescription("Agent step duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create step duration histogram: %w", err)
	}

	stepsTotal, err := meter.Int64Counter(
		"argus_steps_total",
		metric.WithDescription("Total agent steps by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create steps counter: %w", err)
	}

	actionDuration, err := meter.Float64Histogram(
		"argus_action_duration_seconds",
		metric.WithDescription("Browser action duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create action duration histogram: %w", err)
	}

	actionsTotal, err := meter.Int64Counter(
		"argus_actions_total",
		metric.WithDescription("Total browser actions by name and status"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create actions counter: %w", err)
	}

	actionRetries, err := meter.Int64Counter(
		"argus_action_retries_total",
		metric.WithDescription("Total browser action retry attempts"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create action retries counter: %w", err)
	}

	llmDuration, err := meter.Float64Histogram(
		"argus_llm_request_duration_seconds",
		metric.WithDescription("LLM request duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm duration histogram: %w", err)
	}

	llmInputTokens, err := meter.Int64Counter(
		"argus_llm_tokens_input_total",
		metric.WithDescription("Total input tokens sent to LLM"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm input tokens counter: %w", err)
	}

	llmOutputTokens, err := meter.Int64Counter(
		"argus_llm_tokens_output_total",
		metric.WithDescription("Total output tokens from LLM"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm output tokens counter: %w", err)
	}

	llmErrors, err := meter.Int64Counter(
		"argus_llm_errors_total",
		metric.WithDescription("Total LLM errors"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm errors counter: %w", err)
	}

	snapshotDuration, err := meter.Float64Histogram(
		"argus_snapshot_duration_seconds",
		metric.WithDescription("Page snapshot capture duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot duration histogram: %w", err)
	}

	snapshotCacheHits, err := meter.Int64Counter(
		"argus_snapshot_cache_hits_total",
		metric.WithDescription("Snapshot cache hits"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot cache hits counter: %w", err)
	}

	snapshotCacheMisses, err := meter.Int64Counter(
		"argus_snapshot_cache_misses_total",
		metric.WithDescription("Snapshot cache misses"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot cache misses counter: %w", err)
	}

	snapshotElements, err := meter.Int64Histogram(
		"argus_snapshot_elements",
		metric.WithDescription("Interactive elements per snapshot"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot elements histogram: %w", err)
	}

	compactions, err := meter.Int64Counter(
		"argus_memory_compactions_total",
		metric.WithDescription("Total working memory compactions"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create compactions counter: %w", err)
	}

	httpDuration, err := meter.Float64Histogram(
		"argus_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http duration histogram: %w", err)
	}

	httpRequests, err := meter.Int64Counter(
		"argus_http_requests_total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http requests counter: %w", err)
	}

	return NewPrometheusMetrics(
		runDuration,
		runsTotal,
		stepDuration,
		stepsTotal,
		actionDuration,
		actionsTotal,
		actionRetries,
		llmDuration,
		llmInputTokens,
		llmOutputTokens,
		llmErrors,
		snapshotDuration,
		snapshotCacheHits,
		snapshotCacheMisses,
		snapshotElements,
		compactions,
		httpDuration,
		httpRequests,
	), nil
}
