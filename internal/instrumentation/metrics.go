package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys.
const (
	attrMethod  = "method"
	attrPath    = "path"
	attrStatus  = "status"
	attrService = "service"
	attrRoute   = "route"
	attrTool    = "tool"
)

// Metrics provides methods for recording observability metrics.
// The zero value is a usable no-op recorder.
type Metrics struct {
	// HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	// Assistant metrics
	assistantTurnsTotal  metric.Int64Counter
	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram

	// Google API metrics
	googleAPIOperationsTotal metric.Int64Counter

	// OAuth metrics
	oauthLoginsTotal metric.Int64Counter
}

// NewMetrics creates a Metrics instance with all instruments initialized.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	m.assistantTurnsTotal, err = meter.Int64Counter(
		"assistant_turns_total",
		metric.WithDescription("Total number of assistant turns by route"),
		metric.WithUnit("{turn}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create assistant_turns_total counter: %w", err)
	}

	m.toolInvocationsTotal, err = meter.Int64Counter(
		"tool_invocations_total",
		metric.WithDescription("Total number of assistant tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool_invocations_total counter: %w", err)
	}

	m.toolDuration, err = meter.Float64Histogram(
		"tool_duration_seconds",
		metric.WithDescription("Assistant tool execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool_duration_seconds histogram: %w", err)
	}

	m.googleAPIOperationsTotal, err = meter.Int64Counter(
		"google_api_operations_total",
		metric.WithDescription("Total number of Google API operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create google_api_operations_total counter: %w", err)
	}

	m.oauthLoginsTotal, err = meter.Int64Counter(
		"oauth_logins_total",
		metric.WithDescription("Total number of completed OAuth logins"),
		metric.WithUnit("{login}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_logins_total counter: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request with its duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	if m.httpRequestsTotal == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(status)),
	)
	m.httpRequestsTotal.Add(ctx, 1, attrs)
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
	))
}

// RecordAssistantTurn records one dispatcher turn and the route it took
// ("direct" or "tool").
func (m *Metrics) RecordAssistantTurn(ctx context.Context, route string, err error) {
	if m.assistantTurnsTotal == nil {
		return
	}
	m.assistantTurnsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrRoute, route),
		resultAttr(err),
	))
}

// RecordToolInvocation records one tool execution with its duration.
func (m *Metrics) RecordToolInvocation(ctx context.Context, tool string, duration time.Duration, err error) {
	if m.toolInvocationsTotal == nil {
		return
	}
	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrTool, tool),
		resultAttr(err),
	))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(attrTool, tool),
	))
}

// RecordGoogleAPIOperation records one mail/calendar gateway operation.
func (m *Metrics) RecordGoogleAPIOperation(ctx context.Context, service, operation string, err error) {
	if m.googleAPIOperationsTotal == nil {
		return
	}
	m.googleAPIOperationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrService, service),
		attribute.String("operation", operation),
		resultAttr(err),
	))
}

// RecordOAuthLogin records a completed OAuth callback.
func (m *Metrics) RecordOAuthLogin(ctx context.Context, err error) {
	if m.oauthLoginsTotal == nil {
		return
	}
	m.oauthLoginsTotal.Add(ctx, 1, metric.WithAttributes(resultAttr(err)))
}
