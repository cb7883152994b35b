package sqlstmt

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/slingdata-io/sqlstmt"

// statementMetrics holds the instruments shared by every Statement of one
// Connection.
type statementMetrics struct {
	prepared    metric.Int64Counter
	executed    metric.Int64Counter
	rowsFetched metric.Int64Counter
	duration    metric.Float64Histogram
}

func newStatementMetrics(provider metric.MeterProvider) (*statementMetrics, error) {
	meter := provider.Meter(meterName)

	var (
		m   statementMetrics
		err error
	)
	m.prepared, err = meter.Int64Counter(
		fmt.Sprintf("%s.%s", "sqlstmt", "statements.prepared"),
		metric.WithDescription("Number of statements prepared"),
	)
	if err != nil {
		return nil, err
	}

	m.executed, err = meter.Int64Counter(
		fmt.Sprintf("%s.%s", "sqlstmt", "statements.executed"),
		metric.WithDescription("Number of statement executions by operation and outcome"),
	)
	if err != nil {
		return nil, err
	}

	m.rowsFetched, err = meter.Int64Counter(
		fmt.Sprintf("%s.%s", "sqlstmt", "rows.fetched"),
		metric.WithDescription("Number of result rows fetched"),
	)
	if err != nil {
		return nil, err
	}

	m.duration, err = meter.Float64Histogram(
		fmt.Sprintf("%s.%s", "sqlstmt", "statement.duration.seconds"),
		metric.WithDescription("Duration of statement execution"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, err
	}

	return &m, nil
}

func (m *statementMetrics) recordPrepare() {
	m.prepared.Add(context.Background(), 1)
}

func (m *statementMetrics) recordExecution(operation string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("db.operation", operation),
		attribute.String("outcome", outcome),
	)
	ctx := context.Background()
	m.executed.Add(ctx, 1, attrs)
	m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
}

func (m *statementMetrics) recordRow() {
	m.rowsFetched.Add(context.Background(), 1)
}
