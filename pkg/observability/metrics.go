package observability

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"
)

const defaultFlushSize = 20

// CloudWatchAPI is the subset of the CloudWatch client used for publishing.
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Metrics buffers business metrics and ships them to CloudWatch in batches.
// A Metrics with a nil client records nothing.
type Metrics struct {
	client    CloudWatchAPI
	namespace string
	logger    *zap.Logger
	flushSize int

	mu     sync.Mutex
	buffer []types.MetricDatum
}

// NewMetrics creates a CloudWatch metrics publisher
func NewMetrics(namespace string, client CloudWatchAPI, logger *zap.Logger) *Metrics {
	return &Metrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
		flushSize: defaultFlushSize,
	}
}

// Increment adds one to metric, dimensioned by operation label.
func (m *Metrics) Increment(metric, label string) {
	m.record(metric, label, 1, types.StandardUnitCount)
}

// StartTimer measures the time until Stop in milliseconds.
func (m *Metrics) StartTimer(metric, label string) Timer {
	return &timer{metrics: m, metric: metric, label: label, start: time.Now()}
}

func (m *Metrics) record(metric, label string, value float64, unit types.StandardUnit) {
	if m == nil || m.client == nil {
		return
	}
	datum := types.MetricDatum{
		MetricName: aws.String(metric),
		Value:      aws.Float64(value),
		Unit:       unit,
		Timestamp:  aws.Time(time.Now()),
		Dimensions: []types.Dimension{{Name: aws.String("Operation"), Value: aws.String(label)}},
	}

	m.mu.Lock()
	m.buffer = append(m.buffer, datum)
	full := len(m.buffer) >= m.flushSize
	m.mu.Unlock()

	if full {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = m.Flush(ctx)
		}()
	}
}

// Flush sends every buffered datum.
func (m *Metrics) Flush(ctx context.Context) error {
	if m == nil || m.client == nil {
		return nil
	}
	m.mu.Lock()
	pending := m.buffer
	m.buffer = nil
	m.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}
	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: pending,
	})
	if err != nil {
		m.logger.Warn("Failed to publish metrics",
			zap.String("namespace", m.namespace),
			zap.Int("count", len(pending)),
			zap.Error(err),
		)
	}
	return err
}

// Run flushes on every tick until ctx is done, then flushes once more.
func (m *Metrics) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = m.Flush(flushCtx)
			cancel()
			return
		case <-ticker.C:
			_ = m.Flush(ctx)
		}
	}
}

// Timer measures one operation
type Timer interface {
	Stop()
}

type timer struct {
	metrics *Metrics
	metric  string
	label   string
	start   time.Time
}

func (t *timer) Stop() {
	elapsed := float64(time.Since(t.start).Microseconds()) / 1000
	t.metrics.record(t.metric, t.label, elapsed, types.StandardUnitMilliseconds)
}
