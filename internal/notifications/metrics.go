package notifications

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"wacrm/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CampaignMetrics emits campaign lifecycle counters to CloudWatch.
//
// Metrics emitted:
//   - CampaignStatusTransition: Dims {FromStatus, ToStatus}
//   - BatchExpiryNotificationCreated: Dims {Window}
//   - SchedulerUnavailable: Dims {Operation}
//   - CancelChunkFailure: no dims, value is the number of ids in failed chunks
//   - APILatency (milliseconds) and APIRequestCount: Dims {Method, Endpoint, Status}
//
// Emission failures are logged and never returned.
type CampaignMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewCampaignMetrics creates a CampaignMetrics. An empty namespace falls
// back to types.MetricNamespace.
func NewCampaignMetrics(client CloudWatchClient, namespace string, logger *slog.Logger) *CampaignMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CampaignMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

func (m *CampaignMetrics) RecordTransition(ctx context.Context, from, to types.ScheduleStatus) {
	m.put(ctx, types.MetricCampaignTransition, 1,
		dim(types.DimFromStatus, string(from)),
		dim(types.DimToStatus, string(to)),
	)
}

func (m *CampaignMetrics) RecordNotificationCreated(ctx context.Context, window types.NotificationWindow) {
	m.put(ctx, types.MetricNotificationCreated, 1, dim(types.DimWindow, string(window)))
}

func (m *CampaignMetrics) RecordSchedulerUnavailable(ctx context.Context, operation string) {
	m.put(ctx, types.MetricSchedulerUnavailable, 1, dim(types.DimOperation, operation))
}

func (m *CampaignMetrics) RecordCancelChunkFailure(ctx context.Context, ids int) {
	m.put(ctx, types.MetricCancelChunkFailure, float64(ids))
}

// RecordRequest implements core.MetricsCollector. Both data points go out in
// one PutMetricData call.
func (m *CampaignMetrics) RecordRequest(method, endpoint, status string, duration time.Duration) {
	dims := []cwtypes.Dimension{
		dim(types.DimMethod, method),
		dim(types.DimEndpoint, endpoint),
		dim(types.DimStatus, status),
	}
	m.send(context.Background(),
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricAPILatency),
			Value:      aws.Float64(float64(duration.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Dimensions: dims,
		},
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricAPIRequestCount),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: dims,
		},
	)
}

func (m *CampaignMetrics) put(ctx context.Context, name string, value float64, dims ...cwtypes.Dimension) {
	m.send(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(value),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: dims,
	})
}

func (m *CampaignMetrics) send(ctx context.Context, data ...cwtypes.MetricDatum) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.ErrorContext(ctx, "failed to record campaign metric",
			"error", err.Error(),
			"metric", aws.ToString(data[0].MetricName),
		)
	}
}

func dim(name, value string) cwtypes.Dimension {
	return cwtypes.Dimension{Name: aws.String(name), Value: aws.String(value)}
}

// NoopMetrics drops every metric. It is used when metrics are disabled.
type NoopMetrics struct{}

func (NoopMetrics) RecordTransition(context.Context, types.ScheduleStatus, types.ScheduleStatus) {}
func (NoopMetrics) RecordNotificationCreated(context.Context, types.NotificationWindow)          {}
func (NoopMetrics) RecordSchedulerUnavailable(context.Context, string)                           {}
func (NoopMetrics) RecordCancelChunkFailure(context.Context, int)                                {}
func (NoopMetrics) RecordRequest(string, string, string, time.Duration)                          {}
