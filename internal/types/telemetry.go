package types

// Telemetry metric names for CloudWatch.
// All components MUST use these constants.
const (
	// Metric Names
	MetricCampaignTransition   = "CampaignStatusTransition"
	MetricNotificationCreated  = "BatchExpiryNotificationCreated"
	MetricSchedulerUnavailable = "SchedulerUnavailable"
	MetricCancelChunkFailure   = "CancelChunkFailure"
	MetricAPILatency           = "APILatency"
	MetricAPIRequestCount      = "APIRequestCount"

	// Dimension Keys
	DimFromStatus = "FromStatus"
	DimToStatus   = "ToStatus"
	DimWindow     = "Window"
	DimOperation  = "Operation"
	DimEndpoint   = "Endpoint"
	DimMethod     = "Method"
	DimStatus     = "Status"

	// MetricNamespace is the default namespace when METRIC_NAMESPACE is unset.
	MetricNamespace = "WACRM/Campaigns"
)
