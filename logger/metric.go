package logger

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Metric types accepted by LogMetric.
const (
	MetricCounter = "counter"
	MetricTimer   = "timer"
)

var reservedMetricFields = map[string]struct{}{"metric": {}, "metric_type": {}, "value": {}}

// LogMetric logs a metric line and publishes numeric values to CloudWatch
// when a client was initialised. String fields become dimensions.
func (e *Entry) LogMetric(component string, metric string, value interface{}, metricType string, fields Fields) {
	if fields == nil {
		fields = make(Fields)
	}
	if metricType == "" {
		metricType = MetricCounter
	}
	fields["metric"] = metric
	fields["value"] = value
	fields["metric_type"] = metricType
	e.WithComponent(component).WithFields(fields).Debug("metric")

	if datum, ok := metricDatum(component, metric, value, metricType, fields); ok {
		publishMetrics(context.Background(), []cwtypes.MetricDatum{datum})
	}
}

// LogMetric logs and publishes a metric for component.
func (l *Log) LogMetric(component string, metric string, value interface{}, metricType string, fields Fields) {
	l.WithComponent(component).LogMetric(component, metric, value, metricType, fields)
}

func metricDatum(component, metric string, value interface{}, metricType string, fields Fields) (cwtypes.MetricDatum, bool) {
	val, ok := numeric(value)
	if !ok {
		return cwtypes.MetricDatum{}, false
	}
	unit := cwtypes.StandardUnitCount
	if metricType == MetricTimer {
		unit = cwtypes.StandardUnitMilliseconds
	}

	dims := []cwtypes.Dimension{{Name: aws.String(FieldComponent), Value: aws.String(component)}}
	for k, v := range fields {
		if _, reserved := reservedMetricFields[k]; reserved {
			continue
		}
		if s, ok := v.(string); ok {
			dims = append(dims, cwtypes.Dimension{Name: aws.String(k), Value: aws.String(s)})
		}
	}
	return cwtypes.MetricDatum{
		MetricName: aws.String(metric),
		Dimensions: dims,
		Unit:       unit,
		Value:      aws.Float64(val),
	}, true
}

func numeric(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case time.Duration:
		return float64(v.Milliseconds()), true
	}
	return 0, false
}

// LogPerformanceEntry logs the duration of one operation.
func LogPerformanceEntry(entry *Entry, component string, operation string, duration time.Duration, fields Fields) {
	if fields == nil {
		fields = make(Fields)
	}
	fields["duration_ms"] = float64(duration.Nanoseconds()) / 1e6
	fields["operation"] = operation
	entry.WithFields(fields).WithComponent(component).Debug("performance metric")
}

// LogDataFlowEntry logs records moving between two stages.
func LogDataFlowEntry(entry *Entry, source string, destination string, recordCount int, dataType string) {
	entry.WithFields(Fields{
		"source":       source,
		"destination":  destination,
		"record_count": recordCount,
		"data_type":    dataType,
	}).Debug("data flow metric")
}
