package logger

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type componentStat struct {
	warns  int64
	errors int64
}

var components sync.Map // map[string]*componentStat

func statFor(component string) *componentStat {
	v, _ := components.LoadOrStore(component, &componentStat{})
	return v.(*componentStat)
}

func recordWarn(component string) {
	atomic.AddInt64(&statFor(component).warns, 1)
}

func recordError(component string) {
	atomic.AddInt64(&statFor(component).errors, 1)
}

// Tally is the number of warnings and errors logged by one component.
type Tally struct {
	Component string `json:"component"`
	Warns     int64  `json:"warns"`
	Errors    int64  `json:"errors"`
}

// Tallies returns the warning and error counts per component, sorted by name.
func Tallies() []Tally {
	var out []Tally
	components.Range(func(k, v interface{}) bool {
		cs := v.(*componentStat)
		out = append(out, Tally{
			Component: k.(string),
			Warns:     atomic.LoadInt64(&cs.warns),
			Errors:    atomic.LoadInt64(&cs.errors),
		})
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Component < out[j].Component })
	return out
}

// ResetTallies clears every component count.
func ResetTallies() {
	components.Range(func(k, _ interface{}) bool {
		components.Delete(k)
		return true
	})
}

// Report logs the tallies and publishes them to CloudWatch.
func Report(ctx context.Context, log *Log) {
	tallies := Tallies()
	data := make([]cwtypes.MetricDatum, 0, len(tallies)*2)
	for _, t := range tallies {
		log.WithComponent("report").WithFields(Fields{
			"target": t.Component,
			"warns":  t.Warns,
			"errors": t.Errors,
		}).Info("component log tally")

		dims := []cwtypes.Dimension{{Name: aws.String("component"), Value: aws.String(t.Component)}}
		data = append(data,
			cwtypes.MetricDatum{MetricName: aws.String("Warnings"), Dimensions: dims, Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(t.Warns))},
			cwtypes.MetricDatum{MetricName: aws.String("Errors"), Dimensions: dims, Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(t.Errors))},
		)
	}
	publishMetrics(ctx, data)
}
