package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
)

func TestWithComponent(t *testing.T) {
	log := Logger()
	entry := log.WithComponent("test")
	if v, ok := entry.Entry.Data["component"]; !ok || v != "test" {
		t.Fatalf("component field missing: %v", entry.Entry.Data)
	}
}

func TestConfigureInvalidLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("invalid", "json", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}

func TestConfigureInvalidFormat(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("info", "xml", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid format")
	}
}

func TestConfigureFileOutput(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	path := filepath.Join(t.TempDir(), "fareflow.log")
	log := Logger()
	if err := log.Configure("info", "json", path, 0); err != nil {
		t.Fatalf("configure: %v", err)
	}
	log.WithComponent("collector").Info("hello")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var line map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(data), &line); err != nil {
		t.Fatalf("log line is not json: %v (%s)", err, data)
	}
	if line["message"] != "hello" || line["component"] != "collector" {
		t.Fatalf("unexpected log line: %v", line)
	}
}

func TestForTransaction(t *testing.T) {
	log := Logger()
	entry := log.ForTransaction("collector", "t1", "multi_itin").ForFareMarket(4)
	want := map[string]interface{}{
		FieldComponent:  "collector",
		FieldTrxID:      "t1",
		FieldTrxType:    "multi_itin",
		FieldFareMarket: 4,
	}
	for k, v := range want {
		if entry.Entry.Data[k] != v {
			t.Fatalf("field %s = %v, want %v", k, entry.Entry.Data[k], v)
		}
	}
}

func TestCallerSkipsLoggingFrames(t *testing.T) {
	h := newCallerHook()
	if !h.skipped("github.com/sirupsen/logrus.(*Entry).Log") || !h.skipped("fareflow/logger.(*Entry).Warn") {
		t.Fatal("logging frames must be skipped")
	}
	if h.skipped("fareflow/collector.(*Collector).Collect") {
		t.Fatal("collector frames are reported")
	}
}

func TestTalliesCountWarnAndError(t *testing.T) {
	ResetTallies()
	log := Logger()
	log.SetOutput(&bytes.Buffer{})

	log.WithComponent("propagator").Warn("w")
	log.WithComponent("propagator").Error("e")
	log.WithComponent("propagator").Error("e")

	tallies := Tallies()
	if len(tallies) != 1 {
		t.Fatalf("expected one component, got %+v", tallies)
	}
	if tallies[0].Warns != 1 || tallies[0].Errors != 2 {
		t.Fatalf("unexpected tally: %+v", tallies[0])
	}
}

type fakeCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
}

func (f *fakeCloudWatch) PutMetricData(_ context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.inputs = append(f.inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func (f *fakeCloudWatch) PutDashboard(context.Context, *cloudwatch.PutDashboardInput, ...func(*cloudwatch.Options)) (*cloudwatch.PutDashboardOutput, error) {
	return &cloudwatch.PutDashboardOutput{}, nil
}

func TestLogMetricPublishesToCloudWatch(t *testing.T) {
	fake := &fakeCloudWatch{}
	setCloudWatchClient(fake, "FareflowTest", "")
	t.Cleanup(func() { setCloudWatchClient(nil, "", "") })

	log := Logger()
	log.SetOutput(&bytes.Buffer{})
	log.LogMetric("collector", "Duplicates", int64(3), "", Fields{"trx_type": "multi_itin"})

	if len(fake.inputs) != 1 {
		t.Fatalf("expected one publish, got %d", len(fake.inputs))
	}
	in := fake.inputs[0]
	if *in.Namespace != "FareflowTest" {
		t.Fatalf("unexpected namespace %s", *in.Namespace)
	}
	datum := in.MetricData[0]
	if *datum.MetricName != "Duplicates" || *datum.Value != 3 {
		t.Fatalf("unexpected datum: %s=%v", *datum.MetricName, *datum.Value)
	}
	if len(datum.Dimensions) != 2 {
		t.Fatalf("expected component and trx_type dimensions, got %d", len(datum.Dimensions))
	}
}

func TestLogMetricIgnoresNonNumeric(t *testing.T) {
	fake := &fakeCloudWatch{}
	setCloudWatchClient(fake, "", "")
	t.Cleanup(func() { setCloudWatchClient(nil, "", "") })

	log := Logger()
	log.SetOutput(&bytes.Buffer{})
	log.LogMetric("collector", "Label", "text", "", nil)
	if len(fake.inputs) != 0 {
		t.Fatalf("non numeric metric should not be published")
	}
}
