package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"fareflow/collector"
	"fareflow/models"
)

func TestObserveSummary(t *testing.T) {
	m := New("fareflow_test")
	m.Observe(&collector.Summary{
		Priced:     3,
		Duplicates: 2,
		FailCodes:  map[string]int{models.FailNoFareForClass.String(): 1},
		Counters:   models.CounterSnapshot{FaresCollected: 10, FaresReleased: 4, FaresCloned: 6},
		Duration:   150 * time.Millisecond,
	})

	if got := testutil.ToFloat64(m.FareMarkets.WithLabelValues("priced")); got != 3 {
		t.Fatalf("priced = %v", got)
	}
	if got := testutil.ToFloat64(m.FareMarkets.WithLabelValues("no_fare_for_class")); got != 1 {
		t.Fatalf("no_fare_for_class = %v", got)
	}
	if got := testutil.ToFloat64(m.Duplicates); got != 2 {
		t.Fatalf("duplicates = %v", got)
	}
	if got := testutil.ToFloat64(m.Fares.WithLabelValues("cloned")); got != 6 {
		t.Fatalf("cloned = %v", got)
	}
	if got := testutil.ToFloat64(m.CollectRuns.WithLabelValues("ok")); got != 1 {
		t.Fatalf("runs = %v", got)
	}
}

func TestObserveError(t *testing.T) {
	m := New("fareflow_test")
	m.ObserveError(collector.ErrAborted)
	m.ObserveError(errors.New("boom"))

	if got := testutil.ToFloat64(m.CollectRuns.WithLabelValues("aborted")); got != 1 {
		t.Fatalf("aborted = %v", got)
	}
	if got := testutil.ToFloat64(m.CollectRuns.WithLabelValues("fault")); got != 1 {
		t.Fatalf("fault = %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New("fareflow_test")
	m.Duplicates.Add(1)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "fareflow_test_duplicates_total 1") {
		t.Fatalf("duplicates metric missing:\n%s", body)
	}
}
