package dashboard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"fareflow/collector"
	"fareflow/diag"
	"fareflow/logger"
)

func TestNormalizeAddress(t *testing.T) {
	cases := map[string]string{
		"":                               "0.0.0.0:8080",
		"  :9090  ":                      "0.0.0.0:9090",
		"localhost":                      "localhost:8080",
		"0.0.0.0:80":                     "0.0.0.0:80",
		"[::1]:443":                      "[::1]:443",
		"::1":                            "[::1]:8080",
		"*:8080":                         "0.0.0.0:8080",
		"http://13.200.112.203:8080":     "13.200.112.203:8080",
		"https://13.200.112.203":         "13.200.112.203:8080",
		"http://:7070":                   "0.0.0.0:7070",
		"tcp://localhost:5050":           "localhost:5050",
		"https://dashboard.example.com/": "dashboard.example.com:8080",
	}

	for input, want := range cases {
		if got := normalizeAddress(input); got != want {
			t.Fatalf("normalizeAddress(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestNewServerNormalizesConfiguredAddress(t *testing.T) {
	srv := NewServer(Options{Address: ":9000"}, logger.Logger())
	defer srv.cleanup()
	if got := srv.Address(); got != "0.0.0.0:9000" {
		t.Fatalf("server address = %q, want %q", got, "0.0.0.0:9000")
	}
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	router, err := srv.buildRouter()
	if err != nil {
		t.Fatalf("buildRouter error: %v", err)
	}
	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, path, nil))
	return res
}

func TestEventsEndpointFilters(t *testing.T) {
	events := diag.NewBuffer(10)
	now := time.Now()
	events.Emit(diag.Event{Time: now, Transaction: "t1", FareMarket: 0, Stage: "published", Fares: 3})
	events.Emit(diag.Event{Time: now, Transaction: "t1", FareMarket: 1, Stage: "published", Fares: 1})
	events.Emit(diag.Event{Time: now, Transaction: "t1", FareMarket: 1, Stage: "release", FailCode: "no_fare_for_class"})

	srv := NewServer(Options{Events: events}, logger.Logger())
	t.Cleanup(srv.cleanup)

	res := get(t, srv, "/api/events?stage=published&fare_market=1")
	if res.Code != http.StatusOK {
		t.Fatalf("unexpected status code: %d", res.Code)
	}
	var body struct {
		Events []diag.Event `json:"events"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Events) != 1 || body.Events[0].FareMarket != 1 || body.Events[0].Stage != "published" {
		t.Fatalf("unexpected events %+v", body.Events)
	}

	if res := get(t, srv, "/api/events?fare_market=x"); res.Code != http.StatusBadRequest {
		t.Fatalf("expected bad request, got %d", res.Code)
	}
}

func TestSummaryEndpoint(t *testing.T) {
	srv := NewServer(Options{}, logger.Logger())
	t.Cleanup(srv.cleanup)

	if res := get(t, srv, "/api/summary"); res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before any collection, got %d", res.Code)
	}

	srv.RecordSummary(&collector.Summary{TransactionID: "t1", FareMarkets: 3, Duplicates: 1})
	res := get(t, srv, "/api/summary")
	if res.Code != http.StatusOK {
		t.Fatalf("unexpected status code: %d", res.Code)
	}
	var s collector.Summary
	if err := json.Unmarshal(res.Body.Bytes(), &s); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.TransactionID != "t1" || s.Duplicates != 1 {
		t.Fatalf("unexpected summary %+v", s)
	}
}

func TestMetricsEndpointIsOptional(t *testing.T) {
	srv := NewServer(Options{}, logger.Logger())
	t.Cleanup(srv.cleanup)
	if res := get(t, srv, "/metrics"); res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without a metrics handler, got %d", res.Code)
	}

	withMetrics := NewServer(Options{Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("fareflow_duplicates_total 2\n"))
	})}, logger.Logger())
	t.Cleanup(withMetrics.cleanup)
	res := get(t, withMetrics, "/metrics")
	if res.Code != http.StatusOK || res.Body.String() != "fareflow_duplicates_total 2\n" {
		t.Fatalf("unexpected metrics response %d %q", res.Code, res.Body.String())
	}
}

func TestLogsEndpointFiltersByTransaction(t *testing.T) {
	log := logger.Logger()
	srv := NewServer(Options{LogHistory: 10}, log)
	t.Cleanup(srv.cleanup)

	log.WithComponent("collector").WithField("trx_id", "t1").Info("collecting fares")
	log.WithComponent("collector").WithField("trx_id", "t2").Info("collecting fares")

	res := get(t, srv, "/api/logs?trx_id=t2")
	var body struct {
		Logs []map[string]interface{} `json:"logs"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Logs) != 1 || body.Logs[0]["trx_id"] != "t2" || body.Logs[0]["component"] != "collector" {
		t.Fatalf("unexpected logs %+v", body.Logs)
	}
}

func TestLogsEndpointFiltersByFareMarketAndLevel(t *testing.T) {
	log := logger.Logger()
	log.SetLevel(logrus.DebugLevel)
	srv := NewServer(Options{LogHistory: 10}, log)
	t.Cleanup(srv.cleanup)

	log.ForTransaction("pipeline", "t1", "multi_itin").ForFareMarket(3).Debug("stage done")
	log.ForTransaction("pipeline", "t1", "multi_itin").ForFareMarket(3).Warn("no fares")
	log.ForTransaction("pipeline", "t1", "multi_itin").ForFareMarket(5).Warn("no fares")

	res := get(t, srv, "/api/logs?fare_market=3&level=warning")
	var body struct {
		Logs []map[string]interface{} `json:"logs"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Logs) != 1 || body.Logs[0]["message"] != "no fares" || body.Logs[0]["fare_market"] != float64(3) {
		t.Fatalf("unexpected logs %+v", body.Logs)
	}

	if res := get(t, srv, "/api/logs?level=loud"); res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an unknown level, got %d", res.Code)
	}
}
