package dashboard

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"fareflow/logger"
)

// logRecord is a captured log entry as served by /api/logs.
type logRecord struct {
	Timestamp  time.Time              `json:"timestamp"`
	Level      logrus.Level           `json:"-"`
	Component  string                 `json:"component,omitempty"`
	Trx        string                 `json:"trx_id,omitempty"`
	FareMarket int                    `json:"fare_market"`
	Message    string                 `json:"message"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

// logQuery selects captured records. An empty Trx and a negative
// FareMarket match everything; MinLevel keeps records at least that severe.
type logQuery struct {
	Trx        string
	FareMarket int
	MinLevel   logrus.Level
}

func (q logQuery) matches(r *logRecord) bool {
	if q.Trx != "" && r.Trx != q.Trx {
		return false
	}
	if q.FareMarket >= 0 && r.FareMarket != q.FareMarket {
		return false
	}
	return r.Level <= q.MinLevel
}

// logStore is a logrus hook keeping the latest entries in a ring.
type logStore struct {
	mu      sync.RWMutex
	ring    []logRecord
	next    int
	full    bool
	enabled atomic.Bool
}

func newLogStore(limit int) *logStore {
	if limit <= 0 {
		limit = 200
	}
	s := &logStore{ring: make([]logRecord, limit)}
	s.enabled.Store(true)
	return s
}

func (s *logStore) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (s *logStore) Fire(entry *logrus.Entry) error {
	if !s.enabled.Load() {
		return nil
	}
	record := toRecord(entry)

	s.mu.Lock()
	s.ring[s.next] = record
	s.next = (s.next + 1) % len(s.ring)
	if s.next == 0 {
		s.full = true
	}
	s.mu.Unlock()
	return nil
}

func toRecord(entry *logrus.Entry) logRecord {
	r := logRecord{
		Timestamp:  entry.Time,
		Level:      entry.Level,
		Message:    entry.Message,
		FareMarket: -1,
	}
	for k, v := range entry.Data {
		switch k {
		case logger.FieldComponent:
			r.Component, _ = v.(string)
			continue
		case logger.FieldTrxID:
			r.Trx, _ = v.(string)
			continue
		case logger.FieldFareMarket:
			if id, ok := v.(int); ok {
				r.FareMarket = id
				continue
			}
		}
		if r.Fields == nil {
			r.Fields = make(map[string]interface{}, len(entry.Data))
		}
		switch val := v.(type) {
		case error:
			r.Fields[k] = val.Error()
		case fmt.Stringer:
			r.Fields[k] = val.String()
		default:
			r.Fields[k] = val
		}
	}
	return r
}

// snapshot returns the retained records matching q, oldest first.
func (s *logStore) snapshot(q logQuery) []logRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, start := s.next, 0
	if s.full {
		n, start = len(s.ring), s.next
	}
	out := make([]logRecord, 0, n)
	for i := 0; i < n; i++ {
		r := &s.ring[(start+i)%len(s.ring)]
		if q.matches(r) {
			out = append(out, *r)
		}
	}
	return out
}

func (s *logStore) close() {
	s.enabled.Store(false)
}
