package diag

import (
	"sync"
	"time"

	"fareflow/logger"
)

// Event is one diagnostic record emitted by the collector.
type Event struct {
	Time        time.Time `json:"time"`
	Transaction string    `json:"transaction"`
	FareMarket  int       `json:"fare_market"`
	Stage       string    `json:"stage"`
	Message     string    `json:"message,omitempty"`
	Fares       int       `json:"fares"`
	FailCode    string    `json:"fail_code,omitempty"`
}

// Sink receives diagnostic events. Emit is called from collector workers
// concurrently and must not block for long.
type Sink interface {
	Emit(Event)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Emit(Event) {}

// Buffer keeps the most recent events in memory.
type Buffer struct {
	mu     sync.Mutex
	limit  int
	events []Event
}

// NewBuffer returns a buffer holding at most limit events. A limit of zero
// or less keeps everything.
func NewBuffer(limit int) *Buffer {
	return &Buffer{limit: limit}
}

func (b *Buffer) Emit(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
	if b.limit > 0 && len(b.events) > b.limit {
		b.events = append([]Event(nil), b.events[len(b.events)-b.limit:]...)
	}
}

// Events returns a copy of the buffered events in emission order.
func (b *Buffer) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Event(nil), b.events...)
}

// Stage returns the buffered events of one stage.
func (b *Buffer) Stage(stage string) []Event {
	var out []Event
	for _, ev := range b.Events() {
		if ev.Stage == stage {
			out = append(out, ev)
		}
	}
	return out
}

// LogSink writes events to the structured log at debug level.
type LogSink struct {
	log *logger.Log
}

func NewLogSink(log *logger.Log) *LogSink {
	if log == nil {
		log = logger.GetLogger()
	}
	return &LogSink{log: log}
}

func (s *LogSink) Emit(ev Event) {
	s.log.WithComponent("diag").WithFields(logger.Fields{
		"trx_id":      ev.Transaction,
		"fare_market": ev.FareMarket,
		"stage":       ev.Stage,
		"fares":       ev.Fares,
		"fail_code":   ev.FailCode,
	}).Debug(ev.Message)
}

// Multi fans events out to several sinks.
type Multi []Sink

func (m Multi) Emit(ev Event) {
	for _, s := range m {
		s.Emit(ev)
	}
}
