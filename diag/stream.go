package diag

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"fareflow/logger"
)

const writeWait = 5 * time.Second

// StreamSink broadcasts events as JSON text frames to every connected
// websocket subscriber. Slow subscribers lose events instead of stalling
// the collector.
type StreamSink struct {
	upgrader websocket.Upgrader
	buffer   int
	log      *logger.Log

	mu      sync.Mutex
	clients map[*subscriber]struct{}
	closed  bool

	dropped atomic.Int64
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// NewStreamSink returns a sink whose subscribers queue up to buffer events.
func NewStreamSink(buffer int) *StreamSink {
	if buffer <= 0 {
		buffer = 256
	}
	return &StreamSink{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		buffer:  buffer,
		log:     logger.GetLogger(),
		clients: make(map[*subscriber]struct{}),
	}
}

func (s *StreamSink) Emit(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		s.log.WithComponent("diag_stream").WithError(err).Warn("failed to encode event")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- payload:
		default:
			s.dropped.Add(1)
		}
	}
}

// Subscribers returns the number of connected subscribers.
func (s *StreamSink) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Dropped returns the number of events not delivered to slow subscribers.
func (s *StreamSink) Dropped() int64 { return s.dropped.Load() }

// ServeHTTP upgrades the request and streams events until the peer goes away
// or the sink is closed.
func (s *StreamSink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := s.log.WithComponent("diag_stream")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &subscriber{conn: conn, send: make(chan []byte, s.buffer)}
	if !s.add(c) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "closed"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}
	log.WithField("remote", r.RemoteAddr).Info("diagnostic subscriber connected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		s.remove(c)
		conn.Close()
		log.WithField("remote", r.RemoteAddr).Info("diagnostic subscriber disconnected")
	}()

	for {
		select {
		case <-done:
			return
		case msg, ok := <-c.send:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.WithError(err).Debug("write to subscriber failed")
				return
			}
		}
	}
}

// Close disconnects every subscriber and rejects new ones.
func (s *StreamSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for c := range s.clients {
		close(c.send)
		delete(s.clients, c)
	}
}

func (s *StreamSink) add(c *subscriber) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.clients[c] = struct{}{}
	return true
}

func (s *StreamSink) remove(c *subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
}
