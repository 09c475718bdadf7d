package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"fareflow/collector"
	"fareflow/diag"
	"fareflow/logger"
)

// Options selects what the dashboard serves. Nil sources disable their
// endpoints.
type Options struct {
	Address    string
	LogHistory int
	Events     *diag.Buffer
	Stream     *diag.StreamSink
	Metrics    http.Handler
}

// Server hosts the Gin-powered diagnostics endpoints for fare collection.
type Server struct {
	opts       Options
	log        *logger.Log
	logStore   *logStore
	httpServer *http.Server

	mu      sync.RWMutex
	summary *collector.Summary
}

// NewServer constructs a diagnostics server and attaches its log capture to
// log.
func NewServer(opts Options, log *logger.Log) *Server {
	opts.Address = normalizeAddress(opts.Address)
	if opts.LogHistory <= 0 {
		opts.LogHistory = 200
	}

	logStore := newLogStore(opts.LogHistory)
	log.AddHook(logStore)

	return &Server{
		opts:     opts,
		log:      log,
		logStore: logStore,
	}
}

// RecordSummary stores the outcome of the latest collection.
func (s *Server) RecordSummary(summary *collector.Summary) {
	s.mu.Lock()
	s.summary = summary
	s.mu.Unlock()
}

func (s *Server) lastSummary() *collector.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summary
}

// Run starts the dashboard HTTP server and blocks until the provided context is
// cancelled or the underlying HTTP server exits with an error.
func (s *Server) Run(ctx context.Context) error {
	if s == nil {
		return nil
	}

	defer s.cleanup()

	router, err := s.buildRouter()
	if err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Addr:    s.opts.Address,
		Handler: router,
	}

	s.log.WithComponent("dashboard").WithFields(logger.Fields{
		"address": s.opts.Address,
	}).Info("dashboard listening")

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		if s.opts.Stream != nil {
			s.opts.Stream.Close()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		if err == nil {
			return nil
		}
		return err
	}
}

func (s *Server) cleanup() {
	if s.logStore != nil {
		s.logStore.close()
	}
}

// Address reports the network address the dashboard server listens on.
func (s *Server) Address() string {
	if s == nil {
		return ""
	}
	return s.opts.Address
}

func (s *Server) buildRouter() (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if err := router.SetTrustedProxies(nil); err != nil {
		return nil, err
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if s.opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(s.opts.Metrics))
	}
	if s.opts.Stream != nil {
		router.GET("/diag", gin.WrapH(s.opts.Stream))
	}

	router.GET("/api/events", func(c *gin.Context) {
		if s.opts.Events == nil {
			c.JSON(http.StatusOK, gin.H{"events": []diag.Event{}})
			return
		}
		events := s.opts.Events.Events()
		if stage := c.Query("stage"); stage != "" {
			events = s.opts.Events.Stage(stage)
		}
		if raw := c.Query("fare_market"); raw != "" {
			id, err := strconv.Atoi(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "fare_market must be an integer"})
				return
			}
			events = filterMarket(events, id)
		}
		c.JSON(http.StatusOK, gin.H{"events": events})
	})

	router.GET("/api/logs", func(c *gin.Context) {
		q, err := parseLogQuery(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logsSnapshot := s.logStore.snapshot(q)
		payload := make([]gin.H, 0, len(logsSnapshot))
		for _, l := range logsSnapshot {
			entry := gin.H{
				"timestamp": l.Timestamp.Format(time.RFC3339Nano),
				"level":     l.Level.String(),
				"component": l.Component,
				"trx_id":    l.Trx,
				"message":   l.Message,
				"fields":    l.Fields,
			}
			if l.FareMarket >= 0 {
				entry["fare_market"] = l.FareMarket
			}
			payload = append(payload, entry)
		}
		c.JSON(http.StatusOK, gin.H{"logs": payload})
	})

	router.GET("/api/tallies", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"tallies": logger.Tallies()})
	})

	router.GET("/api/summary", func(c *gin.Context) {
		summary := s.lastSummary()
		if summary == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no collection has finished yet"})
			return
		}
		c.JSON(http.StatusOK, summary)
	})

	return router, nil
}

func parseLogQuery(c *gin.Context) (logQuery, error) {
	q := logQuery{Trx: c.Query("trx_id"), FareMarket: -1, MinLevel: logrus.TraceLevel}
	if raw := c.Query("fare_market"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil || id < 0 {
			return q, errors.New("fare_market must be a non-negative integer")
		}
		q.FareMarket = id
	}
	if raw := c.Query("level"); raw != "" {
		lvl, err := logrus.ParseLevel(raw)
		if err != nil {
			return q, fmt.Errorf("unknown level %q", raw)
		}
		q.MinLevel = lvl
	}
	return q, nil
}

func filterMarket(events []diag.Event, id int) []diag.Event {
	out := make([]diag.Event, 0, len(events))
	for _, ev := range events {
		if ev.FareMarket == id {
			out = append(out, ev)
		}
	}
	return out
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)

	if addr == "" {
		return "0.0.0.0:8080"
	}

	if strings.Contains(addr, "://") {
		if parsed, err := url.Parse(addr); err == nil {
			if host := parsed.Host; host != "" {
				addr = host
			} else if parsed.Opaque != "" {
				addr = parsed.Opaque
			}
		}
	}

	if strings.HasPrefix(addr, ":") {
		if len(addr) > 1 && addr[1] >= '0' && addr[1] <= '9' {
			return "0.0.0.0" + addr
		}
	}

	host, port, err := net.SplitHostPort(addr)
	if err == nil {
		if host == "" || host == "*" {
			host = "0.0.0.0"
		}
		if port == "" {
			port = "8080"
		}
		return net.JoinHostPort(host, port)
	}

	if ip := net.ParseIP(addr); ip != nil {
		return net.JoinHostPort(addr, "8080")
	}

	if !strings.Contains(addr, ":") {
		return net.JoinHostPort(addr, "8080")
	}

	return addr
}
