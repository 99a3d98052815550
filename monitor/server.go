package monitor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	iface "EdgeLPR/interface"
	"EdgeLPR/pipeline"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const sampleInterval = 500 * time.Millisecond

// ReportMessage is the JSON view of a report served on /api/status and
// /ws/reports.
type ReportMessage struct {
	Found      bool      `json:"found"`
	Plate      string    `json:"plate,omitempty"`
	Score      float32   `json:"score"`
	MaxScore   float32   `json:"maxScore"`
	Reason     string    `json:"reason,omitempty"`
	Hz         float64   `json:"hz"`
	DurationMs float64   `json:"durationMs"`
	At         time.Time `json:"at"`
	Line       string    `json:"line"`
}

func NewReportMessage(r iface.Report) ReportMessage {
	return ReportMessage{
		Found:      r.Found,
		Plate:      r.Plate.String(),
		Score:      r.Score,
		MaxScore:   r.MaxScore,
		Reason:     r.Reason,
		Hz:         r.Hz(),
		DurationMs: float64(r.Duration) / float64(time.Millisecond),
		At:         r.At,
		Line:       pipeline.FormatReport(r),
	}
}

type status struct {
	frames    uint64
	plates    uint64
	failures  map[string]uint64
	last      *ReportMessage
	lastPlate *ReportMessage
}

// Monitor is a pipeline Observer that feeds metrics, the status endpoint and
// the websocket stream.
type Monitor struct {
	metrics *Metrics
	hub     *Hub
	engines map[string]iface.EngineConfig
	started time.Time
	logger  *zap.Logger

	mu     sync.RWMutex
	status status
}

func New(logger *zap.Logger, engines map[string]iface.EngineConfig) *Monitor {
	logger = logger.Named("monitor")
	return &Monitor{
		metrics: NewMetrics(),
		hub:     NewHub(logger),
		engines: engines,
		started: time.Now(),
		logger:  logger,
		status:  status{failures: map[string]uint64{}},
	}
}

func (m *Monitor) Metrics() *Metrics { return m.metrics }
func (m *Monitor) Hub() *Hub         { return m.hub }

func (m *Monitor) Observe(r iface.Report) {
	m.metrics.Observe(r)
	msg := NewReportMessage(r)

	m.mu.Lock()
	m.status.frames++
	m.status.last = &msg
	if r.Found {
		m.status.plates++
		m.status.lastPlate = &msg
	}
	if r.Failed() {
		m.status.failures[r.Reason]++
	}
	m.mu.Unlock()

	m.hub.Broadcast(msg)
}

func (m *Monitor) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(m.logger))
	r.GET("/api/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/api/status", func(c *gin.Context) {
		m.mu.RLock()
		failures := make(map[string]uint64, len(m.status.failures))
		for k, v := range m.status.failures {
			failures[k] = v
		}
		data := gin.H{
			"uptimeSeconds": time.Since(m.started).Seconds(),
			"frames":        m.status.frames,
			"plates":        m.status.plates,
			"failures":      failures,
			"last":          m.status.last,
			"lastPlate":     m.status.lastPlate,
			"engines":       m.engines,
			"subscribers":   m.hub.Len(),
		}
		m.mu.RUnlock()
		c.JSON(http.StatusOK, gin.H{"data": data})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.metrics.Registry(), promhttp.HandlerOpts{Registry: m.metrics.Registry()})))
	r.GET("/ws/reports", gin.WrapH(m.hub))
	return r
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

// StartMon serves the router on port and samples process usage until ctx is
// done. It returns early only if the listener fails.
func (m *Monitor) StartMon(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: m.Router(),
	}
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	m.logger.Info("monitor listening", zap.Int("port", port))

	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.hub.Close()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				m.logger.Warn("monitor shutdown", zap.Error(err))
			}
			return nil
		case err, ok := <-serveErr:
			if ok && err != nil {
				m.hub.Close()
				return fmt.Errorf("monitor listen on :%d: %w", port, err)
			}
			serveErr = nil
		case <-ticker.C:
			m.metrics.CheckProcessInfo()
		}
	}
}
