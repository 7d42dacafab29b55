package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	"github.com/gin-gonic/contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/scusemua/notebook-runtime/common/client"
	"github.com/scusemua/notebook-runtime/common/scheduler"
)

const (
	NotebookServer    NodeType = "notebook_server"
	InterpreterWorker NodeType = "interpreter_worker"

	namespace = "notebook_runtime"
)

var (
	ErrPrometheusManagerAlreadyRunning = errors.New("PrometheusManager is already running")
	ErrPrometheusManagerNotRunning     = errors.New("PrometheusManager is not running")
)

// NodeType indicates whether metrics are reported by the notebook server or by an interpreter worker.
type NodeType string

func (t NodeType) String() string {
	return string(t)
}

// PrometheusManager owns the metrics of one process and serves them over HTTP.
type PrometheusManager struct {
	log logger.Logger

	nodeId   string
	nodeType NodeType

	registry          *prometheus.Registry
	prometheusHandler http.Handler
	engine            *gin.Engine
	httpServer        *http.Server
	pools             *poolCollector

	// JobStatusCounterVec counts the terminal states reached by jobs, per scheduler kind and status.
	JobStatusCounterVec *prometheus.CounterVec

	// JobDurationMillisecondsVec observes the time between a job being dispatched and reaching a terminal state.
	JobDurationMillisecondsVec *prometheus.HistogramVec

	// RpcLatencyMicrosecondsVec observes the latency of outgoing RPCs, per method and status code.
	RpcLatencyMicrosecondsVec *prometheus.HistogramVec

	// ProcessStartsCounterVec counts interpreter process launches, per setting and outcome.
	ProcessStartsCounterVec *prometheus.CounterVec

	// NumRunningProcessesGauge is the number of interpreter processes currently registered.
	NumRunningProcessesGauge prometheus.Gauge

	// AngularEventsCounterVec counts angular object notifications, per direction and kind.
	AngularEventsCounterVec *prometheus.CounterVec

	port    int
	mu      sync.Mutex
	serving bool
}

// NewPrometheusManager creates a PrometheusManager with its own registry. If port is positive, Start serves
// the metrics on that port.
func NewPrometheusManager(port int, nodeId string, nodeType NodeType) *PrometheusManager {
	registry := prometheus.NewRegistry()

	m := &PrometheusManager{
		nodeId:            nodeId,
		nodeType:          nodeType,
		port:              port,
		registry:          registry,
		prometheusHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		pools:             newPoolCollector(),
	}
	config.InitLogger(&m.log, m)

	m.initializeMetrics()
	return m
}

func (m *PrometheusManager) NodeId() string {
	return m.nodeId
}

// Registry returns the registry into which every metric of the manager is registered.
func (m *PrometheusManager) Registry() *prometheus.Registry {
	return m.registry
}

// IsRunning returns true if the manager is serving metrics.
func (m *PrometheusManager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.serving
}

// Start begins serving the metrics via an HTTP endpoint.
func (m *PrometheusManager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.serving {
		m.log.Warn("PrometheusManager for %s %s is already running.", m.nodeType, m.nodeId)
		return ErrPrometheusManagerAlreadyRunning
	}

	m.serving = true
	m.initializeHttpServer()
	return nil
}

// Stop shuts down the HTTP server.
func (m *PrometheusManager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.serving {
		return ErrPrometheusManagerNotRunning
	}

	m.serving = false
	if m.httpServer == nil {
		return nil
	}

	if err := m.httpServer.Shutdown(context.Background()); err != nil {
		m.log.Error("Failed to cleanly shutdown the HTTP server: %v", err)
		return err
	}
	return nil
}

// HandleRequest handles Prometheus HTTP requests (when Prometheus is scraping for metrics).
func (m *PrometheusManager) HandleRequest(c *gin.Context) {
	m.prometheusHandler.ServeHTTP(c.Writer, c.Request)
}

func (m *PrometheusManager) initializeHttpServer() {
	if m.port <= 0 {
		m.log.Debug("Prometheus Port is set to %d. Not serving HTTP server.", m.port)
		return
	}

	m.engine = gin.New()
	m.engine.Use(gin.Recovery())
	m.engine.Use(cors.Default())
	m.engine.GET("/metrics", m.HandleRequest)

	address := fmt.Sprintf("0.0.0.0:%d", m.port)
	m.httpServer = &http.Server{
		Addr:    address,
		Handler: m.engine,
	}

	go func() {
		m.log.Debug("Serving Prometheus metrics at %s", address)
		if err := m.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log.Error("HTTP Server failed to listen on '%s'. Error: %v", address, err)
		}
	}()
}

func (m *PrometheusManager) initializeMetrics() {
	constLabels := prometheus.Labels{"node_id": m.nodeId, "node_type": m.nodeType.String()}

	m.JobStatusCounterVec = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Name:        "jobs_total",
		Help:        "Number of jobs that reached a terminal state.",
		ConstLabels: constLabels,
	}, []string{"scheduler", "status"})

	m.JobDurationMillisecondsVec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   namespace,
		Name:        "job_duration_milliseconds",
		Help:        "Time between a job being dispatched and reaching a terminal state.",
		ConstLabels: constLabels,
		Buckets:     []float64{1, 5, 10, 50, 100, 500, 1e3, 5e3, 10e3, 60e3, 300e3},
	}, []string{"scheduler"})

	m.RpcLatencyMicrosecondsVec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   namespace,
		Name:        "rpc_latency_microseconds",
		Help:        "Latency of outgoing RPCs in microseconds.",
		ConstLabels: constLabels,
		Buckets:     []float64{100, 500, 1000, 5000, 10e3, 50e3, 100e3, 500e3, 1e6, 5e6, 30e6},
	}, []string{"method", "code"})

	m.ProcessStartsCounterVec = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Name:        "process_starts_total",
		Help:        "Number of interpreter process launches.",
		ConstLabels: constLabels,
	}, []string{"setting", "outcome"})

	m.NumRunningProcessesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "running_processes",
		Help:        "Number of registered interpreter processes.",
		ConstLabels: constLabels,
	})

	m.AngularEventsCounterVec = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Name:        "angular_events_total",
		Help:        "Number of angular object notifications.",
		ConstLabels: constLabels,
	}, []string{"direction", "kind"})

	m.registry.MustRegister(
		m.JobStatusCounterVec,
		m.JobDurationMillisecondsVec,
		m.RpcLatencyMicrosecondsVec,
		m.ProcessStartsCounterVec,
		m.NumRunningProcessesGauge,
		m.AngularEventsCounterVec,
		m.pools,
		prometheus.NewGoCollector(),
	)
}

// JobListener returns a listener that records the outcome and duration of the jobs it is attached to.
func (m *PrometheusManager) JobListener(schedulerKind string) scheduler.JobListener {
	return scheduler.StatusListenerFunc(func(job *scheduler.Job, _ scheduler.Status, after scheduler.Status) {
		if !after.IsTerminal() {
			return
		}

		m.JobStatusCounterVec.With(prometheus.Labels{"scheduler": schedulerKind, "status": after.String()}).Inc()
		if started := job.DateStarted(); !started.IsZero() {
			m.JobDurationMillisecondsVec.
				With(prometheus.Labels{"scheduler": schedulerKind}).
				Observe(float64(time.Since(started).Milliseconds()))
		}
	})
}

// UnaryClientInterceptor observes the latency of every outgoing unary RPC.
func (m *PrometheusManager) UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)

		m.RpcLatencyMicrosecondsVec.
			With(prometheus.Labels{"method": method, "code": status.Code(err).String()}).
			Observe(float64(time.Since(start).Microseconds()))
		return err
	}
}

// RecordProcessStart counts a process launch of the given setting.
func (m *PrometheusManager) RecordProcessStart(setting string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.ProcessStartsCounterVec.With(prometheus.Labels{"setting": setting, "outcome": outcome}).Inc()
}

// RecordAngularEvent counts an angular notification. direction is "sent" or "received".
func (m *PrometheusManager) RecordAngularEvent(direction string, kind string) {
	m.AngularEventsCounterVec.With(prometheus.Labels{"direction": direction, "kind": kind}).Inc()
}

// RegisterPool exports the counters of a connection pool until UnregisterPool is called with the same name.
func (m *PrometheusManager) RegisterPool(name string, stats func() client.Stats) {
	m.pools.add(name, stats)
}

func (m *PrometheusManager) UnregisterPool(name string) {
	m.pools.remove(name)
}
