package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	"github.com/opentracing/opentracing-go"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"

	"github.com/scusemua/notebook-runtime/common/client"
	"github.com/scusemua/notebook-runtime/common/configuration"
	"github.com/scusemua/notebook-runtime/common/interpreter"
	"github.com/scusemua/notebook-runtime/common/metrics"
	"github.com/scusemua/notebook-runtime/common/proto"
	"github.com/scusemua/notebook-runtime/worker/domain"
)

const (
	unregisterTimeout = 5 * time.Second
	stopTimeout       = time.Second
)

var (
	ErrWorkerClosed = errors.New("worker is closed")
	ErrDisconnected = errors.New("lost the connection to the notebook server")
)

// Resolver looks up the address of a named service.
type Resolver interface {
	Resolve(name string) (string, error)
}

// Worker connects a Daemon to the notebook server and keeps it connected.
//
// Each connection dials the event server, serves the Daemon over the resulting session, and registers the
// process under its group. When the connection is lost, the worker reconnects at most once per reconnect
// interval. The state of the Daemon survives reconnections.
type Worker struct {
	log logger.Logger

	opts     *domain.WorkerOptions
	daemon   *Daemon
	upstream *Upstream
	tracer   opentracing.Tracer
	resolver Resolver
	metrics  *metrics.PrometheusManager
	limiter  *rate.Limiter

	mu       sync.Mutex
	uplink   *Uplink
	server   *grpc.Server
	pool     *client.PooledRemoteClient[proto.EventServiceClient]
	poolName string
	token    string

	// stopping is closed when Close starts; closed when Close has torn everything down.
	stopping  chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

// NewWorker creates a Worker serving the interpreters of factories. tracer, resolver and metricsManager
// may be nil.
func NewWorker(opts *domain.WorkerOptions, factories *interpreter.FactoryRegistry, tracer opentracing.Tracer,
	resolver Resolver, metricsManager *metrics.PrometheusManager) *Worker {
	upstream := NewUpstream(opts.GroupId, metricsManager)

	w := &Worker{
		opts:     opts,
		daemon:   NewDaemon(opts.GroupId, &opts.CommonOptions, factories, upstream, metricsManager),
		upstream: upstream,
		tracer:   tracer,
		resolver: resolver,
		metrics:  metricsManager,
		stopping: make(chan struct{}),
		closed:   make(chan struct{}),
	}
	if opts.ReconnectIntervalSec > 0 {
		w.limiter = rate.NewLimiter(rate.Every(time.Duration(opts.ReconnectIntervalSec)*time.Second), domain.DefaultReconnectBurst)
	}
	w.daemon.OnShutdown(func(reason string) {
		w.log.Info("Shutting down: %s", reason)
		_ = w.Close()
	})
	config.InitLogger(&w.log, w)

	return w
}

func (w *Worker) Daemon() *Daemon {
	return w.daemon
}

// Token returns the registration token of the current connection, or "" if the worker is not connected.
func (w *Worker) Token() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.token
}

// Done returns a channel that is closed when the worker is closed.
func (w *Worker) Done() <-chan struct{} {
	return w.closed
}

func (w *Worker) isStopping() bool {
	select {
	case <-w.stopping:
		return true
	default:
		return false
	}
}

// Run connects to the notebook server and serves it until ctx is done or the worker is closed. Run
// returns nil when the worker is closed, and an error if the connection is lost and reconnection is
// disabled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		if w.limiter != nil {
			if err := w.limiter.Wait(ctx); err != nil {
				_ = w.Close()
				return err
			}
		}
		if w.isStopping() {
			<-w.closed
			return nil
		}

		uplink, err := w.connect(ctx)
		if err == nil {
			select {
			case <-uplink.Done():
				if w.isStopping() {
					<-w.closed
					return nil
				}
				w.log.Warn("Lost the connection to the notebook server at %s.", uplink.addr)
				w.disconnect()
				err = ErrDisconnected
			case <-ctx.Done():
				_ = w.Close()
				return ctx.Err()
			case <-w.stopping:
				<-w.closed
				return nil
			}
		} else {
			w.log.Error("Failed to connect to the notebook server: %v", err)
		}

		if w.isStopping() {
			<-w.closed
			return nil
		}
		if w.limiter == nil {
			return err
		}
	}
}

func (w *Worker) eventAddr() (string, error) {
	if w.opts.EventAddr != "" {
		return w.opts.EventAddr, nil
	}
	if w.resolver == nil {
		return "", domain.ErrNoEventEndpoint
	}
	return w.resolver.Resolve(w.opts.EventServiceName)
}

func (w *Worker) connect(ctx context.Context) (*Uplink, error) {
	addr, err := w.eventAddr()
	if err != nil {
		return nil, err
	}

	uplink, err := DialUplink(ctx, addr)
	if err != nil {
		return nil, err
	}

	server := grpc.NewServer(GetGrpcOptions(w.tracer, func(p any) {
		w.log.Error("Recovered from panic in InterpreterService handler: %v", p)
	})...)
	proto.RegisterInterpreterServiceServer(server, w.daemon)
	go func() {
		if err := server.Serve(uplink.Listener()); err != nil && !uplink.IsClosed() {
			w.log.Warn("InterpreterService stopped serving: %v", err)
		}
	}()

	var interceptor grpc.UnaryClientInterceptor
	if w.metrics != nil {
		interceptor = w.metrics.UnaryClientInterceptor()
	}
	poolName := fmt.Sprintf("event-%s", w.opts.GroupId)
	pool := client.NewPooledRemoteClient[proto.EventServiceClient](poolName, w.opts.MaxConnections,
		uplink.ClientFactory(GetDialOptions(w.tracer, interceptor)...), client.WithCloser[proto.EventServiceClient](closeEventClient))

	reply, err := w.register(ctx, pool)
	if err != nil {
		server.Stop()
		pool.Close()
		_ = uplink.Close()
		return nil, err
	}

	mode, err := configuration.ParseExecutionMode(reply.ExecutionMode)
	if err != nil {
		w.log.Warn("Server assigned an unknown execution mode, using %s: %v", w.opts.GetExecutionMode(), err)
		mode = w.opts.GetExecutionMode()
	}

	w.mu.Lock()
	if w.isStopping() {
		w.mu.Unlock()
		server.Stop()
		pool.Close()
		_ = uplink.Close()
		return nil, ErrWorkerClosed
	}
	w.uplink, w.server, w.pool, w.poolName, w.token = uplink, server, pool, poolName, reply.Token
	w.mu.Unlock()

	w.upstream.Attach(pool, reply.Token)
	w.daemon.Attach(reply.Token, mode)
	if w.metrics != nil {
		w.metrics.RegisterPool(poolName, pool.Stats)
	}

	w.log.Info("Registered group %s with the notebook server at %s.", w.opts.GroupId, addr)
	return uplink, nil
}

func (w *Worker) register(ctx context.Context, pool *client.PooledRemoteClient[proto.EventServiceClient]) (*proto.RegisterReply, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(w.opts.RegisterTimeoutSec)*time.Second)
	defer cancel()

	info := &proto.RegisterInfo{GroupId: w.opts.GroupId, Host: w.opts.Host, Pid: int32(os.Getpid())}

	var reply *proto.RegisterReply
	err := pool.CallRemoteFunction(ctx, func(ctx context.Context, c proto.EventServiceClient) (err error) {
		reply, err = c.RegisterInterpreterProcess(ctx, info)
		return err
	})
	return reply, err
}

// disconnect tears the current connection down without touching the state of the daemon.
func (w *Worker) disconnect() {
	w.mu.Lock()
	uplink, server, pool, poolName := w.uplink, w.server, w.pool, w.poolName
	w.uplink, w.server, w.pool, w.poolName, w.token = nil, nil, nil, "", ""
	w.mu.Unlock()

	w.daemon.Detach()
	w.upstream.Detach()

	if w.metrics != nil && poolName != "" {
		w.metrics.UnregisterPool(poolName)
	}
	if server != nil {
		stopServer(server)
	}
	if pool != nil {
		pool.Close()
	}
	if uplink != nil {
		_ = uplink.Close()
	}
}

// stopServer lets pending replies go out before the streams are torn down.
func stopServer(server *grpc.Server) {
	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(stopTimeout):
		server.Stop()
	}
}

func (w *Worker) unregister() {
	w.mu.Lock()
	pool, token := w.pool, w.token
	w.mu.Unlock()

	if pool == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), unregisterTimeout)
	defer cancel()

	err := pool.CallRemoteFunction(ctx, func(ctx context.Context, c proto.EventServiceClient) error {
		_, err := c.UnregisterInterpreterProcess(ctx, &proto.UnregisterRequest{GroupId: w.opts.GroupId, Token: token})
		return err
	})
	if err != nil {
		w.log.Warn("Failed to unregister from the notebook server: %v", err)
	}
}

// Close unregisters the process, closes every hosted interpreter and then the connection. Done is
// closed, and Run returns, only after all of this has happened.
func (w *Worker) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.mu.Lock()
		close(w.stopping)
		w.mu.Unlock()

		w.unregister()
		err = w.daemon.Destroy()
		w.disconnect()

		close(w.closed)
	})
	return err
}

func (w *Worker) String() string {
	return fmt.Sprintf("Worker[%s]", w.opts.GroupId)
}
