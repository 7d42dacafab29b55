package process

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	"google.golang.org/grpc"

	"github.com/scusemua/notebook-runtime/common/client"
	"github.com/scusemua/notebook-runtime/common/configuration"
	"github.com/scusemua/notebook-runtime/common/metrics"
	"github.com/scusemua/notebook-runtime/common/proto"
	"github.com/scusemua/notebook-runtime/common/recovery"
	"github.com/scusemua/notebook-runtime/common/types"
	"github.com/scusemua/notebook-runtime/server/internal/event"
)

// Registrar is the part of event.Registrar used to wait for the registration of a launched process.
type Registrar interface {
	Expect(groupId string) (*event.Waiter, error)
}

// ClientFactory creates the connections of the pool of a process once it is registered.
type ClientFactory func(conn *event.Connection) client.ConnFactory[proto.InterpreterServiceClient]

// AttachListener is notified whenever a connection is attached to a process.
type AttachListener func(p *RemoteProcess, conn *event.Connection)

type Option func(p *RemoteProcess)

func WithStartTimeout(timeout time.Duration) Option {
	return func(p *RemoteProcess) {
		p.startTimeout = timeout
	}
}

func WithMaxConnections(maxConnections int) Option {
	return func(p *RemoteProcess) {
		p.maxConnections = maxConnections
	}
}

func WithClientFactory(factory ClientFactory) Option {
	return func(p *RemoteProcess) {
		p.clientFactory = factory
	}
}

func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(p *RemoteProcess) {
		p.dialOptions = append(p.dialOptions, opts...)
	}
}

func WithRecoveryStorage(storage recovery.Storage) Option {
	return func(p *RemoteProcess) {
		p.storage = storage
	}
}

func WithMetrics(manager *metrics.PrometheusManager) Option {
	return func(p *RemoteProcess) {
		p.metrics = manager
	}
}

func WithAttachListener(listener AttachListener) Option {
	return func(p *RemoteProcess) {
		p.attachListeners = append(p.attachListeners, listener)
	}
}

// RemoteProcess is the interpreter process of one interpreter group.
//
// Start launches the process and waits for it to register. A failed start is remembered: its error text is
// returned by ErrorMessage, and every later Start or call fails with it, until the process is shut down and
// replaced. A process whose connection is lost stops running until it registers again.
type RemoteProcess struct {
	log logger.Logger

	groupId     string
	settingName string
	eventAddr   string
	launcher    Launcher
	registrar   Registrar

	startTimeout    time.Duration
	maxConnections  int
	clientFactory   ClientFactory
	dialOptions     []grpc.DialOption
	storage         recovery.Storage
	metrics         *metrics.PrometheusManager
	attachListeners []AttachListener

	// startMu serializes Start.
	startMu sync.Mutex

	mu           sync.Mutex
	running      bool
	shutdown     bool
	errorMessage string
	conn         *event.Connection
	handle       Handle
	pool         *client.PooledRemoteClient[proto.InterpreterServiceClient]
}

func NewRemoteProcess(groupId string, settingName string, launcher Launcher, registrar Registrar, eventAddr string, opts ...Option) *RemoteProcess {
	p := &RemoteProcess{
		groupId:        groupId,
		settingName:    settingName,
		launcher:       launcher,
		registrar:      registrar,
		eventAddr:      eventAddr,
		startTimeout:   time.Duration(configuration.DefaultProcessStartTimeoutSec) * time.Second,
		maxConnections: configuration.DefaultMaxConnections,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.clientFactory == nil {
		p.clientFactory = p.dialClient
	}
	config.InitLogger(&p.log, fmt.Sprintf("RemoteProcess[%s] ", groupId))

	return p
}

func (p *RemoteProcess) GroupId() string {
	return p.groupId
}

func (p *RemoteProcess) SettingName() string {
	return p.settingName
}

func (p *RemoteProcess) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.running
}

// ErrorMessage returns the reason why the process is not running, or the empty string.
func (p *RemoteProcess) ErrorMessage() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.errorMessage
}

// Connection returns the current connection of the process, if any.
func (p *RemoteProcess) Connection() (*event.Connection, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.conn, p.conn != nil
}

func (p *RemoteProcess) notRunningError() error {
	if p.errorMessage != "" {
		return fmt.Errorf("%w: %s", types.ErrProcessNotRunning, p.errorMessage)
	}
	return fmt.Errorf("%w: group %s", types.ErrProcessNotRunning, p.groupId)
}

// Start launches the process, unless it is already running, and waits until it registers.
func (p *RemoteProcess) Start(ctx context.Context) error {
	p.startMu.Lock()
	defer p.startMu.Unlock()

	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	if p.shutdown || p.errorMessage != "" {
		err := p.notRunningError()
		p.mu.Unlock()
		return err
	}
	p.mu.Unlock()

	err := p.launchAndWait(ctx)
	if p.metrics != nil {
		p.metrics.RecordProcessStart(p.settingName, err)
	}

	if err != nil {
		p.log.Error("Failed to start interpreter process: %v", err)

		p.mu.Lock()
		p.errorMessage = err.Error()
		p.mu.Unlock()
		return fmt.Errorf("%w: %s", types.ErrProcessNotRunning, err.Error())
	}

	return nil
}

func (p *RemoteProcess) launchAndWait(ctx context.Context) error {
	waiter, err := p.registrar.Expect(p.groupId)
	if err != nil {
		return err
	}

	handle, err := p.launcher.Launch(ctx, p.groupId, p.eventAddr)
	if err != nil {
		waiter.Cancel()
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, p.startTimeout)
	defer cancel()

	if handle != nil {
		go func() {
			select {
			case <-handle.Exited():
				cancel()
			case <-waitCtx.Done():
			}
		}()
	}

	conn, err := waiter.Wait(waitCtx)
	if err != nil {
		switch {
		case handle != nil && isClosed(handle.Exited()):
			err = fmt.Errorf("interpreter process exited before registering: %v", handle.ExitError())
		case errors.Is(err, context.DeadlineExceeded):
			err = fmt.Errorf("interpreter process did not register within %v", p.startTimeout)
		}

		if handle != nil {
			_ = handle.Kill()
		}
		return err
	}

	p.mu.Lock()
	p.handle = handle
	p.mu.Unlock()

	p.Attach(conn)
	return nil
}

// Attach makes conn the connection of the process and marks the process as running. Any previous
// connection is released.
func (p *RemoteProcess) Attach(conn *event.Connection) {
	pool := client.NewPooledRemoteClient[proto.InterpreterServiceClient](
		p.groupId, p.maxConnections, p.clientFactory(conn), client.WithCloser[proto.InterpreterServiceClient](closeClient))

	p.mu.Lock()
	oldPool := p.pool
	wasRunning := p.running
	p.conn = conn
	p.pool = pool
	p.running = true
	p.errorMessage = ""
	listeners := p.attachListeners
	p.mu.Unlock()

	if oldPool != nil {
		p.unregisterPool()
		oldPool.Close()
	}
	if p.metrics != nil {
		p.metrics.RegisterPool(p.groupId, pool.Stats)
		if !wasRunning {
			p.metrics.NumRunningProcessesGauge.Inc()
		}
	}

	p.log.Debug("Attached %v.", conn)

	if p.storage != nil {
		reg := recovery.Registration{
			GroupId:      p.groupId,
			SettingName:  p.settingName,
			Host:         conn.Host(),
			Pid:          conn.Pid(),
			RegisteredAt: conn.RegisteredAt(),
		}
		if err := p.storage.Save(context.Background(), reg); err != nil {
			p.log.Warn("Failed to persist registration of group %s: %v", p.groupId, err)
		}
	}

	for _, listener := range listeners {
		listener(p, conn)
	}
}

// Detach marks the process as not running if conn is its current connection. It returns false otherwise.
func (p *RemoteProcess) Detach(conn *event.Connection) bool {
	p.mu.Lock()
	if p.conn != conn {
		p.mu.Unlock()
		return false
	}

	pool := p.pool
	p.pool = nil
	p.conn = nil
	wasRunning := p.running
	p.running = false
	if !p.shutdown {
		p.errorMessage = fmt.Sprintf("interpreter process of group %s disconnected", p.groupId)
	}
	p.mu.Unlock()

	if pool != nil {
		p.unregisterPool()
		pool.Close()
	}
	if wasRunning && p.metrics != nil {
		p.metrics.NumRunningProcessesGauge.Dec()
	}

	p.log.Warn("Detached %v.", conn)
	return true
}

// CallRemoteFunction runs f with a pooled client of the process. It fails with types.ErrProcessNotRunning
// without running f if the process is not running.
func (p *RemoteProcess) CallRemoteFunction(ctx context.Context, f func(ctx context.Context, c proto.InterpreterServiceClient) error) error {
	p.mu.Lock()
	if !p.running || p.pool == nil {
		err := p.notRunningError()
		p.mu.Unlock()
		return err
	}
	pool := p.pool
	p.mu.Unlock()

	return pool.CallRemoteFunction(ctx, f)
}

// Shutdown asks the process to exit and releases its connection. A child process that has not exited
// within timeout is killed. The process cannot be started again.
func (p *RemoteProcess) Shutdown(timeout time.Duration) error {
	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return nil
	}
	p.shutdown = true
	p.errorMessage = fmt.Sprintf("interpreter process of group %s was shut down", p.groupId)
	conn := p.conn
	handle := p.handle
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if conn != nil {
		err := p.CallRemoteFunction(ctx, func(ctx context.Context, c proto.InterpreterServiceClient) error {
			_, err := c.Shutdown(ctx, &proto.ShutdownRequest{Reason: "interpreter group closed"})
			return err
		})
		if err != nil {
			p.log.Warn("Shutdown request failed: %v", err)
		}

		p.Detach(conn)
		_ = conn.Close()
	}

	if p.storage != nil {
		if err := p.storage.Remove(ctx, p.groupId); err != nil {
			p.log.Warn("Failed to remove registration of group %s: %v", p.groupId, err)
		}
	}

	if handle == nil {
		return nil
	}

	select {
	case <-handle.Exited():
		return nil
	case <-ctx.Done():
	}

	p.log.Warn("Interpreter process %d did not exit within %v. Killing it.", handle.Pid(), timeout)
	return handle.Kill()
}

// Release drops the connection without asking the process to exit, so that the process can register
// again with a future server. The process cannot be started again.
func (p *RemoteProcess) Release() {
	p.mu.Lock()
	p.shutdown = true
	p.errorMessage = fmt.Sprintf("interpreter process of group %s was released", p.groupId)
	conn := p.conn
	p.mu.Unlock()

	if conn != nil {
		p.Detach(conn)
	}
}

func (p *RemoteProcess) unregisterPool() {
	if p.metrics != nil {
		p.metrics.UnregisterPool(p.groupId)
	}
}

// ResourcePoolGetAll is part of the event.ResourceOwner implementation.
func (p *RemoteProcess) ResourcePoolGetAll(ctx context.Context) (*proto.ResourceSetReply, error) {
	var reply *proto.ResourceSetReply
	err := p.CallRemoteFunction(ctx, func(ctx context.Context, c proto.InterpreterServiceClient) (err error) {
		reply, err = c.ResourcePoolGetAll(ctx, &proto.ResourcePoolRequest{GroupId: p.groupId})
		return err
	})
	return reply, err
}

// ResourceGet is part of the event.ResourceOwner implementation.
func (p *RemoteProcess) ResourceGet(ctx context.Context, in *proto.ResourceRequest) (*proto.ResourceReply, error) {
	var reply *proto.ResourceReply
	err := p.CallRemoteFunction(ctx, func(ctx context.Context, c proto.InterpreterServiceClient) (err error) {
		reply, err = c.ResourceGet(ctx, in)
		return err
	})
	return reply, err
}

// ResourceInvokeMethod is part of the event.ResourceOwner implementation.
func (p *RemoteProcess) ResourceInvokeMethod(ctx context.Context, in *proto.InvokeMethodRequest) (*proto.InvokeMethodReply, error) {
	var reply *proto.InvokeMethodReply
	err := p.CallRemoteFunction(ctx, func(ctx context.Context, c proto.InterpreterServiceClient) (err error) {
		reply, err = c.ResourceInvokeMethod(ctx, in)
		return err
	})
	return reply, err
}

func (p *RemoteProcess) dialClient(conn *event.Connection) client.ConnFactory[proto.InterpreterServiceClient] {
	return func(_ context.Context) (proto.InterpreterServiceClient, error) {
		cc, err := conn.Dial(p.dialOptions...)
		if err != nil {
			return nil, err
		}
		return &pooledClient{InterpreterServiceClient: proto.NewInterpreterServiceClient(cc), cc: cc}, nil
	}
}

func (p *RemoteProcess) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return fmt.Sprintf("RemoteProcess[group=%s, setting=%s, launcher=%s, running=%v]",
		p.groupId, p.settingName, p.launcher.Kind(), p.running)
}

// pooledClient ties a client to the gRPC connection it was created from. The connection is closed with
// closeConn, since Close is the RPC that closes an interpreter.
type pooledClient struct {
	proto.InterpreterServiceClient
	cc *grpc.ClientConn
}

func (c *pooledClient) closeConn() error {
	return c.cc.Close()
}

func closeClient(c proto.InterpreterServiceClient) error {
	if pc, ok := c.(*pooledClient); ok {
		return pc.closeConn()
	}
	return nil
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
