package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	"golang.org/x/sync/semaphore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/scusemua/notebook-runtime/common/configuration"
	"github.com/scusemua/notebook-runtime/common/types"
)

var ErrPoolClosed = errors.New("connection pool is closed")

// ConnFactory creates a new connection.
type ConnFactory[C any] func(ctx context.Context) (C, error)

// ConnCloser releases a connection that leaves the pool.
type ConnCloser[C any] func(conn C) error

// IsTransportError reports whether err is a connection-level failure: gRPC Unavailable or DeadlineExceeded.
func IsTransportError(err error) bool {
	if err == nil {
		return false
	}

	st, ok := status.FromError(err)
	if !ok {
		return false
	}

	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded:
		return true
	default:
		return false
	}
}

// Stats is a snapshot of the counters of a PooledRemoteClient.
type Stats struct {
	Calls             uint64 `json:"calls"`
	TransportFailures uint64 `json:"transport_failures"`
	Created           uint64 `json:"created"`
	Discarded         uint64 `json:"discarded"`
	Idle              int    `json:"idle"`
	MaxConnections    int    `json:"max_connections"`
}

type PoolOption[C any] func(p *PooledRemoteClient[C])

// WithTransportClassifier replaces IsTransportError as the function that decides whether a failed call
// must discard its connection.
func WithTransportClassifier[C any](isTransportError func(error) bool) PoolOption[C] {
	return func(p *PooledRemoteClient[C]) {
		p.isTransportError = isTransportError
	}
}

func WithCloser[C any](closer ConnCloser[C]) PoolOption[C] {
	return func(p *PooledRemoteClient[C]) {
		p.closer = closer
	}
}

// PooledRemoteClient is a bounded pool of connections to one remote process.
//
// Connections are created lazily, up to maxConnections. A caller that finds every connection borrowed
// blocks until one is returned or its context is done. A connection whose call failed at the transport
// level is discarded rather than returned, and the failure is reported to the caller wrapped in
// types.ErrTransportFailure. The pool never retries a call.
type PooledRemoteClient[C any] struct {
	log logger.Logger

	name             string
	maxConnections   int
	factory          ConnFactory[C]
	closer           ConnCloser[C]
	isTransportError func(error) bool

	sem *semaphore.Weighted

	mu     sync.Mutex
	idle   []C
	closed bool

	calls             atomic.Uint64
	transportFailures atomic.Uint64
	created           atomic.Uint64
	discarded         atomic.Uint64
}

func NewPooledRemoteClient[C any](name string, maxConnections int, factory ConnFactory[C], opts ...PoolOption[C]) *PooledRemoteClient[C] {
	if maxConnections <= 0 {
		maxConnections = configuration.DefaultMaxConnections
	}

	p := &PooledRemoteClient[C]{
		name:             name,
		maxConnections:   maxConnections,
		factory:          factory,
		isTransportError: IsTransportError,
		sem:              semaphore.NewWeighted(int64(maxConnections)),
		idle:             make([]C, 0, maxConnections),
	}
	for _, opt := range opts {
		opt(p)
	}
	config.InitLogger(&p.log, fmt.Sprintf("PooledRemoteClient[%s] ", name))

	return p
}

// CallRemoteFunction borrows a connection, runs f with it, and returns the connection to the pool.
// f must not keep the connection after it returns.
func (p *PooledRemoteClient[C]) CallRemoteFunction(ctx context.Context, f func(ctx context.Context, conn C) error) error {
	conn, err := p.borrow(ctx)
	if err != nil {
		return err
	}

	p.calls.Add(1)
	err = f(ctx, conn)
	if err != nil && p.isTransportError(err) {
		p.transportFailures.Add(1)
		p.discard(conn)
		p.log.Warn("Discarded connection after transport failure: %v", err)
		return fmt.Errorf("%w: %w", types.ErrTransportFailure, err)
	}

	p.release(conn)
	return err
}

func (p *PooledRemoteClient[C]) borrow(ctx context.Context) (C, error) {
	var zero C

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return zero, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.sem.Release(1)
		return zero, ErrPoolClosed
	}
	if n := len(p.idle); n > 0 {
		conn := p.idle[n-1]
		p.idle[n-1] = zero
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return conn, nil
	}
	p.mu.Unlock()

	conn, err := p.factory(ctx)
	if err != nil {
		p.sem.Release(1)
		return zero, fmt.Errorf("%w: failed to connect to %s: %w", types.ErrTransportFailure, p.name, err)
	}
	p.created.Add(1)
	return conn, nil
}

func (p *PooledRemoteClient[C]) release(conn C) {
	defer p.sem.Release(1)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.closeConn(conn)
		return
	}
	p.idle = append(p.idle, conn)
	p.mu.Unlock()
}

func (p *PooledRemoteClient[C]) discard(conn C) {
	defer p.sem.Release(1)

	p.discarded.Add(1)
	p.closeConn(conn)
}

func (p *PooledRemoteClient[C]) closeConn(conn C) {
	if p.closer == nil {
		return
	}
	if err := p.closer(conn); err != nil {
		p.log.Debug("Error while closing connection: %v", err)
	}
}

// Close closes every idle connection. Borrowed connections are closed when they are returned.
func (p *PooledRemoteClient[C]) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	for _, conn := range idle {
		p.closeConn(conn)
	}
}

func (p *PooledRemoteClient[C]) Name() string {
	return p.name
}

func (p *PooledRemoteClient[C]) Stats() Stats {
	p.mu.Lock()
	idle := len(p.idle)
	p.mu.Unlock()

	return Stats{
		Calls:             p.calls.Load(),
		TransportFailures: p.transportFailures.Load(),
		Created:           p.created.Load(),
		Discarded:         p.discarded.Load(),
		Idle:              idle,
		MaxConnections:    p.maxConnections,
	}
}
