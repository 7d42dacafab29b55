package event

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	"github.com/google/uuid"
	"github.com/hashicorp/yamux"
	cmap "github.com/orcaman/concurrent-map/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/scusemua/notebook-runtime/common/proto"
)

var (
	ErrRegistrarClosed  = errors.New("registrar is closed")
	ErrAlreadyExpecting = errors.New("a registration is already expected for this group")
	ErrUnknownSession   = status.Error(codes.FailedPrecondition, "registration did not arrive over a known session")
	ErrUnexpectedGroup  = status.Error(codes.NotFound, "no interpreter group accepts the registration")
)

// Registrar accepts the connections of interpreter processes.
//
// A process dials the registrar and wraps the TCP connection in a yamux session. The registrar is the
// client end of the session: streams opened by the process are handed to the gRPC server serving
// proto.EventService through Accept, and streams opened by the registrar carry calls to the
// proto.InterpreterService of the process. The Registrar implements net.Listener for that reason.
type Registrar struct {
	log logger.Logger

	listener    net.Listener
	yamuxConfig *yamux.Config
	streams     chan net.Conn
	closed      chan struct{}
	closeOnce   sync.Once

	// sessions are keyed by the remote address of the underlying TCP connection, which is also the
	// peer address of every gRPC call made over the session.
	sessions    cmap.ConcurrentMap[string, *yamux.Session]
	connections cmap.ConcurrentMap[string, *Connection]

	waitersMu sync.Mutex
	waiters   map[string]*Waiter

	routerMu sync.RWMutex
	router   Router
}

func NewRegistrar() *Registrar {
	r := &Registrar{
		yamuxConfig: yamux.DefaultConfig(),
		streams:     make(chan net.Conn),
		closed:      make(chan struct{}),
		sessions:    cmap.New[*yamux.Session](),
		connections: cmap.New[*Connection](),
		waiters:     make(map[string]*Waiter),
	}
	config.InitLogger(&r.log, r)

	return r
}

// SetRouter installs the Router consulted for unexpected registrations and lost connections.
func (r *Registrar) SetRouter(router Router) {
	r.routerMu.Lock()
	defer r.routerMu.Unlock()

	r.router = router
}

func (r *Registrar) getRouter() Router {
	r.routerMu.RLock()
	defer r.routerMu.RUnlock()

	return r.router
}

// Listen starts accepting processes on the given TCP address.
func (r *Registrar) Listen(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	r.log.Debug("Registrar is listening on %s.", lis.Addr().String())
	return r.Serve(lis)
}

// Serve starts accepting processes on the given listener.
func (r *Registrar) Serve(lis net.Listener) error {
	if r.listener != nil {
		return fmt.Errorf("registrar is already listening on %s", r.listener.Addr().String())
	}

	r.listener = lis
	go r.acceptLoop()
	return nil
}

func (r *Registrar) acceptLoop() {
	for {
		incoming, err := r.listener.Accept()
		if err != nil {
			select {
			case <-r.closed:
			default:
				r.log.Error("Failed to accept connection: %v", err)
				_ = r.Close()
			}
			return
		}

		go r.serveSession(incoming)
	}
}

func (r *Registrar) serveSession(incoming net.Conn) {
	session, err := yamux.Client(incoming, r.yamuxConfig)
	if err != nil {
		r.log.Error("Failed to create yamux client session for %s: %v", incoming.RemoteAddr().String(), err)
		_ = incoming.Close()
		return
	}

	addr := session.RemoteAddr().String()
	r.sessions.Set(addr, session)
	r.log.Debug("Accepted session from %s.", addr)

	for {
		stream, err := session.Accept()
		if err != nil {
			break
		}

		select {
		case r.streams <- stream:
		case <-r.closed:
			_ = stream.Close()
		}
	}

	r.sessions.Remove(addr)
	r.log.Debug("Session from %s is closed.", addr)

	for _, conn := range r.connections.Items() {
		if conn.RemoteAddr() == addr {
			r.drop(conn)
		}
	}
}

// Accept returns the next stream opened by a process.
// Accept is part of the net.Listener implementation.
func (r *Registrar) Accept() (net.Conn, error) {
	select {
	case stream := <-r.streams:
		return stream, nil
	case <-r.closed:
		return nil, net.ErrClosed
	}
}

// Addr is part of the net.Listener implementation.
func (r *Registrar) Addr() net.Addr {
	if r.listener == nil {
		return &net.TCPAddr{}
	}
	return r.listener.Addr()
}

// Close stops accepting processes and closes every session.
// Close is part of the net.Listener implementation.
func (r *Registrar) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.closed)

		if r.listener != nil {
			err = r.listener.Close()
		}

		for _, session := range r.sessions.Items() {
			_ = session.Close()
		}
	})
	return err
}

// Expect prepares the registrar for the registration of a process of the given group. Expect must be
// called before the process is launched.
func (r *Registrar) Expect(groupId string) (*Waiter, error) {
	r.waitersMu.Lock()
	defer r.waitersMu.Unlock()

	select {
	case <-r.closed:
		return nil, ErrRegistrarClosed
	default:
	}

	if _, loaded := r.waiters[groupId]; loaded {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExpecting, groupId)
	}

	w := &Waiter{
		groupId:   groupId,
		registrar: r,
		ch:        make(chan *Connection, 1),
	}
	r.waiters[groupId] = w
	return w, nil
}

// Register handles the registration of the process that made the call carried by ctx.
func (r *Registrar) Register(ctx context.Context, info *proto.RegisterInfo) (*Connection, error) {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return nil, ErrUnknownSession
	}

	session, ok := r.sessions.Get(p.Addr.String())
	if !ok {
		r.log.Warn("Registration of group %s arrived from unknown peer %s.", info.GroupId, p.Addr.String())
		return nil, ErrUnknownSession
	}

	conn := newConnection(uuid.NewString(), info, session)
	r.connections.Set(conn.Token(), conn)

	r.waitersMu.Lock()
	w, expected := r.waiters[info.GroupId]
	if expected {
		delete(r.waiters, info.GroupId)
	}
	r.waitersMu.Unlock()

	if expected {
		r.log.Debug("Registered expected process: %v", conn)
		w.ch <- conn
		return conn, nil
	}

	if router := r.getRouter(); router != nil && router.Claim(conn) {
		r.log.Debug("Registered unexpected process: %v", conn)
		return conn, nil
	}

	r.connections.Remove(conn.Token())
	r.log.Warn("Rejected registration of process of group %s from %s.", info.GroupId, conn.RemoteAddr())
	return nil, ErrUnexpectedGroup
}

// Unregister removes the connection with the given token, as requested by a process that is shutting down.
func (r *Registrar) Unregister(token string) bool {
	conn, ok := r.connections.Get(token)
	if !ok {
		return false
	}

	return r.drop(conn)
}

func (r *Registrar) drop(conn *Connection) bool {
	if _, ok := r.connections.Pop(conn.Token()); !ok {
		return false
	}

	r.log.Debug("Connection lost: %v", conn)
	if router := r.getRouter(); router != nil {
		router.Disconnected(conn)
	}
	return true
}

// Connection returns the registered connection with the given token.
func (r *Registrar) Connection(token string) (*Connection, bool) {
	return r.connections.Get(token)
}

// Connections returns every registered connection.
func (r *Registrar) Connections() []*Connection {
	conns := make([]*Connection, 0, r.connections.Count())
	for _, conn := range r.connections.Items() {
		conns = append(conns, conn)
	}
	return conns
}

// Waiter waits for the registration of the process of one group.
type Waiter struct {
	groupId   string
	registrar *Registrar
	ch        chan *Connection
}

// Wait blocks until the process registers or ctx is done. The waiter is cancelled if ctx is done first.
func (w *Waiter) Wait(ctx context.Context) (*Connection, error) {
	select {
	case conn := <-w.ch:
		return conn, nil
	case <-w.registrar.closed:
		w.Cancel()
		return nil, ErrRegistrarClosed
	case <-ctx.Done():
		w.Cancel()
		return nil, ctx.Err()
	}
}

// Cancel stops expecting the registration. A connection that registered concurrently is closed.
func (w *Waiter) Cancel() {
	w.registrar.waitersMu.Lock()
	if current, ok := w.registrar.waiters[w.groupId]; ok && current == w {
		delete(w.registrar.waiters, w.groupId)
	}
	w.registrar.waitersMu.Unlock()

	select {
	case conn := <-w.ch:
		w.registrar.connections.Remove(conn.Token())
		_ = conn.Close()
	default:
	}
}
