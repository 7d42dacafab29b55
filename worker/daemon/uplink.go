package daemon

import (
	"context"
	"fmt"
	"io"
	"net"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	"github.com/hashicorp/yamux"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/scusemua/notebook-runtime/common/client"
	"github.com/scusemua/notebook-runtime/common/proto"
)

// Uplink is the connection of the worker to the event server of the notebook server.
//
// The worker dials the server and runs the server end of a yamux session over the TCP connection. Streams
// opened by the notebook server carry calls to proto.InterpreterService and are handed to the gRPC server
// of the worker through the net.Listener returned by Listener. Streams opened by the worker carry calls to
// proto.EventService.
type Uplink struct {
	log     logger.Logger
	addr    string
	session *yamux.Session
}

// DialUplink connects to the event server listening on addr.
func DialUplink(ctx context.Context, addr string) (*Uplink, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	session, err := yamux.Server(conn, yamux.DefaultConfig())
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	uplink := &Uplink{
		addr:    addr,
		session: session,
	}
	config.InitLogger(&uplink.log, uplink)

	return uplink, nil
}

// Listener returns a net.Listener accepting the streams opened by the notebook server. Closing the
// listener stops accepting streams and leaves the session open.
func (u *Uplink) Listener() net.Listener {
	ctx, cancel := context.WithCancel(context.Background())
	return &streamListener{uplink: u, ctx: ctx, cancel: cancel}
}

// Dial creates a gRPC connection to the EventService of the notebook server. Every call to Dial opens a
// new stream of the session.
func (u *Uplink) Dial(opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(proto.CallOptions()...),
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			conn, err := u.session.Open()
			if err != nil {
				u.log.Error("Failed to open stream to %s: %v", u.addr, err)
			}
			return conn, err
		}),
	}, opts...)

	return grpc.NewClient(fmt.Sprintf("passthrough:///%s", u.addr), opts...)
}

// ClientFactory returns a client.ConnFactory creating EventService clients over new streams of the session.
func (u *Uplink) ClientFactory(opts ...grpc.DialOption) client.ConnFactory[proto.EventServiceClient] {
	return func(_ context.Context) (proto.EventServiceClient, error) {
		cc, err := u.Dial(opts...)
		if err != nil {
			return nil, err
		}
		return &eventClient{EventServiceClient: proto.NewEventServiceClient(cc), cc: cc}, nil
	}
}

// Done returns a channel that is closed when the session is closed.
func (u *Uplink) Done() <-chan struct{} {
	return u.session.CloseChan()
}

func (u *Uplink) IsClosed() bool {
	return u.session.IsClosed()
}

// Close terminates the session, and with it every stream in both directions.
func (u *Uplink) Close() error {
	return u.session.Close()
}

func (u *Uplink) String() string {
	return fmt.Sprintf("Uplink[%s]", u.addr)
}

type streamListener struct {
	uplink *Uplink
	ctx    context.Context
	cancel context.CancelFunc
}

func (l *streamListener) Accept() (net.Conn, error) {
	stream, err := l.uplink.session.AcceptStreamWithContext(l.ctx)
	if err != nil {
		if l.ctx.Err() == nil && !l.uplink.session.IsClosed() {
			l.uplink.log.Error("Failed to accept stream: %v", err)
		}
		return nil, err
	}

	l.uplink.log.Trace("Accepted stream. RemoteAddr: %v. LocalAddr: %v", stream.RemoteAddr(), stream.LocalAddr())
	return stream, nil
}

func (l *streamListener) Close() error {
	l.cancel()
	return nil
}

func (l *streamListener) Addr() net.Addr {
	return l.uplink.session.LocalAddr()
}

// eventClient ties a client to the gRPC connection it was created from.
type eventClient struct {
	proto.EventServiceClient
	cc *grpc.ClientConn
}

func (c *eventClient) Close() error {
	return c.cc.Close()
}

func closeEventClient(c proto.EventServiceClient) error {
	if closer, ok := c.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
