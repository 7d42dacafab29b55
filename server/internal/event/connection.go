package event

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/hashicorp/yamux"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/scusemua/notebook-runtime/common/proto"
)

// Connection is the registered connection of one interpreter process.
//
// The process dialed the registrar, and both ends run gRPC over streams of the same yamux session: the
// process serves proto.InterpreterService and calls proto.EventService.
type Connection struct {
	token        string
	groupId      string
	host         string
	pid          int32
	remoteAddr   string
	registeredAt time.Time

	session *yamux.Session
}

func newConnection(token string, info *proto.RegisterInfo, session *yamux.Session) *Connection {
	return &Connection{
		token:        token,
		groupId:      info.GroupId,
		host:         info.Host,
		pid:          info.Pid,
		remoteAddr:   session.RemoteAddr().String(),
		registeredAt: time.Now(),
		session:      session,
	}
}

// Token identifies the connection as the origin of the changes sent by the process.
func (c *Connection) Token() string {
	return c.token
}

func (c *Connection) GroupId() string {
	return c.groupId
}

func (c *Connection) Host() string {
	return c.host
}

func (c *Connection) Pid() int32 {
	return c.pid
}

func (c *Connection) RemoteAddr() string {
	return c.remoteAddr
}

func (c *Connection) RegisteredAt() time.Time {
	return c.registeredAt
}

// Done returns a channel that is closed when the underlying session is closed.
func (c *Connection) Done() <-chan struct{} {
	return c.session.CloseChan()
}

func (c *Connection) IsClosed() bool {
	return c.session.IsClosed()
}

// Dial creates a gRPC connection to the InterpreterService of the process. Every call to Dial opens a
// new stream of the session.
func (c *Connection) Dial(opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(proto.CallOptions()...),
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return c.session.Open()
		}),
	}, opts...)

	conn, err := grpc.NewClient(fmt.Sprintf("passthrough:///%s", c.groupId), opts...)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Close terminates the session, and with it every stream to the process.
func (c *Connection) Close() error {
	return c.session.Close()
}

func (c *Connection) String() string {
	return fmt.Sprintf("Connection[group=%s, token=%s, host=%s, pid=%d]", c.groupId, c.token, c.host, c.pid)
}
