package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	"github.com/goccy/go-json"

	"github.com/scusemua/notebook-runtime/common/angular"
	"github.com/scusemua/notebook-runtime/common/client"
	"github.com/scusemua/notebook-runtime/common/metrics"
	"github.com/scusemua/notebook-runtime/common/proto"
	"github.com/scusemua/notebook-runtime/common/resource"
	"github.com/scusemua/notebook-runtime/common/types"
)

const DefaultNotifyTimeout = 10 * time.Second

var ErrNotConnected = errors.New("worker is not connected to the notebook server")

// Upstream forwards the local changes of the angular registry to the notebook server, and gives the local
// resource pool access to the pools of the other groups.
//
// The connection to the server can be replaced when the worker reconnects. Changes are sent with the
// registration token of the current connection as origin, so that the server does not echo them back.
type Upstream struct {
	log logger.Logger

	groupId       string
	notifyTimeout time.Duration
	metrics       *metrics.PrometheusManager

	mu    sync.RWMutex
	pool  *client.PooledRemoteClient[proto.EventServiceClient]
	token string
}

// NewUpstream creates an Upstream without a connection. metricsManager may be nil.
func NewUpstream(groupId string, metricsManager *metrics.PrometheusManager) *Upstream {
	u := &Upstream{
		groupId:       groupId,
		notifyTimeout: DefaultNotifyTimeout,
		metrics:       metricsManager,
	}
	config.InitLogger(&u.log, u)

	return u
}

// Attach installs the connection registered under token and returns the previous one, if any.
func (u *Upstream) Attach(pool *client.PooledRemoteClient[proto.EventServiceClient], token string) *client.PooledRemoteClient[proto.EventServiceClient] {
	u.mu.Lock()
	defer u.mu.Unlock()

	prev := u.pool
	u.pool = pool
	u.token = token
	return prev
}

// Detach removes the current connection and returns it.
func (u *Upstream) Detach() *client.PooledRemoteClient[proto.EventServiceClient] {
	return u.Attach(nil, "")
}

// Token returns the registration token of the current connection, or "" if there is none.
func (u *Upstream) Token() string {
	u.mu.RLock()
	defer u.mu.RUnlock()

	return u.token
}

func (u *Upstream) IsConnected() bool {
	u.mu.RLock()
	defer u.mu.RUnlock()

	return u.pool != nil
}

func (u *Upstream) call(ctx context.Context, f func(ctx context.Context, c proto.EventServiceClient, token string) error) error {
	u.mu.RLock()
	pool, token := u.pool, u.token
	u.mu.RUnlock()

	if pool == nil {
		return ErrNotConnected
	}
	return pool.CallRemoteFunction(ctx, func(ctx context.Context, c proto.EventServiceClient) error {
		return f(ctx, c, token)
	})
}

func (u *Upstream) OnAdd(groupId string, o *angular.Object) {
	u.sendObject("add", groupId, o, func(ctx context.Context, c proto.EventServiceClient, in *proto.AngularObjectRequest) error {
		_, err := c.AddAngularObject(ctx, in)
		return err
	})
}

func (u *Upstream) OnUpdate(groupId string, o *angular.Object) {
	u.sendObject("update", groupId, o, func(ctx context.Context, c proto.EventServiceClient, in *proto.AngularObjectRequest) error {
		_, err := c.UpdateAngularObject(ctx, in)
		return err
	})
}

func (u *Upstream) OnRemove(groupId string, name string, noteId string, paragraphId string) {
	ctx, cancel := context.WithTimeout(context.Background(), u.notifyTimeout)
	defer cancel()

	err := u.call(ctx, func(ctx context.Context, c proto.EventServiceClient, token string) error {
		_, err := c.RemoveAngularObject(ctx, &proto.AngularObjectRemoveRequest{
			GroupId:     groupId,
			Name:        name,
			NoteId:      noteId,
			ParagraphId: paragraphId,
			Origin:      token,
		})
		return err
	})
	u.recordSent("remove", name, err)
}

func (u *Upstream) sendObject(kind string, groupId string, o *angular.Object,
	send func(ctx context.Context, c proto.EventServiceClient, in *proto.AngularObjectRequest) error) {
	data, err := o.ToData().ToJson()
	if err != nil {
		u.log.Error("Cannot send angular object %s: %v", o.Name(), err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), u.notifyTimeout)
	defer cancel()

	err = u.call(ctx, func(ctx context.Context, c proto.EventServiceClient, token string) error {
		return send(ctx, c, &proto.AngularObjectRequest{GroupId: groupId, Object: data, Origin: token})
	})
	u.recordSent(kind, o.Name(), err)
}

func (u *Upstream) recordSent(kind string, name string, err error) {
	if err != nil {
		u.log.Warn("Failed to send angular %s of %s to the notebook server: %v", kind, name, err)
		return
	}
	if u.metrics != nil {
		u.metrics.RecordAngularEvent("sent", kind)
	}
}

// GetAllResources returns the resources of every other group. Resources that cannot be decoded are
// skipped, and an empty set is returned if the server cannot be reached.
func (u *Upstream) GetAllResources(ctx context.Context) resource.Set {
	var reply *proto.ResourceSetReply
	err := u.call(ctx, func(ctx context.Context, c proto.EventServiceClient, _ string) (err error) {
		reply, err = c.GetAllResources(ctx, &proto.ResourcePoolRequest{GroupId: u.groupId})
		return err
	})
	if err != nil {
		u.log.Warn("Failed to list remote resources: %v", err)
		return resource.Set{}
	}

	set := make(resource.Set, 0, len(reply.Resources))
	for _, data := range reply.Resources {
		r, err := resource.FromJson([]byte(data), u)
		if err != nil {
			u.log.Warn("Skipping malformed remote resource: %v", err)
			continue
		}
		set = append(set, r)
	}
	return set
}

func (u *Upstream) ReadResource(ctx context.Context, id resource.Id) interface{} {
	var reply *proto.ResourceReply
	err := u.call(ctx, func(ctx context.Context, c proto.EventServiceClient, _ string) (err error) {
		reply, err = c.GetResource(ctx, &proto.ResourceRequest{GroupId: u.groupId, ResourceId: id.ToJson()})
		return err
	})
	if err != nil {
		u.log.Warn("Failed to read remote resource %s: %v", id, err)
		return nil
	}
	if !reply.Found || len(reply.Value) == 0 {
		return nil
	}

	var value interface{}
	if err = json.Unmarshal(reply.Value, &value); err != nil {
		u.log.Warn("Malformed value of remote resource %s: %v", id, err)
		return nil
	}
	return value
}

func (u *Upstream) InvokeMethod(ctx context.Context, id resource.Id, inv resource.Invocation) (interface{}, error) {
	inv.ResourceId = id
	inv.ReturnResourceName = ""

	reply, err := u.invoke(ctx, inv)
	if err != nil {
		return nil, err
	}
	if len(reply.Value) == 0 {
		return nil, nil
	}

	var value interface{}
	if err = json.Unmarshal(reply.Value, &value); err != nil {
		return nil, fmt.Errorf("%w: result of %s on %s: %v", types.ErrSerialization, inv.Method, id, err)
	}
	return value, nil
}

func (u *Upstream) InvokeMethodAndStore(ctx context.Context, id resource.Id, inv resource.Invocation, returnName string) (*resource.Resource, error) {
	inv.ResourceId = id
	inv.ReturnResourceName = returnName

	reply, err := u.invoke(ctx, inv)
	if err != nil {
		return nil, err
	}
	if len(reply.Resource) == 0 {
		return nil, fmt.Errorf("%w: %s on %s returned no resource", types.ErrSerialization, inv.Method, id)
	}
	return resource.FromJson(reply.Resource, u)
}

func (u *Upstream) invoke(ctx context.Context, inv resource.Invocation) (*proto.InvokeMethodReply, error) {
	var reply *proto.InvokeMethodReply
	err := u.call(ctx, func(ctx context.Context, c proto.EventServiceClient, _ string) (err error) {
		reply, err = c.InvokeMethod(ctx, &proto.InvokeMethodRequest{GroupId: u.groupId, Invocation: inv.ToJson()})
		return err
	})
	return reply, err
}

func (u *Upstream) String() string {
	return fmt.Sprintf("Upstream[%s]", u.groupId)
}
