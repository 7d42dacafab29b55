package event

import (
	"context"

	"github.com/scusemua/notebook-runtime/common/angular"
	"github.com/scusemua/notebook-runtime/common/configuration"
	"github.com/scusemua/notebook-runtime/common/proto"
)

// Router resolves the interpreter groups that events of connected processes are addressed to.
type Router interface {
	// Claim offers a registration that no launch is waiting for, e.g. a process that reconnected or
	// that survived a restart of the server. It returns false if no group accepts the connection.
	Claim(conn *Connection) bool

	// Disconnected is called once for every registered connection that was lost or unregistered.
	Disconnected(conn *Connection)

	ExecutionMode(groupId string) configuration.ExecutionMode

	AngularRegistry(groupId string) (*angular.Registry, error)

	// ResourceOwners returns the running groups other than excludeGroupId.
	ResourceOwners(excludeGroupId string) []ResourceOwner

	// ResourceOwner returns the running group whose resource pool has the given id.
	ResourceOwner(poolId string) (ResourceOwner, error)
}

// ResourceOwner is a group whose process holds a resource pool.
type ResourceOwner interface {
	GroupId() string
	ResourcePoolGetAll(ctx context.Context) (*proto.ResourceSetReply, error)
	ResourceGet(ctx context.Context, in *proto.ResourceRequest) (*proto.ResourceReply, error)
	ResourceInvokeMethod(ctx context.Context, in *proto.InvokeMethodRequest) (*proto.InvokeMethodReply, error)
}
