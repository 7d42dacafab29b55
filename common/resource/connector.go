package resource

import (
	"context"
)

// Connector gives access to the resource pools of other processes.
type Connector interface {
	// GetAllResources returns the resources of every pool except the pool of the caller. Values are not
	// transferred; they are fetched on demand with ReadResource.
	GetAllResources(ctx context.Context) Set

	// ReadResource fetches the value of a resource. It returns nil if the value cannot be obtained or
	// decoded.
	ReadResource(ctx context.Context, id Id) interface{}

	// InvokeMethod runs inv on the resource in its owning process and returns the result.
	InvokeMethod(ctx context.Context, id Id, inv Invocation) (interface{}, error)

	// InvokeMethodAndStore runs inv on the resource in its owning process, stores the result there under
	// returnName, and returns a handle on the stored result.
	InvokeMethodAndStore(ctx context.Context, id Id, inv Invocation, returnName string) (*Resource, error)
}
