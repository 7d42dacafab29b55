package resource

import (
	"context"
	"sort"

	"github.com/scusemua/notebook-runtime/common/utils/hashmap"
)

// Pool stores the resources produced in one process.
type Pool interface {
	Id() string

	// Get returns the resource with the given identity, looking into other processes if it is not local.
	Get(ctx context.Context, noteId string, paragraphId string, name string) (*Resource, bool)

	// GetAll returns the local resources and, if includeRemote is set, the resources of every other pool.
	GetAll(ctx context.Context, includeRemote bool) Set

	Put(noteId string, paragraphId string, name string, value interface{}) *Resource

	Remove(noteId string, paragraphId string, name string) (*Resource, bool)
}

// LocalPool is a Pool that only knows about its own resources.
type LocalPool struct {
	id        string
	resources *hashmap.ConcurrentMap[string, *Resource]
}

func NewLocalPool(id string) *LocalPool {
	return &LocalPool{
		id:        id,
		resources: hashmap.NewConcurrentMap[*Resource](),
	}
}

func (p *LocalPool) Id() string {
	return p.id
}

func (p *LocalPool) Get(_ context.Context, noteId string, paragraphId string, name string) (*Resource, bool) {
	return p.GetLocal(noteId, paragraphId, name)
}

func (p *LocalPool) GetLocal(noteId string, paragraphId string, name string) (*Resource, bool) {
	return p.resources.Load(Key(noteId, paragraphId, name))
}

func (p *LocalPool) GetAll(_ context.Context, _ bool) Set {
	return p.GetAllLocal()
}

// GetAllLocal returns the resources of this pool ordered by key.
func (p *LocalPool) GetAllLocal() Set {
	keys := p.resources.Keys()
	sort.Strings(keys)

	set := make(Set, 0, len(keys))
	for _, key := range keys {
		if r, ok := p.resources.Load(key); ok {
			set = append(set, r)
		}
	}
	return set
}

func (p *LocalPool) Put(noteId string, paragraphId string, name string, value interface{}) *Resource {
	r := NewLocalResource(NewId(p.id, noteId, paragraphId, name), value)
	p.resources.Store(r.id.Key(), r)
	return r
}

func (p *LocalPool) Remove(noteId string, paragraphId string, name string) (*Resource, bool) {
	return p.resources.LoadAndDelete(Key(noteId, paragraphId, name))
}

// DistributedPool is a Pool that falls back to the pools of other processes through a Connector.
type DistributedPool struct {
	*LocalPool

	connector Connector
}

func NewDistributedPool(id string, connector Connector) *DistributedPool {
	return &DistributedPool{
		LocalPool: NewLocalPool(id),
		connector: connector,
	}
}

func (p *DistributedPool) Connector() Connector {
	return p.connector
}

func (p *DistributedPool) Get(ctx context.Context, noteId string, paragraphId string, name string) (*Resource, bool) {
	if r, ok := p.GetLocal(noteId, paragraphId, name); ok {
		return r, true
	}
	if p.connector == nil {
		return nil, false
	}

	return p.connector.GetAllResources(ctx).Find(noteId, paragraphId, name)
}

func (p *DistributedPool) GetAll(ctx context.Context, includeRemote bool) Set {
	set := p.GetAllLocal()
	if includeRemote && p.connector != nil {
		set = append(set, p.connector.GetAllResources(ctx)...)
	}
	return set
}
