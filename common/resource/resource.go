package resource

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/goccy/go-json"

	"github.com/scusemua/notebook-runtime/common/types"
)

// Id identifies a resource across processes.
type Id struct {
	ResourcePoolId string `json:"resourcePoolId"`
	NoteId         string `json:"noteId"`
	ParagraphId    string `json:"paragraphId"`
	Name           string `json:"name"`
}

func NewId(poolId string, noteId string, paragraphId string, name string) Id {
	return Id{ResourcePoolId: poolId, NoteId: noteId, ParagraphId: paragraphId, Name: name}
}

// Key returns the pool-local key of the resource.
func (id Id) Key() string {
	return Key(id.NoteId, id.ParagraphId, id.Name)
}

func (id Id) String() string {
	return id.ResourcePoolId + "/" + id.Key()
}

func (id Id) ToJson() string {
	m, _ := json.Marshal(id)
	return string(m)
}

// IdFromJson deserializes an Id.
func IdFromJson(data string) (Id, error) {
	var id Id
	if err := json.Unmarshal([]byte(data), &id); err != nil {
		return id, fmt.Errorf("%w: resource id: %v", types.ErrSerialization, err)
	}
	return id, nil
}

// Key builds the pool-local key of a resource from its note, paragraph and name.
func Key(noteId string, paragraphId string, name string) string {
	return strings.Join([]string{noteId, paragraphId, name}, ":")
}

// Resource is a named value that can be read and invoked from other processes.
//
// A Resource obtained from another process carries only its identity until its value is fetched, and keeps
// a reference to the Connector through which the owning pool can be reached.
type Resource struct {
	id           Id
	serializable bool
	typeName     string

	// mu guards value and hasValue.
	mu       sync.Mutex
	value    interface{}
	hasValue bool

	connector Connector
}

// NewLocalResource wraps a value owned by the pool identified by id.ResourcePoolId.
func NewLocalResource(id Id, value interface{}) *Resource {
	return &Resource{
		id:           id,
		value:        value,
		hasValue:     true,
		serializable: isSerializable(value),
		typeName:     typeName(value),
	}
}

// NewRemoteResource creates a handle on a resource owned by another process.
func NewRemoteResource(id Id, serializable bool, typeName string, connector Connector) *Resource {
	return &Resource{
		id:           id,
		serializable: serializable,
		typeName:     typeName,
		connector:    connector,
	}
}

func (r *Resource) Id() Id               { return r.id }
func (r *Resource) IsSerializable() bool { return r.serializable }
func (r *Resource) TypeName() string     { return r.typeName }

// IsRemote returns true if the value of the resource lives in another process.
func (r *Resource) IsRemote() bool {
	return r.connector != nil
}

// Connector returns the connector through which the owning pool of a remote resource is reached.
func (r *Resource) Connector() Connector {
	return r.connector
}

// SetConnector attaches a connector to a resource decoded from the wire.
func (r *Resource) SetConnector(c Connector) {
	r.connector = c
}

// Get returns the value of the resource, fetching it from the owning process if necessary.
// Get returns nil if the value cannot be obtained.
func (r *Resource) Get(ctx context.Context) interface{} {
	if value, ok := r.Value(); ok {
		return value
	}
	if r.connector == nil || !r.serializable {
		return nil
	}

	value := r.connector.ReadResource(ctx, r.id)
	if value == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// A concurrent Get may have cached the value first.
	if !r.hasValue {
		r.value = value
		r.hasValue = true
	}
	return r.value
}

// Value returns the locally held value without contacting the owning process.
func (r *Resource) Value() (interface{}, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.value, r.hasValue
}

// Invoke executes inv against the resource. Remote resources are invoked in the owning process.
func (r *Resource) Invoke(ctx context.Context, inv Invocation) (interface{}, error) {
	value, ok := r.Value()
	if r.connector != nil && !ok {
		return r.connector.InvokeMethod(ctx, r.id, inv)
	}
	return Invoke(value, inv)
}

// InvokeAndStore executes inv in the owning process and stores the result there as a new resource named
// returnName, returning a handle on the new resource.
func (r *Resource) InvokeAndStore(ctx context.Context, inv Invocation, returnName string) (*Resource, error) {
	if r.connector == nil {
		return nil, fmt.Errorf("resource %s has no connector", r.id)
	}
	return r.connector.InvokeMethodAndStore(ctx, r.id, inv, returnName)
}

type wireResource struct {
	ResourceId   Id              `json:"resourceId"`
	Serializable bool            `json:"serializable"`
	Type         string          `json:"type"`
	Value        json.RawMessage `json:"value,omitempty"`
}

func (r *Resource) MarshalJSON() ([]byte, error) {
	w := wireResource{ResourceId: r.id, Serializable: r.serializable, Type: r.typeName}
	if v, ok := r.Value(); ok && r.serializable {
		value, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: resource %s: %v", types.ErrSerialization, r.id, err)
		}
		w.Value = value
	}
	return json.Marshal(w)
}

func (r *Resource) UnmarshalJSON(data []byte) error {
	var w wireResource
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: resource: %v", types.ErrSerialization, err)
	}

	var (
		value    interface{}
		hasValue bool
	)
	if len(w.Value) > 0 {
		if err := json.Unmarshal(w.Value, &value); err != nil {
			return fmt.Errorf("%w: value of resource %s: %v", types.ErrSerialization, w.ResourceId, err)
		}
		hasValue = true
	}

	r.id = w.ResourceId
	r.serializable = w.Serializable
	r.typeName = w.Type

	r.mu.Lock()
	r.value = value
	r.hasValue = hasValue
	r.mu.Unlock()
	return nil
}

// FromJson deserializes a resource and attaches the given connector to it.
func FromJson(data []byte, connector Connector) (*Resource, error) {
	r := &Resource{}
	if err := json.Unmarshal(data, r); err != nil {
		if errors.Is(err, types.ErrSerialization) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: resource: %v", types.ErrSerialization, err)
	}
	r.connector = connector
	return r, nil
}

func isSerializable(value interface{}) bool {
	if value == nil {
		return true
	}
	switch reflect.TypeOf(value).Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return false
	default:
		_, err := json.Marshal(value)
		return err == nil
	}
}

func typeName(value interface{}) string {
	if value == nil {
		return "nil"
	}
	return reflect.TypeOf(value).String()
}
