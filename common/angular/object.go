package angular

import (
	"fmt"
	"sync"

	"github.com/goccy/go-json"

	"github.com/scusemua/notebook-runtime/common/types"
)

// LocalOrigin is the origin of changes made by code running in the same process as the registry.
// Changes with the local origin are forwarded to every listener.
const LocalOrigin = ""

// Watcher is invoked with the previous and the new value whenever the value of an Object changes.
type Watcher func(oldValue interface{}, newValue interface{})

// Data is the serialized form of an Object. Watchers are never serialized.
type Data struct {
	Name        string      `json:"name"`
	Object      interface{} `json:"object"`
	NoteId      string      `json:"noteId"`
	ParagraphId string      `json:"paragraphId"`
}

// DataFromJson deserializes a single object.
func DataFromJson(data string) (Data, error) {
	var d Data
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		return d, fmt.Errorf("%w: angular object: %v", types.ErrSerialization, err)
	}
	if d.Name == "" {
		return d, fmt.Errorf("%w: angular object without a name", types.ErrSerialization)
	}
	return d, nil
}

func (d Data) ToJson() (string, error) {
	m, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("%w: angular object \"%s\": %v", types.ErrSerialization, d.Name, err)
	}
	return string(m), nil
}

type watcherEntry struct {
	id      uint64
	watcher Watcher
}

// Object is a named, watchable value bound to a note and paragraph (or to the global scope).
type Object struct {
	mu sync.RWMutex

	name        string
	noteId      string
	paragraphId string
	value       interface{}

	nextWatcherId uint64
	watchers      []watcherEntry

	// onChange is installed by the owning registry.
	onChange func(o *Object, origin string)
}

func newObject(name string, value interface{}, noteId string, paragraphId string, onChange func(*Object, string)) *Object {
	return &Object{
		name:        name,
		value:       value,
		noteId:      noteId,
		paragraphId: paragraphId,
		onChange:    onChange,
	}
}

func (o *Object) Name() string        { return o.name }
func (o *Object) NoteId() string      { return o.noteId }
func (o *Object) ParagraphId() string { return o.paragraphId }

// IsGlobal returns true if the object is not bound to any note.
func (o *Object) IsGlobal() bool {
	return o.noteId == ""
}

func (o *Object) Get() interface{} {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return o.value
}

// Set changes the value of the object, runs its watchers, and hands the change to the owning registry,
// which forwards it to every listener except the one identified by origin.
func (o *Object) Set(value interface{}, origin string) {
	o.set(value, origin, true)
}

// SetSilently changes the value and runs the watchers without notifying any listener.
func (o *Object) SetSilently(value interface{}) {
	o.set(value, LocalOrigin, false)
}

func (o *Object) set(value interface{}, origin string, emit bool) {
	o.mu.Lock()
	oldValue := o.value
	o.value = value
	watchers := make([]watcherEntry, len(o.watchers))
	copy(watchers, o.watchers)
	onChange := o.onChange
	o.mu.Unlock()

	for _, entry := range watchers {
		entry.watcher(oldValue, value)
	}

	if emit && onChange != nil {
		onChange(o, origin)
	}
}

// AddWatcher registers w and returns an id with which it can be removed again.
func (o *Object) AddWatcher(w Watcher) uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.nextWatcherId++
	o.watchers = append(o.watchers, watcherEntry{id: o.nextWatcherId, watcher: w})
	return o.nextWatcherId
}

func (o *Object) RemoveWatcher(id uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i, entry := range o.watchers {
		if entry.id == id {
			o.watchers = append(o.watchers[:i], o.watchers[i+1:]...)
			return true
		}
	}
	return false
}

func (o *Object) ClearWatchers() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.watchers = nil
}

func (o *Object) NumWatchers() int {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return len(o.watchers)
}

func (o *Object) ToData() Data {
	return Data{
		Name:        o.name,
		Object:      o.Get(),
		NoteId:      o.noteId,
		ParagraphId: o.paragraphId,
	}
}

func (o *Object) String() string {
	return fmt.Sprintf("AngularObject[name=%s, note=%s, paragraph=%s]", o.name, o.noteId, o.paragraphId)
}
