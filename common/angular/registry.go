package angular

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	"github.com/elliotchance/orderedmap/v2"
	"github.com/goccy/go-json"

	"github.com/scusemua/notebook-runtime/common/types"
)

// Listener receives the changes made to the objects of a Registry.
//
// A listener typically represents one connection: a browser session, the worker process of a group,
// or the server from the point of view of a worker.
type Listener interface {
	OnAdd(groupId string, o *Object)
	OnUpdate(groupId string, o *Object)
	OnRemove(groupId string, name string, noteId string, paragraphId string)
}

type listenerEntry struct {
	token    string
	noteId   string
	listener Listener
}

type scope struct {
	noteId      string
	paragraphId string
}

// Registry holds the angular objects of one interpreter group.
//
// Every mutation carries an origin token. The registry notifies all listeners of a mutation except the
// listener registered under the origin token, so that a change received from a connection is never sent
// back to that same connection.
type Registry struct {
	log logger.Logger

	groupId                 string
	maxGlobalBroadcastNotes int

	mu        sync.RWMutex
	objects   map[scope]map[string]*Object
	listeners *orderedmap.OrderedMap[string, *listenerEntry]
}

// NewRegistry creates an empty Registry for the given group.
//
// maxGlobalBroadcastNotes bounds the number of distinct notes whose listeners are visited when a global
// object changes. A value <= 0 means no bound.
func NewRegistry(groupId string, maxGlobalBroadcastNotes int) *Registry {
	r := &Registry{
		groupId:                 groupId,
		maxGlobalBroadcastNotes: maxGlobalBroadcastNotes,
		objects:                 make(map[scope]map[string]*Object),
		listeners:               orderedmap.NewOrderedMap[string, *listenerEntry](),
	}
	config.InitLogger(&r.log, fmt.Sprintf("AngularRegistry[%s] ", groupId))
	return r
}

func (r *Registry) GroupId() string {
	return r.groupId
}

// AddListener registers l under token. If noteId is non-empty, l only receives changes of objects bound to
// that note and of global objects. Registering a token twice replaces the previous listener.
func (r *Registry) AddListener(token string, noteId string, l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.listeners.Set(token, &listenerEntry{token: token, noteId: noteId, listener: l})
}

func (r *Registry) RemoveListener(token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.listeners.Delete(token)
}

func (r *Registry) HasListener(token string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.listeners.Get(token)
	return ok
}

// Add creates an object, or sets the value of the existing object with the same identity, and notifies
// the listeners.
func (r *Registry) Add(name string, value interface{}, noteId string, paragraphId string, origin string) *Object {
	key := scope{noteId: noteId, paragraphId: paragraphId}

	r.mu.Lock()
	objects, ok := r.objects[key]
	if !ok {
		objects = make(map[string]*Object)
		r.objects[key] = objects
	}

	o, exists := objects[name]
	if !exists {
		o = newObject(name, value, noteId, paragraphId, r.onObjectChanged)
		objects[name] = o
	}
	recipients := r.recipients(noteId, origin)
	r.mu.Unlock()

	if exists {
		o.SetSilently(value)
	}

	for _, entry := range recipients {
		entry.listener.OnAdd(r.groupId, o)
	}
	return o
}

// Get returns the object with the given identity, or nil.
func (r *Registry) Get(name string, noteId string, paragraphId string) *Object {
	r.mu.RLock()
	defer r.mu.RUnlock()

	objects, ok := r.objects[scope{noteId: noteId, paragraphId: paragraphId}]
	if !ok {
		return nil
	}
	return objects[name]
}

// Update sets the value of an existing object on behalf of origin.
// Update returns false if the object does not exist.
func (r *Registry) Update(name string, value interface{}, noteId string, paragraphId string, origin string) (*Object, bool) {
	o := r.Get(name, noteId, paragraphId)
	if o == nil {
		return nil, false
	}

	o.Set(value, origin)
	return o, true
}

// Remove deletes the object with the given identity and notifies the listeners. It returns the removed
// object, or nil if there was none.
func (r *Registry) Remove(name string, noteId string, paragraphId string, origin string) *Object {
	key := scope{noteId: noteId, paragraphId: paragraphId}

	r.mu.Lock()
	objects, ok := r.objects[key]
	if !ok {
		r.mu.Unlock()
		return nil
	}

	o, ok := objects[name]
	if !ok {
		r.mu.Unlock()
		return nil
	}

	delete(objects, name)
	if len(objects) == 0 {
		delete(r.objects, key)
	}
	recipients := r.recipients(noteId, origin)
	r.mu.Unlock()

	for _, entry := range recipients {
		entry.listener.OnRemove(r.groupId, name, noteId, paragraphId)
	}
	return o
}

// RemoveAll removes every object bound to the given note and paragraph.
func (r *Registry) RemoveAll(noteId string, paragraphId string, origin string) {
	for _, o := range r.GetAll(noteId, paragraphId) {
		r.Remove(o.Name(), noteId, paragraphId, origin)
	}
}

// GetAll returns the objects bound to exactly the given note and paragraph, sorted by name.
func (r *Registry) GetAll(noteId string, paragraphId string) []*Object {
	r.mu.RLock()
	objects := r.objects[scope{noteId: noteId, paragraphId: paragraphId}]
	result := make([]*Object, 0, len(objects))
	for _, o := range objects {
		result = append(result, o)
	}
	r.mu.RUnlock()

	sortObjects(result)
	return result
}

// GetAllWithGlobal returns every object bound to the given note (in any paragraph) plus all global objects.
func (r *Registry) GetAllWithGlobal(noteId string) []*Object {
	r.mu.RLock()
	result := make([]*Object, 0)
	for key, objects := range r.objects {
		if key.noteId != noteId && key.noteId != "" {
			continue
		}
		for _, o := range objects {
			result = append(result, o)
		}
	}
	r.mu.RUnlock()

	sortObjects(result)
	return result
}

// Len returns the total number of objects in the registry.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, objects := range r.objects {
		n += len(objects)
	}
	return n
}

// Snapshot returns the serializable form of every object in the registry.
func (r *Registry) Snapshot() []Data {
	r.mu.RLock()
	all := make([]*Object, 0)
	for _, objects := range r.objects {
		for _, o := range objects {
			all = append(all, o)
		}
	}
	r.mu.RUnlock()

	sortObjects(all)
	snapshot := make([]Data, 0, len(all))
	for _, o := range all {
		snapshot = append(snapshot, o.ToData())
	}
	return snapshot
}

// SnapshotJson serializes Snapshot.
func (r *Registry) SnapshotJson() (string, error) {
	m, err := json.Marshal(r.Snapshot())
	if err != nil {
		return "", fmt.Errorf("%w: angular registry of group %s: %v", types.ErrSerialization, r.groupId, err)
	}
	return string(m), nil
}

// Restore replaces the content of the registry with the given snapshot without notifying any listener.
//
// Objects whose identity appears both in the registry and in the snapshot are kept, so that the watchers
// registered on them stay attached. Their value is set to the value from the snapshot.
func (r *Registry) Restore(snapshot []Data) {
	restored := make(map[scope]map[string]*Object)
	changed := make([]*Object, 0)
	values := make([]interface{}, 0)

	r.mu.Lock()
	for _, d := range snapshot {
		key := scope{noteId: d.NoteId, paragraphId: d.ParagraphId}
		objects, ok := restored[key]
		if !ok {
			objects = make(map[string]*Object)
			restored[key] = objects
		}

		if existing, ok := r.objects[key][d.Name]; ok {
			objects[d.Name] = existing
			changed = append(changed, existing)
			values = append(values, d.Object)
			continue
		}

		objects[d.Name] = newObject(d.Name, d.Object, d.NoteId, d.ParagraphId, r.onObjectChanged)
	}
	r.objects = restored
	r.mu.Unlock()

	for i, o := range changed {
		o.SetSilently(values[i])
	}

	r.log.Debug("Restored %d angular object(s).", len(snapshot))
}

// RestoreJson deserializes a snapshot produced by SnapshotJson and restores it.
func (r *Registry) RestoreJson(data string) error {
	var snapshot []Data
	if data != "" {
		if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
			return fmt.Errorf("%w: angular registry of group %s: %v", types.ErrSerialization, r.groupId, err)
		}
	}

	r.Restore(snapshot)
	return nil
}

// Notes returns the ids of every note that has objects or note-scoped listeners in the registry.
func (r *Registry) Notes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	for key := range r.objects {
		if key.noteId != "" {
			seen[key.noteId] = struct{}{}
		}
	}
	for el := r.listeners.Front(); el != nil; el = el.Next() {
		if el.Value.noteId != "" {
			seen[el.Value.noteId] = struct{}{}
		}
	}

	notes := make([]string, 0, len(seen))
	for noteId := range seen {
		notes = append(notes, noteId)
	}
	sort.Strings(notes)
	return notes
}

func (r *Registry) onObjectChanged(o *Object, origin string) {
	r.mu.RLock()
	recipients := r.recipients(o.NoteId(), origin)
	r.mu.RUnlock()

	for _, entry := range recipients {
		entry.listener.OnUpdate(r.groupId, o)
	}
}

// recipients returns the listeners that must be notified of a change to an object bound to noteId,
// excluding the listener registered under the excluded token. r.mu must be held.
//
// For global objects, note-scoped listeners are visited note by note and at most maxGlobalBroadcastNotes
// distinct notes are visited.
func (r *Registry) recipients(noteId string, excluded string) []*listenerEntry {
	recipients := make([]*listenerEntry, 0, r.listeners.Len())
	visitedNotes := make(map[string]struct{})

	for el := r.listeners.Front(); el != nil; el = el.Next() {
		entry := el.Value
		if excluded != LocalOrigin && entry.token == excluded {
			continue
		}

		switch {
		case entry.noteId == "":
			recipients = append(recipients, entry)
		case noteId != "":
			if entry.noteId == noteId {
				recipients = append(recipients, entry)
			}
		default:
			if _, visited := visitedNotes[entry.noteId]; !visited {
				if r.maxGlobalBroadcastNotes > 0 && len(visitedNotes) >= r.maxGlobalBroadcastNotes {
					continue
				}
				visitedNotes[entry.noteId] = struct{}{}
			}
			recipients = append(recipients, entry)
		}
	}

	if len(visitedNotes) > 0 && len(visitedNotes) >= r.maxGlobalBroadcastNotes && r.maxGlobalBroadcastNotes > 0 {
		r.log.Debug("Broadcast of global angular object reached the limit of %d note(s).", r.maxGlobalBroadcastNotes)
	}

	return recipients
}

func sortObjects(objects []*Object) {
	sort.Slice(objects, func(i, j int) bool {
		if objects[i].noteId != objects[j].noteId {
			return objects[i].noteId < objects[j].noteId
		}
		if objects[i].paragraphId != objects[j].paragraphId {
			return objects[i].paragraphId < objects[j].paragraphId
		}
		return objects[i].name < objects[j].name
	})
}
