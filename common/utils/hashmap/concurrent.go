package hashmap

import (
	cmap "github.com/orcaman/concurrent-map/v2"
)

var _ HashMap[string, struct{}] = (*ConcurrentMap[string, struct{}])(nil)

// ConcurrentMap is a sharded, thread-safe HashMap backed by orcaman/concurrent-map.
type ConcurrentMap[K comparable, V any] struct {
	backend cmap.ConcurrentMap[K, V]
}

func NewConcurrentMap[V any]() *ConcurrentMap[string, V] {
	return &ConcurrentMap[string, V]{
		backend: cmap.New[V](),
	}
}

func (m *ConcurrentMap[K, V]) Delete(key K) {
	m.backend.Remove(key)
}

func (m *ConcurrentMap[K, V]) Load(key K) (V, bool) {
	return m.backend.Get(key)
}

func (m *ConcurrentMap[K, V]) LoadAndDelete(key K) (retVal V, retExists bool) {
	m.backend.RemoveCb(key, func(key K, val V, exists bool) bool {
		retVal = val
		retExists = exists
		return true
	})
	return
}

func (m *ConcurrentMap[K, V]) LoadOrStore(key K, value V) (V, bool) {
	return m.LoadOrCompute(key, func() V { return value })
}

func (m *ConcurrentMap[K, V]) LoadOrCompute(key K, create func() V) (V, bool) {
	var (
		zero   V
		loaded bool
	)

	val := m.backend.Upsert(key, zero, func(exist bool, valueInMap V, _ V) V {
		if exist {
			loaded = true
			return valueInMap
		}

		return create()
	})

	return val, loaded
}

func (m *ConcurrentMap[K, V]) Range(cb func(K, V) bool) {
	next := true
	for item := range m.backend.IterBuffered() {
		if next {
			next = cb(item.Key, item.Val)
		}
		// iterate over all items to drain the channel
	}
}

func (m *ConcurrentMap[K, V]) Store(key K, val V) {
	m.backend.Set(key, val)
}

func (m *ConcurrentMap[K, V]) Len() int {
	return m.backend.Count()
}

func (m *ConcurrentMap[K, V]) Keys() []K {
	return m.backend.Keys()
}

func (m *ConcurrentMap[K, V]) Values() []V {
	values := make([]V, 0, m.backend.Count())
	for item := range m.backend.IterBuffered() {
		values = append(values, item.Val)
	}
	return values
}
