package hashmap

type BaseHashMap[K any, V any] interface {
	Delete(K)
	Load(K) (val V, loaded bool)
	LoadAndDelete(K) (val V, exists bool)
	LoadOrStore(K, V) (val V, loaded bool)

	// LoadOrCompute returns the existing value for the key if present. Otherwise, it calls create while holding
	// the lock that guards the key, stores the result, and returns it. Concurrent callers for the same key
	// observe the value produced by exactly one call to create.
	LoadOrCompute(K, func() V) (val V, loaded bool)

	// Range iterates over the map's key/value pairs. Iteration stops once the callback returns false.
	Range(func(K, V) (contd bool))

	Store(K, V)
}

type HashMap[K any, V any] interface {
	BaseHashMap[K, V]
	Len() int
	Keys() []K
	Values() []V
}
