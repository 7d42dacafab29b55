package hashmap_test

import (
	"sync"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/scusemua/notebook-runtime/common/utils/hashmap"
)

var _ = Describe("Concurrent Map Tests", func() {
	var m *hashmap.ConcurrentMap[string, int]

	BeforeEach(func() {
		m = hashmap.NewConcurrentMap[int]()
	})

	It("should store and load values", func() {
		m.Store("key1", 42)
		value, ok := m.Load("key1")
		Expect(ok).To(BeTrue())
		Expect(value).To(Equal(42))
	})

	It("should return false for non-existent keys", func() {
		_, ok := m.Load("key2")
		Expect(ok).To(BeFalse())
	})

	It("should load and delete a key", func() {
		m.Store("key4", 128)
		value, ok := m.LoadAndDelete("key4")
		Expect(ok).To(BeTrue())
		Expect(value).To(Equal(128))
		_, ok = m.Load("key4")
		Expect(ok).To(BeFalse())
	})

	It("should load or store a key", func() {
		value, loaded := m.LoadOrStore("key5", 256)
		Expect(loaded).To(BeFalse())
		Expect(value).To(Equal(256))

		value, loaded = m.LoadOrStore("key5", 512)
		Expect(loaded).To(BeTrue())
		Expect(value).To(Equal(256))
	})

	It("should call the create function exactly once under contention", func() {
		var calls atomic.Int32
		var wg sync.WaitGroup

		results := make([]int, 32)
		for i := 0; i < len(results); i++ {
			wg.Add(1)
			go func(idx int) {
				defer GinkgoRecover()
				defer wg.Done()

				val, _ := m.LoadOrCompute("shared", func() int {
					return int(calls.Add(1)) * 7
				})
				results[idx] = val
			}(i)
		}
		wg.Wait()

		Expect(calls.Load()).To(Equal(int32(1)))
		for _, res := range results {
			Expect(res).To(Equal(7))
		}
	})

	It("should stop ranging once the callback returns false", func() {
		for i := 0; i < 10; i++ {
			m.Store(string(rune('a'+i)), i)
		}

		visited := 0
		m.Range(func(_ string, _ int) bool {
			visited++
			return visited < 3
		})

		Expect(visited).To(Equal(3))
		Expect(m.Len()).To(Equal(10))
		Expect(m.Keys()).To(HaveLen(10))
		Expect(m.Values()).To(HaveLen(10))
	})
})
