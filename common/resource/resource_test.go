package resource_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/goccy/go-json"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/scusemua/notebook-runtime/common/resource"
	"github.com/scusemua/notebook-runtime/common/types"
)

type table struct {
	rows map[string]int
}

func (t *table) Len() int { return len(t.rows) }

func (t *table) Keys() []string { return []string{"a", "b"} }

func (t *table) Lookup(key string) (interface{}, bool) {
	v, ok := t.rows[key]
	return v, ok
}

// fakeConnector serves resources from a second, in-memory pool.
type fakeConnector struct {
	remote *resource.LocalPool
	reads  int
}

func (c *fakeConnector) GetAllResources(_ context.Context) resource.Set {
	set := resource.Set{}
	for _, r := range c.remote.GetAllLocal() {
		set = append(set, resource.NewRemoteResource(r.Id(), r.IsSerializable(), r.TypeName(), c))
	}
	return set
}

func (c *fakeConnector) ReadResource(_ context.Context, id resource.Id) interface{} {
	c.reads++
	r, ok := c.remote.GetLocal(id.NoteId, id.ParagraphId, id.Name)
	if !ok {
		return nil
	}
	v, _ := r.Value()
	return v
}

func (c *fakeConnector) InvokeMethod(_ context.Context, id resource.Id, inv resource.Invocation) (interface{}, error) {
	r, ok := c.remote.GetLocal(id.NoteId, id.ParagraphId, id.Name)
	if !ok {
		return nil, types.ErrResourceNotFound
	}
	return r.Invoke(context.Background(), inv)
}

func (c *fakeConnector) InvokeMethodAndStore(ctx context.Context, id resource.Id, inv resource.Invocation, returnName string) (*resource.Resource, error) {
	result, err := c.InvokeMethod(ctx, id, inv)
	if err != nil {
		return nil, err
	}
	stored := c.remote.Put(id.NoteId, id.ParagraphId, returnName, result)
	return resource.NewRemoteResource(stored.Id(), stored.IsSerializable(), stored.TypeName(), c), nil
}

// countingConnector answers every read with a fresh value and counts the reads.
type countingConnector struct {
	fakeConnector
	reads atomic.Int32
}

func (c *countingConnector) ReadResource(_ context.Context, _ resource.Id) interface{} {
	return float64(c.reads.Add(1))
}

var _ = Describe("Invocation", func() {
	It("should support the known methods on decoded JSON values", func() {
		var value interface{}
		Expect(json.Unmarshal([]byte(`{"b": [1, 2, 3], "a": "x"}`), &value)).To(Succeed())

		n, err := resource.Invoke(value, resource.Invocation{Method: resource.MethodLength})
		Expect(err).To(BeNil())
		Expect(n).To(Equal(2))

		keys, err := resource.Invoke(value, resource.Invocation{Method: resource.MethodKeys})
		Expect(err).To(BeNil())
		Expect(keys).To(Equal([]string{"a", "b"}))

		elem, err := resource.Invoke(value, resource.Invocation{Method: resource.MethodLookup, Key: "a"})
		Expect(err).To(BeNil())
		Expect(elem).To(Equal("x"))

		s, err := resource.Invoke(value, resource.Invocation{Method: resource.MethodToString})
		Expect(err).To(BeNil())
		Expect(s).To(ContainSubstring(`"a":"x"`))
	})

	It("should dispatch to capability interfaces", func() {
		t := &table{rows: map[string]int{"a": 1, "b": 2}}

		n, err := resource.Invoke(t, resource.Invocation{Method: resource.MethodLength})
		Expect(err).To(BeNil())
		Expect(n).To(Equal(2))

		v, err := resource.Invoke(t, resource.Invocation{Method: resource.MethodLookup, Key: "b"})
		Expect(err).To(BeNil())
		Expect(v).To(Equal(2))
	})

	It("should reject unknown methods", func() {
		_, err := resource.Invoke("x", resource.Invocation{Method: "exec"})
		Expect(errors.Is(err, resource.ErrUnsupportedMethod)).To(BeTrue())

		_, err = resource.Invoke(42, resource.Invocation{Method: resource.MethodKeys})
		Expect(errors.Is(err, resource.ErrUnsupportedMethod)).To(BeTrue())

		_, err = resource.InvocationFromJson(`{"method": "getClass"}`)
		Expect(errors.Is(err, resource.ErrUnsupportedMethod)).To(BeTrue())
	})
})

var _ = Describe("Resource", func() {
	It("should serialize the identity and the value", func() {
		r := resource.NewLocalResource(resource.NewId("pool1", "note1", "p1", "name"), []interface{}{"a"})

		data, err := json.Marshal(r)
		Expect(err).To(BeNil())
		Expect(string(data)).To(ContainSubstring(`"resourceId":{"resourcePoolId":"pool1","noteId":"note1","paragraphId":"p1","name":"name"}`))

		decoded, err := resource.FromJson(data, nil)
		Expect(err).To(BeNil())
		Expect(decoded.Id()).To(Equal(r.Id()))
		v, ok := decoded.Value()
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal([]interface{}{"a"}))
	})

	It("should not serialize values that cannot be encoded", func() {
		r := resource.NewLocalResource(resource.NewId("pool1", "n", "p", "fn"), func() {})
		Expect(r.IsSerializable()).To(BeFalse())

		data, err := json.Marshal(r)
		Expect(err).To(BeNil())
		Expect(string(data)).ToNot(ContainSubstring(`"value"`))
	})

	It("should report malformed payloads as serialization failures", func() {
		_, err := resource.FromJson([]byte("{oops"), nil)
		Expect(errors.Is(err, types.ErrSerialization)).To(BeTrue())
	})

	It("should cache one fetched value when read concurrently", func() {
		connector := &countingConnector{}
		r := resource.NewRemoteResource(resource.NewId("remote", "note1", "p1", "x"), true, "float64", connector)

		const readers = 16
		values := make([]interface{}, readers)
		var wg sync.WaitGroup
		for i := 0; i < readers; i++ {
			wg.Add(1)
			go func(i int) {
				defer GinkgoRecover()
				defer wg.Done()
				values[i] = r.Get(context.Background())
			}(i)
		}
		wg.Wait()

		cached, ok := r.Value()
		Expect(ok).To(BeTrue())
		for _, v := range values {
			Expect(v).To(Equal(cached))
		}
		Expect(r.Get(context.Background())).To(Equal(cached))
	})
})

var _ = Describe("DistributedPool", func() {
	var (
		remote    *resource.LocalPool
		connector *fakeConnector
		pool      *resource.DistributedPool
		ctx       context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		remote = resource.NewLocalPool("remote")
		connector = &fakeConnector{remote: remote}
		pool = resource.NewDistributedPool("local", connector)
	})

	It("should prefer local resources", func() {
		pool.Put("note1", "p1", "x", 1)
		remote.Put("note1", "p1", "x", 2)

		r, ok := pool.Get(ctx, "note1", "p1", "x")
		Expect(ok).To(BeTrue())
		Expect(r.IsRemote()).To(BeFalse())
		Expect(r.Get(ctx)).To(Equal(1))
	})

	It("should fetch remote values lazily", func() {
		remote.Put("note1", "p1", "y", "remote-value")

		all := pool.GetAll(ctx, true)
		Expect(all).To(HaveLen(1))
		Expect(connector.reads).To(Equal(0))

		r, ok := pool.Get(ctx, "note1", "p1", "y")
		Expect(ok).To(BeTrue())
		Expect(r.IsRemote()).To(BeTrue())
		Expect(r.Get(ctx)).To(Equal("remote-value"))
		Expect(r.Get(ctx)).To(Equal("remote-value"))
		Expect(connector.reads).To(Equal(1))
	})

	It("should invoke methods in the owning pool and store results there", func() {
		remote.Put("note1", "p1", "m", map[string]interface{}{"k": "v"})

		r, ok := pool.Get(ctx, "note1", "p1", "m")
		Expect(ok).To(BeTrue())

		v, err := r.Invoke(ctx, resource.Invocation{Method: resource.MethodLookup, Key: "k"})
		Expect(err).To(BeNil())
		Expect(v).To(Equal("v"))

		stored, err := r.InvokeAndStore(ctx, resource.Invocation{Method: resource.MethodKeys}, "m-keys")
		Expect(err).To(BeNil())
		Expect(stored.Id().Name).To(Equal("m-keys"))
		Expect(stored.IsRemote()).To(BeTrue())

		_, ok = remote.GetLocal("note1", "p1", "m-keys")
		Expect(ok).To(BeTrue())
		Expect(stored.Get(ctx)).To(Equal([]string{"k"}))
	})
})
