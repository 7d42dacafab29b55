package client_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/scusemua/notebook-runtime/common/client"
	"github.com/scusemua/notebook-runtime/common/types"
)

type fakeConn struct {
	id     int32
	closed atomic.Bool
}

var _ = Describe("PooledRemoteClient", func() {
	var (
		nextId atomic.Int32
		pool   *client.PooledRemoteClient[*fakeConn]
		ctx    context.Context
	)

	BeforeEach(func() {
		nextId.Store(0)
		ctx = context.Background()
		pool = client.NewPooledRemoteClient[*fakeConn]("test", 2,
			func(context.Context) (*fakeConn, error) {
				return &fakeConn{id: nextId.Add(1)}, nil
			},
			client.WithCloser[*fakeConn](func(conn *fakeConn) error {
				conn.closed.Store(true)
				return nil
			}))
	})

	AfterEach(func() {
		pool.Close()
	})

	It("should reuse connections after successful calls", func() {
		var used []int32
		for i := 0; i < 3; i++ {
			err := pool.CallRemoteFunction(ctx, func(_ context.Context, conn *fakeConn) error {
				used = append(used, conn.id)
				return nil
			})
			Expect(err).To(BeNil())
		}

		Expect(used).To(Equal([]int32{1, 1, 1}))
		Expect(pool.Stats().Created).To(Equal(uint64(1)))
		Expect(pool.Stats().Calls).To(Equal(uint64(3)))
	})

	It("should discard the connection on a transport failure and not retry", func() {
		var attempts int
		var failed *fakeConn
		err := pool.CallRemoteFunction(ctx, func(_ context.Context, conn *fakeConn) error {
			attempts++
			failed = conn
			return status.Error(codes.Unavailable, "connection reset")
		})

		Expect(errors.Is(err, types.ErrTransportFailure)).To(BeTrue())
		Expect(status.Code(err)).To(Equal(codes.Unavailable))
		Expect(attempts).To(Equal(1))
		Expect(failed.closed.Load()).To(BeTrue())

		err = pool.CallRemoteFunction(ctx, func(_ context.Context, conn *fakeConn) error {
			Expect(conn).ToNot(BeIdenticalTo(failed))
			return nil
		})
		Expect(err).To(BeNil())
		Expect(pool.Stats().Discarded).To(Equal(uint64(1)))
	})

	It("should return the connection when the remote side reports an application error", func() {
		appErr := status.Error(codes.NotFound, "no such interpreter")
		err := pool.CallRemoteFunction(ctx, func(context.Context, *fakeConn) error {
			return appErr
		})

		Expect(err).To(Equal(appErr))
		Expect(types.IsTransportFailure(err)).To(BeFalse())
		Expect(pool.Stats().Idle).To(Equal(1))
	})

	It("should block callers when every connection is borrowed", func() {
		release := make(chan struct{})
		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				err := pool.CallRemoteFunction(ctx, func(context.Context, *fakeConn) error {
					<-release
					return nil
				})
				Expect(err).To(BeNil())
			}()
		}

		Eventually(func() uint64 { return pool.Stats().Created }).Should(Equal(uint64(2)))

		timeoutCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		err := pool.CallRemoteFunction(timeoutCtx, func(context.Context, *fakeConn) error { return nil })
		Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())

		close(release)
		wg.Wait()

		Expect(pool.CallRemoteFunction(ctx, func(context.Context, *fakeConn) error { return nil })).To(Succeed())
		Expect(pool.Stats().Created).To(Equal(uint64(2)))
	})

	It("should report dial failures as transport failures", func() {
		failing := client.NewPooledRemoteClient[*fakeConn]("failing", 1, func(context.Context) (*fakeConn, error) {
			return nil, errors.New("connection refused")
		})

		err := failing.CallRemoteFunction(ctx, func(context.Context, *fakeConn) error {
			Fail("must not be called")
			return nil
		})
		Expect(types.IsTransportFailure(err)).To(BeTrue())

		err = failing.CallRemoteFunction(ctx, func(context.Context, *fakeConn) error { return nil })
		Expect(types.IsTransportFailure(err)).To(BeTrue())
	})

	It("should refuse calls once closed", func() {
		pool.Close()
		err := pool.CallRemoteFunction(ctx, func(context.Context, *fakeConn) error { return nil })
		Expect(errors.Is(err, client.ErrPoolClosed)).To(BeTrue())
	})
})
