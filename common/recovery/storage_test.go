package recovery_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/scusemua/notebook-runtime/common/recovery"
)

var _ = Describe("FileStorage", func() {
	var (
		dir string
		ctx context.Context
	)

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "recovery-test-")
		Expect(err).To(BeNil())
		DeferCleanup(os.RemoveAll, dir)

		ctx = context.Background()
	})

	It("should persist registrations across instances", func() {
		storage := recovery.NewFileStorage(dir)
		Expect(storage.Connect(ctx)).To(Succeed())
		Expect(storage.ConnectionStatus()).To(Equal(recovery.Connected))

		Expect(storage.Save(ctx, recovery.Registration{GroupId: "jdbc-shared_process", SettingName: "jdbc", Pid: 42})).To(Succeed())
		Expect(storage.Save(ctx, recovery.Registration{GroupId: "echo-user1", SettingName: "echo"})).To(Succeed())
		Expect(storage.Remove(ctx, "echo-user1")).To(Succeed())
		Expect(storage.Remove(ctx, "unknown")).To(Succeed())
		Expect(storage.Close()).To(Succeed())

		reopened := recovery.NewFileStorage(dir)
		Expect(reopened.Connect(ctx)).To(Succeed())

		registrations, err := reopened.LoadAll(ctx)
		Expect(err).To(BeNil())
		Expect(registrations).To(HaveLen(1))
		Expect(registrations[0].GroupId).To(Equal("jdbc-shared_process"))
		Expect(registrations[0].Pid).To(Equal(int32(42)))
	})

	It("should start empty when the recovery file is corrupted", func() {
		Expect(os.WriteFile(filepath.Join(dir, recovery.RegistrationsFileName), []byte("{oops"), 0o600)).To(Succeed())

		storage := recovery.NewFileStorage(dir)
		Expect(storage.Connect(ctx)).To(Succeed())

		registrations, err := storage.LoadAll(ctx)
		Expect(err).To(BeNil())
		Expect(registrations).To(BeEmpty())
	})
})

var _ = Describe("NewStorage", func() {
	It("should select the backend by kind", func() {
		storage, err := recovery.NewStorage(recovery.Options{Kind: recovery.KindNone})
		Expect(err).To(BeNil())
		Expect(storage).To(BeAssignableToTypeOf(&recovery.NoopStorage{}))

		storage, err = recovery.NewStorage(recovery.Options{Kind: recovery.KindRedis, RedisAddr: "redis:6379"})
		Expect(err).To(BeNil())
		Expect(storage).To(BeAssignableToTypeOf(&recovery.RedisStorage{}))

		_, err = recovery.NewStorage(recovery.Options{Kind: "etcd"})
		Expect(errors.Is(err, recovery.ErrUnknownStorageKind)).To(BeTrue())
	})
})
